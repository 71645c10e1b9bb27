package service

import (
	"errors"

	"reel/internal/media"
)

// Sentinel errors for the service layer.
var (
	ErrNotFound          = errors.New("video not found")
	ErrNotFoundOrExpired = errors.New("share link not found or expired")
	ErrPasswordRequired  = errors.New("password required")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrInvalidExpiry     = errors.New("invalid share expiry")
	ErrEmptyUpload       = errors.New("upload is empty")
	ErrFileTooLarge      = errors.New("file exceeds maximum allowed size")
	ErrDurationExceeded  = errors.New("video exceeds maximum allowed duration")
)

// Media errors surfaced unchanged by trim and merge.
var (
	ErrInvalidRange     = media.ErrInvalidRange
	ErrEmptyInput       = media.ErrEmptyInput
	ErrGeometryMismatch = media.ErrGeometryMismatch
)
