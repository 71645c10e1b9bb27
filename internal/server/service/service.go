package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"reel/internal/server/database"
	"reel/internal/server/events"
)

// VideoRepository is the persistence the video service needs.
type VideoRepository interface {
	CreateVideo(ctx context.Context, v *database.Video) error
	GetVideo(ctx context.Context, id string) (*database.Video, error)
	GetStats(ctx context.Context, now time.Time) (*database.Stats, error)
}

// ShareRepository is the persistence the share service needs.
type ShareRepository interface {
	GetVideo(ctx context.Context, id string) (*database.Video, error)
	CreateShareLink(ctx context.Context, l *database.ShareLink) error
	FindActiveShareLink(ctx context.Context, token string, now time.Time) (*database.ShareLink, *database.Video, error)
}

// Prober reports the duration of an encoded file on local disk.
type Prober interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// Transcoder cuts and joins encoded files on local disk. Calls block until
// the output file is complete.
type Transcoder interface {
	Prober
	Trim(ctx context.Context, input, output string, start float64, duration *float64) error
	Concat(ctx context.Context, inputs []string, output string) error
}

// Publisher receives domain events. Delivery is best effort.
type Publisher interface {
	VideoCreated(ctx context.Context, e events.VideoCreated) error
	ShareCreated(ctx context.Context, e events.ShareCreated) error
}

// VideoInfo is the public view of a stored video.
type VideoInfo struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	Format          string    `json:"format"`
	SizeBytes       int64     `json:"size_bytes"`
	DurationSeconds float64   `json:"duration_seconds"`
	SourceIDs       []string  `json:"source_ids,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func newVideoInfo(v *database.Video) *VideoInfo {
	return &VideoInfo{
		ID:              v.ID,
		Filename:        v.Filename,
		Format:          v.Format,
		SizeBytes:       v.SizeBytes,
		DurationSeconds: v.DurationSeconds,
		SourceIDs:       v.SourceIDs,
		CreatedAt:       v.CreatedAt,
	}
}

// sanitizeFilename strips directory components and limits length.
func sanitizeFilename(name, fallback string) string {
	// Normalize Windows-style backslashes to forward slashes before
	// calling filepath.Base, which is platform-specific.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	if len(name) > 255 {
		ext := filepath.Ext(name)
		name = name[:255-len(ext)] + ext
	}

	if name == "" || name == "." || name == "/" {
		name = fallback
	}
	return name
}

// derivedFilename names the output of an operation after its first input,
// with the extension of the produced artifact.
func derivedFilename(source, suffix, ext string) string {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	if base == "" {
		base = "video"
	}
	return base + "_" + suffix + ext
}
