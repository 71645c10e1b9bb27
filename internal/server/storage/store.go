package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

var (
	ErrNotExist      = errors.New("object does not exist")
	ErrInvalidHandle = errors.New("invalid storage handle")
)

// IOError wraps every failure returned by a Store.
type IOError struct {
	Op     string
	Handle string
	Err    error
}

func (e *IOError) Error() string {
	if e.Handle == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Handle, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsIOError reports whether err came from a Store.
func IsIOError(err error) bool {
	var e *IOError
	return errors.As(err, &e)
}

// Object describes a stored blob.
type Object struct {
	Handle  string
	Size    int64
	ModTime time.Time
}

// Store is the byte storage backend. Handles are slash-separated relative keys
// such as "videos/0b6c.raw". Writes replace the object atomically.
type Store interface {
	Read(ctx context.Context, handle string) ([]byte, error)
	Write(ctx context.Context, handle string, data []byte) error
	Size(ctx context.Context, handle string) (int64, error)
	Delete(ctx context.Context, handle string) error
	List(ctx context.Context) ([]Object, error)
	EnsureReady(ctx context.Context) error
}

// cleanHandle normalises a handle and rejects absolute paths and traversal.
func cleanHandle(handle string) (string, error) {
	h := strings.ReplaceAll(handle, "\\", "/")
	if h == "" || strings.HasPrefix(h, "/") {
		return "", ErrInvalidHandle
	}
	h = path.Clean(h)
	if h == "." || h == ".." || strings.HasPrefix(h, "../") {
		return "", ErrInvalidHandle
	}
	return h, nil
}
