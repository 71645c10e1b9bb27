package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const tempSuffix = ".tmp"

// FileSystemStore stores objects as files under a base directory.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem storage backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureReady creates the storage directory if it doesn't exist.
func (s *FileSystemStore) EnsureReady(ctx context.Context) error {
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return &IOError{Op: "init", Err: fmt.Errorf("failed to create storage directory %s: %w", s.basePath, err)}
	}
	return nil
}

// Write stores data under handle. The bytes go to a temporary file first and
// are renamed into place, so readers never observe a partial object.
func (s *FileSystemStore) Write(ctx context.Context, handle string, data []byte) error {
	filePath, err := s.filePath(handle)
	if err != nil {
		return &IOError{Op: "write", Handle: handle, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return &IOError{Op: "write", Handle: handle, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), filepath.Base(filePath)+".*"+tempSuffix)
	if err != nil {
		return &IOError{Op: "write", Handle: handle, Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOError{Op: "write", Handle: handle, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "write", Handle: handle, Err: err}
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "write", Handle: handle, Err: err}
	}
	return nil
}

// Read returns the full contents of an object.
func (s *FileSystemStore) Read(ctx context.Context, handle string) ([]byte, error) {
	filePath, err := s.filePath(handle)
	if err != nil {
		return nil, &IOError{Op: "read", Handle: handle, Err: err}
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &IOError{Op: "read", Handle: handle, Err: notExist(err)}
	}
	return data, nil
}

// Size returns the stored length of an object in bytes.
func (s *FileSystemStore) Size(ctx context.Context, handle string) (int64, error) {
	filePath, err := s.filePath(handle)
	if err != nil {
		return 0, &IOError{Op: "size", Handle: handle, Err: err}
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return 0, &IOError{Op: "size", Handle: handle, Err: notExist(err)}
	}
	return info.Size(), nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (s *FileSystemStore) Delete(ctx context.Context, handle string) error {
	filePath, err := s.filePath(handle)
	if err != nil {
		return &IOError{Op: "delete", Handle: handle, Err: err}
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return &IOError{Op: "delete", Handle: handle, Err: err}
	}
	return nil
}

// List walks the base directory and returns every stored object. Temporary
// files from in-flight writes are skipped.
func (s *FileSystemStore) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	err := filepath.WalkDir(s.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, tempSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return err
		}
		objects = append(objects, Object{
			Handle:  filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, &IOError{Op: "list", Err: err}
	}
	return objects, nil
}

func (s *FileSystemStore) filePath(handle string) (string, error) {
	h, err := cleanHandle(handle)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(h)), nil
}

func notExist(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrNotExist, err)
	}
	return err
}
