package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemStore_Write(t *testing.T) {
	ctx := context.Background()

	t.Run("writes file to disk", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		require.NoError(t, store.Write(ctx, "videos/abc123.raw", []byte("test content")))

		content, err := os.ReadFile(filepath.Join(dir, "videos", "abc123.raw"))
		require.NoError(t, err)
		assert.Equal(t, "test content", string(content))
	})

	t.Run("leaves no temporary files behind", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		require.NoError(t, store.Write(ctx, "a.raw", []byte(strings.Repeat("x", 1024*1024))))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "a.raw", entries[0].Name())
	})

	t.Run("rejects traversal", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		for _, handle := range []string{"../escape.raw", "/etc/passwd", "", "a/../../b"} {
			err := store.Write(ctx, handle, []byte("x"))
			require.Error(t, err, handle)
			assert.ErrorIs(t, err, ErrInvalidHandle, handle)
			assert.True(t, IsIOError(err))
		}
	})
}

func TestFileSystemStore_ReadAndSize(t *testing.T) {
	ctx := context.Background()
	store := NewFileSystemStore(t.TempDir())

	require.NoError(t, store.Write(ctx, "clip.raw", []byte("0123456789")))

	t.Run("read", func(t *testing.T) {
		data, err := store.Read(ctx, "clip.raw")
		require.NoError(t, err)
		assert.Equal(t, []byte("0123456789"), data)
	})

	t.Run("size", func(t *testing.T) {
		n, err := store.Size(ctx, "clip.raw")
		require.NoError(t, err)
		assert.Equal(t, int64(10), n)
	})

	t.Run("missing object", func(t *testing.T) {
		_, err := store.Read(ctx, "nonexistent.raw")
		assert.ErrorIs(t, err, ErrNotExist)

		_, err = store.Size(ctx, "nonexistent.raw")
		assert.ErrorIs(t, err, ErrNotExist)
	})
}

func TestFileSystemStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes existing file", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)
		require.NoError(t, store.Write(ctx, "del123.raw", []byte("data")))

		require.NoError(t, store.Delete(ctx, "del123.raw"))

		_, err := os.Stat(filepath.Join(dir, "del123.raw"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("no error for missing file", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())
		assert.NoError(t, store.Delete(ctx, "nonexistent.raw"))
	})
}

func TestFileSystemStore_List(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileSystemStore(dir)

	require.NoError(t, store.Write(ctx, "videos/a.raw", []byte("aa")))
	require.NoError(t, store.Write(ctx, "videos/b.mp4", []byte("bbb")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "videos", "c.raw.123.tmp"), []byte("partial"), 0644))

	objects, err := store.List(ctx)
	require.NoError(t, err)

	sizes := make(map[string]int64)
	for _, obj := range objects {
		sizes[obj.Handle] = obj.Size
	}
	assert.Equal(t, map[string]int64{"videos/a.raw": 2, "videos/b.mp4": 3}, sizes)
}

func TestFileSystemStore_EnsureReady(t *testing.T) {
	t.Run("creates directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "storage", "path")
		store := NewFileSystemStore(dir)

		require.NoError(t, store.EnsureReady(context.Background()))

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("succeeds if directory exists", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())
		assert.NoError(t, store.EnsureReady(context.Background()))
	})
}
