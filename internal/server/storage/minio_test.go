package storage

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMinioStore(t *testing.T, objects map[string][]byte) (*MinioStore, *fakeS3) {
	t.Helper()
	fake, srv := newFakeS3(t, objects)
	store, err := NewMinioStore(MinioOptions{
		Endpoint:  srv.Listener.Addr().String(),
		AccessKey: "minio",
		SecretKey: "minio-secret",
		Bucket:    testBucket,
		Region:    "us-east-1",
	}, zerolog.Nop())
	require.NoError(t, err)
	return store, fake
}

func TestMinioStore(t *testing.T) {
	ctx := context.Background()

	t.Run("ensure ready finds the bucket", func(t *testing.T) {
		store, _ := newTestMinioStore(t, map[string][]byte{})
		require.NoError(t, store.EnsureReady(ctx))
	})

	t.Run("read and size", func(t *testing.T) {
		store, _ := newTestMinioStore(t, map[string][]byte{"videos/a.raw": []byte("frames")})

		data, err := store.Read(ctx, "videos/a.raw")
		require.NoError(t, err)
		assert.Equal(t, []byte("frames"), data)

		n, err := store.Size(ctx, "videos/a.raw")
		require.NoError(t, err)
		assert.Equal(t, int64(6), n)
	})

	t.Run("missing object is ErrNotExist", func(t *testing.T) {
		store, _ := newTestMinioStore(t, map[string][]byte{})

		_, err := store.Read(ctx, "videos/gone.raw")
		require.ErrorIs(t, err, ErrNotExist)
		assert.True(t, IsIOError(err))

		_, err = store.Size(ctx, "videos/gone.raw")
		require.ErrorIs(t, err, ErrNotExist)
		assert.True(t, IsIOError(err))
	})

	t.Run("list gathers every page", func(t *testing.T) {
		store, fake := newTestMinioStore(t, map[string][]byte{
			"videos/a.raw": []byte("aa"),
			"videos/b.mp4": []byte("bbbb"),
		})

		objects, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, objects, 2)
		assert.Equal(t, "videos/a.raw", objects[0].Handle)
		assert.Equal(t, int64(2), objects[0].Size)
		assert.Equal(t, "videos/b.mp4", objects[1].Handle)
		assert.Equal(t, int64(4), objects[1].Size)
		assert.True(t, objectTime.Equal(objects[1].ModTime))
		assert.Equal(t, 2, fake.requestCount())
	})

	t.Run("delete removes the object", func(t *testing.T) {
		store, _ := newTestMinioStore(t, map[string][]byte{"videos/a.raw": []byte("aa")})

		require.NoError(t, store.Delete(ctx, "videos/a.raw"))
		_, err := store.Read(ctx, "videos/a.raw")
		assert.ErrorIs(t, err, ErrNotExist)
	})

	t.Run("rejects traversal without a request", func(t *testing.T) {
		store, fake := newTestMinioStore(t, map[string][]byte{})

		for _, h := range []string{"../etc/passwd", "/abs.raw", ""} {
			_, err := store.Read(ctx, h)
			require.ErrorIs(t, err, ErrInvalidHandle, h)
			assert.True(t, IsIOError(err))
		}
		assert.Zero(t, fake.requestCount())
	})
}
