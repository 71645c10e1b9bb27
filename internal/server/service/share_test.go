package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"reel/internal/server/database"
	"reel/internal/server/storage"
	"reel/internal/server/token"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var shareEpoch = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

type shareFixture struct {
	svc    *ShareService
	repo   *fakeRepo
	store  *storage.MemoryStore
	clock  *fakeClock
	events *fakePublisher
	video  *database.Video
}

func newShareFixture(t *testing.T) *shareFixture {
	t.Helper()
	f := &shareFixture{
		repo:   newFakeRepo(),
		store:  storage.NewMemoryStore(),
		clock:  &fakeClock{t: shareEpoch},
		events: &fakePublisher{},
	}

	f.video = &database.Video{
		ID:              "video-1",
		Filename:        "clip.raw",
		StorageHandle:   "videos/video-1.raw",
		Format:          "raw",
		SizeBytes:       200,
		DurationSeconds: 5,
		CreatedAt:       shareEpoch,
	}
	require.NoError(t, f.repo.CreateVideo(context.Background(), f.video))
	require.NoError(t, f.store.Write(context.Background(), f.video.StorageHandle, rawSeconds(5, 0x11)))

	f.svc = NewShareService(f.repo, f.store, &sequenceTokens{}, f.events, ShareConfig{
		DefaultExpiry: 24 * time.Hour,
		MaxExpiry:     720 * time.Hour,
		TokenAttempts: 3,
		BaseURL:       "https://reel.example",
		PasswordCost:  bcrypt.MinCost,
	}, zerolog.Nop())
	f.svc.SetClock(f.clock.Now)
	return f
}

func TestShareExpiry(t *testing.T) {
	ctx := context.Background()
	f := newShareFixture(t)

	link, err := f.svc.Create(ctx, f.video.ID, ShareOptions{ExpiryHours: 24})
	require.NoError(t, err)
	assert.Equal(t, shareEpoch.Add(24*time.Hour), link.ExpiresAt)

	t.Run("resolves just before expiry", func(t *testing.T) {
		f.clock.Set(shareEpoch.Add(23*time.Hour + 59*time.Minute))
		info, err := f.svc.Resolve(ctx, link.Token, "")
		require.NoError(t, err)
		assert.Equal(t, f.video.ID, info.ID)
	})

	t.Run("fails at the expiry instant", func(t *testing.T) {
		f.clock.Set(shareEpoch.Add(24 * time.Hour))
		_, err := f.svc.Resolve(ctx, link.Token, "")
		require.ErrorIs(t, err, ErrNotFoundOrExpired)
	})

	t.Run("fails after expiry", func(t *testing.T) {
		f.clock.Set(shareEpoch.Add(24*time.Hour + time.Second))
		_, err := f.svc.Resolve(ctx, link.Token, "")
		require.ErrorIs(t, err, ErrNotFoundOrExpired)
	})
}

func TestShareCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		f := newShareFixture(t)

		link, err := f.svc.Create(ctx, f.video.ID, ShareOptions{})
		require.NoError(t, err)
		assert.Equal(t, "tok-1", link.Token)
		assert.Equal(t, "https://reel.example/s/tok-1", link.URL)
		assert.Equal(t, shareEpoch, link.CreatedAt)
		assert.Equal(t, shareEpoch.Add(24*time.Hour), link.ExpiresAt)
		assert.False(t, link.HasPassword)

		require.Len(t, f.events.shares, 1)
		assert.Equal(t, link.ID, f.events.shares[0].ID)
	})

	t.Run("custom expiry", func(t *testing.T) {
		f := newShareFixture(t)
		link, err := f.svc.Create(ctx, f.video.ID, ShareOptions{ExpiryHours: 48})
		require.NoError(t, err)
		assert.Equal(t, shareEpoch.Add(48*time.Hour), link.ExpiresAt)
	})

	t.Run("invalid expiry", func(t *testing.T) {
		f := newShareFixture(t)
		for _, hours := range []int{-1, 721} {
			_, err := f.svc.Create(ctx, f.video.ID, ShareOptions{ExpiryHours: hours})
			require.ErrorIs(t, err, ErrInvalidExpiry, "hours=%d", hours)
		}
		assert.Zero(t, f.repo.shareLinkInsert)
	})

	t.Run("unknown video", func(t *testing.T) {
		f := newShareFixture(t)
		_, err := f.svc.Create(ctx, "missing", ShareOptions{})
		require.ErrorIs(t, err, ErrNotFound)
		assert.Zero(t, f.repo.shareLinkInsert)
	})

	t.Run("retries token collisions", func(t *testing.T) {
		f := newShareFixture(t)
		f.repo.collisions = 2

		link, err := f.svc.Create(ctx, f.video.ID, ShareOptions{})
		require.NoError(t, err)
		assert.Equal(t, "tok-3", link.Token)
		assert.Equal(t, 3, f.repo.shareLinkInsert)
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		f := newShareFixture(t)
		f.repo.collisions = 3

		_, err := f.svc.Create(ctx, f.video.ID, ShareOptions{})
		require.ErrorIs(t, err, database.ErrTokenCollision)
		assert.Equal(t, 3, f.repo.shareLinkInsert)
		assert.Empty(t, f.events.shares)
	})

	t.Run("collision log carries the token issue time", func(t *testing.T) {
		f := newShareFixture(t)
		f.repo.collisions = 1

		var logs bytes.Buffer
		svc := NewShareService(f.repo, f.store, token.NewULIDGenerator(), f.events, ShareConfig{
			DefaultExpiry: 24 * time.Hour,
			TokenAttempts: 2,
			PasswordCost:  bcrypt.MinCost,
		}, zerolog.New(&logs))

		_, err := svc.Create(ctx, f.video.ID, ShareOptions{})
		require.NoError(t, err)
		assert.Contains(t, logs.String(), "share token collision")
		assert.Contains(t, logs.String(), `"issued_at"`)
	})

	t.Run("links are independent", func(t *testing.T) {
		f := newShareFixture(t)
		a, err := f.svc.Create(ctx, f.video.ID, ShareOptions{})
		require.NoError(t, err)
		b, err := f.svc.Create(ctx, f.video.ID, ShareOptions{})
		require.NoError(t, err)
		assert.NotEqual(t, a.Token, b.Token)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestShareResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown and empty tokens", func(t *testing.T) {
		f := newShareFixture(t)
		for _, tok := range []string{"", "nope"} {
			_, err := f.svc.Resolve(ctx, tok, "")
			require.ErrorIs(t, err, ErrNotFoundOrExpired)
		}
	})

	t.Run("password protected", func(t *testing.T) {
		f := newShareFixture(t)
		link, err := f.svc.Create(ctx, f.video.ID, ShareOptions{Password: "hunter2"})
		require.NoError(t, err)
		assert.True(t, link.HasPassword)

		stored := f.repo.links[link.Token]
		require.NotNil(t, stored.PasswordHash)
		assert.False(t, strings.Contains(*stored.PasswordHash, "hunter2"))

		_, err = f.svc.Resolve(ctx, link.Token, "")
		require.ErrorIs(t, err, ErrPasswordRequired)

		_, err = f.svc.Resolve(ctx, link.Token, "wrong")
		require.ErrorIs(t, err, ErrInvalidPassword)

		info, err := f.svc.Resolve(ctx, link.Token, "hunter2")
		require.NoError(t, err)
		assert.Equal(t, f.video.ID, info.ID)
	})

	t.Run("expired protected link reports expiry, not the password", func(t *testing.T) {
		f := newShareFixture(t)
		link, err := f.svc.Create(ctx, f.video.ID, ShareOptions{ExpiryHours: 1, Password: "hunter2"})
		require.NoError(t, err)

		f.clock.Set(shareEpoch.Add(2 * time.Hour))
		_, err = f.svc.Resolve(ctx, link.Token, "")
		require.ErrorIs(t, err, ErrNotFoundOrExpired)
	})

	t.Run("open returns the bytes", func(t *testing.T) {
		f := newShareFixture(t)
		link, err := f.svc.Create(ctx, f.video.ID, ShareOptions{})
		require.NoError(t, err)

		info, data, err := f.svc.Open(ctx, link.Token, "")
		require.NoError(t, err)
		assert.Equal(t, "clip.raw", info.Filename)
		assert.Equal(t, rawSeconds(5, 0x11), data)
	})

	t.Run("open with a missing object is an IO error", func(t *testing.T) {
		f := newShareFixture(t)
		link, err := f.svc.Create(ctx, f.video.ID, ShareOptions{})
		require.NoError(t, err)
		require.NoError(t, f.store.Delete(ctx, f.video.StorageHandle))

		_, _, err = f.svc.Open(ctx, link.Token, "")
		require.ErrorIs(t, err, storage.ErrNotExist)
		assert.True(t, storage.IsIOError(err))
	})
}
