package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reel/internal/media"
)

func TestParse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Parse()
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, ":8080", cfg.Addr())
		assert.Equal(t, BackendFileSystem, cfg.StorageBackend)
		assert.Equal(t, media.DefaultGeometry, cfg.Geometry())
		assert.Equal(t, 24*time.Hour, cfg.DefaultShareExpiry())
		assert.Equal(t, 720*time.Hour, cfg.MaxShareExpiry())
		assert.Equal(t, 3, cfg.ShareTokenAttempts)
		assert.False(t, cfg.StrictGeometry)
		assert.Equal(t, time.Hour, cfg.CleanupInterval)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("STORAGE_BACKEND", " MinIO ")
		t.Setenv("RAW_WIDTH", "640")
		t.Setenv("RAW_HEIGHT", "480")
		t.Setenv("RAW_FRAME_RATE", "25")
		t.Setenv("DEFAULT_SHARE_EXPIRY_HOURS", "48")
		t.Setenv("CLEANUP_INTERVAL", "15m")
		t.Setenv("BASE_URL", "https://reel.example.com/")

		cfg, err := Parse()
		require.NoError(t, err)

		assert.Equal(t, ":9090", cfg.Addr())
		assert.Equal(t, BackendMinio, cfg.StorageBackend)
		assert.Equal(t, media.Geometry{Width: 640, Height: 480, BytesPerPixel: 3, FrameRate: 25}, cfg.Geometry())
		assert.Equal(t, 48*time.Hour, cfg.DefaultShareExpiry())
		assert.Equal(t, 15*time.Minute, cfg.CleanupInterval)
		assert.Equal(t, "https://reel.example.com", cfg.BaseURL)
	})

	t.Run("max expiry never below default", func(t *testing.T) {
		t.Setenv("DEFAULT_SHARE_EXPIRY_HOURS", "48")
		t.Setenv("MAX_SHARE_EXPIRY_HOURS", "12")

		cfg, err := Parse()
		require.NoError(t, err)
		assert.Equal(t, 48, cfg.MaxShareExpiryHours)
	})

	t.Run("rejects zero frame rate", func(t *testing.T) {
		t.Setenv("RAW_FRAME_RATE", "0")

		_, err := Parse()
		assert.ErrorIs(t, err, media.ErrInvalidGeometry)
	})

	t.Run("rejects overflowing geometry", func(t *testing.T) {
		t.Setenv("RAW_WIDTH", "4294967296")
		t.Setenv("RAW_HEIGHT", "4294967296")
		t.Setenv("RAW_BYTES_PER_PIXEL", "1")

		_, err := Parse()
		assert.ErrorIs(t, err, media.ErrInvalidGeometry)
	})

	t.Run("rejects unknown backend", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "floppy")

		_, err := Parse()
		assert.Error(t, err)
	})

	t.Run("rejects malformed numbers", func(t *testing.T) {
		t.Setenv("RAW_WIDTH", "wide")

		_, err := Parse()
		assert.Error(t, err)
	})
}
