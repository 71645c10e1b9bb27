package database

import "time"

// Video is a stored video asset. Rows are append-only: trims and merges insert
// new rows and never modify existing ones.
type Video struct {
	ID              string
	Filename        string
	StorageHandle   string
	Format          string
	SizeBytes       int64
	DurationSeconds float64
	SourceIDs       []string // inputs of a trim or merge, empty for uploads
	CreatedAt       time.Time
}

// ShareLink grants time-limited access to a video through an opaque token.
// Links are immutable once created.
type ShareLink struct {
	ID           string
	VideoID      string
	Token        string
	PasswordHash *string // nil when no password set
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// Stats holds aggregate server statistics.
type Stats struct {
	TotalVideos      int64
	TotalBytes       int64
	TotalSeconds     float64
	TotalShareLinks  int64
	ActiveShareLinks int64
}
