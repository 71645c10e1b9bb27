package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrVideoNotFound     = errors.New("video not found")
	ErrShareLinkNotFound = errors.New("share link not found")
	ErrTokenCollision    = errors.New("share token already exists")
)

const (
	uniqueViolation      = "23505"
	shareTokenConstraint = "share_links_token_key"
)

const videoColumns = `id, filename, storage_handle, format, size_bytes, duration_seconds, source_ids, created_at`

// Repository is the persistence store for videos and share links.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateVideo inserts a new video record.
func (r *Repository) CreateVideo(ctx context.Context, v *Video) error {
	sourceIDs := v.SourceIDs
	if sourceIDs == nil {
		sourceIDs = []string{}
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		v.ID,
		v.Filename,
		v.StorageHandle,
		v.Format,
		v.SizeBytes,
		v.DurationSeconds,
		sourceIDs,
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

// GetVideo retrieves a video by its ID.
func (r *Repository) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return v, nil
}

// CreateShareLink inserts a new share link. A duplicate token is reported as
// ErrTokenCollision.
func (r *Repository) CreateShareLink(ctx context.Context, l *ShareLink) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO share_links (id, video_id, token, password_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		l.ID,
		l.VideoID,
		l.Token,
		l.PasswordHash,
		l.ExpiresAt,
		l.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == shareTokenConstraint {
			return ErrTokenCollision
		}
		return fmt.Errorf("failed to create share link: %w", err)
	}
	return nil
}

// FindActiveShareLink returns the link for token together with its video,
// provided the link expires strictly after now. Unknown and expired tokens
// both yield ErrShareLinkNotFound.
func (r *Repository) FindActiveShareLink(ctx context.Context, token string, now time.Time) (*ShareLink, *Video, error) {
	l := &ShareLink{}
	v := &Video{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT s.id, s.video_id, s.token, s.password_hash, s.expires_at, s.created_at,
		       v.id, v.filename, v.storage_handle, v.format, v.size_bytes, v.duration_seconds, v.source_ids, v.created_at
		FROM share_links s
		JOIN videos v ON v.id = s.video_id
		WHERE s.token = $1 AND s.expires_at > $2
	`, token, now).Scan(
		&l.ID,
		&l.VideoID,
		&l.Token,
		&l.PasswordHash,
		&l.ExpiresAt,
		&l.CreatedAt,
		&v.ID,
		&v.Filename,
		&v.StorageHandle,
		&v.Format,
		&v.SizeBytes,
		&v.DurationSeconds,
		&v.SourceIDs,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrShareLinkNotFound
		}
		return nil, nil, fmt.Errorf("failed to find share link: %w", err)
	}
	return l, v, nil
}

// VideoHandles returns the storage handle of every recorded video.
func (r *Repository) VideoHandles(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT storage_handle FROM videos`)
	if err != nil {
		return nil, fmt.Errorf("failed to query video handles: %w", err)
	}
	defer rows.Close()

	handles := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan video handle: %w", err)
		}
		handles[h] = struct{}{}
	}
	return handles, rows.Err()
}

// GetStats returns aggregate server statistics as of now.
func (r *Repository) GetStats(ctx context.Context, now time.Time) (*Stats, error) {
	stats := &Stats{}

	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM videos),
			(SELECT COALESCE(SUM(size_bytes), 0) FROM videos),
			(SELECT COALESCE(SUM(duration_seconds), 0) FROM videos),
			(SELECT COUNT(*) FROM share_links),
			(SELECT COUNT(*) FROM share_links WHERE expires_at > $1)
	`, now).Scan(
		&stats.TotalVideos,
		&stats.TotalBytes,
		&stats.TotalSeconds,
		&stats.TotalShareLinks,
		&stats.ActiveShareLinks,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}

func scanVideo(row pgx.Row) (*Video, error) {
	v := &Video{}
	err := row.Scan(
		&v.ID,
		&v.Filename,
		&v.StorageHandle,
		&v.Format,
		&v.SizeBytes,
		&v.DurationSeconds,
		&v.SourceIDs,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}
