package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reel/internal/server/database"
	"reel/internal/server/events"
	"reel/internal/server/metrics"
	"reel/internal/server/storage"
	"reel/internal/server/token"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// ShareConfig configures ShareService.
type ShareConfig struct {
	DefaultExpiry time.Duration
	MaxExpiry     time.Duration
	TokenAttempts int
	BaseURL       string
	PasswordCost  int // bcrypt cost, 0 means bcrypt.DefaultCost
}

// ShareOptions are the caller-supplied parameters of a new share link.
type ShareOptions struct {
	ExpiryHours int // 0 means the configured default
	Password    string
}

// ShareInfo is returned when a share link is created.
type ShareInfo struct {
	ID          string    `json:"id"`
	VideoID     string    `json:"video_id"`
	Token       string    `json:"token"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	HasPassword bool      `json:"has_password"`
}

// ShareService issues share links and resolves their tokens. Links are never
// updated or deleted; a link stops resolving once its expiry has passed.
type ShareService struct {
	repo   ShareRepository
	store  storage.Store
	tokens token.Generator
	events Publisher
	cfg    ShareConfig
	now    func() time.Time
	log    zerolog.Logger
}

// NewShareService creates a new share service.
func NewShareService(repo ShareRepository, store storage.Store, tokens token.Generator, pub Publisher, cfg ShareConfig, log zerolog.Logger) *ShareService {
	if cfg.TokenAttempts < 1 {
		cfg.TokenAttempts = 1
	}
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcrypt.DefaultCost
	}
	return &ShareService{
		repo:   repo,
		store:  store,
		tokens: tokens,
		events: pub,
		cfg:    cfg,
		now:    time.Now,
		log:    log.With().Str("component", "share").Logger(),
	}
}

// SetClock replaces the clock used for issuing and resolving links.
func (s *ShareService) SetClock(now func() time.Time) {
	s.now = now
}

// Create issues a share link for videoID that expires opts.ExpiryHours from
// now. A token rejected by the unique constraint is replaced by a fresh one
// up to TokenAttempts times.
func (s *ShareService) Create(ctx context.Context, videoID string, opts ShareOptions) (info *ShareInfo, err error) {
	defer func() { metrics.RecordShare("create", err) }()

	expiry, err := s.expiry(opts.ExpiryHours)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetVideo(ctx, videoID); err != nil {
		if errors.Is(err, database.ErrVideoNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, videoID)
		}
		return nil, err
	}

	var passwordHash *string
	if opts.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), s.cfg.PasswordCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		h := string(hash)
		passwordHash = &h
	}

	now := s.now().UTC()
	link := &database.ShareLink{
		ID:           uuid.NewString(),
		VideoID:      videoID,
		PasswordHash: passwordHash,
		ExpiresAt:    now.Add(expiry),
		CreatedAt:    now,
	}

	if err := s.insert(ctx, link); err != nil {
		return nil, err
	}

	err = s.events.ShareCreated(ctx, events.ShareCreated{
		ID:        link.ID,
		VideoID:   link.VideoID,
		Protected: passwordHash != nil,
		ExpiresAt: link.ExpiresAt,
		CreatedAt: link.CreatedAt,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("id", link.ID).Msg("failed to publish share event")
	}

	s.log.Info().
		Str("id", link.ID).
		Str("video_id", videoID).
		Time("expires_at", link.ExpiresAt).
		Bool("protected", passwordHash != nil).
		Msg("share link created")

	return &ShareInfo{
		ID:          link.ID,
		VideoID:     link.VideoID,
		Token:       link.Token,
		URL:         fmt.Sprintf("%s/s/%s", s.cfg.BaseURL, link.Token),
		ExpiresAt:   link.ExpiresAt,
		CreatedAt:   link.CreatedAt,
		HasPassword: passwordHash != nil,
	}, nil
}

func (s *ShareService) insert(ctx context.Context, link *database.ShareLink) error {
	for attempt := 1; attempt <= s.cfg.TokenAttempts; attempt++ {
		tok, err := s.tokens.Generate()
		if err != nil {
			return fmt.Errorf("failed to generate share token: %w", err)
		}
		link.Token = tok

		err = s.repo.CreateShareLink(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, database.ErrTokenCollision) {
			return err
		}

		metrics.RecordTokenCollision()
		ev := s.log.Warn().Int("attempt", attempt)
		if issued, err := token.Timestamp(tok); err == nil {
			ev = ev.Time("issued_at", issued)
		}
		ev.Msg("share token collision, retrying")
	}
	return fmt.Errorf("failed to issue a unique share token after %d attempts: %w", s.cfg.TokenAttempts, database.ErrTokenCollision)
}

func (s *ShareService) expiry(hours int) (time.Duration, error) {
	switch {
	case hours < 0:
		return 0, fmt.Errorf("%w: %d hours", ErrInvalidExpiry, hours)
	case hours == 0:
		return s.cfg.DefaultExpiry, nil
	}
	d := time.Duration(hours) * time.Hour
	if s.cfg.MaxExpiry > 0 && d > s.cfg.MaxExpiry {
		return 0, fmt.Errorf("%w: %d hours exceeds the maximum of %.0f", ErrInvalidExpiry, hours, s.cfg.MaxExpiry.Hours())
	}
	return d, nil
}

// Resolve returns the video behind token. Unknown and expired tokens both
// fail with ErrNotFoundOrExpired. The password is checked only after the
// token resolved.
func (s *ShareService) Resolve(ctx context.Context, tok, password string) (info *VideoInfo, err error) {
	defer func() { metrics.RecordShare("resolve", err) }()

	v, err := s.resolve(ctx, tok, password)
	if err != nil {
		return nil, err
	}
	return newVideoInfo(v), nil
}

// Open resolves token like Resolve and returns the video's bytes.
func (s *ShareService) Open(ctx context.Context, tok, password string) (info *VideoInfo, data []byte, err error) {
	defer func() { metrics.RecordShare("open", err) }()

	v, err := s.resolve(ctx, tok, password)
	if err != nil {
		return nil, nil, err
	}
	data, err = s.store.Read(ctx, v.StorageHandle)
	if err != nil {
		return nil, nil, err
	}
	return newVideoInfo(v), data, nil
}

func (s *ShareService) resolve(ctx context.Context, tok, password string) (*database.Video, error) {
	if tok == "" {
		return nil, ErrNotFoundOrExpired
	}

	link, v, err := s.repo.FindActiveShareLink(ctx, tok, s.now().UTC())
	if err != nil {
		if errors.Is(err, database.ErrShareLinkNotFound) {
			return nil, ErrNotFoundOrExpired
		}
		return nil, err
	}

	if link.PasswordHash != nil {
		if password == "" {
			return nil, ErrPasswordRequired
		}
		if err := bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidPassword
		}
	}
	return v, nil
}
