package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"reel/internal/server/metrics"
)

// HandleSource reports every storage handle that a VideoAsset references.
type HandleSource interface {
	VideoHandles(ctx context.Context) (map[string]struct{}, error)
}

// CleanupService periodically removes orphaned objects: blobs that were
// written but never recorded as a video, typically because the metadata
// insert failed after the write succeeded. Objects younger than the grace
// period are left alone so in-flight trims and merges are not disturbed.
type CleanupService struct {
	handles  HandleSource
	store    Store
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
	log      zerolog.Logger
	done     chan struct{}
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(handles HandleSource, store Store, interval, grace time.Duration, log zerolog.Logger) *CleanupService {
	return &CleanupService{
		handles:  handles,
		store:    store,
		interval: interval,
		grace:    grace,
		now:      time.Now,
		log:      log.With().Str("component", "cleanup").Logger(),
		done:     make(chan struct{}),
	}
}

// Start begins the cleanup loop in a background goroutine.
func (cs *CleanupService) Start(ctx context.Context) {
	cs.log.Info().Dur("interval", cs.interval).Dur("grace", cs.grace).Msg("cleanup service started")

	go func() {
		ticker := time.NewTicker(cs.interval)
		defer ticker.Stop()

		// Run once immediately on start
		cs.RunOnce(ctx)

		for {
			select {
			case <-ticker.C:
				cs.RunOnce(ctx)
			case <-ctx.Done():
				cs.log.Info().Msg("cleanup service stopping")
				close(cs.done)
				return
			}
		}
	}()
}

// Wait blocks until the cleanup service has fully stopped.
func (cs *CleanupService) Wait() {
	<-cs.done
}

// RunOnce performs a single sweep and returns the number of objects removed.
func (cs *CleanupService) RunOnce(ctx context.Context) int {
	objects, err := cs.store.List(ctx)
	if err != nil {
		cs.log.Error().Err(err).Msg("failed to list stored objects")
		return 0
	}

	referenced, err := cs.handles.VideoHandles(ctx)
	if err != nil {
		cs.log.Error().Err(err).Msg("failed to load video handles")
		return 0
	}

	cutoff := cs.now().Add(-cs.grace)
	var cleaned, failed int
	for _, obj := range objects {
		if _, ok := referenced[obj.Handle]; ok {
			continue
		}
		if obj.ModTime.After(cutoff) {
			continue
		}

		if err := cs.store.Delete(ctx, obj.Handle); err != nil {
			cs.log.Error().Err(err).Str("handle", obj.Handle).Msg("failed to delete orphaned object")
			failed++
			continue
		}

		cleaned++
		cs.log.Info().
			Str("handle", obj.Handle).
			Int64("size", obj.Size).
			Time("modified_at", obj.ModTime).
			Msg("deleted orphaned object")
	}

	metrics.RecordOrphansRemoved(cleaned)
	cs.log.Info().
		Int("cleaned", cleaned).
		Int("failed", failed).
		Int("total_objects", len(objects)).
		Msg("cleanup cycle complete")
	return cleaned
}
