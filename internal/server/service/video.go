package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"reel/internal/media"
	"reel/internal/server/database"
	"reel/internal/server/events"
	"reel/internal/server/metrics"
	"reel/internal/server/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	opIngest = "ingest"
	opTrim   = "trim"
	opMerge  = "merge"
)

// VideoOptions configures VideoService.
type VideoOptions struct {
	Geometry       media.Geometry
	StrictGeometry bool
	MaxFileSize    int64
	MaxDuration    float64 // seconds, 0 means unlimited
	WorkDir        string  // scratch space for the transcoder, "" for the OS default
}

// VideoService ingests videos and derives new ones by trimming and merging.
// Source videos are only ever read; every result is written to a fresh
// storage handle and recorded as a new row.
type VideoService struct {
	repo   VideoRepository
	store  storage.Store
	tx     Transcoder
	events Publisher
	opts   VideoOptions
	now    func() time.Time
	log    zerolog.Logger
}

// NewVideoService creates a new video service.
func NewVideoService(repo VideoRepository, store storage.Store, tx Transcoder, pub Publisher, opts VideoOptions, log zerolog.Logger) *VideoService {
	return &VideoService{
		repo:   repo,
		store:  store,
		tx:     tx,
		events: pub,
		opts:   opts,
		now:    time.Now,
		log:    log.With().Str("component", "video").Logger(),
	}
}

// SetClock replaces the clock used for creation timestamps.
func (s *VideoService) SetClock(now func() time.Time) {
	s.now = now
}

// Ingest stores an uploaded video. Raw buffers are measured from their size;
// encoded containers are probed after they are written. An upload over the
// duration limit is deleted again before ErrDurationExceeded is returned.
func (s *VideoService) Ingest(ctx context.Context, filename string, data io.Reader, size int64) (info *VideoInfo, err error) {
	started := time.Now()
	format := ""
	defer func() {
		metrics.RecordOperation(opIngest, formatLabel(format), err, time.Since(started))
	}()

	if s.opts.MaxFileSize > 0 && size > s.opts.MaxFileSize {
		return nil, ErrFileTooLarge
	}

	r := data
	if s.opts.MaxFileSize > 0 {
		r = io.LimitReader(data, s.opts.MaxFileSize+1)
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload data: %w", err)
	}
	if s.opts.MaxFileSize > 0 && int64(len(buf)) > s.opts.MaxFileSize {
		return nil, ErrFileTooLarge
	}
	if len(buf) == 0 {
		return nil, ErrEmptyUpload
	}

	format, ext := media.DetectFormat(buf)
	handle := newHandle(ext)
	if err := s.store.Write(ctx, handle, buf); err != nil {
		return nil, err
	}

	duration, err := s.measure(ctx, format, ext, buf)
	if err == nil && s.opts.MaxDuration > 0 && duration > s.opts.MaxDuration {
		err = fmt.Errorf("%w: %.3fs exceeds %.3fs", ErrDurationExceeded, duration, s.opts.MaxDuration)
	}
	if err != nil {
		s.discard(ctx, handle)
		return nil, err
	}

	return s.record(ctx, opIngest, handle, &database.Video{
		Filename:        sanitizeFilename(filename, "video"+ext),
		Format:          format,
		SizeBytes:       int64(len(buf)),
		DurationSeconds: duration,
	})
}

// Get returns the metadata of a stored video.
func (s *VideoService) Get(ctx context.Context, id string) (*VideoInfo, error) {
	v, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return newVideoInfo(v), nil
}

// EstimateDuration measures a stored video from its bytes rather than the
// recorded metadata: raw videos from their stored size, encoded ones by
// probing the container.
func (s *VideoService) EstimateDuration(ctx context.Context, id string) (float64, error) {
	v, err := s.lookup(ctx, id)
	if err != nil {
		return 0, err
	}

	if media.IsRaw(v.Format) {
		size, err := s.store.Size(ctx, v.StorageHandle)
		if err != nil {
			return 0, err
		}
		return media.EstimateRaw(size, s.opts.Geometry)
	}

	data, err := s.store.Read(ctx, v.StorageHandle)
	if err != nil {
		return 0, err
	}
	return s.measure(ctx, v.Format, filepath.Ext(v.StorageHandle), data)
}

// Trim cuts w from the video id and stores the remainder as a new video.
// Raw trims are frame exact; encoded trims are delegated to the transcoder
// and the result is re-probed.
func (s *VideoService) Trim(ctx context.Context, id string, w media.TrimWindow) (info *VideoInfo, err error) {
	started := time.Now()
	format := ""
	defer func() {
		metrics.RecordOperation(opTrim, formatLabel(format), err, time.Since(started))
	}()

	src, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	format = src.Format

	if !media.IsRaw(src.Format) {
		return s.trimEncoded(ctx, src, w)
	}

	data, err := s.store.Read(ctx, src.StorageHandle)
	if err != nil {
		return nil, err
	}
	res, err := media.Trim(data, s.opts.Geometry, w)
	if err != nil {
		return nil, err
	}

	return s.persist(ctx, opTrim, res.Data, media.RawExtension, &database.Video{
		Filename:        derivedFilename(src.Filename, "trimmed", media.RawExtension),
		Format:          media.RawFormat,
		DurationSeconds: res.Duration,
		SourceIDs:       []string{src.ID},
	})
}

func (s *VideoService) trimEncoded(ctx context.Context, src *database.Video, w media.TrimWindow) (*VideoInfo, error) {
	start, duration, err := encodedWindow(w, src.DurationSeconds)
	if err != nil {
		return nil, err
	}

	dir, done, err := s.workspace()
	if err != nil {
		return nil, err
	}
	defer done()

	ext := filepath.Ext(src.StorageHandle)
	in, err := s.materialise(ctx, dir, "input"+ext, src.StorageHandle)
	if err != nil {
		return nil, err
	}
	out := filepath.Join(dir, "output"+ext)
	if err := s.tx.Trim(ctx, in, out, start, duration); err != nil {
		return nil, err
	}

	return s.persistEncoded(ctx, opTrim, out, ext, &database.Video{
		Filename:  derivedFilename(src.Filename, "trimmed", ext),
		Format:    src.Format,
		SourceIDs: []string{src.ID},
	})
}

// encodedWindow converts w into a transcoder start offset and an optional
// output duration for a source of total seconds.
func encodedWindow(w media.TrimWindow, total float64) (float64, *float64, error) {
	start, end := w.Start(), w.End()
	if !validSeconds(start) || !validSeconds(end) {
		return 0, nil, fmt.Errorf("%w: %s", ErrInvalidRange, w)
	}

	remaining := total - start - end
	if start >= total || remaining <= 0 {
		return 0, nil, fmt.Errorf("%w: %s leaves nothing of %.3fs", ErrInvalidRange, w, total)
	}

	switch w.Kind() {
	case media.WindowFromEnd, media.WindowBoth:
		return start, &remaining, nil
	default:
		return start, nil, nil
	}
}

func validSeconds(s float64) bool {
	return s >= 0 && !math.IsInf(s, 1)
}

// Merge concatenates the videos ids in order into a new video. Raw and
// encoded inputs cannot be mixed.
func (s *VideoService) Merge(ctx context.Context, ids []string) (info *VideoInfo, err error) {
	started := time.Now()
	format := ""
	defer func() {
		metrics.RecordOperation(opMerge, formatLabel(format), err, time.Since(started))
	}()

	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: merge needs at least two videos, got %d", ErrEmptyInput, len(ids))
	}

	sources := make([]*database.Video, len(ids))
	for i, id := range ids {
		if sources[i], err = s.lookup(ctx, id); err != nil {
			return nil, err
		}
	}
	format = sources[0].Format

	for i, src := range sources[1:] {
		switch {
		case media.IsRaw(src.Format) != media.IsRaw(format):
			return nil, &media.GeometryMismatchError{Index: i + 1, Reason: "raw and encoded videos cannot be merged"}
		case src.Format != format:
			return nil, &media.GeometryMismatchError{Index: i + 1, Reason: fmt.Sprintf("container %s differs from %s", src.Format, format)}
		}
	}

	if media.IsRaw(format) {
		return s.mergeRaw(ctx, sources)
	}
	return s.mergeEncoded(ctx, sources)
}

func (s *VideoService) mergeRaw(ctx context.Context, sources []*database.Video) (*VideoInfo, error) {
	buffers := make([][]byte, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			data, err := s.store.Read(gctx, src.StorageHandle)
			if err != nil {
				return err
			}
			if s.opts.StrictGeometry {
				if err := media.CheckFrameAligned(i, int64(len(data)), s.opts.Geometry); err != nil {
					return err
				}
			}
			buffers[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res, err := media.Merge(buffers, s.opts.Geometry)
	if err != nil {
		return nil, err
	}

	return s.persist(ctx, opMerge, res.Data, media.RawExtension, &database.Video{
		Filename:        derivedFilename(sources[0].Filename, "merged", media.RawExtension),
		Format:          media.RawFormat,
		DurationSeconds: res.Duration,
		SourceIDs:       sourceIDs(sources),
	})
}

func (s *VideoService) mergeEncoded(ctx context.Context, sources []*database.Video) (*VideoInfo, error) {
	dir, done, err := s.workspace()
	if err != nil {
		return nil, err
	}
	defer done()

	ext := filepath.Ext(sources[0].StorageHandle)
	inputs := make([]string, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			path, err := s.materialise(gctx, dir, fmt.Sprintf("input-%03d%s", i, ext), src.StorageHandle)
			inputs[i] = path
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := filepath.Join(dir, "output"+ext)
	if err := s.tx.Concat(ctx, inputs, out); err != nil {
		return nil, err
	}

	return s.persistEncoded(ctx, opMerge, out, ext, &database.Video{
		Filename:  derivedFilename(sources[0].Filename, "merged", ext),
		Format:    sources[0].Format,
		SourceIDs: sourceIDs(sources),
	})
}

// Stats returns aggregate server statistics.
func (s *VideoService) Stats(ctx context.Context) (*database.Stats, error) {
	return s.repo.GetStats(ctx, s.now())
}

func (s *VideoService) lookup(ctx context.Context, id string) (*database.Video, error) {
	v, err := s.repo.GetVideo(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrVideoNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return v, nil
}

// measure returns the duration of an upload that has not been recorded yet.
func (s *VideoService) measure(ctx context.Context, format, ext string, data []byte) (float64, error) {
	if media.IsRaw(format) {
		return media.EstimateRaw(int64(len(data)), s.opts.Geometry)
	}

	dir, done, err := s.workspace()
	if err != nil {
		return 0, err
	}
	defer done()

	path := filepath.Join(dir, "probe"+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return 0, fmt.Errorf("failed to stage video for probing: %w", err)
	}
	return s.tx.Probe(ctx, path)
}

// persistEncoded probes a transcoder output and stores it.
func (s *VideoService) persistEncoded(ctx context.Context, op, path, ext string, v *database.Video) (*VideoInfo, error) {
	duration, err := s.tx.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcoder output: %w", err)
	}
	v.DurationSeconds = duration
	return s.persist(ctx, op, data, ext, v)
}

// persist writes data to a fresh handle and records it.
func (s *VideoService) persist(ctx context.Context, op string, data []byte, ext string, v *database.Video) (*VideoInfo, error) {
	handle := newHandle(ext)
	if err := s.store.Write(ctx, handle, data); err != nil {
		return nil, err
	}
	v.SizeBytes = int64(len(data))
	return s.record(ctx, op, handle, v)
}

// record inserts the row for an artifact already written at handle. If the
// insert fails the artifact is deleted again.
func (s *VideoService) record(ctx context.Context, op, handle string, v *database.Video) (*VideoInfo, error) {
	v.ID = uuid.NewString()
	v.StorageHandle = handle
	v.CreatedAt = s.now().UTC()

	if err := s.repo.CreateVideo(ctx, v); err != nil {
		s.discard(ctx, handle)
		return nil, fmt.Errorf("failed to record video: %w", err)
	}
	metrics.RecordBytesWritten(op, v.SizeBytes)

	err := s.events.VideoCreated(ctx, events.VideoCreated{
		ID:              v.ID,
		Operation:       op,
		Filename:        v.Filename,
		Format:          v.Format,
		SizeBytes:       v.SizeBytes,
		DurationSeconds: v.DurationSeconds,
		SourceIDs:       v.SourceIDs,
		CreatedAt:       v.CreatedAt,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("id", v.ID).Msg("failed to publish video event")
	}

	s.log.Info().
		Str("op", op).
		Str("id", v.ID).
		Str("format", v.Format).
		Int64("size", v.SizeBytes).
		Float64("duration", v.DurationSeconds).
		Strs("sources", v.SourceIDs).
		Msg("video created")

	return newVideoInfo(v), nil
}

// discard deletes an artifact that will not be recorded. Failures are left
// for the cleanup service.
func (s *VideoService) discard(ctx context.Context, handle string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), handle); err != nil {
		s.log.Error().Err(err).Str("handle", handle).Msg("failed to delete unrecorded artifact")
	}
}

func (s *VideoService) materialise(ctx context.Context, dir, name, handle string) (string, error) {
	data, err := s.store.Read(ctx, handle)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", handle, err)
	}
	return path, nil
}

func (s *VideoService) workspace() (string, func(), error) {
	dir, err := os.MkdirTemp(s.opts.WorkDir, "reel-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			s.log.Warn().Err(err).Str("dir", dir).Msg("failed to remove work dir")
		}
	}, nil
}

func newHandle(ext string) string {
	return "videos/" + uuid.NewString() + ext
}

func sourceIDs(sources []*database.Video) []string {
	ids := make([]string, len(sources))
	for i, src := range sources {
		ids[i] = src.ID
	}
	return ids
}

func formatLabel(format string) string {
	switch {
	case format == "":
		return "unknown"
	case media.IsRaw(format):
		return media.RawFormat
	default:
		return "encoded"
	}
}
