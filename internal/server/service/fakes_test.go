package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"reel/internal/media"
	"reel/internal/server/database"
	"reel/internal/server/events"
	"reel/internal/server/transcode"
)

// testGeometry has 4-byte frames at 10 fps, so one second is 40 bytes.
var testGeometry = media.Geometry{Width: 2, Height: 2, BytesPerPixel: 1, FrameRate: 10}

func rawSeconds(seconds int, fill byte) []byte {
	return bytes.Repeat([]byte{fill}, seconds*int(testGeometry.BytesPerSecond()))
}

// mp4Bytes returns an mp4-sniffable buffer of n bytes.
func mp4Bytes(n int) []byte {
	head := []byte{0x00, 0x00, 0x00, 0x18}
	head = append(head, []byte("ftypmp42")...)
	head = append(head, 0x00, 0x00, 0x00, 0x00)
	head = append(head, []byte("mp42isom")...)
	return append(head, make([]byte, n-len(head))...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fakeRepo struct {
	mu              sync.Mutex
	videos          map[string]*database.Video
	links           map[string]*database.ShareLink
	createVideoErr  error
	collisions      int
	shareLinkInsert int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		videos: make(map[string]*database.Video),
		links:  make(map[string]*database.ShareLink),
	}
}

func (r *fakeRepo) CreateVideo(ctx context.Context, v *database.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createVideoErr != nil {
		return r.createVideoErr
	}
	c := *v
	r.videos[v.ID] = &c
	return nil
}

func (r *fakeRepo) GetVideo(ctx context.Context, id string) (*database.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok {
		return nil, database.ErrVideoNotFound
	}
	c := *v
	return &c, nil
}

func (r *fakeRepo) GetStats(ctx context.Context, now time.Time) (*database.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &database.Stats{TotalVideos: int64(len(r.videos)), TotalShareLinks: int64(len(r.links))}
	for _, v := range r.videos {
		stats.TotalBytes += v.SizeBytes
		stats.TotalSeconds += v.DurationSeconds
	}
	for _, l := range r.links {
		if l.ExpiresAt.After(now) {
			stats.ActiveShareLinks++
		}
	}
	return stats, nil
}

func (r *fakeRepo) CreateShareLink(ctx context.Context, l *database.ShareLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shareLinkInsert++
	if r.collisions > 0 {
		r.collisions--
		return database.ErrTokenCollision
	}
	if _, ok := r.links[l.Token]; ok {
		return database.ErrTokenCollision
	}
	c := *l
	r.links[l.Token] = &c
	return nil
}

func (r *fakeRepo) FindActiveShareLink(ctx context.Context, token string, now time.Time) (*database.ShareLink, *database.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[token]
	if !ok || !l.ExpiresAt.After(now) {
		return nil, nil, database.ErrShareLinkNotFound
	}
	v, ok := r.videos[l.VideoID]
	if !ok {
		return nil, nil, database.ErrShareLinkNotFound
	}
	lc, vc := *l, *v
	return &lc, &vc, nil
}

// fakeTranscoder treats every 100 bytes of a file as one second.
type fakeTranscoder struct {
	mu       sync.Mutex
	probeErr error
	trims    []trimCall
	concats  [][]string
}

type trimCall struct {
	start    float64
	duration *float64
}

const fakeBytesPerSecond = 100

func (f *fakeTranscoder) Probe(ctx context.Context, path string) (float64, error) {
	if f.probeErr != nil {
		return 0, f.probeErr
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, &transcode.ProbeError{Path: path, Err: err}
	}
	return float64(info.Size()) / fakeBytesPerSecond, nil
}

func (f *fakeTranscoder) Trim(ctx context.Context, input, output string, start float64, duration *float64) error {
	f.mu.Lock()
	f.trims = append(f.trims, trimCall{start: start, duration: duration})
	f.mu.Unlock()

	data, err := os.ReadFile(input)
	if err != nil {
		return &transcode.TranscodeError{Op: "trim", Err: err}
	}
	from := int(start * fakeBytesPerSecond)
	to := len(data)
	if duration != nil {
		to = from + int(*duration*fakeBytesPerSecond)
	}
	if from > len(data) || to > len(data) {
		return &transcode.TranscodeError{Op: "trim", Err: errors.New("seek past end")}
	}
	return os.WriteFile(output, data[from:to], 0o600)
}

func (f *fakeTranscoder) Concat(ctx context.Context, inputs []string, output string) error {
	f.mu.Lock()
	f.concats = append(f.concats, inputs)
	f.mu.Unlock()

	var out []byte
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return &transcode.TranscodeError{Op: "concat", Err: err}
		}
		out = append(out, data...)
	}
	return os.WriteFile(output, out, 0o600)
}

type fakePublisher struct {
	mu     sync.Mutex
	videos []events.VideoCreated
	shares []events.ShareCreated
	err    error
}

func (p *fakePublisher) VideoCreated(ctx context.Context, e events.VideoCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.videos = append(p.videos, e)
	return p.err
}

func (p *fakePublisher) ShareCreated(ctx context.Context, e events.ShareCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shares = append(p.shares, e)
	return p.err
}

// sequenceTokens hands out tok-1, tok-2, ... in order.
type sequenceTokens struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceTokens) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("tok-%d", s.n), nil
}
