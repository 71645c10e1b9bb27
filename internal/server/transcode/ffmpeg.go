package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"reel/internal/server/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// runFunc executes a command and returns its captured output.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// FFmpeg drives the ffmpeg and ffprobe binaries. Every call blocks until the
// child process exits and reports failures as ProbeError or TranscodeError.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	sem         *semaphore.Weighted
	run         runFunc
	log         zerolog.Logger
}

// Options configures FFmpeg.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	// MaxConcurrent caps simultaneous ffmpeg processes; 0 means unlimited.
	MaxConcurrent int64
}

// New returns an FFmpeg runner; empty paths fall back to the binaries on PATH.
func New(opts Options, log zerolog.Logger) *FFmpeg {
	f := &FFmpeg{
		ffmpegPath:  opts.FFmpegPath,
		ffprobePath: opts.FFprobePath,
		run:         execRun,
		log:         log.With().Str("component", "ffmpeg").Logger(),
	}
	if f.ffmpegPath == "" {
		f.ffmpegPath = "ffmpeg"
	}
	if f.ffprobePath == "" {
		f.ffprobePath = "ffprobe"
	}
	if opts.MaxConcurrent > 0 {
		f.sem = semaphore.NewWeighted(opts.MaxConcurrent)
	}
	return f
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the container duration of the file at path in seconds.
func (f *FFmpeg) Probe(ctx context.Context, path string) (seconds float64, err error) {
	defer func(start time.Time) { metrics.RecordTranscode("probe", err, time.Since(start)) }(time.Now())

	args := []string{"-v", "error", "-show_entries", "format=duration", "-of", "json", path}
	stdout, stderr, err := f.run(ctx, f.ffprobePath, args...)
	if err != nil {
		return 0, &ProbeError{Path: path, Stderr: string(stderr), Err: err}
	}

	seconds, err = parseProbeOutput(stdout)
	if err != nil {
		return 0, &ProbeError{Path: path, Stderr: string(stderr), Err: err}
	}
	return seconds, nil
}

func parseProbeOutput(stdout []byte) (float64, error) {
	var out probeOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return 0, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}
	if out.Format.Duration == "" || out.Format.Duration == "N/A" {
		return 0, errors.New("duration not reported")
	}
	seconds, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", out.Format.Duration, err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative duration %g", seconds)
	}
	return seconds, nil
}

// Trim writes the part of input starting at start seconds to output. When
// duration is non-nil the output is limited to that many seconds. Streams are
// copied, so cuts land on the nearest keyframe rather than the exact frame.
func (f *FFmpeg) Trim(ctx context.Context, input, output string, start float64, duration *float64) error {
	args := trimArgs(input, output, start, duration)
	return f.ffmpeg(ctx, "trim", args)
}

func trimArgs(input, output string, start float64, duration *float64) []string {
	args := []string{"-y", "-v", "error"}
	if start > 0 {
		args = append(args, "-ss", formatSeconds(start))
	}
	args = append(args, "-i", input)
	if duration != nil {
		args = append(args, "-t", formatSeconds(*duration))
	}
	return append(args, "-c", "copy", output)
}

// Concat joins inputs in order into output using the concat demuxer. The
// inputs must share codec parameters.
func (f *FFmpeg) Concat(ctx context.Context, inputs []string, output string) error {
	list, err := os.CreateTemp(filepath.Dir(output), "concat-*.txt")
	if err != nil {
		return &TranscodeError{Op: "concat", Err: err}
	}
	defer os.Remove(list.Name())

	if _, err := list.WriteString(concatList(inputs)); err != nil {
		list.Close()
		return &TranscodeError{Op: "concat", Err: err}
	}
	if err := list.Close(); err != nil {
		return &TranscodeError{Op: "concat", Err: err}
	}

	args := []string{"-y", "-v", "error", "-f", "concat", "-safe", "0", "-i", list.Name(), "-c", "copy", output}
	return f.ffmpeg(ctx, "concat", args)
}

func concatList(inputs []string) string {
	var b strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			abs = in
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func (f *FFmpeg) ffmpeg(ctx context.Context, op string, args []string) (err error) {
	defer func(start time.Time) { metrics.RecordTranscode(op, err, time.Since(start)) }(time.Now())

	if f.sem != nil {
		if err := f.sem.Acquire(ctx, 1); err != nil {
			return &TranscodeError{Op: op, Args: args, Err: err}
		}
		defer f.sem.Release(1)
	}

	f.log.Debug().Str("op", op).Strs("args", args).Msg("running ffmpeg")
	_, stderr, err := f.run(ctx, f.ffmpegPath, args...)
	if err != nil {
		return &TranscodeError{Op: op, Args: args, Stderr: string(stderr), Err: err}
	}
	return nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errs bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errs
	err := cmd.Run()
	return out.Bytes(), errs.Bytes(), err
}
