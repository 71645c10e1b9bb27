package transcode

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProbe     = errors.New("probe failed")
	ErrTranscode = errors.New("transcode failed")
)

// ProbeError is returned when ffprobe cannot determine a duration, usually
// because the container is corrupt or unsupported.
type ProbeError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v%s", e.Path, e.Err, stderrTail(e.Stderr))
}

func (e *ProbeError) Unwrap() error { return e.Err }

func (e *ProbeError) Is(target error) bool { return target == ErrProbe }

// TranscodeError is returned when ffmpeg exits unsuccessfully.
type TranscodeError struct {
	Op     string
	Args   []string
	Stderr string
	Err    error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode %s: %v%s", e.Op, e.Err, stderrTail(e.Stderr))
}

func (e *TranscodeError) Unwrap() error { return e.Err }

func (e *TranscodeError) Is(target error) bool { return target == ErrTranscode }

const maxStderr = 512

func stderrTail(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return ""
	}
	if len(stderr) > maxStderr {
		stderr = "..." + stderr[len(stderr)-maxStderr:]
	}
	return ": " + stderr
}
