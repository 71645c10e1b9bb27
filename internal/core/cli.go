package core

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"reel/internal/media"
)

type ValidationError struct {
	Arg   string
	Cause string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

type PathKind int

const (
	PathFile PathKind = iota
	PathDir
)

type ParsedPath struct {
	FullPath string
	Kind     PathKind
}

func ParseArgs(args []string) ([]ParsedPath, error) {
	if len(args) == 0 {
		return nil, &ValidationError{Arg: "<files>", Cause: "no files provided"}
	}

	var out []ParsedPath

	for _, raw := range args {
		p := filepath.Clean(raw)
		info, err := os.Stat(p)
		if err != nil {
			return nil, &ValidationError{Arg: raw, Cause: "not found or not accessible"}
		}

		kind := PathFile
		if info.IsDir() {
			kind = PathDir
		}

		out = append(out, ParsedPath{FullPath: p, Kind: kind})
	}

	return out, nil
}

// ExpandFiles replaces every directory in paths with the regular files below
// it, in lexical order. Files named directly are kept even if they are not
// regular files a walk would pick up. Hidden entries are skipped.
func ExpandFiles(paths []ParsedPath) ([]string, error) {
	var out []string

	for _, p := range paths {
		if p.Kind == PathFile {
			out = append(out, p.FullPath)
			continue
		}

		var found []string
		err := filepath.WalkDir(p.FullPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != p.FullPath && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, &ValidationError{Arg: p.FullPath, Cause: fmt.Sprintf("cannot walk directory: %v", err)}
		}
		if len(found) == 0 {
			return nil, &ValidationError{Arg: p.FullPath, Cause: "directory contains no files"}
		}

		slices.Sort(found)
		out = append(out, found...)
	}

	return out, nil
}

// ParseInputs validates that args name at least min existing files.
// Directories are rejected: trim and merge inputs must be ordered explicitly.
func ParseInputs(args []string, min int) ([]string, error) {
	if len(args) < min {
		return nil, &ValidationError{Arg: "<inputs>", Cause: fmt.Sprintf("need at least %d input files, got %d", min, len(args))}
	}

	parsed, err := ParseArgs(args)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(parsed))
	for i, p := range parsed {
		if p.Kind == PathDir {
			return nil, &ValidationError{Arg: args[i], Cause: "is a directory"}
		}
		out[i] = p.FullPath
	}
	return out, nil
}

// ParseOutput validates an output path: its directory must exist and it must
// not overwrite one of the inputs.
func ParseOutput(raw string, inputs []string) (string, error) {
	if raw == "" {
		return "", &ValidationError{Arg: "<output>", Cause: "no output file provided"}
	}

	p := filepath.Clean(raw)
	if info, err := os.Stat(filepath.Dir(p)); err != nil || !info.IsDir() {
		return "", &ValidationError{Arg: raw, Cause: "parent directory does not exist"}
	}
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return "", &ValidationError{Arg: raw, Cause: "is a directory"}
	}

	for _, in := range inputs {
		if sameFile(p, in) {
			return "", &ValidationError{Arg: raw, Cause: "output would overwrite an input"}
		}
	}
	return p, nil
}

// ParseGeometry builds a raw frame geometry from command-line flags.
func ParseGeometry(width, height, bytesPerPixel, frameRate int) (media.Geometry, error) {
	g := media.Geometry{
		Width:         width,
		Height:        height,
		BytesPerPixel: bytesPerPixel,
		FrameRate:     frameRate,
	}
	if err := g.Validate(); err != nil {
		return media.Geometry{}, &ValidationError{Arg: "<geometry>", Cause: err.Error()}
	}
	return g, nil
}

func sameFile(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
