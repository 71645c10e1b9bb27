package main

import (
	"fmt"
	"io"
	"os"

	"reel/internal/core"
	"reel/internal/media"
	"reel/internal/server/transcode"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// sniffLen covers the container signatures mimetype inspects.
const sniffLen = 3072

func newDurationCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "duration FILE|DIR...",
		Short: "Print the duration of each file",
		Long:  "Raw files are measured from their size; encoded containers are probed with ffprobe.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := core.ParseGeometry(opts.width, opts.height, opts.bytesPerPixel, opts.frameRate)
			if err != nil {
				return err
			}
			parsed, err := core.ParseArgs(args)
			if err != nil {
				return err
			}
			files, err := core.ExpandFiles(parsed)
			if err != nil {
				return err
			}

			prober := transcode.New(transcode.Options{FFprobePath: opts.ffprobe}, zerolog.Nop())
			out := cmd.OutOrStdout()
			for _, path := range files {
				format, size, err := sniff(path)
				if err != nil {
					return err
				}

				var seconds float64
				if media.IsRaw(format) {
					seconds, err = media.EstimateRaw(size, g)
				} else {
					seconds, err = prober.Probe(cmd.Context(), path)
				}
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(out, "%s\t%s\t%.3fs\n", path, format, seconds)
			}
			return nil
		},
	}
}

func newTrimCmd(opts *options) *cobra.Command {
	var start, end float64

	cmd := &cobra.Command{
		Use:   "trim [--start s] [--end s] IN OUT",
		Short: "Cut seconds from the start and/or end of a raw file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := core.ParseGeometry(opts.width, opts.height, opts.bytesPerPixel, opts.frameRate)
			if err != nil {
				return err
			}
			inputs, err := core.ParseInputs(args[:1], 1)
			if err != nil {
				return err
			}
			output, err := core.ParseOutput(args[1], inputs)
			if err != nil {
				return err
			}

			var startPtr, endPtr *float64
			if cmd.Flags().Changed("start") {
				startPtr = &start
			}
			if cmd.Flags().Changed("end") {
				endPtr = &end
			}

			data, err := readRaw(inputs[0])
			if err != nil {
				return err
			}
			res, err := media.Trim(data, g, media.WindowOf(startPtr, endPtr))
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), output, res)
		},
	}

	cmd.Flags().Float64Var(&start, "start", 0, "seconds to cut from the start")
	cmd.Flags().Float64Var(&end, "end", 0, "seconds to cut from the end")
	return cmd
}

func newMergeCmd(opts *options) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "merge OUT IN IN...",
		Short: "Concatenate raw files in the given order",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := core.ParseGeometry(opts.width, opts.height, opts.bytesPerPixel, opts.frameRate)
			if err != nil {
				return err
			}
			inputs, err := core.ParseInputs(args[1:], 2)
			if err != nil {
				return err
			}
			output, err := core.ParseOutput(args[0], inputs)
			if err != nil {
				return err
			}

			buffers := make([][]byte, len(inputs))
			for i, path := range inputs {
				if buffers[i], err = readRaw(path); err != nil {
					return err
				}
				if strict {
					if err := media.CheckFrameAligned(i, int64(len(buffers[i])), g); err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
				}
			}

			res, err := media.Merge(buffers, g)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), output, res)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "reject inputs that are not a whole number of frames")
	return cmd
}

// sniff returns the detected format and size of the file at path.
func sniff(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", 0, err
	}
	format, _ := media.DetectFormat(head[:n])
	return format, info.Size(), nil
}

func readRaw(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if format, _ := media.DetectFormat(data); !media.IsRaw(format) {
		return nil, &core.ValidationError{Arg: path, Cause: fmt.Sprintf("%s is not a raw file", format)}
	}
	return data, nil
}

func writeResult(out io.Writer, path string, res *media.Result) error {
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%d bytes, %d frames, %.3fs)\n", path, len(res.Data), res.Frames, res.Duration)
	return nil
}
