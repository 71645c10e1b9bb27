package main

import (
	"fmt"
	"os"

	"reel/internal/media"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the flags shared by every subcommand.
type options struct {
	width         int
	height        int
	bytesPerPixel int
	frameRate     int
	ffprobe       string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "reel",
		Short: "Measure, trim and merge raw video buffers",
		Long: `reel works on headerless raw video files whose frame geometry is given by flags.

Examples:
  reel duration clip.raw recordings/
  reel trim --start 1 --end 0.5 clip.raw clip_trimmed.raw
  reel merge joined.raw intro.raw clip.raw outro.raw`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	d := media.DefaultGeometry
	flags := root.PersistentFlags()
	flags.IntVar(&opts.width, "width", d.Width, "frame width in pixels")
	flags.IntVar(&opts.height, "height", d.Height, "frame height in pixels")
	flags.IntVar(&opts.bytesPerPixel, "bpp", d.BytesPerPixel, "bytes per pixel")
	flags.IntVar(&opts.frameRate, "fps", d.FrameRate, "frames per second")
	flags.StringVar(&opts.ffprobe, "ffprobe", "ffprobe", "ffprobe binary used for encoded files")

	root.AddCommand(newDurationCmd(opts))
	root.AddCommand(newTrimCmd(opts))
	root.AddCommand(newMergeCmd(opts))

	return root
}
