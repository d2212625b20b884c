package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ZacxDev/video-zoom/internal/config"
	"github.com/ZacxDev/video-zoom/internal/logging"
	"github.com/ZacxDev/video-zoom/pkg/types"
	"github.com/ZacxDev/video-zoom/pkg/videoprocessor"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errFilesFailed signals that the batch ran but some files were skipped.
var errFilesFailed = errors.New("some videos could not be zoomed")

// zoomFunc runs one batch; videoprocessor.ZoomDirectory in production.
type zoomFunc func(ctx context.Context, opts *config.Options, logger *zap.Logger) (*types.BatchReport, error)

func newRootCmd(opts *config.Options, zoom zoomFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "video-zoom",
		Short: "Zoom into every video in a directory",
		Long: fmt.Sprintf(`video-zoom crops the center of every frame and scales it back to the
original size, for each video file in a directory.

Recognized extensions: %s

Supported modes:
%s
Examples:
  # Zoom every video by 1.5x (the default)
  video-zoom -i ./videos -o ./zoomed

  # Zoom 2x, frame by frame (audio is dropped)
  video-zoom -i ./videos -o ./zoomed -z 2 -m stream`,
			strings.Join(config.VideoExtensions, ", "),
			formatSupportedModes()),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Validate(); err != nil {
				return err
			}

			logger, err := logging.NewLogger(opts.EffectiveLogLevel())
			if err != nil {
				return errors.Wrap(err, "failed to create logger")
			}
			defer logger.Sync()

			report, err := zoom(cmd.Context(), opts, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Zoomed %d of %d videos\n", len(report.Succeeded), report.Total())
			if report.HasFailures() {
				for _, f := range report.Failed {
					fmt.Fprintf(out, "  failed: %s: %v\n", f.Name, f.Err)
				}
				return errFilesFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.InputDir, "input-dir", "i", opts.InputDir, "Input directory containing video files")
	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", opts.OutputDir, "Output directory for zoomed videos")
	cmd.Flags().Float64VarP(&opts.ZoomFactor, "zoom", "z", opts.ZoomFactor, "Zoom factor (e.g., 1.5 for 50% zoom)")
	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", opts.Mode,
		fmt.Sprintf("Processing mode (%s)", strings.Join(videoprocessor.GetSupportedModes(), ", ")))
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.FFmpegPath, "ffmpeg-path", opts.FFmpegPath, "Path to the ffmpeg binary")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "Enable verbose logging")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", opts.MetricsFile, "Write Prometheus metrics for the run to this file")

	if opts.InputDir == "" {
		cmd.MarkFlagRequired("input-dir")
	}
	if opts.OutputDir == "" {
		cmd.MarkFlagRequired("output-dir")
	}

	return cmd
}

func formatSupportedModes() string {
	descriptions := map[string]string{
		"clip":   "render the whole clip in one pass, keeping audio",
		"stream": "transform frame by frame, audio is dropped",
	}
	var sb strings.Builder
	for _, mode := range videoprocessor.GetSupportedModes() {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", mode, descriptions[mode]))
	}
	return sb.String()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := config.Load(ctx)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if err := newRootCmd(opts, videoprocessor.ZoomDirectory).ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		stop()
		os.Exit(1)
	}
}
