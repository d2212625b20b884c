package videoprocessor

import (
	"context"

	"github.com/ZacxDev/video-zoom/internal/config"
	"github.com/ZacxDev/video-zoom/internal/ffmpeg"
	"github.com/ZacxDev/video-zoom/internal/metrics"
	"github.com/ZacxDev/video-zoom/internal/processor"
	"github.com/ZacxDev/video-zoom/pkg/types"
	"go.uber.org/zap"
)

// Options is re-exported so callers outside this module can build a run.
type Options = config.Options

// GetSupportedModes returns the processing modes that can be selected
func GetSupportedModes() []string {
	return processor.GetSupportedModes()
}

// ZoomDirectory zooms every video in opts.InputDir into opts.OutputDir using ffmpeg.
// Per-file failures are returned in the report; the error is non-nil only when the
// batch could not run or was cancelled.
func ZoomDirectory(ctx context.Context, opts *Options, logger *zap.Logger) (*types.BatchReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	backend := ffmpeg.NewProcessor(opts.FFmpegPath, logger.Named("ffmpeg"))
	return ZoomDirectoryWith(ctx, opts, backend, nil, logger)
}

// ZoomDirectoryWith runs the batch against a caller-supplied backend and filesystem.
func ZoomDirectoryWith(ctx context.Context, opts *Options, backend processor.Backend, fs processor.FileSystem, logger *zap.Logger) (*types.BatchReport, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	zoomer, err := processor.NewZoomer(backend, opts.ProcessingMode(), logger.Named("processor"))
	if err != nil {
		return nil, err
	}

	logger.Debug("starting batch",
		zap.String("input_dir", opts.InputDir),
		zap.String("output_dir", opts.OutputDir),
		zap.Float64("zoom", opts.ZoomFactor),
		zap.String("mode", opts.Mode),
		zap.Bool("preserves_audio", zoomer.Strategy().PreservesAudio()))

	var observer processor.Observer = processor.LogObserver{Logger: logger}
	var recorder *metrics.Recorder
	if opts.MetricsFile != "" {
		recorder = metrics.NewRecorder()
		observer = processor.Observers{observer, recorder}
	}

	runner := processor.NewRunner(fs, zoomer, observer)
	report, err := runner.Run(ctx, opts.InputDir, opts.OutputDir, opts.ZoomFactor)
	if report == nil {
		return nil, err
	}

	logger.Info("batch finished",
		zap.Int("succeeded", len(report.Succeeded)),
		zap.Int("failed", len(report.Failed)))

	if recorder != nil {
		if werr := recorder.WriteFile(opts.MetricsFile); werr != nil {
			logger.Warn("failed to write metrics", zap.String("path", opts.MetricsFile), zap.Error(werr))
		}
	}
	return report, err
}
