package processor

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ZacxDev/video-zoom/internal/config"
	"github.com/ZacxDev/video-zoom/internal/transform"
	"github.com/ZacxDev/video-zoom/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Backend is the video I/O library the processor drives
type Backend interface {
	Probe(ctx context.Context, inputPath string) (*types.VideoDescriptor, error)
	OpenDecoder(ctx context.Context, inputPath string, desc *types.VideoDescriptor) (types.FrameDecoder, error)
	OpenEncoder(ctx context.Context, outputPath string, desc *types.VideoDescriptor) (types.FrameEncoder, error)
	RenderClip(ctx context.Context, inputPath, outputPath string, desc *types.VideoDescriptor, region transform.CropRegion) error
}

// VideoProcessor zooms a single video file
type VideoProcessor interface {
	Process(ctx context.Context, inputPath, outputPath string, zoom float64) error
}

// Zoomer handles zooming one video with the selected strategy
type Zoomer struct {
	backend  Backend
	strategy Strategy
	logger   *zap.Logger
}

// NewZoomer creates a processor for the given mode
func NewZoomer(backend Backend, mode types.ProcessingMode, logger *zap.Logger) (*Zoomer, error) {
	strategy, err := GetStrategy(mode)
	if err != nil {
		return nil, errors.Wrap(types.ErrInvalidOptions, err.Error())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Zoomer{
		backend:  backend,
		strategy: strategy,
		logger:   logger,
	}, nil
}

func (z *Zoomer) Strategy() Strategy {
	return z.strategy
}

// Process writes a zoomed copy of inputPath to outputPath. The output is rendered
// to a partial file next to outputPath and renamed on success, so a failed input
// never leaves an output file behind.
func (z *Zoomer) Process(ctx context.Context, inputPath, outputPath string, zoom float64) error {
	if err := transform.ValidateZoom(zoom); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	desc, err := z.backend.Probe(ctx, inputPath)
	if err != nil {
		return types.WrapKind(types.ErrInputOpen, err, filepath.Base(inputPath))
	}

	transformer, err := transform.NewTransformer(desc.Width, desc.Height, zoom)
	if err != nil {
		return types.WrapKind(types.ErrInputOpen, err, filepath.Base(inputPath))
	}
	region := transformer.Region()

	z.logger.Debug("video metadata",
		zap.String("input", inputPath),
		zap.Int("width", desc.Width),
		zap.Int("height", desc.Height),
		zap.Float64("frame_rate", desc.FrameRate),
		zap.Bool("has_audio", desc.HasAudio),
		zap.Float64("duration", desc.Duration),
		zap.Int("frames", desc.NumFrames),
		zap.Int("rotation", desc.Rotation),
		zap.String("codec", desc.Codec))
	z.logger.Debug("crop region",
		zap.Int("x", region.X),
		zap.Int("y", region.Y),
		zap.Int("width", region.Width),
		zap.Int("height", region.Height),
		zap.Bool("identity", region.IsFull(desc.Width, desc.Height)),
		zap.String("mode", string(z.strategy.Mode())))

	if desc.HasAudio && !z.strategy.PreservesAudio() {
		z.logger.Debug("audio track will be dropped", zap.String("input", inputPath))
	}

	partial := partialPath(outputPath)
	job := Job{
		InputPath:   inputPath,
		OutputPath:  partial,
		Desc:        desc,
		Transformer: transformer,
	}

	if err := z.strategy.Zoom(ctx, z.backend, job); err != nil {
		removePartial(partial, z.logger)
		return err
	}

	if err := os.Rename(partial, outputPath); err != nil {
		removePartial(partial, z.logger)
		return types.WrapKindf(types.ErrEncode, err, "failed to move output into place at %s", outputPath)
	}
	return nil
}

// partialPath keeps the extension so the container format is still inferred from it.
func partialPath(outputPath string) string {
	return filepath.Join(filepath.Dir(outputPath), config.PartialPrefix+filepath.Base(outputPath))
}

func removePartial(path string, logger *zap.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove partial output", zap.String("path", path), zap.Error(err))
	}
}
