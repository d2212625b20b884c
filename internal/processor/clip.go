package processor

import (
	"context"

	"github.com/ZacxDev/video-zoom/pkg/types"
)

// ClipStrategy applies the crop and rescale to the whole timeline in one render.
// The audio track is kept.
type ClipStrategy struct{}

func init() {
	Register(&ClipStrategy{})
}

func (s *ClipStrategy) Mode() types.ProcessingMode {
	return types.ProcessingModeClip
}

func (s *ClipStrategy) PreservesAudio() bool {
	return true
}

func (s *ClipStrategy) Zoom(ctx context.Context, backend Backend, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return backend.RenderClip(ctx, job.InputPath, job.OutputPath, job.Desc, job.Transformer.Region())
}
