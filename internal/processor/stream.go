package processor

import (
	"context"
	"io"

	"github.com/ZacxDev/video-zoom/pkg/types"
	"github.com/pkg/errors"
)

// StreamStrategy decodes, transforms and encodes one frame at a time.
// Only the video stream is written.
type StreamStrategy struct{}

func init() {
	Register(&StreamStrategy{})
}

func (s *StreamStrategy) Mode() types.ProcessingMode {
	return types.ProcessingModeStream
}

func (s *StreamStrategy) PreservesAudio() bool {
	return false
}

func (s *StreamStrategy) Zoom(ctx context.Context, backend Backend, job Job) (err error) {
	dec, err := backend.OpenDecoder(ctx, job.InputPath, job.Desc)
	if err != nil {
		return types.WrapKind(types.ErrInputOpen, err, "failed to open decoder")
	}
	defer dec.Close()

	enc, err := backend.OpenEncoder(ctx, job.OutputPath, job.Desc)
	if err != nil {
		return types.WrapKind(types.ErrEncode, err, "failed to open encoder")
	}
	// The encoder is closed on every path. Its error becomes the result on success and
	// is appended to an earlier failure, since it carries ffmpeg's own reason.
	defer func() {
		cerr := enc.Close()
		switch {
		case cerr == nil:
		case err == nil:
			err = types.WrapKind(types.ErrEncode, cerr, "failed to finalize output")
		default:
			err = errors.WithMessage(err, cerr.Error())
		}
	}()

	width, height := job.Desc.Width, job.Desc.Height
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}

		frame, err := dec.ReadFrame()
		if err == io.EOF {
			if n == 0 {
				return errors.Wrap(types.ErrInputOpen, "video has no frames")
			}
			return nil
		}
		if err != nil {
			return types.WrapKindf(types.ErrInputOpen, err, "failed to decode frame %d", n)
		}

		if b := frame.Bounds(); b.Dx() != width || b.Dy() != height {
			return errors.Wrapf(types.ErrInputOpen, "frame %d is %dx%d, expected %dx%d", n, b.Dx(), b.Dy(), width, height)
		}

		if err := enc.WriteFrame(job.Transformer.Transform(frame)); err != nil {
			return types.WrapKindf(types.ErrEncode, err, "failed to encode frame %d", n)
		}
	}
}
