package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"

	"github.com/ZacxDev/video-zoom/pkg/types"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
)

// Raw frames cross the pipe as packed RGBA so they map directly onto image.NRGBA.
const rawPixelFormat = "rgba"

// Decoder reads raw frames from an ffmpeg child process
type Decoder struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  bytes.Buffer
	width   int
	height  int
	frame   int
	drained bool
	closed  bool
}

// OpenDecoder starts decoding the first video stream of inputPath.
func (p *Processor) OpenDecoder(ctx context.Context, inputPath string, desc *types.VideoDescriptor) (types.FrameDecoder, error) {
	stream := buildDecodeStream(inputPath)
	p.logger.Debug("starting decoder", zap.Strings("args", stream.GetArgs()))

	d := &Decoder{
		cmd:    p.bind(ctx, stream.Compile()),
		width:  desc.Width,
		height: desc.Height,
	}
	d.cmd.Stdout = nil
	d.cmd.Stderr = &d.stderr

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return nil, types.WrapKind(types.ErrInputOpen, err, "failed to open decoder pipe")
	}
	d.stdout = stdout

	if err := d.cmd.Start(); err != nil {
		return nil, types.WrapKindf(types.ErrInputOpen, err, "failed to start decoder for %s", inputPath)
	}
	return d, nil
}

func buildDecodeStream(inputPath string) *ffmpeg.Stream {
	return ffmpeg.Input(inputPath).Output("pipe:", ffmpeg.KwArgs{
		"map":     "0:v:0",
		"format":  "rawvideo",
		"pix_fmt": rawPixelFormat,
	})
}

// ReadFrame returns the next frame or io.EOF when the stream is exhausted.
func (d *Decoder) ReadFrame() (*image.NRGBA, error) {
	if d.drained || d.closed {
		return nil, io.EOF
	}

	img := image.NewNRGBA(image.Rect(0, 0, d.width, d.height))
	n, err := io.ReadFull(d.stdout, img.Pix)
	switch {
	case err == io.EOF:
		d.drained = true
		if werr := d.wait(); werr != nil {
			return nil, types.WrapKindf(types.ErrInputOpen, werr, "decoder failed after %d frames: %s", d.frame, lastLine(d.stderr.String()))
		}
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		d.drained = true
		_ = d.wait()
		return nil, types.WrapKindf(types.ErrInputOpen, err,
			"truncated frame %d (%d of %d bytes): %s", d.frame, n, len(img.Pix), lastLine(d.stderr.String()))
	case err != nil:
		return nil, types.WrapKindf(types.ErrInputOpen, err, "failed to read frame %d", d.frame)
	}

	d.frame++
	return img, nil
}

// Close stops the decoder. A decoder that was not read to the end is killed.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.drained {
		return nil
	}
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	_ = d.wait()
	return nil
}

func (d *Decoder) wait() error {
	return errors.WithStack(d.cmd.Wait())
}

// Encoder writes raw frames into an ffmpeg child process
type Encoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	width  int
	height int
	frames int
	closed bool
}

// OpenEncoder starts an encoder that writes outputPath with the fixed video codec. No audio is written.
func (p *Processor) OpenEncoder(ctx context.Context, outputPath string, desc *types.VideoDescriptor) (types.FrameEncoder, error) {
	stream := buildEncodeStream(outputPath, desc)
	p.logger.Debug("starting encoder", zap.Strings("args", stream.GetArgs()))

	e := &Encoder{
		cmd:    p.bind(ctx, stream.Compile()),
		width:  desc.Width,
		height: desc.Height,
	}
	e.cmd.Stdin = nil
	e.cmd.Stderr = &e.stderr

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return nil, types.WrapKind(types.ErrEncode, err, "failed to open encoder pipe")
	}
	e.stdin = stdin

	if err := e.cmd.Start(); err != nil {
		return nil, types.WrapKindf(types.ErrEncode, err, "failed to start encoder for %s", outputPath)
	}
	return e, nil
}

func buildEncodeStream(outputPath string, desc *types.VideoDescriptor) *ffmpeg.Stream {
	return ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"format":    "rawvideo",
		"pix_fmt":   rawPixelFormat,
		"s":         fmt.Sprintf("%dx%d", desc.Width, desc.Height),
		"framerate": formatRate(desc.FrameRate),
	}).Output(outputPath, ffmpeg.KwArgs{
		"c:v":     OutputCodecSettings.VideoCodec,
		"preset":  OutputCodecSettings.Preset,
		"pix_fmt": OutputCodecSettings.PixelFormat,
		"threads": GetOptimalThreadCount(),
	}).OverWriteOutput()
}

func (e *Encoder) WriteFrame(img *image.NRGBA) error {
	if e.closed {
		return errors.New("write to closed encoder")
	}
	if img.Bounds().Dx() != e.width || img.Bounds().Dy() != e.height {
		return types.WrapKindf(types.ErrEncode, errors.New("frame size mismatch"),
			"frame %d is %dx%d, encoder expects %dx%d", e.frames, img.Bounds().Dx(), img.Bounds().Dy(), e.width, e.height)
	}

	// stderr is still being filled by the process; its reason is reported by Close.
	if _, err := e.stdin.Write(packed(img)); err != nil {
		return types.WrapKindf(types.ErrEncode, err, "failed to write frame %d", e.frames)
	}
	e.frames++
	return nil
}

// Close flushes the encoder and waits for the output file to be finalized.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	closeErr := e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return types.WrapKindf(types.ErrEncode, err, "encoder failed after %d frames: %s", e.frames, lastLine(e.stderr.String()))
	}
	return types.WrapKind(types.ErrEncode, closeErr, "failed to close encoder input")
}

// packed returns the pixel buffer without row padding.
func packed(img *image.NRGBA) []byte {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if img.Stride == w*4 && len(img.Pix) == w*h*4 {
		return img.Pix
	}
	buf := make([]byte, 0, w*h*4)
	for y := 0; y < h; y++ {
		off := img.PixOffset(img.Bounds().Min.X, img.Bounds().Min.Y+y)
		buf = append(buf, img.Pix[off:off+w*4]...)
	}
	return buf
}
