package types

import "image"

type ProcessingMode string

const (
	// ProcessingModeClip renders the whole clip through one filter graph and keeps audio.
	ProcessingModeClip ProcessingMode = "clip"
	// ProcessingModeStream pulls one frame at a time through the transformer. Audio is dropped.
	ProcessingModeStream ProcessingMode = "stream"
)

// VideoDescriptor holds the properties of a source video. It is read once per video.
// Width and Height are the displayed size, after any rotation is applied.
type VideoDescriptor struct {
	Width     int
	Height    int
	FrameRate float64
	HasAudio  bool
	Duration  float64
	Codec     string
	NumFrames int
	Rotation  int
}

// FrameDecoder yields decoded frames in presentation order.
// ReadFrame returns io.EOF once the stream is exhausted.
type FrameDecoder interface {
	ReadFrame() (*image.NRGBA, error)
	Close() error
}

// FrameEncoder consumes frames and writes them to an output container.
// Close flushes the encoder and must be called exactly once.
type FrameEncoder interface {
	WriteFrame(img *image.NRGBA) error
	Close() error
}

// FileResult records the outcome for a single batch entry
type FileResult struct {
	Name       string
	OutputPath string
	Err        error
}

// BatchReport summarizes a directory run
type BatchReport struct {
	Succeeded []FileResult
	Failed    []FileResult
}

func (r *BatchReport) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}

func (r *BatchReport) HasFailures() bool {
	return len(r.Failed) > 0
}
