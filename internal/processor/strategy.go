package processor

import (
	"context"
	"fmt"
	"sort"

	"github.com/ZacxDev/video-zoom/internal/transform"
	"github.com/ZacxDev/video-zoom/pkg/types"
)

// Job is one video handed to a strategy. The transformer's region is constant for every frame.
type Job struct {
	InputPath   string
	OutputPath  string
	Desc        *types.VideoDescriptor
	Transformer *transform.Transformer
}

// Strategy defines how a single video is zoomed
type Strategy interface {
	// Mode returns the strategy name used for selection
	Mode() types.ProcessingMode

	// PreservesAudio reports whether the source audio track ends up in the output
	PreservesAudio() bool

	// Zoom writes the zoomed video for job.InputPath to job.OutputPath
	Zoom(ctx context.Context, backend Backend, job Job) error
}

var strategies = make(map[types.ProcessingMode]Strategy)

// Register adds a strategy to the registry
func Register(s Strategy) {
	strategies[s.Mode()] = s
}

// GetStrategy returns a strategy by mode
func GetStrategy(mode types.ProcessingMode) (Strategy, error) {
	s, ok := strategies[mode]
	if !ok {
		return nil, fmt.Errorf("unsupported processing mode: %s", mode)
	}
	return s, nil
}

// GetSupportedModes returns the registered mode names, sorted
func GetSupportedModes() []string {
	names := make([]string, 0, len(strategies))
	for mode := range strategies {
		names = append(names, string(mode))
	}
	sort.Strings(names)
	return names
}
