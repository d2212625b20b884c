package config

import (
	"context"
	"math"
	"strings"

	"github.com/ZacxDev/video-zoom/pkg/types"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
)

// Options defines options for zooming every video in a directory
type Options struct {
	InputDir   string  `env:"ZOOM_INPUT_DIR" validate:"required"`
	OutputDir  string  `env:"ZOOM_OUTPUT_DIR" validate:"required"`
	ZoomFactor float64 `env:"ZOOM_FACTOR, default=1.5" validate:"gte=1"`
	Mode       string  `env:"ZOOM_MODE, default=clip" validate:"oneof=clip stream"`
	LogLevel   string  `env:"ZOOM_LOG_LEVEL, default=info" validate:"oneof=debug info warn error"`
	FFmpegPath string  `env:"ZOOM_FFMPEG_PATH, default=ffmpeg" validate:"required"`
	Verbose    bool    `env:"ZOOM_VERBOSE"`

	// MetricsFile, when set, receives Prometheus metrics for the run in text format
	MetricsFile string `env:"ZOOM_METRICS_FILE"`
}

const (
	DefaultZoomFactor = 1.5

	// Output naming
	OutputPrefix  = "zoomed_"
	PartialPrefix = ".partial."

	// Fixed encoding settings
	VideoCodec    = "libx264" // H.264
	AudioCodec    = "aac"
	PixelFormat   = "yuv420p"
	EncoderPreset = "medium"
	ScaleFlags    = "bilinear" // linear interpolation when upscaling the crop
)

// VideoExtensions lists recognized input extensions, lowercase and without the dot.
var VideoExtensions = []string{"mp4", "avi", "mov", "mkv", "wmv", "flv"}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads defaults from the environment.
func Load(ctx context.Context) (*Options, error) {
	opts := &Options{}
	if err := envconfig.Process(ctx, opts); err != nil {
		return nil, errors.Wrap(err, "failed to load options from environment")
	}
	return opts, nil
}

// Validate checks the options. Zoom problems are reported as types.ErrInvalidZoomFactor,
// everything else as types.ErrInvalidOptions.
func (o *Options) Validate() error {
	if math.IsNaN(o.ZoomFactor) || math.IsInf(o.ZoomFactor, 0) {
		return errors.Wrapf(types.ErrInvalidZoomFactor, "zoom factor must be finite, got %v", o.ZoomFactor)
	}

	err := validate.Struct(o)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(types.ErrInvalidOptions, err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.StructField() == "ZoomFactor" {
			return errors.Wrapf(types.ErrInvalidZoomFactor, "zoom factor must be at least 1, got %v", o.ZoomFactor)
		}
		msgs = append(msgs, fe.StructField()+" failed on '"+fe.Tag()+"'")
	}
	return errors.Wrap(types.ErrInvalidOptions, strings.Join(msgs, ", "))
}

// ProcessingMode returns the configured strategy as a typed mode
func (o *Options) ProcessingMode() types.ProcessingMode {
	return types.ProcessingMode(strings.ToLower(o.Mode))
}

// EffectiveLogLevel returns debug when verbose logging was requested.
func (o *Options) EffectiveLogLevel() string {
	if o.Verbose {
		return "debug"
	}
	return o.LogLevel
}
