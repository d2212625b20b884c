package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/ZacxDev/video-zoom/internal/config"
	"github.com/ZacxDev/video-zoom/internal/transform"
	"github.com/ZacxDev/video-zoom/pkg/types"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
)

type CodecSettings struct {
	VideoCodec  string
	AudioCodec  string
	PixelFormat string
	Preset      string
}

// OutputCodecSettings are the same for every container we write.
var OutputCodecSettings = CodecSettings{
	VideoCodec:  config.VideoCodec,
	AudioCodec:  config.AudioCodec,
	PixelFormat: config.PixelFormat,
	Preset:      config.EncoderPreset,
}

// Processor wraps FFmpeg functionality
type Processor struct {
	ffmpegPath string
	logger     *zap.Logger
}

// NewProcessor creates a new FFmpeg processor. An empty path resolves "ffmpeg" via PATH.
func NewProcessor(ffmpegPath string, logger *zap.Logger) *Processor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		ffmpegPath: ffmpegPath,
		logger:     logger,
	}
}

// Probe reads the video descriptor of a file
func (p *Processor) Probe(ctx context.Context, inputPath string) (*types.VideoDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath(), probeArgs(inputPath)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.WithStack(ctx.Err())
		}
		return nil, types.WrapKindf(types.ErrInputOpen, err, "error probing %s: %s", inputPath, lastLine(stderr.String()))
	}
	probe := stdout.String()

	desc, err := parseProbe(probe)
	if err != nil {
		return nil, types.WrapKindf(types.ErrInputOpen, err, "error reading probe output for %s", inputPath)
	}
	return desc, nil
}

// probeArgs mirrors the arguments ffmpeg.Probe passes to ffprobe.
func probeArgs(inputPath string) []string {
	args := ffmpeg.ConvertKwargsToCmdLineArgs(ffmpeg.KwArgs{
		"show_format":  "",
		"show_streams": "",
		"of":           "json",
	})
	return append(args, inputPath)
}

// ffprobePath looks for ffprobe next to the configured ffmpeg binary.
func (p *Processor) ffprobePath() string {
	dir, base := filepath.Split(p.ffmpegPath)
	ext := filepath.Ext(base)
	if strings.TrimSuffix(base, ext) != "ffmpeg" {
		return "ffprobe"
	}
	return dir + "ffprobe" + ext
}

func parseProbe(probe string) (*types.VideoDescriptor, error) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(probe), &data); err != nil {
		return nil, errors.WithStack(err)
	}

	streams, ok := data["streams"].([]interface{})
	if !ok || len(streams) == 0 {
		return nil, errors.New("no streams found in video")
	}

	var videoStream map[string]interface{}
	hasAudio := false
	for _, stream := range streams {
		s, ok := stream.(map[string]interface{})
		if !ok {
			continue
		}
		switch s["codec_type"] {
		case "video":
			if videoStream == nil {
				videoStream = s
			}
		case "audio":
			hasAudio = true
		}
	}

	if videoStream == nil {
		return nil, errors.New("no video stream found")
	}

	width, _ := videoStream["width"].(float64)
	height, _ := videoStream["height"].(float64)
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid video dimensions %vx%v", width, height)
	}

	// ffmpeg applies the display rotation while decoding
	rotation := parseRotation(videoStream)
	if rotation == 90 || rotation == 270 {
		width, height = height, width
	}

	frameRate := parseRate(stringField(videoStream, "r_frame_rate"))
	if frameRate == 0 {
		frameRate = parseRate(stringField(videoStream, "avg_frame_rate"))
	}
	if frameRate == 0 {
		return nil, errors.New("could not determine frame rate")
	}

	// Stream duration first, then container duration
	duration := parseFloat(stringField(videoStream, "duration"))
	if duration == 0 {
		if format, ok := data["format"].(map[string]interface{}); ok {
			duration = parseFloat(stringField(format, "duration"))
		}
	}

	numFrames, _ := strconv.Atoi(stringField(videoStream, "nb_frames"))

	return &types.VideoDescriptor{
		Width:     int(width),
		Height:    int(height),
		FrameRate: frameRate,
		HasAudio:  hasAudio,
		Duration:  duration,
		Codec:     stringField(videoStream, "codec_name"),
		NumFrames: numFrames,
		Rotation:  rotation,
	}, nil
}

// parseRotation returns the display rotation of a stream normalized to [0, 360).
// The display matrix side data wins over the legacy rotate tag.
func parseRotation(stream map[string]interface{}) int {
	rotation := 0.0
	if sideData, ok := stream["side_data_list"].([]interface{}); ok {
		for _, sd := range sideData {
			entry, ok := sd.(map[string]interface{})
			if !ok {
				continue
			}
			if r, ok := entry["rotation"].(float64); ok {
				rotation = r
				break
			}
		}
	}
	if rotation == 0 {
		if tags, ok := stream["tags"].(map[string]interface{}); ok {
			rotation = parseFloat(stringField(tags, "rotate"))
		}
	}

	deg := int(math.Round(rotation)) % 360
	if deg < 0 {
		deg += 360
	}
	return deg
}

// RenderClip crops and rescales the whole clip in one ffmpeg pass. The first audio
// track, if any, is carried over and encoded with the fixed audio codec.
func (p *Processor) RenderClip(ctx context.Context, inputPath, outputPath string, desc *types.VideoDescriptor, region transform.CropRegion) error {
	stream := buildClipStream(inputPath, outputPath, desc, region)

	p.logger.Debug("rendering clip", zap.Strings("args", stream.GetArgs()))

	cmd := p.bind(ctx, stream.Compile())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errors.WithStack(ctx.Err())
		}
		return types.WrapKindf(types.ErrEncode, err, "failed to render %s: %s", outputPath, lastLine(stderr.String()))
	}
	return nil
}

func buildClipStream(inputPath, outputPath string, desc *types.VideoDescriptor, region transform.CropRegion) *ffmpeg.Stream {
	input := ffmpeg.Input(inputPath)

	video := input.Video().
		Filter("crop", ffmpeg.Args{
			fmt.Sprintf("%d:%d:%d:%d", region.Width, region.Height, region.X, region.Y),
		}, ffmpeg.KwArgs{
			// keep odd offsets instead of snapping to the chroma grid
			"exact": 1,
		}).
		Filter("scale", ffmpeg.Args{
			fmt.Sprintf("%d:%d", desc.Width, desc.Height),
		}, ffmpeg.KwArgs{
			"flags": config.ScaleFlags,
		})

	streams := []*ffmpeg.Stream{video}
	outputKwargs := ffmpeg.KwArgs{
		"c:v":     OutputCodecSettings.VideoCodec,
		"preset":  OutputCodecSettings.Preset,
		"pix_fmt": OutputCodecSettings.PixelFormat,
		"threads": GetOptimalThreadCount(),
	}
	if desc.HasAudio {
		streams = append(streams, input.Get("a:0"))
		outputKwargs["c:a"] = OutputCodecSettings.AudioCodec
	}

	return ffmpeg.Output(streams, outputPath, outputKwargs).OverWriteOutput()
}

// bind rebuilds a compiled command so it runs the configured binary and dies with ctx.
func (p *Processor) bind(ctx context.Context, compiled *exec.Cmd) *exec.Cmd {
	cmd := exec.CommandContext(ctx, p.ffmpegPath, compiled.Args[1:]...)
	cmd.Stdin = compiled.Stdin
	cmd.Stdout = compiled.Stdout
	cmd.Stderr = compiled.Stderr
	return cmd
}

func GetOptimalThreadCount() int {
	cpuCount := runtime.NumCPU()
	// Use 75% of available cores to prevent overload
	return int(math.Max(1, float64(cpuCount)*0.75))
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// parseRate parses ffprobe rates such as "30000/1001" or "25".
func parseRate(s string) float64 {
	if s == "" {
		return 0
	}
	nums := strings.Split(s, "/")
	if len(nums) == 1 {
		return parseFloat(nums[0])
	}
	if len(nums) != 2 {
		return 0
	}
	num := parseFloat(nums[0])
	den := parseFloat(nums[1])
	if den == 0 {
		return 0
	}
	return num / den
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}

// lastLine keeps error messages short; ffmpeg prints its reason last.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
