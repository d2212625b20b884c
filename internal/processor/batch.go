package processor

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZacxDev/video-zoom/internal/config"
	"github.com/ZacxDev/video-zoom/internal/transform"
	"github.com/ZacxDev/video-zoom/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// FileSystem is the directory access the runner needs
type FileSystem interface {
	MkdirAll(path string) error
	ReadDir(path string) ([]os.DirEntry, error)
}

// OSFileSystem uses the local disk
type OSFileSystem struct{}

func (OSFileSystem) MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func (OSFileSystem) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

// Observer receives per-file progress
type Observer interface {
	Started(name string)
	Saved(name, outputPath string)
	Failed(name string, err error)
}

// LogObserver reports progress through a zap logger
type LogObserver struct {
	Logger *zap.Logger
}

func (o LogObserver) Started(name string) {
	o.Logger.Info("processing", zap.String("file", name))
}

func (o LogObserver) Saved(name, outputPath string) {
	o.Logger.Info("saved zoomed video", zap.String("file", name), zap.String("output", outputPath))
}

func (o LogObserver) Failed(name string, err error) {
	o.Logger.Error("failed to zoom video", zap.String("file", name), zap.Error(err))
}

// Observers fans progress out to several observers in order
type Observers []Observer

func (o Observers) Started(name string) {
	for _, obs := range o {
		obs.Started(name)
	}
}

func (o Observers) Saved(name, outputPath string) {
	for _, obs := range o {
		obs.Saved(name, outputPath)
	}
}

func (o Observers) Failed(name string, err error) {
	for _, obs := range o {
		obs.Failed(name, err)
	}
}

// Runner zooms every recognized video in a directory
type Runner struct {
	fs        FileSystem
	processor VideoProcessor
	observer  Observer
}

// NewRunner creates a batch runner. A nil fs uses the local disk.
func NewRunner(fs FileSystem, processor VideoProcessor, observer Observer) *Runner {
	if fs == nil {
		fs = OSFileSystem{}
	}
	if observer == nil {
		observer = LogObserver{Logger: zap.NewNop()}
	}
	return &Runner{
		fs:        fs,
		processor: processor,
		observer:  observer,
	}
}

// Run processes the immediate entries of inputDir into outputDir. Failures of single
// files are recorded in the report and do not stop the batch. An invalid zoom factor,
// an output directory that cannot be created, an unreadable input directory or a
// cancelled context abort the run.
func (r *Runner) Run(ctx context.Context, inputDir, outputDir string, zoom float64) (*types.BatchReport, error) {
	if err := transform.ValidateZoom(zoom); err != nil {
		return nil, err
	}

	if err := r.fs.MkdirAll(outputDir); err != nil {
		return nil, types.WrapKindf(types.ErrDirectory, err, "error creating output directory %s", outputDir)
	}

	entries, err := r.fs.ReadDir(inputDir)
	if err != nil {
		return nil, types.WrapKindf(types.ErrDirectory, err, "error reading input directory %s", inputDir)
	}

	report := &types.BatchReport{}
	for _, entry := range entries {
		if entry.IsDir() || !IsVideoFile(entry.Name()) || IsPartialFile(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, errors.WithStack(err)
		}

		name := entry.Name()
		inputPath := filepath.Join(inputDir, name)
		outputPath := filepath.Join(outputDir, OutputName(name))

		r.observer.Started(name)
		if err := r.processor.Process(ctx, inputPath, outputPath, zoom); err != nil {
			if ctx.Err() != nil {
				return report, errors.WithStack(ctx.Err())
			}
			r.observer.Failed(name, err)
			report.Failed = append(report.Failed, types.FileResult{Name: name, OutputPath: outputPath, Err: err})
			continue
		}

		r.observer.Saved(name, outputPath)
		report.Succeeded = append(report.Succeeded, types.FileResult{Name: name, OutputPath: outputPath})
	}

	return report, nil
}

// IsVideoFile reports whether name carries a recognized video extension, ignoring case.
func IsVideoFile(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return ext != "" && slices.Contains(config.VideoExtensions, ext)
}

// IsPartialFile reports whether name is an unfinished output left by an interrupted run.
func IsPartialFile(name string) bool {
	return strings.HasPrefix(name, config.PartialPrefix)
}

// OutputName returns the output file name for an input file name
func OutputName(name string) string {
	return config.OutputPrefix + name
}
