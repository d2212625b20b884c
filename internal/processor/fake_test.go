package processor

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZacxDev/video-zoom/internal/config"
	"github.com/ZacxDev/video-zoom/internal/transform"
	"github.com/ZacxDev/video-zoom/pkg/types"
	"github.com/pkg/errors"
)

// fakeVideo describes a source the fake backend can "decode"
type fakeVideo struct {
	desc   types.VideoDescriptor
	frames int
	color  color.NRGBA
	// wrongSizeAt makes frame n come out with the wrong dimensions; -1 disables it
	wrongSizeAt int
	// decodeErrAt fails the read of frame n; -1 disables it
	decodeErrAt int
}

// manifest is what the fake encoder writes instead of a real container
type manifest struct {
	Width  int  `json:"width"`
	Height int  `json:"height"`
	Frames int  `json:"frames"`
	Audio  bool `json:"audio"`
}

type fakeBackend struct {
	videos map[string]fakeVideo

	failEncoderOpen bool
	failWriteAt     int
	failFlush       bool
	onFrame         func(n int)

	decodersOpened int
	decodersClosed int
	encodersOpened int
	encodersClosed int
	renders        []transform.CropRegion
	encoded        map[string][]*image.NRGBA
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		videos:      make(map[string]fakeVideo),
		failWriteAt: -1,
		encoded:     make(map[string][]*image.NRGBA),
	}
}

// addVideo writes a placeholder file and registers its contents.
func (b *fakeBackend) addVideo(path string, width, height, frames int, hasAudio bool) {
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		panic(err)
	}
	b.videos[path] = fakeVideo{
		desc: types.VideoDescriptor{
			Width:     width,
			Height:    height,
			FrameRate: 10,
			HasAudio:  hasAudio,
			Codec:     "h264",
			NumFrames: frames,
		},
		frames:      frames,
		color:       color.NRGBA{R: 180, G: 60, B: 20, A: 255},
		wrongSizeAt: -1,
		decodeErrAt: -1,
	}
}

// addCorrupt writes a file the backend refuses to probe.
func (b *fakeBackend) addCorrupt(path string) {
	if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
		panic(err)
	}
}

func (b *fakeBackend) Probe(ctx context.Context, inputPath string) (*types.VideoDescriptor, error) {
	v, ok := b.videos[inputPath]
	if !ok {
		return nil, types.WrapKindf(types.ErrInputOpen, errors.New("invalid data found when processing input"), "error probing %s", inputPath)
	}
	desc := v.desc
	return &desc, nil
}

func (b *fakeBackend) OpenDecoder(ctx context.Context, inputPath string, desc *types.VideoDescriptor) (types.FrameDecoder, error) {
	v, ok := b.videos[inputPath]
	if !ok {
		return nil, errors.New("no such video")
	}
	b.decodersOpened++
	return &fakeDecoder{backend: b, video: v}, nil
}

func (b *fakeBackend) OpenEncoder(ctx context.Context, outputPath string, desc *types.VideoDescriptor) (types.FrameEncoder, error) {
	if b.failEncoderOpen {
		return nil, errors.New("no space left on device")
	}
	// ffmpeg creates the output file as soon as it starts
	if err := os.WriteFile(outputPath, nil, 0644); err != nil {
		return nil, err
	}
	b.encodersOpened++
	return &fakeEncoder{backend: b, path: outputPath, desc: *desc}, nil
}

func (b *fakeBackend) RenderClip(ctx context.Context, inputPath, outputPath string, desc *types.VideoDescriptor, region transform.CropRegion) error {
	b.renders = append(b.renders, region)
	if b.failFlush {
		_ = os.WriteFile(outputPath, []byte("partial"), 0644)
		return types.WrapKind(types.ErrEncode, errors.New("disk full"), "render")
	}
	return writeManifest(outputPath, manifest{
		Width:  desc.Width,
		Height: desc.Height,
		Frames: b.videos[inputPath].frames,
		Audio:  desc.HasAudio,
	})
}

func (b *fakeBackend) framesFor(outputName string) []*image.NRGBA {
	return b.encoded[outputName]
}

type fakeDecoder struct {
	backend *fakeBackend
	video   fakeVideo
	n       int
	closed  bool
}

func (d *fakeDecoder) ReadFrame() (*image.NRGBA, error) {
	if d.n >= d.video.frames {
		return nil, io.EOF
	}
	if d.n == d.video.decodeErrAt {
		return nil, errors.New("corrupt packet")
	}
	w, h := d.video.desc.Width, d.video.desc.Height
	if d.n == d.video.wrongSizeAt {
		w, h = w/2, h/2
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, d.video.color)
		}
	}
	if d.backend.onFrame != nil {
		d.backend.onFrame(d.n)
	}
	d.n++
	return img, nil
}

func (d *fakeDecoder) Close() error {
	if !d.closed {
		d.closed = true
		d.backend.decodersClosed++
	}
	return nil
}

type fakeEncoder struct {
	backend *fakeBackend
	path    string
	desc    types.VideoDescriptor
	frames  []*image.NRGBA
	closed  bool
}

func (e *fakeEncoder) WriteFrame(img *image.NRGBA) error {
	if len(e.frames) == e.backend.failWriteAt {
		return errors.New("broken pipe")
	}
	e.frames = append(e.frames, img)
	return nil
}

func (e *fakeEncoder) Close() error {
	if e.closed {
		return errors.New("encoder closed twice")
	}
	e.closed = true
	e.backend.encodersClosed++

	name := strings.TrimPrefix(filepath.Base(e.path), config.PartialPrefix)
	e.backend.encoded[name] = e.frames

	if e.backend.failFlush {
		return errors.New("moov atom write failed")
	}
	m := manifest{Width: e.desc.Width, Height: e.desc.Height, Frames: len(e.frames)}
	if len(e.frames) > 0 {
		m.Width = e.frames[0].Bounds().Dx()
		m.Height = e.frames[0].Bounds().Dy()
	}
	return writeManifest(e.path, m)
}

func writeManifest(path string, m manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func readManifest(path string) (manifest, error) {
	var m manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}

// recordingObserver keeps every event in order
type recordingObserver struct {
	events []string
	errs   map[string]error
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{errs: make(map[string]error)}
}

func (o *recordingObserver) Started(name string) {
	o.events = append(o.events, "started "+name)
}

func (o *recordingObserver) Saved(name, outputPath string) {
	o.events = append(o.events, "saved "+name+" -> "+filepath.Base(outputPath))
}

func (o *recordingObserver) Failed(name string, err error) {
	o.events = append(o.events, "failed "+name)
	o.errs[name] = err
}

// recordingProcessor records which inputs it was asked to zoom
type recordingProcessor struct {
	inputs []string
	fail   map[string]error
}

func (p *recordingProcessor) Process(ctx context.Context, inputPath, outputPath string, zoom float64) error {
	p.inputs = append(p.inputs, filepath.Base(inputPath))
	if err := p.fail[filepath.Base(inputPath)]; err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte("ok"), 0644)
}

// fakeFS fails on demand and otherwise defers to the disk
type fakeFS struct {
	mkdirErr   error
	readDirErr error
	mkdirCalls int
}

func (f *fakeFS) MkdirAll(path string) error {
	f.mkdirCalls++
	if f.mkdirErr != nil {
		return f.mkdirErr
	}
	return OSFileSystem{}.MkdirAll(path)
}

func (f *fakeFS) ReadDir(path string) ([]os.DirEntry, error) {
	if f.readDirErr != nil {
		return nil, f.readDirErr
	}
	return OSFileSystem{}.ReadDir(path)
}
