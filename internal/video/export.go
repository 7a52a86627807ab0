package video

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/greetcard/internal/logging"
	"github.com/ivlev/greetcard/internal/system"
)

// Seeker renders the presentation state at a point in time.
type Seeker interface {
	Seek(t float64)
	Duration() float64
}

// Painter rasterises the current presentation state.
type Painter interface {
	Bounds() image.Rectangle
	Render(dst *image.RGBA)
}

// Options control an export.
type Options struct {
	Output       string
	FramesDir    string // empty means a temporary directory
	KeepFrames   bool
	FPS          int
	Workers      int
	AudioPath    string
	VideoEncoder string
	Quality      int
	ShowStats    bool
	BuildVersion string
}

// Report summarises a finished export.
type Report struct {
	Frames   int
	Duration float64
	Render   time.Duration
	Assemble time.Duration
	Total    time.Duration
}

// Exporter renders the timeline frame by frame and hands the frames to an
// Encoder. Frames are rendered in order on the calling goroutine; PNG
// encoding runs on a bounded worker pool.
type Exporter struct {
	Timeline Seeker
	Renderer Painter
	Encoder  Encoder
	Log      *logging.Logger
}

// FramePattern is the file name pattern of exported frames.
const FramePattern = "frame_%05d.png"

// FrameCount is the number of frames covering duration at fps, both ends
// included.
func FrameCount(duration float64, fps int) int {
	if fps <= 0 || duration <= 0 {
		return 1
	}
	return int(math.Ceil(duration*float64(fps)-1e-9)) + 1
}

// Export writes opts.Output.
func (e *Exporter) Export(ctx context.Context, opts Options) (Report, error) {
	log := e.Log
	if log == nil {
		log = logging.Nop()
	}
	if opts.FPS <= 0 {
		return Report{}, fmt.Errorf("export: fps must be positive, got %d", opts.FPS)
	}
	workers := opts.Workers
	if workers <= 0 {
		b := e.Renderer.Bounds()
		workers = system.DefaultWorkers(b.Dx(), b.Dy())
	}

	dir := opts.FramesDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "greetcard_")
		if err != nil {
			return Report{}, err
		}
		dir = tmp
		if !opts.KeepFrames {
			defer os.RemoveAll(tmp)
		}
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return Report{}, err
	}

	start := time.Now()
	duration := e.Timeline.Duration()
	frames := FrameCount(duration, opts.FPS)
	log.Info("exporting",
		"frames", frames,
		"duration", duration,
		"fps", opts.FPS,
		"workers", workers,
		"frames_dir", dir,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	bounds := e.Renderer.Bounds()
	for i := 0; i < frames; i++ {
		if gctx.Err() != nil {
			break
		}
		t := math.Min(float64(i)/float64(opts.FPS), duration)
		e.Timeline.Seek(t)
		img := system.GetImage(bounds)
		e.Renderer.Render(img)

		path := filepath.Join(dir, fmt.Sprintf(FramePattern, i))
		g.Go(func() error {
			defer system.PutImage(img)
			return writePNG(path, img)
		})
		if (i+1)%(opts.FPS*5) == 0 {
			log.Debug("frames rendered", "done", i+1, "total", frames)
		}
	}
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("writing frames: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	renderTime := time.Since(start)
	log.Debug("frame buffers", "allocated", system.FramesAllocated(), "frames", frames)

	assembleStart := time.Now()
	job := Job{
		FramePattern: filepath.Join(dir, FramePattern),
		FPS:          opts.FPS,
		Duration:     duration,
		AudioPath:    opts.AudioPath,
		Output:       opts.Output,
		VideoEncoder: opts.VideoEncoder,
		Quality:      opts.Quality,
	}
	if err := e.Encoder.Assemble(ctx, job); err != nil {
		return Report{}, err
	}

	rep := Report{
		Frames:   frames,
		Duration: duration,
		Render:   renderTime,
		Assemble: time.Since(assembleStart),
		Total:    time.Since(start),
	}
	log.Info("export finished", "output", opts.Output, "frames", frames, "total", rep.Total.Round(time.Millisecond))
	if opts.ShowStats {
		e.report(log, opts, rep)
	}
	return rep, nil
}

func (e *Exporter) report(log *logging.Logger, opts Options, rep Report) {
	fps := float64(rep.Frames) / rep.Total.Seconds()
	log.Info("performance report",
		"build", opts.BuildVersion,
		"total_s", rep.Total.Seconds(),
		"render_s", rep.Render.Seconds(),
		"assemble_s", rep.Assemble.Seconds(),
		"effective_fps", fps,
	)

	entry := fmt.Sprintf("[%s] Build: %s | Output: %s | Frames: %d | Total: %.2fs | Render: %.2fs | Assemble: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		opts.BuildVersion,
		filepath.Base(opts.Output),
		rep.Frames,
		rep.Total.Seconds(),
		rep.Render.Seconds(),
		rep.Assemble.Seconds(),
		fps,
	)
	f, err := os.OpenFile("benchmark.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Warn("could not write benchmark.log", "error", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(entry); err != nil {
		log.Warn("could not write benchmark.log", "error", err)
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
