// Command greetcard plays the animated greeting in the terminal or exports it
// as a video.
//
// Usage:
//
//	greetcard [play|export] [flags]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/greetcard/internal/audio"
	"github.com/ivlev/greetcard/internal/config"
	"github.com/ivlev/greetcard/internal/director"
	"github.com/ivlev/greetcard/internal/engine"
	"github.com/ivlev/greetcard/internal/input"
	"github.com/ivlev/greetcard/internal/logging"
	"github.com/ivlev/greetcard/internal/share"
	"github.com/ivlev/greetcard/internal/stage"
	"github.com/ivlev/greetcard/internal/system"
	"github.com/ivlev/greetcard/internal/video"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		logging.Default().Error("greetcard failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	mode := "play"
	if len(args) > 0 && (args[0] == "play" || args[0] == "export") {
		mode, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet("greetcard "+mode, flag.ContinueOnError)
	configPtr := fs.String("config", "", "Path to a YAML configuration file")
	customizePtr := fs.String("customize", "", "Path or URL of customize.json")
	audioPtr := fs.String("audio", "", "Background track (default: newest file in audio.search_dir)")
	scriptPtr := fs.String("script", "", "Script file or directory (default: built-in greeting)")
	layoutPtr := fs.String("layout", "", "Layout file (default: built-in layout)")
	outputPtr := fs.String("out", "", "Output video (default: output/greeting_<timestamp>.mp4)")
	fpsPtr := fs.Int("fps", 0, "Frames per second")
	widthPtr := fs.Int("width", 0, "Export width")
	heightPtr := fs.Int("height", 0, "Export height")
	presetPtr := fs.String("preset", "", "Export format preset: 16:9, 9:16, 4:5")
	workersPtr := fs.Int("workers", 0, "Concurrent frame encoders (0: from host resources)")
	sharePtr := fs.String("share", "", "URL of the hosted greeting, written as a QR code next to the video")
	qualityPtr := fs.Int("quality", 0, "Video quality (0: auto, x264: CRF 1-51, VideoToolbox: bitrate = Q*100 kbit/s)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPtr)
	if err != nil {
		return err
	}
	cfg.BuildVersion = version
	applyFlags(cfg, mode, flagValues{
		customize: *customizePtr,
		audio:     *audioPtr,
		script:    *scriptPtr,
		layout:    *layoutPtr,
		output:    *outputPtr,
		fps:       *fpsPtr,
		width:     *widthPtr,
		height:    *heightPtr,
		preset:    *presetPtr,
		workers:   *workersPtr,
		quality:   *qualityPtr,
		share:     *sharePtr,
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(cfg.Logging, version)

	layout := stage.DefaultLayout()
	if cfg.Layout != "" {
		if layout, err = stage.ReadLayout(cfg.Layout); err != nil {
			return fmt.Errorf("layout: %w", err)
		}
	}
	script, scriptPath, err := director.LoadScript(cfg.Script)
	if err != nil {
		return fmt.Errorf("script: %w", err)
	}
	log.Info("script loaded", "source", scriptPath, "steps", len(script.Steps))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := input.NewBus()
	audioPath := engine.ResolveAudio(cfg.Audio, log)

	var player audio.Player
	if mode == "play" {
		if player, err = engine.OpenPlayer(cfg.Audio, audioPath, bus); err != nil {
			log.Warn("background track disabled", "error", err)
		}
	}
	gate := audio.NewGate(player, log)
	defer gate.Close()

	greeting := engine.New(cfg, layout, script, gate, bus,
		engine.WithLogger(log),
		engine.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
	)
	if err := greeting.Prepare(ctx); err != nil {
		return err
	}

	if mode == "export" {
		return export(ctx, cfg, greeting, audioPath, log)
	}
	return play(ctx, cfg, greeting, bus, log)
}

type flagValues struct {
	customize, audio, script, layout, output, preset, share string
	fps, width, height, workers, quality                    int
}

// applyFlags lays command line values over the loaded configuration.
func applyFlags(cfg *config.Config, mode string, f flagValues) {
	if f.customize != "" {
		cfg.Customize = f.customize
	}
	if f.audio != "" {
		cfg.Audio.Path = f.audio
	}
	if f.script != "" {
		cfg.Script = f.script
	}
	if f.layout != "" {
		cfg.Layout = f.layout
	}
	if f.output != "" {
		cfg.Export.Output = f.output
	}
	if f.fps > 0 {
		if mode == "export" {
			cfg.Export.FPS = f.fps
		} else {
			cfg.Playback.FPS = f.fps
		}
	}
	switch f.preset {
	case "16:9":
		cfg.Export.Width, cfg.Export.Height = 1280, 720
	case "9:16":
		cfg.Export.Width, cfg.Export.Height = 720, 1280
	case "4:5":
		cfg.Export.Width, cfg.Export.Height = 1080, 1350
	}
	if f.width > 0 {
		cfg.Export.Width = f.width
	}
	if f.height > 0 {
		cfg.Export.Height = f.height
	}
	if f.workers > 0 {
		cfg.Export.Workers = f.workers
	}
	if f.quality > 0 {
		cfg.Export.Quality = f.quality
	}
	if f.share != "" {
		cfg.Export.ShareURL = f.share
	}
}

func play(ctx context.Context, cfg *config.Config, greeting *engine.Greeting, bus *input.Bus, log *logging.Logger) error {
	engine.NewPresenter(greeting.Stage(), os.Stdout)

	sources := map[string]input.Source{}
	if cfg.Input.Terminal {
		fmt.Println("Press Enter to interact, r + Enter to replay, Ctrl+C to quit.")
		sources["terminal"] = input.NewTerminal(os.Stdin, log)
	}
	if cfg.Input.MQTT.Broker != "" {
		src, err := input.DialMQTT(cfg.Input.MQTT, log)
		if err != nil {
			log.Warn("mqtt input unavailable", "broker", cfg.Input.MQTT.Broker, "error", err)
		} else {
			sources["mqtt"] = src
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, src := range sources {
		name, src := name, src
		g.Go(func() error {
			if err := src.Run(gctx, bus); err != nil {
				log.Warn("input source stopped", "source", name, "error", err)
			}
			return nil
		})
	}
	g.Go(func() error { return greeting.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("greeting closed")
	return nil
}

func export(ctx context.Context, cfg *config.Config, greeting *engine.Greeting, audioPath string, log *logging.Logger) error {
	ec := cfg.Export
	output := ec.Output
	if output == "" {
		if err := os.MkdirAll("output", 0755); err != nil {
			return err
		}
		output = filepath.Join("output", fmt.Sprintf("greeting_%s.mp4", time.Now().Format("2006-01-02_15-04-05")))
	}

	encoderName := ec.Encoder
	if encoderName == "" {
		encoderName, _ = system.GetBestH264Encoder()
		if encoderName != "libx264" {
			log.Info("hardware acceleration detected", "encoder", encoderName)
		}
	}
	quality := ec.Quality
	if quality == 0 {
		switch encoderName {
		case "h264_videotoolbox":
			quality = 75
		case "h264_nvenc":
			quality = 28 // roughly CRF for NVENC
		default:
			quality = 23
		}
	}

	if audioPath != "" {
		if d, err := system.GetAudioDuration(audioPath); err == nil {
			log.Info("background track", "path", audioPath, "duration", d, "greeting", greeting.Timeline().Duration())
		} else {
			log.Warn("could not read audio duration", "path", audioPath, "error", err)
		}
	}
	if stats, err := system.HostStats(); err == nil {
		log.Debug("host resources",
			"cpus", stats.LogicalCPUs,
			"mem_total", stats.TotalMemory,
			"mem_available", stats.AvailMemory,
			"mem_used_pct", stats.MemoryUsedPc,
		)
	}

	_, err := greeting.Export(ctx, &video.FFmpegEncoder{}, video.Options{
		Output:       output,
		FramesDir:    ec.FramesDir,
		KeepFrames:   ec.KeepFrames,
		FPS:          ec.FPS,
		Workers:      ec.Workers,
		AudioPath:    audioPath,
		VideoEncoder: encoderName,
		Quality:      quality,
		ShowStats:    ec.ShowStats,
		BuildVersion: cfg.BuildVersion,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Done: %s\n", output)

	if ec.ShareURL != "" {
		qr := share.Path(output)
		if err := share.WriteQR(ec.ShareURL, qr, ec.ShareSize); err != nil {
			return fmt.Errorf("share code: %w", err)
		}
		fmt.Printf("Share code: %s\n", qr)
	}
	return nil
}
