// Package engine drives one greeting from customization to playback or
// export.
//
// The sequence mirrors what a viewer sees: customization is applied to the
// stage, split units are broken into characters, the script is compiled into
// a timeline, and the timeline plays. Audio starts from a call step at the
// beginning of the timeline; if the platform refuses, the gesture fallback on
// the input bus retries on the first user interaction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ivlev/greetcard/internal/audio"
	"github.com/ivlev/greetcard/internal/config"
	"github.com/ivlev/greetcard/internal/customize"
	"github.com/ivlev/greetcard/internal/director"
	"github.com/ivlev/greetcard/internal/input"
	"github.com/ivlev/greetcard/internal/logging"
	"github.com/ivlev/greetcard/internal/prepare"
	"github.com/ivlev/greetcard/internal/prop"
	"github.com/ivlev/greetcard/internal/renderer"
	"github.com/ivlev/greetcard/internal/source"
	"github.com/ivlev/greetcard/internal/stage"
	"github.com/ivlev/greetcard/internal/timeline"
	"github.com/ivlev/greetcard/internal/video"
)

// MusicHook is the call step name that starts the background track.
const MusicHook = "music.start"

// ErrNotPrepared is returned by Run, Replay and Export before Prepare.
var ErrNotPrepared = errors.New("engine: greeting not prepared")

// Greeting owns the stage, timeline and audio gate of one greeting.
type Greeting struct {
	cfg    *config.Config
	layout *stage.Layout
	script *director.Script
	gate   *audio.Gate
	bus    *input.Bus
	log    *logging.Logger
	client *http.Client

	stage    *stage.Stage
	timeline *timeline.Timeline
}

// Option configures a Greeting.
type Option func(*Greeting)

// WithHTTPClient sets the client used for remote customization payloads.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Greeting) { g.client = c }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(g *Greeting) {
		if log != nil {
			g.log = log
		}
	}
}

// New creates a greeting. gate may wrap a nil player when no audio is bound.
func New(cfg *config.Config, layout *stage.Layout, script *director.Script, gate *audio.Gate, bus *input.Bus, opts ...Option) *Greeting {
	g := &Greeting{
		cfg:    cfg,
		layout: layout,
		script: script,
		gate:   gate,
		bus:    bus,
		log:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With("component", "engine")
	return g
}

// Stage returns the prepared stage.
func (g *Greeting) Stage() *stage.Stage { return g.stage }

// Timeline returns the compiled timeline.
func (g *Greeting) Timeline() *timeline.Timeline { return g.timeline }

// Prepare builds the stage, applies customization, splits text units and
// compiles the script. A customization failure is logged and the defaults
// are kept. ctx bounds the audio started by the timeline.
func (g *Greeting) Prepare(ctx context.Context) error {
	st, err := g.layout.Build()
	if err != nil {
		return fmt.Errorf("building stage: %w", err)
	}
	g.stage = st

	if loc := g.cfg.Customize; loc != "" {
		payload, err := customize.Load(ctx, loc, g.client)
		if err != nil {
			g.log.Warn("customization unavailable, using defaults", "location", loc, "error", err)
		} else {
			n := customize.Apply(st, payload, g.log)
			g.log.Info("customization applied", "location", loc, "slots", n)
		}
	}

	for sel, n := range prepare.All(st, g.script.Split) {
		if n == 0 {
			g.log.Debug("split unit missing or empty", "selector", sel)
		}
	}

	tl := timeline.New(stage.Surface{Stage: st},
		timeline.WithFrameRate(g.cfg.Playback.FPS),
		timeline.WithLogger(g.log),
	)
	hooks := director.Hooks{
		MusicHook: func() {
			// The clock never waits on audio.
			go g.gate.Start(ctx)
		},
	}
	if err := director.Compile(g.script, tl, hooks); err != nil {
		return fmt.Errorf("compiling script: %w", err)
	}
	g.timeline = tl

	g.log.Info("greeting prepared",
		"duration", tl.Duration(),
		"steps", len(tl.Steps()),
		"labels", len(tl.Labels()),
	)
	return nil
}

// Run arms the audio fallback, starts playback and blocks until ctx is done.
// Replay events restart the greeting.
func (g *Greeting) Run(ctx context.Context) error {
	if g.timeline == nil {
		return ErrNotPrepared
	}
	g.gate.ArmGestureFallback(ctx, g.bus)
	unsubscribe := g.bus.Subscribe(input.Replay, func(ev input.Event) {
		g.log.Info("replay requested", "source", ev.Source)
		if err := g.Replay(ctx); err != nil {
			g.log.Error("replay failed", "error", err)
		}
	})
	defer unsubscribe()

	if err := g.timeline.Play(); err != nil {
		return err
	}
	<-ctx.Done()
	g.timeline.Stop()
	g.gate.Stop()
	return nil
}

// Replay makes sure audio plays and restarts the timeline from zero.
func (g *Greeting) Replay(ctx context.Context) error {
	if g.timeline == nil {
		return ErrNotPrepared
	}
	g.gate.Start(ctx)
	return g.timeline.Restart()
}

// Export renders the greeting into a video with enc. Unset options are
// filled from the export configuration.
func (g *Greeting) Export(ctx context.Context, enc video.Encoder, opts video.Options) (video.Report, error) {
	if g.timeline == nil {
		return video.Report{}, ErrNotPrepared
	}
	ec := g.cfg.Export
	if opts.FPS == 0 {
		opts.FPS = ec.FPS
	}
	bg := prop.RGBA(255, 255, 255, 1)
	if ec.Background != "" {
		var err error
		if bg, err = prop.Parse(ec.Background); err != nil {
			return video.Report{}, fmt.Errorf("export background: %w", err)
		}
		if bg.Kind != prop.Color {
			return video.Report{}, fmt.Errorf("export background %q is not a colour", ec.Background)
		}
	}
	r := renderer.New(g.stage, ec.Width, ec.Height,
		renderer.WithBackground(bg),
		renderer.WithViewport(g.layout.Width, g.layout.Height),
		renderer.WithImages(source.NewImages(ec.Assets)),
		renderer.WithLogger(g.log),
	)
	ex := &video.Exporter{
		Timeline: g.timeline,
		Renderer: r,
		Encoder:  enc,
		Log:      g.log,
	}
	return ex.Export(ctx, opts)
}
