// Package audio starts the background track of the greeting under a
// platform policy that may refuse playback until the user interacts.
//
// A refused start is not an error of the program: Gate.Start reports false,
// and the gesture fallback keeps retrying on user input until one start
// succeeds.
package audio

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/ivlev/greetcard/internal/input"
	"github.com/ivlev/greetcard/internal/logging"
)

var (
	ErrNoResource      = errors.New("audio: no resource bound")
	ErrAutoplayBlocked = errors.New("audio: playback requires a user gesture")
)

// Player is a playable audio resource.
type Player interface {
	// Play starts or resumes playback. An error means the platform refused.
	Play(ctx context.Context) error
	// Pause suspends playback.
	Pause() error
}

// Gate wraps one Player with idempotent start and stop.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Concurrent Start calls
//     initiate playback at most once.
type Gate struct {
	player Player
	log    *logging.Logger

	mu      sync.Mutex
	started bool

	armMu       sync.Mutex
	armed       bool
	unsubscribe []func()
}

// NewGate creates a gate for player. A nil player means no resource is bound:
// every operation is then a no-op and Start reports false.
func NewGate(player Player, log *logging.Logger) *Gate {
	if log == nil {
		log = logging.Nop()
	}
	return &Gate{player: player, log: log.With("component", "audio")}
}

// Start begins playback unless it already started. It reports whether audio
// is playing and never fails loudly: a refusal leaves the gate stopped so a
// later call may retry.
func (g *Gate) Start(ctx context.Context) bool {
	if g.player == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return true
	}
	if err := g.player.Play(ctx); err != nil {
		g.log.Debug("start refused", "error", err)
		return false
	}
	g.started = true
	g.log.Info("audio started")
	return true
}

// Stop pauses playback and allows a future Start. It is safe to call when
// playback never started.
func (g *Gate) Stop() {
	if g.player == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.player.Pause(); err != nil {
		g.log.Debug("pause failed", "error", err)
	}
	g.started = false
}

// Started reports whether playback is running.
func (g *Gate) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started
}

// ArmGestureFallback subscribes one handler to every qualifying gesture on
// bus. Each gesture retries Start; the first success unsubscribes the handler
// from all gesture kinds. Arming an armed gate does nothing.
func (g *Gate) ArmGestureFallback(ctx context.Context, bus *input.Bus) {
	if g.player == nil {
		return
	}
	g.armMu.Lock()
	defer g.armMu.Unlock()
	if g.armed {
		return
	}
	g.armed = true

	handler := func(ev input.Event) {
		if !g.Armed() {
			return
		}
		if g.Start(ctx) {
			g.log.Debug("gesture started audio", "event", ev.Kind, "source", ev.Source)
			g.Disarm()
		}
	}
	for _, k := range input.Gestures {
		g.unsubscribe = append(g.unsubscribe, bus.Subscribe(k, handler))
	}
}

// Armed reports whether the gesture fallback is listening.
func (g *Gate) Armed() bool {
	g.armMu.Lock()
	defer g.armMu.Unlock()
	return g.armed
}

// Disarm removes the gesture fallback from every event kind at once.
func (g *Gate) Disarm() {
	g.armMu.Lock()
	defer g.armMu.Unlock()
	for _, unsub := range g.unsubscribe {
		unsub()
	}
	g.unsubscribe = nil
	g.armed = false
}

// Close disarms the fallback, stops playback and releases the player.
func (g *Gate) Close() error {
	g.Disarm()
	g.Stop()
	if c, ok := g.player.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
