package timeline

import (
	"context"
	"time"
)

// Play starts the runtime clock from zero. Playing an already playing
// timeline is a no-op. The first frame renders one frame interval after Play
// returns.
func (tl *Timeline) Play() error {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.err != nil {
		return tl.err
	}
	if tl.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	tl.cancel, tl.done = cancel, done
	tl.clock = 0
	for _, c := range tl.calls {
		c.fired = false
	}
	go tl.run(ctx, done)

	tl.log.Debug("playback started", "duration", tl.cursor, "steps", len(tl.steps))
	return nil
}

// Stop halts the runtime clock and waits until no frame is rendering.
// Property values are left as last rendered.
func (tl *Timeline) Stop() {
	tl.mu.Lock()
	cancel, done := tl.cancel, tl.done
	tl.cancel, tl.done = nil, nil
	tl.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Restart stops the clock, resets every animated property to the value it
// held before the timeline touched it, and plays again from zero.
func (tl *Timeline) Restart() error {
	tl.restartMu.Lock()
	defer tl.restartMu.Unlock()

	if err := tl.Err(); err != nil {
		return err
	}
	tl.Stop()

	tl.mu.Lock()
	for _, trk := range tl.tracks {
		tl.surface.SetProperty(trk.target, trk.name, trk.baseline)
	}
	tl.clock = 0
	tl.mu.Unlock()

	return tl.Play()
}

// Playing reports whether the runtime clock is running.
func (tl *Timeline) Playing() bool {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.cancel != nil
}

// Clock returns the runtime clock value of the last rendered frame.
func (tl *Timeline) Clock() float64 {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.clock
}

// Tick advances the runtime clock to t: it renders every track at t and runs
// the callbacks that became due, each at most once per play session. It
// reports whether t reached the end of the timeline.
func (tl *Timeline) Tick(t float64) bool {
	tl.mu.Lock()
	if tl.err != nil {
		tl.mu.Unlock()
		return true
	}
	tl.renderLocked(t)
	var due []func()
	for _, c := range tl.calls {
		if !c.fired && c.at <= t+epsilon {
			c.fired = true
			due = append(due, c.fn)
		}
	}
	finished := t >= tl.cursor
	tl.mu.Unlock()

	for _, fn := range due {
		fn()
	}
	return finished
}

// Seek renders the state at t without running callbacks.
func (tl *Timeline) Seek(t float64) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.err != nil {
		return
	}
	tl.renderLocked(t)
}

func (tl *Timeline) renderLocked(t float64) {
	tl.clock = t
	for _, trk := range tl.tracks {
		tl.surface.SetProperty(trk.target, trk.name, trk.valueAt(t))
	}
}

func (tl *Timeline) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(tl.frame)
	defer ticker.Stop()

	start := tl.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if tl.Tick(tl.now().Sub(start).Seconds()) {
				tl.finish(done)
				return
			}
		}
	}
}

// finish releases the session when the clock ran to the end on its own.
func (tl *Timeline) finish(done chan struct{}) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.done != done {
		return
	}
	tl.cancel()
	tl.cancel, tl.done = nil, nil
	tl.log.Debug("playback finished", "clock", tl.clock)
}
