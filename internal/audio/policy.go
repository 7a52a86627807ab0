package audio

import "context"

// Activation reports whether the user has interacted with the program.
// *input.Bus satisfies it.
type Activation interface {
	Activated() bool
}

// GesturePolicy refuses playback until the user has interacted, the way
// browsers gate autoplay. Once activated it stays activated.
type GesturePolicy struct {
	Player     Player
	Activation Activation
}

// Play forwards to the wrapped player once activated.
func (p GesturePolicy) Play(ctx context.Context) error {
	if !p.Activation.Activated() {
		return ErrAutoplayBlocked
	}
	return p.Player.Play(ctx)
}

// Pause forwards to the wrapped player.
func (p GesturePolicy) Pause() error {
	return p.Player.Pause()
}

// Close forwards to the wrapped player when it can be closed.
func (p GesturePolicy) Close() error {
	if c, ok := p.Player.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
