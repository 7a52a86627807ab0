// Package input carries user input events from their sources to the
// components that react to them.
package input

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Kind is the type of a user input event.
type Kind int

const (
	PointerDown Kind = iota + 1
	TouchStart
	KeyDown
	Replay // activation of the replay control
)

// Gestures are the event kinds that count as permission to start audio.
var Gestures = []Kind{PointerDown, TouchStart, KeyDown}

func (k Kind) String() string {
	switch k {
	case PointerDown:
		return "click"
	case TouchStart:
		return "touch"
	case KeyDown:
		return "key"
	case Replay:
		return "replay"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind reads the names produced by Kind.String plus a few aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "click", "c", "pointerdown", "mousedown":
		return PointerDown, nil
	case "touch", "t", "touchstart":
		return TouchStart, nil
	case "key", "k", "", "keydown":
		return KeyDown, nil
	case "replay", "r":
		return Replay, nil
	}
	return 0, fmt.Errorf("input: unknown event %q", s)
}

// Event is one user input.
type Event struct {
	Kind   Kind
	Source string
	At     time.Time
}

type subscription struct {
	id uint64
	fn func(Event)
}

// Bus dispatches events to subscribers in subscription order.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Handlers run on the
//     dispatching goroutine.
type Bus struct {
	mu        sync.RWMutex
	subs      map[Kind][]subscription
	next      uint64
	activated atomic.Bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// Subscribe registers fn for events of kind k. The returned function removes
// the registration and is safe to call more than once.
func (b *Bus) Subscribe(k Kind, fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[k] = append(b.subs[k], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[k]
		for i, s := range subs {
			if s.id == id {
				b.subs[k] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Subscribers returns the number of handlers registered for k.
func (b *Bus) Subscribers(k Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[k])
}

// Dispatch records the user activation and runs the handlers subscribed to
// ev.Kind.
func (b *Bus) Dispatch(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.activated.Store(true)

	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[ev.Kind]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// Activated reports whether any user input has been dispatched yet.
func (b *Bus) Activated() bool {
	return b.activated.Load()
}
