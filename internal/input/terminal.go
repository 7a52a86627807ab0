package input

import (
	"bufio"
	"context"
	"io"

	"github.com/ivlev/greetcard/internal/logging"
)

// Source produces events onto a bus until ctx is done.
type Source interface {
	Run(ctx context.Context, bus *Bus) error
}

var (
	_ Source = (*Terminal)(nil)
	_ Source = (*MQTT)(nil)
)

// Terminal turns lines read from r into events: an empty line or "key" is a
// key press, "click" a pointer press, "touch" a touch start and "replay" (or
// "r") activates the replay control.
type Terminal struct {
	r   io.Reader
	log *logging.Logger
}

// NewTerminal creates a terminal source reading r.
func NewTerminal(r io.Reader, log *logging.Logger) *Terminal {
	if log == nil {
		log = logging.Nop()
	}
	return &Terminal{r: r, log: log.With("component", "input.terminal")}
}

// Run reads lines until EOF or ctx is done.
func (t *Terminal) Run(ctx context.Context, bus *Bus) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(t.r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			kind, err := ParseKind(line)
			if err != nil {
				t.log.Warn("ignoring input", "line", line)
				continue
			}
			bus.Dispatch(Event{Kind: kind, Source: "terminal"})
		}
	}
}
