package engine

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ivlev/greetcard/internal/prop"
	"github.com/ivlev/greetcard/internal/stage"
)

// Presenter prints the text of laid out units to w as they appear during
// realtime playback.
type Presenter struct {
	st *stage.Stage
	w  io.Writer

	mu    sync.Mutex
	shown map[*stage.Node]bool
}

// NewPresenter observes st and writes to w.
func NewPresenter(st *stage.Stage, w io.Writer) *Presenter {
	p := &Presenter{st: st, w: w, shown: make(map[*stage.Node]bool)}
	st.Observe(p.observe)
	return p
}

func (p *Presenter) observe(c stage.Change) {
	if c.Name != "opacity" && c.Name != "visibility" {
		return
	}
	n := c.Node
	if n.Box.Empty() {
		return
	}
	text := strings.Join(strings.Fields(n.TextContent()), " ")
	if text == "" {
		return
	}

	visible := p.visible(n)
	p.mu.Lock()
	defer p.mu.Unlock()
	if visible && !p.shown[n] {
		fmt.Fprintln(p.w, text)
	}
	p.shown[n] = visible
}

func (p *Presenter) visible(n *stage.Node) bool {
	if v := p.st.Property(n, "visibility"); v.Kind == prop.Keyword && v.Word == "hidden" {
		return false
	}
	op := p.st.Property(n, "opacity")
	return op.Kind != prop.Number || op.Num > 0
}
