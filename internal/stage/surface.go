package stage

import (
	"github.com/ivlev/greetcard/internal/prop"
	"github.com/ivlev/greetcard/internal/timeline"
)

// Surface adapts the stage to the timeline's renderer contract.
type Surface struct {
	Stage *Stage
}

var _ timeline.Surface = Surface{}

// Resolve returns the nodes matched by selector as timeline targets.
func (s Surface) Resolve(selector string) []timeline.Target {
	nodes := s.Stage.Query(selector)
	out := make([]timeline.Target, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out
}

// Property reads a property of a target produced by Resolve.
func (s Surface) Property(t timeline.Target, name string) prop.Value {
	return s.Stage.Property(t.(*Node), name)
}

// SetProperty writes a property of a target produced by Resolve.
func (s Surface) SetProperty(t timeline.Target, name string, v prop.Value) {
	s.Stage.SetProperty(t.(*Node), name, v)
}
