package director

import (
	"github.com/ivlev/greetcard/internal/prop"
)

// Script is the authored greeting sequence.
type Script struct {
	Version string   `yaml:"version"`
	Split   []string `yaml:"split,omitempty"` // units split into per-character spans before building
	Steps   []Step   `yaml:"steps"`
}

// Step actions.
const (
	ActionTo            = "to"
	ActionFrom          = "from"
	ActionFromTo        = "fromTo"
	ActionStaggerTo     = "staggerTo"
	ActionStaggerFrom   = "staggerFrom"
	ActionStaggerFromTo = "staggerFromTo"
	ActionLabel         = "label"
	ActionCall          = "call"
)

// Step is one entry of the script.
type Step struct {
	Action      string   `yaml:"action"`
	Target      string   `yaml:"target,omitempty"`
	Duration    float64  `yaml:"duration,omitempty"`
	From        prop.Map `yaml:"from,omitempty"`
	To          prop.Map `yaml:"to,omitempty"`
	Ease        string   `yaml:"ease,omitempty"`
	Stagger     float64  `yaml:"stagger,omitempty"`
	Repeat      int      `yaml:"repeat,omitempty"`
	RepeatDelay float64  `yaml:"repeatDelay,omitempty"`
	Position    string   `yaml:"position,omitempty"` // "", "1.5", "+=2.5", "-=1", "party", "party+=0.5"
	Name        string   `yaml:"name,omitempty"`     // label name or hook name
}
