package stage

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/greetcard/internal/prop"
)

//go:embed greeting_layout.yaml
var defaultLayout []byte

// Layout is the YAML form of a stage: a stylesheet plus a node tree.
type Layout struct {
	Width  int      `yaml:"width"`
	Height int      `yaml:"height"`
	Styles []Rule   `yaml:"styles"`
	Root   NodeSpec `yaml:"root"`
}

// NodeSpec describes one node of the layout.
type NodeSpec struct {
	Tag      string            `yaml:"tag"`
	ID       string            `yaml:"id,omitempty"`
	Class    string            `yaml:"class,omitempty"` // space separated
	Text     string            `yaml:"text,omitempty"`
	Attrs    map[string]string `yaml:"attrs,omitempty"`
	Box      Box               `yaml:"box,omitempty"`
	Style    prop.Map          `yaml:"style,omitempty"`
	Children []NodeSpec        `yaml:"children,omitempty"`
}

func (ns NodeSpec) build() *Node {
	tag := ns.Tag
	if tag == "" {
		tag = "div"
	}
	n := &Node{
		Tag:     tag,
		ID:      ns.ID,
		Classes: strings.Fields(ns.Class),
		Text:    ns.Text,
		Box:     ns.Box,
	}
	if len(ns.Attrs) > 0 {
		n.Attrs = make(map[string]string, len(ns.Attrs))
		for k, v := range ns.Attrs {
			n.Attrs[k] = v
		}
	}
	if len(ns.Style) > 0 {
		n.props = make(prop.Map, len(ns.Style))
		for k, v := range ns.Style {
			n.props[k] = v
		}
	}
	for _, c := range ns.Children {
		n.Children = append(n.Children, c.build())
	}
	return n
}

// Build creates a fresh stage from the layout.
func (l *Layout) Build() (*Stage, error) {
	return New(l.Root.build(), l.Styles)
}

// ParseLayout decodes a YAML layout.
func ParseLayout(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}
	if l.Width <= 0 || l.Height <= 0 {
		return nil, fmt.Errorf("layout: width and height must be positive")
	}
	return &l, nil
}

// ReadLayout reads a YAML layout from path.
func ReadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layout: %w", err)
	}
	return ParseLayout(data)
}

// DefaultLayout returns the built-in greeting layout.
func DefaultLayout() *Layout {
	l, err := ParseLayout(defaultLayout)
	if err != nil {
		panic(err)
	}
	return l
}
