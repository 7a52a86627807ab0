// Package stage is the in-memory presentation surface the greeting plays on.
//
// A Stage is a tree of addressable nodes (tag, id, classes, text, attributes)
// each carrying animatable properties. Properties not written explicitly fall
// back to the stylesheet rules of the layout and then to prop.Default.
package stage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/ivlev/greetcard/internal/prop"
)

// Box is the layout rectangle of a node in surface pixels.
type Box struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Node is one addressable presentation unit.
type Node struct {
	Tag      string
	ID       string
	Classes  []string
	Text     string
	Attrs    map[string]string
	Box      Box
	Children []*Node

	parent *Node
	key    string
	props  prop.Map
	dom    *html.Node
}

// Key identifies the node uniquely within its stage.
func (n *Node) Key() string {
	return n.key
}

// Parent returns the enclosing node, nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// HasClass reports whether the node carries class c.
func (n *Node) HasClass(c string) bool {
	for _, cls := range n.Classes {
		if cls == c {
			return true
		}
	}
	return false
}

// TextContent returns the node's own text followed by its descendants' text.
func (n *Node) TextContent() string {
	var b strings.Builder
	b.WriteString(n.Text)
	for _, c := range n.Children {
		b.WriteString(c.TextContent())
	}
	return b.String()
}

func (n *Node) String() string {
	var b strings.Builder
	b.WriteString(n.Tag)
	if n.ID != "" {
		b.WriteString("#" + n.ID)
	}
	for _, c := range n.Classes {
		b.WriteString("." + c)
	}
	return b.String()
}

// Rule is a stylesheet entry giving default property values to every node
// matching Selector.
type Rule struct {
	Selector string   `yaml:"selector"`
	Props    prop.Map `yaml:"props"`

	sel cascadia.Selector
}

// Change describes one property write.
type Change struct {
	Node  *Node
	Name  string
	Value prop.Value
}

// Stage owns the node tree.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Stage struct {
	mu       sync.RWMutex
	root     *Node
	rules    []Rule
	seq      int
	nodes    map[*html.Node]*Node
	observer func(Change)
}

// New builds a stage around root. Rules with invalid selectors are rejected.
func New(root *Node, rules []Rule) (*Stage, error) {
	if root == nil {
		return nil, fmt.Errorf("stage: nil root")
	}
	s := &Stage{root: root, nodes: make(map[*html.Node]*Node)}
	for _, r := range rules {
		sel, err := compile(r.Selector)
		if err != nil {
			return nil, err
		}
		r.sel = sel
		s.rules = append(s.rules, r)
	}
	s.adopt(nil, root)
	return s, nil
}

func (s *Stage) adopt(parent, n *Node) {
	n.parent = parent
	s.seq++
	n.key = fmt.Sprintf("n%d", s.seq)
	n.dom = element(n)
	s.nodes[n.dom] = n
	if parent != nil {
		parent.dom.AppendChild(n.dom)
	}
	for _, c := range n.Children {
		s.adopt(n, c)
	}
}

// detachChildren drops n's text and children from the mirror.
func (s *Stage) detachChildren(n *Node) {
	for _, c := range n.Children {
		walk(c, func(d *Node) { delete(s.nodes, d.dom) })
	}
	clearChildren(n.dom)
}

// Root returns the root node.
func (s *Stage) Root() *Node {
	return s.root
}

// Observe registers fn to be called after every property write that changes
// a value. Only one observer is kept.
func (s *Stage) Observe(fn func(Change)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Query returns every node matching selector in document order. An invalid
// selector matches nothing.
func (s *Stage) Query(selector string) []*Node {
	sel, err := compile(selector)
	if err != nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Node
	for _, el := range sel.MatchAll(s.root.dom) {
		if n, ok := s.nodes[el]; ok {
			out = append(out, n)
		}
	}
	return out
}

// First returns the first node matching selector, or nil.
func (s *Stage) First(selector string) *Node {
	nodes := s.Query(selector)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// ByID returns the node with the given id, or nil.
func (s *Stage) ByID(id string) *Node {
	return s.First("#" + id)
}

// SetText replaces the node's content with plain text.
func (s *Stage) SetText(n *Node, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachChildren(n)
	n.Text = text
	n.Children = nil
	if text != "" {
		n.dom.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

// SetAttr sets an attribute on the node.
func (s *Stage) SetAttr(n *Node, name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[name] = value
	setAttr(n.dom, name, value)
}

// Attr returns an attribute value.
func (s *Stage) Attr(n *Node, name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return n.Attrs[name]
}

// ReplaceChildren drops the node's own text and children and adopts children
// in their place.
func (s *Stage) ReplaceChildren(n *Node, children []*Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachChildren(n)
	n.Text = ""
	n.Children = children
	for _, c := range children {
		s.adopt(n, c)
	}
}

// Property returns the node's current value for name.
func (s *Stage) Property(n *Node, name string) prop.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.propertyLocked(n, name)
}

func (s *Stage) propertyLocked(n *Node, name string) prop.Value {
	if v, ok := n.props[name]; ok {
		return v
	}
	for i := len(s.rules) - 1; i >= 0; i-- {
		r := s.rules[i]
		if v, ok := r.Props[name]; ok && r.sel.Match(n.dom) {
			return v
		}
	}
	return prop.Default(name)
}

// SetProperty writes a property value on the node.
func (s *Stage) SetProperty(n *Node, name string, v prop.Value) {
	s.mu.Lock()
	prev := s.propertyLocked(n, name)
	if n.props == nil {
		n.props = make(prop.Map)
	}
	n.props[name] = v
	observer := s.observer
	s.mu.Unlock()

	if observer != nil && !prev.Equal(v) {
		observer(Change{Node: n, Name: name, Value: v})
	}
}

// Walk visits every node in document order while holding a read lock.
// fn must not call back into the stage's mutating methods.
func (s *Stage) Walk(fn func(n *Node)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	walk(s.root, fn)
}

func walk(n *Node, fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		walk(c, fn)
	}
}
