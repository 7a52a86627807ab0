package stage

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Every node is mirrored by an HTML element that selectors and stylesheet
// rules are matched against. The mirror is structural only: properties stay
// on Node.

var compiled sync.Map // selector string -> cascadia.Selector

func compile(s string) (cascadia.Selector, error) {
	if v, ok := compiled.Load(s); ok {
		return v.(cascadia.Selector), nil
	}
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("stage: empty selector")
	}
	sel, err := cascadia.Compile(s)
	if err != nil {
		return nil, fmt.Errorf("stage: selector %q: %w", s, err)
	}
	compiled.Store(s, sel)
	return sel, nil
}

func element(n *Node) *html.Node {
	el := &html.Node{
		Type:     html.ElementNode,
		Data:     n.Tag,
		DataAtom: atom.Lookup([]byte(n.Tag)),
	}
	if n.ID != "" {
		el.Attr = append(el.Attr, html.Attribute{Key: "id", Val: n.ID})
	}
	if len(n.Classes) > 0 {
		el.Attr = append(el.Attr, html.Attribute{Key: "class", Val: strings.Join(n.Classes, " ")})
	}
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		setAttr(el, k, n.Attrs[k])
	}
	if n.Text != "" {
		el.AppendChild(&html.Node{Type: html.TextNode, Data: n.Text})
	}
	return el
}

func setAttr(el *html.Node, key, val string) {
	for i := range el.Attr {
		if el.Attr[i].Key == key {
			el.Attr[i].Val = val
			return
		}
	}
	el.Attr = append(el.Attr, html.Attribute{Key: key, Val: val})
}

func clearChildren(el *html.Node) {
	for c := el.FirstChild; c != nil; {
		next := c.NextSibling
		el.RemoveChild(c)
		c = next
	}
}
