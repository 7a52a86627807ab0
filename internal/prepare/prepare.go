// Package prepare splits text-bearing presentation units into per-character
// sub-targets so staggered steps can address each character.
package prepare

import (
	"github.com/ivlev/greetcard/internal/stage"
)

// CharTag is the tag of the wrapper nodes created by Chars.
const CharTag = "span"

// Chars replaces the text of the first unit matching selector with one span
// per character, whitespace included, in the original order. Each span is
// then reachable as "<selector> span". A missing unit is not an error: Chars
// returns nil and leaves the stage untouched.
func Chars(st *stage.Stage, selector string) []*stage.Node {
	unit := st.First(selector)
	if unit == nil {
		return nil
	}
	text := unit.TextContent()
	chars := make([]*stage.Node, 0, len(text))
	for _, r := range text {
		chars = append(chars, &stage.Node{Tag: CharTag, Text: string(r)})
	}
	st.ReplaceChildren(unit, chars)
	return chars
}

// All runs Chars for every selector and reports how many characters each
// produced.
func All(st *stage.Stage, selectors []string) map[string]int {
	out := make(map[string]int, len(selectors))
	for _, sel := range selectors {
		out[sel] = len(Chars(st, sel))
	}
	return out
}
