// Package prop models the animatable property values of presentation targets.
//
// A value is a number with an optional unit ("10", "15deg", "-1"), a colour
// ("#fff", "rgb(21, 161, 237)"), or a keyword ("visible", "hidden").
package prop

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mazznoer/csscolorparser"
)

// Kind identifies the representation of a Value.
type Kind int

const (
	Number Kind = iota
	Color
	Keyword
)

// Value is a single property value.
type Value struct {
	Kind Kind
	Num  float64
	Unit string
	RGBA [4]float64 // channels 0-255, alpha 0-1
	Word string
}

// Map maps property names to values.
type Map map[string]Value

// Num returns a unitless number.
func Num(f float64) Value {
	return Value{Kind: Number, Num: f}
}

// Unit returns a number with a unit suffix.
func Unit(f float64, unit string) Value {
	return Value{Kind: Number, Num: f, Unit: unit}
}

// Word returns a keyword value.
func Word(w string) Value {
	return Value{Kind: Keyword, Word: w}
}

// RGBA returns a colour value.
func RGBA(r, g, b, a float64) Value {
	return Value{Kind: Color, RGBA: [4]float64{r, g, b, a}}
}

// Parse converts the textual form of a value.
func Parse(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, fmt.Errorf("empty property value")
	}
	if v, ok := parseNumber(s); ok {
		return v, nil
	}
	if c, ok := parseColor(s); ok {
		return c, nil
	}
	for _, r := range s {
		if !(r == '-' || r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return Value{}, fmt.Errorf("unsupported property value %q", s)
		}
	}
	return Word(s), nil
}

// FromAny converts a decoded scalar (YAML/JSON) into a Value.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case int:
		return Num(float64(x)), nil
	case int64:
		return Num(float64(x)), nil
	case float64:
		return Num(x), nil
	case string:
		return Parse(x)
	case Value:
		return x, nil
	default:
		return Value{}, fmt.Errorf("unsupported property value %v (%T)", v, v)
	}
}

func parseNumber(s string) (Value, bool) {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		if s[end] != '.' {
			digits++
		}
		end++
	}
	if digits == 0 {
		return Value{}, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return Value{}, false
	}
	unit := s[end:]
	for _, r := range unit {
		if !(r == '%' || r >= 'a' && r <= 'z') {
			return Value{}, false
		}
	}
	return Unit(f, unit), true
}

// parseColor accepts every CSS colour form (hex, rgb[a], hsl[a], hwb, named).
// Bare hex digits without '#' are left to the number and keyword parsers.
func parseColor(s string) (Value, bool) {
	if !strings.ContainsAny(s, "#(") && strings.Trim(strings.ToLower(s), "0123456789abcdef") == "" {
		return Value{}, false
	}
	c, err := csscolorparser.Parse(s)
	if err != nil {
		return Value{}, false
	}
	return RGBA(math.Round(c.R*255), math.Round(c.G*255), math.Round(c.B*255), c.A), true
}

// String formats the value back into its textual form.
func (v Value) String() string {
	switch v.Kind {
	case Color:
		r, g, b := math.Round(v.RGBA[0]), math.Round(v.RGBA[1]), math.Round(v.RGBA[2])
		if v.RGBA[3] >= 1 {
			return fmt.Sprintf("rgb(%g, %g, %g)", r, g, b)
		}
		return fmt.Sprintf("rgba(%g, %g, %g, %g)", r, g, b, v.RGBA[3])
	case Keyword:
		return v.Word
	default:
		return strconv.FormatFloat(v.Num, 'f', -1, 64) + v.Unit
	}
}

// Equal reports whether both values have the same representation.
func (v Value) Equal(o Value) bool {
	return v.Kind == o.Kind && v.Num == o.Num && v.Unit == o.Unit && v.RGBA == o.RGBA && v.Word == o.Word
}

// Names returns the property names in sorted order.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SameKeys reports whether both maps declare exactly the same properties.
func (m Map) SameKeys(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for k := range m {
		if _, ok := o[k]; !ok {
			return false
		}
	}
	return true
}

// Default returns the value a property has when nothing sets it.
func Default(name string) Value {
	switch name {
	case "opacity", "scale", "scaleX", "scaleY":
		return Num(1)
	case "visibility":
		return Word("visible")
	case "color":
		return RGBA(0, 0, 0, 1)
	case "backgroundColor":
		return RGBA(0, 0, 0, 0)
	default:
		return Num(0)
	}
}
