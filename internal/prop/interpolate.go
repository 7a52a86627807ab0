package prop

import "gopkg.in/yaml.v3"

// Lerp interpolates between a and b at progress t.
//
// Numbers and colours blend linearly. Keywords and mismatched kinds switch to
// b as soon as t leaves zero.
func Lerp(a, b Value, t float64) Value {
	if t <= 0 && a.Kind == b.Kind {
		return a
	}
	if a.Kind != b.Kind || b.Kind == Keyword {
		if t > 0 {
			return b
		}
		return a
	}
	switch b.Kind {
	case Color:
		var c [4]float64
		for i := range c {
			c[i] = lerp(a.RGBA[i], b.RGBA[i], t)
		}
		return Value{Kind: Color, RGBA: c}
	default:
		unit := b.Unit
		if unit == "" {
			unit = a.Unit
		}
		return Unit(lerp(a.Num, b.Num, t), unit)
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// UnmarshalYAML decodes a mapping of property names to scalars.
func (m *Map) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	out := make(Map, len(raw))
	for k, v := range raw {
		val, err := FromAny(v)
		if err != nil {
			return err
		}
		out[k] = val
	}
	*m = out
	return nil
}

// MarshalYAML encodes unitless numbers as YAML numbers and everything else
// in its textual form.
func (m Map) MarshalYAML() (any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v.Kind == Number && v.Unit == "" {
			out[k] = v.Num
			continue
		}
		out[k] = v.String()
	}
	return out, nil
}
