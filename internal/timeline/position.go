package timeline

import (
	"fmt"
	"strconv"
	"strings"
)

type posKind int

const (
	posCursor posKind = iota
	posAbsolute
	posLabel
)

// Position places a step on the timeline. The zero value appends at the
// cursor.
type Position struct {
	kind   posKind
	at     float64
	label  string
	offset float64
}

// At positions a step at an absolute time.
func At(t float64) Position {
	return Position{kind: posAbsolute, at: t}
}

// Offset positions a step relative to the cursor. A negative delta starts
// the step before the previous end, overlapping it.
func Offset(delta float64) Position {
	return Position{kind: posCursor, offset: delta}
}

// Label positions a step at a previously added label.
func Label(name string) Position {
	return Position{kind: posLabel, label: name}
}

// LabelOffset positions a step relative to a previously added label.
func LabelOffset(name string, delta float64) Position {
	return Position{kind: posLabel, label: name, offset: delta}
}

func (p Position) String() string {
	switch p.kind {
	case posAbsolute:
		return strconv.FormatFloat(p.at, 'f', -1, 64)
	case posLabel:
		if p.offset == 0 {
			return p.label
		}
		return p.label + signed(p.offset)
	default:
		if p.offset == 0 {
			return ""
		}
		return signed(p.offset)
	}
}

func signed(d float64) string {
	if d < 0 {
		return "-=" + strconv.FormatFloat(-d, 'f', -1, 64)
	}
	return "+=" + strconv.FormatFloat(d, 'f', -1, 64)
}

// ParsePosition reads the textual position forms used by scripts:
// "" (cursor), "1.5" (absolute), "+=2.5" / "-=1" (cursor relative),
// "party" (label) and "party+=0.5" (label relative).
func ParsePosition(s string) (Position, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Position{}, nil
	}
	if strings.HasPrefix(s, "+=") || strings.HasPrefix(s, "-=") {
		d, err := parseDelta(s)
		if err != nil {
			return Position{}, err
		}
		return Offset(d), nil
	}
	if t, err := strconv.ParseFloat(s, 64); err == nil {
		return At(t), nil
	}
	i := strings.Index(s, "+=")
	if i < 0 {
		i = strings.Index(s, "-=")
	}
	if i > 0 {
		d, err := parseDelta(s[i:])
		if err != nil {
			return Position{}, err
		}
		return LabelOffset(s[:i], d), nil
	}
	return Label(s), nil
}

func parseDelta(s string) (float64, error) {
	d, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return 0, fmt.Errorf("timeline: bad position %q: %w", s, err)
	}
	if s[0] == '-' {
		d = -d
	}
	return d, nil
}
