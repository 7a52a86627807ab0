// Package director turns the authored greeting script into a timeline.
package director

import (
	"fmt"

	"github.com/ivlev/greetcard/internal/timeline"
)

// Hooks maps the names used by call steps to functions.
type Hooks map[string]func()

// Compile appends every step of script to tl in order. Call steps resolve
// their name against hooks. It returns the first construction error.
func Compile(script *Script, tl *timeline.Timeline, hooks Hooks) error {
	for i, s := range script.Steps {
		if err := compileStep(tl, s, hooks); err != nil {
			return fmt.Errorf("script step %d (%s %s): %w", i+1, s.Action, s.Target+s.Name, err)
		}
		if err := tl.Err(); err != nil {
			return fmt.Errorf("script step %d: %w", i+1, err)
		}
	}
	return nil
}

func compileStep(tl *timeline.Timeline, s Step, hooks Hooks) error {
	pos, err := timeline.ParsePosition(s.Position)
	if err != nil {
		return err
	}

	switch s.Action {
	case ActionLabel:
		if s.Name == "" {
			return fmt.Errorf("label without name")
		}
		tl.AddLabel(s.Name, pos)
		return nil
	case ActionCall:
		fn, ok := hooks[s.Name]
		if !ok {
			return fmt.Errorf("unknown hook %q", s.Name)
		}
		tl.Call(fn, pos)
		return nil
	}

	if s.Target == "" {
		return fmt.Errorf("step without target")
	}
	ease, err := timeline.ParseEase(s.Ease)
	if err != nil {
		return err
	}
	tr := timeline.Transition{
		Ease:        ease,
		Repeat:      s.Repeat,
		RepeatDelay: s.RepeatDelay,
	}

	switch s.Action {
	case ActionTo:
		tr.Props = s.To
		tl.AppendTo(s.Target, s.Duration, tr, pos)
	case ActionFrom:
		tr.Props = s.From
		tl.AppendFrom(s.Target, s.Duration, tr, pos)
	case ActionFromTo:
		tr.Props = s.To
		tl.AppendFromTo(s.Target, s.Duration, s.From, tr, pos)
	case ActionStaggerTo:
		tr.Props = s.To
		tl.AppendStaggerTo(s.Target, s.Duration, tr, s.Stagger, pos)
	case ActionStaggerFrom:
		tr.Props = s.From
		tl.AppendStaggerFrom(s.Target, s.Duration, tr, s.Stagger, pos)
	case ActionStaggerFromTo:
		tr.Props = s.To
		tl.AppendStaggerFromTo(s.Target, s.Duration, s.From, tr, s.Stagger, pos)
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	return nil
}
