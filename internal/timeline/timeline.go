// Package timeline sequences timed property transitions against named
// presentation targets.
//
// A Timeline is built once with the Append* methods, AddLabel and Call, then
// played any number of times. Construction resolves every step into
// per-target tweens with explicit start and end values, so playback is a pure
// function of the runtime clock.
//
// Steps sharing a target must not overlap in time. This is checked while
// appending and reported as ErrTargetOverlap.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ivlev/greetcard/internal/logging"
	"github.com/ivlev/greetcard/internal/prop"
)

var (
	ErrUnknownLabel     = errors.New("timeline: unknown label")
	ErrDuplicateLabel   = errors.New("timeline: label already defined")
	ErrTargetOverlap    = errors.New("timeline: overlapping steps on target")
	ErrIncompleteFromTo = errors.New("timeline: from and to states declare different properties")
	ErrInvalidStep      = errors.New("timeline: invalid step")
)

// epsilon absorbs float drift when comparing step windows.
const epsilon = 1e-9

// Target is one addressable presentation unit.
type Target interface {
	Key() string
}

// Surface is the renderer capability the timeline drives.
type Surface interface {
	Resolve(selector string) []Target
	Property(t Target, name string) prop.Value
	SetProperty(t Target, name string, v prop.Value)
}

// Transition describes the property change of a step.
type Transition struct {
	Props       prop.Map
	Ease        Ease // nil means Power1Out
	Repeat      int
	RepeatDelay float64
}

type stepKind int

const (
	kindTo stepKind = iota
	kindFrom
	kindFromTo
)

func (k stepKind) String() string {
	switch k {
	case kindFrom:
		return "from"
	case kindFromTo:
		return "fromTo"
	default:
		return "to"
	}
}

type step struct {
	kind        stepKind
	selector    string
	start       float64
	duration    float64
	stagger     float64
	ease        Ease
	repeat      int
	repeatDelay float64
	tweens      []*tween
}

// span is the time one target spends in the step, repeats included.
func (s *step) span() float64 {
	return s.duration*float64(s.repeat+1) + s.repeatDelay*float64(s.repeat)
}

func (s *step) total() float64 {
	if len(s.tweens) < 2 {
		return s.span()
	}
	return float64(len(s.tweens)-1)*s.stagger + s.span()
}

type tween struct {
	step   *step
	target Target
	start  float64
	from   prop.Map
	to     prop.Map
}

func (tw *tween) end() float64 {
	return tw.start + tw.step.span()
}

func (tw *tween) valueAt(name string, t float64) prop.Value {
	s := tw.step
	local := t - tw.start
	if local >= s.span() {
		return tw.to[name]
	}
	iter := 0
	if cycle := s.duration + s.repeatDelay; cycle > 0 {
		iter = int(local / cycle)
		if iter > s.repeat {
			iter = s.repeat
		}
		local -= float64(iter) * cycle
	}
	if local >= s.duration {
		return tw.to[name]
	}
	return prop.Lerp(tw.from[name], tw.to[name], s.ease(local/s.duration))
}

// track is the ordered list of tweens writing one property of one target.
type track struct {
	target   Target
	name     string
	baseline prop.Value
	tweens   []*tween // sorted by start
}

func (tr *track) insert(tw *tween) {
	i := len(tr.tweens)
	for i > 0 && tr.tweens[i-1].start > tw.start {
		i--
	}
	tr.tweens = append(tr.tweens, nil)
	copy(tr.tweens[i+1:], tr.tweens[i:])
	tr.tweens[i] = tw
}

// valueBefore is the resolved value the property holds when a tween starting
// at t begins: the end of the latest tween finished by then, or the baseline.
func (tr *track) valueBefore(t float64) prop.Value {
	v := tr.baseline
	for _, tw := range tr.tweens {
		if tw.end() <= t+epsilon {
			v = tw.to[tr.name]
		}
	}
	return v
}

// resolve recomputes the implicit side of every tween in start order: a "to"
// tween starts from, and a "from" tween ends on, the value the property holds
// when it begins. Steps placed before existing ones therefore reach the
// tweens that follow them.
func (tr *track) resolve() {
	for _, tw := range tr.tweens {
		switch tw.step.kind {
		case kindTo:
			tw.from[tr.name] = tr.valueBefore(tw.start)
		case kindFrom:
			tw.to[tr.name] = tr.valueBefore(tw.start)
		}
	}
}

func (tr *track) valueAt(t float64) prop.Value {
	var cur *tween
	for _, tw := range tr.tweens {
		if tw.start > t {
			break
		}
		cur = tw
	}
	if cur != nil {
		return cur.valueAt(tr.name, t)
	}
	// from and fromTo steps show their start state until they begin.
	if first := tr.tweens[0]; first.step.kind != kindTo {
		return first.from[tr.name]
	}
	return tr.baseline
}

type callback struct {
	at    float64
	fn    func()
	fired bool
}

type window struct {
	start, end float64
	selector   string
}

// Timeline is a built sequence plus its runtime clock.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Callbacks registered with Call run on the clock goroutine and must not
//     call Stop or Restart.
type Timeline struct {
	mu      sync.Mutex
	surface Surface
	log     *logging.Logger

	steps   []*step
	calls   []*callback
	labels  map[string]float64
	cursor  float64
	tracks  []*track
	byKey   map[string]*track
	windows map[string][]window
	err     error

	frame  time.Duration
	now    func() time.Time
	clock  float64
	cancel context.CancelFunc
	done   chan struct{}

	restartMu sync.Mutex
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithFrameRate sets how often the runtime clock renders during playback.
func WithFrameRate(fps int) Option {
	return func(tl *Timeline) {
		if fps > 0 {
			tl.frame = time.Second / time.Duration(fps)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(tl *Timeline) {
		if log != nil {
			tl.log = log
		}
	}
}

// New creates an empty timeline over surface.
func New(surface Surface, opts ...Option) *Timeline {
	tl := &Timeline{
		surface: surface,
		log:     logging.Nop(),
		labels:  make(map[string]float64),
		byKey:   make(map[string]*track),
		windows: make(map[string][]window),
		frame:   time.Second / 60,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(tl)
	}
	tl.log = tl.log.With("component", "timeline")
	return tl
}

// AppendTo animates the targets of selector from their current values to
// tr.Props.
func (tl *Timeline) AppendTo(selector string, duration float64, tr Transition, pos ...Position) *Timeline {
	return tl.add(kindTo, selector, duration, nil, tr, 0, pos)
}

// AppendFrom animates the targets of selector from tr.Props back to their
// current values.
func (tl *Timeline) AppendFrom(selector string, duration float64, tr Transition, pos ...Position) *Timeline {
	return tl.add(kindFrom, selector, duration, nil, tr, 0, pos)
}

// AppendFromTo animates the targets of selector from the from state to
// tr.Props. Both must declare the same properties.
func (tl *Timeline) AppendFromTo(selector string, duration float64, from prop.Map, tr Transition, pos ...Position) *Timeline {
	return tl.add(kindFromTo, selector, duration, from, tr, 0, pos)
}

// AppendStaggerTo is AppendTo with each further target delayed by stagger.
func (tl *Timeline) AppendStaggerTo(selector string, duration float64, tr Transition, stagger float64, pos ...Position) *Timeline {
	return tl.add(kindTo, selector, duration, nil, tr, stagger, pos)
}

// AppendStaggerFrom is AppendFrom with each further target delayed by stagger.
func (tl *Timeline) AppendStaggerFrom(selector string, duration float64, tr Transition, stagger float64, pos ...Position) *Timeline {
	return tl.add(kindFrom, selector, duration, nil, tr, stagger, pos)
}

// AppendStaggerFromTo is AppendFromTo with each further target delayed by
// stagger.
func (tl *Timeline) AppendStaggerFromTo(selector string, duration float64, from prop.Map, tr Transition, stagger float64, pos ...Position) *Timeline {
	return tl.add(kindFromTo, selector, duration, from, tr, stagger, pos)
}

// AddLabel records pos under name, the current cursor when pos is omitted.
// The cursor does not move.
func (tl *Timeline) AddLabel(name string, pos ...Position) *Timeline {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.err != nil {
		return tl
	}
	if _, ok := tl.labels[name]; ok {
		tl.err = fmt.Errorf("%w: %q", ErrDuplicateLabel, name)
		return tl
	}
	at, err := tl.resolveLocked(position(pos))
	if err != nil {
		tl.err = fmt.Errorf("label %q: %w", name, err)
		return tl
	}
	tl.labels[name] = at
	return tl
}

// Call schedules fn to run once per play session when the runtime clock
// reaches pos.
func (tl *Timeline) Call(fn func(), pos ...Position) *Timeline {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.err != nil {
		return tl
	}
	at, err := tl.resolveLocked(position(pos))
	if err != nil {
		tl.err = err
		return tl
	}
	tl.calls = append(tl.calls, &callback{at: at, fn: fn})
	tl.cursor = math.Max(tl.cursor, at)
	return tl
}

func position(pos []Position) Position {
	if len(pos) == 0 {
		return Position{}
	}
	return pos[0]
}

func (tl *Timeline) resolveLocked(p Position) (float64, error) {
	var t float64
	switch p.kind {
	case posAbsolute:
		t = p.at
	case posLabel:
		at, ok := tl.labels[p.label]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, p.label)
		}
		t = at + p.offset
	default:
		t = tl.cursor + p.offset
	}
	if t < -epsilon {
		return 0, fmt.Errorf("%w: position %q resolves to %.3fs", ErrInvalidStep, p, t)
	}
	return math.Max(t, 0), nil
}

func (tl *Timeline) add(kind stepKind, selector string, duration float64, from prop.Map, tr Transition, stagger float64, pos []Position) *Timeline {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.err != nil {
		return tl
	}
	if err := tl.addLocked(kind, selector, duration, from, tr, stagger, position(pos)); err != nil {
		tl.err = fmt.Errorf("step %d (%s %q): %w", len(tl.steps)+1, kind, selector, err)
	}
	return tl
}

func (tl *Timeline) addLocked(kind stepKind, selector string, duration float64, from prop.Map, tr Transition, stagger float64, pos Position) error {
	switch {
	case duration < 0:
		return fmt.Errorf("%w: negative duration %v", ErrInvalidStep, duration)
	case stagger < 0:
		return fmt.Errorf("%w: negative stagger %v", ErrInvalidStep, stagger)
	case tr.Repeat < 0:
		return fmt.Errorf("%w: negative repeat %d", ErrInvalidStep, tr.Repeat)
	case tr.RepeatDelay < 0:
		return fmt.Errorf("%w: negative repeat delay %v", ErrInvalidStep, tr.RepeatDelay)
	case len(tr.Props) == 0:
		return fmt.Errorf("%w: no properties", ErrInvalidStep)
	case kind == kindFromTo && !from.SameKeys(tr.Props):
		return ErrIncompleteFromTo
	}

	start, err := tl.resolveLocked(pos)
	if err != nil {
		return err
	}

	ease := tr.Ease
	if ease == nil {
		ease = Power1Out
	}
	st := &step{
		kind:        kind,
		selector:    selector,
		start:       start,
		duration:    duration,
		stagger:     stagger,
		ease:        ease,
		repeat:      tr.Repeat,
		repeatDelay: tr.RepeatDelay,
	}

	targets := tl.surface.Resolve(selector)
	if len(targets) == 0 {
		tl.log.Warn("step has no targets", "selector", selector, "start", start)
	}
	for i, target := range targets {
		tw := &tween{
			step:   st,
			target: target,
			start:  start + float64(i)*stagger,
			from:   make(prop.Map, len(tr.Props)),
			to:     make(prop.Map, len(tr.Props)),
		}
		if err := tl.checkOverlapLocked(tw); err != nil {
			return err
		}
		st.tweens = append(st.tweens, tw)
	}

	// Resolve implicit values only after every target passed the overlap
	// check so a rejected step leaves no trace in the tracks.
	names := tr.Props.Names()
	for _, tw := range st.tweens {
		for _, name := range names {
			trk := tl.trackLocked(tw.target, name)
			switch kind {
			case kindTo:
				tw.to[name] = tr.Props[name]
			case kindFrom:
				tw.from[name] = tr.Props[name]
			case kindFromTo:
				tw.from[name], tw.to[name] = from[name], tr.Props[name]
			}
			trk.insert(tw)
			trk.resolve()
		}
		key := tw.target.Key()
		tl.windows[key] = append(tl.windows[key], window{start: tw.start, end: tw.end(), selector: selector})
	}

	tl.steps = append(tl.steps, st)
	tl.cursor = math.Max(tl.cursor, start+st.total())
	return nil
}

func (tl *Timeline) checkOverlapLocked(tw *tween) error {
	end := tw.end()
	for _, w := range tl.windows[tw.target.Key()] {
		if tw.start < w.end-epsilon && w.start < end-epsilon {
			return fmt.Errorf("%w: [%.3f, %.3f) collides with %q [%.3f, %.3f)",
				ErrTargetOverlap, tw.start, end, w.selector, w.start, w.end)
		}
	}
	return nil
}

func (tl *Timeline) trackLocked(target Target, name string) *track {
	key := target.Key() + "\x00" + name
	if trk, ok := tl.byKey[key]; ok {
		return trk
	}
	trk := &track{
		target:   target,
		name:     name,
		baseline: tl.surface.Property(target, name),
	}
	tl.byKey[key] = trk
	tl.tracks = append(tl.tracks, trk)
	return trk
}

// Err returns the first construction error, if any.
func (tl *Timeline) Err() error {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.err
}

// Duration returns the end time of the last step.
func (tl *Timeline) Duration() float64 {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.cursor
}

// Labels returns a copy of the label table.
func (tl *Timeline) Labels() map[string]float64 {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	out := make(map[string]float64, len(tl.labels))
	for k, v := range tl.labels {
		out[k] = v
	}
	return out
}

// StepInfo describes a resolved step.
type StepInfo struct {
	Kind         string
	Selector     string
	Start        float64
	End          float64
	TargetStarts []float64
}

// Steps describes every appended step in construction order.
func (tl *Timeline) Steps() []StepInfo {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	out := make([]StepInfo, len(tl.steps))
	for i, st := range tl.steps {
		info := StepInfo{
			Kind:     st.kind.String(),
			Selector: st.selector,
			Start:    st.start,
			End:      st.start + st.total(),
		}
		for _, tw := range st.tweens {
			info.TargetStarts = append(info.TargetStarts, tw.start)
		}
		out[i] = info
	}
	return out
}
