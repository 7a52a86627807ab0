package timeline

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ivlev/greetcard/internal/prop"
)

type node string

func (n node) Key() string { return string(n) }

type fakeSurface struct {
	mu    sync.Mutex
	sel   map[string][]Target
	props map[string]prop.Value
}

func newSurface() *fakeSurface {
	return &fakeSurface{sel: make(map[string][]Target), props: make(map[string]prop.Value)}
}

func (s *fakeSurface) add(selector string, keys ...string) {
	for _, k := range keys {
		s.sel[selector] = append(s.sel[selector], node(k))
	}
}

func (s *fakeSurface) Resolve(selector string) []Target {
	return s.sel[selector]
}

func (s *fakeSurface) Property(t Target, name string) prop.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.props[t.Key()+"/"+name]; ok {
		return v
	}
	return prop.Default(name)
}

func (s *fakeSurface) SetProperty(t Target, name string, v prop.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props[t.Key()+"/"+name] = v
}

func (s *fakeSurface) num(key, name string) float64 {
	return s.Property(node(key), name).Num
}

func to(props prop.Map) Transition {
	return Transition{Props: props, Ease: Linear}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCursorAdvance(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")
	s.add(".b", "b")

	tl := New(s)
	tl.AppendTo(".a", 1.0, to(prop.Map{"x": prop.Num(10)}))
	if got := tl.Duration(); !near(got, 1.0) {
		t.Fatalf("cursor after first step = %v, want 1.0", got)
	}

	tl.AppendTo(".b", 1.0, to(prop.Map{"x": prop.Num(10)}), Offset(2.5))
	if err := tl.Err(); err != nil {
		t.Fatal(err)
	}
	steps := tl.Steps()
	if !near(steps[1].Start, 3.5) {
		t.Errorf("second step starts at %v, want 3.5", steps[1].Start)
	}
	if !near(tl.Duration(), 4.5) {
		t.Errorf("duration = %v, want 4.5", tl.Duration())
	}
}

func TestCursorMonotonic(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")
	s.add(".b", "b")

	tl := New(s)
	tl.AppendTo(".a", 2, to(prop.Map{"x": prop.Num(1)}))
	tl.AppendTo(".b", 0.5, to(prop.Map{"x": prop.Num(1)}), Offset(-2))
	if err := tl.Err(); err != nil {
		t.Fatal(err)
	}
	if got := tl.Steps()[1].Start; !near(got, 0) {
		t.Errorf("overlapping step starts at %v, want 0", got)
	}
	if !near(tl.Duration(), 2) {
		t.Errorf("cursor moved back to %v", tl.Duration())
	}
}

func TestEarlierStepFeedsLaterStart(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")

	tl := New(s)
	tl.AppendTo(".a", 1, to(prop.Map{"x": prop.Num(10)}))
	tl.AppendTo(".a", 1, to(prop.Map{"x": prop.Num(20)}), At(5))
	tl.AppendTo(".a", 1, to(prop.Map{"x": prop.Num(5)}), At(2))
	if err := tl.Err(); err != nil {
		t.Fatal(err)
	}

	tl.Seek(4.99)
	if got := s.num("a", "x"); math.Abs(got-5) > 1e-6 {
		t.Errorf("x at 4.99 = %v, want 5", got)
	}
	tl.Seek(5.0001)
	if got := s.num("a", "x"); math.Abs(got-5) > 0.01 {
		t.Errorf("x at 5.0001 = %v, want about 5", got)
	}
	tl.Seek(6)
	if got := s.num("a", "x"); !near(got, 20) {
		t.Errorf("x at 6 = %v, want 20", got)
	}
}

func TestEarlierStepFeedsLaterFromEnd(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")

	tl := New(s)
	tl.AppendFrom(".a", 1, to(prop.Map{"x": prop.Num(0)}), At(5))
	tl.AppendTo(".a", 1, to(prop.Map{"x": prop.Num(8)}), At(1))
	if err := tl.Err(); err != nil {
		t.Fatal(err)
	}

	tl.Seek(6)
	if got := s.num("a", "x"); !near(got, 8) {
		t.Errorf("from step ends on %v, want 8", got)
	}
}

func TestStagger(t *testing.T) {
	s := newSurface()
	s.add(".c span", "c1", "c2", "c3")

	tl := New(s)
	tl.AppendStaggerTo(".c span", 0.5, to(prop.Map{"visibility": prop.Word("visible")}), 0.05, At(1))
	if err := tl.Err(); err != nil {
		t.Fatal(err)
	}
	starts := tl.Steps()[0].TargetStarts
	want := []float64{1, 1.05, 1.10}
	for i := range want {
		if !near(starts[i], want[i]) {
			t.Errorf("target %d starts at %v, want %v", i, starts[i], want[i])
		}
	}
	if !near(tl.Duration(), 1.6) {
		t.Errorf("duration = %v, want 1.6", tl.Duration())
	}
}

func TestLabels(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")
	s.add(".b", "b")
	s.add(".c", "c")

	tl := New(s)
	tl.AppendTo(".a", 1, to(prop.Map{"x": prop.Num(1)}))
	tl.AddLabel("party")
	tl.AppendTo(".b", 3, to(prop.Map{"x": prop.Num(1)}), Label("party"))
	tl.AppendTo(".c", 1, to(prop.Map{"x": prop.Num(1)}), LabelOffset("party", 0.5))
	if err := tl.Err(); err != nil {
		t.Fatal(err)
	}
	if got := tl.Labels()["party"]; !near(got, 1) {
		t.Errorf("label = %v, want 1", got)
	}
	steps := tl.Steps()
	if !near(steps[1].Start, 1) || !near(steps[2].Start, 1.5) {
		t.Errorf("starts = %v, %v", steps[1].Start, steps[2].Start)
	}
}

func TestLabelAtPosition(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")
	s.add(".b", "b")

	tl := New(s)
	tl.AppendTo(".a", 2, to(prop.Map{"x": prop.Num(1)}))
	tl.AddLabel("early", At(0.5))
	tl.AddLabel("late", Offset(1))
	tl.AddLabel("after", LabelOffset("early", 0.25))
	tl.AppendTo(".b", 1, to(prop.Map{"x": prop.Num(1)}), Label("late"))
	if err := tl.Err(); err != nil {
		t.Fatal(err)
	}
	labels := tl.Labels()
	want := map[string]float64{"early": 0.5, "late": 3, "after": 0.75}
	for name, at := range want {
		if !near(labels[name], at) {
			t.Errorf("label %s = %v, want %v", name, labels[name], at)
		}
	}
	if got := tl.Steps()[1].Start; !near(got, 3) {
		t.Errorf("step at late label starts at %v, want 3", got)
	}
	if !near(tl.Duration(), 4) {
		t.Errorf("duration = %v, want 4", tl.Duration())
	}
}

func TestConstructionErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(tl *Timeline)
		want  error
	}{
		{
			name: "unknown label",
			build: func(tl *Timeline) {
				tl.AppendTo(".a", 1, to(prop.Map{"x": prop.Num(1)}), Label("nope"))
			},
			want: ErrUnknownLabel,
		},
		{
			name: "duplicate label",
			build: func(tl *Timeline) {
				tl.AddLabel("x").AddLabel("x")
			},
			want: ErrDuplicateLabel,
		},
		{
			name: "label before zero",
			build: func(tl *Timeline) {
				tl.AddLabel("x", Offset(-1))
			},
			want: ErrInvalidStep,
		},
		{
			name: "label at unknown label",
			build: func(tl *Timeline) {
				tl.AddLabel("x", Label("nope"))
			},
			want: ErrUnknownLabel,
		},
		{
			name: "negative position",
			build: func(tl *Timeline) {
				tl.AppendTo(".a", 1, to(prop.Map{"x": prop.Num(1)}))
				tl.AppendTo(".b", 1, to(prop.Map{"x": prop.Num(1)}), Offset(-5))
			},
			want: ErrInvalidStep,
		},
		{
			name: "negative duration",
			build: func(tl *Timeline) {
				tl.AppendTo(".a", -1, to(prop.Map{"x": prop.Num(1)}))
			},
			want: ErrInvalidStep,
		},
		{
			name: "no properties",
			build: func(tl *Timeline) {
				tl.AppendTo(".a", 1, Transition{})
			},
			want: ErrInvalidStep,
		},
		{
			name: "same target overlap",
			build: func(tl *Timeline) {
				tl.AppendTo(".a", 1, to(prop.Map{"x": prop.Num(1)}))
				tl.AppendTo(".a", 1, to(prop.Map{"y": prop.Num(1)}), Offset(-0.5))
			},
			want: ErrTargetOverlap,
		},
		{
			name: "fromTo keys differ",
			build: func(tl *Timeline) {
				tl.AppendFromTo(".a", 1, prop.Map{"x": prop.Num(0)}, to(prop.Map{"y": prop.Num(1)}))
			},
			want: ErrIncompleteFromTo,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSurface()
			s.add(".a", "a")
			s.add(".b", "b")
			tl := New(s)
			tt.build(tl)
			if err := tl.Err(); !errors.Is(err, tt.want) {
				t.Errorf("Err() = %v, want %v", err, tt.want)
			}
			if err := tl.Play(); !errors.Is(err, tt.want) {
				t.Errorf("Play() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestErrorIsSticky(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")
	tl := New(s)
	tl.AppendTo(".a", 1, to(prop.Map{"x": prop.Num(1)}), Label("nope"))
	first := tl.Err()
	tl.AppendTo(".a", 1, to(prop.Map{"x": prop.Num(1)}))
	if tl.Err() != first || len(tl.Steps()) != 0 {
		t.Error("steps after an error must be ignored")
	}
}

func TestAdjacentStepsDoNotOverlap(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")
	tl := New(s)
	tl.AppendTo(".a", 0.7, to(prop.Map{"x": prop.Num(1)}))
	tl.AppendTo(".a", 0, to(prop.Map{"color": prop.RGBA(255, 0, 0, 1)}), At(0.7))
	tl.AppendTo(".a", 0.3, to(prop.Map{"x": prop.Num(2)}))
	if err := tl.Err(); err != nil {
		t.Fatalf("adjacent steps rejected: %v", err)
	}
}

func TestEmptySelectorAdvancesCursor(t *testing.T) {
	tl := New(newSurface())
	tl.AppendTo(".nothing", 1.5, to(prop.Map{"x": prop.Num(1)}))
	if err := tl.Err(); err != nil {
		t.Fatal(err)
	}
	if !near(tl.Duration(), 1.5) {
		t.Errorf("duration = %v, want 1.5", tl.Duration())
	}
}

func TestSeekValues(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")
	s.add(".b", "b")
	s.add(".c", "c")

	tl := New(s)
	tl.AppendTo(".a", 1, to(prop.Map{"x": prop.Num(10)}))
	tl.AppendTo(".a", 1, to(prop.Map{"x": prop.Num(20)}))
	tl.AppendFrom(".b", 1, to(prop.Map{"opacity": prop.Num(0)}), At(3))
	tl.AppendFromTo(".c", 1, prop.Map{"y": prop.Num(100)}, to(prop.Map{"y": prop.Num(50)}), At(1))
	if err := tl.Err(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		at    float64
		key   string
		name  string
		want  float64
		label string
	}{
		{0.5, "a", "x", 5, "first to midway"},
		{1.5, "a", "x", 15, "second to starts from first end"},
		{9, "a", "x", 20, "after end"},
		{0, "b", "opacity", 0, "from renders before it starts"},
		{3.5, "b", "opacity", 0.5, "from midway"},
		{4, "b", "opacity", 1, "from ends at the original value"},
		{0, "c", "y", 100, "fromTo renders before it starts"},
		{1.5, "c", "y", 75, "fromTo midway"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			tl.Seek(tt.at)
			if got := s.num(tt.key, tt.name); !near(got, tt.want) {
				t.Errorf("%s.%s at %v = %v, want %v", tt.key, tt.name, tt.at, got, tt.want)
			}
		})
	}
}

func TestKeywordSwitchesOnStart(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")
	s.SetProperty(node("a"), "visibility", prop.Word("hidden"))

	tl := New(s)
	tl.AppendTo(".a", 1, to(prop.Map{"visibility": prop.Word("visible")}), At(1))

	tl.Seek(1)
	if got := s.Property(node("a"), "visibility").Word; got != "hidden" {
		t.Errorf("at start = %s, want hidden", got)
	}
	tl.Seek(1.001)
	if got := s.Property(node("a"), "visibility").Word; got != "visible" {
		t.Errorf("just after start = %s, want visible", got)
	}
}

func TestRepeat(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")
	tl := New(s)
	tl.AppendTo(".a", 1, Transition{Props: prop.Map{"x": prop.Num(10)}, Ease: Linear, Repeat: 1, RepeatDelay: 0.5})
	if !near(tl.Duration(), 2.5) {
		t.Fatalf("duration = %v, want 2.5", tl.Duration())
	}

	for _, tt := range []struct{ at, want float64 }{
		{0.5, 5},
		{1.2, 10},
		{2.0, 5},
		{2.5, 10},
	} {
		tl.Seek(tt.at)
		if got := s.num("a", "x"); !near(got, tt.want) {
			t.Errorf("x at %v = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestTickCallbacks(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")
	tl := New(s)
	var calls int32
	tl.Call(func() { atomic.AddInt32(&calls, 1) }, At(0))
	tl.AppendTo(".a", 1, to(prop.Map{"x": prop.Num(1)}))

	tl.Seek(0.5)
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("Seek ran a callback")
	}
	if tl.Tick(0.1) {
		t.Error("Tick(0.1) reported finished")
	}
	tl.Tick(0.2)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}
	if !tl.Tick(1) {
		t.Error("Tick(1) should report finished")
	}
	if !near(tl.Clock(), 1) {
		t.Errorf("clock = %v", tl.Clock())
	}
}

func TestRestartResetsBaselines(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")
	s.SetProperty(node("a"), "x", prop.Num(3))

	tl := New(s, WithFrameRate(1))
	tl.AppendTo(".a", 1, to(prop.Map{"x": prop.Num(10), "opacity": prop.Num(0)}))
	tl.Seek(1)
	if got := s.num("a", "x"); !near(got, 10) {
		t.Fatalf("x at end = %v", got)
	}

	if err := tl.Restart(); err != nil {
		t.Fatal(err)
	}
	defer tl.Stop()
	if got := s.num("a", "x"); !near(got, 3) {
		t.Errorf("x after restart = %v, want 3", got)
	}
	if got := s.num("a", "opacity"); !near(got, 1) {
		t.Errorf("opacity after restart = %v, want 1", got)
	}
	if !tl.Playing() {
		t.Error("restart should leave the timeline playing")
	}
}

func TestPlayRunsToEnd(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")
	tl := New(s, WithFrameRate(200))
	var calls int32
	tl.Call(func() { atomic.AddInt32(&calls, 1) })
	tl.AppendTo(".a", 0.05, to(prop.Map{"x": prop.Num(10)}))

	if err := tl.Play(); err != nil {
		t.Fatal(err)
	}
	if err := tl.Play(); err != nil {
		t.Fatalf("second Play: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for tl.Playing() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if tl.Playing() {
		t.Fatal("timeline still playing after its duration")
	}
	if got := s.num("a", "x"); !near(got, 10) {
		t.Errorf("x = %v, want 10", got)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}
}

func TestConcurrentRestart(t *testing.T) {
	s := newSurface()
	s.add(".a", "a")
	tl := New(s, WithFrameRate(500))
	tl.AppendTo(".a", 0.2, to(prop.Map{"x": prop.Num(10)}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tl.Restart(); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	tl.Stop()
	if tl.Playing() {
		t.Error("Stop left the timeline playing")
	}
}
