package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ivlev/greetcard/internal/input"
)

type fakePlayer struct {
	mu       sync.Mutex
	refuse   bool
	attempts int
	plays    int
	pauses   int
	closed   bool
}

func (p *fakePlayer) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.refuse {
		return ErrAutoplayBlocked
	}
	p.plays++
	return nil
}

func (p *fakePlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses++
	return nil
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePlayer) setRefuse(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refuse = v
}

func (p *fakePlayer) counts() (attempts, plays int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts, p.plays
}

func TestStartIdempotent(t *testing.T) {
	p := &fakePlayer{}
	g := NewGate(p, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !g.Start(context.Background()) {
				t.Error("Start reported false")
			}
		}()
	}
	wg.Wait()

	if _, plays := p.counts(); plays != 1 {
		t.Errorf("playback initiated %d times, want 1", plays)
	}
	if !g.Started() {
		t.Error("Started() = false")
	}
}

func TestStartRefusedThenRetried(t *testing.T) {
	p := &fakePlayer{refuse: true}
	g := NewGate(p, nil)

	if g.Start(context.Background()) {
		t.Fatal("refused start reported true")
	}
	if g.Started() {
		t.Fatal("refused start marked the gate started")
	}

	p.setRefuse(false)
	if !g.Start(context.Background()) {
		t.Fatal("retry failed")
	}
}

func TestStopAllowsRestart(t *testing.T) {
	p := &fakePlayer{}
	g := NewGate(p, nil)
	g.Stop() // before any start
	g.Start(context.Background())
	g.Stop()
	if g.Started() {
		t.Error("still started after Stop")
	}
	g.Start(context.Background())
	if _, plays := p.counts(); plays != 2 {
		t.Errorf("plays = %d, want 2", plays)
	}
}

func TestGestureFallback(t *testing.T) {
	ctx := context.Background()
	p := &fakePlayer{refuse: true}
	bus := input.NewBus()
	g := NewGate(p, nil)

	if g.Start(ctx) {
		t.Fatal("initial start should be refused")
	}
	g.ArmGestureFallback(ctx, bus)
	g.ArmGestureFallback(ctx, bus) // no double subscription
	for _, k := range input.Gestures {
		if n := bus.Subscribers(k); n != 1 {
			t.Fatalf("%s subscribers = %d, want 1", k, n)
		}
	}

	p.setRefuse(false)
	bus.Dispatch(input.Event{Kind: input.PointerDown, Source: "test"})

	attempts, plays := p.counts()
	if attempts != 2 || plays != 1 {
		t.Fatalf("attempts = %d, plays = %d; want 2 and 1", attempts, plays)
	}
	if g.Armed() {
		t.Error("fallback still armed after a successful start")
	}
	for _, k := range input.Gestures {
		if n := bus.Subscribers(k); n != 0 {
			t.Errorf("%s subscribers = %d after success, want 0", k, n)
		}
	}

	bus.Dispatch(input.Event{Kind: input.TouchStart})
	bus.Dispatch(input.Event{Kind: input.KeyDown})
	if attempts, _ := p.counts(); attempts != 2 {
		t.Errorf("further gestures attempted playback: %d attempts", attempts)
	}
}

func TestGestureFallbackKeepsTrying(t *testing.T) {
	ctx := context.Background()
	p := &fakePlayer{refuse: true}
	bus := input.NewBus()
	g := NewGate(p, nil)
	g.ArmGestureFallback(ctx, bus)

	bus.Dispatch(input.Event{Kind: input.KeyDown})
	bus.Dispatch(input.Event{Kind: input.TouchStart})
	if attempts, _ := p.counts(); attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if !g.Armed() {
		t.Error("fallback disarmed although playback never started")
	}

	bus.Dispatch(input.Event{Kind: input.Replay})
	if attempts, _ := p.counts(); attempts != 2 {
		t.Error("replay is not a gesture")
	}
}

func TestGesturePolicy(t *testing.T) {
	ctx := context.Background()
	inner := &fakePlayer{}
	bus := input.NewBus()
	g := NewGate(GesturePolicy{Player: inner, Activation: bus}, nil)

	if g.Start(ctx) {
		t.Fatal("start before any interaction should be blocked")
	}
	if err := (GesturePolicy{Player: inner, Activation: bus}).Play(ctx); !errors.Is(err, ErrAutoplayBlocked) {
		t.Errorf("Play = %v, want ErrAutoplayBlocked", err)
	}

	g.ArmGestureFallback(ctx, bus)
	bus.Dispatch(input.Event{Kind: input.KeyDown})
	if !g.Started() {
		t.Fatal("gesture did not start audio")
	}
	if _, plays := inner.counts(); plays != 1 {
		t.Errorf("plays = %d, want 1", plays)
	}

	if err := g.Close(); err != nil {
		t.Fatal(err)
	}
	if !inner.closed {
		t.Error("Close did not reach the wrapped player")
	}
}

func TestNilPlayer(t *testing.T) {
	bus := input.NewBus()
	g := NewGate(nil, nil)
	if g.Start(context.Background()) {
		t.Error("Start with no resource reported true")
	}
	g.ArmGestureFallback(context.Background(), bus)
	if bus.Subscribers(input.KeyDown) != 0 || g.Armed() {
		t.Error("nil player armed the fallback")
	}
	g.Stop()
	if err := g.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}

func TestSupported(t *testing.T) {
	tests := map[string]bool{
		"song.mp3":        true,
		"input/Song.OGG":  true,
		"a.wav":           true,
		"track.m4a":       false,
		"no-extension":    false,
		"archive.mp3.zip": false,
	}
	for path, want := range tests {
		if got := Supported(path); got != want {
			t.Errorf("Supported(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestStreamPlayerUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.flac")
	if err := os.WriteFile(path, []byte("fLaC"), 0644); err != nil {
		t.Fatal(err)
	}
	p := NewStreamPlayer(path, 1, false)
	if err := p.Play(context.Background()); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Play = %v, want ErrUnsupportedFormat", err)
	}
}

func TestStreamPlayerMissingFile(t *testing.T) {
	p := NewStreamPlayer(filepath.Join(t.TempDir(), "missing.mp3"), 1, false)
	err := p.Play(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Play = %v, want a not-exist error", err)
	}
	if p.Playing() {
		t.Error("player reports playing after a failed start")
	}
	if err := p.Pause(); err != nil {
		t.Errorf("Pause without a track = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close without a track = %v", err)
	}
}

func TestStreamPlayerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewStreamPlayer("song.mp3", 1, false).Play(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Play = %v, want context.Canceled", err)
	}
}

// writeWAV writes a mono 16 bit PCM file with n silent frames.
func writeWAV(t *testing.T, path string, rate, n int) {
	t.Helper()
	data := n * 2
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+data))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&b, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&b, binary.LittleEndian, uint32(rate))
	binary.Write(&b, binary.LittleEndian, uint32(rate*2))
	binary.Write(&b, binary.LittleEndian, uint16(2))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(data))
	b.Write(make([]byte, data))
	if err := os.WriteFile(path, b.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDecodeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, SampleRate, 441)

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	s, err := decode(path, SampleRate, f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Length() <= 0 {
		t.Fatalf("Length = %d", s.Length())
	}
	pcm, err := io.ReadAll(s)
	if err != nil {
		t.Fatal(err)
	}
	if int64(len(pcm)) != s.Length() {
		t.Errorf("read %d bytes, Length reports %d", len(pcm), s.Length())
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, name := range []string{"bad.wav", "bad.ogg"} {
		_, err := decode(name, SampleRate, bytes.NewReader([]byte("definitely not audio")))
		if err == nil {
			t.Errorf("decode(%s) accepted garbage", name)
		}
	}
	if _, err := decode("x.aac", SampleRate, bytes.NewReader(nil)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("decode(aac) = %v", err)
	}
}
