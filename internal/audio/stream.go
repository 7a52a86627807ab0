package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ebaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// SampleRate is the output rate of the process-wide audio context.
const SampleRate = 44100

// ErrUnsupportedFormat is returned for files StreamPlayer cannot decode.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// Formats lists the file extensions StreamPlayer decodes.
var Formats = []string{".mp3", ".ogg", ".wav"}

// Supported reports whether path has one of Formats.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range Formats {
		if ext == f {
			return true
		}
	}
	return false
}

var (
	contextOnce sync.Once
	shared      *ebaudio.Context
)

// audioContext returns the single audio context of the process.
func audioContext() *ebaudio.Context {
	contextOnce.Do(func() {
		if c := ebaudio.CurrentContext(); c != nil {
			shared = c
			return
		}
		shared = ebaudio.NewContext(SampleRate)
	})
	return shared
}

// stream is a decoded track: 16 bit stereo PCM at the context rate.
type stream interface {
	io.ReadSeeker
	Length() int64
}

func decode(path string, sampleRate int, src io.ReadSeeker) (stream, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		s, err := mp3.DecodeWithSampleRate(sampleRate, src)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ".ogg":
		s, err := vorbis.DecodeWithSampleRate(sampleRate, src)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ".wav":
		s, err := wav.DecodeWithSampleRate(sampleRate, src)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
}

// StreamPlayer plays a local mp3, ogg or wav file on the system output.
// The file is decoded on the first Play; Pause keeps the position so a
// later Play resumes.
type StreamPlayer struct {
	Path   string
	Volume float64 // 0..1
	Loop   bool

	mu     sync.Mutex
	file   *os.File
	player *ebaudio.Player
}

// NewStreamPlayer creates a player for the file at path.
func NewStreamPlayer(path string, volume float64, loop bool) *StreamPlayer {
	return &StreamPlayer{Path: path, Volume: volume, Loop: loop}
}

// Play starts or resumes playback.
func (p *StreamPlayer) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.player == nil {
		if err := p.openLocked(); err != nil {
			return err
		}
	}
	p.player.Play()
	return nil
}

func (p *StreamPlayer) openLocked() error {
	if !Supported(p.Path) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, p.Path)
	}
	f, err := os.Open(p.Path)
	if err != nil {
		return fmt.Errorf("audio resource: %w", err)
	}

	actx := audioContext()
	s, err := decode(p.Path, actx.SampleRate(), f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decoding %s: %w", p.Path, err)
	}
	var src io.Reader = s
	if p.Loop {
		src = ebaudio.NewInfiniteLoop(s, s.Length())
	}
	player, err := actx.NewPlayer(src)
	if err != nil {
		f.Close()
		return fmt.Errorf("creating player: %w", err)
	}
	player.SetVolume(p.Volume)

	p.file, p.player = f, player
	return nil
}

// Pause suspends playback. It is a no-op when nothing plays.
func (p *StreamPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player != nil {
		p.player.Pause()
	}
	return nil
}

// Playing reports whether the track is audible.
func (p *StreamPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.player != nil && p.player.IsPlaying()
}

// Close releases the player and the file.
func (p *StreamPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return nil
	}
	err := p.player.Close()
	if cerr := p.file.Close(); err == nil {
		err = cerr
	}
	p.player, p.file = nil, nil
	return err
}
