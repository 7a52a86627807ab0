package engine

import (
	"fmt"
	"strings"

	"github.com/ivlev/greetcard/internal/audio"
	"github.com/ivlev/greetcard/internal/config"
	"github.com/ivlev/greetcard/internal/logging"
	"github.com/ivlev/greetcard/internal/system"
)

// ResolveAudio returns the configured track, or the newest file in the search
// directory. An empty result means no audio resource is bound.
func ResolveAudio(cfg config.AudioConfig, log *logging.Logger) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	if cfg.SearchDir == "" {
		return ""
	}
	path, err := system.FindLatestAudio(cfg.SearchDir)
	if err != nil {
		log.Info("no background track", "search_dir", cfg.SearchDir, "error", err)
		return ""
	}
	return path
}

// OpenPlayer builds the player for path. With RequireGesture set, playback is
// refused until act reports a user interaction. An empty path returns nil; a
// format the player cannot decode is an error.
func OpenPlayer(cfg config.AudioConfig, path string, act audio.Activation) (audio.Player, error) {
	if path == "" {
		return nil, nil
	}
	if !audio.Supported(path) {
		return nil, fmt.Errorf("%w: %s (playable: %s)", audio.ErrUnsupportedFormat, path, strings.Join(audio.Formats, ", "))
	}
	p := audio.NewStreamPlayer(path, cfg.Volume, cfg.Loop)
	if cfg.RequireGesture && act != nil {
		return audio.GesturePolicy{Player: p, Activation: act}, nil
	}
	return p, nil
}
