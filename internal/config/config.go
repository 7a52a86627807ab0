package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/greetcard/internal/prop"
)

// Config is the root configuration of greetcard. Values come from defaults,
// then the optional YAML file, then GREETCARD_* environment variables, then
// command line flags.
type Config struct {
	Layout    string         `yaml:"layout"`    // empty: built-in layout
	Script    string         `yaml:"script"`    // file or directory; empty: built-in script
	Customize string         `yaml:"customize"` // path or http(s) URL of customize.json
	Audio     AudioConfig    `yaml:"audio"`
	Playback  PlaybackConfig `yaml:"playback"`
	Export    ExportConfig   `yaml:"export"`
	Input     InputConfig    `yaml:"input"`
	Logging   LoggingConfig  `yaml:"logging"`

	BuildVersion string `yaml:"-"`
}

// AudioConfig controls the background track.
type AudioConfig struct {
	Path           string  `yaml:"path"` // empty: newest file in SearchDir
	SearchDir      string  `yaml:"search_dir"`
	Volume         float64 `yaml:"volume"`
	Loop           bool    `yaml:"loop"`
	RequireGesture bool    `yaml:"require_gesture"`
}

// PlaybackConfig controls realtime playback.
type PlaybackConfig struct {
	FPS int `yaml:"fps"`
}

// ExportConfig controls rendering the greeting into a video.
type ExportConfig struct {
	Output     string `yaml:"output"`
	FramesDir  string `yaml:"frames_dir"` // empty: temporary directory
	KeepFrames bool   `yaml:"keep_frames"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	FPS        int    `yaml:"fps"`
	Workers    int    `yaml:"workers"` // 0: one per logical CPU
	Encoder    string `yaml:"encoder"` // empty: best available H.264 encoder
	Quality    int    `yaml:"quality"` // 0: encoder default
	Assets     string `yaml:"assets"`  // base directory of img sources
	ShowStats  bool   `yaml:"show_stats"`
	ShareURL   string `yaml:"share_url"` // written as a QR code next to the video
	ShareSize  int    `yaml:"share_size"`
	Background string `yaml:"background"` // CSS colour behind the layout
}

// InputConfig selects the sources of user gestures.
type InputConfig struct {
	Terminal bool       `yaml:"terminal"`
	MQTT     MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig configures the MQTT gesture source. An empty broker disables it.
type MQTTConfig struct {
	Broker         string `yaml:"broker"`
	ClientID       string `yaml:"client_id"`
	Topic          string `yaml:"topic"`
	QoS            byte   `yaml:"qos"`
	ConnectTimeout int    `yaml:"connect_timeout"` // seconds
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Customize: "customize.json",
		Audio: AudioConfig{
			SearchDir:      "input/audio",
			Volume:         0.35,
			Loop:           true,
			RequireGesture: true,
		},
		Playback: PlaybackConfig{
			FPS: 60,
		},
		Export: ExportConfig{
			Width:  1280,
			Height: 720,
			FPS:        30,
			Assets:     ".",
			Background: "#ffffff",
		},
		Input: InputConfig{
			Terminal: true,
			MQTT: MQTTConfig{
				ClientID:       "greetcard",
				Topic:          "greetcard/input",
				QoS:            1,
				ConnectTimeout: 10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
// Variables follow the pattern GREETCARD_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GREETCARD_CUSTOMIZE"); v != "" {
		cfg.Customize = v
	}
	if v := os.Getenv("GREETCARD_SCRIPT"); v != "" {
		cfg.Script = v
	}
	if v := os.Getenv("GREETCARD_AUDIO_PATH"); v != "" {
		cfg.Audio.Path = v
	}
	if v := os.Getenv("GREETCARD_AUDIO_REQUIRE_GESTURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Audio.RequireGesture = b
		}
	}
	if v := os.Getenv("GREETCARD_MQTT_BROKER"); v != "" {
		cfg.Input.MQTT.Broker = v
	}
	if v := os.Getenv("GREETCARD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for values the program cannot run with.
func (c *Config) Validate() error {
	var errs []string

	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		errs = append(errs, "audio.volume must be within [0, 1]")
	}
	if c.Playback.FPS <= 0 {
		errs = append(errs, "playback.fps must be positive")
	}
	if c.Export.FPS <= 0 {
		errs = append(errs, "export.fps must be positive")
	}
	if c.Export.Width <= 0 || c.Export.Height <= 0 {
		errs = append(errs, "export.width and export.height must be positive")
	}
	if c.Export.Width%2 != 0 || c.Export.Height%2 != 0 {
		errs = append(errs, "export.width and export.height must be even")
	}
	if v, err := prop.Parse(c.Export.Background); c.Export.Background != "" && (err != nil || v.Kind != prop.Color) {
		errs = append(errs, fmt.Sprintf("export.background %q is not a colour", c.Export.Background))
	}
	if c.Export.ShareSize < 0 {
		errs = append(errs, "export.share_size must not be negative")
	}
	if c.Export.Workers < 0 {
		errs = append(errs, "export.workers must not be negative")
	}
	if c.Input.MQTT.Broker != "" && c.Input.MQTT.Topic == "" {
		errs = append(errs, "input.mqtt.topic is required when a broker is set")
	}
	if c.Input.MQTT.QoS > 2 {
		errs = append(errs, "input.mqtt.qos must be 0, 1 or 2")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
