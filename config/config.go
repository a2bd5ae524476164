// Package config loads device configuration with koanf layering:
// struct defaults, then an optional yaml file, then SNAPCAM_* environment
// variables. Later layers override earlier ones.
//
// Environment keys use double underscores for nesting, single for words:
//
//	SNAPCAM_STORAGE__REGION_SIZE=262144  → storage.region_size
//	SNAPCAM_LOG__LEVEL=debug             → log.level
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths is searched in order when no explicit path is
// given; the first existing file wins.
var DefaultConfigPaths = []string{
	"snapcam.yaml",
	"snapcam.yml",
	"/etc/snapcam/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "SNAPCAM_CONFIG"

const envPrefix = "SNAPCAM_"

// Config is the full device configuration.
type Config struct {
	Camera  CameraConfig  `koanf:"camera"`
	Storage StorageConfig `koanf:"storage"`
	Capture CaptureConfig `koanf:"capture"`
	Loop    LoopConfig    `koanf:"loop"`
	Log     LogConfig     `koanf:"log"`
	Diag    DiagConfig    `koanf:"diag"`
}

// CameraConfig describes the sensor mode.
type CameraConfig struct {
	Width  int     `koanf:"width"`
	Height int     `koanf:"height"`
	FPS    float64 `koanf:"fps"`
}

// StorageConfig sizes the secondary photo heap.
type StorageConfig struct {
	// RegionSize is the fixed heap capacity in bytes.
	RegionSize int `koanf:"region_size"`
}

// CaptureConfig tunes the bounded first-frame wait.
type CaptureConfig struct {
	FirstFrameTimeout time.Duration `koanf:"first_frame_timeout"`
	PollInterval      time.Duration `koanf:"poll_interval"`
}

// LoopConfig tunes the control loop.
type LoopConfig struct {
	// TickInterval is the UI service rate.
	TickInterval time.Duration `koanf:"tick_interval"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DiagConfig configures the diagnostics HTTP surface.
type DiagConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// defaults: QVGA RGB565 sensor, 512 KiB photo bank, 1s first-frame
// wait, ~30Hz UI tick.
func defaults() *Config {
	return &Config{
		Camera: CameraConfig{
			Width:  240,
			Height: 320,
			FPS:    15,
		},
		Storage: StorageConfig{
			RegionSize: 512 * 1024,
		},
		Capture: CaptureConfig{
			FirstFrameTimeout: time.Second,
			PollInterval:      10 * time.Millisecond,
		},
		Loop: LoopConfig{
			TickInterval: 33 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Diag: DiagConfig{
			Enabled: true,
			Addr:    ":8650",
		},
	}
}

// Load builds the configuration. path may be empty: the env override
// and then DefaultConfigPaths are consulted; a missing file is not an
// error (defaults apply), a present-but-broken file is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path == "" {
		for _, p := range DefaultConfigPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey maps SNAPCAM_STORAGE__REGION_SIZE to storage.region_size.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate rejects configurations the device cannot run with.
func (c *Config) Validate() error {
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("config: camera dimensions %dx%d invalid", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("config: camera fps %v invalid", c.Camera.FPS)
	}

	frameSize := c.Camera.Width * c.Camera.Height * 2
	if c.Storage.RegionSize < frameSize {
		return fmt.Errorf("config: storage region %d bytes cannot hold one %d-byte frame",
			c.Storage.RegionSize, frameSize)
	}

	if c.Capture.FirstFrameTimeout <= 0 || c.Capture.PollInterval <= 0 {
		return fmt.Errorf("config: capture timeouts must be positive")
	}
	if c.Loop.TickInterval <= 0 {
		return fmt.Errorf("config: loop tick interval must be positive")
	}
	if c.Diag.Enabled && c.Diag.Addr == "" {
		return fmt.Errorf("config: diag enabled without listen address")
	}

	return nil
}
