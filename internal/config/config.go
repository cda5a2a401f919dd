package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	serr "slideview/internal/errors"

	"gopkg.in/yaml.v3"
)

// Interval and padding bounds mirror the slider ranges of the viewer.
const (
	MinIntervalMS = 500
	MaxIntervalMS = 5000
	MaxPadding    = 300
)

// Config represents the application configuration structure.
type Config struct {
	Slideshow   Slideshow   `yaml:"slideshow"`
	Display     Display     `yaml:"display"`
	Cache       Cache       `yaml:"cache"`
	Directories Directories `yaml:"directories"`
	Formats     Formats     `yaml:"formats"`
	Logging     Logging     `yaml:"logging"`
}

// Slideshow holds autoplay and ordering settings
type Slideshow struct {
	IntervalMS int  `yaml:"interval_ms"` // Autoplay interval in milliseconds
	Shuffle    bool `yaml:"shuffle"`     // Shuffle the sequence when a folder is opened
	Autoplay   bool `yaml:"autoplay"`    // Start playing right after opening a folder
}

// Padding is the white border added around every image, in pixels
type Padding struct {
	Top    int `yaml:"top"`
	Bottom int `yaml:"bottom"`
	Left   int `yaml:"left"`
	Right  int `yaml:"right"`
}

// Display holds window and transform settings
type Display struct {
	Width      int     `yaml:"width"`       // Windowed viewport width
	Height     int     `yaml:"height"`      // Windowed viewport height
	Fullscreen bool    `yaml:"fullscreen"`  // Start in fullscreen mode
	ZoomStep   float64 `yaml:"zoom_step"`   // Multiplier applied by zoom in / divisor for zoom out
	Padding    Padding `yaml:"padding"`     // Border around each image
	AutoOrient bool    `yaml:"auto_orient"` // Apply EXIF orientation before other transforms
}

// Cache holds background loading settings
type Cache struct {
	Workers       int `yaml:"workers"`         // Concurrent decode/transform workers
	Capacity      int `yaml:"capacity"`        // Max ready images kept in memory
	Prefetch      int `yaml:"prefetch"`        // Neighbours loaded on each side of the current image
	LoadTimeoutMS int `yaml:"load_timeout_ms"` // Per-load timeout, 0 disables it
}

// Directories holds folder settings
type Directories struct {
	Default string `yaml:"default"` // Folder opened when none is given
	Watch   bool   `yaml:"watch"`   // Reload the sequence when the open folder changes
}

// Formats controls which files count as images
type Formats struct {
	Extensions []string `yaml:"extensions"` // Allow-list, matched case-insensitively
	Sniff      bool     `yaml:"sniff"`      // Also verify the content type of each file
}

// Logging controls log output
type Logging struct {
	Level string `yaml:"level"` // debug, info, warn or error
	JSON  bool   `yaml:"json"`  // One JSON object per line
	File  string `yaml:"file"`  // Optional file that receives a copy of the log
}

// DefaultPath returns ~/.config/slideview/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "slideview", "config.yaml"), nil
}

// LoadConfig loads configuration from the default location.
func LoadConfig() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFile(path)
}

// LoadConfigFile loads configuration from a specific file path.
// If the file doesn't exist, returns default configuration.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, serr.NewFileError("error reading config file", path, serr.FileAccessDenied, err)
	}

	// Decoding onto the defaults keeps every field the file leaves out
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, serr.NewConfigError("error parsing config file", path, serr.InvalidConfig, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns the default configuration with safe defaults.
func defaultConfig() *Config {
	cfg := &Config{}

	cfg.Slideshow.IntervalMS = 3000
	cfg.Slideshow.Shuffle = false
	cfg.Slideshow.Autoplay = false

	cfg.Display.Width = 1040
	cfg.Display.Height = 720
	cfg.Display.Fullscreen = false
	cfg.Display.ZoomStep = 1.2
	cfg.Display.AutoOrient = true

	cfg.Cache.Workers = 3
	cfg.Cache.Capacity = 12 // a small multiple of the worker count
	cfg.Cache.Prefetch = 2
	cfg.Cache.LoadTimeoutMS = 0

	cfg.Directories.Default = "."
	cfg.Directories.Watch = true

	cfg.Formats.Extensions = []string{"jpg", "jpeg", "png", "bmp", "gif"}
	cfg.Formats.Sniff = false

	cfg.Logging.Level = "info"

	return cfg
}

// normalize lower-cases extensions and strips leading dots
func (c *Config) normalize() {
	for i, ext := range c.Formats.Extensions {
		c.Formats.Extensions[i] = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
}

// SaveConfig saves the configuration to the specified file.
// It creates parent directories if they don't exist.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Save writes the configuration to the default location
func (c *Config) Save() error {
	path, err := DefaultPath()
	if err != nil {
		return err
	}
	return SaveConfig(c, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return serr.NewConfigError("nil config", "", serr.InvalidConfig, nil)
	}

	invalid := func(param, format string, args ...interface{}) error {
		return serr.NewConfigError(fmt.Sprintf(format, args...), param, serr.InvalidConfig, nil)
	}

	if c.Slideshow.IntervalMS < MinIntervalMS || c.Slideshow.IntervalMS > MaxIntervalMS {
		return invalid("slideshow.interval_ms", "interval must be between %d and %d ms", MinIntervalMS, MaxIntervalMS)
	}

	if c.Display.Width < 1 || c.Display.Height < 1 {
		return invalid("display", "width and height must be positive")
	}
	if c.Display.ZoomStep <= 1 {
		return invalid("display.zoom_step", "zoom step must be greater than 1")
	}
	for name, v := range map[string]int{
		"top": c.Display.Padding.Top, "bottom": c.Display.Padding.Bottom,
		"left": c.Display.Padding.Left, "right": c.Display.Padding.Right,
	} {
		if v < 0 || v > MaxPadding {
			return invalid("display.padding."+name, "padding must be between 0 and %d", MaxPadding)
		}
	}

	if c.Cache.Workers < 1 {
		return invalid("cache.workers", "at least one worker is required")
	}
	if c.Cache.Capacity < c.Cache.Workers {
		return invalid("cache.capacity", "capacity must be >= workers (%d)", c.Cache.Workers)
	}
	if c.Cache.Prefetch < 0 {
		return invalid("cache.prefetch", "prefetch must be >= 0")
	}
	if c.Cache.LoadTimeoutMS < 0 {
		return invalid("cache.load_timeout_ms", "load timeout must be >= 0")
	}

	if len(c.Formats.Extensions) == 0 {
		return invalid("formats.extensions", "at least one extension is required")
	}
	for i, ext := range c.Formats.Extensions {
		if ext == "" || strings.ContainsAny(ext, "/\\*?{},") {
			return invalid("formats.extensions", "extension %d is not a plain extension: %q", i, ext)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level", "unknown log level %q", c.Logging.Level)
	}

	if c.Directories.Default != "" {
		if info, err := os.Stat(c.Directories.Default); err == nil && !info.IsDir() {
			return invalid("directories.default", "%s is not a directory", c.Directories.Default)
		}
	}

	return nil
}

// NewTestConfig creates a configuration instance for testing purposes.
func NewTestConfig() *Config {
	cfg := defaultConfig()
	cfg.Cache.Workers = 2
	cfg.Cache.Capacity = 4
	cfg.Cache.Prefetch = 1
	cfg.Directories.Watch = false
	cfg.Display.Width = 200
	cfg.Display.Height = 100
	return cfg
}

// New creates a new configuration instance with default values.
func New() *Config {
	return defaultConfig()
}
