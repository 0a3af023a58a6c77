package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFramesURL is where frame images are downloaded from when missing from the cache
const DefaultFramesURL = "https://raw.githubusercontent.com/c0bra/deviceframe-frames/master/"

// Config holds the application configuration
type Config struct {
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	Frames     FramesConfig     `json:"frames" yaml:"frames"`
	Output     OutputConfig     `json:"output" yaml:"output"`
	Screenshot ScreenshotConfig `json:"screenshot" yaml:"screenshot"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// CacheConfig holds the frame cache location
type CacheConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// FramesConfig holds the frame bundle settings
type FramesConfig struct {
	// Catalog is the frames.json path; empty uses <cache dir>/frames.json,
	// fetched from BaseURL on first use
	Catalog string `json:"catalog" yaml:"catalog"`
	// BundleDir serves frames from a local bundle instead of the download cache
	BundleDir string `json:"bundle_dir" yaml:"bundle_dir"`
	BaseURL   string `json:"base_url" yaml:"base_url"`
	Workers   int    `json:"workers" yaml:"workers"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format    string `json:"format" yaml:"format"`
	OutputDir string `json:"output_dir" yaml:"output_dir"`
	Quality   int    `json:"quality" yaml:"quality"`
	Lossless  bool   `json:"lossless" yaml:"lossless"`
}

// ScreenshotConfig holds webpage capture settings
type ScreenshotConfig struct {
	DelaySeconds float64 `json:"delay_seconds" yaml:"delay_seconds"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Dir: filepath.Join(GetCacheDir(), "frames"),
		},
		Frames: FramesConfig{
			BaseURL: DefaultFramesURL,
			Workers: 4,
		},
		Output: OutputConfig{
			Format:    "png",
			OutputDir: ".",
			Quality:   90,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file. Fields the
// file leaves out keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration as JSON, or YAML for a .yaml/.yml name
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Cache.Dir == "" && c.Frames.BundleDir == "" {
		return fmt.Errorf("cache.dir or frames.bundle_dir must be set")
	}

	if c.Frames.Workers < 1 {
		return fmt.Errorf("frames.workers must be positive")
	}

	switch strings.ToLower(c.Output.Format) {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.format must be one of png, jpg, webp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Screenshot.DelaySeconds < 0 {
		return fmt.Errorf("screenshot.delay_seconds cannot be negative")
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}

// CatalogPath returns the frames.json location
func (c *Config) CatalogPath() string {
	if c.Frames.Catalog != "" {
		return c.Frames.Catalog
	}
	if c.Frames.BundleDir != "" {
		return filepath.Join(c.Frames.BundleDir, "frames.json")
	}
	return filepath.Join(c.Cache.Dir, "frames.json")
}

// ParseLevel maps a logging level name to a slog level
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if level == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("logging.level %q is not a valid level", level)
	}
	return l, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "deviceframe", "config.json")
}

// GetCacheDir returns the per-user deviceframe cache directory
func GetCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "deviceframe")
	}
	return filepath.Join(dir, "deviceframe")
}
