// Package config loads collage settings from TOML.
//
// Every field has a default, so a missing file is not an error. Files only
// need to name the values they override:
//
//	[layout]
//	base_unit = 600
//
//	[ingest]
//	stagger = "150ms"
//
//	[redis]
//	addr = "localhost:6379"
//
// Durations are strings accepted by time.ParseDuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/collage/pkg/errors"
	"github.com/matzehuels/collage/pkg/layout"
)

const appName = "collage"

// Config is the complete configuration.
type Config struct {
	Layout layout.Params `toml:"layout"`
	Ingest Ingest        `toml:"ingest"`
	Export Export        `toml:"export"`
	Server Server        `toml:"server"`
	Redis  Redis         `toml:"redis"`
	Cache  Cache         `toml:"cache"`
}

// Ingest tunes the format normalizer. None of the delays carry correctness
// obligations; they exist for perceived responsiveness.
type Ingest struct {
	Stagger           time.Duration `toml:"stagger"`
	HandheldStagger   time.Duration `toml:"handheld_stagger"`
	SyntheticDuration time.Duration `toml:"synthetic_duration"`
	Settle            time.Duration `toml:"settle"`
	HEICFeedback      time.Duration `toml:"heic_feedback"`
	MaxFileBytes      int64         `toml:"max_file_bytes"`
	HEICDecode        bool          `toml:"heic_decode"`
}

// Export controls encoding and delivery.
type Export struct {
	JPEGQuality   int           `toml:"jpeg_quality"`
	CleanupDelay  time.Duration `toml:"cleanup_delay"`
	ShareMaxBytes int64         `toml:"share_max_bytes"`
	DownloadDir   string        `toml:"download_dir"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr         string        `toml:"addr"`
	BaseURL      string        `toml:"base_url"`
	SessionTTL   time.Duration `toml:"session_ttl"`
	CleanupDelay time.Duration `toml:"cleanup_delay"`
}

// Redis enables the shared share/download backend when Addr is set.
type Redis struct {
	Addr     string        `toml:"addr"`
	DB       int           `toml:"db"`
	Password string        `toml:"password"`
	Prefix   string        `toml:"prefix"`
	ShareTTL time.Duration `toml:"share_ttl"`
}

// Enabled reports whether a Redis address is configured.
func (r Redis) Enabled() bool { return r.Addr != "" }

// Cache configures the on-disk cache of re-encoded sources.
type Cache struct {
	Dir      string        `toml:"dir"`
	Disabled bool          `toml:"disabled"`
	TTL      time.Duration `toml:"ttl"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Layout: layout.DefaultParams(),
		Ingest: Ingest{
			Stagger:           200 * time.Millisecond,
			HandheldStagger:   500 * time.Millisecond,
			SyntheticDuration: 1500 * time.Millisecond,
			Settle:            300 * time.Millisecond,
			HEICFeedback:      1200 * time.Millisecond,
			MaxFileBytes:      50 << 20,
		},
		Export: Export{
			JPEGQuality:   90,
			CleanupDelay:  time.Second,
			ShareMaxBytes: 20 << 20,
			DownloadDir:   ".",
		},
		Server: Server{
			Addr:         ":8080",
			SessionTTL:   2 * time.Hour,
			CleanupDelay: 5 * time.Minute,
		},
		Redis: Redis{
			Prefix:   appName + ":",
			ShareTTL: 24 * time.Hour,
		},
		Cache: Cache{
			TTL: 7 * 24 * time.Hour,
		},
	}
}

// Validate checks the configuration for values the pipeline cannot use.
func (c *Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if c.Export.JPEGQuality < 1 || c.Export.JPEGQuality > 100 {
		return errors.New(errors.ErrCodeInvalidInput, "export.jpeg_quality must be in [1, 100], got %d", c.Export.JPEGQuality)
	}
	if c.Ingest.MaxFileBytes <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "ingest.max_file_bytes must be positive")
	}
	durations := map[string]time.Duration{
		"ingest.stagger":            c.Ingest.Stagger,
		"ingest.handheld_stagger":   c.Ingest.HandheldStagger,
		"ingest.synthetic_duration": c.Ingest.SyntheticDuration,
		"ingest.settle":             c.Ingest.Settle,
		"ingest.heic_feedback":      c.Ingest.HEICFeedback,
		"export.cleanup_delay":      c.Export.CleanupDelay,
		"server.cleanup_delay":      c.Server.CleanupDelay,
	}
	for name, d := range durations {
		if d < 0 {
			return errors.New(errors.ErrCodeInvalidInput, "%s must not be negative", name)
		}
	}
	if c.Server.SessionTTL <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "server.session_ttl must be positive")
	}
	if c.Server.BaseURL != "" {
		if err := errors.ValidateURL(c.Server.BaseURL); err != nil {
			return err
		}
	}
	if c.Redis.Enabled() && c.Redis.ShareTTL <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "redis.share_ttl must be positive")
	}
	return nil
}

// Load reads path on top of the defaults. An empty path means [DefaultPath];
// a missing default file yields the defaults, a missing explicit file is an
// error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := Decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses TOML data into cfg, keeping values the data does not set,
// and validates the result. Unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.New(errors.ErrCodeInvalidInput, "unknown config key %q", undecoded[0].String())
	}
	return cfg.Validate()
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DefaultPath returns the XDG config file location
// (~/.config/collage/config.toml).
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}
