// Package config loads exlibris settings from defaults, a .env file, an
// optional TOML file and the environment, in that order.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Lookup timeouts outside this range are clamped
const (
	MinLookupTimeout = 5 * time.Second
	MaxLookupTimeout = 12 * time.Second
)

// Config represents the application configuration
type Config struct {
	LogLevel string        `toml:"log_level"`
	Server   ServerConfig  `toml:"server"`
	Storage  StorageConfig `toml:"storage"`
	Lookup   LookupConfig  `toml:"lookup"`
	Covers   CoversConfig  `toml:"covers"`
	Admin    AdminConfig   `toml:"admin"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr      string   `toml:"addr"`
	JWTSecret string   `toml:"jwt_secret"`
	TokenTTL  Duration `toml:"token_ttl"`
}

// StorageConfig locates the database and image files
type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

// LookupConfig configures the bibliographic providers
type LookupConfig struct {
	GoogleAPIKey       string   `toml:"google_api_key"`
	GoogleBaseURL      string   `toml:"google_base_url"`
	OpenLibraryBaseURL string   `toml:"openlibrary_base_url"`
	Timeout            Duration `toml:"timeout"`
	RatePerSecond      float64  `toml:"rate_per_second"`
	Burst              int      `toml:"burst"`
}

// CoversConfig configures cover downloads
type CoversConfig struct {
	Timeout Duration `toml:"timeout"`
}

// AdminConfig names the account created by "users bootstrap"
type AdminConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Duration is a time.Duration read from a TOML string such as "5s"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DatabasePath returns the SQLite file inside the data directory
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, "exlibris.db")
}

// Default returns the configuration from the embedded example file
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &cfg
}

// Load builds the configuration. A .env file in the working directory is
// loaded first without overriding variables already set. An empty path or
// a missing file leaves the defaults in place. Environment variables win
// over the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"EXLIBRIS_DATA_DIR":       &c.Storage.DataDir,
		"EXLIBRIS_ADDR":           &c.Server.Addr,
		"EXLIBRIS_LOG_LEVEL":      &c.LogLevel,
		"EXLIBRIS_JWT_SECRET":     &c.Server.JWTSecret,
		"EXLIBRIS_ADMIN_USER":     &c.Admin.Username,
		"EXLIBRIS_ADMIN_PASSWORD": &c.Admin.Password,
		"GOOGLE_BOOKS_API_KEY":    &c.Lookup.GoogleAPIKey,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	durations := map[string]*Duration{
		"EXLIBRIS_LOOKUP_TIMEOUT": &c.Lookup.Timeout,
		"EXLIBRIS_COVER_TIMEOUT":  &c.Covers.Timeout,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if v, ok := os.LookupEnv("EXLIBRIS_LOOKUP_RATE"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid EXLIBRIS_LOOKUP_RATE: %w", err)
		}
		c.Lookup.RatePerSecond = rps
	}
	return nil
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "./data"
	}
	switch {
	case c.Lookup.Timeout.Duration < MinLookupTimeout:
		c.Lookup.Timeout.Duration = MinLookupTimeout
	case c.Lookup.Timeout.Duration > MaxLookupTimeout:
		c.Lookup.Timeout.Duration = MaxLookupTimeout
	}
	if c.Covers.Timeout.Duration <= 0 {
		c.Covers.Timeout.Duration = 12 * time.Second
	}
	if c.Lookup.Burst < 1 {
		c.Lookup.Burst = 1
	}
}

// WriteExample writes the example configuration to path, refusing to
// overwrite an existing file
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
