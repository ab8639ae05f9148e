package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendLog    = "log"
	BackendSQLite = "sqlite"
)

// Duration is a time.Duration written as "4s" or "10m" in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Server configures the backend started by the serve command
type Server struct {
	Port         int      `toml:"port"`
	DataDir      string   `toml:"data_dir"`
	Backend      string   `toml:"backend"` // log or sqlite
	MaxEntries   int      `toml:"max_entries"`
	CompactEvery Duration `toml:"compact_every"`
	WebhookToken string   `toml:"webhook_token"`
}

// Feed configures the synchronizer used by the terminal commands and the
// server-rendered page.
type Feed struct {
	Endpoint       string   `toml:"endpoint"`
	PollInterval   Duration `toml:"poll_interval"`
	Welcome        string   `toml:"welcome"`
	ContactNumber  string   `toml:"contact_number"`
	ContactMessage string   `toml:"contact_message"`
}

type Config struct {
	Server Server `toml:"server"`
	Feed   Feed   `toml:"feed"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			Port:         8080,
			DataDir:      "data",
			Backend:      BackendLog,
			MaxEntries:   50,
			CompactEvery: Duration{10 * time.Minute},
		},
		Feed: Feed{
			Endpoint:       "http://localhost:8080",
			PollInterval:   Duration{4 * time.Second},
			ContactMessage: "Hi, I saw your message on the feed",
		},
	}
}

// LoadConfig reads the TOML file at path on top of the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadOptional is LoadConfig that returns the defaults when path does not exist
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return LoadConfig(path)
}

func (c *Config) Validate() error {
	switch c.Server.Backend {
	case BackendLog, BackendSQLite:
	default:
		return fmt.Errorf("unknown backend %q, expected %q or %q", c.Server.Backend, BackendLog, BackendSQLite)
	}
	if c.Server.MaxEntries <= 0 {
		return fmt.Errorf("max_entries must be > 0, got %d", c.Server.MaxEntries)
	}
	if c.Server.CompactEvery.Duration <= 0 {
		return fmt.Errorf("compact_every must be positive")
	}
	if c.Feed.PollInterval.Duration <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	return nil
}

// StorePath is the file backing the configured store
func (s Server) StorePath() string {
	if s.Backend == BackendSQLite {
		return filepath.Join(s.DataDir, "pmap.db")
	}
	return filepath.Join(s.DataDir, "pmap.ndjson")
}

// WelcomeText is the notice shown after the first load. Without an explicit
// text it points at the contact number, if one is set.
func (f Feed) WelcomeText() string {
	if f.Welcome != "" {
		return f.Welcome
	}
	if f.ContactNumber != "" {
		return "Welcome! Messages sent to https://wa.me/" + f.ContactNumber + " show up here."
	}
	return ""
}
