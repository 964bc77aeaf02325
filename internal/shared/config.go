package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Selector SelectorConfig `toml:"selector"`
	Provider ProviderConfig `toml:"provider"`
	Database DatabaseConfig `toml:"database"`
	DJ       DJConfig       `toml:"dj"`
}

// SelectorConfig contains the selector service endpoints.
type SelectorConfig struct {
	BaseURL    string `toml:"base_url"`
	ChannelURL string `toml:"channel_url"`
	// WriteRate caps outbound weight/state writes per second. Zero disables the cap.
	WriteRate float64 `toml:"write_rate"`
}

// ProviderConfig contains playback bridge settings and credentials.
//
// AuthMode selects how the session guardian obtains a provider token:
// "selector" fetches a developer token from the selector's /token endpoint,
// "oauth" runs an interactive OAuth2 flow with the credentials below.
type ProviderConfig struct {
	BaseURL      string `toml:"base_url"`
	Origin       string `toml:"origin"`
	AuthMode     string `toml:"auth_mode"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AuthURL      string `toml:"auth_url"`
	TokenURL     string `toml:"token_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// DJConfig contains default automation preferences and timing overrides.
//
// AutoPick and PauseOnAfk only seed the local database on first run; after
// that the persisted values are authoritative.
type DJConfig struct {
	AutoPick         bool `toml:"auto_pick"`
	PauseOnAfk       bool `toml:"pause_on_afk"`
	TickSeconds      int  `toml:"tick_seconds"`
	PrefetchSeconds  int  `toml:"prefetch_seconds"`
	PickTimeoutSecs  int  `toml:"pick_timeout_seconds"`
	HeartbeatSeconds int  `toml:"heartbeat_seconds"`
}

// Tick returns the scheduler cadence, defaulting to 5 seconds.
func (d DJConfig) Tick() time.Duration {
	if d.TickSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(d.TickSeconds) * time.Second
}

// PrefetchThreshold returns the remaining-time threshold below which a pick
// request fires, defaulting to 90 seconds. It must exceed the selector's
// worst-case generation latency so a fetched track lands before playback ends.
func (d DJConfig) PrefetchThreshold() time.Duration {
	if d.PrefetchSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(d.PrefetchSeconds) * time.Second
}

// PickTimeout returns the hard deadline on an in-flight pick request,
// defaulting to 60 seconds.
func (d DJConfig) PickTimeout() time.Duration {
	if d.PickTimeoutSecs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(d.PickTimeoutSecs) * time.Second
}

// Heartbeat returns the snapshot reporting interval while actively playing,
// defaulting to 30 seconds.
func (d DJConfig) Heartbeat() time.Duration {
	if d.HeartbeatSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(d.HeartbeatSeconds) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidInput)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
