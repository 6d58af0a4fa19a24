package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Verbose bool `koanf:"verbose"`

	// Last.fm API access
	Lastfm LastfmConfig `koanf:"lastfm"`

	// Discord application settings
	Discord DiscordConfig `koanf:"discord"`

	// Presence update behavior
	Presence PresenceConfig `koanf:"presence"`

	// Desktop notifications on track change
	Notifications NotificationsConfig `koanf:"notifications"`
}

// LastfmConfig holds Last.fm API credentials and the account to watch.
type LastfmConfig struct {
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"` // only needed for the auth flow
	Username  string `koanf:"username"`   // optional when an account is linked
}

// DiscordConfig holds the Discord application settings.
type DiscordConfig struct {
	ClientID   string `koanf:"client_id"`
	SmallImage string `koanf:"small_image"` // asset key for the corner badge (default: "lastfm")
	SmallText  string `koanf:"small_text"`  // hover text for the badge (default: "Last.fm")
}

// PresenceConfig holds polling and refresh timing.
type PresenceConfig struct {
	PollInterval    time.Duration `koanf:"poll_interval"`    // Last.fm poll cadence (default: 2s)
	RefreshInterval time.Duration `koanf:"refresh_interval"` // activity re-push cadence (default: 20s)
	Buttons         *bool         `koanf:"buttons"`          // show "Listen on Last.fm" button (default: true)
}

// NotificationsConfig holds desktop notification settings.
type NotificationsConfig struct {
	Enabled bool `koanf:"enabled"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// An explicitly named file must exist; the default locations are optional.
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, err
		}
	} else {
		for _, p := range getConfigPaths() {
			if _, err := os.Stat(p); err == nil {
				if err := k.Load(file.Provider(p), toml.Parser()); err != nil {
					return nil, err
				}
			}
		}
	}

	cfg := &Config{}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/lastfm-rp/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "lastfm-rp", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

// EnsureConfigFile creates an empty user config file if none exists yet, and
// returns its path. Existing files are left alone.
func EnsureConfigFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	path := filepath.Join(home, ".config", "lastfm-rp", "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			return "", err
		}
	}

	return path, nil
}

// applyEnvOverrides fills credentials from the environment variables the
// original release used, so existing .env-style deployments keep working.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		cfg.Lastfm.APIKey = v
	}
	if v := os.Getenv("LASTFM_USERNAME"); v != "" {
		cfg.Lastfm.Username = v
	}
	if v := os.Getenv("DISCORD_CLIENT_ID"); v != "" {
		cfg.Discord.ClientID = v
	}
}

// HasLastfmAuth returns true if the credentials for the desktop auth flow are set.
func (c *Config) HasLastfmAuth() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != ""
}

// GetPresenceConfig returns the presence configuration with defaults applied.
func (c *Config) GetPresenceConfig() PresenceConfig {
	cfg := c.Presence

	if cfg.PollInterval < time.Second {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.RefreshInterval < 5*time.Second {
		cfg.RefreshInterval = 20 * time.Second
	}
	if cfg.Buttons == nil {
		t := true
		cfg.Buttons = &t
	}

	return cfg
}

// GetDiscordConfig returns the Discord configuration with defaults applied.
func (c *Config) GetDiscordConfig() DiscordConfig {
	cfg := c.Discord

	if cfg.SmallImage == "" {
		cfg.SmallImage = "lastfm"
	}
	if cfg.SmallText == "" {
		cfg.SmallText = "Last.fm"
	}

	return cfg
}
