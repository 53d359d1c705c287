// Package config loads the askkit configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"AskKit/internal/backend"

	"github.com/BurntSushi/toml"
)

// Bridge transports
const (
	TransportInProcess = "inproc"
	TransportWebSocket = "ws"
	TransportHTTP      = "http"
	TransportStdio     = "stdio"
)

// Themes
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Config holds application configuration
type Config struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	Debug   bool   `toml:"debug"`
	Theme   string `toml:"theme"`

	// StaleTime is how long fetched query data counts as fresh
	StaleTime time.Duration `toml:"stale_time"`

	Bridge    BridgeConfig      `toml:"bridge"`
	Providers backend.Endpoints `toml:"providers"`
}

// BridgeConfig selects how the launcher reaches the backend and where
// `askkit serve` listens
type BridgeConfig struct {
	Transport string `toml:"transport"` // inproc|ws|http|stdio
	Addr      string `toml:"addr"`
}

// Default returns the configuration used when no file exists
func Default() Config {
	dataDir := ".askkit"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".local", "share", "askkit")
	}
	return Config{
		DataDir:   dataDir,
		LogDir:    filepath.Join(dataDir, "logs"),
		Theme:     ThemeDark,
		StaleTime: 30 * time.Second,
		Bridge: BridgeConfig{
			Transport: TransportInProcess,
			Addr:      "127.0.0.1:7878",
		},
		Providers: backend.DefaultEndpoints(),
	}
}

// DefaultPath is ~/.config/askkit/config.toml
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".askkit", "config.toml")
	}
	return filepath.Join(dir, "askkit", "config.toml")
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	dataDirDefault, logDirDefault := cfg.DataDir, cfg.LogDir
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	// logs follow a relocated data dir unless placed explicitly
	if cfg.DataDir != dataDirDefault && cfg.LogDir == logDirDefault {
		cfg.LogDir = filepath.Join(cfg.DataDir, "logs")
	}

	return cfg, cfg.Normalize()
}

// Normalize fills empty values with defaults and validates the rest
func (c *Config) Normalize() error {
	def := Default()
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.DataDir, "logs")
	}
	if c.StaleTime <= 0 {
		c.StaleTime = def.StaleTime
	}
	if c.Bridge.Addr == "" {
		c.Bridge.Addr = def.Bridge.Addr
	}
	if c.Bridge.Transport == "" {
		c.Bridge.Transport = def.Bridge.Transport
	}

	switch c.Theme {
	case ThemeDark, ThemeLight:
	default:
		c.Theme = ThemeDark
	}

	switch c.Bridge.Transport {
	case TransportInProcess, TransportWebSocket, TransportHTTP, TransportStdio:
	default:
		return fmt.Errorf("unknown bridge transport %q (inproc|ws|http|stdio)", c.Bridge.Transport)
	}

	p, dp := &c.Providers, def.Providers
	orDefault(&p.Gemini, dp.Gemini)
	orDefault(&p.OpenAI, dp.OpenAI)
	orDefault(&p.Groq, dp.Groq)
	orDefault(&p.Anthropic, dp.Anthropic)
	orDefault(&p.Ollama, dp.Ollama)
	return nil
}

func orDefault(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

// DBPath is the sqlite database file
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "askkit.db")
}

// KeyPath is where the encryption key is kept when no OS keyring is reachable
func (c Config) KeyPath() string {
	return filepath.Join(c.DataDir, "askkit.key")
}

// StoragePath is the launcher's local storage directory
func (c Config) StoragePath() string {
	return filepath.Join(c.DataDir, "storage")
}
