// Package config loads cv-builder settings with koanf. Priority is
// environment (CVBUILDER_*) > YAML file > defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "CVBUILDER_"

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	API      APIConfig      `koanf:"api"`
	Store    StoreConfig    `koanf:"store"`
	Server   ServerConfig   `koanf:"server"`
	Autosave AutosaveConfig `koanf:"autosave"`
	Log      LogConfig      `koanf:"log"`
	Chrome   ChromeConfig   `koanf:"chrome"`
}

type APIConfig struct {
	BaseURL     string        `koanf:"base_url"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxAttempts int           `koanf:"max_attempts"`
}

type StoreConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
	DSN    string `koanf:"dsn"`
	// Profile scopes rows in a shared postgres store to one browser-like
	// profile.
	Profile string `koanf:"profile"`
}

type ServerConfig struct {
	Port string `koanf:"port"`
}

// AutosaveConfig holds the debounce delays after typing and after a change.
type AutosaveConfig struct {
	InputDelay  time.Duration `koanf:"input_delay"`
	ChangeDelay time.Duration `koanf:"change_delay"`
}

type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

type ChromeConfig struct {
	Path string `koanf:"path"`
}

// Defaults returns the flat key/value defaults.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"api.base_url":          "http://localhost:5000/api/cv-builder",
		"api.timeout":           "30s",
		"api.max_attempts":      1,
		"store.driver":          DriverSQLite,
		"store.path":            defaultStorePath(),
		"store.dsn":             "",
		"store.profile":         "default",
		"server.port":           "3000",
		"autosave.input_delay":  "1s",
		"autosave.change_delay": "500ms",
		"log.level":             "info",
		"log.development":       false,
		"chrome.path":           "",
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "cvbuilder.db"
	}
	return dir + string(os.PathSeparator) + "cvbuilder" + string(os.PathSeparator) + "local.db"
}

// Load reads defaults, then path when it is non-empty and exists, then the
// environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	for key, v := range Defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("checking config %s: %w", path, err)
		}
	}

	// the plain CHROME_PATH chromedp users already set, below our own prefix
	if err := k.Load(env.Provider("CHROME_PATH", ".", chromePathTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment config: %w", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envTransform maps CVBUILDER_API_BASE_URL to api.base_url. Only the first
// underscore separates section from key.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func chromePathTransform(s string) string {
	if s == "CHROME_PATH" {
		return "chrome.path"
	}
	return ""
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("config: store.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("config: api.base_url is required")
	}
	if c.API.MaxAttempts < 1 {
		return fmt.Errorf("config: api.max_attempts must be at least 1")
	}
	if c.Autosave.InputDelay < 0 || c.Autosave.ChangeDelay < 0 {
		return fmt.Errorf("config: autosave delays must not be negative")
	}
	return nil
}
