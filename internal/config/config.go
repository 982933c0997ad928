// Package config loads modsync settings from built-in defaults, an optional
// TOML file and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/go-homedir"

	"github.com/tinoosan/modsync/internal/installcfg"
)

const (
	AppName   = "modsync"
	EnvPrefix = "MODSYNC_"
)

var (
	ErrNoToken  = errors.New("config: api_token is required (MODSYNC_API_TOKEN or MODIO_API_TOKEN)")
	ErrNoAPIURL = errors.New("config: api_url is required")
)

type Config struct {
	APIURL        string            `koanf:"api_url"`
	APIToken      string            `koanf:"api_token"`
	Games         []string          `koanf:"games"`
	OutputDir     string            `koanf:"output_dir"`
	InstallLoader bool              `koanf:"install_loader"`
	Concurrency   int               `koanf:"concurrency"`
	FetchTimeout  time.Duration     `koanf:"fetch_timeout"`
	MaxRedirects  int               `koanf:"max_redirects"`
	Collision     string            `koanf:"collision"`
	GameDirs      map[string]string `koanf:"game_dirs"`
	DatabaseURL   string            `koanf:"database_url"`
	MetricsFile   string            `koanf:"metrics_file"`
	Status        Status            `koanf:"status"`
	Log           Log               `koanf:"log"`
}

// Status configures the optional HTTP status server.
type Status struct {
	Listen string `koanf:"listen"`
	Token  string `koanf:"token"`
}

type Log struct {
	Level      string `koanf:"level"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// DefaultPath is the config file read when none is given explicitly.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.toml")
}

func defaults() map[string]any {
	return map[string]any{
		"api_url":          "https://api.mod.io/v1",
		"output_dir":       ".",
		"install_loader":   true,
		"concurrency":      1,
		"fetch_timeout":    "10m",
		"max_redirects":    10,
		"collision":        string(installcfg.CollisionOverwrite),
		"log.level":        "info",
		"log.file":         filepath.Join(xdg.StateHome, AppName, AppName+".log"),
		"log.max_size_mb":  20,
		"log.max_backups":  3,
		"log.max_age_days": 28,
		"status.listen":    "",
		"metrics_file":     "",
		"database_url":     "",
	}
}

// legacyEnv maps the variable names used by earlier releases.
var legacyEnv = map[string]string{
	"MODIO_API_TOKEN": "api_token",
	"MODIO_API":       "api_url",
	"GAMES":           "games",
}

// Load builds the configuration. path may be empty, in which case
// DefaultPath is used if it exists. An explicitly named file must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// 2. Config file
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", path, err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file: %w", err)
	}

	// 3. Legacy env
	err = k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load legacy env: %w", err)
	}

	// 4. MODSYNC_* env; "__" separates nesting levels.
	err = k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	// 5. Unmarshal
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	// 6. Post-process
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	games := c.Games[:0]
	for _, g := range c.Games {
		if g = strings.TrimSpace(g); g != "" && !slices.Contains(games, g) {
			games = append(games, g)
		}
	}
	c.Games = games
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	c.APIToken = strings.TrimSpace(c.APIToken)

	var err error
	for _, p := range []*string{&c.OutputDir, &c.MetricsFile, &c.Log.File} {
		if *p, err = homedir.Expand(*p); err != nil {
			return fmt.Errorf("expand %s: %w", *p, err)
		}
	}
	for k, v := range c.GameDirs {
		if c.GameDirs[k], err = homedir.Expand(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("expand game_dirs.%s: %w", k, err)
		}
	}

	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	switch installcfg.CollisionPolicy(c.Collision) {
	case installcfg.CollisionOverwrite, installcfg.CollisionSkip, installcfg.CollisionError:
	default:
		return fmt.Errorf("config: collision must be overwrite, skip or error, got %q", c.Collision)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("config: fetch_timeout must be positive, got %s", c.FetchTimeout)
	}
	return nil
}

// Validate checks the settings needed to talk to the mod.io API.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return ErrNoAPIURL
	}
	if c.APIToken == "" {
		return ErrNoToken
	}
	return nil
}

// GameDir returns the external install directory for a game, looked up by
// name_id first and then by numeric id.
func (c *Config) GameDir(nameID, id string) string {
	for _, k := range []string{nameID, id} {
		if d, ok := c.GameDirs[k]; ok && d != "" {
			return d
		}
	}
	return ""
}

// InstallOptions converts the install-related settings.
func (c *Config) InstallOptions() installcfg.Options {
	o := installcfg.DefaultOptions()
	o.Policy = installcfg.ParseCollisionPolicy(c.Collision)
	o.InstallLoader = c.InstallLoader
	return o
}
