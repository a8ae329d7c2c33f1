// Package config loads mu-formula settings from defaults, an optional
// config file, and MU_FORMULA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// AppName names the config and state directories.
const AppName = "mu-formula"

// EnvPrefix prefixes environment overrides, e.g. MU_FORMULA_BIN_DIR.
const EnvPrefix = "MU_FORMULA"

// Config holds resolved settings.
type Config struct {
	// BinDir is where the canonical executable is placed.
	BinDir string `mapstructure:"bin_dir"`
	// StateDir holds install receipts and lock files.
	StateDir string `mapstructure:"state_dir"`
	// Formula is a manifest path; empty selects the embedded mu-cli formula.
	Formula string `mapstructure:"formula"`
	// Channel is used when no --devel flag is given.
	Channel string `mapstructure:"channel"`
	// Retries for 5xx and connection errors while fetching.
	Retries int `mapstructure:"retries"`
	// MaxDownloadSize in bytes; zero disables the limit.
	MaxDownloadSize int64 `mapstructure:"max_download_size"`
	// GitHubToken authenticates downloads from GitHub.
	GitHubToken string `mapstructure:"github_token"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BinDir:          xdg.BinHome,
		StateDir:        filepath.Join(xdg.StateHome, AppName),
		Channel:         "stable",
		Retries:         3,
		MaxDownloadSize: 256 << 20,
	}
}

// DefaultFile returns $XDG_CONFIG_HOME/mu-formula/config.toml.
func DefaultFile() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.toml")
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile is used exclusively when set and must exist.
	ConfigFile string
	// Overrides are applied last, typically from explicitly set flags.
	Overrides map[string]any
}

// Load resolves configuration: defaults, then the config file, then
// environment, then overrides.
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("bin_dir", defaults.BinDir)
	v.SetDefault("state_dir", defaults.StateDir)
	v.SetDefault("formula", defaults.Formula)
	v.SetDefault("channel", defaults.Channel)
	v.SetDefault("retries", defaults.Retries)
	v.SetDefault("max_download_size", defaults.MaxDownloadSize)
	v.SetDefault("github_token", defaults.GitHubToken)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// GITHUB_TOKEN is honored without the prefix, as CI systems export it.
	if err := v.BindEnv("github_token", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN"); err != nil {
		return nil, "", fmt.Errorf("bind env: %w", err)
	}

	resolvedPath := ""
	switch {
	case opts.ConfigFile != "":
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return nil, "", fmt.Errorf("config file not found: %s", opts.ConfigFile)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
		resolvedPath = opts.ConfigFile
	default:
		path := DefaultFile()
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, "", fmt.Errorf("read config %s: %w", path, err)
			}
			resolvedPath = path
		}
	}

	for k, val := range opts.Overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	cfg.BinDir = expandHome(cfg.BinDir)
	cfg.StateDir = expandHome(cfg.StateDir)
	if cfg.Formula != "" {
		cfg.Formula = expandHome(cfg.Formula)
	}
	return &cfg, resolvedPath, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.BinDir == "" {
		errs = append(errs, errors.New("bin_dir is required"))
	}
	if c.StateDir == "" {
		errs = append(errs, errors.New("state_dir is required"))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must be >= 0, got %d", c.Retries))
	}
	if c.MaxDownloadSize < 0 {
		errs = append(errs, fmt.Errorf("max_download_size must be >= 0, got %d", c.MaxDownloadSize))
	}
	return errors.Join(errs...)
}

// ReceiptDir is where install receipts are kept.
func (c *Config) ReceiptDir() string {
	return filepath.Join(c.StateDir, "receipts")
}

// DownloadDir is where artifacts are fetched to before install.
func (c *Config) DownloadDir() string {
	return filepath.Join(c.StateDir, "downloads")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
