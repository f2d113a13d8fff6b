// Package config loads autoreply settings from a YAML file, the environment
// and an optional dotenv file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "AUTOREPLY"

// Token store backends.
const (
	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

// Config is the complete runtime configuration.
type Config struct {
	ThreadFetchLimit  int    `mapstructure:"thread_fetch_limit"`
	PollIntervalMinMs int    `mapstructure:"poll_interval_min_ms"`
	PollIntervalMaxMs int    `mapstructure:"poll_interval_max_ms"`
	RunOnce           bool   `mapstructure:"run_once"`
	LabelName         string `mapstructure:"label_name"`

	ReplySubject string `mapstructure:"reply_subject"`
	ReplyBody    string `mapstructure:"reply_body"`
	ThreadQuery  string `mapstructure:"thread_query"`
	Concurrency  int    `mapstructure:"concurrency"`
	RPS          int    `mapstructure:"rps"`
	DryRun       bool   `mapstructure:"dry_run"`

	CredentialsPath string `mapstructure:"credentials_path"`
	TokenPath       string `mapstructure:"token_path"`
	TokenStore      string `mapstructure:"token_store"`
	OAuthListenAddr string `mapstructure:"oauth_listen_addr"`
	KeyringDir      string `mapstructure:"keyring_dir"`
	KeyringPassword string `mapstructure:"keyring_password"`

	LogLevel          string `mapstructure:"log_level"`
	BreakerFailures   int    `mapstructure:"breaker_failures"`
	BreakerTimeoutSec int    `mapstructure:"breaker_timeout_sec"`
}

var defaults = map[string]any{
	"thread_fetch_limit":   5,
	"poll_interval_min_ms": 60000,
	"poll_interval_max_ms": 180000,
	"run_once":             true,
	"label_name":           "Listed-Test-Label",
	"reply_subject":        "new message",
	"reply_body":           "This is the email body.",
	"thread_query":         "",
	"concurrency":          1,
	"rps":                  4,
	"dry_run":              false,
	"credentials_path":     "credentials.json",
	"token_path":           "token.json",
	"token_store":          TokenStoreFile,
	"oauth_listen_addr":    "127.0.0.1:0",
	"keyring_dir":          "~/.config/autoreply/keyring",
	"keyring_password":     "",
	"log_level":            "info",
	"breaker_failures":     5,
	"breaker_timeout_sec":  30,
}

// Load reads configuration from path. A missing file is not an error: the
// defaults and AUTOREPLY_* environment variables still apply. When envFile is
// set and exists, it is loaded into the process environment first. Overrides
// run after parsing and before validation.
func Load(path, envFile string, overrides ...func(*Config)) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	for _, apply := range overrides {
		apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.ThreadFetchLimit <= 0 {
		errs = append(errs, fmt.Errorf("thread_fetch_limit must be positive, got %d", c.ThreadFetchLimit))
	}
	if c.PollIntervalMinMs <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval_min_ms must be positive, got %d", c.PollIntervalMinMs))
	}
	if c.PollIntervalMaxMs <= c.PollIntervalMinMs {
		errs = append(errs, fmt.Errorf("poll_interval_max_ms (%d) must exceed poll_interval_min_ms (%d)",
			c.PollIntervalMaxMs, c.PollIntervalMinMs))
	}
	// A dry run never creates or attaches the label.
	if strings.TrimSpace(c.LabelName) == "" && !c.DryRun {
		errs = append(errs, errors.New("label_name must not be empty"))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	if c.RPS < 0 {
		errs = append(errs, fmt.Errorf("rps must not be negative, got %d", c.RPS))
	}
	if c.BreakerFailures < 0 || c.BreakerTimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("breaker_failures (%d) and breaker_timeout_sec (%d) must not be negative",
			c.BreakerFailures, c.BreakerTimeoutSec))
	}
	switch c.TokenStore {
	case TokenStoreFile, TokenStoreKeyring:
	default:
		errs = append(errs, fmt.Errorf("token_store must be %q or %q, got %q", TokenStoreFile, TokenStoreKeyring, c.TokenStore))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PollInterval returns the [min, max) bounds of the pause between ticks.
func (c *Config) PollInterval() (time.Duration, time.Duration) {
	return time.Duration(c.PollIntervalMinMs) * time.Millisecond,
		time.Duration(c.PollIntervalMaxMs) * time.Millisecond
}

// BreakerTimeout is how long the Gmail circuit stays open after tripping.
func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.BreakerTimeoutSec) * time.Second
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// KeyringFileDir returns KeyringDir with a leading "~" expanded.
func (c *Config) KeyringFileDir() (string, error) {
	dir := c.KeyringDir
	if dir != "~" && !strings.HasPrefix(dir, "~/") {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding keyring_dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(dir, "~")), nil
}
