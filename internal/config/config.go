package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "melody.toml"

// Duration is a time.Duration written as "10s" or "500ms" in the config file.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config keeps runtime settings.
type Config struct {
	DatabaseURL        string   `toml:"database_url"`
	CachePath          string   `toml:"cache_path"`
	UserID             string   `toml:"user_id"`
	WorkspaceName      string   `toml:"workspace_name"`
	WorkspaceLogo      string   `toml:"workspace_logo"`
	TelegramToken      string   `toml:"telegram_token"`
	TelegramChatID     int64    `toml:"telegram_chat_id"`
	HTTPAddr           string   `toml:"http_addr"`
	LogLevel           string   `toml:"log_level"`
	LogFormat          string   `toml:"log_format"`
	PollInterval       Duration `toml:"poll_interval"`
	ReminderWindow     Duration `toml:"reminder_window"`
	Debounce           Duration `toml:"debounce"`
	RemotePollInterval Duration `toml:"remote_poll_interval"`
	WriteRetries       int      `toml:"write_retries"`
	RetryBackoff       Duration `toml:"retry_backoff"`
	DigestTime         string   `toml:"digest_time"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		DatabaseURL:        "melody.db",
		CachePath:          "melody-cache.db",
		WorkspaceName:      "Melody",
		WorkspaceLogo:      "🍓",
		HTTPAddr:           ":8080",
		LogLevel:           "info",
		LogFormat:          "text",
		PollInterval:       Duration{10 * time.Second},
		ReminderWindow:     Duration{60 * time.Second},
		Debounce:           Duration{2 * time.Second},
		RemotePollInterval: Duration{5 * time.Second},
		WriteRetries:       3,
		RetryBackoff:       Duration{500 * time.Millisecond},
		DigestTime:         "09:00",
	}
}

// Load builds the configuration from defaults, then the TOML file at path (or
// $MELODY_CONFIG, or ./melody.toml when present), then MELODY_* environment variables.
func Load(path string) (Config, error) {
	cfg := Defaults()

	explicit := true
	if path == "" {
		path = strings.TrimSpace(os.Getenv("MELODY_CONFIG"))
	}
	if path == "" {
		path, explicit = DefaultFile, false
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := loadFromEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config) error {
	strs := map[string]*string{
		"MELODY_DATABASE_URL":   &cfg.DatabaseURL,
		"MELODY_CACHE_PATH":     &cfg.CachePath,
		"MELODY_USER_ID":        &cfg.UserID,
		"MELODY_WORKSPACE_NAME": &cfg.WorkspaceName,
		"MELODY_WORKSPACE_LOGO": &cfg.WorkspaceLogo,
		"MELODY_TELEGRAM_TOKEN": &cfg.TelegramToken,
		"MELODY_HTTP_ADDR":      &cfg.HTTPAddr,
		"MELODY_LOG_LEVEL":      &cfg.LogLevel,
		"MELODY_LOG_FORMAT":     &cfg.LogFormat,
		"MELODY_DIGEST_TIME":    &cfg.DigestTime,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	durations := map[string]*Duration{
		"MELODY_POLL_INTERVAL":        &cfg.PollInterval,
		"MELODY_REMINDER_WINDOW":      &cfg.ReminderWindow,
		"MELODY_DEBOUNCE":             &cfg.Debounce,
		"MELODY_REMOTE_POLL_INTERVAL": &cfg.RemotePollInterval,
		"MELODY_RETRY_BACKOFF":        &cfg.RetryBackoff,
	}
	for key, dst := range durations {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("MELODY_TELEGRAM_CHAT_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MELODY_TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}
	if v := strings.TrimSpace(os.Getenv("MELODY_WRITE_RETRIES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MELODY_WRITE_RETRIES: %w", err)
		}
		cfg.WriteRetries = n
	}
	return nil
}

// Validate rejects settings the services cannot run with.
func (c Config) Validate() error {
	var errs []error
	for name, d := range map[string]Duration{
		"poll_interval":        c.PollInterval,
		"reminder_window":      c.ReminderWindow,
		"debounce":             c.Debounce,
		"remote_poll_interval": c.RemotePollInterval,
	} {
		if d.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.RetryBackoff.Duration < 0 {
		errs = append(errs, errors.New("retry_backoff must not be negative"))
	}
	if c.WriteRetries < 1 {
		errs = append(errs, errors.New("write_retries must be at least 1"))
	}
	if c.DigestTime != "" {
		if _, err := time.Parse("15:04", c.DigestTime); err != nil {
			errs = append(errs, fmt.Errorf("digest_time %q, expected HH:MM", c.DigestTime))
		}
	}
	return errors.Join(errs...)
}

// SignedIn reports whether a user identity is configured.
func (c Config) SignedIn() bool {
	return c.UserID != ""
}
