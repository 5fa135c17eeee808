package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds the process-level moyu settings. User preferences such as
// the whitelist and salary live in the store, not here.
type Config struct {
	StorageBackend  string   `json:"storage_backend"` // "jsonfile" | "sqlite" | "memory"
	DataDir         string   `json:"data_dir"`        // override XDG_DATA_HOME/moyu
	WorkInterval    Duration `json:"work_interval"`
	TickInterval    Duration `json:"tick_interval"`
	PollInterval    Duration `json:"poll_interval"`
	QueryTimeout    Duration `json:"query_timeout"`
	MinLoafDuration Duration `json:"min_loaf_duration"`
	MaxSessions     int      `json:"max_sessions"`  // 0 keeps every session
	Notifications   string   `json:"notifications"` // "desktop" | "log" | "off"
	LogLevel        string   `json:"log_level"`
}

// Duration is a time.Duration that reads "90s"-style strings or a number
// of seconds from JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or a number of seconds")
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		StorageBackend:  "jsonfile",
		WorkInterval:    Duration(time.Hour),
		TickInterval:    Duration(time.Minute),
		PollInterval:    Duration(5 * time.Second),
		QueryTimeout:    Duration(1500 * time.Millisecond),
		MinLoafDuration: Duration(5 * time.Second),
		Notifications:   "desktop",
		LogLevel:        "info",
	}
}

// GlobalPath is ~/.config/moyu/config.json.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "moyu", "config.json"), nil
}

// LoadGlobal reads ~/.config/moyu/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path)
}

// loadFile reads and parses a JSON config file at path, returning defaults
// when the file is absent.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			d := Defaults()
			return &d, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Environment overrides.
const (
	EnvDataDir        = "MOYU_DATA_DIR"
	EnvStorageBackend = "MOYU_STORAGE_BACKEND"
	EnvWorkInterval   = "MOYU_WORK_INTERVAL"
	EnvPollInterval   = "MOYU_POLL_INTERVAL"
	EnvLogLevel       = "MOYU_LOG_LEVEL"
	EnvNotifications  = "MOYU_NOTIFICATIONS"
)

// FromEnv builds the override layer from environment variables. Unset or
// unparsable values are left empty.
func FromEnv(getenv func(string) string) *Config {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := &Config{
		DataDir:        getenv(EnvDataDir),
		StorageBackend: getenv(EnvStorageBackend),
		LogLevel:       getenv(EnvLogLevel),
		Notifications:  getenv(EnvNotifications),
	}
	if d, err := time.ParseDuration(getenv(EnvWorkInterval)); err == nil && d > 0 {
		cfg.WorkInterval = Duration(d)
	}
	if d, err := time.ParseDuration(getenv(EnvPollInterval)); err == nil && d > 0 {
		cfg.PollInterval = Duration(d)
	}
	return cfg
}

// Merge combines the global file and the environment layer, with the
// environment taking precedence. Missing keys fall back to global, then
// defaults.
func Merge(global, env *Config) Config {
	result := Defaults()
	for _, layer := range []*Config{global, env} {
		if layer == nil {
			continue
		}
		if layer.StorageBackend != "" {
			result.StorageBackend = layer.StorageBackend
		}
		if layer.DataDir != "" {
			result.DataDir = layer.DataDir
		}
		if layer.WorkInterval > 0 {
			result.WorkInterval = layer.WorkInterval
		}
		if layer.TickInterval > 0 {
			result.TickInterval = layer.TickInterval
		}
		if layer.PollInterval > 0 {
			result.PollInterval = layer.PollInterval
		}
		if layer.QueryTimeout > 0 {
			result.QueryTimeout = layer.QueryTimeout
		}
		if layer.MinLoafDuration > 0 {
			result.MinLoafDuration = layer.MinLoafDuration
		}
		if layer.MaxSessions > 0 {
			result.MaxSessions = layer.MaxSessions
		}
		if layer.Notifications != "" {
			result.Notifications = layer.Notifications
		}
		if layer.LogLevel != "" {
			result.LogLevel = layer.LogLevel
		}
	}
	return result
}

// Load is LoadGlobal merged with the process environment.
func Load() (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Config{}, err
	}
	return Merge(global, FromEnv(os.Getenv)), nil
}

// ResolveDataDir returns cfg.DataDir, or $XDG_DATA_HOME/moyu, or
// ~/.local/share/moyu.
func (c Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "moyu"), nil
}

// Validate rejects values the daemon cannot run with.
func (c Config) Validate() error {
	switch c.Notifications {
	case "desktop", "log", "off":
	default:
		return fmt.Errorf("notifications must be desktop, log or off, got %q", c.Notifications)
	}
	if c.QueryTimeout >= c.PollInterval {
		return fmt.Errorf("query_timeout (%s) must be shorter than poll_interval (%s)",
			c.QueryTimeout.Std(), c.PollInterval.Std())
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("max_sessions must be >= 0, got %d", c.MaxSessions)
	}
	return nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
