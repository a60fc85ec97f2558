// Package config loads datashell settings from flags, the environment and
// defaults, and builds the process logger.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "DATASHELL"

	defaultLogLevel     = "warn"
	defaultLogFormat    = "text"
	defaultHistoryLimit = 500
	defaultQueueSize    = 64
	defaultMaxRows      = 1000

	keyLogLevel      = "log.level"
	keyLogFormat     = "log.format"
	keyHistoryFile   = "history.file"
	keyHistoryLimit  = "history.limit"
	keyQueueSize     = "queue.size"
	keyMaxRows       = "render.max_rows"
	keySubmitTimeout = "submit.timeout"
)

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":      keyLogLevel,
	"log-format":     keyLogFormat,
	"history-file":   keyHistoryFile,
	"history-limit":  keyHistoryLimit,
	"queue-size":     keyQueueSize,
	"max-rows":       keyMaxRows,
	"submit-timeout": keySubmitTimeout,
}

// Config holds the resolved settings.
type Config struct {
	LogLevel      slog.Level
	LogFormat     string
	HistoryFile   string
	HistoryLimit  int
	QueueSize     int
	MaxRows       int
	SubmitTimeout time.Duration // zero waits forever
}

// RegisterFlags adds one flag per configuration key to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.String("log-format", defaultLogFormat, "log format (text, json)")
	fs.String("history-file", "", "readline history file (default ~/.datashell_history)")
	fs.Int("history-limit", defaultHistoryLimit, "maximum history entries")
	fs.Int("queue-size", defaultQueueSize, "commands that may wait before submitting blocks")
	fs.Int("max-rows", defaultMaxRows, "maximum rows rendered per result")
	fs.Duration("submit-timeout", 0, "give up waiting for a reply after this long (0 waits forever)")
}

// Load resolves configuration. Flags that were set explicitly win over
// DATASHELL_* environment variables, which win over defaults. flags may
// be nil.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyLogLevel, defaultLogLevel)
	v.SetDefault(keyLogFormat, defaultLogFormat)
	v.SetDefault(keyHistoryFile, "")
	v.SetDefault(keyHistoryLimit, defaultHistoryLimit)
	v.SetDefault(keyQueueSize, defaultQueueSize)
	v.SetDefault(keyMaxRows, defaultMaxRows)
	v.SetDefault(keySubmitTimeout, time.Duration(0))

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	level, err := parseLogLevel(v.GetString(keyLogLevel))
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		LogLevel:      level,
		LogFormat:     strings.ToLower(v.GetString(keyLogFormat)),
		HistoryFile:   v.GetString(keyHistoryFile),
		HistoryLimit:  v.GetInt(keyHistoryLimit),
		QueueSize:     v.GetInt(keyQueueSize),
		MaxRows:       v.GetInt(keyMaxRows),
		SubmitTimeout: v.GetDuration(keySubmitTimeout),
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = historyPath()
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch {
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("invalid %s %q: want text or json", keyLogFormat, c.LogFormat)
	case c.QueueSize < 0:
		return fmt.Errorf("invalid %s %d: must not be negative", keyQueueSize, c.QueueSize)
	case c.MaxRows <= 0:
		return fmt.Errorf("invalid %s %d: must be positive", keyMaxRows, c.MaxRows)
	case c.SubmitTimeout < 0:
		return fmt.Errorf("invalid %s %s: must not be negative", keySubmitTimeout, c.SubmitTimeout)
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid %s %q", keyLogLevel, s)
}

// NewLogger creates a structured logger writing to w at level. format is
// "json" or "text".
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".datashell_history")
}
