package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/bawdo/datashell/internal/testutil"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	testutil.AssertNoError(t, fs.Parse(args))
	return fs
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATASHELL_LOG_LEVEL", "DATASHELL_LOG_FORMAT", "DATASHELL_HISTORY_FILE",
		"DATASHELL_HISTORY_LIMIT", "DATASHELL_QUEUE_SIZE", "DATASHELL_RENDER_MAX_ROWS",
		"DATASHELL_SUBMIT_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(nil)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cfg.LogLevel, slog.LevelWarn)
	testutil.AssertEqual(t, cfg.LogFormat, "text")
	testutil.AssertEqual(t, cfg.HistoryLimit, 500)
	testutil.AssertEqual(t, cfg.QueueSize, 64)
	testutil.AssertEqual(t, cfg.MaxRows, 1000)
	testutil.AssertEqual(t, cfg.SubmitTimeout, time.Duration(0))
	testutil.AssertContains(t, cfg.HistoryFile, ".datashell_history")
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATASHELL_LOG_LEVEL", "DEBUG")
	t.Setenv("DATASHELL_LOG_FORMAT", "json")
	t.Setenv("DATASHELL_QUEUE_SIZE", "8")
	t.Setenv("DATASHELL_RENDER_MAX_ROWS", "10")
	t.Setenv("DATASHELL_SUBMIT_TIMEOUT", "3s")
	t.Setenv("DATASHELL_HISTORY_FILE", "/tmp/h")

	cfg, err := Load(newFlags(t))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cfg.LogLevel, slog.LevelDebug)
	testutil.AssertEqual(t, cfg.LogFormat, "json")
	testutil.AssertEqual(t, cfg.QueueSize, 8)
	testutil.AssertEqual(t, cfg.MaxRows, 10)
	testutil.AssertEqual(t, cfg.SubmitTimeout, 3*time.Second)
	testutil.AssertEqual(t, cfg.HistoryFile, "/tmp/h")
}

func TestFlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATASHELL_QUEUE_SIZE", "8")
	cfg, err := Load(newFlags(t, "--queue-size=2", "--log-level=error"))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cfg.QueueSize, 2)
	testutil.AssertEqual(t, cfg.LogLevel, slog.LevelError)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"DATASHELL_LOG_LEVEL", "loud", "log.level"},
		{"DATASHELL_LOG_FORMAT", "xml", "log.format"},
		{"DATASHELL_QUEUE_SIZE", "-1", "queue.size"},
		{"DATASHELL_RENDER_MAX_ROWS", "0", "render.max_rows"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load(nil)
			testutil.AssertError(t, err)
			testutil.AssertContains(t, err.Error(), tt.want)
		})
	}
}

func TestNewLoggerFormats(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo, "json").Info("hello", "k", "v")
	testutil.AssertContains(t, buf.String(), `"msg":"hello"`)
	testutil.AssertContains(t, buf.String(), `"k":"v"`)

	buf.Reset()
	l := NewLogger(&buf, slog.LevelWarn, "text")
	l.Info("hidden")
	l.Warn("shown")
	testutil.AssertNotContains(t, buf.String(), "hidden")
	testutil.AssertContains(t, buf.String(), "msg=shown")
}
