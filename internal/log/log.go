package log

import (
	"os"
	"strings"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var (
	mu     sync.RWMutex
	logger kitlog.Logger = kitlog.NewNopLogger()
)

// Configure sets up the global logger.
// level is one of trace, debug, info, warn, error; format is "console" or "json".
func Configure(logLevel, format string) {
	var l kitlog.Logger
	if format == "json" {
		l = kitlog.NewJSONLogger(kitlog.NewSyncWriter(os.Stdout))
	} else {
		l = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	}

	var opt level.Option
	switch strings.ToLower(logLevel) {
	case "trace", "debug":
		opt = level.AllowDebug()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowInfo()
	}
	l = level.NewFilter(l, opt)
	l = kitlog.With(l, "ts", kitlog.DefaultTimestampUTC)

	mu.Lock()
	logger = l
	mu.Unlock()
}

func current() kitlog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs a debug message with key/value pairs.
func Debug(msg string, kv ...any) {
	_ = level.Debug(current()).Log(append([]any{"msg", msg}, kv...)...)
}

// Info logs an info message with key/value pairs.
func Info(msg string, kv ...any) {
	_ = level.Info(current()).Log(append([]any{"msg", msg}, kv...)...)
}

// Warn logs a warning with key/value pairs.
func Warn(msg string, kv ...any) {
	_ = level.Warn(current()).Log(append([]any{"msg", msg}, kv...)...)
}

// Error logs an error with key/value pairs.
func Error(msg string, kv ...any) {
	_ = level.Error(current()).Log(append([]any{"msg", msg}, kv...)...)
}
