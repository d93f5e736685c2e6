package declarest

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
)

// Logger is the structured event sink of the pipeline. The pipeline never
// depends on anything a Logger returns.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// SimpleLogger writes level-tagged key/value lines to stderr.
type SimpleLogger struct {
	l *log.Logger
}

// NewSimpleLogger creates a logger on stderr with standard flags.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{l: log.New(os.Stderr, "declarest ", log.LstdFlags)}
}

func (s *SimpleLogger) Debug(msg string, kv ...any) { s.write("DEBUG", msg, kv) }
func (s *SimpleLogger) Info(msg string, kv ...any)  { s.write("INFO", msg, kv) }
func (s *SimpleLogger) Warn(msg string, kv ...any)  { s.write("WARN", msg, kv) }
func (s *SimpleLogger) Error(msg string, kv ...any) { s.write("ERROR", msg, kv) }

func (s *SimpleLogger) write(level, msg string, kv []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "level=%s msg=%q", level, msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	s.l.Print(b.String())
}

// slogLogger adapts a *slog.Logger to the Logger interface.
type slogLogger struct {
	s *slog.Logger
}

// NewSlogLogger wraps a slog logger. A nil argument uses slog.Default.
func NewSlogLogger(s *slog.Logger) Logger {
	if s == nil {
		s = slog.Default()
	}
	return &slogLogger{s: s}
}

func (l *slogLogger) Debug(msg string, kv ...any) { l.s.Debug(msg, kv...) }
func (l *slogLogger) Info(msg string, kv ...any)  { l.s.Info(msg, kv...) }
func (l *slogLogger) Warn(msg string, kv ...any)  { l.s.Warn(msg, kv...) }
func (l *slogLogger) Error(msg string, kv ...any) { l.s.Error(msg, kv...) }

// sensitiveKeyFragments flags header and field names whose values never
// reach the log stream unless sensitive logging is explicitly enabled.
var sensitiveKeyFragments = []string{
	"authorization", "auth", "token", "password", "secret",
	"key", "apikey", "api_key", "bearer", "basic", "cookie",
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// redactHeaders renders headers for logging with credential values masked.
func redactHeaders(headers map[string][]string, logSensitive bool) map[string]string {
	out := make(map[string]string, len(headers))
	for key, values := range headers {
		if !logSensitive && isSensitiveKey(key) {
			out[key] = "[REDACTED]"
			continue
		}
		out[key] = strings.Join(values, ",")
	}
	return out
}
