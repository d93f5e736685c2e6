package declarest

import (
	"sync"
	"testing"
)

// capturingLogger records emitted events for assertions.
type capturingLogger struct {
	mu      sync.Mutex
	entries []capturedEntry
}

type capturedEntry struct {
	level string
	msg   string
	kv    []any
}

func (l *capturingLogger) log(level, msg string, kv []any) {
	l.mu.Lock()
	l.entries = append(l.entries, capturedEntry{level: level, msg: msg, kv: kv})
	l.mu.Unlock()
}

func (l *capturingLogger) Debug(msg string, kv ...any) { l.log("debug", msg, kv) }
func (l *capturingLogger) Info(msg string, kv ...any)  { l.log("info", msg, kv) }
func (l *capturingLogger) Warn(msg string, kv ...any)  { l.log("warn", msg, kv) }
func (l *capturingLogger) Error(msg string, kv ...any) { l.log("error", msg, kv) }

func (l *capturingLogger) byMessage(msg string) []capturedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []capturedEntry
	for _, e := range l.entries {
		if e.msg == msg {
			out = append(out, e)
		}
	}
	return out
}

func TestIsSensitiveKey(t *testing.T) {
	sensitive := []string{
		"Authorization", "authorization", "X-API-Key", "api_key",
		"X-Auth-Token", "Proxy-Authorization", "Cookie", "password", "client_secret",
	}
	for _, key := range sensitive {
		if !isSensitiveKey(key) {
			t.Errorf("expected %q to be sensitive", key)
		}
	}

	plain := []string{"Accept", "Content-Type", "X-Request-ID", "User-Agent"}
	for _, key := range plain {
		if isSensitiveKey(key) {
			t.Errorf("expected %q to be plain", key)
		}
	}
}

func TestRedactHeaders(t *testing.T) {
	headers := map[string][]string{
		"Authorization": {"Bearer secret"},
		"Accept":        {"application/json"},
	}

	redacted := redactHeaders(headers, false)
	if redacted["Authorization"] != "[REDACTED]" {
		t.Errorf("Authorization = %q, want redacted", redacted["Authorization"])
	}
	if redacted["Accept"] != "application/json" {
		t.Errorf("Accept = %q, want passed through", redacted["Accept"])
	}

	verbatim := redactHeaders(headers, true)
	if verbatim["Authorization"] != "Bearer secret" {
		t.Errorf("sensitive logging enabled must pass credentials through, got %q", verbatim["Authorization"])
	}
}

func TestSimpleLoggerDoesNotPanic(t *testing.T) {
	logger := NewSimpleLogger()
	logger.Debug("debug message", "k", "v")
	logger.Info("info message", "k", 1)
	logger.Warn("warn message")
	logger.Error("error message", "odd")
}

func TestNewSlogLoggerNilUsesDefault(t *testing.T) {
	logger := NewSlogLogger(nil)
	if logger == nil {
		t.Fatal("NewSlogLogger(nil) returned nil")
	}
	logger.Info("message", "k", "v")
}
