package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse log output as JSON: %v\nOutput: %s", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

// TestLogger_IncludesHandleFields verifies handle fields are present in log output.
func TestLogger_IncludesHandleFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := HandleMeta{
		Kind:    "client",
		Service: "s3",
		Cache:   "client-lru",
		Policy:  "LRU",
		Key:     `client(service_name="s3")`,
		Session: "abc",
	}
	logger.WithHandle(meta).Info(context.Background(), "test message")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]

	want := map[string]string{
		"handle.id":      "client.s3",
		"handle.kind":    "client",
		"handle.service": "s3",
		"cache.name":     "client-lru",
		"cache.policy":   "LRU",
		"handle.key":     `client(service_name="s3")`,
		"session.id":     "abc",
		"level":          "info",
		"msg":            "test message",
	}
	for k, v := range want {
		if got, _ := entry[k].(string); got != v {
			t.Errorf("expected %s=%q, got %v", k, v, entry[k])
		}
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("expected timestamp field")
	}
}

// TestLogger_OmitsEmptyHandleFields verifies optional metadata is left out.
func TestLogger_OmitsEmptyHandleFields(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter("info", &buf).WithHandle(HandleMeta{Service: "sts"}).Info(context.Background(), "m")

	entry := decodeLines(t, &buf)[0]
	for _, k := range []string{"handle.kind", "cache.name", "cache.policy", "handle.key", "session.id"} {
		if _, ok := entry[k]; ok {
			t.Errorf("expected %s to be omitted", k)
		}
	}
	if entry["handle.id"] != "sts" {
		t.Errorf("expected handle.id=sts, got %v", entry["handle.id"])
	}

	buf.Reset()
	NewLoggerWithWriter("info", &buf).WithHandle(HandleMeta{Session: "sess-1"}).Info(context.Background(), "m")
	entry = decodeLines(t, &buf)[0]
	if _, ok := entry["handle.id"]; ok {
		t.Errorf("expected handle.id to be omitted without a service")
	}
	if entry["session.id"] != "sess-1" {
		t.Errorf("expected session.id=sess-1, got %v", entry["session.id"])
	}
}

// TestLogger_LevelFiltering verifies entries below the level are dropped.
func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Errorf("unexpected levels: %v, %v", entries[0]["level"], entries[1]["level"])
	}
}

// TestLogger_RedactsSensitiveFields verifies credentials never reach the output.
func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Info(context.Background(), "creds",
		Field{Key: "aws_secret_access_key", Value: "wJalrXUtnFEMI"},
		Field{Key: "aws_session_token", Value: "FwoGZXIvYXdz"},
		Field{Key: "password", Value: "hunter2"},
		Field{Key: "region", Value: "us-east-1"},
	)

	out := buf.String()
	for _, secret := range []string{"wJalrXUtnFEMI", "FwoGZXIvYXdz", "hunter2"} {
		if strings.Contains(out, secret) {
			t.Errorf("output leaks %q: %s", secret, out)
		}
	}

	entry := decodeLines(t, &buf)[0]
	if entry["aws_secret_access_key"] != "[REDACTED]" {
		t.Errorf("expected redaction, got %v", entry["aws_secret_access_key"])
	}
	if entry["region"] != "us-east-1" {
		t.Errorf("expected region to pass through, got %v", entry["region"])
	}
}

// TestLogger_WithHandleDoesNotMutateParent verifies derived loggers are independent.
func TestLogger_WithHandleDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithWriter("info", &buf)
	_ = parent.WithHandle(HandleMeta{Service: "s3"})

	parent.Info(context.Background(), "plain")
	entry := decodeLines(t, &buf)[0]
	if _, ok := entry["handle.service"]; ok {
		t.Error("parent logger gained handle fields")
	}
}

// TestLogger_ConcurrentWrites verifies derived loggers do not interleave lines.
func TestLogger_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := logger.WithHandle(HandleMeta{Service: "s3"})
			for j := 0; j < 20; j++ {
				l.Info(context.Background(), "line")
			}
		}()
	}
	wg.Wait()

	if got := len(decodeLines(t, &buf)); got != 200 {
		t.Errorf("expected 200 entries, got %d", got)
	}
}

// TestParseLogLevel verifies level parsing and its fallback.
func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"bogus": LevelInfo,
		"":      LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
