package observe

import (
	"bytes"
	"context"
	"testing"

	"github.com/aws/smithy-go/logging"
)

// TestSmithyLogger_Classification verifies SDK classifications map to levels.
func TestSmithyLogger_Classification(t *testing.T) {
	var buf bytes.Buffer
	sl := NewSmithyLogger(NewLoggerWithWriter("debug", &buf))

	sl.Logf(logging.Warn, "retrying %s", "PutObject")
	sl.Logf(logging.Debug, "request %d", 7)

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["level"] != "warn" || entries[0]["msg"] != "retrying PutObject" {
		t.Errorf("unexpected warn entry: %v", entries[0])
	}
	if entries[1]["level"] != "debug" || entries[1]["msg"] != "request 7" {
		t.Errorf("unexpected debug entry: %v", entries[1])
	}
	if entries[0]["source"] != "aws-sdk" {
		t.Errorf("expected source=aws-sdk, got %v", entries[0]["source"])
	}
}

// TestSmithyLogger_WithContext verifies a context-bound copy is returned.
func TestSmithyLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	sl := NewSmithyLogger(NewLoggerWithWriter("info", &buf))

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	bound := sl.WithContext(ctx)

	scoped, ok := bound.(*SmithyLogger)
	if !ok {
		t.Fatalf("expected *SmithyLogger, got %T", bound)
	}
	if scoped.ctx != ctx || sl.ctx == ctx {
		t.Error("WithContext should bind a copy, leaving the original untouched")
	}

	// Debug output is filtered at info level.
	bound.Logf(logging.Debug, "hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %s", buf.String())
	}
}

// TestSmithyLogger_Nil verifies a nil logger discards output.
func TestSmithyLogger_Nil(t *testing.T) {
	NewSmithyLogger(nil).Logf(logging.Warn, "dropped")
}
