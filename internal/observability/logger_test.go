package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_LevelMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		level        string
		debugEnabled bool
	}{
		{name: "debug level", level: "debug", debugEnabled: true},
		{name: "info level", level: "info", debugEnabled: false},
		{name: "empty level defaults to info", level: "", debugEnabled: false},
		{name: "mixed case", level: " WARN ", debugEnabled: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tc.level, "json")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tc.debugEnabled {
				t.Fatalf("debug enabled=%v, want=%v", got, tc.debugEnabled)
			}
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("not-a-level", "json")
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
	if logger != nil {
		t.Fatal("expected nil logger for invalid level")
	}
}

func TestNewLogger_Format(t *testing.T) {
	t.Parallel()

	if _, err := NewLogger("info", "console"); err != nil {
		t.Fatalf("NewLogger(console) error = %v", err)
	}
	if _, err := NewLogger("info", "xml"); err == nil {
		t.Fatal("NewLogger(xml) error = nil, want error")
	}
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := WithRequester(WithCorrelationID(context.Background(), "cid-123"), "user-7")
	ctx = WithOperation(ctx, "enrollActivity")

	if got, ok := CorrelationIDFromContext(ctx); !ok || got != "cid-123" {
		t.Fatalf("correlation id=%q ok=%v, want cid-123", got, ok)
	}
	if got, ok := RequesterFromContext(ctx); !ok || got != "user-7" {
		t.Fatalf("requester=%q ok=%v, want user-7", got, ok)
	}
	if got, ok := OperationFromContext(ctx); !ok || got != "enrollActivity" {
		t.Fatalf("operation=%q ok=%v, want enrollActivity", got, ok)
	}
	if got, _ := CorrelationIDFromContext(WithRequester(ctx, "user-8")); got != "cid-123" {
		t.Fatalf("correlation id=%q after WithRequester, want cid-123", got)
	}
	if _, ok := RequesterFromContext(context.Background()); ok {
		t.Fatal("expected requester to be missing")
	}
	if _, ok := CorrelationIDFromContext(WithCorrelationID(context.Background(), "")); ok {
		t.Fatal("expected empty correlation id to be treated as missing")
	}
}

func TestWithContextLogger(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger := zap.New(core)

	ctx := WithOperation(WithRequester(WithCorrelationID(context.Background(), "cid-789"), "user-1"), "createBatch")
	WithContextLogger(baseLogger, ctx).Info("batch created")
	WithContextLogger(baseLogger, context.Background()).Info("no request context")

	entries := recorded.All()
	if len(entries) != 2 {
		t.Fatalf("entries=%d, want=2", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["correlationId"] != "cid-789" || fields["requestedBy"] != "user-1" || fields["operation"] != "createBatch" {
		t.Fatalf("fields=%v, want correlationId, requestedBy and operation", fields)
	}
	if len(entries[1].ContextMap()) != 0 {
		t.Fatalf("fields=%v, want none without request context", entries[1].ContextMap())
	}
}

func TestWithContextLogger_NilLogger(t *testing.T) {
	t.Parallel()

	if got := WithContextLogger(nil, context.Background()); got != nil {
		t.Fatal("expected nil logger")
	}
}
