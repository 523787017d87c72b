package core

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-1")
	if got := RunIDFromContext(ctx); got != "run-1" {
		t.Fatalf("RunIDFromContext=%q", got)
	}
	if got := RunIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty run id, got %q", got)
	}
	if WithRunID(ctx, "") != ctx {
		t.Fatalf("empty run id should leave ctx unchanged")
	}
}

func TestLoggerFallback(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := Logger(context.Background(), fallback); got != fallback {
		t.Fatalf("expected fallback logger")
	}
	if got := Logger(context.Background(), nil); got != slog.Default() {
		t.Fatalf("expected slog.Default()")
	}

	scoped := fallback.With("run_id", "run-1")
	ctx := WithLogger(context.Background(), scoped)
	if got := Logger(ctx, fallback); got != scoped {
		t.Fatalf("expected logger from context")
	}
}
