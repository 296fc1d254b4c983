package logger_test

import (
	"context"
	"testing"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
)

func TestWithContext_FromContext_RoundTrip(t *testing.T) {
	t.Parallel()

	l := mustTestLogger(t)
	ctx := logger.WithContext(context.Background(), l)

	if got := logger.FromContext(ctx, nil); got != l {
		t.Errorf("FromContext returned %v, want the stored logger", got)
	}
}

func TestFromContext_UsesFallback(t *testing.T) {
	t.Parallel()

	fallback := mustTestLogger(t)
	if got := logger.FromContext(context.Background(), fallback); got != fallback {
		t.Error("FromContext did not return the fallback logger")
	}
}

func TestFromContext_NilFallbackIsUsable(t *testing.T) {
	t.Parallel()

	got := logger.FromContext(context.Background(), nil)
	if got == nil {
		t.Fatal("FromContext returned nil")
	}
	got.Warn("must not panic", logger.String("key", "value"))
}

func TestWith_ReturnsDistinctLogger(t *testing.T) {
	t.Parallel()

	base := mustTestLogger(t)
	enriched := base.With(logger.SiteID("site-1"))
	if enriched == base {
		t.Error("With() returned the same instance")
	}
	enriched.Info("carries site_id")
}

func mustTestLogger(t *testing.T) logger.Logger {
	t.Helper()

	l, err := logger.New(logger.Config{Level: "warn", OutputPaths: []string{"stderr"}})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return l
}
