package tools

import (
	"context"
	"testing"
)

func TestGetOrFallsBackWhenUnprovided(t *testing.T) {
	c := NewContainer()
	key := Dep[int]("unwired")
	if got := GetOr(c, context.Background(), key, 42); got != 42 {
		t.Fatalf("expected fallback 42, got %d", got)
	}
}

func TestGetOrFallsBackOnProviderError(t *testing.T) {
	c := NewContainer()
	key := Dep[int]("errors_out")
	Provide(c, key, func(ctx context.Context) (int, error) {
		return 0, errSentinel
	})
	if got := GetOr(c, context.Background(), key, 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}

func TestGetOrUsesProvidedValue(t *testing.T) {
	c := NewContainer()
	key := Dep[int]("wired")
	Provide(c, key, func(ctx context.Context) (int, error) { return 99, nil })
	if got := GetOr(c, context.Background(), key, 7); got != 99 {
		t.Fatalf("expected provided value 99, got %d", got)
	}
}

func TestWithCallIDRoundTrip(t *testing.T) {
	ctx := WithCallID(context.Background(), " c1 ")
	if got := CallID(ctx); got != "c1" {
		t.Fatalf("expected trimmed call id %q, got %q", "c1", got)
	}
	if got := CallID(context.Background()); got != "" {
		t.Fatalf("expected empty call id on a context without one, got %q", got)
	}
}

type sentinelErr struct{}

func (sentinelErr) Error() string { return "sentinel" }

var errSentinel = sentinelErr{}
