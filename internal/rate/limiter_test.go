package rate

import (
	"context"
	"errors"
	"testing"
)

func TestNewTokenBucketDisabled(t *testing.T) {
	tb := NewTokenBucket(0)
	if tb != nil {
		t.Fatalf("expected nil limiter for rps=0")
	}
	if err := tb.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter should not block: %v", err)
	}
}

func TestTokenBucketFirstCallImmediate(t *testing.T) {
	tb := NewTokenBucket(2)
	if err := tb.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitCanceled(t *testing.T) {
	tb := NewTokenBucket(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Wait(ctx, tb, "list threads")
	if err == nil {
		t.Fatalf("expected error on canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitNilLimiter(t *testing.T) {
	if err := Wait(context.Background(), nil, "noop"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
