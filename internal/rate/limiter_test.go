package rate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenBucketAllowsBurst(t *testing.T) {
	tb := NewTokenBucket(5)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 5; i++ {
		if err := tb.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
}

func TestTokenBucketCanceled(t *testing.T) {
	tb := NewTokenBucket(1)
	if err := tb.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tb.Wait(ctx); err == nil {
		t.Fatalf("expected error on canceled context")
	}
}

func TestNewTokenBucketClampsRate(t *testing.T) {
	tb := NewTokenBucket(0)
	if err := tb.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestUnlimited(t *testing.T) {
	if err := (Unlimited{}).Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (Unlimited{}).Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
