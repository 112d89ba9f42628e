package app

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConnectRetry_Delay(t *testing.T) {
	r := connectRetry{Attempts: 10, Initial: 500 * time.Millisecond, Max: 8 * time.Second}

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{5, 8 * time.Second},
		{9, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := r.delay(tt.failures); got != tt.want {
			t.Errorf("delay(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

func TestConnectRetry_SucceedsAfterFailures(t *testing.T) {
	r := connectRetry{Attempts: 3, Initial: time.Millisecond, Max: time.Millisecond}

	calls := 0
	err := r.ping(context.Background(), "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestConnectRetry_ReturnsLastError(t *testing.T) {
	r := connectRetry{Attempts: 2, Initial: time.Millisecond, Max: time.Millisecond}
	want := errors.New("still down")

	calls := 0
	err := r.ping(context.Background(), "test", func(context.Context) error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestConnectRetry_StopsOnContextCancel(t *testing.T) {
	r := connectRetry{Attempts: 5, Initial: time.Hour, Max: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	err := r.ping(ctx, "test", func(context.Context) error {
		cancel()
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDefaultConnectRetry_AtLeastOneAttempt(t *testing.T) {
	if got := defaultConnectRetry(0).Attempts; got != 1 {
		t.Errorf("Attempts = %d, want 1", got)
	}
}
