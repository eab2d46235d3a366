package queue

import (
	"context"
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{3, 16 * time.Second},
		{4, 30 * time.Second},
		{40, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffDelay(tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDialWithRetry_SingleAttemptFails(t *testing.T) {
	t.Parallel()

	// amqp rejects a non-amqp scheme before touching the network
	_, err := DialWithRetry(context.Background(), "http://localhost:1", 1, nil)
	if err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestDialWithRetry_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := DialWithRetry(ctx, "http://localhost:1", 5, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > time.Second {
		t.Error("retry loop did not stop on cancelled context")
	}
}
