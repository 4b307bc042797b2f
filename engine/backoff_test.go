package engine

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	b := DefaultBackoff(30 * time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 5 * time.Second},
		{attempt: 2, want: 5 * time.Second},
		{attempt: 3, want: 30 * time.Second},
		{attempt: 10, want: 30 * time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestDefaultBackoff_ZeroSteady(t *testing.T) {
	b := DefaultBackoff(0)
	if b.SteadyDelay != DefaultReconnectDelay {
		t.Errorf("SteadyDelay = %s, want %s", b.SteadyDelay, DefaultReconnectDelay)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if sleep(ctx, time.Minute) {
		t.Error("sleep should report false on a cancelled context")
	}
	if time.Since(start) > time.Second {
		t.Error("sleep did not return promptly on cancellation")
	}
}

func TestSleep_Elapses(t *testing.T) {
	if !sleep(context.Background(), time.Millisecond) {
		t.Error("sleep should report true when the delay elapses")
	}
}
