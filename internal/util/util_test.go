package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"stockticker/internal/config"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, 0, func(context.Context) error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, 0, func(context.Context) error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := Retry(ctx, 5, time.Hour, 0, func(context.Context) error {
		attempts++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times, want 1", attempts)
	}
}

func TestRateLimiterBurst(t *testing.T) {
	rl := NewBurstRateLimiter(60, 2)
	base := time.Now()
	rl.now = func() time.Time { return base }
	rl.lastTime = base

	if !rl.Allow() || !rl.Allow() {
		t.Fatal("first two Allow() calls should succeed")
	}
	if rl.Allow() {
		t.Fatal("third Allow() should be throttled")
	}

	// One token per second at 60/min.
	rl.now = func() time.Time { return base.Add(time.Second) }
	if !rl.Allow() {
		t.Error("Allow() after refill should succeed")
	}
}

func TestRateLimiterWaitCancelled(t *testing.T) {
	rl := NewRateLimiter(1)
	rl.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerToFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.Logging{Level: "info", Format: "text"})
	logger.Debug("hidden")
	logger.Info("cycle applied", "symbols", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record written at info level")
	}
	if !strings.Contains(out, "symbols=3") {
		t.Errorf("text output = %q, want key=value pairs", out)
	}

	buf.Reset()
	NewLoggerTo(&buf, config.Logging{Level: "info"}).Info("x", "symbols", 3)
	if !strings.Contains(buf.String(), `"symbols":3`) {
		t.Errorf("json output = %q, want JSON attributes", buf.String())
	}
}

func TestRetryPermanent(t *testing.T) {
	inner := errors.New("bad config")
	attempts := 0

	err := Retry(context.Background(), 5, 0, 0, func(context.Context) error {
		attempts++
		return fmt.Errorf("fetching: %w", Permanent(inner))
	})
	if !errors.Is(err, inner) {
		t.Errorf("Retry error = %v, want %v", err, inner)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times, want 1", attempts)
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) != nil")
	}
}
