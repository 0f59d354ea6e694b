package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunWithRetriesRecovers(t *testing.T) {
	s := New(Options{Interval: time.Hour, MaxRetries: 2, RetryDelay: time.Millisecond}, zerolog.Nop())

	calls := 0
	err := s.runWithRetries(context.Background(), func(ctx context.Context, bucket time.Time) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, time.Now())

	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRunWithRetriesExhausted(t *testing.T) {
	s := New(Options{Interval: time.Hour, MaxRetries: 2, RetryDelay: time.Millisecond}, zerolog.Nop())

	calls := 0
	boom := errors.New("boom")
	err := s.runWithRetries(context.Background(), func(ctx context.Context, bucket time.Time) error {
		calls++
		return boom
	}, time.Now())

	if !errors.Is(err, boom) {
		t.Fatalf("expected final error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected MaxRetries+1 attempts, got %d", calls)
	}
}

func TestRunWithRetriesNoRetryOnSuccess(t *testing.T) {
	s := New(Options{Interval: time.Hour, MaxRetries: 3, RetryDelay: time.Millisecond}, zerolog.Nop())

	calls := 0
	err := s.runWithRetries(context.Background(), func(ctx context.Context, bucket time.Time) error {
		calls++
		return nil
	}, time.Now())
	if err != nil || calls != 1 {
		t.Fatalf("no-op tick must run once, calls=%d err=%v", calls, err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond, AlignToStart: false}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	ticks := 0
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, bucket time.Time) error {
			ticks++
			if ticks >= 2 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
