package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gainaura/aura/internal/apperr"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 3}, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesUpToMax(t *testing.T) {
	calls := 0
	failure := errors.New("boom")
	err := Do(context.Background(), Config{MaxAttempts: 3, Backoff: time.Millisecond}, func() error {
		calls++
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected final error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Transient(apperr.Retryable), func() error {
		calls++
		return apperr.New(apperr.KindExtraction, "permanent")
	})
	if !apperr.IsKind(err, apperr.KindExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call for a permanent error, got %d", calls)
	}
}

func TestTransient_ExactlyOneRetry(t *testing.T) {
	cfg := Transient(apperr.Retryable)
	if cfg.MaxAttempts != 2 {
		t.Errorf("MaxAttempts = %d, expected 2", cfg.MaxAttempts)
	}
	if cfg.Backoff != 2*time.Second {
		t.Errorf("Backoff = %v, expected 2s", cfg.Backoff)
	}
}

func TestDo_HonorsCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, Config{MaxAttempts: 2, Backoff: 10 * time.Second}, func() error {
			calls++
			return errors.New("transient")
		})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected no second attempt, got %d calls", calls)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := Config{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
		OnRetry:     func(attempt int, err error) { attempts = append(attempts, attempt) },
	}
	_ = Do(context.Background(), cfg, func() error { return errors.New("x") })

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v, expected [1 2]", attempts)
	}
}
