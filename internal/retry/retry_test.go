package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Config{MaxRetries: 3}, func() (string, error) {
		calls++
		return "success", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("expected 'success', got %q", result)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Config{
		MaxRetries: 4,
		Backoff:    Constant(time.Millisecond),
	}, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, io.ErrUnexpectedEOF
		}
		return 42, nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != 42 {
		t.Errorf("expected 42, got %d", result)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_AttemptBound(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 2, 5} {
		calls := 0
		transientErr := &timeoutError{}

		_, err := Do(context.Background(), Config{
			MaxRetries: maxRetries,
			Backoff:    Constant(0),
		}, func() (string, error) {
			calls++
			return "", transientErr
		})

		if calls != maxRetries+1 {
			t.Errorf("MaxRetries=%d: expected %d calls, got %d", maxRetries, maxRetries+1, calls)
		}
		if err != transientErr {
			t.Errorf("MaxRetries=%d: expected the original error value, got %v", maxRetries, err)
		}
	}
}

func TestDo_NegativeMaxRetries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{MaxRetries: -3}, func() (string, error) {
		calls++
		return "", io.EOF
	})

	if calls != 1 {
		t.Errorf("expected 1 call when MaxRetries<0, got %d", calls)
	}
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	permanent := errors.New("malformed uri")

	_, err := Do(context.Background(), Config{
		MaxRetries: 5,
		Backoff:    Constant(time.Millisecond),
	}, func() (string, error) {
		calls++
		return "", permanent
	})

	if err != permanent {
		t.Errorf("expected permanent error unchanged, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_CustomRetryable(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{
		MaxRetries: 2,
		Backoff:    Constant(0),
		Retryable:  func(error) bool { return true },
	}, func() (string, error) {
		calls++
		return "", errors.New("anything")
	})

	if err == nil {
		t.Error("expected error")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, Config{
		MaxRetries: 5,
		Backoff:    Constant(time.Second),
	}, func() (string, error) {
		calls++
		return "", io.EOF
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestDo_ContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	retried := 0
	_, err := Do(ctx, Config{
		MaxRetries: 3,
		Backoff:    Constant(time.Millisecond),
		OnRetry:    func(int, time.Duration, error) { retried++ },
	}, func() (string, error) {
		calls++
		return "", io.EOF
	})

	// fn's own error comes back, not ctx.Err()
	if err != io.EOF {
		t.Errorf("expected io.EOF unchanged, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if retried != 0 {
		t.Errorf("OnRetry called %d times for a done context", retried)
	}
}

func TestDo_ExpiredDeadlineNotRetried(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	timeout := &net.OpError{Op: "dial", Net: "tcp", Err: os.ErrDeadlineExceeded}
	calls := 0
	_, err := Do(ctx, Config{
		MaxRetries: 3,
		Backoff:    Constant(time.Millisecond),
		Logger:     zap.New(core),
	}, func() (string, error) {
		calls++
		return "", timeout
	})

	if err != timeout {
		t.Errorf("expected the operation error unchanged, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if logs.Len() != 0 {
		t.Errorf("expected no retry warnings, got %d", logs.Len())
	}
}

func TestDo_CancellationIsNotRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{MaxRetries: 3}, func() (string, error) {
		calls++
		return "", context.Canceled
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_LogsWarningPerRetry(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	_, _ = Do(context.Background(), Config{
		MaxRetries: 2,
		Backoff:    Constant(0),
		Logger:     zap.New(core),
	}, func() (string, error) {
		return "", io.ErrUnexpectedEOF
	})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(entries))
	}

	for i, entry := range entries {
		fields := entry.ContextMap()
		if fields["attempt"] != int64(i) {
			t.Errorf("warning %d: attempt = %v", i, fields["attempt"])
		}
		if fields["kind"] != "eof" {
			t.Errorf("warning %d: kind = %v", i, fields["kind"])
		}
		if _, ok := fields["delay"]; !ok {
			t.Errorf("warning %d: missing delay", i)
		}
		if _, ok := fields["error"]; !ok {
			t.Errorf("warning %d: missing error", i)
		}
	}
}

func TestDo_OnRetry(t *testing.T) {
	var attempts []int
	var delays []time.Duration

	_, _ = Do(context.Background(), Config{
		MaxRetries: 3,
		Backoff:    Linear(time.Microsecond),
		OnRetry: func(attempt int, delay time.Duration, err error) {
			attempts = append(attempts, attempt)
			delays = append(delays, delay)
		},
	}, func() (string, error) {
		return "", io.EOF
	})

	if len(attempts) != 3 {
		t.Fatalf("expected 3 OnRetry calls, got %d", len(attempts))
	}
	for i := range attempts {
		if attempts[i] != i {
			t.Errorf("OnRetry %d: attempt = %d", i, attempts[i])
		}
		if delays[i] != time.Duration(i+1)*time.Microsecond {
			t.Errorf("OnRetry %d: delay = %v", i, delays[i])
		}
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := Exponential(100 * time.Millisecond)

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1600 * time.Millisecond},
	}

	for _, tc := range tests {
		got := backoff(tc.attempt)
		if got != tc.expected {
			t.Errorf("Exponential(100ms)(%d) = %v, want %v", tc.attempt, got, tc.expected)
		}
	}
}

func TestExponentialBackoff_Saturates(t *testing.T) {
	got := Exponential(time.Second)(200)
	if got <= 0 {
		t.Errorf("expected saturation instead of overflow, got %v", got)
	}
}

func TestJitteredBackoff_Range(t *testing.T) {
	backoff := Jittered(DefaultBaseDelay, DefaultMaxJitter)

	for attempt := 0; attempt < 6; attempt++ {
		low := DefaultBaseDelay << attempt
		high := low + DefaultMaxJitter

		for i := 0; i < 200; i++ {
			got := backoff(attempt)
			if got < low || got >= high {
				t.Fatalf("attempt %d: delay %v outside [%v, %v)", attempt, got, low, high)
			}
		}
	}
}

func TestJitteredBackoff_NonDecreasingInExpectation(t *testing.T) {
	backoff := Jittered(DefaultBaseDelay, DefaultMaxJitter)

	var prev time.Duration
	for attempt := 0; attempt < 6; attempt++ {
		var sum time.Duration
		for i := 0; i < 100; i++ {
			sum += backoff(attempt)
		}
		mean := sum / 100
		if mean < prev {
			t.Errorf("attempt %d: mean %v below previous %v", attempt, mean, prev)
		}
		prev = mean
	}
}

func TestJitteredBackoff_NoJitter(t *testing.T) {
	if got := Jittered(time.Second, 0)(1); got != 2*time.Second {
		t.Errorf("expected 2s without jitter, got %v", got)
	}
}

func TestLinearBackoff(t *testing.T) {
	backoff := Linear(2 * time.Second)

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 6 * time.Second},
	}

	for _, tc := range tests {
		got := backoff(tc.attempt)
		if got != tc.expected {
			t.Errorf("Linear(2s)(%d) = %v, want %v", tc.attempt, got, tc.expected)
		}
	}
}

func TestConstantBackoff(t *testing.T) {
	backoff := Constant(5 * time.Second)
	for attempt := 0; attempt < 4; attempt++ {
		if got := backoff(attempt); got != 5*time.Second {
			t.Errorf("Constant(5s)(%d) = %v", attempt, got)
		}
	}
}

func TestDo_DefaultBackoff(t *testing.T) {
	calls := 0
	start := time.Now()

	_, err := Do(context.Background(), Config{MaxRetries: 1}, func() (string, error) {
		calls++
		return "", io.EOF
	})

	elapsed := time.Since(start)

	if err == nil {
		t.Error("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if elapsed < DefaultBaseDelay {
		t.Errorf("expected at least %v delay, got %v", DefaultBaseDelay, elapsed)
	}
}

func TestDo_VoidFunction(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{}, func() (struct{}, error) {
		calls++
		return struct{}{}, nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_NonRetryableError(t *testing.T) {
	calls := 0
	originalErr := errors.New("client error")

	_, err := Do(context.Background(), Config{
		MaxRetries: 5,
		Backoff:    Constant(time.Millisecond),
	}, func() (string, error) {
		calls++
		if calls == 2 {
			return "", NonRetryable(originalErr)
		}
		return "", io.EOF
	})

	if err != originalErr {
		t.Errorf("expected original error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls (should stop on non-retryable), got %d", calls)
	}
}

func TestNonRetryable_Nil(t *testing.T) {
	if err := NonRetryable(nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestNonRetryableError_Unwrap(t *testing.T) {
	originalErr := io.EOF
	wrapped := NonRetryable(originalErr)

	if !errors.Is(wrapped, originalErr) {
		t.Error("Unwrap should return original error")
	}
	if IsTransient(wrapped) {
		t.Error("NonRetryable must override the transient classification")
	}
}
