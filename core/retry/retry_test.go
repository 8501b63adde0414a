package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flood struct{ wait time.Duration }

func (f flood) Error() string             { return fmt.Sprintf("flood wait %s", f.wait) }
func (f flood) Retryable() bool           { return true }
func (f flood) RetryAfter() time.Duration { return f.wait }

type rejected struct{}

func (rejected) Error() string   { return "bad request" }
func (rejected) Retryable() bool { return false }

type recorder struct {
	waits []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func TestDelay(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second, Factor: 2, MaxDelay: 5 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{60, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.want, p.Delay(tt.attempt))
		})
	}
}

func TestZeroPolicyUsesDefaults(t *testing.T) {
	var p Policy
	assert.Equal(t, 5, p.Attempts())
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 60*time.Second, p.Delay(10))
}

func TestDoHonorsServerWait(t *testing.T) {
	rec := &recorder{}
	var events []Event
	r := Retrier{Policy: DefaultPolicy(), Sleep: rec.sleep, OnRetry: func(e Event) { events = append(events, e) }}

	failures := []error{
		context.DeadlineExceeded,
		flood{wait: 30 * time.Second},
		context.DeadlineExceeded,
		flood{wait: 300 * time.Second},
	}
	calls := 0
	err := r.Do(context.Background(), func(context.Context, int) error {
		calls++
		if calls <= len(failures) {
			return failures[calls-1]
		}
		return nil
	})
	require.NoError(t, err)
	// Server waits get the margin and are not capped by MaxDelay; the
	// exponential steps keep counting underneath them.
	assert.Equal(t, []time.Duration{time.Second, 31 * time.Second, 4 * time.Second, 301 * time.Second}, rec.waits)
	require.Len(t, events, 4)
	assert.Equal(t, []bool{false, true, false, true},
		[]bool{events[0].ServerWait, events[1].ServerWait, events[2].ServerWait, events[3].ServerWait})
}

func TestBackoffLibraryErrors(t *testing.T) {
	wait, ok := RetryAfter(fmt.Errorf("send: %w", backoff.RetryAfter(3)))
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, wait)
	assert.True(t, IsTransient(backoff.RetryAfter(3)))
	assert.False(t, IsTransient(backoff.Permanent(context.DeadlineExceeded)))

	_, ok = RetryAfter(errors.New("x"))
	assert.False(t, ok)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), true},
		{"flood", flood{wait: time.Second}, true},
		{"declared permanent", fmt.Errorf("wrap: %w", rejected{}), false},
		{"net op", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.telegram.org"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	rec := &recorder{}
	var events []Event
	r := Retrier{Policy: DefaultPolicy(), Sleep: rec.sleep, OnRetry: func(e Event) { events = append(events, e) }}

	calls := 0
	err := r.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if calls < 3 {
			return context.DeadlineExceeded
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.waits)
	require.Len(t, events, 2)
	assert.False(t, events[0].ServerWait)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	rec := &recorder{}
	r := Retrier{Sleep: rec.sleep}
	calls := 0
	err := r.Do(context.Background(), func(context.Context, int) error {
		calls++
		return rejected{}
	})
	assert.Equal(t, rejected{}, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
}

func TestDoExhausts(t *testing.T) {
	rec := &recorder{}
	r := Retrier{Policy: Policy{MaxAttempts: 3}, Sleep: rec.sleep}
	calls := 0
	err := r.Do(context.Background(), func(context.Context, int) error {
		calls++
		return flood{wait: 7 * time.Second}
	})
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{7 * time.Second, 7 * time.Second}, rec.waits)
}

func TestDoCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := Retrier{Sleep: func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}}
	calls := 0
	err := r.Do(ctx, func(context.Context, int) error {
		calls++
		return context.DeadlineExceeded
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWait(t *testing.T) {
	require.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}

func TestDoCancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retrier{}.Do(ctx, func(context.Context, int) error {
		calls++
		return nil
	})
	assert.Equal(t, context.Canceled, err)
	assert.Zero(t, calls)
}
