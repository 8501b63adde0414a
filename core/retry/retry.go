// Package retry adapts cenkalti/backoff to remote calls that may be rate
// limited.
//
// A Policy is the jitter-free exponential schedule; IsTransient decides
// whether an error is worth another attempt at all. Errors can opt in by
// implementing Retryable() bool, and can carry a server-mandated wait by
// implementing RetryAfter() time.Duration or by wrapping
// *backoff.RetryAfterError.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy configures backoff. The zero value is replaced by DefaultPolicy's
// values field by field.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `mapstructure:"max_attempts" default:"5"`
	// BaseDelay is the wait after the first failed attempt.
	BaseDelay time.Duration `mapstructure:"base_delay" default:"1s"`
	// Factor multiplies the wait after every further failure.
	Factor float64 `mapstructure:"factor" default:"2"`
	// MaxDelay caps the computed backoff. Server-specified waits are not capped.
	MaxDelay time.Duration `mapstructure:"max_delay" default:"60s"`
	// ServerWaitMargin is added to a server-specified wait.
	ServerWaitMargin time.Duration `mapstructure:"server_wait_margin" default:"1s"`
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:      5,
		BaseDelay:        time.Second,
		Factor:           2,
		MaxDelay:         60 * time.Second,
		ServerWaitMargin: time.Second,
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.Factor < 1 {
		p.Factor = def.Factor
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.ServerWaitMargin < 0 {
		p.ServerWaitMargin = 0
	}
	return p
}

// Attempts returns the effective attempt budget.
func (p Policy) Attempts() int {
	return p.normalized().MaxAttempts
}

// schedule returns the policy as a backoff.ExponentialBackOff without
// jitter, ready for the wait after the first failure.
func (p Policy) schedule() *backoff.ExponentialBackOff {
	p = p.normalized()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Factor
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// Delay returns min(BaseDelay * Factor^(attempt-1), MaxDelay) for the wait
// following failed attempt number attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	b := p.schedule()
	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// RetryAfter extracts a server-specified wait from err.
func RetryAfter(err error) (time.Duration, bool) {
	var ra interface{ RetryAfter() time.Duration }
	if errors.As(err, &ra) {
		if d := ra.RetryAfter(); d > 0 {
			return d, true
		}
	}
	var bra *backoff.RetryAfterError
	if errors.As(err, &bra) && bra.Duration > 0 {
		return bra.Duration, true
	}
	return 0, false
}

// IsTransient reports whether err is worth retrying: timeouts, network
// failures and errors that declare themselves retryable.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return false
	}
	var bra *backoff.RetryAfterError
	if errors.As(err, &bra) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// Sleeper waits for d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

// Wait is the real Sleeper.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExhaustedError is returned by Do when every attempt failed with a
// transient error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Event describes a failed attempt that is about to be retried.
type Event struct {
	Attempt int
	Err     error
	Delay   time.Duration
	// ServerWait is set when Delay was dictated by the server.
	ServerWait bool
}

// Retrier runs operations under a Policy.
type Retrier struct {
	Policy Policy
	// Sleep defaults to Wait.
	Sleep Sleeper
	// OnRetry, when set, is called before every backoff wait.
	OnRetry func(Event)
}

// Do calls fn until it succeeds, fails with a non-transient error, or the
// attempt budget is spent. A non-transient error is returned unchanged;
// exhaustion yields *ExhaustedError. Cancellation during a backoff wait
// returns the context error wrapped together with the last failure.
//
// backoff.Retry drives the loop. The waits themselves go through Sleep so
// that callers can observe and shorten them.
func (r Retrier) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	p := r.Policy.normalized()
	sleep := r.Sleep
	if sleep == nil {
		sleep = Wait
	}
	schedule := p.schedule()

	var (
		attempt int
		wait    time.Duration
		last    error
		settled bool
	)
	stop := func(err error) (struct{}, error) {
		settled = true
		return struct{}{}, backoff.Permanent(err)
	}
	operation := func() (struct{}, error) {
		if attempt > 0 {
			if err := sleep(ctx, wait); err != nil {
				return stop(fmt.Errorf("%w (last error: %v)", err, last))
			}
		}
		if err := ctx.Err(); err != nil {
			if last != nil {
				return stop(fmt.Errorf("%w (last error: %v)", err, last))
			}
			return stop(err)
		}

		attempt++
		last = fn(ctx, attempt)
		switch {
		case last == nil:
			settled = true
			return struct{}{}, nil
		case !IsTransient(last) || ctx.Err() != nil:
			return stop(last)
		case attempt >= p.MaxAttempts:
			return stop(&ExhaustedError{Attempts: attempt, Err: last})
		}

		// The schedule advances on every failure so that a server wait
		// does not shift the exponential steps that follow it.
		wait = schedule.NextBackOff()
		serverWait, fromServer := RetryAfter(last)
		if fromServer {
			wait = serverWait + p.ServerWaitMargin
		}
		if r.OnRetry != nil {
			r.OnRetry(Event{Attempt: attempt, Err: last, Delay: wait, ServerWait: fromServer})
		}
		return struct{}{}, last
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil && !settled && last != nil {
		// backoff.Retry saw the cancellation between two attempts.
		return fmt.Errorf("%w (last error: %v)", err, last)
	}
	return err
}
