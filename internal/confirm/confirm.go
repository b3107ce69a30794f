// Package confirm runs the device's submit-then-poll protocol: a write is
// accepted silently and only shows up in a later read, sometimes never.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrTimeout is returned when no attempt was confirmed.
var ErrTimeout = errors.New("not confirmed")

// Defaults used by the device for status and settings changes.
const (
	DefaultAttempts = 5
	DefaultWindow   = 30 * time.Second
	DefaultPoll     = 5 * time.Second
)

// TimeoutError reports how many attempts were made.
type TimeoutError struct {
	Op       string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %v after %d attempts", e.Op, ErrTimeout, e.Attempts)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// Loop holds the retry policy. Zero fields take the defaults above.
type Loop struct {
	Op       string
	Attempts int
	Window   time.Duration
	Poll     time.Duration

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Submit sends the change. Check reports whether the device shows it.
type (
	Submit func(ctx context.Context) error
	Check  func(ctx context.Context) (bool, error)
)

func (l Loop) withDefaults() Loop {
	if l.Attempts <= 0 {
		l.Attempts = DefaultAttempts
	}
	if l.Window <= 0 {
		l.Window = DefaultWindow
	}
	if l.Poll <= 0 {
		l.Poll = DefaultPoll
	}
	if l.Now == nil {
		l.Now = time.Now
	}
	if l.Sleep == nil {
		l.Sleep = SleepContext
	}
	if l.Op == "" {
		l.Op = "confirm"
	}
	return l
}

// Run submits and polls until check reports true. Each attempt resubmits and
// then polls every Poll until Window has elapsed. Submit and check errors are
// logged and do not end the attempt. Returns the number of attempts used.
func (l Loop) Run(ctx context.Context, submit Submit, check Check) (int, error) {
	l = l.withDefaults()

	for attempt := 1; attempt <= l.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		if err := submit(ctx); err != nil {
			log.Warn().Err(err).Str("op", l.Op).Int("attempt", attempt).Msg("Submit failed, polling anyway")
		}

		deadline := l.Now().Add(l.Window)
		for l.Now().Before(deadline) {
			if err := l.Sleep(ctx, l.Poll); err != nil {
				return attempt, err
			}
			ok, err := check(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return attempt, ctx.Err()
				}
				log.Warn().Err(err).Str("op", l.Op).Int("attempt", attempt).Msg("Confirmation poll failed")
				continue
			}
			if ok {
				return attempt, nil
			}
		}

		log.Warn().
			Str("op", l.Op).
			Int("attempt", attempt).
			Int("of", l.Attempts).
			Msg("Attempt timed out")
	}

	return l.Attempts, &TimeoutError{Op: l.Op, Attempts: l.Attempts}
}

// SleepContext sleeps for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
