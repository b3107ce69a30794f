package confirm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when slept on.
type fakeClock struct {
	now    time.Time
	sleeps int
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps++
	c.now = c.now.Add(d)
	return nil
}

func newLoop(clock *fakeClock) Loop {
	return Loop{Op: "test", Now: clock.Now, Sleep: clock.Sleep}
}

func TestRun_NeverConfirmed(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	submits, checks := 0, 0

	attempts, err := newLoop(clock).Run(context.Background(),
		func(context.Context) error { submits++; return nil },
		func(context.Context) (bool, error) { checks++; return false, nil },
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 5, te.Attempts)
	assert.Equal(t, 5, attempts)
	assert.Equal(t, 5, submits)
	// 30s window polled every 5s, six polls per attempt.
	assert.Equal(t, 30, checks)
	assert.Equal(t, 5*DefaultWindow, clock.now.Sub(time.Unix(1000, 0)))
}

func TestRun_ConfirmedOnSecondAttempt(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	submits, checks := 0, 0

	attempts, err := newLoop(clock).Run(context.Background(),
		func(context.Context) error { submits++; return nil },
		func(context.Context) (bool, error) {
			checks++
			return submits == 2, nil
		},
	)

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 7, checks)
}

func TestRun_ErrorsDoNotAbort(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	checks := 0

	attempts, err := newLoop(clock).Run(context.Background(),
		func(context.Context) error { return errors.New("connection reset") },
		func(context.Context) (bool, error) {
			checks++
			if checks < 3 {
				return false, errors.New("timeout")
			}
			return true, nil
		},
	)

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 3, checks)
}

func TestRun_ContextCancelled(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	ctx, cancel := context.WithCancel(context.Background())

	_, err := newLoop(clock).Run(ctx,
		func(context.Context) error { return nil },
		func(context.Context) (bool, error) {
			cancel()
			return false, nil
		},
	)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestRun_CustomPolicy(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	loop := newLoop(clock)
	loop.Attempts = 2
	loop.Window = 10 * time.Second
	loop.Poll = 2 * time.Second

	checks := 0
	_, err := loop.Run(context.Background(),
		func(context.Context) error { return nil },
		func(context.Context) (bool, error) { checks++; return false, nil },
	)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 10, checks)
}
