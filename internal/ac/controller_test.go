package ac

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/lookind/internal/lookin"
)

// simulatedAC applies a submitted status once acceptAfter submissions have
// been made. acceptAfter < 0 never applies anything.
type simulatedAC struct {
	mu          sync.Mutex
	extra       string
	status      lookin.Text
	acceptAfter int
	submits     []string
	polls       int
	pollErr     error
}

func (d *simulatedAC) SendCommand(_ context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submits = append(d.submits, path)
	if d.acceptAfter >= 0 && len(d.submits) >= d.acceptAfter {
		hex := strings.TrimPrefix(path, "ir/ac/"+d.extra)
		d.status = lookin.Text(hex)
	}
	return nil
}

func (d *simulatedAC) RemoteState(_ context.Context, uuid string) (*lookin.RemoteState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.polls++
	if d.pollErr != nil {
		return nil, d.pollErr
	}
	return &lookin.RemoteState{UUID: uuid, Type: "EF", Name: "Bedroom", Extra: d.extra, Status: d.status, LastStatus: "0730"}, nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

func newTestController(dev *simulatedAC, opts ...ControllerOption) (*Controller, *testClock) {
	clock := &testClock{now: time.Unix(1700000000, 0)}
	opts = append([]ControllerOption{WithClock(clock.Now, clock.Sleep)}, opts...)
	return NewController(dev, Config{}, opts...), clock
}

func TestApply_ConfirmedFirstAttempt(t *testing.T) {
	dev := &simulatedAC{extra: "0107", status: "0730", acceptAfter: 1}
	var results []Result
	ctrl, clock := newTestController(dev, WithObserver(func(r Result) { results = append(results, r) }))

	target, err := NewStatus(ModeCool, 24, FanAuto, SwingReserved0)
	require.NoError(t, err)

	start := clock.now
	require.NoError(t, ctrl.Apply(context.Background(), "A1B2", "0107", target))

	assert.Equal(t, []string{"ir/ac/010728A0"}, dev.submits)
	assert.Equal(t, 1, dev.polls)
	assert.Equal(t, 5*time.Second, clock.now.Sub(start))

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Attempts)
	assert.Equal(t, target, results[0].Target)
}

func TestApply_ConfirmedOnThirdSubmission(t *testing.T) {
	dev := &simulatedAC{extra: "0107", status: "0730", acceptAfter: 3}
	ctrl, _ := newTestController(dev)

	target := FromCode(0x3410)
	require.NoError(t, ctrl.Apply(context.Background(), "A1B2", "0107", target))
	assert.Len(t, dev.submits, 3)
	// Six polls per unconfirmed 30s window, then one more.
	assert.Equal(t, 13, dev.polls)
}

func TestApply_NeverConverges(t *testing.T) {
	dev := &simulatedAC{extra: "0107", status: "0730", acceptAfter: -1}
	var results []Result
	ctrl, clock := newTestController(dev, WithObserver(func(r Result) { results = append(results, r) }))

	start := clock.now
	target := FromCode(0x28A0)
	err := ctrl.Apply(context.Background(), "A1B2", "0107", target)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfirmTimeout)
	var te *ConfirmTimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 5, te.Attempts)
	assert.Equal(t, target, te.Target)
	require.NotNil(t, te.Last)
	assert.Equal(t, "0730", te.Last.Hex())
	assert.Contains(t, err.Error(), "after 5 attempts")

	assert.Len(t, dev.submits, 5)
	assert.Equal(t, 30, dev.polls)
	assert.Equal(t, 150*time.Second, clock.now.Sub(start))

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrConfirmTimeout)
}

func TestApply_PollErrorsAreSkipped(t *testing.T) {
	dev := &simulatedAC{extra: "", status: "", acceptAfter: -1, pollErr: errors.New("connection reset")}
	ctrl, _ := newTestController(dev)

	err := ctrl.Apply(context.Background(), "A1B2", "", FromCode(0x1820))
	var te *ConfirmTimeoutError
	require.True(t, errors.As(err, &te))
	assert.Nil(t, te.Last)
	assert.Equal(t, 30, dev.polls)
}

func TestApply_ContextCancelled(t *testing.T) {
	dev := &simulatedAC{extra: "0107", acceptAfter: -1}
	ctrl, _ := newTestController(dev)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ctrl.Apply(ctx, "A1B2", "0107", DefaultStatus())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrConfirmTimeout)
	assert.Empty(t, dev.submits)
}

func TestState_DefaultsWhenMissing(t *testing.T) {
	dev := &simulatedAC{extra: "0107"}
	ctrl, _ := newTestController(dev)

	snap, err := ctrl.State(context.Background(), "A1B2")
	require.NoError(t, err)
	assert.Equal(t, DefaultStatus(), snap.Current)
	assert.Equal(t, "0730", snap.Last.Hex())
	assert.Equal(t, "0107", snap.Extra)
	assert.Equal(t, "Bedroom", snap.Name)

	dev.status = "not hex"
	_, err = ctrl.State(context.Background(), "A1B2")
	assert.Error(t, err)
}

func TestConvenienceSetters(t *testing.T) {
	dev := &simulatedAC{extra: "0107", status: "2AA0", acceptAfter: 1}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	got, err := ctrl.SetTemperature(ctx, "A1B2", 22)
	require.NoError(t, err)
	assert.Equal(t, "26A0", got.Hex())
	assert.Equal(t, "ir/ac/010726A0", dev.submits[len(dev.submits)-1])

	got, err = ctrl.SetMode(ctx, "A1B2", ModeHeat)
	require.NoError(t, err)
	assert.Equal(t, "36A0", got.Hex())

	got, err = ctrl.SetFanSpeed(ctx, "A1B2", FanMinimum)
	require.NoError(t, err)
	assert.Equal(t, "3610", got.Hex())

	got, err = ctrl.SetSwing(ctx, "A1B2", SwingReserved1)
	require.NoError(t, err)
	assert.Equal(t, "3611", got.Hex())

	got, err = ctrl.SetTemperatureFahrenheit(ctx, "A1B2", 75)
	require.NoError(t, err)
	assert.Equal(t, 23, got.TargetCelsius())
}

func TestConvenienceSetters_ValidateBeforeSending(t *testing.T) {
	dev := &simulatedAC{extra: "0107", status: "2AA0", acceptAfter: 1}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	_, err := ctrl.SetTemperature(ctx, "A1B2", 32)
	assert.ErrorIs(t, err, ErrTemperatureRange)
	_, err = ctrl.SetTemperature(ctx, "A1B2", 15)
	assert.ErrorIs(t, err, ErrTemperatureRange)
	_, err = ctrl.SetMode(ctx, "A1B2", OperatingMode(0x0042))
	assert.ErrorIs(t, err, ErrInvalidMode)
	_, err = ctrl.SetTemperatureFahrenheit(ctx, "A1B2", 100)
	assert.ErrorIs(t, err, ErrTemperatureRange)

	assert.Empty(t, dev.submits)
	assert.Zero(t, dev.polls)
}

func TestCommandPath(t *testing.T) {
	assert.Equal(t, "ir/ac/01072A40", CommandPath("0107", FromCode(0x2A40)))
	assert.Equal(t, "ir/ac/07A0", CommandPath("", DefaultStatus()))
}
