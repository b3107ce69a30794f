package learn

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/lookind/internal/ir"
	"github.com/dokzlo13/lookind/internal/lookin"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

type poll struct {
	raw     string
	updated string
	err     error
}

// scriptedSensor replays polls in order, then reports an idle sensor.
type scriptedSensor struct {
	script []poll
	calls  int
	clock  *fakeClock
	step   time.Duration
}

func (s *scriptedSensor) Sensor(_ context.Context, name string) (*lookin.SensorReading, error) {
	if s.clock != nil {
		s.clock.now = s.clock.now.Add(s.step)
	}
	i := s.calls
	s.calls++
	if i >= len(s.script) {
		return &lookin.SensorReading{Updated: "idle"}, nil
	}
	p := s.script[i]
	if p.err != nil {
		return nil, p.err
	}
	return &lookin.SensorReading{Raw: p.raw, Updated: p.updated}, nil
}

func train(n, mark, space int) string {
	parts := make([]string, n)
	for i := range parts {
		if i%2 == 0 {
			parts[i] = strconv.Itoa(mark)
		} else {
			parts[i] = strconv.Itoa(-space)
		}
	}
	return strings.Join(parts, " ")
}

func newTestSession(sensor *scriptedSensor, cfg Config) (*Session, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	if sensor.clock == nil && sensor.step > 0 {
		sensor.clock = clock
	}
	return NewSession(sensor, cfg, WithClock(clock.Now, clock.Sleep)), clock
}

func TestLearn_PicksMostRecurringSignal(t *testing.T) {
	x := train(60, 560, 560)
	y := train(30, 9000, 4500)
	sensor := &scriptedSensor{script: []poll{
		{raw: x, updated: "1"},
		{raw: x, updated: "2"},
		{raw: x, updated: "3"},
		{raw: y, updated: "4"},
	}}
	s, _ := newTestSession(sensor, Config{Period: time.Second, Duration: 20 * time.Second, MaxSignals: 4})

	res, err := s.Learn(context.Background())
	require.NoError(t, err)
	require.True(t, res.Learned())
	assert.Equal(t, 3, res.Matches)
	assert.Equal(t, 4, res.Captured)
	assert.Equal(t, 60, res.Signal.Len())
	assert.Equal(t, x, res.Signal.String())
	assert.Len(t, res.Groups, 1)
	assert.Equal(t, 4, sensor.calls)
}

func TestCapture_DedupesOnUpdated(t *testing.T) {
	x := train(40, 560, 560)
	sensor := &scriptedSensor{script: []poll{
		{raw: x, updated: "100"},
		{raw: x, updated: "100"},
		{raw: "", updated: "101"},
		{raw: x, updated: "100"},
		{raw: x, updated: "102"},
		{raw: x, updated: "102"},
	}}
	s, clock := newTestSession(sensor, Config{Period: time.Second, Duration: 10 * time.Second, MaxSignals: 0})
	start := clock.now

	signals, err := s.Capture(context.Background())
	require.NoError(t, err)
	assert.Len(t, signals, 2)
	// MaxSignals 0 runs the full duration at one poll per second.
	assert.Equal(t, 10, sensor.calls)
	assert.Equal(t, 10*time.Second, clock.now.Sub(start))
}

func TestCapture_StopsAtMaxSignals(t *testing.T) {
	var script []poll
	for i := 0; i < 20; i++ {
		script = append(script, poll{raw: train(20, 500, 500), updated: strconv.Itoa(i)})
	}
	sensor := &scriptedSensor{script: script}
	s, _ := newTestSession(sensor, DefaultConfig())

	signals, err := s.Capture(context.Background())
	require.NoError(t, err)
	assert.Len(t, signals, 10)
	assert.Equal(t, 10, sensor.calls)
}

func TestLearn_PollErrorsEveryTime(t *testing.T) {
	var script []poll
	for i := 0; i < 400; i++ {
		script = append(script, poll{err: errors.New("connection reset by peer")})
	}
	sensor := &scriptedSensor{script: script}
	s, _ := newTestSession(sensor, DefaultConfig())

	res, err := s.Learn(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Learned())
	assert.Zero(t, res.Captured)
	assert.Empty(t, res.Groups)
	assert.Equal(t, 300, sensor.calls)
}

func TestLearn_NoRecurringSignal(t *testing.T) {
	sensor := &scriptedSensor{script: []poll{
		{raw: train(10, 500, 500), updated: "1"},
		{raw: train(20, 500, 500), updated: "2"},
		{raw: train(30, 500, 500), updated: "3"},
	}}
	s, _ := newTestSession(sensor, Config{Period: time.Second, Duration: 5 * time.Second})

	res, err := s.Learn(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Learned())
	assert.Equal(t, 3, res.Captured)
	assert.True(t, res.Signal.IsZero())
}

func TestCapture_SkipsUnparseableReadings(t *testing.T) {
	x := train(20, 500, 500)
	sensor := &scriptedSensor{script: []poll{
		{raw: "garbage 12", updated: "1"},
		{raw: x, updated: "2"},
		{raw: x, updated: "3"},
	}}
	s, _ := newTestSession(sensor, Config{Period: time.Second, Duration: 5 * time.Second, MaxSignals: 2})

	signals, err := s.Capture(context.Background())
	require.NoError(t, err)
	assert.Len(t, signals, 2)
}

func TestCapture_NoPeriodPollsFreely(t *testing.T) {
	sensor := &scriptedSensor{step: 100 * time.Millisecond}
	s, _ := newTestSession(sensor, Config{Period: 0, Duration: 2 * time.Second, MaxSignals: 0})

	signals, err := s.Capture(context.Background())
	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.Equal(t, 20, sensor.calls)
}

func TestCapture_CancelledBeforeAnything(t *testing.T) {
	sensor := &scriptedSensor{}
	s, _ := newTestSession(sensor, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Capture(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.Learn(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLearnFunction(t *testing.T) {
	x := train(40, 560, 1690)
	sensor := &scriptedSensor{script: []poll{
		{raw: x, updated: "1"},
		{raw: x, updated: "2"},
	}}
	s, _ := newTestSession(sensor, Config{Period: time.Second, Duration: 10 * time.Second, MaxSignals: 2})

	fn, res, err := s.LearnFunction(context.Background(), "power", ir.KindSingle)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matches)
	assert.Equal(t, "power", fn.Name())
	assert.Equal(t, ir.KindSingle, fn.Kind())
	require.Len(t, fn.Commands(), 1)
	raw, ok := fn.Commands()[0].(*ir.RawCommand)
	require.True(t, ok)
	assert.Equal(t, x, raw.Signal.String())

	_, _, err = s.LearnFunction(context.Background(), "power", ir.KindToggle)
	assert.ErrorIs(t, err, ErrUnsupported)

	empty := &scriptedSensor{}
	s, _ = newTestSession(empty, Config{Period: time.Second, Duration: 3 * time.Second})
	_, res, err = s.LearnFunction(context.Background(), "power", ir.KindSingle)
	assert.ErrorIs(t, err, ErrNothingLearned)
	require.NotNil(t, res)
	assert.False(t, res.Learned())
}

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession(&scriptedSensor{}, Config{})
	cfg := s.Config()
	assert.Equal(t, "IR", cfg.Sensor)
	assert.Equal(t, 300*time.Second, cfg.Duration)
	assert.Equal(t, 2, cfg.MinMatches)
	assert.Zero(t, cfg.Period)
	assert.Zero(t, cfg.MaxSignals)
}
