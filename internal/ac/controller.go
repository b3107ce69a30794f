package ac

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lookind/internal/confirm"
	"github.com/dokzlo13/lookind/internal/lookin"
	"github.com/dokzlo13/lookind/internal/metrics"
)

// ErrConfirmTimeout is matched by *ConfirmTimeoutError.
var ErrConfirmTimeout = errors.New("ac status not confirmed")

// ConfirmTimeoutError is returned by Apply when the device never reported
// the target status.
type ConfirmTimeoutError struct {
	UUID     string
	Target   Status
	Last     *Status // last status observed, nil if no poll succeeded
	Attempts int
}

func (e *ConfirmTimeoutError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("remote %s: failed to set status %s after %d attempts", e.UUID, e.Target, e.Attempts)
	}
	return fmt.Sprintf("remote %s: failed to set status %s after %d attempts, device reports %s", e.UUID, e.Target, e.Attempts, *e.Last)
}

func (e *ConfirmTimeoutError) Is(target error) bool {
	return target == ErrConfirmTimeout || target == confirm.ErrTimeout
}

// CommandSender issues GET commands/<path>.
type CommandSender interface {
	SendCommand(ctx context.Context, path string) error
}

// StateFetcher reads a remote document.
type StateFetcher interface {
	RemoteState(ctx context.Context, uuid string) (*lookin.RemoteState, error)
}

// Device is what the controller needs from the client.
type Device interface {
	CommandSender
	StateFetcher
}

// Result is reported to the Observer after every Apply.
type Result struct {
	UUID     string
	Target   Status
	Attempts int
	Duration time.Duration
	Err      error
}

// Observer receives Apply outcomes (ledger, MQTT status publisher).
type Observer func(Result)

// Config is the retry policy. Zero values take the confirm defaults.
type Config struct {
	Attempts     int
	Window       time.Duration
	PollInterval time.Duration
}

// Controller changes air conditioner status through the device.
type Controller struct {
	device   Device
	cfg      Config
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	observer Observer
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock replaces time.Now and the poll sleep.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) ControllerOption {
	return func(c *Controller) {
		c.now = now
		c.sleep = sleep
	}
}

// WithObserver registers a callback for Apply outcomes.
func WithObserver(o Observer) ControllerOption {
	return func(c *Controller) {
		c.observer = o
	}
}

// NewController creates a controller.
func NewController(device Device, cfg Config, opts ...ControllerOption) *Controller {
	c := &Controller{
		device: device,
		cfg:    cfg,
		now:    time.Now,
		sleep:  confirm.SleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CommandPath returns the command path that submits status for a remote
// whose codeset is extra.
func CommandPath(extra string, status Status) string {
	return "ir/ac/" + url.PathEscape(extra+status.Hex())
}

// DecodeStatus reads a status word from the device document. A missing
// word means the device has never reported one.
func DecodeStatus(v lookin.Text) (Status, error) {
	if v == "" {
		return DefaultStatus(), nil
	}
	return ParseCode(string(v))
}

// Snapshot is the decoded state of an air conditioner remote.
type Snapshot struct {
	UUID    string
	Name    string
	Extra   string // codeset prefix for command paths
	Current Status
	Last    Status
}

// State reads the current and previous status of a remote.
func (c *Controller) State(ctx context.Context, uuid string) (*Snapshot, error) {
	st, err := c.device.RemoteState(ctx, uuid)
	if err != nil {
		return nil, err
	}
	current, err := DecodeStatus(st.Status)
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", uuid, err)
	}
	last, err := DecodeStatus(st.LastStatus)
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", uuid, err)
	}
	return &Snapshot{UUID: uuid, Name: st.Name, Extra: st.Extra, Current: current, Last: last}, nil
}

// Apply submits target and waits until the device reports it. The device
// accepts the command silently and may ignore it, so each attempt resubmits
// and then polls for the attempt window.
func (c *Controller) Apply(ctx context.Context, uuid, extra string, target Status) error {
	path := CommandPath(extra, target)
	start := c.now()

	var observed *Status
	loop := confirm.Loop{
		Op:       "ac " + uuid,
		Attempts: c.cfg.Attempts,
		Window:   c.cfg.Window,
		Poll:     c.cfg.PollInterval,
		Now:      c.now,
		Sleep:    c.sleep,
	}

	log.Info().Str("uuid", uuid).Str("target", target.String()).Str("code", target.Hex()).Msg("Applying AC status")

	attempts, err := loop.Run(ctx,
		func(ctx context.Context) error {
			metrics.ACApplyAttempts.WithLabelValues(uuid).Inc()
			return c.device.SendCommand(ctx, path)
		},
		func(ctx context.Context) (bool, error) {
			st, err := c.device.RemoteState(ctx, uuid)
			if err != nil {
				return false, err
			}
			got, err := DecodeStatus(st.Status)
			if err != nil {
				return false, err
			}
			observed = &got
			log.Debug().Str("uuid", uuid).Str("status", got.String()).Msg("AC status polled")
			return got.Equal(target), nil
		},
	)

	var te *confirm.TimeoutError
	if errors.As(err, &te) {
		err = &ConfirmTimeoutError{UUID: uuid, Target: target, Last: observed, Attempts: te.Attempts}
	}

	c.record(Result{UUID: uuid, Target: target, Attempts: attempts, Duration: c.now().Sub(start), Err: err})
	if err != nil {
		return err
	}

	log.Info().Str("uuid", uuid).Str("status", target.String()).Int("attempts", attempts).Msg("AC status confirmed")
	return nil
}

func (c *Controller) record(r Result) {
	outcome := "confirmed"
	switch {
	case errors.Is(r.Err, ErrConfirmTimeout):
		outcome = "timeout"
	case r.Err != nil:
		outcome = "error"
	}
	metrics.ACApplyTotal.WithLabelValues(r.UUID, outcome).Inc()
	metrics.ACApplyDuration.WithLabelValues(r.UUID).Observe(r.Duration.Seconds())
	if r.Err == nil {
		metrics.ACStatusCode.WithLabelValues(r.UUID).Set(float64(r.Target.Code()))
		metrics.ACTargetCelsius.WithLabelValues(r.UUID).Set(float64(r.Target.TargetCelsius()))
	}
	if c.observer != nil {
		c.observer(r)
	}
}

// Update fetches the current status, applies mutate and submits the result.
// Nothing is sent when mutate fails.
func (c *Controller) Update(ctx context.Context, uuid string, mutate func(*Status) error) (Status, error) {
	snap, err := c.State(ctx, uuid)
	if err != nil {
		return Status{}, err
	}
	target := snap.Current
	if err := mutate(&target); err != nil {
		return snap.Current, err
	}
	if err := c.Apply(ctx, uuid, snap.Extra, target); err != nil {
		return snap.Current, err
	}
	return target, nil
}

// validated runs fn against a scratch status so bad input is rejected
// before the device is contacted.
func validated(fn func(*Status) error) error {
	var s Status
	return fn(&s)
}

// SetMode switches the operating mode.
func (c *Controller) SetMode(ctx context.Context, uuid string, mode OperatingMode) (Status, error) {
	set := func(s *Status) error { return s.SetMode(mode) }
	if err := validated(set); err != nil {
		return Status{}, err
	}
	return c.Update(ctx, uuid, set)
}

// SetTemperature sets the target temperature in Celsius.
func (c *Controller) SetTemperature(ctx context.Context, uuid string, celsius int) (Status, error) {
	set := func(s *Status) error { return s.SetTargetCelsius(celsius) }
	if err := validated(set); err != nil {
		return Status{}, err
	}
	return c.Update(ctx, uuid, set)
}

// SetTemperatureFahrenheit sets the target temperature in Fahrenheit.
func (c *Controller) SetTemperatureFahrenheit(ctx context.Context, uuid string, fahrenheit float64) (Status, error) {
	set := func(s *Status) error { return s.SetTargetFahrenheit(fahrenheit) }
	if err := validated(set); err != nil {
		return Status{}, err
	}
	return c.Update(ctx, uuid, set)
}

// SetFanSpeed sets the fan speed.
func (c *Controller) SetFanSpeed(ctx context.Context, uuid string, fan FanSpeed) (Status, error) {
	set := func(s *Status) error { return s.SetFanSpeed(fan) }
	if err := validated(set); err != nil {
		return Status{}, err
	}
	return c.Update(ctx, uuid, set)
}

// SetSwing sets the swing mode.
func (c *Controller) SetSwing(ctx context.Context, uuid string, swing SwingMode) (Status, error) {
	set := func(s *Status) error { return s.SetSwing(swing) }
	if err := validated(set); err != nil {
		return Status{}, err
	}
	return c.Update(ctx, uuid, set)
}
