// Package learn captures IR signals from the device sensor while the user
// presses a button on the original remote, and picks the signal that
// recurs most often.
package learn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/lookind/internal/confirm"
	"github.com/dokzlo13/lookind/internal/ir"
	"github.com/dokzlo13/lookind/internal/lookin"
	"github.com/dokzlo13/lookind/internal/metrics"
)

// ErrNothingLearned is returned by LearnFunction when no signal recurred.
var ErrNothingLearned = errors.New("no recurring signal captured")

// ErrUnsupported is returned for function kinds that cannot be learned.
var ErrUnsupported = ir.ErrUnsupported

// SensorReader reads one sensor document.
type SensorReader interface {
	Sensor(ctx context.Context, name string) (*lookin.SensorReading, error)
}

// Config controls a capture.
type Config struct {
	Sensor     string
	Period     time.Duration // time between polls, <= 0 polls as fast as possible
	Duration   time.Duration
	MaxSignals int // stop after this many distinct captures, 0 runs the full duration
	MinMatches int
}

// DefaultConfig polls the IR sensor once a second for up to five minutes
// or ten captures.
func DefaultConfig() Config {
	return Config{
		Sensor:     "IR",
		Period:     time.Second,
		Duration:   300 * time.Second,
		MaxSignals: 10,
		MinMatches: ir.DefaultMinMatches,
	}
}

// Session runs captures against one device.
type Session struct {
	reader  SensorReader
	cfg     Config
	matcher ir.Matcher
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now and the pacing sleep.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Session) {
		s.now = now
		s.sleep = sleep
	}
}

// WithMatcher replaces the similarity tolerances.
func WithMatcher(m ir.Matcher) Option {
	return func(s *Session) {
		s.matcher = m
	}
}

// NewSession creates a session. Empty config fields take DefaultConfig
// values, except Period and MaxSignals where zero is meaningful.
func NewSession(reader SensorReader, cfg Config, opts ...Option) *Session {
	def := DefaultConfig()
	if cfg.Sensor == "" {
		cfg.Sensor = def.Sensor
	}
	if cfg.Duration <= 0 {
		cfg.Duration = def.Duration
	}
	if cfg.MinMatches <= 0 {
		cfg.MinMatches = def.MinMatches
	}

	s := &Session{
		reader:  reader,
		cfg:     cfg,
		matcher: ir.DefaultMatcher,
		now:     time.Now,
		sleep:   confirm.SleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Capture polls the sensor and returns the distinct non-empty readings in
// the order seen. A reading is distinct when its Updated stamp differs from
// the previously kept one. Poll failures are logged and counted, they do not
// end the capture. The error is non-nil only when ctx ended the capture
// before anything was seen.
func (s *Session) Capture(ctx context.Context) ([]ir.RawSignal, error) {
	var limiter *rate.Limiter
	if s.cfg.Period > 0 {
		limiter = rate.NewLimiter(rate.Every(s.cfg.Period), 1)
	}

	var (
		signals     []ir.RawSignal
		lastUpdated string
		kept        bool
		polls       int
		missed      int
	)

	log.Info().
		Str("sensor", s.cfg.Sensor).
		Dur("duration", s.cfg.Duration).
		Int("max_signals", s.cfg.MaxSignals).
		Msg("Capture started")

	deadline := s.now().Add(s.cfg.Duration)
	for s.now().Before(deadline) {
		if s.cfg.MaxSignals > 0 && len(signals) >= s.cfg.MaxSignals {
			break
		}

		if limiter != nil {
			now := s.now()
			if delay := limiter.ReserveN(now, 1).DelayFrom(now); delay > 0 {
				if err := s.sleep(ctx, delay); err != nil {
					break
				}
				if !s.now().Before(deadline) {
					break
				}
			}
		}
		if ctx.Err() != nil {
			break
		}

		polls++
		reading, err := s.reader.Sensor(ctx, s.cfg.Sensor)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			missed++
			metrics.LearnMissedPolls.Inc()
			log.Warn().Err(err).Str("sensor", s.cfg.Sensor).Msg("Sensor poll failed, device may be restarting")
			continue
		}
		if reading == nil || reading.Raw == "" {
			continue
		}
		if kept && reading.Updated == lastUpdated {
			continue
		}
		kept = true
		lastUpdated = reading.Updated

		sig, err := ir.ParseRawSignal(reading.Raw, 0)
		if err != nil {
			log.Warn().Err(err).Str("updated", reading.Updated).Msg("Skipping unreadable capture")
			continue
		}
		signals = append(signals, sig)
		metrics.LearnCapturedSignals.Inc()
		log.Debug().Int("samples", sig.Len()).Str("updated", reading.Updated).Msg("Signal captured")
	}

	log.Info().
		Int("signals", len(signals)).
		Int("polls", polls).
		Int("missed", missed).
		Msg("Capture finished")

	if len(signals) == 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return signals, nil
}

// Result is the outcome of Learn.
type Result struct {
	Signal   ir.RawSignal
	Matches  int
	Captured int
	Groups   []ir.Group
}

// Learned reports whether a recurring signal was found.
func (r *Result) Learned() bool {
	return r != nil && r.Matches > 0
}

// Learn captures signals and selects the representative of the largest
// group of mutually similar ones. Finding nothing is not an error.
func (s *Session) Learn(ctx context.Context) (*Result, error) {
	signals, err := s.Capture(ctx)
	if err != nil {
		metrics.LearnSessionsTotal.WithLabelValues("cancelled").Inc()
		return nil, err
	}
	return s.Select(signals), nil
}

// Select groups captured signals and picks the largest group.
func (s *Session) Select(signals []ir.RawSignal) *Result {
	groups := s.matcher.GroupSimilar(signals, s.cfg.MinMatches)
	res := &Result{Captured: len(signals), Groups: groups}

	best, ok := ir.Largest(groups)
	if !ok {
		metrics.LearnSessionsTotal.WithLabelValues("nothing").Inc()
		log.Warn().Int("captured", len(signals)).Msg("No recurring signal found, retry")
		return res
	}

	res.Signal = best.Signal()
	res.Matches = best.Size()
	metrics.LearnSessionsTotal.WithLabelValues("learned").Inc()
	log.Info().
		Int("matches", res.Matches).
		Int("captured", res.Captured).
		Int("groups", len(groups)).
		Msg("Signal learned")
	return res
}

// LearnFunction learns a function of the given kind. Only single-command
// functions can be learned.
func (s *Session) LearnFunction(ctx context.Context, name string, kind ir.Kind) (*ir.Function, *Result, error) {
	if kind != ir.KindSingle {
		return nil, nil, fmt.Errorf("learning %s functions: %w", kind, ErrUnsupported)
	}
	if name == "" {
		return nil, nil, fmt.Errorf("function name is required")
	}

	res, err := s.Learn(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !res.Learned() {
		return nil, res, fmt.Errorf("function %q: %w (%d captured)", name, ErrNothingLearned, res.Captured)
	}

	fn, err := ir.NewFunction(name, ir.KindSingle, ir.NewRawCommand(res.Signal))
	if err != nil {
		return nil, res, err
	}
	return fn, res, nil
}
