// Package remote manages the remotes stored on a LOOKin device together with
// the functions kept in the host-side aux store.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lookind/internal/ac"
	"github.com/dokzlo13/lookind/internal/ir"
	"github.com/dokzlo13/lookind/internal/learn"
	"github.com/dokzlo13/lookind/internal/ledger"
	"github.com/dokzlo13/lookind/internal/lookin"
	"github.com/dokzlo13/lookind/internal/metrics"
)

var (
	ErrRemoteNotFound   = errors.New("remote not found")
	ErrRemoteExists     = errors.New("remote already exists")
	ErrFunctionNotFound = errors.New("function not found")
	ErrFunctionExists   = errors.New("function already exists")
)

// Device is the subset of the LOOKin API used to manage remotes.
type Device interface {
	Remotes(ctx context.Context) ([]lookin.RemoteSummary, error)
	RemoteState(ctx context.Context, uuid string) (*lookin.RemoteState, error)
	CreateRemote(ctx context.Context, def lookin.RemoteDefinition) error
	UpdateRemote(ctx context.Context, uuid string, update lookin.RemoteUpdate) error
	DeleteRemote(ctx context.Context, uuid string) error
	CreateFunction(ctx context.Context, uuid string, fn *ir.Function) error
	UpdateFunction(ctx context.Context, uuid string, fn *ir.Function) error
	DeleteFunction(ctx context.Context, uuid, name string) error
	ir.Transmitter
}

// AuxStore keeps functions the device refused.
type AuxStore interface {
	Save(uuid string, fn *ir.Function) error
	Load(uuid string) ([]*ir.Function, error)
	Delete(uuid, name string) (bool, error)
	DeleteRemote(uuid string) (int64, error)
}

// EventLog records outcomes worth keeping.
type EventLog interface {
	AppendWithSource(eventType ledger.EventType, remoteUUID, source string, payload map[string]any) error
}

// Learner learns one function from the IR sensor.
type Learner interface {
	LearnFunction(ctx context.Context, name string, kind ir.Kind) (*ir.Function, *learn.Result, error)
}

// Remote is an opened remote with its merged function table.
type Remote struct {
	UUID      string
	Name      string
	Type      Type
	Extra     string
	Updated   time.Time
	Functions map[string]*ir.Function

	// Status and LastStatus are set for air conditioner remotes only.
	Status     *ac.Status
	LastStatus *ac.Status
}

// FunctionNames returns the function names in sorted order.
func (r *Remote) FunctionNames() []string {
	names := make([]string, 0, len(r.Functions))
	for name := range r.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Function looks up a function by name.
func (r *Remote) Function(name string) (*ir.Function, bool) {
	fn, ok := r.Functions[name]
	return fn, ok
}

// Manager implements remote and function management on one device.
type Manager struct {
	device Device
	aux    AuxStore
	events EventLog
	source string
	newID  func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithAuxStore enables the aux fallback for function writes.
func WithAuxStore(aux AuxStore) Option {
	return func(m *Manager) {
		m.aux = aux
	}
}

// WithEventLog records learning and fallback events.
func WithEventLog(events EventLog, source string) Option {
	return func(m *Manager) {
		m.events = events
		m.source = source
	}
}

// WithIDGenerator replaces the remote UUID generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		m.newID = gen
	}
}

// NewManager creates a manager.
func NewManager(device Device, opts ...Option) *Manager {
	m := &Manager{
		device: device,
		newID:  randomID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// randomID returns four upper-case hex digits, the device's UUID format.
func randomID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
}

func (m *Manager) record(eventType ledger.EventType, remoteUUID string, payload map[string]any) {
	if m.events == nil {
		return
	}
	if err := m.events.AppendWithSource(eventType, remoteUUID, m.source, payload); err != nil {
		log.Error().Err(err).Str("event", string(eventType)).Msg("Failed to record event")
	}
}

// List returns the remotes stored on the device.
func (m *Manager) List(ctx context.Context) ([]lookin.RemoteSummary, error) {
	return m.device.Remotes(ctx)
}

// Open reads a remote and builds its function table. Aux functions are
// loaded first and device-defined names replace them, since the device copy
// is authoritative even though its commands are not readable.
func (m *Manager) Open(ctx context.Context, id string) (*Remote, error) {
	st, err := m.device.RemoteState(ctx, id)
	if err != nil {
		var se *lookin.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrRemoteNotFound, id)
		}
		return nil, err
	}

	r := &Remote{
		UUID:      id,
		Name:      st.Name,
		Extra:     st.Extra,
		Functions: make(map[string]*ir.Function),
	}
	if st.Type != "" {
		t, err := ParseTypeHex(st.Type)
		if err != nil {
			log.Warn().Err(err).Str("uuid", id).Msg("Unknown remote type, treating as custom")
		} else {
			r.Type = t
		}
	}
	if f, ok := st.Updated.Float(); ok {
		r.Updated = time.Unix(int64(f), 0).UTC()
	}

	if r.Type == TypeAirConditioner {
		if s, err := ac.DecodeStatus(st.Status); err == nil {
			r.Status = &s
		} else {
			log.Warn().Err(err).Str("uuid", id).Msg("Unreadable AC status")
		}
		if s, err := ac.DecodeStatus(st.LastStatus); err == nil {
			r.LastStatus = &s
		}
	}

	if m.aux != nil {
		fns, err := m.aux.Load(id)
		if err != nil {
			return nil, err
		}
		for _, fn := range fns {
			r.Functions[fn.Name()] = fn
		}
	}
	for _, ref := range st.Functions {
		kind := ir.KindSingle
		if ref.Type != "" {
			if k, err := ir.ParseKind(ref.Type); err == nil {
				kind = k
			}
		}
		r.Functions[ref.Name] = ir.DeviceFunction(ref.Name, kind)
	}
	return r, nil
}

// Definition describes a remote to create. An empty UUID is generated.
type Definition struct {
	UUID  string
	Name  string
	Type  Type
	Extra string
}

// Create stores a new remote and returns its UUID. For air conditioners
// Extra is the codeset.
func (m *Manager) Create(ctx context.Context, def Definition) (string, error) {
	if !def.Type.Valid() {
		return "", fmt.Errorf("unknown remote type 0x%02X", uint8(def.Type))
	}

	existing, err := m.device.Remotes(ctx)
	if err != nil {
		return "", err
	}
	taken := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		taken[strings.ToUpper(r.UUID)] = struct{}{}
	}

	id := strings.ToUpper(def.UUID)
	if id != "" {
		if _, ok := taken[id]; ok {
			return "", fmt.Errorf("%w: %s", ErrRemoteExists, id)
		}
	} else {
		if len(taken) >= 1<<16 {
			return "", fmt.Errorf("no free remote uuid left")
		}
		for {
			id = m.newID()
			if _, ok := taken[id]; !ok {
				break
			}
		}
	}

	err = m.device.CreateRemote(ctx, lookin.RemoteDefinition{
		UUID:  id,
		Type:  def.Type.Hex(),
		Name:  def.Name,
		Extra: def.Extra,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Changes lists remote fields to update. Nil fields are kept.
type Changes struct {
	Name  *string
	Type  *Type
	Extra *string
}

// Update changes remote fields on the device.
func (m *Manager) Update(ctx context.Context, id string, c Changes) error {
	update := lookin.RemoteUpdate{Name: c.Name, Extra: c.Extra}
	if c.Type != nil {
		if !c.Type.Valid() {
			return fmt.Errorf("unknown remote type 0x%02X", uint8(*c.Type))
		}
		hex := c.Type.Hex()
		update.Type = &hex
	}
	return m.device.UpdateRemote(ctx, id, update)
}

// Delete removes a remote from the device and drops its aux functions.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.device.DeleteRemote(ctx, id); err != nil {
		return err
	}
	if m.aux != nil {
		if n, err := m.aux.DeleteRemote(id); err != nil {
			log.Warn().Err(err).Str("uuid", id).Msg("Failed to drop aux functions")
		} else if n > 0 {
			log.Info().Str("uuid", id).Int64("functions", n).Msg("Aux functions dropped")
		}
	}
	return nil
}

// CreateFunction adds a new function. A transient device failure stores the
// function in the aux store instead, when one is configured.
func (m *Manager) CreateFunction(ctx context.Context, id string, fn *ir.Function) error {
	r, err := m.Open(ctx, id)
	if err != nil {
		return err
	}
	if _, ok := r.Function(fn.Name()); ok {
		return fmt.Errorf("%w: %s/%s", ErrFunctionExists, id, fn.Name())
	}
	return m.write(ctx, id, fn, m.device.CreateFunction)
}

// UpdateFunction replaces a function. With upsert a missing function is
// created.
func (m *Manager) UpdateFunction(ctx context.Context, id string, fn *ir.Function, upsert bool) error {
	if !upsert {
		r, err := m.Open(ctx, id)
		if err != nil {
			return err
		}
		if _, ok := r.Function(fn.Name()); !ok {
			return fmt.Errorf("%w: %s/%s", ErrFunctionNotFound, id, fn.Name())
		}
	}
	return m.write(ctx, id, fn, m.device.UpdateFunction)
}

func (m *Manager) write(ctx context.Context, id string, fn *ir.Function, store func(context.Context, string, *ir.Function) error) error {
	err := store(ctx, id, fn)
	if err == nil {
		log.Info().Str("uuid", id).Str("function", fn.Name()).Msg("Function stored on device")
		return nil
	}
	if m.aux == nil || !lookin.IsTransient(err) {
		return err
	}

	log.Warn().Err(err).Str("uuid", id).Str("function", fn.Name()).Msg("Device refused function, saving to aux store")
	if saveErr := m.aux.Save(id, fn); saveErr != nil {
		return errors.Join(err, saveErr)
	}
	metrics.FunctionFallbacks.WithLabelValues(id).Inc()
	m.record(ledger.EventFunctionFallback, id, map[string]any{
		"function": fn.Name(),
		"error":    err.Error(),
	})
	return nil
}

// DeleteFunction removes a function from wherever it is stored.
func (m *Manager) DeleteFunction(ctx context.Context, id, name string) error {
	st, err := m.device.RemoteState(ctx, id)
	if err != nil {
		return err
	}

	onDevice := false
	for _, ref := range st.Functions {
		if ref.Name == name {
			onDevice = true
			break
		}
	}
	inAux := false
	if m.aux != nil {
		if inAux, err = m.aux.Delete(id, name); err != nil {
			return err
		}
	}
	if !onDevice && !inAux {
		return fmt.Errorf("%w: %s/%s", ErrFunctionNotFound, id, name)
	}
	if onDevice {
		return m.device.DeleteFunction(ctx, id, name)
	}
	return nil
}

// Trigger transmits a function. Functions whose commands only live on the
// device cannot be triggered from here.
func (m *Manager) Trigger(ctx context.Context, id, name string) error {
	r, err := m.Open(ctx, id)
	if err != nil {
		return err
	}
	fn, ok := r.Function(name)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrFunctionNotFound, id, name)
	}
	if err := fn.Trigger(ctx, m.device); err != nil {
		return err
	}
	log.Info().Str("uuid", id).Str("function", name).Msg("Function triggered")
	return nil
}

// Learn captures a single function from the IR sensor and stores it on the
// remote, replacing a function with the same name.
func (m *Manager) Learn(ctx context.Context, id, name string, learner Learner) (*learn.Result, error) {
	fn, res, err := learner.LearnFunction(ctx, name, ir.KindSingle)
	if err != nil {
		payload := map[string]any{"function": name, "error": err.Error()}
		if res != nil {
			payload["captured"] = res.Captured
		}
		m.record(ledger.EventLearnFailed, id, payload)
		return res, err
	}

	if err := m.UpdateFunction(ctx, id, fn, true); err != nil {
		return res, fmt.Errorf("failed to store learned function %q: %w", name, err)
	}
	m.record(ledger.EventLearnCompleted, id, map[string]any{
		"function": name,
		"matches":  res.Matches,
		"captured": res.Captured,
		"samples":  res.Signal.Len(),
	})
	return res, nil
}
