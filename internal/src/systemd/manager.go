package systemd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/desain-gratis/unitbot/src/entity"
)

// JobModeReplace replaces any queued conflicting job of the unit.
const JobModeReplace = "replace"

const defaultCallTimeout = 30 * time.Second

// Manager is the only place that talks to systemd. It never returns an error:
// every failure is converted into the result value with a typed Failure.
type Manager struct {
	dial    Dialer
	journal *Journal
	timeout time.Duration
}

type Option func(*Manager)

func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dial = d
	}
}

func WithJournal(j *Journal) Option {
	return func(m *Manager) {
		m.journal = j
	}
}

// WithTimeout bounds each bus call, dial included.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		dial:    SystemBus,
		timeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.journal == nil {
		m.journal = NewJournal()
	}
	return m
}

// withBus opens a connection for a single call. No pooling.
func (m *Manager) withBus(ctx context.Context, fn func(ctx context.Context, bus Bus) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	bus, err := m.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDial, err)
	}
	defer bus.Close()

	return fn(ctx, bus)
}

// Probe checks that the system bus can be reached.
func (m *Manager) Probe(ctx context.Context) error {
	return m.withBus(ctx, func(context.Context, Bus) error { return nil })
}

func (m *Manager) GetUnitStatus(ctx context.Context, unit string) entity.UnitStatus {
	if unit == "" {
		return entity.InvalidStatus(unit, entity.NewFailure(entity.KindNotFound, "empty unit name"))
	}

	var props map[string]interface{}
	err := m.withBus(ctx, func(ctx context.Context, bus Bus) error {
		var err error
		props, err = bus.GetUnitPropertiesContext(ctx, unit)
		return err
	})
	if err != nil {
		log.Err(err).Msgf("failed to get status of unit %v", unit)
		return entity.InvalidStatus(unit, toFailure(err, "error retrieving unit %s", unit))
	}

	status := entity.UnitStatus{
		Unit:        unit,
		LoadState:   stringProp(props, "LoadState"),
		ActiveState: entity.ActiveState(stringProp(props, "ActiveState")),
		SubState:    stringProp(props, "SubState"),
	}

	if status.LoadState == entity.LoadStateNotFound {
		return entity.InvalidStatus(unit, entity.NewFailure(entity.KindNotFound, "unit %s not found", unit))
	}

	if status.ActiveState == "" {
		return entity.InvalidStatus(unit, entity.NewFailure(entity.KindUnknown, "unit %s reported no ActiveState", unit))
	}

	return status
}

func (m *Manager) Start(ctx context.Context, unit string) entity.ActionResult {
	return m.job(ctx, entity.ActionStart, unit, Bus.StartUnitContext)
}

func (m *Manager) Stop(ctx context.Context, unit string) entity.ActionResult {
	return m.job(ctx, entity.ActionStop, unit, Bus.StopUnitContext)
}

func (m *Manager) Restart(ctx context.Context, unit string) entity.ActionResult {
	return m.job(ctx, entity.ActionRestart, unit, Bus.RestartUnitContext)
}

type jobCall func(bus Bus, ctx context.Context, name string, mode string, ch chan<- string) (int, error)

// job queues a lifecycle job without waiting for it to finish.
func (m *Manager) job(ctx context.Context, action entity.Action, unit string, call jobCall) entity.ActionResult {
	result := entity.ActionResult{Unit: unit, Action: action}

	err := m.withBus(ctx, func(ctx context.Context, bus Bus) error {
		id, err := call(bus, ctx, unit, JobModeReplace, nil)
		result.JobID = id
		return err
	})
	if err != nil {
		log.Err(err).Msgf("failed to %v unit %v", action, unit)
		result.Failure = toFailure(err, "error on %s %s", action, unit)
		return result
	}

	log.Info().Msgf("queued %v job %v for unit %v", action, result.JobID, unit)
	result.Accepted = true
	return result
}

// Enable needs write access to the unit file directories, usually root.
func (m *Manager) Enable(ctx context.Context, unit string) entity.ActionResult {
	return m.unitFiles(ctx, entity.ActionEnable, unit, func(ctx context.Context, bus Bus) error {
		_, _, err := bus.EnableUnitFilesContext(ctx, []string{unit}, false, true)
		return err
	})
}

func (m *Manager) Disable(ctx context.Context, unit string) entity.ActionResult {
	return m.unitFiles(ctx, entity.ActionDisable, unit, func(ctx context.Context, bus Bus) error {
		_, err := bus.DisableUnitFilesContext(ctx, []string{unit}, false)
		return err
	})
}

func (m *Manager) unitFiles(ctx context.Context, action entity.Action, unit string, fn func(ctx context.Context, bus Bus) error) entity.ActionResult {
	result := entity.ActionResult{Unit: unit, Action: action}

	if err := m.withBus(ctx, fn); err != nil {
		log.Err(err).Msgf("failed to %v unit %v", action, unit)
		result.Failure = toFailure(err, "error on %s %s", action, unit)
		return result
	}

	result.Accepted = true
	return result
}

// Reload makes systemd re-read all unit files (daemon-reload).
func (m *Manager) Reload(ctx context.Context) entity.ActionResult {
	result := entity.ActionResult{Action: entity.ActionReload}

	err := m.withBus(ctx, func(ctx context.Context, bus Bus) error {
		return bus.ReloadContext(ctx)
	})
	if err != nil {
		log.Err(err).Msgf("failed to reload systemd daemon")
		result.Failure = toFailure(err, "error on daemon reload")
		return result
	}

	log.Info().Msgf("systemd daemon reloaded")
	result.Accepted = true
	return result
}

// GetErrors reads the last run result of a service unit. Other unit types don't
// carry these properties and get the fallback message.
func (m *Manager) GetErrors(ctx context.Context, unit string) entity.ErrorDetail {
	detail := entity.ErrorDetail{Unit: unit}

	status := m.GetUnitStatus(ctx, unit)
	if status.IsInvalid() {
		detail.Message = status.SubState
		detail.Failure = status.Failure
		return detail
	}

	var props map[string]interface{}
	err := m.withBus(ctx, func(ctx context.Context, bus Bus) error {
		var err error
		props, err = bus.GetUnitTypePropertiesContext(ctx, unit, "Service")
		return err
	})
	if err != nil {
		if Classify(err) == entity.KindUnsupported {
			detail.Message = entity.NoErrorDetail
			return detail
		}
		log.Err(err).Msgf("failed to get service properties of unit %v", unit)
		detail.Failure = toFailure(err, "error retrieving service properties of %s", unit)
		detail.Message = detail.Failure.Message
		return detail
	}

	result, ok := props["Result"].(string)
	if !ok {
		detail.Message = entity.NoErrorDetail
		return detail
	}

	detail.Available = true
	detail.Result = result
	detail.ExecMainStatus = intProp(props, "ExecMainStatus")
	detail.ExecMainCode = intProp(props, "ExecMainCode")
	return detail
}

// GetLogs returns the journal tail of the unit. A unit systemd doesn't know about
// yields a failure, any other status problem still lets the journal be read.
func (m *Manager) GetLogs(ctx context.Context, unit string) entity.LogBundle {
	bundle := entity.LogBundle{Unit: unit}

	status := m.GetUnitStatus(ctx, unit)
	if status.Failure.Is(entity.KindNotFound) {
		bundle.Failure = status.Failure
		bundle.Text = status.SubState
		return bundle
	}

	text, lines, err := m.journal.Tail(ctx, unit)
	if err != nil {
		log.Err(err).Msgf("failed to read journal of unit %v", unit)
		bundle.Failure = toFailure(err, "error reading logs of %s", unit)
		bundle.Text = bundle.Failure.Message
		return bundle
	}

	bundle.Text = text
	bundle.Lines = lines
	return bundle
}

func stringProp(props map[string]interface{}, name string) string {
	s, _ := props[name].(string)
	return s
}

func intProp(props map[string]interface{}, name string) int {
	switch v := props[name].(type) {
	case int32:
		return int(v)
	case uint32:
		return int(v)
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case int:
		return v
	}
	return 0
}
