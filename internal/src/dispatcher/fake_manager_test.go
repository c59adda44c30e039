package dispatcher

import (
	"context"
	"sync"

	"github.com/desain-gratis/unitbot/src/entity"
)

// fakeManager answers from canned results and records every call.
type fakeManager struct {
	mu sync.Mutex

	// statuses are returned in order, the last one repeats
	statuses []entity.UnitStatus
	actions  map[entity.Action]entity.ActionResult
	errors   entity.ErrorDetail
	logs     entity.LogBundle

	calls []string
	units []string
}

func newFakeManager(statuses ...entity.UnitStatus) *fakeManager {
	return &fakeManager{
		statuses: statuses,
		actions:  make(map[entity.Action]entity.ActionResult),
	}
}

func (m *fakeManager) record(call, unit string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	m.units = append(m.units, unit)
}

func (m *fakeManager) GetUnitStatus(ctx context.Context, unit string) entity.UnitStatus {
	m.record("status", unit)
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.statuses) == 0 {
		return entity.UnitStatus{Unit: unit, ActiveState: entity.StateActive, SubState: "running"}
	}
	s := m.statuses[0]
	if len(m.statuses) > 1 {
		m.statuses = m.statuses[1:]
	}
	s.Unit = unit
	return s
}

func (m *fakeManager) action(ctx context.Context, action entity.Action, unit string) entity.ActionResult {
	m.record(string(action), unit)
	if res, ok := m.actions[action]; ok {
		res.Unit = unit
		return res
	}
	return entity.ActionResult{Unit: unit, Action: action, Accepted: true}
}

func (m *fakeManager) Start(ctx context.Context, unit string) entity.ActionResult {
	return m.action(ctx, entity.ActionStart, unit)
}

func (m *fakeManager) Stop(ctx context.Context, unit string) entity.ActionResult {
	return m.action(ctx, entity.ActionStop, unit)
}

func (m *fakeManager) Restart(ctx context.Context, unit string) entity.ActionResult {
	return m.action(ctx, entity.ActionRestart, unit)
}

func (m *fakeManager) Enable(ctx context.Context, unit string) entity.ActionResult {
	return m.action(ctx, entity.ActionEnable, unit)
}

func (m *fakeManager) Disable(ctx context.Context, unit string) entity.ActionResult {
	return m.action(ctx, entity.ActionDisable, unit)
}

func (m *fakeManager) Reload(ctx context.Context) entity.ActionResult {
	return m.action(ctx, entity.ActionReload, "")
}

func (m *fakeManager) GetErrors(ctx context.Context, unit string) entity.ErrorDetail {
	m.record("get_errors", unit)
	d := m.errors
	d.Unit = unit
	return d
}

func (m *fakeManager) GetLogs(ctx context.Context, unit string) entity.LogBundle {
	m.record("get_logs", unit)
	b := m.logs
	b.Unit = unit
	return b
}

func status(state entity.ActiveState, sub string) entity.UnitStatus {
	return entity.UnitStatus{ActiveState: state, SubState: sub}
}
