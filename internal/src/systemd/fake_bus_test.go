package systemd

import (
	"context"
	"errors"
	"sync"

	"github.com/coreos/go-systemd/v22/dbus"
	godbus "github.com/godbus/dbus/v5"
)

var errAccessDenied = godbus.Error{
	Name: "org.freedesktop.DBus.Error.AccessDenied",
	Body: []interface{}{"Access denied"},
}

// fakeBus mimics the systemd manager: unknown units load as not-found.
type fakeBus struct {
	mu sync.Mutex

	props    map[string]map[string]interface{}
	service  map[string]map[string]interface{}
	enabled  map[string]bool
	failures map[string]error

	calls  []string
	closed int
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		props:    make(map[string]map[string]interface{}),
		service:  make(map[string]map[string]interface{}),
		enabled:  make(map[string]bool),
		failures: make(map[string]error),
	}
}

func (b *fakeBus) dialer() Dialer {
	return func(ctx context.Context) (Bus, error) {
		return b, nil
	}
}

func (b *fakeBus) addUnit(name, active, sub string) {
	b.props[name] = map[string]interface{}{
		"Id":          name,
		"LoadState":   "loaded",
		"ActiveState": active,
		"SubState":    sub,
	}
}

func (b *fakeBus) record(call string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	return b.failures[call]
}

func (b *fakeBus) GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]interface{}, error) {
	if err := b.record("GetUnitProperties"); err != nil {
		return nil, err
	}
	if p, ok := b.props[unit]; ok {
		return p, nil
	}
	return map[string]interface{}{
		"Id":          unit,
		"LoadState":   "not-found",
		"ActiveState": "inactive",
		"SubState":    "dead",
	}, nil
}

func (b *fakeBus) GetUnitTypePropertiesContext(ctx context.Context, unit string, unitType string) (map[string]interface{}, error) {
	if err := b.record("GetUnitTypeProperties"); err != nil {
		return nil, err
	}
	if p, ok := b.service[unit]; ok {
		return p, nil
	}
	return nil, godbus.Error{
		Name: "org.freedesktop.DBus.Error.UnknownInterface",
		Body: []interface{}{"Unknown interface org.freedesktop.systemd1.Service"},
	}
}

func (b *fakeBus) StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error) {
	return b.job("StartUnit", name, mode, "active", "running")
}

func (b *fakeBus) StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error) {
	return b.job("StopUnit", name, mode, "inactive", "dead")
}

func (b *fakeBus) RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error) {
	return b.job("RestartUnit", name, mode, "active", "running")
}

func (b *fakeBus) job(call, name, mode, active, sub string) (int, error) {
	if err := b.record(call); err != nil {
		return 0, err
	}
	if mode != JobModeReplace {
		return 0, errors.New("unexpected job mode " + mode)
	}
	if _, ok := b.props[name]; !ok {
		return 0, godbus.Error{
			Name: "org.freedesktop.systemd1.NoSuchUnit",
			Body: []interface{}{"Unit " + name + " not found."},
		}
	}
	b.addUnit(name, active, sub)
	return len(b.calls), nil
}

func (b *fakeBus) EnableUnitFilesContext(ctx context.Context, files []string, runtime bool, force bool) (bool, []dbus.EnableUnitFileChange, error) {
	if err := b.record("EnableUnitFiles"); err != nil {
		return false, nil, err
	}
	for _, f := range files {
		b.enabled[f] = true
	}
	return false, nil, nil
}

func (b *fakeBus) DisableUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]dbus.DisableUnitFileChange, error) {
	if err := b.record("DisableUnitFiles"); err != nil {
		return nil, err
	}
	for _, f := range files {
		delete(b.enabled, f)
	}
	return nil, nil
}

func (b *fakeBus) ReloadContext(ctx context.Context) error {
	return b.record("Reload")
}

func (b *fakeBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
}
