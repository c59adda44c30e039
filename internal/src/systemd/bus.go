package systemd

import (
	"context"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Bus is the part of the systemd D-Bus connection the manager talks to.
// *dbus.Conn satisfies it.
type Bus interface {
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]interface{}, error)
	GetUnitTypePropertiesContext(ctx context.Context, unit string, unitType string) (map[string]interface{}, error)

	StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)

	EnableUnitFilesContext(ctx context.Context, files []string, runtime bool, force bool) (bool, []dbus.EnableUnitFileChange, error)
	DisableUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]dbus.DisableUnitFileChange, error)

	ReloadContext(ctx context.Context) error

	Close()
}

// Dialer opens a new bus connection. Each manager call dials once.
type Dialer func(ctx context.Context) (Bus, error)

// SystemBus dials the system bus, the default Dialer.
func SystemBus(ctx context.Context) (Bus, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

var _ Bus = &dbus.Conn{}
