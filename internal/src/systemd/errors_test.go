package systemd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"

	godbus "github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"

	"github.com/desain-gratis/unitbot/src/entity"
)

func TestClassify(t *testing.T) {
	busErr := func(name string) error {
		return godbus.Error{Name: name, Body: []interface{}{"boom"}}
	}

	tests := []struct {
		name string
		err  error
		want entity.ErrorKind
	}{
		{"nil", nil, entity.KindNone},
		{"no such unit", busErr("org.freedesktop.systemd1.NoSuchUnit"), entity.KindNotFound},
		{"access denied", busErr("org.freedesktop.DBus.Error.AccessDenied"), entity.KindPermissionDenied},
		{"polkit", busErr("org.freedesktop.DBus.Error.InteractiveAuthorizationRequired"), entity.KindPermissionDenied},
		{"pointer error", &godbus.Error{Name: "org.freedesktop.DBus.Error.AccessDenied"}, entity.KindPermissionDenied},
		{"wrapped", fmt.Errorf("enable: %w", busErr("org.freedesktop.systemd1.NoSuchUnit")), entity.KindNotFound},
		{"no reply", busErr("org.freedesktop.DBus.Error.NoReply"), entity.KindUnreachable},
		{"unknown interface", busErr("org.freedesktop.DBus.Error.UnknownInterface"), entity.KindUnsupported},
		{"masked", busErr("org.freedesktop.systemd1.UnitMasked"), entity.KindUnsupported},
		{"dial", fmt.Errorf("%w: %w", ErrDial, errors.New("connection refused")), entity.KindUnreachable},
		{"deadline", context.DeadlineExceeded, entity.KindUnreachable},
		{"permission", fmt.Errorf("open: %w", os.ErrPermission), entity.KindPermissionDenied},
		{"no journalctl", &exec.Error{Name: "journalctl", Err: exec.ErrNotFound}, entity.KindUnsupported},
		{"text only", errors.New("Access denied by policy"), entity.KindPermissionDenied},
		{"other", errors.New("something odd"), entity.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
