package systemd

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	godbus "github.com/godbus/dbus/v5"

	"github.com/desain-gratis/unitbot/src/entity"
)

// ErrDial marks failures to open the bus connection.
var ErrDial = errors.New("systemd: cannot connect to bus")

var kindByErrorName = map[string]entity.ErrorKind{
	"org.freedesktop.systemd1.NoSuchUnit":     entity.KindNotFound,
	"org.freedesktop.systemd1.LoadFailed":     entity.KindNotFound,
	"org.freedesktop.DBus.Error.FileNotFound": entity.KindNotFound,

	"org.freedesktop.DBus.Error.AccessDenied":                     entity.KindPermissionDenied,
	"org.freedesktop.DBus.Error.AuthFailed":                       entity.KindPermissionDenied,
	"org.freedesktop.DBus.Error.InteractiveAuthorizationRequired": entity.KindPermissionDenied,

	"org.freedesktop.DBus.Error.ServiceUnknown": entity.KindUnreachable,
	"org.freedesktop.DBus.Error.NoReply":        entity.KindUnreachable,
	"org.freedesktop.DBus.Error.Disconnected":   entity.KindUnreachable,
	"org.freedesktop.DBus.Error.NoServer":       entity.KindUnreachable,
	"org.freedesktop.DBus.Error.Timeout":        entity.KindUnreachable,

	"org.freedesktop.DBus.Error.UnknownInterface": entity.KindUnsupported,
	"org.freedesktop.DBus.Error.UnknownProperty":  entity.KindUnsupported,
	"org.freedesktop.DBus.Error.UnknownMethod":    entity.KindUnsupported,
	"org.freedesktop.DBus.Error.NotSupported":     entity.KindUnsupported,
	"org.freedesktop.systemd1.UnitMasked":         entity.KindUnsupported,
}

// Classify maps a bus or subprocess error to an error kind.
func Classify(err error) entity.ErrorKind {
	if err == nil {
		return entity.KindNone
	}

	if name := errorName(err); name != "" {
		if kind, ok := kindByErrorName[name]; ok {
			return kind
		}
	}

	switch {
	case errors.Is(err, ErrDial),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return entity.KindUnreachable
	case errors.Is(err, exec.ErrNotFound):
		return entity.KindUnsupported
	case errors.Is(err, os.ErrPermission):
		return entity.KindPermissionDenied
	case errors.Is(err, os.ErrNotExist):
		return entity.KindNotFound
	}

	// private bus errors on some distros only come as text
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "access denied"), strings.Contains(msg, "permission denied"):
		return entity.KindPermissionDenied
	case strings.Contains(msg, "not found"), strings.Contains(msg, "not loaded"):
		return entity.KindNotFound
	}

	return entity.KindUnknown
}

func errorName(err error) string {
	var ptr *godbus.Error
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Name
	}

	var val godbus.Error
	if errors.As(err, &val) {
		return val.Name
	}

	return ""
}

func toFailure(err error, format string, args ...any) *entity.Failure {
	f := entity.NewFailure(Classify(err), format, args...)
	f.Message = f.Message + ": " + err.Error()
	return f
}
