package systemd

import (
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

const (
	RowUnit        = "unit"
	RowUnitRemoved = "unit-removed"
	RowCommand     = "command"
)

// Row is the envelope of every message sent on the stream.
type Row[T any] struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Data T      `json:"data"`
}

type DBusUnitStatus struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LoadState   string `json:"load_state"`
	ActiveState string `json:"active_state"`
	SubState    string `json:"sub_state"`
	Followed    string `json:"followed"`
	Path        string `json:"path"`
	JobId       uint32 `json:"job_id"`
	JobType     string `json:"job_type"`
	JobPath     string `json:"job_path"`
}

func fromDBus(u dbus.UnitStatus) DBusUnitStatus {
	return DBusUnitStatus{
		Name:        u.Name,
		Description: u.Description,
		LoadState:   u.LoadState,
		ActiveState: u.ActiveState,
		SubState:    u.SubState,
		Followed:    u.Followed,
		Path:        string(u.Path),
		JobId:       u.JobId,
		JobType:     u.JobType,
		JobPath:     string(u.JobPath),
	}
}

var unitTypes = map[string]bool{
	"service":   true,
	"socket":    true,
	"target":    true,
	"timer":     true,
	"mount":     true,
	"automount": true,
	"path":      true,
	"slice":     true,
	"scope":     true,
	"device":    true,
	"swap":      true,
}

// UnitName appends suffix to names typed without a unit type, "sshd" becomes
// "sshd.service". An empty suffix keeps the name as is.
func UnitName(name, suffix string) string {
	if suffix == "" || name == "" {
		return name
	}
	if i := strings.LastIndex(name, "."); i >= 0 && unitTypes[name[i+1:]] {
		return name
	}
	return name + suffix
}
