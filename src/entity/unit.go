package entity

// ActiveState is the coarse lifecycle state systemd reports for a unit.
type ActiveState string

const (
	StateActive       ActiveState = "active"
	StateReloading    ActiveState = "reloading"
	StateInactive     ActiveState = "inactive"
	StateFailed       ActiveState = "failed"
	StateActivating   ActiveState = "activating"
	StateDeactivating ActiveState = "deactivating"

	// StateInvalid is never reported by systemd, it marks a status query that failed.
	StateInvalid ActiveState = "invalid"
)

// LoadStateNotFound is the LoadState systemd reports for units without a unit file.
const LoadStateNotFound = "not-found"

// UnitStatus is the answer to a status query. When the query fails ActiveState is
// StateInvalid and SubState holds the diagnostic.
type UnitStatus struct {
	Unit        string      `json:"unit"`
	LoadState   string      `json:"load_state,omitempty"`
	ActiveState ActiveState `json:"active_state"`
	SubState    string      `json:"sub_state"`
	Failure     *Failure    `json:"failure,omitempty"`
}

func (s UnitStatus) IsInvalid() bool {
	return s.ActiveState == StateInvalid
}

// InvalidStatus builds the status returned when the unit cannot be queried.
func InvalidStatus(unit string, f *Failure) UnitStatus {
	return UnitStatus{
		Unit:        unit,
		ActiveState: StateInvalid,
		SubState:    f.Message,
		Failure:     f,
	}
}

type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
	ActionEnable  Action = "enable"
	ActionDisable Action = "disable"
	ActionReload  Action = "reload"
)

// ActionResult tells whether systemd accepted a lifecycle request. Accepted does not
// mean the unit reached the target state.
type ActionResult struct {
	Unit     string   `json:"unit,omitempty"`
	Action   Action   `json:"action"`
	Accepted bool     `json:"accepted"`
	JobID    int      `json:"job_id,omitempty"`
	Failure  *Failure `json:"failure,omitempty"`
}

// ErrorDetail holds the last run result of a service unit. Available is false for
// units that don't expose the service properties, in that case only Message is set.
type ErrorDetail struct {
	Unit           string   `json:"unit"`
	Available      bool     `json:"available"`
	Result         string   `json:"result,omitempty"`
	ExecMainStatus int      `json:"exec_main_status"`
	ExecMainCode   int      `json:"exec_main_code"`
	Message        string   `json:"message,omitempty"`
	Failure        *Failure `json:"failure,omitempty"`
}

// NoErrorDetail is the fallback message for units without service properties.
const NoErrorDetail = "No additional error information available."

// LogBundle is the tail of a unit's journal.
type LogBundle struct {
	Unit    string   `json:"unit"`
	Lines   int      `json:"lines"`
	Text    string   `json:"text"`
	Failure *Failure `json:"failure,omitempty"`
}
