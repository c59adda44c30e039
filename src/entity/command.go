package entity

import "time"

// Command is one inbound chat command.
type Command struct {
	Name string `json:"name"`

	// Arg is the unit name, or the hostname for reload.
	Arg string `json:"arg,omitempty"`

	// Actor identifies who sent the command, for audit only.
	Actor string `json:"actor,omitempty"`

	// Latency is the transport round trip, reported by ping.
	Latency time.Duration `json:"latency,omitempty"`
}

type Severity string

const (
	SeverityOK      Severity = "ok"
	SeverityPending Severity = "pending"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Convergence is the outcome of re-polling a unit after a lifecycle request.
type Convergence string

const (
	ConvergenceNone      Convergence = ""
	ConvergenceConverged Convergence = "converged"
	ConvergencePending   Convergence = "pending"
	ConvergenceFailed    Convergence = "failed"
)

// CommandResult is the dispatcher's reply before any rendering.
type CommandResult struct {
	Command     string      `json:"command"`
	Unit        string      `json:"unit,omitempty"`
	Success     bool        `json:"success"`
	Severity    Severity    `json:"severity"`
	Headline    string      `json:"headline"`
	Detail      string      `json:"detail"`
	Hint        string      `json:"hint,omitempty"`
	Convergence Convergence `json:"convergence,omitempty"`
	Failure     *Failure    `json:"failure,omitempty"`

	// Verbatim marks Detail as raw output (logs) for renderers.
	Verbatim bool `json:"verbatim,omitempty"`
}
