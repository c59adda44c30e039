package dispatcher

import (
	"context"
	"fmt"

	"github.com/desain-gratis/unitbot/src/entity"
)

// Definition describes one chat command. Every command takes at most one string
// argument.
type Definition struct {
	Name           string
	Description    string
	ArgName        string
	ArgDescription string
	ArgRequired    bool

	run func(d *Dispatcher, ctx context.Context, cmd entity.Command) (entity.CommandResult, bool)
}

const (
	hintVerify    = "Use /status to verify the status of the service."
	hintInactive  = "Try checking errors with /get_errors or logs with /get_logs, or start it with /start."
	hintActivate  = "If activating takes too long use /get_errors to see if there are any errors."
	hintTransient = "The unit is changing state, use /status again in a few seconds."
	hintFailed    = "Use /get_errors or /get_logs to see why the service failed."
	hintPrivilege = "This needs elevated privileges, run the bot as root or grant it polkit rights."
	hintNotFound  = "Check the unit name, systemd has no unit file for it."
	hintBus       = "The system bus is not reachable, check that systemd is running on the host."
	hintType      = "This unit type does not support that operation."
	hintMerged    = "Check the unit name and that the bot runs with enough privileges (root or polkit)."
	hintReload    = "Should take a few seconds to start."
	hintLogs      = "Use /get_errors for the last exit status."
)

var table = []Definition{
	{
		Name:        "ping",
		Description: "Responds with Pong!",
		run:         (*Dispatcher).ping,
	},
	{
		Name:           "status",
		Description:    "Provides status of a service",
		ArgName:        "service",
		ArgDescription: "Service name",
		ArgRequired:    true,
		run:            (*Dispatcher).status,
	},
	{
		Name:           "start",
		Description:    "Start a systemd service",
		ArgName:        "service",
		ArgDescription: "Service name",
		ArgRequired:    true,
		run:            lifecycle(entity.ActionStart),
	},
	{
		Name:           "stop",
		Description:    "Stop a systemd service",
		ArgName:        "service",
		ArgDescription: "Service name",
		ArgRequired:    true,
		run:            lifecycle(entity.ActionStop),
	},
	{
		Name:           "restart",
		Description:    "Restart a systemd service",
		ArgName:        "service",
		ArgDescription: "Service name",
		ArgRequired:    true,
		run:            lifecycle(entity.ActionRestart),
	},
	{
		Name:           "enable",
		Description:    "Enable a systemd service at boot",
		ArgName:        "service",
		ArgDescription: "Service name",
		ArgRequired:    true,
		run:            unitFiles(entity.ActionEnable),
	},
	{
		Name:           "disable",
		Description:    "Disable a systemd service at boot",
		ArgName:        "service",
		ArgDescription: "Service name",
		ArgRequired:    true,
		run:            unitFiles(entity.ActionDisable),
	},
	{
		Name:           "get_errors",
		Description:    "Get the errors produced by a systemd service",
		ArgName:        "service",
		ArgDescription: "Service name",
		ArgRequired:    true,
		run:            (*Dispatcher).getErrors,
	},
	{
		Name:           "get_logs",
		Description:    "Get the last log lines of a systemd service",
		ArgName:        "service",
		ArgDescription: "Service name",
		ArgRequired:    true,
		run:            (*Dispatcher).getLogs,
	},
	{
		Name:           "reload",
		Description:    "Reloads the systemd service daemon",
		ArgName:        "hostname",
		ArgDescription: "Hostname of the machine",
		run:            (*Dispatcher).reload,
	},
}

func lookup(name string) (Definition, bool) {
	for _, def := range table {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}

// Commands lists the command table as the transports should register it. The
// reload hostname is required only while the host gate is on.
func (d *Dispatcher) Commands() []Definition {
	defs := make([]Definition, len(table))
	copy(defs, table)
	for i := range defs {
		if defs[i].Name == "reload" {
			defs[i].ArgRequired = d.cfg.Reload.Enabled
		}
	}
	return defs
}

func (d *Dispatcher) ping(_ context.Context, cmd entity.Command) (entity.CommandResult, bool) {
	return entity.CommandResult{
		Success:  true,
		Severity: entity.SeverityOK,
		Headline: "Bot is running!",
		Detail:   fmt.Sprintf("Pong %d ms", cmd.Latency.Milliseconds()),
	}, true
}

func (d *Dispatcher) status(ctx context.Context, cmd entity.Command) (entity.CommandResult, bool) {
	unit := d.unitName(cmd.Arg)
	s := d.manager.GetUnitStatus(ctx, unit)

	result := entity.CommandResult{
		Unit:     unit,
		Success:  true,
		Headline: fmt.Sprintf("%s is %s", unit, s.ActiveState),
	}

	switch s.ActiveState {
	case entity.StateInvalid:
		return d.failure(unit, fmt.Sprintf("%s is invalid", unit), s.Failure, hintFor(s.Failure)), true
	case entity.StateActive:
		result.Severity = entity.SeverityOK
		result.Detail = fmt.Sprintf("%s is currently active and running! (%s)", unit, s.SubState)
	case entity.StateInactive:
		result.Severity = entity.SeverityError
		result.Detail = fmt.Sprintf("%s is currently inactive and %s!", unit, s.SubState)
		result.Hint = hintInactive
	case entity.StateFailed:
		result.Severity = entity.SeverityError
		result.Detail = fmt.Sprintf("%s has failed (%s).", unit, s.SubState)
		result.Hint = hintInactive
	case entity.StateActivating:
		result.Severity = entity.SeverityWarning
		result.Detail = fmt.Sprintf("%s is currently activating (%s).", unit, s.SubState)
		result.Hint = hintActivate
	default:
		result.Severity = entity.SeverityWarning
		result.Detail = fmt.Sprintf("%s is currently %s (%s).", unit, s.ActiveState, s.SubState)
		result.Hint = hintTransient
	}

	return result, true
}

type lifecycleSpec struct {
	call   func(m ServiceManager, ctx context.Context, unit string) entity.ActionResult
	target entity.ActiveState
	title  string
	verb   string
}

var lifecycles = map[entity.Action]lifecycleSpec{
	entity.ActionStart:   {call: ServiceManager.Start, target: entity.StateActive, title: "Starting", verb: "start"},
	entity.ActionStop:    {call: ServiceManager.Stop, target: entity.StateInactive, title: "Stopping", verb: "stop"},
	entity.ActionRestart: {call: ServiceManager.Restart, target: entity.StateActive, title: "Restarting", verb: "restart"},
}

// lifecycle requests the transition, then re-polls the unit to report a best
// guess of where it ended up.
func lifecycle(action entity.Action) func(d *Dispatcher, ctx context.Context, cmd entity.Command) (entity.CommandResult, bool) {
	spec := lifecycles[action]

	return func(d *Dispatcher, ctx context.Context, cmd entity.Command) (entity.CommandResult, bool) {
		unit := d.unitName(cmd.Arg)

		res := spec.call(d.manager, ctx, unit)
		if !res.Accepted {
			return d.failure(unit, fmt.Sprintf("Could not %s %s", spec.verb, unit), res.Failure, hintFor(res.Failure)), true
		}

		convergence, s := d.cfg.Poll.Await(ctx, func(ctx context.Context) entity.UnitStatus {
			return d.manager.GetUnitStatus(ctx, unit)
		}, spec.target)

		state := string(s.ActiveState)
		if state == "" {
			state = "unknown"
		}

		result := entity.CommandResult{
			Unit:        unit,
			Success:     convergence != entity.ConvergenceFailed,
			Headline:    fmt.Sprintf("%s %s...", spec.title, unit),
			Detail:      fmt.Sprintf("The service is currently %s.", state),
			Hint:        hintVerify,
			Convergence: convergence,
			Failure:     s.Failure,
		}

		switch convergence {
		case entity.ConvergenceConverged:
			result.Severity = entity.SeverityOK
		case entity.ConvergenceFailed:
			result.Severity = entity.SeverityError
			result.Hint = hintFailed
		default:
			result.Severity = entity.SeverityPending
		}

		if s.ActiveState != spec.target {
			result.Detail += fmt.Sprintf(" It may take a few seconds to %s...", spec.verb)
		}

		return result, true
	}
}

func unitFiles(action entity.Action) func(d *Dispatcher, ctx context.Context, cmd entity.Command) (entity.CommandResult, bool) {
	return func(d *Dispatcher, ctx context.Context, cmd entity.Command) (entity.CommandResult, bool) {
		unit := d.unitName(cmd.Arg)

		var res entity.ActionResult
		var headline, detail string
		if action == entity.ActionEnable {
			res = d.manager.Enable(ctx, unit)
			headline = "Enabled " + unit
			detail = fmt.Sprintf("%s will start at boot.", unit)
		} else {
			res = d.manager.Disable(ctx, unit)
			headline = "Disabled " + unit
			detail = fmt.Sprintf("%s will no longer start at boot.", unit)
		}

		if !res.Accepted {
			return d.failure(unit, fmt.Sprintf("Could not %s %s", action, unit), res.Failure, hintPrivilege), true
		}

		return entity.CommandResult{
			Unit:     unit,
			Success:  true,
			Severity: entity.SeverityOK,
			Headline: headline,
			Detail:   detail,
		}, true
	}
}

func (d *Dispatcher) getErrors(ctx context.Context, cmd entity.Command) (entity.CommandResult, bool) {
	unit := d.unitName(cmd.Arg)
	detail := d.manager.GetErrors(ctx, unit)

	if detail.Failure != nil {
		return d.failure(unit, fmt.Sprintf("Could not read errors of %s", unit), detail.Failure, hintFor(detail.Failure)), true
	}

	if !detail.Available {
		return entity.CommandResult{
			Unit:     unit,
			Success:  true,
			Severity: entity.SeverityWarning,
			Headline: fmt.Sprintf("Errors of %s", unit),
			Detail:   detail.Message,
		}, true
	}

	severity := entity.SeverityError
	if detail.Result == "success" {
		severity = entity.SeverityOK
	}

	return entity.CommandResult{
		Unit:     unit,
		Success:  true,
		Severity: severity,
		Headline: fmt.Sprintf("Errors of %s", unit),
		Detail:   fmt.Sprintf("Received: %s", detail.Result),
		Hint:     fmt.Sprintf("ExecError: %d, ExecMainCode %d", detail.ExecMainStatus, detail.ExecMainCode),
	}, true
}

func (d *Dispatcher) getLogs(ctx context.Context, cmd entity.Command) (entity.CommandResult, bool) {
	unit := d.unitName(cmd.Arg)
	bundle := d.manager.GetLogs(ctx, unit)

	if bundle.Failure != nil {
		return d.failure(unit, fmt.Sprintf("Could not read logs of %s", unit), bundle.Failure, hintFor(bundle.Failure)), true
	}

	return entity.CommandResult{
		Unit:     unit,
		Success:  true,
		Severity: entity.SeverityOK,
		Headline: fmt.Sprintf("Last %d log lines of %s", bundle.Lines, unit),
		Detail:   bundle.Text,
		Hint:     hintLogs,
		Verbatim: true,
	}, true
}

func (d *Dispatcher) reload(ctx context.Context, cmd entity.Command) (entity.CommandResult, bool) {
	if !d.cfg.Reload.Allows(cmd.Arg) {
		return entity.CommandResult{}, false
	}

	res := d.manager.Reload(ctx)
	if !res.Accepted {
		return d.failure("", "Daemon reload failed", res.Failure, hintPrivilege), true
	}

	return entity.CommandResult{
		Success:  true,
		Severity: entity.SeverityOK,
		Headline: "Daemon reload",
		Detail:   "Triggered a daemon reload",
		Hint:     hintReload,
	}, true
}

// failure renders a manager failure. With MergeFailures every failure shares one
// headline and hint whatever its cause.
func (d *Dispatcher) failure(unit, headline string, f *entity.Failure, hint string) entity.CommandResult {
	if f == nil {
		f = entity.NewFailure(entity.KindUnknown, "unknown error")
	}

	result := entity.CommandResult{
		Unit:     unit,
		Severity: entity.SeverityError,
		Headline: headline,
		Detail:   f.Message,
		Hint:     hint,
		Failure:  f,
	}

	if d.cfg.MergeFailures {
		result.Headline = "Error"
		if unit != "" {
			result.Headline = "Error on " + unit
		}
		result.Hint = hintMerged
	}

	return result
}

func hintFor(f *entity.Failure) string {
	if f == nil {
		return ""
	}
	switch f.Kind {
	case entity.KindNotFound:
		return hintNotFound
	case entity.KindPermissionDenied:
		return hintPrivilege
	case entity.KindUnreachable:
		return hintBus
	case entity.KindUnsupported:
		return hintType
	}
	return ""
}
