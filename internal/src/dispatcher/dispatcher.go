package dispatcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/desain-gratis/common/lib/notifier"
	"github.com/rs/zerolog/log"

	"github.com/desain-gratis/unitbot/internal/src/systemd"
	"github.com/desain-gratis/unitbot/src/entity"
)

// ServiceManager is the systemd side of the dispatcher. Implementations never
// fail, errors come back inside the results.
type ServiceManager interface {
	GetUnitStatus(ctx context.Context, unit string) entity.UnitStatus
	Start(ctx context.Context, unit string) entity.ActionResult
	Stop(ctx context.Context, unit string) entity.ActionResult
	Restart(ctx context.Context, unit string) entity.ActionResult
	Enable(ctx context.Context, unit string) entity.ActionResult
	Disable(ctx context.Context, unit string) entity.ActionResult
	GetErrors(ctx context.Context, unit string) entity.ErrorDetail
	GetLogs(ctx context.Context, unit string) entity.LogBundle
	Reload(ctx context.Context) entity.ActionResult
}

type Config struct {
	Poll   Poller
	Reload HostGate

	// DefaultUnitSuffix is appended to unit names without a unit type, "" keeps
	// names as typed.
	DefaultUnitSuffix string

	// MergeFailures reports invalid units and privilege failures through the same
	// reply instead of command-specific ones.
	MergeFailures bool

	// Topic receives every dispatched command, optional.
	Topic notifier.Topic

	// AuditOutput receives JSON audit records, stdout when nil.
	AuditOutput io.Writer
}

// Dispatcher turns one chat command into one manager call and a reply. It keeps
// no state between commands.
type Dispatcher struct {
	manager ServiceManager
	cfg     Config
	audit   *slog.Logger
}

func New(manager ServiceManager, cfg Config) *Dispatcher {
	if cfg.Poll.Attempts == 0 && cfg.Poll.InitialDelay == 0 {
		sleep := cfg.Poll.sleep
		cfg.Poll = DefaultPoller()
		cfg.Poll.sleep = sleep
	}

	out := cfg.AuditOutput
	if out == nil {
		out = os.Stdout
	}

	audit := slog.New(NewAuditLogger(slog.NewJSONHandler(out, &slog.HandlerOptions{}), cfg.Topic)).
		With("type", "audit")

	return &Dispatcher{
		manager: manager,
		cfg:     cfg,
		audit:   audit,
	}
}

// Accepts tells the transport up front whether the command will get a reply.
// Only a gated reload addressed to another host is refused.
func (d *Dispatcher) Accepts(cmd entity.Command) bool {
	if cmd.Name == "reload" {
		return d.cfg.Reload.Allows(strings.TrimSpace(cmd.Arg))
	}
	return true
}

// Dispatch runs the command. The boolean is false when nothing must be sent back.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd entity.Command) (entity.CommandResult, bool) {
	def, ok := lookup(cmd.Name)
	if !ok {
		result := entity.CommandResult{
			Command:  cmd.Name,
			Severity: entity.SeverityError,
			Headline: "Unknown command",
			Detail:   "There is no command named " + cmd.Name + ".",
		}
		d.record(ctx, cmd, result, true)
		return result, true
	}

	arg := strings.TrimSpace(cmd.Arg)
	if def.ArgRequired && arg == "" {
		result := entity.CommandResult{
			Command:  cmd.Name,
			Severity: entity.SeverityError,
			Headline: "Missing " + def.ArgName,
			Detail:   "/" + def.Name + " needs a " + def.ArgName + " name.",
		}
		d.record(ctx, cmd, result, true)
		return result, true
	}

	cmd.Arg = arg
	result, reply := def.run(d, ctx, cmd)
	result.Command = cmd.Name
	d.record(ctx, cmd, result, reply)
	return result, reply
}

func (d *Dispatcher) record(ctx context.Context, cmd entity.Command, result entity.CommandResult, replied bool) {
	level := slog.LevelInfo
	if !result.Success && replied {
		level = slog.LevelWarn
	}

	d.audit.LogAttrs(ctx, level, "command dispatched",
		slog.String("command", cmd.Name),
		slog.String("arg", cmd.Arg),
		slog.String("actor", cmd.Actor),
		slog.Bool("replied", replied),
		slog.Any(auditResultKey, result),
	)

	if !replied {
		log.Info().Msgf("command %v from %v ignored on this host", cmd.Name, cmd.Actor)
	}
}

// unitName appends the default suffix when the name has no unit type.
func (d *Dispatcher) unitName(arg string) string {
	return systemd.UnitName(arg, d.cfg.DefaultUnitSuffix)
}
