package dispatcher

import (
	"context"
	"log/slog"

	"github.com/desain-gratis/common/lib/notifier"

	"github.com/desain-gratis/unitbot/internal/src/systemd"
	"github.com/desain-gratis/unitbot/src/entity"
)

const auditResultKey = "result"

type auditLogger struct {
	slog.Handler

	topic notifier.Topic
}

// NewAuditLogger writes audit records to base and broadcasts the command result
// they carry on topic, so stream clients see every command. topic may be nil.
func NewAuditLogger(base slog.Handler, topic notifier.Topic) slog.Handler {
	return &auditLogger{
		Handler: base,
		topic:   topic,
	}
}

func (h *auditLogger) Handle(ctx context.Context, r slog.Record) error {
	if h.topic != nil {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key != auditResultKey {
				return true
			}
			if result, ok := a.Value.Any().(entity.CommandResult); ok {
				h.topic.Broadcast(ctx, systemd.Row[entity.CommandResult]{
					Name: systemd.RowCommand,
					Key:  result.Command,
					Data: result,
				})
			}
			return false
		})
	}
	return h.Handler.Handle(ctx, r)
}

func (h *auditLogger) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &auditLogger{Handler: h.Handler.WithAttrs(attrs), topic: h.topic}
}

func (h *auditLogger) WithGroup(name string) slog.Handler {
	return &auditLogger{Handler: h.Handler.WithGroup(name), topic: h.topic}
}
