package dispatcher

import (
	"context"
	"time"

	"github.com/desain-gratis/unitbot/src/entity"
)

// Poller samples a unit's state after a lifecycle request until it reaches the
// target, fails, or the attempts run out. It only samples, it cannot confirm the
// unit will converge later.
type Poller struct {
	Attempts     int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func DefaultPoller() Poller {
	return Poller{
		Attempts:     3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2,
		MaxDelay:     4 * time.Second,
	}
}

// Await waits before every sample. Cancelling ctx ends the wait with a pending
// result carrying the last sample.
func (p Poller) Await(ctx context.Context, query func(ctx context.Context) entity.UnitStatus, target entity.ActiveState) (entity.Convergence, entity.UnitStatus) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var last entity.UnitStatus
	delay := p.InitialDelay
	for attempt := 0; attempt < attempts; attempt++ {
		if err := sleep(ctx, delay); err != nil {
			return entity.ConvergencePending, last
		}

		last = query(ctx)
		switch last.ActiveState {
		case target:
			return entity.ConvergenceConverged, last
		case entity.StateFailed, entity.StateInvalid:
			return entity.ConvergenceFailed, last
		}

		delay = p.next(delay)
	}

	return entity.ConvergencePending, last
}

func (p Poller) next(d time.Duration) time.Duration {
	if p.Multiplier > 1 {
		d = time.Duration(float64(d) * p.Multiplier)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
