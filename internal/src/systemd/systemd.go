package systemd

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/desain-gratis/common/lib/notifier"
	"github.com/rs/zerolog/log"
)

// unitSource is what the watcher needs from a bus connection.
type unitSource interface {
	ListUnitsContext(ctx context.Context) ([]dbus.UnitStatus, error)
	SubscribeUnits(interval time.Duration) (<-chan map[string]*dbus.UnitStatus, <-chan error)
	Close()
}

// Watcher follows unit state changes and broadcasts them on a topic. It keeps the
// latest status of every watched unit so new stream clients get a full list first.
type Watcher struct {
	topic    notifier.Topic
	interval time.Duration
	dial     func(ctx context.Context) (unitSource, error)

	mu     sync.RWMutex
	status map[string]*DBusUnitStatus
}

func NewWatcher(topic notifier.Topic, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		topic:    topic,
		interval: interval,
		dial: func(ctx context.Context) (unitSource, error) {
			conn, err := dbus.NewSystemConnectionContext(ctx)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		status: make(map[string]*DBusUnitStatus),
	}
}

// only services are worth streaming
func watched(name string) bool {
	return strings.HasSuffix(name, ".service")
}

// Run blocks until ctx is done or the subscription fails to start.
func (w *Watcher) Run(ctx context.Context) error {
	conn, err := w.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	units, err := conn.ListUnitsContext(ctx)
	if err != nil {
		return err
	}

	initial := make(map[string]*dbus.UnitStatus, len(units))
	for i := range units {
		initial[units[i].Name] = &units[i]
	}
	w.apply(initial)
	log.Info().Msgf("watching %v services", len(w.Snapshot()))

	changes, errChan := conn.SubscribeUnits(w.interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case changedUnits, ok := <-changes:
			if !ok {
				return errors.New("unit subscription closed")
			}
			for _, row := range w.apply(changedUnits) {
				if w.topic != nil {
					w.topic.Broadcast(ctx, row)
				}
			}
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			log.Err(err).Msgf("error received from unit subscription")
		}
	}
}

// Keep runs the watcher until ctx is done, starting it again after delay whenever
// the bus connection fails, e.g. when the bot starts before dbus does.
func (w *Watcher) Keep(ctx context.Context, delay time.Duration) {
	for {
		err := w.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Err(err).Msgf("unit watcher stopped, restarting in %v", delay)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// apply updates the snapshot and returns the rows to broadcast. A nil status
// means the unit went away.
func (w *Watcher) apply(changed map[string]*dbus.UnitStatus) []Row[DBusUnitStatus] {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows := make([]Row[DBusUnitStatus], 0, len(changed))
	for name, unit := range changed {
		if !watched(name) {
			continue
		}

		if unit == nil {
			if _, ok := w.status[name]; !ok {
				continue
			}
			delete(w.status, name)
			rows = append(rows, Row[DBusUnitStatus]{
				Name: RowUnitRemoved,
				Key:  name,
				Data: DBusUnitStatus{Name: name},
			})
			continue
		}

		s := fromDBus(*unit)
		w.status[name] = &s
		rows = append(rows, Row[DBusUnitStatus]{Name: RowUnit, Key: name, Data: s})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

// Snapshot returns the latest known status of every watched unit, sorted by name.
func (w *Watcher) Snapshot() []DBusUnitStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	result := make([]DBusUnitStatus, 0, len(w.status))
	for _, s := range w.status {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
