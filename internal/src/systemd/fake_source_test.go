package systemd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/desain-gratis/common/lib/notifier"
	notifier_impl "github.com/desain-gratis/common/lib/notifier/impl"
	"github.com/stretchr/testify/require"
)

// fakeSource feeds the watcher from channels the test writes to.
type fakeSource struct {
	units   []dbus.UnitStatus
	changes chan map[string]*dbus.UnitStatus
	errs    chan error

	mu     sync.Mutex
	closed bool
}

func newFakeSource(units ...dbus.UnitStatus) *fakeSource {
	return &fakeSource{
		units:   units,
		changes: make(chan map[string]*dbus.UnitStatus),
		errs:    make(chan error),
	}
}

func (s *fakeSource) ListUnitsContext(ctx context.Context) ([]dbus.UnitStatus, error) {
	return s.units, nil
}

func (s *fakeSource) SubscribeUnits(interval time.Duration) (<-chan map[string]*dbus.UnitStatus, <-chan error) {
	return s.changes, s.errs
}

func (s *fakeSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// flakyDial fails the first n dials.
func flakyDial(src *fakeSource, n int) func(ctx context.Context) (unitSource, error) {
	var mu sync.Mutex
	return func(ctx context.Context) (unitSource, error) {
		mu.Lock()
		defer mu.Unlock()
		if n > 0 {
			n--
			return nil, errors.New("dial unix /run/dbus/system_bus_socket: connect: no such file or directory")
		}
		return src, nil
	}
}

// listen subscribes to topic and forwards every message until the test ends.
func listen(t *testing.T, topic notifier.Topic) <-chan any {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := topic.Subscribe(ctx, notifier_impl.NewStandardSubscriber(nil))
	require.NoError(t, err)
	sub.Start()

	out := make(chan any, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Listen() {
			select {
			case out <- msg:
			default:
			}
		}
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})
	return out
}

func receive(t *testing.T, msgs <-chan any) any {
	t.Helper()
	select {
	case msg := <-msgs:
		return msg
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no message broadcast")
	}
	return nil
}
