package systemd

import (
	"context"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"
	notifier_impl "github.com/desain-gratis/common/lib/notifier/impl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherRun(t *testing.T) {
	topic := notifier_impl.NewStandardTopic()
	msgs := listen(t, topic)

	src := newFakeSource(
		dbus.UnitStatus{Name: "sshd.service", LoadState: "loaded", ActiveState: "active", SubState: "running"},
		dbus.UnitStatus{Name: "dbus.socket", LoadState: "loaded", ActiveState: "active", SubState: "running"},
	)
	w := NewWatcher(topic, time.Millisecond)
	w.dial = flakyDial(src, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	require.Eventually(t, func() bool { return len(w.Snapshot()) == 1 }, 5*time.Second, 10*time.Millisecond)

	src.changes <- map[string]*dbus.UnitStatus{
		"sshd.service": {Name: "sshd.service", LoadState: "loaded", ActiveState: "deactivating", SubState: "stop-sigterm"},
	}

	row, ok := receive(t, msgs).(Row[DBusUnitStatus])
	require.True(t, ok)
	assert.Equal(t, RowUnit, row.Name)
	assert.Equal(t, "sshd.service", row.Key)
	assert.Equal(t, "deactivating", row.Data.ActiveState)

	src.changes <- map[string]*dbus.UnitStatus{"sshd.service": nil}

	row, ok = receive(t, msgs).(Row[DBusUnitStatus])
	require.True(t, ok)
	assert.Equal(t, RowUnitRemoved, row.Name)
	assert.Empty(t, w.Snapshot())

	cancel()
	require.NoError(t, <-done)
	assert.True(t, src.isClosed())
}

func TestWatcherKeepRestarts(t *testing.T) {
	src := newFakeSource(
		dbus.UnitStatus{Name: "cron.service", LoadState: "loaded", ActiveState: "active", SubState: "running"},
	)
	w := NewWatcher(nil, time.Millisecond)
	w.dial = flakyDial(src, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Keep(ctx, time.Millisecond)
	}()

	require.Eventually(t, func() bool { return len(w.Snapshot()) == 1 }, 5*time.Second, 10*time.Millisecond)

	// a nil topic still updates the snapshot
	src.changes <- map[string]*dbus.UnitStatus{
		"cron.service": {Name: "cron.service", LoadState: "loaded", ActiveState: "failed", SubState: "failed"},
	}
	require.Eventually(t, func() bool {
		s := w.Snapshot()
		return len(s) == 1 && s[0].ActiveState == "failed"
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestWatcherKeepStopsOnCancel(t *testing.T) {
	w := NewWatcher(nil, time.Millisecond)
	w.dial = flakyDial(nil, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Keep(ctx, time.Hour)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher kept retrying after cancel")
	}
}
