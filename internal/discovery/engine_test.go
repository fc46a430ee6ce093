package discovery

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeEngine records control calls and lets tests inject events.
type fakeEngine struct {
	mu           sync.Mutex
	listeners    []Listener
	queries      []string
	queryErr     error
	advertiseErr error
	unadvertErr  error
	advertised   int
	announced    int
	unadvertised int
	closed       int
}

func (e *fakeEngine) AddListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

func (e *fakeEngine) QueryInstances(_ context.Context, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, key)
	return e.queryErr
}

func (e *fakeEngine) Advertise(*ServiceProfile) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advertised++
	return e.advertiseErr
}

func (e *fakeEngine) Announce(*ServiceProfile) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.announced++
	return nil
}

func (e *fakeEngine) Unadvertise(*ServiceProfile) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unadvertised++
	return e.unadvertErr
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	return nil
}

func (e *fakeEngine) emitFound(ev InstanceEvent) {
	for _, l := range e.snapshotListeners() {
		l.InstanceDiscovered(ev)
	}
}

func (e *fakeEngine) snapshotListeners() []Listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Listener(nil), e.listeners...)
}

func (e *fakeEngine) queryCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queries)
}

func (e *fakeEngine) counts() (advertised, announced, unadvertised, closed int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advertised, e.announced, e.unadvertised, e.closed
}

func addrs(ss ...string) []netip.Addr {
	out := make([]netip.Addr, len(ss))
	for i, s := range ss {
		out[i] = netip.MustParseAddr(s)
	}
	return out
}

func found(instance, host string, port int, ips ...string) InstanceEvent {
	a := addrs(ips...)
	ev := InstanceEvent{
		InstanceName: instance,
		Message: Message{
			Names:     []string{instance},
			HostName:  host,
			Port:      port,
			Addresses: a,
		},
	}
	if len(a) > 0 {
		ev.Remote = netip.AddrPortFrom(a[0], 5353)
	}
	return ev
}

func withText(ev InstanceEvent, txt ...string) InstanceEvent {
	ev.Message.Text = txt
	return ev
}

func goodbye(instance string, ips ...string) InstanceEvent {
	return InstanceEvent{
		InstanceName: instance,
		Message:      Message{Names: []string{instance}, Addresses: addrs(ips...)},
	}
}

func answer(name string, ips ...string) AnswerEvent {
	return AnswerEvent{Message: Message{Names: []string{name}, Addresses: addrs(ips...)}}
}

// testOptions returns options with a mock clock and an observed logger.
func testOptions(t *testing.T, extra ...Option) (*options, *clock.Mock, *observer.ObservedLogs) {
	t.Helper()
	mock := clock.NewMock()
	core, logs := observer.New(zapcore.DebugLevel)
	opts := append([]Option{
		WithClock(mock),
		WithLogger(zap.New(core)),
		WithMachineName("NODE1"),
	}, extra...)
	return applyOptions(opts), mock, logs
}

// next reads one snapshot from ch or fails.
func next[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}

// quiet asserts that nothing arrives on ch.
func quiet[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected snapshot %v", v)
	case <-time.After(20 * time.Millisecond):
	}
}
