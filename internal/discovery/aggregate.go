package discovery

import (
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/muurk/mdnswatch/internal/freshness"
)

// hostMeta is the per-instance data that does not change once a host is known.
type hostMeta struct {
	hostName    string
	port        int
	machineName string
}

// aggregate is the state machine shared by Tracker and ConflictTracker.
//
// Address timestamps live in the freshness table and are mutated without
// holding mu. Host creation, removal and publication happen under mu, and
// removal re-checks the table so a host is only dropped once it really has no
// fresh address left.
type aggregate[T snapshotItem[T]] struct {
	table      *freshness.Table
	staleAfter time.Duration
	build      func(key string, meta hostMeta, addrs []netip.Addr) T
	changed    []func(prev, next []T)

	mu    sync.Mutex
	hosts map[string]hostMeta
	feed  feed[T]
}

func newAggregate[T snapshotItem[T]](table *freshness.Table, staleAfter time.Duration, build func(string, hostMeta, []netip.Addr) T) *aggregate[T] {
	return &aggregate[T]{
		table:      table,
		staleAfter: staleAfter,
		build:      build,
		hosts:      make(map[string]hostMeta),
	}
}

// onChange registers fn to run, under the aggregate lock, after every
// published change. fn must not block or call back into the aggregate.
func (a *aggregate[T]) onChange(fn func(prev, next []T)) {
	a.changed = append(a.changed, fn)
}

// discovered touches every address under key, creating the host on first
// sighting. It returns true when the published snapshot changed.
func (a *aggregate[T]) discovered(key string, meta hostMeta, addrs []netip.Addr) bool {
	membership := false
	for _, addr := range addrs {
		if a.table.Touch(key, addr) {
			membership = true
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.hosts[key]; !ok {
		if a.table.Len(key) == 0 {
			// swept between the touch and here
			return false
		}
		a.hosts[key] = meta
		membership = true
	}
	if !membership {
		return false
	}
	return a.publishLocked()
}

// shutdown removes the host named by key when it is known. Otherwise it
// removes the hosts owning addrs, skipping addresses shared by several hosts
// since those do not say which instance left.
func (a *aggregate[T]) shutdown(key string, addrs []netip.Addr) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, known := a.hosts[key]; known && key != "" {
		a.removeLocked(key)
		return a.publishLocked()
	}

	removed := false
	for _, addr := range addrs {
		owners := a.table.Owners(addr)
		if len(owners) != 1 {
			continue
		}
		if _, known := a.hosts[owners[0]]; known {
			a.removeLocked(owners[0])
			removed = true
		}
	}
	if !removed {
		return false
	}
	return a.publishLocked()
}

// removeLocked drops key and its addresses. Must hold mu.
func (a *aggregate[T]) removeLocked(key string) {
	a.table.RemoveKey(key)
	delete(a.hosts, key)
}

// refresh bumps timestamps of addresses held by known hosts, under every
// host holding them. It never creates hosts and never publishes. It returns
// the number of host addresses refreshed.
func (a *aggregate[T]) refresh(addrs []netip.Addr) int {
	n := 0
	for _, addr := range addrs {
		for _, key := range a.table.Refresh(addr) {
			if a.known(key) {
				n++
			}
		}
	}
	return n
}

func (a *aggregate[T]) known(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.hosts[key]
	return ok
}

// sweep evicts stale addresses and hosts left without any, publishing at most
// once.
func (a *aggregate[T]) sweep() bool {
	emptied, expired := a.table.Sweep(a.staleAfter)

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, key := range emptied {
		if a.table.Len(key) > 0 {
			continue
		}
		if _, ok := a.hosts[key]; ok {
			delete(a.hosts, key)
			expired++
		}
	}
	if expired == 0 {
		return false
	}
	return a.publishLocked()
}

func (a *aggregate[T]) snapshot() []T {
	return a.feed.load()
}

func (a *aggregate[T]) subscribe() (<-chan []T, func()) {
	return a.feed.subscribe()
}

// publishLocked rebuilds the snapshot in key order. Must hold mu.
func (a *aggregate[T]) publishLocked() bool {
	keys := make([]string, 0, len(a.hosts))
	for key := range a.hosts {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	next := make([]T, 0, len(keys))
	for _, key := range keys {
		addrs := a.table.Addresses(key)
		if len(addrs) == 0 {
			continue
		}
		next = append(next, a.build(key, a.hosts[key], addrs))
	}

	prev := a.feed.load()
	if !a.feed.publish(next) {
		return false
	}
	for _, fn := range a.changed {
		fn(prev, next)
	}
	return true
}
