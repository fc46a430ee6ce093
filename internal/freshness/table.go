package freshness

import (
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cespare/xxhash/v2"
)

// DefaultShards is the number of key shards used when none is configured.
const DefaultShards = 16

// Table is a concurrent key -> (address -> last seen) map.
// The zero value is not usable; create one with New.
type Table struct {
	clock  clock.Clock
	shards []*keyShard
	owners []*ownerShard
}

type keyShard struct {
	mu   sync.Mutex
	keys map[string]map[netip.Addr]time.Time
}

type ownerShard struct {
	mu     sync.Mutex
	owners map[netip.Addr]map[string]struct{}
}

// Option configures a Table.
type Option func(*Table)

// WithClock sets the time source. Defaults to the wall clock.
func WithClock(c clock.Clock) Option {
	return func(t *Table) {
		t.clock = c
	}
}

// WithShards sets the number of shards. Values below one are ignored.
func WithShards(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.shards = make([]*keyShard, n)
			t.owners = make([]*ownerShard, n)
		}
	}
}

// New creates an empty Table.
func New(opts ...Option) *Table {
	t := &Table{
		clock:  clock.New(),
		shards: make([]*keyShard, DefaultShards),
		owners: make([]*ownerShard, DefaultShards),
	}
	for _, opt := range opts {
		opt(t)
	}
	for i := range t.shards {
		t.shards[i] = &keyShard{keys: make(map[string]map[netip.Addr]time.Time)}
		t.owners[i] = &ownerShard{owners: make(map[netip.Addr]map[string]struct{})}
	}
	return t
}

func (t *Table) shardFor(key string) *keyShard {
	return t.shards[xxhash.Sum64String(key)%uint64(len(t.shards))]
}

func (t *Table) ownerShardFor(addr netip.Addr) *ownerShard {
	b := addr.As16()
	return t.owners[xxhash.Sum64(b[:])%uint64(len(t.owners))]
}

// Touch records a sighting of addr for key and reports whether the pair was
// previously unseen. A touch never moves a timestamp backwards.
func (t *Table) Touch(key string, addr netip.Addr) bool {
	now := t.clock.Now()
	s := t.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	addrs, ok := s.keys[key]
	if !ok {
		addrs = make(map[netip.Addr]time.Time)
		s.keys[key] = addrs
	}
	last, seen := addrs[addr]
	if !seen || now.After(last) {
		addrs[addr] = now
	}
	t.setOwner(addr, key)
	return !seen
}

// Refresh updates the timestamp of addr under every key holding it and
// returns those keys in ascending order. It never creates an entry.
func (t *Table) Refresh(addr netip.Addr) []string {
	now := t.clock.Now()
	var refreshed []string
	for _, key := range t.Owners(addr) {
		if t.refreshKey(key, addr, now) {
			refreshed = append(refreshed, key)
		}
	}
	return refreshed
}

func (t *Table) refreshKey(key string, addr netip.Addr, now time.Time) bool {
	s := t.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	last, seen := s.keys[key][addr]
	if !seen {
		return false
	}
	if now.After(last) {
		s.keys[key][addr] = now
	}
	return true
}

// RemoveAddress removes addr from key and reports whether key is now empty.
// Removing the last address drops the key entirely.
func (t *Table) RemoveAddress(key string, addr netip.Addr) bool {
	s := t.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	addrs, ok := s.keys[key]
	if !ok {
		return true
	}
	if _, seen := addrs[addr]; seen {
		delete(addrs, addr)
		t.clearOwner(addr, key)
	}
	if len(addrs) == 0 {
		delete(s.keys, key)
		return true
	}
	return false
}

// RemoveKey drops key and all of its addresses, returning the removed addresses.
func (t *Table) RemoveKey(key string) []netip.Addr {
	s := t.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	addrs, ok := s.keys[key]
	if !ok {
		return nil
	}
	delete(s.keys, key)
	removed := make([]netip.Addr, 0, len(addrs))
	for addr := range addrs {
		t.clearOwner(addr, key)
		removed = append(removed, addr)
	}
	slices.SortFunc(removed, netip.Addr.Compare)
	return removed
}

// Sweep removes every address whose last sighting is maxAge or older.
// It returns the keys left without addresses and the number of addresses
// evicted in total.
func (t *Table) Sweep(maxAge time.Duration) (emptied []string, expired int) {
	now := t.clock.Now()
	for _, s := range t.shards {
		s.mu.Lock()
		for key, addrs := range s.keys {
			for addr, last := range addrs {
				if now.Sub(last) >= maxAge {
					delete(addrs, addr)
					t.clearOwner(addr, key)
					expired++
				}
			}
			if len(addrs) == 0 {
				delete(s.keys, key)
				emptied = append(emptied, key)
			}
		}
		s.mu.Unlock()
	}
	slices.Sort(emptied)
	return emptied, expired
}

// Owners returns every key currently holding addr, in ascending order.
func (t *Table) Owners(addr netip.Addr) []string {
	o := t.ownerShardFor(addr)
	o.mu.Lock()
	defer o.mu.Unlock()

	keys := make([]string, 0, len(o.owners[addr]))
	for key := range o.owners[addr] {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Addresses returns the addresses currently held for key in ascending order.
func (t *Table) Addresses(key string) []netip.Addr {
	s := t.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	addrs := s.keys[key]
	if len(addrs) == 0 {
		return nil
	}
	out := make([]netip.Addr, 0, len(addrs))
	for addr := range addrs {
		out = append(out, addr)
	}
	slices.SortFunc(out, netip.Addr.Compare)
	return out
}

// LastSeen returns the timestamp of the most recent sighting of addr under key.
func (t *Table) LastSeen(key string, addr netip.Addr) (time.Time, bool) {
	s := t.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.keys[key][addr]
	return last, ok
}

// Len returns the number of addresses held for key.
func (t *Table) Len(key string) int {
	s := t.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.keys[key])
}

// setOwner must be called with the key shard locked.
func (t *Table) setOwner(addr netip.Addr, key string) {
	o := t.ownerShardFor(addr)
	o.mu.Lock()
	keys, ok := o.owners[addr]
	if !ok {
		keys = make(map[string]struct{}, 1)
		o.owners[addr] = keys
	}
	keys[key] = struct{}{}
	o.mu.Unlock()
}

// clearOwner drops key from the owners of addr. Must be called with the key
// shard locked.
func (t *Table) clearOwner(addr netip.Addr, key string) {
	o := t.ownerShardFor(addr)
	o.mu.Lock()
	if keys, ok := o.owners[addr]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(o.owners, addr)
		}
	}
	o.mu.Unlock()
}
