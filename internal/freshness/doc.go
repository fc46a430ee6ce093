// Package freshness tracks when network addresses were last seen for a key.
//
// A Table maps a key (typically a DNS-SD service instance name) to the set of
// addresses announced for it, each stamped with the time of its most recent
// sighting. Sweep evicts addresses whose last sighting is older than a given
// age and reports the keys that were left without any address.
//
// Keys are spread over independently locked shards, so concurrent callers
// working on unrelated keys do not contend. Every operation on a single key is
// linearizable. A reverse index from address to owning keys lets callers
// resolve which keys an address belongs to. Several keys may share one
// address, as with two service instances on the same machine.
//
// Time is read from a clock.Clock so tests can drive expiry deterministically:
//
//	mock := clock.NewMock()
//	table := freshness.New(freshness.WithClock(mock))
//	table.Touch("a._svc._tcp.local.", addr)
//	mock.Add(20 * time.Second)
//	emptied, _ := table.Sweep(15 * time.Second) // ["a._svc._tcp.local."]
package freshness
