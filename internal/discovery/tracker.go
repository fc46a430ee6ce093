package discovery

import (
	"net/netip"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/mdnswatch/internal/freshness"
	"github.com/muurk/mdnswatch/internal/logging"
)

// sink is what the Finder routes events into.
type sink interface {
	Discovered(ev InstanceEvent)
	Shutdown(ev InstanceEvent)
	AnswerReceived(ev AnswerEvent)
	SweepExpired()
}

// Tracker maintains the matched hosts for one search profile.
type Tracker struct {
	profile       SearchProfile
	key           string
	ignoreMachine string
	log           *zap.Logger
	agg           *aggregate[MatchedHost]

	selectMu sync.RWMutex
	onSelect []func(MatchedHost)
}

func newTracker(profile SearchProfile, o *options) *Tracker {
	t := &Tracker{
		profile: profile,
		key:     profile.Key(),
		log:     o.logger.With(zap.String("service", profile.Key())),
	}
	if !profile.AllowSelf {
		t.ignoreMachine = o.machineName
	}
	table := freshness.New(freshness.WithClock(o.clock))
	t.agg = newAggregate(table, o.staleAfter, func(key string, meta hostMeta, addrs []netip.Addr) MatchedHost {
		return MatchedHost{
			Instance:  key,
			HostName:  meta.hostName,
			Port:      meta.port,
			Addresses: addrs,
		}
	})
	t.agg.onChange(func(_, next []MatchedHost) {
		o.metrics.SetHosts(t.key, len(next))
		t.log.Debug("Matched hosts changed", zap.Int("hosts", len(next)))
	})
	return t
}

// Profile returns the search profile the tracker was built for.
func (t *Tracker) Profile() SearchProfile {
	return t.profile
}

// Key returns the "_service._proto" routing key.
func (t *Tracker) Key() string {
	return t.key
}

// Discovered handles a found event for this service type.
func (t *Tracker) Discovered(ev InstanceEvent) {
	msg := ev.Message
	key := InstanceKey(ev.InstanceName)
	if key == "" || msg.HostName == "" || len(msg.Addresses) == 0 {
		return
	}
	if t.ignoreMachine != "" && strings.EqualFold(firstLabel(msg.HostName), t.ignoreMachine) {
		return
	}
	meta := hostMeta{hostName: LabelsToHostName(msg.HostName), port: msg.Port}
	if t.agg.discovered(key, meta, msg.Addresses) {
		t.log.Info("Service instance discovered",
			zap.String("instance", key),
			zap.String("host", meta.hostName),
			logging.Addrs("addresses", msg.Addresses),
		)
	}
}

// Shutdown removes the whole host named by the goodbye, even if some of its
// addresses are still fresh, since the protocol does not promise one goodbye
// per address. When the name is unknown the host owning a carried address is
// removed instead, unless that address is shared with other hosts.
func (t *Tracker) Shutdown(ev InstanceEvent) {
	if t.agg.shutdown(InstanceKey(ev.InstanceName), ev.Message.Addresses) {
		t.log.Info("Service instance shut down",
			zap.String("instance", ev.InstanceName),
			zap.Stringer("remote", ev.Remote),
		)
	}
}

// AnswerReceived refreshes addresses of hosts already known. Unsolicited
// answers never create hosts.
func (t *Tracker) AnswerReceived(ev AnswerEvent) {
	t.agg.refresh(ev.Message.Addresses)
}

// SweepExpired evicts addresses that have not been seen within the
// staleness threshold.
func (t *Tracker) SweepExpired() {
	t.agg.sweep()
}

// Snapshot returns the current matched hosts ordered by instance name.
// The slice is shared and must not be modified.
func (t *Tracker) Snapshot() []MatchedHost {
	return t.agg.snapshot()
}

// Subscribe returns a channel delivering the latest snapshot after every
// change, primed with the current one. Call cancel to stop.
func (t *Tracker) Subscribe() (updates <-chan []MatchedHost, cancel func()) {
	return t.agg.subscribe()
}

// OnSelect registers fn to be called when a UI selects a host.
func (t *Tracker) OnSelect(fn func(MatchedHost)) {
	t.selectMu.Lock()
	defer t.selectMu.Unlock()
	t.onSelect = append(t.onSelect, fn)
}

// Select raises the "selected" notification for host.
func (t *Tracker) Select(host MatchedHost) {
	t.selectMu.RLock()
	handlers := t.onSelect
	t.selectMu.RUnlock()

	t.log.Info("Service selected", zap.String("instance", host.Instance))
	for _, fn := range handlers {
		fn(host)
	}
}
