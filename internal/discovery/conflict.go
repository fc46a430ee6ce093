package discovery

import (
	"net/netip"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/mdnswatch/internal/freshness"
	"github.com/muurk/mdnswatch/internal/logging"
)

// ConflictSignal is raised when a naming conflict appears, changes, or clears.
type ConflictSignal struct {
	// Active is true while at least one other machine claims our identity
	Active bool

	// Hosts is the conflicting snapshot that triggered the signal
	Hosts []ConflictingHost
}

// ConflictTracker watches for other machines advertising this process's own
// service type. Self is always excluded.
type ConflictTracker struct {
	key         string
	machineName string
	log         *zap.Logger
	agg         *aggregate[ConflictingHost]

	sigMu    sync.RWMutex
	handlers []func(ConflictSignal)
}

func newConflictTracker(identity SearchProfile, o *options) *ConflictTracker {
	c := &ConflictTracker{
		key:         identity.Key(),
		machineName: o.machineName,
		log:         o.logger.With(zap.String("service", identity.Key())),
	}
	table := freshness.New(freshness.WithClock(o.clock))
	c.agg = newAggregate(table, o.staleAfter, func(key string, meta hostMeta, addrs []netip.Addr) ConflictingHost {
		return ConflictingHost{
			Instance:    key,
			MachineName: meta.machineName,
			HostName:    meta.hostName,
			Port:        meta.port,
			Addresses:   addrs,
		}
	})
	c.agg.onChange(func(prev, next []ConflictingHost) {
		o.metrics.SetConflicts(len(next))
		c.published(prev, next)
	})
	return c
}

// Key returns the routing key of the advertised service.
func (c *ConflictTracker) Key() string {
	return c.key
}

// OnSignal registers fn to receive conflict signals. fn runs synchronously
// with publication and must not block.
func (c *ConflictTracker) OnSignal(fn func(ConflictSignal)) {
	c.sigMu.Lock()
	defer c.sigMu.Unlock()
	c.handlers = append(c.handlers, fn)
}

// Discovered adds the host when its machine identity differs from ours.
func (c *ConflictTracker) Discovered(ev InstanceEvent) {
	msg := ev.Message
	key := InstanceKey(ev.InstanceName)
	if key == "" || msg.HostName == "" || len(msg.Addresses) == 0 {
		return
	}
	identity := machineIdentity(msg)
	if identity == "" || strings.EqualFold(identity, c.machineName) {
		return
	}
	c.agg.discovered(key, hostMeta{
		hostName:    LabelsToHostName(msg.HostName),
		port:        msg.Port,
		machineName: identity,
	}, msg.Addresses)
}

// Shutdown removes the host named by the goodbye, or failing that the sole
// owner of a carried address.
func (c *ConflictTracker) Shutdown(ev InstanceEvent) {
	c.agg.shutdown(InstanceKey(ev.InstanceName), ev.Message.Addresses)
}

// AnswerReceived refreshes already known conflicting hosts.
func (c *ConflictTracker) AnswerReceived(ev AnswerEvent) {
	c.agg.refresh(ev.Message.Addresses)
}

// SweepExpired evicts stale addresses and hosts.
func (c *ConflictTracker) SweepExpired() {
	c.agg.sweep()
}

// Snapshot returns the current conflicting hosts ordered by instance name.
func (c *ConflictTracker) Snapshot() []ConflictingHost {
	return c.agg.snapshot()
}

// Subscribe returns a channel delivering the latest conflict snapshot.
func (c *ConflictTracker) Subscribe() (updates <-chan []ConflictingHost, cancel func()) {
	return c.agg.subscribe()
}

// Conflicted reports whether a conflict is currently active.
func (c *ConflictTracker) Conflicted() bool {
	return len(c.agg.snapshot()) > 0
}

// published runs under the aggregate lock for every content change.
func (c *ConflictTracker) published(prev, next []ConflictingHost) {
	var sig ConflictSignal
	switch {
	case len(next) > 0:
		names := make([]string, len(next))
		for i, h := range next {
			names[i] = h.MachineName
		}
		c.log.Warn("Another machine is advertising this service",
			zap.Strings("machines", names),
			zap.Int("conflicts", len(next)),
		)
		sig = ConflictSignal{Active: true, Hosts: next}
	case len(prev) > 0:
		c.log.Info("Service naming conflict cleared",
			logging.Addrs("last_addresses", prev[0].Addresses),
		)
		sig = ConflictSignal{Active: false, Hosts: next}
	default:
		return
	}

	c.sigMu.RLock()
	handlers := c.handlers
	c.sigMu.RUnlock()
	for _, fn := range handlers {
		fn(sig)
	}
}

// machineIdentity prefers the machineName TXT property and falls back to the
// first label of the host name.
func machineIdentity(msg Message) string {
	if name, ok := msg.Property(TxtMachineName); ok && name != "" {
		return name
	}
	return firstLabel(msg.HostName)
}
