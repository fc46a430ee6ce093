package discovery

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/mdnswatch/internal/metrics"
)

// Finder owns one Tracker per search profile, plus an optional
// ConflictTracker, and routes engine events to them by service type.
type Finder struct {
	opts      *options
	log       *zap.Logger
	metrics   *metrics.Metrics
	trackers  map[string]*Tracker
	conflicts *ConflictTracker
	routes    map[string]sink
	keys      []string

	attachMu sync.Mutex
	attached map[Engine]struct{}
}

// NewFinder validates the profiles and builds the trackers. Nothing runs
// until Run or Start is called.
func NewFinder(profiles []SearchProfile, opts ...Option) (*Finder, error) {
	o := applyOptions(opts)
	if len(profiles) == 0 && o.conflict == nil {
		return nil, ErrNoProfiles
	}

	f := &Finder{
		opts:     o,
		log:      o.logger,
		metrics:  o.metrics,
		trackers: make(map[string]*Tracker, len(profiles)),
		routes:   make(map[string]sink, len(profiles)+1),
		attached: make(map[Engine]struct{}),
	}

	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		key := p.Key()
		if _, dup := f.routes[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProfile, key)
		}
		t := newTracker(p, o)
		f.trackers[key] = t
		f.routes[key] = t
	}

	if o.conflict != nil {
		if err := o.conflict.Validate(); err != nil {
			return nil, fmt.Errorf("conflict identity: %w", err)
		}
		key := o.conflict.Key()
		if _, dup := f.routes[key]; dup {
			return nil, fmt.Errorf("%w: %s is both searched for and conflict-tracked", ErrDuplicateProfile, key)
		}
		f.conflicts = newConflictTracker(*o.conflict, o)
		f.routes[key] = f.conflicts
	}

	for key := range f.routes {
		f.keys = append(f.keys, key)
	}
	slices.Sort(f.keys)
	return f, nil
}

// Keys returns every routing key queried each poll cycle, sorted.
func (f *Finder) Keys() []string {
	return slices.Clone(f.keys)
}

// Tracker returns the tracker for a profile's service type.
func (f *Finder) Tracker(p SearchProfile) (*Tracker, bool) {
	t, ok := f.trackers[p.Key()]
	return t, ok
}

// Trackers returns all search trackers ordered by key.
func (f *Finder) Trackers() []*Tracker {
	out := make([]*Tracker, 0, len(f.trackers))
	for _, key := range f.keys {
		if t, ok := f.trackers[key]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Conflicts returns the conflict tracker, or nil when none was configured.
func (f *Finder) Conflicts() *ConflictTracker {
	return f.conflicts
}

// InstanceDiscovered implements Listener.
func (f *Finder) InstanceDiscovered(ev InstanceEvent) {
	if s := f.route("discovered", ev.InstanceName); s != nil {
		f.log.Debug("Service instance found",
			zap.Stringer("remote", ev.Remote),
			zap.String("name", ev.InstanceName),
		)
		s.Discovered(ev)
	}
}

// InstanceShutdown implements Listener.
func (f *Finder) InstanceShutdown(ev InstanceEvent) {
	if s := f.route("shutdown", ev.InstanceName); s != nil {
		f.log.Debug("Service instance goodbye",
			zap.Stringer("remote", ev.Remote),
			zap.String("name", ev.InstanceName),
		)
		s.Shutdown(ev)
	}
}

// AnswerReceived implements Listener.
func (f *Finder) AnswerReceived(ev AnswerEvent) {
	key, ok := RoutingKeyFromMessage(ev.Message)
	if !ok {
		f.metrics.EventDropped("answer")
		return
	}
	s, ok := f.routes[key]
	if !ok {
		f.metrics.EventDropped("answer")
		return
	}
	f.metrics.EventRouted("answer", key)
	s.AnswerReceived(ev)
}

func (f *Finder) route(kind, instanceName string) sink {
	key, ok := RoutingKeyFromInstance(instanceName)
	if !ok {
		f.metrics.EventDropped(kind)
		return nil
	}
	s, ok := f.routes[key]
	if !ok {
		f.metrics.EventDropped(kind)
		return nil
	}
	f.metrics.EventRouted(kind, key)
	return s
}

// Run queries every key, waits one poll interval (or until ctx is done) and
// sweeps every tracker, until ctx is cancelled. Query failures are logged
// and the loop carries on. Run returns nil on cancellation; the engine stays
// owned by the caller. Running again on the same engine reuses the listener
// registered the first time. Engines must be comparable (pointer) types.
func (f *Finder) Run(ctx context.Context, engine Engine) error {
	f.attach(engine)
	f.log.Info("Searching for services",
		zap.Strings("services", f.keys),
		zap.Duration("poll_interval", f.opts.pollInterval),
		zap.Duration("stale_after", f.opts.staleAfter),
	)

	for ctx.Err() == nil {
		for _, key := range f.keys {
			if err := engine.QueryInstances(ctx, key); err != nil {
				f.metrics.QueryFailed(key)
				f.log.Debug("Service query failed", zap.String("service", key), zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
		case <-f.opts.clock.After(f.opts.pollInterval):
		}

		f.SweepExpired()
	}

	f.log.Info("Stopped searching for services")
	return nil
}

// attach registers f with engine once per engine.
func (f *Finder) attach(engine Engine) {
	f.attachMu.Lock()
	defer f.attachMu.Unlock()
	if _, ok := f.attached[engine]; ok {
		return
	}
	f.attached[engine] = struct{}{}
	engine.AddListener(f)
}

// SweepExpired sweeps every tracker once.
func (f *Finder) SweepExpired() {
	for _, key := range f.keys {
		f.routes[key].SweepExpired()
	}
	f.metrics.SweepCompleted()
}

// Start runs the finder in the background. The returned handle must be
// waited on after ctx is cancelled.
func (f *Finder) Start(ctx context.Context, engine Engine) *Handle {
	return goHandle(func() error {
		return f.Run(ctx, engine)
	})
}

// Handle joins a background task.
type Handle struct {
	done chan struct{}
	err  error
}

func goHandle(fn func() error) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.err = fn()
	}()
	return h
}

// Done is closed when the task has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task exits and returns its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}
