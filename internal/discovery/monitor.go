package discovery

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ClosableEngine is an Engine whose resources must be released once.
type ClosableEngine interface {
	Engine
	io.Closer
}

// EngineFactory creates the engine a ConflictMonitor runs on.
type EngineFactory func() (ClosableEngine, error)

// ConflictMonitor advertises this process's service and watches for other
// machines claiming the same identity, optionally alongside other searches.
// Advertising and searching share one engine so they use the same multicast
// channel.
type ConflictMonitor struct {
	advertiser *Advertiser
	finder     *Finder
}

// NewConflictMonitor builds the advertiser and a finder tracking others plus
// the conflict identity derived from props.
func NewConflictMonitor(props InstanceProperties, others []SearchProfile, opts ...Option) (*ConflictMonitor, error) {
	advertiser, err := NewAdvertiser(props, opts...)
	if err != nil {
		return nil, err
	}
	finderOpts := append(append([]Option{}, opts...), WithConflictIdentity(props.SearchProfile()))
	finder, err := NewFinder(others, finderOpts...)
	if err != nil {
		return nil, err
	}
	return &ConflictMonitor{advertiser: advertiser, finder: finder}, nil
}

// Advertiser returns the advertisement lifecycle.
func (m *ConflictMonitor) Advertiser() *Advertiser {
	return m.advertiser
}

// Finder returns the dispatcher, for access to the other search trackers.
func (m *ConflictMonitor) Finder() *Finder {
	return m.finder
}

// Conflicts returns the conflict tracker.
func (m *ConflictMonitor) Conflicts() *ConflictTracker {
	return m.finder.Conflicts()
}

// Run searches and advertises on engine until ctx is cancelled and both
// tasks have exited. The engine stays owned by the caller.
func (m *ConflictMonitor) Run(ctx context.Context, engine Engine) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.finder.Run(ctx, engine)
	})
	g.Go(func() error {
		return m.advertiser.AdvertiseUntilCancelled(ctx, engine)
	})
	return g.Wait()
}

// Serve creates an engine, runs the monitor on it and closes it exactly once
// after both tasks have exited.
func (m *ConflictMonitor) Serve(ctx context.Context, newEngine EngineFactory) (err error) {
	engine, err := newEngine()
	if err != nil {
		return fmt.Errorf("failed to create discovery engine: %w", err)
	}
	defer func() {
		err = multierr.Append(err, engine.Close())
	}()
	return m.Run(ctx, engine)
}

// Start runs Serve in the background.
func (m *ConflictMonitor) Start(ctx context.Context, newEngine EngineFactory) *Handle {
	return goHandle(func() error {
		return m.Serve(ctx, newEngine)
	})
}
