package discovery

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/muurk/mdnswatch/internal/logging"
	"github.com/muurk/mdnswatch/internal/metrics"
)

const (
	// DefaultPollInterval is how often queries are re-issued and trackers swept
	DefaultPollInterval = 10 * time.Second

	// DefaultStaleAfter is the age at which an address is evicted. It is longer
	// than the poll interval so one missed cycle does not drop a host.
	DefaultStaleAfter = 15 * time.Second
)

type options struct {
	logger       *zap.Logger
	clock        clock.Clock
	pollInterval time.Duration
	staleAfter   time.Duration
	machineName  string
	conflict     *SearchProfile
	metrics      *metrics.Metrics
}

// Option configures a Finder, Advertiser or ConflictMonitor.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger:       logging.Named("discovery"),
		clock:        clock.New(),
		pollInterval: DefaultPollInterval,
		staleAfter:   DefaultStaleAfter,
		machineName:  MachineName(),
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger used for discovery events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the time source for freshness and polling.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithPollInterval sets the query/sweep cycle length.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithStaleAfter sets the staleness threshold.
func WithStaleAfter(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.staleAfter = d
		}
	}
}

// WithMachineName overrides the name this machine is identified by.
func WithMachineName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.machineName = name
		}
	}
}

// WithConflictIdentity adds a ConflictTracker for the given advertised
// service type.
func WithConflictIdentity(identity SearchProfile) Option {
	return func(o *options) {
		identity.AllowSelf = false
		o.conflict = &identity
	}
}

// WithMetrics records routing and tracker metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
