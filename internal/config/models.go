package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/muurk/mdnswatch/internal/discovery"
)

// CurrentVersion is the only config file version understood.
const CurrentVersion = 1

// Config represents the entire configuration file.
type Config struct {
	Version      int            `yaml:"version"`
	MachineName  string         `yaml:"machine_name,omitempty"`  // Overrides os.Hostname
	PollInterval time.Duration  `yaml:"poll_interval,omitempty"` // Query and sweep cycle
	StaleAfter   time.Duration  `yaml:"stale_after,omitempty"`   // Address eviction age
	Search       []SearchEntry  `yaml:"search,omitempty"`
	Advertise    *AdvertiseSpec `yaml:"advertise,omitempty"`
	Feed         *FeedSpec      `yaml:"feed,omitempty"`
}

// SearchEntry is one service type to discover.
type SearchEntry struct {
	ServiceType string `yaml:"service_type"` // e.g. "_myservice"
	Protocol    string `yaml:"protocol"`     // "tcp" or "udp"
	AllowSelf   bool   `yaml:"allow_self,omitempty"`
}

// AdvertiseSpec describes the instance this machine advertises.
type AdvertiseSpec struct {
	InstanceName string `yaml:"instance_name"`
	ServiceType  string `yaml:"service_type"`
	Protocol     string `yaml:"protocol"`
	Port         uint16 `yaml:"port"`
}

// FeedSpec configures the observer feed.
type FeedSpec struct {
	Listen string `yaml:"listen"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Version:      CurrentVersion,
		PollInterval: discovery.DefaultPollInterval,
		StaleAfter:   discovery.DefaultStaleAfter,
	}
}

// applyDefaults fills in zero durations.
func (c *Config) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = discovery.DefaultPollInterval
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = discovery.DefaultStaleAfter
	}
}

// Validate checks the whole file and reports every problem found.
func (c *Config) Validate() error {
	var errs error
	if c.Version != CurrentVersion {
		errs = multierr.Append(errs, fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion))
	}
	if c.PollInterval < 0 || c.StaleAfter < 0 {
		errs = multierr.Append(errs, errors.New("intervals must not be negative"))
	}
	if c.PollInterval > 0 && c.StaleAfter > 0 && c.StaleAfter <= c.PollInterval {
		errs = multierr.Append(errs, fmt.Errorf("stale_after (%s) must be longer than poll_interval (%s)", c.StaleAfter, c.PollInterval))
	}
	for i, p := range c.SearchProfiles() {
		if err := p.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("search[%d]: %w", i, err))
		}
	}
	if props, ok := c.InstanceProperties(); ok {
		if err := props.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("advertise: %w", err))
		}
	}
	return errs
}

// SearchProfiles converts the search entries.
func (c *Config) SearchProfiles() []discovery.SearchProfile {
	out := make([]discovery.SearchProfile, len(c.Search))
	for i, s := range c.Search {
		out[i] = discovery.SearchProfile{
			ServiceType: s.ServiceType,
			Protocol:    s.Protocol,
			AllowSelf:   s.AllowSelf,
		}
	}
	return out
}

// InstanceProperties returns the advertised instance, if one is configured.
func (c *Config) InstanceProperties() (discovery.InstanceProperties, bool) {
	if c.Advertise == nil {
		return discovery.InstanceProperties{}, false
	}
	return discovery.InstanceProperties{
		InstanceName: c.Advertise.InstanceName,
		ServiceType:  c.Advertise.ServiceType,
		Protocol:     c.Advertise.Protocol,
		Port:         c.Advertise.Port,
	}, true
}

// FeedListen returns the configured feed address, or "" when unset.
func (c *Config) FeedListen() string {
	if c.Feed == nil {
		return ""
	}
	return c.Feed.Listen
}

// DiscoveryOptions returns the discovery options the file configures.
func (c *Config) DiscoveryOptions() []discovery.Option {
	return []discovery.Option{
		discovery.WithMachineName(c.MachineName),
		discovery.WithPollInterval(c.PollInterval),
		discovery.WithStaleAfter(c.StaleAfter),
	}
}
