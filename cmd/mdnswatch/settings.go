package main

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/mdnswatch/internal/config"
	"github.com/muurk/mdnswatch/internal/discovery"
	"github.com/muurk/mdnswatch/internal/logging"
	"github.com/muurk/mdnswatch/internal/mdns"
)

// Global flags
var (
	configPath     string
	logLevel       string
	interfaceNames []string
	machineName    string
	pollInterval   time.Duration
	staleAfter     time.Duration
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default is the platform config directory)")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")
	flags.StringSliceVar(&interfaceNames, "interface", nil, "Network interface to use (repeatable; default all multicast interfaces)")
	flags.StringVar(&machineName, "machine-name", "", "Name this machine is identified by (default is the host name)")
	flags.DurationVar(&pollInterval, "poll-interval", discovery.DefaultPollInterval, "How often queries are re-issued")
	flags.DurationVar(&staleAfter, "stale-after", discovery.DefaultStaleAfter, "Age at which an unrefreshed address is dropped")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("machine-name") {
		cfg.MachineName = machineName
	}
	if flags.Changed("poll-interval") {
		cfg.PollInterval = pollInterval
	}
	if flags.Changed("stale-after") {
		cfg.StaleAfter = staleAfter
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// searchProfiles returns the profiles named on the command line, or the
// configured ones when there are none.
func searchProfiles(cfg *config.Config, args []string, allowSelf bool) ([]discovery.SearchProfile, error) {
	if len(args) == 0 {
		return cfg.SearchProfiles(), nil
	}
	profiles := make([]discovery.SearchProfile, 0, len(args))
	for _, arg := range args {
		p, err := discovery.ParseSearchProfile(arg)
		if err != nil {
			return nil, err
		}
		p.AllowSelf = allowSelf
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func resolveInterfaces(names []string) ([]net.Interface, error) {
	ifaces := make([]net.Interface, 0, len(names))
	for _, name := range names {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("unknown interface %q: %w", name, err)
		}
		ifaces = append(ifaces, *iface)
	}
	return ifaces, nil
}

// newEngine creates the mDNS engine honouring --interface.
func newEngine() (discovery.ClosableEngine, error) {
	opts := []mdns.Option{mdns.WithLogger(logging.Named("mdns"))}
	if len(interfaceNames) > 0 {
		ifaces, err := resolveInterfaces(interfaceNames)
		if err != nil {
			return nil, err
		}
		opts = append(opts, mdns.WithInterfaces(ifaces))
	}
	engine, err := mdns.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS engine: %w", err)
	}
	return engine, nil
}
