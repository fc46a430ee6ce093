package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/mdnswatch/internal/config"
	"github.com/muurk/mdnswatch/internal/discovery"
	"github.com/muurk/mdnswatch/internal/logging"
	"github.com/muurk/mdnswatch/internal/metrics"
	"github.com/muurk/mdnswatch/internal/server"
	"github.com/muurk/mdnswatch/internal/ui"
)

// Command flags
var (
	allowSelf    bool
	plainOutput  bool
	feedListen   string
	instanceName string
	serviceArg   string
	servicePort  uint16
)

var errNoInstance = errors.New("no advertised instance: set advertise in the config file or pass --instance, --service and --port")

var findTips = []string{
	"Check that this machine and the service are on the same network segment",
	"Firewalls must allow UDP port 5353",
	"Use --interface to pick the interface facing the service",
	"Run with --log-level debug to see every query and answer",
}

func init() {
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(conflictCmd)
	rootCmd.AddCommand(advertiseCmd)
	rootCmd.AddCommand(serveCmd)

	findCmd.Flags().BoolVar(&allowSelf, "allow-self", false, "Include this machine in the results")
	findCmd.Flags().BoolVar(&plainOutput, "plain", false, "Print snapshots instead of the interactive list")

	for _, cmd := range []*cobra.Command{conflictCmd, advertiseCmd, serveCmd} {
		cmd.Flags().StringVar(&instanceName, "instance", "", "Instance name to advertise")
		cmd.Flags().StringVar(&serviceArg, "service", "", "Service to advertise, e.g. _myservice._tcp")
		cmd.Flags().Uint16Var(&servicePort, "port", 0, "Port to advertise")
	}
	serveCmd.Flags().StringVar(&feedListen, "listen", "", "Observer feed address (default "+server.DefaultListen+")")
}

// findCmd discovers hosts for one or more service types
var findCmd = &cobra.Command{
	Use:   "find [_service._proto...]",
	Short: "Find hosts advertising a service",
	Long: `Search the local network for hosts advertising the given service types.

With no arguments the search entries from the config file are used. On a
terminal a single service is shown as a live list; press enter to select a
host and print its address. Otherwise every change is printed as it happens.`,
	Example: `  # Live list of one service
  mdnswatch find _myservice._tcp

  # Several services, printed as they change
  mdnswatch find _myservice._tcp _other._udp --plain`,
	RunE: runFind,
}

func runFind(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	profiles, err := searchProfiles(cfg, args, allowSelf)
	if err != nil {
		return err
	}
	finder, err := discovery.NewFinder(profiles, cfg.DiscoveryOptions()...)
	if err != nil {
		return err
	}
	engine, err := newEngine()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	handle := finder.Start(ctx, engine)

	interactive := !plainOutput && len(profiles) == 1 && ui.IsTerminal(os.Stdout)
	if interactive {
		err = runInteractive(ctx, cmd, finder.Trackers()[0])
	} else {
		printTrackers(ctx, ui.NewPrinter(cmd.OutOrStdout()), finder.Trackers())
	}

	cancel()
	return multierr.Combine(err, handle.Wait(), engine.Close())
}

func runInteractive(ctx context.Context, cmd *cobra.Command, tracker *discovery.Tracker) error {
	updates, unsubscribe := tracker.Subscribe()
	defer unsubscribe()

	host, ok, err := ui.RunHostList(ui.HostListConfig{
		Service:  tracker.Key(),
		Hosts:    updates,
		Done:     ctx.Done(),
		OnSelect: tracker.Select,
	})
	if err != nil {
		return fmt.Errorf("host list failed: %w", err)
	}
	if ok {
		fmt.Fprintln(cmd.OutOrStdout(), host.Endpoint())
	}
	return nil
}

type serviceHosts struct {
	service string
	hosts   []discovery.MatchedHost
}

// printTrackers prints every published snapshot until ctx is done.
func printTrackers(ctx context.Context, printer *ui.Printer, trackers []*discovery.Tracker) {
	merged := make(chan serviceHosts)
	for _, t := range trackers {
		updates, unsubscribe := t.Subscribe()
		defer unsubscribe()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case hosts := <-updates:
					select {
					case merged <- serviceHosts{service: t.Key(), hosts: hosts}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-merged:
			printer.PrintHosts(u.service, u.hosts)
		}
	}
}

// instanceProperties returns the instance from flags, falling back to the
// config file.
func instanceProperties(cmd *cobra.Command, cfg *config.Config) (discovery.InstanceProperties, error) {
	props, ok := cfg.InstanceProperties()
	flags := cmd.Flags()
	if flags.Changed("instance") {
		props.InstanceName = instanceName
		ok = true
	}
	if flags.Changed("service") {
		p, err := discovery.ParseSearchProfile(serviceArg)
		if err != nil {
			return discovery.InstanceProperties{}, err
		}
		props.ServiceType, props.Protocol = p.ServiceType, p.Protocol
		ok = true
	}
	if flags.Changed("port") {
		props.Port = servicePort
		ok = true
	}
	if !ok {
		return discovery.InstanceProperties{}, errNoInstance
	}
	return props, props.Validate()
}

// conflictCmd advertises and reports naming conflicts
var conflictCmd = &cobra.Command{
	Use:   "conflict",
	Short: "Advertise a service and report naming conflicts",
	Long: `Advertise this machine's service instance and watch for other machines
advertising the same service. A warning is printed each time the set of
conflicting machines changes, and once more when the conflict clears.`,
	Example: `  # Use the advertise section of the config file
  mdnswatch conflict

  # Advertise explicitly
  mdnswatch conflict --instance studio --service _gameshow._tcp --port 9000`,
	RunE: runConflict,
}

func runConflict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	props, err := instanceProperties(cmd, cfg)
	if err != nil {
		return err
	}
	monitor, err := discovery.NewConflictMonitor(props, nil, cfg.DiscoveryOptions()...)
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	monitor.Conflicts().OnSignal(printer.PrintConflict)

	profile := monitor.Advertiser().Profile()
	printer.Println(ui.MutedStyle.Render(fmt.Sprintf("Advertising %s on port %d as %s",
		profile.ID(), profile.Port, monitor.Advertiser().MachineName())))

	return monitor.Serve(cmd.Context(), newEngine)
}

// advertiseCmd advertises without watching for conflicts
var advertiseCmd = &cobra.Command{
	Use:   "advertise",
	Short: "Advertise a service until interrupted",
	Long: `Advertise this machine's service instance until interrupted, then send a
goodbye so other hosts drop it immediately.`,
	Example: `  mdnswatch advertise --instance studio --service _gameshow._tcp --port 9000`,
	RunE:    runAdvertise,
}

func runAdvertise(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	props, err := instanceProperties(cmd, cfg)
	if err != nil {
		return err
	}
	advertiser, err := discovery.NewAdvertiser(props, cfg.DiscoveryOptions()...)
	if err != nil {
		return err
	}
	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, engine.Close())
	}()

	logging.Info("Advertising", zap.String("id", advertiser.Profile().ID()))
	return advertiser.AdvertiseUntilCancelled(cmd.Context(), engine)
}

// serveCmd runs discovery with the observer feed
var serveCmd = &cobra.Command{
	Use:   "serve [_service._proto...]",
	Short: "Run discovery and serve snapshots to observers",
	Long: `Search for the given (or configured) service types and serve the results
over HTTP:

  GET /snapshot   current hosts and conflicts as JSON
  GET /ws         websocket stream of every published change
  GET /metrics    Prometheus metrics

When an instance is configured (or given with --instance, --service and
--port) it is advertised and naming conflicts are included in the feed.`,
	Example: `  mdnswatch serve _myservice._tcp --listen 0.0.0.0:8765`,
	RunE:    runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	profiles, err := searchProfiles(cfg, args, false)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts := append(cfg.DiscoveryOptions(), discovery.WithMetrics(metrics.New(reg)))

	// run blocks until ctx is done and owns the engine
	var (
		finder *discovery.Finder
		run    func(ctx context.Context) error
	)
	props, err := instanceProperties(cmd, cfg)
	switch {
	case err == nil:
		monitor, err := discovery.NewConflictMonitor(props, profiles, opts...)
		if err != nil {
			return err
		}
		finder = monitor.Finder()
		run = func(ctx context.Context) error {
			return monitor.Serve(ctx, newEngine)
		}
	case errors.Is(err, errNoInstance):
		finder, err = discovery.NewFinder(profiles, opts...)
		if err != nil {
			return err
		}
		run = func(ctx context.Context) (err error) {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, engine.Close())
			}()
			return finder.Run(ctx, engine)
		}
	default:
		return err
	}

	listen := cfg.FeedListen()
	if cmd.Flags().Changed("listen") {
		listen = feedListen
	}
	srv := server.New(server.Config{
		Listen:    listen,
		Trackers:  finder.Trackers(),
		Conflicts: finder.Conflicts(),
		Gatherer:  reg,
	})

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return run(ctx)
	})
	g.Go(func() error {
		return srv.Serve(ctx)
	})
	return g.Wait()
}
