// Mdnswatch discovers services on the local network over mDNS/DNS-SD.
//
// It keeps a live view of the hosts advertising the service types it is told
// to search for, dropping them when they send a goodbye or stop answering,
// and warns when another machine advertises the same service this machine
// does.
//
// Usage:
//
//	mdnswatch [command] [flags]
//
// See 'mdnswatch --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/mdnswatch/internal/logging"
	"github.com/muurk/mdnswatch/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mdnswatch",
	Short: "mDNS service discovery and naming conflict monitor",
	Long: `Discover services on the local network using mDNS/DNS-SD.

Hosts are tracked per service type and dropped as soon as they send a
goodbye or their addresses go stale. When this machine advertises a
service, other machines advertising the same service are reported as
naming conflicts.

Settings are read from the config file (see 'mdnswatch config init');
command line flags override it.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mdnswatch %s\n%s\n", version.Full(), version.Platform())
	},
}
