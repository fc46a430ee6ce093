package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/mdnswatch/internal/config"
	"github.com/muurk/mdnswatch/internal/discovery"
)

// newTestCommand returns a command carrying the root's persistent flags and
// the advertise flags, with package flag variables reset afterwards.
func newTestCommand(t *testing.T) *cobra.Command {
	t.Helper()
	oldPath := configPath
	t.Cleanup(func() {
		configPath = oldPath
		machineName, pollInterval, staleAfter = "", discovery.DefaultPollInterval, discovery.DefaultStaleAfter
		instanceName, serviceArg, servicePort = "", "", 0
	})

	cmd := &cobra.Command{Use: "test"}
	flags := cmd.Flags()
	flags.StringVar(&machineName, "machine-name", "", "")
	flags.DurationVar(&pollInterval, "poll-interval", discovery.DefaultPollInterval, "")
	flags.DurationVar(&staleAfter, "stale-after", discovery.DefaultStaleAfter, "")
	flags.StringVar(&instanceName, "instance", "", "")
	flags.StringVar(&serviceArg, "service", "", "")
	flags.Uint16Var(&servicePort, "port", 0, "")
	return cmd
}

func writeConfig(t *testing.T, data string) {
	t.Helper()
	configPath = filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(data), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	cmd := newTestCommand(t)
	writeConfig(t, "version: 1\nmachine_name: FILE\npoll_interval: 5s\nstale_after: 20s\n")

	if err := cmd.Flags().Parse([]string{"--machine-name", "FLAG", "--stale-after", "30s"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.MachineName != "FLAG" {
		t.Errorf("MachineName = %q, want FLAG", cfg.MachineName)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want the file value", cfg.PollInterval)
	}
	if cfg.StaleAfter != 30*time.Second {
		t.Errorf("StaleAfter = %v, want the flag value", cfg.StaleAfter)
	}
}

func TestLoadConfig_InvalidOverride(t *testing.T) {
	cmd := newTestCommand(t)
	writeConfig(t, "version: 1\n")

	if err := cmd.Flags().Parse([]string{"--poll-interval", "1m"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, err := loadConfig(cmd); err == nil {
		t.Error("loadConfig() accepted a poll interval longer than stale-after")
	}
}

func TestSearchProfiles(t *testing.T) {
	cfg := config.New()
	cfg.Search = []config.SearchEntry{{ServiceType: "_fromfile", Protocol: "tcp"}}

	got, err := searchProfiles(cfg, nil, false)
	if err != nil || len(got) != 1 || got[0].Key() != "_fromfile._tcp" {
		t.Errorf("searchProfiles(no args) = %v, %v", got, err)
	}

	got, err = searchProfiles(cfg, []string{"_myservice._tcp", "_other._udp.local."}, true)
	if err != nil {
		t.Fatalf("searchProfiles() error = %v", err)
	}
	if len(got) != 2 || got[1].Key() != "_other._udp" || !got[0].AllowSelf {
		t.Errorf("searchProfiles(args) = %v", got)
	}

	if _, err := searchProfiles(cfg, []string{"myservice"}, false); !errors.Is(err, discovery.ErrInvalidProfile) {
		t.Errorf("searchProfiles(invalid) error = %v, want ErrInvalidProfile", err)
	}
}

func TestInstanceProperties(t *testing.T) {
	cfg := config.New()

	cmd := newTestCommand(t)
	if _, err := instanceProperties(cmd, cfg); !errors.Is(err, errNoInstance) {
		t.Errorf("instanceProperties() error = %v, want errNoInstance", err)
	}

	cfg.Advertise = &config.AdvertiseSpec{InstanceName: "studio", ServiceType: "_gameshow", Protocol: "tcp", Port: 9000}
	cmd = newTestCommand(t)
	if err := cmd.Flags().Parse([]string{"--port", "9100"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	props, err := instanceProperties(cmd, cfg)
	if err != nil {
		t.Fatalf("instanceProperties() error = %v", err)
	}
	if props.InstanceName != "studio" || props.Port != 9100 {
		t.Errorf("instanceProperties() = %+v", props)
	}

	cmd = newTestCommand(t)
	if err := cmd.Flags().Parse([]string{"--instance", "x", "--service", "_svc._tcp"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, err := instanceProperties(cmd, config.New()); !errors.Is(err, discovery.ErrInvalidProfile) {
		t.Errorf("instanceProperties(no port) error = %v, want ErrInvalidProfile", err)
	}
}

func TestResolveInterfaces(t *testing.T) {
	if _, err := resolveInterfaces([]string{"no-such-interface0"}); err == nil {
		t.Error("resolveInterfaces() accepted an unknown interface")
	}
	ifaces, err := resolveInterfaces(nil)
	if err != nil || len(ifaces) != 0 {
		t.Errorf("resolveInterfaces(nil) = %v, %v", ifaces, err)
	}
}
