package ui

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/muurk/mdnswatch/internal/discovery"
)

func TestRenderHosts(t *testing.T) {
	out := RenderHosts("_myservice._tcp", []discovery.MatchedHost{hostA}, 80)
	assert.Contains(t, out, "_myservice._tcp")
	assert.Contains(t, out, "studio-a.local")
	assert.Contains(t, out, "10.0.0.5")

	assert.Contains(t, RenderHosts("_myservice._tcp", nil, 80), "no hosts")
}

func TestRenderConflict(t *testing.T) {
	assert.Empty(t, RenderConflict(nil, 80))

	out := RenderConflict([]discovery.ConflictingHost{{
		Instance:    "node2._mine._tcp.local.",
		MachineName: "NODE2",
		Addresses:   []netip.Addr{netip.MustParseAddr("10.0.0.7"), netip.MustParseAddr("fe80::7")},
	}}, 80)
	assert.Contains(t, out, "NODE2")
	assert.Contains(t, out, "10.0.0.7, fe80::7")
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).SetWidth(80)

	p.PrintHosts("_myservice._tcp", []discovery.MatchedHost{hostA, hostB})
	p.PrintConflict(discovery.ConflictSignal{Active: true, Hosts: []discovery.ConflictingHost{{MachineName: "NODE2"}}})
	p.PrintConflict(discovery.ConflictSignal{Active: false})
	p.PrintError("Discovery failed", errors.New("no multicast interface"), []string{"check the firewall"})

	out := buf.String()
	assert.Contains(t, out, "studio-b.local")
	assert.Contains(t, out, "NAMING CONFLICT")
	assert.Contains(t, out, "Naming conflict cleared")
	assert.Contains(t, out, "no multicast interface")
	assert.Contains(t, out, "check the firewall")
}

func TestClampWidth(t *testing.T) {
	assert.Equal(t, MinTerminalWidth, clampWidth(10))
	assert.Equal(t, 80, clampWidth(80))
	assert.Equal(t, MaxContentWidth, clampWidth(500))
}
