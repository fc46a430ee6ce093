package discovery

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
)

// MatchedHost is a remote service instance currently believed reachable.
// Values published in snapshots are shared and must not be modified.
type MatchedHost struct {
	// Instance is the canonical instance name the host is keyed by
	Instance string

	// HostName is the display host name, e.g. "studio-1.local"
	HostName string

	// Port is the advertised service port
	Port int

	// Addresses are the currently fresh addresses, ascending
	Addresses []netip.Addr
}

// Equal compares two hosts by content.
func (h MatchedHost) Equal(o MatchedHost) bool {
	return h.Instance == o.Instance &&
		h.HostName == o.HostName &&
		h.Port == o.Port &&
		slices.Equal(h.Addresses, o.Addresses)
}

// String returns a human-readable representation of the host
func (h MatchedHost) String() string {
	return fmt.Sprintf("%s:%d [%s]", h.HostName, h.Port, joinAddrs(h.Addresses))
}

// Endpoint returns host:port for the first address, or "" when there is none.
func (h MatchedHost) Endpoint() string {
	if len(h.Addresses) == 0 {
		return ""
	}
	return netip.AddrPortFrom(h.Addresses[0], uint16(h.Port)).String()
}

// ConflictingHost is another machine advertising this process's own service.
type ConflictingHost struct {
	Instance    string
	MachineName string
	HostName    string
	Port        int
	Addresses   []netip.Addr
}

// Equal compares two hosts by content.
func (h ConflictingHost) Equal(o ConflictingHost) bool {
	return h.Instance == o.Instance &&
		h.MachineName == o.MachineName &&
		h.HostName == o.HostName &&
		h.Port == o.Port &&
		slices.Equal(h.Addresses, o.Addresses)
}

func (h ConflictingHost) String() string {
	return fmt.Sprintf("%s (%s) [%s]", h.MachineName, h.HostName, joinAddrs(h.Addresses))
}

func joinAddrs(addrs []netip.Addr) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}
