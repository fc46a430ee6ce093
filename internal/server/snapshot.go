package server

import (
	"encoding/json"
	"net/http"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/mdnswatch/internal/discovery"
)

// HostView is the wire form of a matched host.
type HostView struct {
	Instance  string   `json:"instance"`
	HostName  string   `json:"host_name"`
	Port      int      `json:"port"`
	Addresses []string `json:"addresses"`
}

// ConflictView is the wire form of a conflicting host.
type ConflictView struct {
	Instance    string   `json:"instance"`
	MachineName string   `json:"machine_name"`
	HostName    string   `json:"host_name"`
	Port        int      `json:"port"`
	Addresses   []string `json:"addresses"`
}

// ServiceHosts groups the hosts of one service type.
type ServiceHosts struct {
	Service string     `json:"service"`
	Hosts   []HostView `json:"hosts"`
}

// Snapshot is the body of GET /snapshot.
type Snapshot struct {
	Time       time.Time      `json:"time"`
	Services   []ServiceHosts `json:"services"`
	Conflicted bool           `json:"conflicted"`
	Conflicts  []ConflictView `json:"conflicts,omitempty"`
}

// Update types
const (
	UpdateHosts     = "hosts"
	UpdateConflicts = "conflicts"
)

// Update is one message on the WebSocket stream.
type Update struct {
	// Type is UpdateHosts or UpdateConflicts
	Type      string         `json:"type"`
	Time      time.Time      `json:"time"`
	Service   string         `json:"service"`
	Hosts     []HostView     `json:"hosts,omitempty"`
	Conflicts []ConflictView `json:"conflicts,omitempty"`
}

// MarshalJSON always writes the list named by Type, as [] when empty, so
// observers see a snapshot emptying.
func (u Update) MarshalJSON() ([]byte, error) {
	type plain Update
	switch u.Type {
	case UpdateHosts:
		return json.Marshal(struct {
			plain
			Hosts []HostView `json:"hosts"`
		}{plain(u), orEmpty(u.Hosts)})
	case UpdateConflicts:
		return json.Marshal(struct {
			plain
			Conflicts []ConflictView `json:"conflicts"`
		}{plain(u), orEmpty(u.Conflicts)})
	default:
		return json.Marshal(plain(u))
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func hostViews(hosts []discovery.MatchedHost) []HostView {
	out := make([]HostView, len(hosts))
	for i, h := range hosts {
		out[i] = HostView{
			Instance:  h.Instance,
			HostName:  h.HostName,
			Port:      h.Port,
			Addresses: addrStrings(h.Addresses),
		}
	}
	return out
}

func conflictViews(hosts []discovery.ConflictingHost) []ConflictView {
	out := make([]ConflictView, len(hosts))
	for i, h := range hosts {
		out[i] = ConflictView{
			Instance:    h.Instance,
			MachineName: h.MachineName,
			HostName:    h.HostName,
			Port:        h.Port,
			Addresses:   addrStrings(h.Addresses),
		}
	}
	return out
}

func addrStrings(addrs []netip.Addr) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

// Snapshot collects the current state of every tracker.
func (s *Server) Snapshot() Snapshot {
	snap := Snapshot{Time: time.Now().UTC()}
	for _, t := range s.config.Trackers {
		snap.Services = append(snap.Services, ServiceHosts{
			Service: t.Key(),
			Hosts:   hostViews(t.Snapshot()),
		})
	}
	if c := s.config.Conflicts; c != nil {
		snap.Conflicts = conflictViews(c.Snapshot())
		snap.Conflicted = len(snap.Conflicts) > 0
	}
	return snap
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Snapshot()); err != nil {
		s.log.Debug("Failed to write snapshot", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
	}
}
