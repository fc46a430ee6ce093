package discovery

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoutingKeyFromInstance(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"Studio._myservice._tcp.local.", "_myservice._tcp", true},
		{"Studio._MyService._TCP.local", "_myservice._tcp", true},
		{"studio.local.", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := RoutingKeyFromInstance(tt.name)
		assert.Equal(t, tt.wantOK, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestRoutingKeyFromMessage(t *testing.T) {
	tests := []struct {
		names  []string
		want   string
		wantOK bool
	}{
		{[]string{"studio.local.", "Studio._myservice._tcp.local."}, "_myservice._tcp", true},
		{[]string{"_other._udp.local."}, "_other._udp", true},
		{[]string{"x.local.", "y.local."}, "", false},
		{[]string{"studio._tcp.local."}, "", false},
		{nil, "", false},
	}
	for _, tt := range tests {
		got, ok := RoutingKeyFromMessage(Message{Names: tt.names})
		assert.Equal(t, tt.wantOK, ok, "%v", tt.names)
		assert.Equal(t, tt.want, got, "%v", tt.names)
	}
}

func TestLabelsToHostName(t *testing.T) {
	assert.Equal(t, "studio-1.local", LabelsToHostName("studio-1.local."))
	assert.Equal(t, "studio-1.local", LabelsToHostName("studio-1.LOCAL"))
	assert.Equal(t, "studio-1", LabelsToHostName("studio-1.example.com."))
	assert.Equal(t, "studio-1", LabelsToHostName("studio-1"))
	assert.Equal(t, "", LabelsToHostName(""))
}

func TestInstanceKey(t *testing.T) {
	assert.Equal(t, "studio._myservice._tcp.local.", InstanceKey("Studio._myservice._tcp.local"))
	assert.Equal(t, "", InstanceKey(""))
}

func TestMessage_Property(t *testing.T) {
	m := Message{Text: []string{"path=/", "MachineName=NODE2", "flag"}}

	v, ok := m.Property(TxtMachineName)
	assert.True(t, ok)
	assert.Equal(t, "NODE2", v)

	v, ok = m.Property("flag")
	assert.True(t, ok)
	assert.Empty(t, v)

	_, ok = m.Property("missing")
	assert.False(t, ok)
}

func TestMatchedHost(t *testing.T) {
	h := MatchedHost{
		Instance:  "a._myservice._tcp.local.",
		HostName:  "a.local",
		Port:      9000,
		Addresses: []netip.Addr{netip.MustParseAddr("10.0.0.5"), netip.MustParseAddr("fe80::1")},
	}
	assert.Equal(t, "10.0.0.5:9000", h.Endpoint())
	assert.Equal(t, "a.local:9000 [10.0.0.5, fe80::1]", h.String())
	assert.True(t, h.Equal(h))

	moved := h
	moved.Addresses = h.Addresses[:1]
	assert.False(t, h.Equal(moved))
	assert.Empty(t, MatchedHost{}.Endpoint())
}
