package mdns

import (
	"net"
	"net/netip"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}

func response(t *testing.T, answer []string, extra ...string) *dns.Msg {
	t.Helper()
	m := new(dns.Msg)
	m.Response = true
	m.Authoritative = true
	for _, s := range answer {
		m.Answer = append(m.Answer, mustRR(t, s))
	}
	for _, s := range extra {
		m.Extra = append(m.Extra, mustRR(t, s))
	}
	return m
}

var remote = netip.MustParseAddrPort("10.0.0.5:5353")

func TestMessageFromDNS(t *testing.T) {
	m := response(t,
		[]string{`_myservice._tcp.local. 120 IN PTR Studio._myservice._tcp.local.`},
		`Studio._myservice._tcp.local. 120 IN SRV 0 0 9000 studio.local.`,
		`Studio._myservice._tcp.local. 120 IN TXT "machineName=STUDIO"`,
		`studio.local. 120 IN A 10.0.0.5`,
		`studio.local. 120 IN AAAA fe80::1`,
		`studio.local. 0 IN A 10.0.0.6`,
	)

	msg := messageFromDNS(m, false)
	assert.Equal(t, "studio.local.", msg.HostName)
	assert.Equal(t, 9000, msg.Port)
	assert.Equal(t, []string{"machineName=STUDIO"}, msg.Text)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.0.0.5"), netip.MustParseAddr("fe80::1")}, msg.Addresses)
	assert.Equal(t, []string{
		"_myservice._tcp.local.",
		"Studio._myservice._tcp.local.",
		"studio.local.",
	}, msg.Names)

	withExpired := messageFromDNS(m, true)
	assert.Len(t, withExpired.Addresses, 3)
}

func TestClassify_Goodbye(t *testing.T) {
	m := response(t,
		[]string{`_myservice._tcp.local. 0 IN PTR Studio._myservice._tcp.local.`},
		`studio.local. 0 IN A 10.0.0.5`,
	)

	shutdowns, answer := classify(m, remote)
	assert.Nil(t, answer)
	require.Len(t, shutdowns, 1)
	assert.Equal(t, "Studio._myservice._tcp.local.", shutdowns[0].InstanceName)
	assert.Equal(t, remote, shutdowns[0].Remote)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.0.0.5")}, shutdowns[0].Message.Addresses)
}

func TestClassify_Answer(t *testing.T) {
	m := response(t,
		[]string{`studio.local. 120 IN A 10.0.0.5`},
		`Studio._myservice._tcp.local. 120 IN SRV 0 0 9000 studio.local.`,
	)

	shutdowns, answer := classify(m, remote)
	assert.Empty(t, shutdowns)
	require.NotNil(t, answer)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.0.0.5")}, answer.Message.Addresses)
	assert.Equal(t, remote, answer.Remote)
}

func TestClassify_Ignored(t *testing.T) {
	query := new(dns.Msg)
	query.SetQuestion("_myservice._tcp.local.", dns.TypePTR)

	tests := map[string]*dns.Msg{
		"nil":          nil,
		"query":        query,
		"no answers":   response(t, nil),
		"no addresses": response(t, []string{`_myservice._tcp.local. 120 IN PTR Studio._myservice._tcp.local.`}),
	}
	for name, m := range tests {
		t.Run(name, func(t *testing.T) {
			shutdowns, answer := classify(m, remote)
			assert.Empty(t, shutdowns)
			assert.Nil(t, answer)
		})
	}
}

func TestMessageFromEntry(t *testing.T) {
	entry := zeroconf.NewServiceEntry("Studio", "_myservice._tcp", "local.")
	entry.HostName = "studio.local."
	entry.Port = 9000
	entry.Text = []string{"machineName=STUDIO"}
	entry.AddrIPv4 = []net.IP{net.ParseIP("10.0.0.5")}
	entry.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}

	assert.Equal(t, "Studio._myservice._tcp.local.", entryInstanceName(entry))

	msg := messageFromEntry(entry)
	assert.Equal(t, "studio.local.", msg.HostName)
	assert.Equal(t, 9000, msg.Port)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.0.0.5"), netip.MustParseAddr("fe80::1")}, msg.Addresses)
	assert.Equal(t, []string{"Studio._myservice._tcp.local.", "studio.local."}, msg.Names)
}

func TestEntryInstanceName_DefaultsDomain(t *testing.T) {
	entry := zeroconf.NewServiceEntry("Studio", "_myservice._tcp", "")
	assert.Equal(t, "Studio._myservice._tcp.local.", entryInstanceName(entry))

	assert.Empty(t, entryInstanceName(zeroconf.NewServiceEntry("", "_myservice._tcp", "local.")))
}
