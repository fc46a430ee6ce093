package discovery

import (
	"context"
	"net/netip"
	"strings"

	"github.com/miekg/dns"
)

// Message is the decoded payload of an mDNS response.
type Message struct {
	// Names holds the owner names of the answer and additional records
	Names []string

	// HostName is the SRV target, e.g. "studio-1.local."
	HostName string

	// Port is the SRV port
	Port int

	// Addresses are the A and AAAA records carried in the message
	Addresses []netip.Addr

	// Text holds the raw TXT strings ("key=value" or "flag")
	Text []string
}

// Property returns the value of a TXT "key=value" entry. Keys compare
// case-insensitively; a bare flag yields an empty value.
func (m Message) Property(key string) (string, bool) {
	for _, txt := range m.Text {
		k, v, _ := strings.Cut(txt, "=")
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// InstanceEvent reports that a service instance was found or has gone away.
type InstanceEvent struct {
	Remote       netip.AddrPort
	InstanceName string
	Message      Message
}

// AnswerEvent carries an unsolicited mDNS response.
type AnswerEvent struct {
	Remote  netip.AddrPort
	Message Message
}

// Listener receives protocol events. Implementations must be safe for
// concurrent use; engines deliver events from several goroutines at once.
type Listener interface {
	InstanceDiscovered(ev InstanceEvent)
	InstanceShutdown(ev InstanceEvent)
	AnswerReceived(ev AnswerEvent)
}

// Engine is the multicast discovery engine the trackers are fed from.
type Engine interface {
	// AddListener subscribes l to every event the engine produces
	AddListener(l Listener)

	// QueryInstances asks the network for instances of "_service._proto"
	QueryInstances(ctx context.Context, serviceTypeAndProtocol string) error

	Advertise(p *ServiceProfile) error
	Announce(p *ServiceProfile) error
	Unadvertise(p *ServiceProfile) error
}

// InstanceKey canonicalizes an instance name for use as a map key.
func InstanceKey(name string) string {
	if name == "" {
		return ""
	}
	return dns.CanonicalName(name)
}

// RoutingKeyFromInstance derives "_service._proto" from an instance name
// such as "Studio._myservice._tcp.local.".
func RoutingKeyFromInstance(name string) (string, bool) {
	labels := dns.SplitDomainName(name)
	if len(labels) < 3 {
		return "", false
	}
	return strings.ToLower(labels[1] + "." + labels[2]), true
}

// RoutingKeyFromMessage finds the first record name that contains a
// "_service._proto" label pair.
func RoutingKeyFromMessage(m Message) (string, bool) {
	for _, name := range m.Names {
		labels := dns.SplitDomainName(name)
		for i := 1; i < len(labels); i++ {
			proto := strings.ToLower(labels[i])
			if (proto == "_tcp" || proto == "_udp") && strings.HasPrefix(labels[i-1], "_") {
				return strings.ToLower(labels[i-1]) + "." + proto, true
			}
		}
	}
	return "", false
}

// LabelsToHostName renders a host name for display: "name.local" when the
// name lives in the local domain, otherwise just its first label.
func LabelsToHostName(name string) string {
	labels := dns.SplitDomainName(name)
	switch len(labels) {
	case 0:
		return ""
	case 1:
		return labels[0]
	default:
		if strings.EqualFold(labels[len(labels)-1], "local") {
			return labels[0] + ".local"
		}
		return labels[0]
	}
}

// firstLabel returns the leftmost label of a dotted name.
func firstLabel(name string) string {
	labels := dns.SplitDomainName(name)
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}
