package mdns

import (
	"net"
	"net/netip"
	"strings"

	"github.com/grandcat/zeroconf"
	"github.com/miekg/dns"

	"github.com/muurk/mdnswatch/internal/discovery"
)

// entryInstanceName rebuilds the fully qualified instance name of a browse
// result.
func entryInstanceName(entry *zeroconf.ServiceEntry) string {
	if entry.Instance == "" {
		return ""
	}
	service := strings.Trim(entry.Service, ".")
	domain := strings.Trim(entry.Domain, ".")
	if domain == "" {
		domain = strings.Trim(discovery.Domain, ".")
	}
	return dns.Fqdn(entry.Instance + "." + service + "." + domain)
}

// messageFromEntry converts a zeroconf browse result.
func messageFromEntry(entry *zeroconf.ServiceEntry) discovery.Message {
	msg := discovery.Message{
		HostName: entry.HostName,
		Port:     entry.Port,
		Text:     entry.Text,
	}
	if name := entryInstanceName(entry); name != "" {
		msg.Names = append(msg.Names, name)
	}
	if entry.HostName != "" {
		msg.Names = append(msg.Names, dns.Fqdn(entry.HostName))
	}
	msg.Addresses = appendIPs(msg.Addresses, entry.AddrIPv4)
	msg.Addresses = appendIPs(msg.Addresses, entry.AddrIPv6)
	return msg
}

func appendIPs(dst []netip.Addr, ips []net.IP) []netip.Addr {
	for _, ip := range ips {
		if addr, ok := netip.AddrFromSlice(ip); ok {
			dst = append(dst, addr.Unmap())
		}
	}
	return dst
}

// messageFromDNS flattens the answer and additional sections of a response.
// Address records with a zero TTL are goodbyes and are only kept when
// withExpired is set.
func messageFromDNS(m *dns.Msg, withExpired bool) discovery.Message {
	var msg discovery.Message
	seen := make(map[string]struct{})

	for _, rr := range append(append([]dns.RR{}, m.Answer...), m.Extra...) {
		hdr := rr.Header()
		name := dns.CanonicalName(hdr.Name)
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			msg.Names = append(msg.Names, hdr.Name)
		}

		switch rec := rr.(type) {
		case *dns.SRV:
			if msg.HostName == "" {
				msg.HostName = rec.Target
				msg.Port = int(rec.Port)
			}
		case *dns.A:
			if hdr.Ttl > 0 || withExpired {
				msg.Addresses = appendIPs(msg.Addresses, []net.IP{rec.A})
			}
		case *dns.AAAA:
			if hdr.Ttl > 0 || withExpired {
				msg.Addresses = appendIPs(msg.Addresses, []net.IP{rec.AAAA})
			}
		case *dns.TXT:
			if msg.Text == nil {
				msg.Text = rec.Txt
			}
		}
	}
	return msg
}

// goodbyes returns the instance names withdrawn by zero-TTL PTR answers.
func goodbyes(m *dns.Msg) []string {
	var names []string
	for _, rr := range m.Answer {
		ptr, ok := rr.(*dns.PTR)
		if !ok || ptr.Hdr.Ttl != 0 {
			continue
		}
		names = append(names, ptr.Ptr)
	}
	return names
}

// classify turns a received response into listener events.
func classify(m *dns.Msg, remote netip.AddrPort) (shutdowns []discovery.InstanceEvent, answer *discovery.AnswerEvent) {
	if m == nil || !m.Response || len(m.Answer) == 0 {
		return nil, nil
	}

	if names := goodbyes(m); len(names) > 0 {
		msg := messageFromDNS(m, true)
		for _, name := range names {
			shutdowns = append(shutdowns, discovery.InstanceEvent{
				Remote:       remote,
				InstanceName: name,
				Message:      msg,
			})
		}
		return shutdowns, nil
	}

	msg := messageFromDNS(m, false)
	if len(msg.Addresses) == 0 {
		return nil, nil
	}
	return nil, &discovery.AnswerEvent{Remote: remote, Message: msg}
}
