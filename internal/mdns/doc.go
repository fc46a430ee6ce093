// Package mdns is the multicast DNS engine behind discovery.
//
// Engine browses with grandcat/zeroconf, one fresh browse per query so every
// poll cycle re-reports each instance, and advertises through zeroconf
// servers. Because zeroconf swallows goodbye packets and only reports answers
// to its own browses, Engine also runs a passive listener on the mDNS
// multicast groups. Its packets are decoded with miekg/dns: PTR records with a
// zero TTL become shutdown events and every other response is passed on as an
// unsolicited answer.
package mdns
