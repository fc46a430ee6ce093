package mdns

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/miekg/dns"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const maxPacketSize = 9000

var (
	groupIPv4 = net.IPv4(224, 0, 0, 251)
	groupIPv6 = net.ParseIP("ff02::fb")

	wildcardIPv4 = &net.UDPAddr{IP: net.IPv4(224, 0, 0, 0), Port: 5353}
	wildcardIPv6 = &net.UDPAddr{IP: net.ParseIP("ff02::"), Port: 5353}
)

// packetReader is the part of ipv4.PacketConn and ipv6.PacketConn the
// receive loop needs.
type packetReader interface {
	ReadFrom(b []byte) (n int, src net.Addr, err error)
	Close() error
}

type v4Reader struct{ *ipv4.PacketConn }

func (r v4Reader) ReadFrom(b []byte) (int, net.Addr, error) {
	n, _, src, err := r.PacketConn.ReadFrom(b)
	return n, src, err
}

type v6Reader struct{ *ipv6.PacketConn }

func (r v6Reader) ReadFrom(b []byte) (int, net.Addr, error) {
	n, _, src, err := r.PacketConn.ReadFrom(b)
	return n, src, err
}

// passiveListener receives every mDNS packet on the local link.
type passiveListener struct {
	log     *zap.Logger
	conns   []packetReader
	handle  func(*dns.Msg, netip.AddrPort)
	wg      sync.WaitGroup
	closing sync.Once
}

func multicastInterfaces(ifaces []net.Interface) []net.Interface {
	if len(ifaces) > 0 {
		return ifaces
	}
	all, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var out []net.Interface
	for _, iface := range all {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		out = append(out, iface)
	}
	return out
}

func joinIPv4(ifaces []net.Interface) (*ipv4.PacketConn, error) {
	udp, err := net.ListenUDP("udp4", wildcardIPv4)
	if err != nil {
		return nil, err
	}
	conn := ipv4.NewPacketConn(udp)
	joined := 0
	for i := range ifaces {
		if err := conn.JoinGroup(&ifaces[i], &net.UDPAddr{IP: groupIPv4}); err == nil {
			joined++
		}
	}
	if joined == 0 {
		conn.Close()
		return nil, fmt.Errorf("udp4: failed to join %s on any interface", groupIPv4)
	}
	return conn, nil
}

func joinIPv6(ifaces []net.Interface) (*ipv6.PacketConn, error) {
	udp, err := net.ListenUDP("udp6", wildcardIPv6)
	if err != nil {
		return nil, err
	}
	conn := ipv6.NewPacketConn(udp)
	joined := 0
	for i := range ifaces {
		if err := conn.JoinGroup(&ifaces[i], &net.UDPAddr{IP: groupIPv6}); err == nil {
			joined++
		}
	}
	if joined == 0 {
		conn.Close()
		return nil, fmt.Errorf("udp6: failed to join %s on any interface", groupIPv6)
	}
	return conn, nil
}

// listenPassive joins the mDNS groups on ifaces (all multicast interfaces
// when empty). It succeeds when at least one address family could be joined.
func listenPassive(log *zap.Logger, ifaces []net.Interface, handle func(*dns.Msg, netip.AddrPort)) (*passiveListener, error) {
	ifaces = multicastInterfaces(ifaces)
	if len(ifaces) == 0 {
		return nil, errors.New("no multicast interfaces")
	}

	l := &passiveListener{log: log, handle: handle}
	var errs error
	if c4, err := joinIPv4(ifaces); err != nil {
		errs = multierr.Append(errs, err)
	} else {
		l.conns = append(l.conns, v4Reader{c4})
	}
	if c6, err := joinIPv6(ifaces); err != nil {
		errs = multierr.Append(errs, err)
	} else {
		l.conns = append(l.conns, v6Reader{c6})
	}
	if len(l.conns) == 0 {
		return nil, errs
	}
	if errs != nil {
		log.Debug("Passive listener running on one address family only", zap.Error(errs))
	}

	for _, c := range l.conns {
		l.wg.Add(1)
		go l.recv(c)
	}
	return l, nil
}

func (l *passiveListener) recv(conn packetReader) {
	defer l.wg.Done()
	buf := make([]byte, maxPacketSize)
	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.log.Debug("mDNS read failed", zap.Error(err))
			return
		}

		msg := new(dns.Msg)
		if err := msg.Unpack(buf[:n]); err != nil {
			l.log.Debug("Dropping malformed mDNS packet", zap.Stringer("remote", src), zap.Error(err))
			continue
		}
		l.handle(msg, remoteAddr(src))
	}
}

func remoteAddr(src net.Addr) netip.AddrPort {
	if udp, ok := src.(*net.UDPAddr); ok {
		ap := udp.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	return netip.AddrPort{}
}

// Close stops the receive loops and waits for them to exit.
func (l *passiveListener) Close() error {
	var err error
	l.closing.Do(func() {
		for _, c := range l.conns {
			err = multierr.Append(err, c.Close())
		}
		l.wg.Wait()
	})
	return err
}
