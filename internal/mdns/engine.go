package mdns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/miekg/dns"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/mdnswatch/internal/discovery"
	"github.com/muurk/mdnswatch/internal/logging"
)

// DefaultBrowseWindow bounds how long a single browse listens for answers.
const DefaultBrowseWindow = 5 * time.Second

var (
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("mdns engine closed")

	// ErrNotAdvertised is returned when announcing a profile that was never
	// advertised.
	ErrNotAdvertised = errors.New("service not advertised")
)

// Engine implements discovery.Engine on top of zeroconf.
type Engine struct {
	log          *zap.Logger
	ifaces       []net.Interface
	browseWindow time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	listenersMu sync.RWMutex
	listeners   []discovery.Listener

	mu      sync.Mutex
	closed  bool
	browses map[string]*browse
	servers map[string]*zeroconf.Server
	passive *passiveListener
}

type config struct {
	logger       *zap.Logger
	ifaces       []net.Interface
	browseWindow time.Duration
	passive      bool
}

// Option configures an Engine.
type Option func(*config)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithInterfaces restricts browsing, advertising and listening to ifaces.
func WithInterfaces(ifaces []net.Interface) Option {
	return func(c *config) {
		c.ifaces = ifaces
	}
}

// WithBrowseWindow sets how long each browse collects answers. It should be
// shorter than the poll interval.
func WithBrowseWindow(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.browseWindow = d
		}
	}
}

// WithPassiveListener enables or disables the multicast listener that
// reports goodbyes and unsolicited answers. It is enabled by default.
func WithPassiveListener(enabled bool) Option {
	return func(c *config) {
		c.passive = enabled
	}
}

// New creates an engine. When the passive listener cannot join any multicast
// group the engine still works for browsing and advertising, and the failure
// is logged.
func New(opts ...Option) (*Engine, error) {
	cfg := config{
		logger:       logging.Named("mdns"),
		browseWindow: DefaultBrowseWindow,
		passive:      true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		log:          cfg.logger,
		ifaces:       cfg.ifaces,
		browseWindow: cfg.browseWindow,
		ctx:          ctx,
		cancel:       cancel,
		browses:      make(map[string]*browse),
		servers:      make(map[string]*zeroconf.Server),
	}

	if cfg.passive {
		passive, err := listenPassive(e.log, cfg.ifaces, e.handlePacket)
		if err != nil {
			e.log.Warn("Passive mDNS listener unavailable, goodbyes will not be seen", zap.Error(err))
		} else {
			e.passive = passive
		}
	}
	return e, nil
}

// AddListener implements discovery.Engine.
func (e *Engine) AddListener(l discovery.Listener) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, l)
}

func (e *Engine) snapshotListeners() []discovery.Listener {
	e.listenersMu.RLock()
	defer e.listenersMu.RUnlock()
	return e.listeners
}

// QueryInstances starts a fresh browse for serviceTypeAndProtocol, replacing
// any browse still running for the same key. It returns once the query is
// sent; results arrive as InstanceDiscovered events until the browse window
// closes or ctx is done.
func (e *Engine) QueryInstances(ctx context.Context, serviceTypeAndProtocol string) error {
	var resolverOpts []zeroconf.ClientOption
	if len(e.ifaces) > 0 {
		resolverOpts = append(resolverOpts, zeroconf.SelectIfaces(e.ifaces))
	}
	resolver, err := zeroconf.NewResolver(resolverOpts...)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(e.ctx, e.browseWindow)
	stop := context.AfterFunc(ctx, cancel)

	b, err := e.beginBrowse(serviceTypeAndProtocol, cancel)
	if err != nil {
		stop()
		cancel()
		return err
	}

	entries := make(chan *zeroconf.ServiceEntry)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.endBrowse(serviceTypeAndProtocol, b)
		defer stop()
		for entry := range entries {
			e.deliverEntry(entry)
		}
	}()

	if err := resolver.Browse(browseCtx, serviceTypeAndProtocol, discovery.Domain, entries); err != nil {
		cancel()
		return fmt.Errorf("failed to browse for %s: %w", serviceTypeAndProtocol, err)
	}
	return nil
}

// browse is one running browse window.
type browse struct {
	cancel context.CancelFunc
}

// beginBrowse records a browse for key, cancelling the one it replaces.
func (e *Engine) beginBrowse(key string, cancel context.CancelFunc) (*browse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if prev, ok := e.browses[key]; ok {
		prev.cancel()
	}
	b := &browse{cancel: cancel}
	e.browses[key] = b
	return b, nil
}

// endBrowse forgets b unless a newer browse has replaced it.
func (e *Engine) endBrowse(key string, b *browse) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browses[key] == b {
		delete(e.browses, key)
	}
}

func (e *Engine) deliverEntry(entry *zeroconf.ServiceEntry) {
	ev := discovery.InstanceEvent{
		InstanceName: entryInstanceName(entry),
		Message:      messageFromEntry(entry),
	}
	if len(ev.Message.Addresses) > 0 {
		ev.Remote = netip.AddrPortFrom(ev.Message.Addresses[0], uint16(entry.Port))
	}
	e.log.Debug("Browse result",
		zap.String("instance", ev.InstanceName),
		zap.String("host", entry.HostName),
		logging.Addrs("addresses", ev.Message.Addresses),
	)
	for _, l := range e.snapshotListeners() {
		l.InstanceDiscovered(ev)
	}
}

func (e *Engine) handlePacket(m *dns.Msg, remote netip.AddrPort) {
	shutdowns, answer := classify(m, remote)
	listeners := e.snapshotListeners()
	for _, ev := range shutdowns {
		e.log.Debug("Goodbye received", zap.String("instance", ev.InstanceName), zap.Stringer("remote", remote))
		for _, l := range listeners {
			l.InstanceShutdown(ev)
		}
	}
	if answer != nil {
		for _, l := range listeners {
			l.AnswerReceived(*answer)
		}
	}
}

// Advertise registers p on the network. Advertising an already advertised
// profile is a no-op.
func (e *Engine) Advertise(p *discovery.ServiceProfile) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if _, ok := e.servers[p.ID()]; ok {
		return nil
	}

	server, err := zeroconf.Register(p.InstanceName, p.Service, p.Domain, int(p.Port), p.Text, e.ifaces)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", p.ID(), err)
	}
	e.servers[p.ID()] = server
	return nil
}

// Announce re-sends the advertised records for p.
func (e *Engine) Announce(p *discovery.ServiceProfile) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	server, ok := e.servers[p.ID()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAdvertised, p.ID())
	}
	server.SetText(p.Text)
	return nil
}

// Unadvertise sends goodbyes for p and stops answering for it. It is
// idempotent.
func (e *Engine) Unadvertise(p *discovery.ServiceProfile) error {
	e.mu.Lock()
	server, ok := e.servers[p.ID()]
	delete(e.servers, p.ID())
	e.mu.Unlock()

	if ok {
		server.Shutdown()
	}
	return nil
}

// Close withdraws every advertisement, stops all browses and the passive
// listener. Calling Close more than once is safe.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	servers := e.servers
	e.servers = make(map[string]*zeroconf.Server)
	passive := e.passive
	e.mu.Unlock()

	for _, server := range servers {
		server.Shutdown()
	}
	e.cancel()

	var err error
	if passive != nil {
		err = multierr.Append(err, passive.Close())
	}
	e.wg.Wait()
	return err
}
