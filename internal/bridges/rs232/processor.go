package rs232

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default connection timings.
const (
	// DefaultSettleDelay is how long Initialize waits after queueing the
	// handshake before reporting the link ready.
	DefaultSettleDelay = 5 * time.Second

	// DefaultHandshakeCommand is sent first on every new link.
	DefaultHandshakeCommand = CmdIdentifier

	// defaultConnectTimeout is the maximum time to wait for a link to open.
	defaultConnectTimeout = 10 * time.Second

	// defaultWriteTimeout bounds a single frame write.
	defaultWriteTimeout = 5 * time.Second

	// defaultReconnectInterval is the initial delay between reconnection attempts.
	defaultReconnectInterval = 1 * time.Second

	// defaultMaxReconnectInterval caps the reconnection backoff.
	defaultMaxReconnectInterval = 30 * time.Second

	// readerStopTimeout bounds the wait for a reader to exit on teardown.
	readerStopTimeout = time.Second
)

// ProcessorConfig configures a Processor. Zero values take the defaults.
type ProcessorConfig struct {
	// Dialer opens the link. Default: TCPDialer.
	Dialer Dialer

	// Queue holds the admission timings for every session's queue.
	Queue QueueConfig

	// HandshakeCommand is enqueued first on every new link. Default: IDENTIFIER.
	HandshakeCommand string

	// SettleDelay is the grace period Initialize blocks for. Default: 5 seconds.
	SettleDelay time.Duration

	// WriteTimeout bounds each frame write where the link supports it.
	WriteTimeout time.Duration

	// ReconnectInterval is the initial reconnection backoff. Default: 1 second.
	ReconnectInterval time.Duration

	// MaxReconnectInterval caps the backoff. Default: 30 seconds.
	MaxReconnectInterval time.Duration
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.Dialer == nil {
		c.Dialer = TCPDialer{Timeout: defaultConnectTimeout}
	}
	if c.HandshakeCommand == "" {
		c.HandshakeCommand = DefaultHandshakeCommand
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = defaultReconnectInterval
	}
	if c.MaxReconnectInterval == 0 {
		c.MaxReconnectInterval = defaultMaxReconnectInterval
	}
	return c
}

// ProcessorStats holds operational statistics.
type ProcessorStats struct {
	CommandsTx      uint64
	UnknownCommands uint64
	ResponsesRx     uint64
	Successes       uint64
	Nacks           uint64
	Timeouts        uint64
	Passthroughs    uint64
	Retries         uint64
	ErrorsTotal     uint64
	ReconnectsTotal uint64
	Pending         int
	LastActivity    time.Time
	Connected       bool
	Reconnecting    bool
	Discovered      bool
}

// CommandSender is the fire-and-forget command surface.
type CommandSender interface {
	SendDataCommand(name string)
	SendDataCommandWithArgs(name string, args []byte)
}

// Ensure Processor implements CommandSender.
var _ CommandSender = (*Processor)(nil)

// session is the live link with its queue and reader. It is replaced as
// one unit on reconnect.
type session struct {
	link   Link
	queue  *Queue
	reader *Reader

	failed   *closeOnce
	downOnce sync.Once
}

// fail marks the session dead and wakes the sender out of Dequeue.
func (s *session) fail() {
	s.failed.Close()
	s.queue.Close()
}

// Processor owns the camera link, its transmission queue, the response
// reader and the sender loop.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The response listener runs on the reader goroutine.
//
// Self-healing:
//   - A write error, dequeue error or reader failure tears the session down
//     and reconnects to the last address with exponential backoff.
//   - Commands not yet dispatched survive the reconnect; the one in flight
//     when the link failed is not resent.
type Processor struct {
	catalog *Catalog
	cfg     ProcessorConfig

	mu      sync.Mutex
	sess    *session
	address string
	port    int
	started bool
	backlog []*Instance // commands submitted while no session is live
	carried QueueStats  // counters of torn-down queues

	reconnecting atomic.Bool
	discovered   atomic.Bool

	listener   ResponseListener
	listenerMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	done   *closeOnce
	wg     sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex

	commandsTx      atomic.Uint64
	unknownCommands atomic.Uint64
	responsesRx     atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	lastActivity    atomic.Int64 // Unix timestamp
}

// NewProcessor creates a processor over a loaded catalog. The catalog is
// never reloaded, including on reconnect.
func NewProcessor(catalog *Catalog, cfg ProcessorConfig) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		catalog: catalog,
		cfg:     cfg.withDefaults(),
		ctx:     ctx,
		cancel:  cancel,
		done:    newCloseOnce(),
		logger:  nopLogger{},
	}
}

// Initialize opens the link, starts the reader, queue and sender loop,
// enqueues the handshake command and then blocks for the settle delay.
//
// Parameters:
//   - ctx: Context for cancellation of the dial and the settle wait
//   - address: Bridge host, or serial device path
//   - port: Bridge TCP port
//
// Returns:
//   - error: wrapping ErrConnectionFailed if the link cannot be opened
func (p *Processor) Initialize(ctx context.Context, address string, port int) error {
	if p.isClosed() {
		return ErrProcessorClosed
	}

	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		p.log().Warn("processor already initialised", "address", address, "port", port)
		return nil
	}
	p.address, p.port = address, port
	p.mu.Unlock()

	s, err := p.connect(ctx, address, port)
	if err != nil {
		p.errorsTotal.Add(1)
		return fmt.Errorf("%w: %s:%d: %w", ErrConnectionFailed, address, port, err)
	}
	if !p.install(s) {
		return ErrProcessorClosed
	}

	p.mu.Lock()
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.sendLoop()

	p.log().Info("camera link open", "address", address, "port", port, "commands", p.catalog.Len())

	select {
	case <-time.After(p.cfg.SettleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done.Done():
		return ErrProcessorClosed
	}
}

// SendDataCommand queues a command with its catalog arguments.
// Failures are logged, never returned.
func (p *Processor) SendDataCommand(name string) {
	p.SendDataCommandWithArgs(name, nil)
}

// SendDataCommandWithArgs queues a command bound to args.
// Failures are logged, never returned.
func (p *Processor) SendDataCommandWithArgs(name string, args []byte) {
	if _, err := p.Submit(name, args); err != nil {
		p.log().Warn("command dropped", "command", name, "error", err)
	}
}

// Submit queues a command and returns its instance ID. Unlike the
// fire-and-forget methods it reports unknown names and a closed processor.
// Commands submitted while the link is down are held until it is back.
func (p *Processor) Submit(name string, args []byte) (string, error) {
	if p.isClosed() {
		return "", ErrProcessorClosed
	}

	def, ok := p.catalog.Lookup(name)
	if !ok {
		p.unknownCommands.Add(1)
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if err := def.CheckArgs(args); err != nil {
		p.log().Warn("sending command with argument outside catalog range", "command", name, "error", err)
	}

	inst := NewInstance(def, args)

	// Enqueue under mu so a concurrent install cannot slip its backlog
	// in behind this command, or swap sessions between the read of
	// p.sess and the enqueue.
	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.sess; s == nil || s.queue.Enqueue(inst) != nil {
		// No live session, or one that failed and is not yet torn down.
		// Its undispatched commands are prepended to the backlog on
		// teardown, ahead of this one.
		p.backlog = append(p.backlog, inst)
	}
	return inst.ID, nil
}

// Close stops the sender loop, closes the link and stops the queue and
// reader. Safe to call multiple times.
//
// Returns:
//   - error: nil (closing is best-effort)
func (p *Processor) Close() error {
	p.done.Close()
	p.cancel()

	p.mu.Lock()
	s := p.sess
	p.sess = nil
	p.mu.Unlock()

	if s != nil {
		p.teardown(s)
	}
	p.wg.Wait()

	p.log().Info("camera link closed")
	return nil
}

// SetListener registers the receiver of classified responses.
func (p *Processor) SetListener(l ResponseListener) {
	p.listenerMu.Lock()
	p.listener = l
	p.listenerMu.Unlock()
}

// SetLogger sets the logger for this processor and the sessions it opens.
func (p *Processor) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

// Catalog returns the command catalog.
func (p *Processor) Catalog() *Catalog {
	return p.catalog
}

// IsConnected reports whether a session is live.
func (p *Processor) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess != nil
}

// Discovered reports whether the camera has answered a command successfully.
func (p *Processor) Discovered() bool {
	return p.discovered.Load()
}

// Stats returns current operational statistics.
func (p *Processor) Stats() ProcessorStats {
	p.mu.Lock()
	qs := p.carried
	connected := p.sess != nil
	pending := len(p.backlog)
	if p.sess != nil {
		live := p.sess.queue.Stats()
		qs.Successes += live.Successes
		qs.Nacks += live.Nacks
		qs.Timeouts += live.Timeouts
		qs.Passthroughs += live.Passthroughs
		qs.Retries += live.Retries
		pending += live.Pending
	}
	p.mu.Unlock()

	return ProcessorStats{
		CommandsTx:      p.commandsTx.Load(),
		UnknownCommands: p.unknownCommands.Load(),
		ResponsesRx:     p.responsesRx.Load(),
		Successes:       qs.Successes,
		Nacks:           qs.Nacks,
		Timeouts:        qs.Timeouts,
		Passthroughs:    qs.Passthroughs,
		Retries:         qs.Retries,
		ErrorsTotal:     p.errorsTotal.Load(),
		ReconnectsTotal: p.reconnectsTotal.Load(),
		Pending:         pending,
		LastActivity:    time.Unix(p.lastActivity.Load(), 0),
		Connected:       connected,
		Reconnecting:    p.reconnecting.Load(),
		Discovered:      p.discovered.Load(),
	}
}

// HealthCheck reports whether the link is usable.
func (p *Processor) HealthCheck(_ context.Context) error {
	if p.isClosed() {
		return ErrProcessorClosed
	}
	if !p.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// connect dials the link and assembles a session with the handshake queued.
func (p *Processor) connect(ctx context.Context, address string, port int) (*session, error) {
	link, err := p.cfg.Dialer.Dial(ctx, address, port)
	if err != nil {
		return nil, err
	}

	q := NewQueue(p.cfg.Queue)
	q.SetLogger(p.log())
	q.SetListener(p.handleResponse)

	s := &session{link: link, queue: q, failed: newCloseOnce()}

	r := NewReader(link, func(msg []byte) {
		p.responsesRx.Add(1)
		p.touch()
		q.OnResponse(msg)
	})
	r.SetLogger(p.log())
	r.OnError(func(err error) {
		p.errorsTotal.Add(1)
		s.fail()
	})
	s.reader = r

	if def, ok := p.catalog.Lookup(p.cfg.HandshakeCommand); ok {
		_ = q.Enqueue(NewInstance(def, nil)) //nolint:errcheck // queue is new
	} else {
		p.log().Warn("handshake command not in catalog", "command", p.cfg.HandshakeCommand)
	}

	r.Start()
	return s, nil
}

// install makes s the live session and hands it the backlog. It refuses
// once the processor is closed.
func (p *Processor) install(s *session) bool {
	p.mu.Lock()
	if p.isClosed() {
		p.mu.Unlock()
		p.teardown(s)
		return false
	}
	defer p.mu.Unlock()

	p.sess = s
	var held []*Instance
	for _, inst := range p.backlog {
		// A session can fail before it is handed anything. Whatever its
		// queue took is drained again on teardown, ahead of what is held.
		if s.queue.Enqueue(inst) != nil {
			held = append(held, inst)
		}
	}
	p.backlog = held
	return true
}

// teardown stops the reader, closes the link and queue, and returns the
// commands that were never dispatched.
func (p *Processor) teardown(s *session) []*Instance {
	var pending []*Instance
	s.downOnce.Do(func() {
		s.reader.Stop()
		_ = s.link.Close() //nolint:errcheck // best effort
		s.fail()

		select {
		case <-s.reader.Done():
		case <-time.After(readerStopTimeout):
			p.log().Warn("reader did not stop in time")
		}

		pending = s.queue.Drain()
		qs := s.queue.Stats()

		p.mu.Lock()
		p.carried.Successes += qs.Successes
		p.carried.Nacks += qs.Nacks
		p.carried.Timeouts += qs.Timeouts
		p.carried.Passthroughs += qs.Passthroughs
		p.carried.Retries += qs.Retries
		p.mu.Unlock()
	})
	return pending
}

// sendLoop dispatches commands until the processor is closed.
func (p *Processor) sendLoop() {
	defer p.wg.Done()

	for {
		if p.isClosed() {
			return
		}

		p.mu.Lock()
		s := p.sess
		p.mu.Unlock()

		if s == nil {
			if !p.reconnect(nil) {
				return
			}
			continue
		}

		inst, err := s.queue.Dequeue(p.ctx)
		if err != nil {
			if p.isClosed() {
				return
			}
			p.log().Warn("camera session failed", "error", err)
			if !p.reconnect(s) {
				return
			}
			continue
		}

		if err := p.write(s, inst); err != nil {
			p.errorsTotal.Add(1)
			p.log().Error("camera write failed", "command", inst.Name(), "error", err)
			if !p.reconnect(s) {
				return
			}
			continue
		}

		p.commandsTx.Add(1)
		p.touch()
	}
}

// write sends one frame to the link.
func (p *Processor) write(s *session, inst *Instance) error {
	frame := inst.Encode()

	if wd, ok := s.link.(writeDeadliner); ok {
		if err := wd.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout)); err != nil {
			return fmt.Errorf("%w: set deadline: %w", ErrWriteFailed, err)
		}
	}
	if _, err := s.link.Write(frame); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	p.log().Debug("command sent", "command", inst.Name(), "id", inst.ID, "frame", FormatHex(frame), "attempt", inst.Attempt)
	return nil
}

// reconnect replaces the failed session with a new one on the last known
// address, backing off exponentially between attempts. It returns false
// when the processor is closed first.
func (p *Processor) reconnect(failed *session) bool {
	p.reconnecting.Store(true)
	defer p.reconnecting.Store(false)

	p.mu.Lock()
	if failed != nil && p.sess == failed {
		p.sess = nil
	}
	address, port := p.address, p.port
	p.mu.Unlock()

	if failed != nil {
		carry := p.teardown(failed)
		p.mu.Lock()
		p.backlog = append(carry, p.backlog...)
		p.mu.Unlock()
	}

	backoff := p.cfg.ReconnectInterval
	for attempt := 1; ; attempt++ {
		if p.isClosed() {
			return false
		}

		p.log().Info("attempting reconnection", "attempt", attempt, "address", address, "port", port)
		s, err := p.connect(p.ctx, address, port)
		if err == nil {
			if !p.install(s) {
				return false
			}
			p.reconnectsTotal.Add(1)
			p.log().Info("reconnection successful", "total_reconnects", p.reconnectsTotal.Load())
			return true
		}

		p.errorsTotal.Add(1)
		p.log().Error("reconnect failed", "error", err, "backoff", backoff.String())

		select {
		case <-p.done.Done():
			return false
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * 1.5)
		if backoff > p.cfg.MaxReconnectInterval {
			backoff = p.cfg.MaxReconnectInterval
		}
	}
}

// handleResponse records discovery and forwards to the listener.
func (p *Processor) handleResponse(resp Response) {
	if resp.Outcome == OutcomeSuccess && p.discovered.CompareAndSwap(false, true) {
		p.log().Info("camera discovered", "command", resp.Command, "response", resp.Hex())
	}
	p.log().Debug("response received", "command", resp.Command, "outcome", resp.Outcome.String(), "response", resp.Hex())

	p.listenerMu.RLock()
	l := p.listener
	p.listenerMu.RUnlock()
	if l != nil {
		l(resp)
	}
}

func (p *Processor) touch() {
	p.lastActivity.Store(time.Now().Unix())
}

// isClosed returns true if the processor has been closed.
func (p *Processor) isClosed() bool {
	select {
	case <-p.done.Done():
		return true
	default:
		return false
	}
}

func (p *Processor) log() Logger {
	p.loggerMu.RLock()
	defer p.loggerMu.RUnlock()
	return p.logger
}
