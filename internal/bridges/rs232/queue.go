package rs232

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Default queue timings and protocol codes.
const (
	// DefaultMinCommandDelay is the minimum spacing between two dispatches.
	DefaultMinCommandDelay = 200 * time.Millisecond

	// DefaultPostResponseWait is the extra pause owed after a successful response.
	DefaultPostResponseWait = 50 * time.Millisecond

	// DefaultAckTimeout bounds the wait for a response before the gate is forced open.
	DefaultAckTimeout = 1000 * time.Millisecond

	// DefaultNackBackoff is the settle time the camera needs after a NACK.
	DefaultNackBackoff = 250 * time.Millisecond

	// DefaultNackCode is the status byte the camera uses to reject a command.
	DefaultNackCode byte = 0xB4

	// unsolicitedCompletionCode stands in for the completion code when a
	// message arrives with nothing outstanding.
	unsolicitedCompletionCode byte = 0xBB
)

// RetryPolicy controls resending after a NACK or ack timeout.
// MaxAttempts of 0 or 1 keeps the best-effort behaviour: nothing is resent.
type RetryPolicy struct {
	MaxAttempts int
}

func (p RetryPolicy) allows(inst *Instance) bool {
	return p.MaxAttempts > 1 && inst != nil && inst.Attempt < p.MaxAttempts
}

// QueueConfig holds the admission timings. Zero values take the defaults.
type QueueConfig struct {
	MinCommandDelay  time.Duration
	PostResponseWait time.Duration
	AckTimeout       time.Duration
	NackBackoff      time.Duration
	NackCode         byte
	Retry            RetryPolicy
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.MinCommandDelay == 0 {
		c.MinCommandDelay = DefaultMinCommandDelay
	}
	if c.PostResponseWait == 0 {
		c.PostResponseWait = DefaultPostResponseWait
	}
	if c.AckTimeout == 0 {
		c.AckTimeout = DefaultAckTimeout
	}
	if c.NackBackoff == 0 {
		c.NackBackoff = DefaultNackBackoff
	}
	if c.NackCode == 0 {
		c.NackCode = DefaultNackCode
	}
	return c
}

// QueueStats holds queue counters.
type QueueStats struct {
	Enqueued     uint64
	Dispatched   uint64
	Successes    uint64
	Nacks        uint64
	Timeouts     uint64
	Passthroughs uint64
	Retries      uint64
	Pending      int
}

// Queue serialises commands onto the link and correlates responses with
// the single outstanding command.
//
// All timing and correlation state is guarded by mu. Waiters block on the
// wake channel, which is closed and replaced under mu on every state change,
// so a wakeup cannot be lost between checking state and starting to wait.
type Queue struct {
	cfg QueueConfig

	mu           sync.Mutex
	wake         chan struct{}
	pending      []*Instance
	outstanding  *Instance
	lastSend     time.Time
	resumeAt     time.Time // post-response wait owed until this instant
	gateOpen     bool
	gateDeadline time.Time // zero until a dequeue starts waiting on the gate
	acked        bool
	completed    bool
	closed       bool

	done *closeOnce

	listener   ResponseListener
	listenerMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex

	enqueued     atomic.Uint64
	dispatched   atomic.Uint64
	successes    atomic.Uint64
	nacks        atomic.Uint64
	timeouts     atomic.Uint64
	passthroughs atomic.Uint64
	retries      atomic.Uint64
}

// NewQueue creates an empty queue with an open gate.
func NewQueue(cfg QueueConfig) *Queue {
	return &Queue{
		cfg:      cfg.withDefaults(),
		wake:     make(chan struct{}),
		gateOpen: true,
		done:     newCloseOnce(),
		logger:   nopLogger{},
	}
}

// SetListener registers the receiver of classified responses.
func (q *Queue) SetListener(l ResponseListener) {
	q.listenerMu.Lock()
	q.listener = l
	q.listenerMu.Unlock()
}

// SetLogger sets the logger for this queue.
func (q *Queue) SetLogger(l Logger) {
	q.loggerMu.Lock()
	q.logger = l
	q.loggerMu.Unlock()
}

// SetMinCommandDelay changes the minimum spacing between dispatches.
func (q *Queue) SetMinCommandDelay(d time.Duration) {
	q.mu.Lock()
	q.cfg.MinCommandDelay = d
	q.broadcastLocked()
	q.mu.Unlock()
}

// Enqueue appends inst to the FIFO. It never blocks and has no capacity limit.
func (q *Queue) Enqueue(inst *Instance) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.pending = append(q.pending, inst)
	q.enqueued.Add(1)
	q.broadcastLocked()
	return nil
}

// Dequeue blocks until the admission rules allow the next dispatch and
// returns the FIFO head, which becomes the outstanding command.
//
// Admission, recomputed after every wakeup:
//  1. any post-response wait still owed has elapsed
//  2. MinCommandDelay has passed since the previous dispatch
//  3. the gate is open; a closed gate is forced open after AckTimeout
//  4. the FIFO is not empty
//
// Returns ErrQueueClosed after Close, or the context error.
func (q *Queue) Dequeue(ctx context.Context) (*Instance, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed {
			return nil, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		now := time.Now()
		if now.Before(q.resumeAt) {
			q.waitLocked(ctx, q.resumeAt.Sub(now))
			continue
		}
		if next := q.lastSend.Add(q.cfg.MinCommandDelay); now.Before(next) {
			q.waitLocked(ctx, next.Sub(now))
			continue
		}
		if !q.gateOpen {
			if q.gateDeadline.IsZero() {
				q.gateDeadline = now.Add(q.cfg.AckTimeout)
			}
			if now.Before(q.gateDeadline) {
				q.waitLocked(ctx, q.gateDeadline.Sub(now))
				continue
			}
			q.forceOpenLocked()
			continue
		}
		if len(q.pending) == 0 {
			q.waitLocked(ctx, 0)
			continue
		}

		inst := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]

		now = time.Now()
		inst.SentAt = now
		q.lastSend = now
		q.gateOpen = false
		q.gateDeadline = time.Time{}
		q.outstanding = inst
		q.acked = false
		q.completed = false
		q.dispatched.Add(1)
		return inst, nil
	}
}

// OnResponse correlates one raw message with the outstanding command.
// It runs on the reader goroutine; a NACK holds it for the backoff period.
func (q *Queue) OnResponse(raw []byte) {
	if len(raw) == 0 {
		return
	}
	resp := newResponse(raw)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}

	out := q.outstanding
	expected, completion := raw, unsolicitedCompletionCode
	if out != nil {
		expected = out.Definition.Response
		completion = out.Definition.CompletionCode
		resp.Command = out.Name()
		resp.CommandID = out.ID
		resp.Latency = resp.ReceivedAt.Sub(out.SentAt)
	}

	if bytes.Equal(raw, expected) {
		q.acked = true
	}
	if out == nil || completion == 0 || (len(raw) == 1 && raw[0] == completion) {
		q.completed = true
	}

	switch {
	case q.acked && q.completed:
		q.outstanding = nil
		q.resumeAt = time.Now().Add(q.cfg.PostResponseWait)
		q.openGateLocked()
		q.mu.Unlock()

		resp.Outcome = OutcomeSuccess
		q.successes.Add(1)

	case resp.Status == q.cfg.NackCode:
		q.mu.Unlock()

		resp.Outcome = OutcomeFail
		q.nacks.Add(1)
		q.log().Warn("camera rejected command", "command", resp.Command, "response", resp.Hex())

		select {
		case <-time.After(q.cfg.NackBackoff):
		case <-q.done.Done():
			return
		}

		q.mu.Lock()
		// The ack ceiling may have moved on to another command meanwhile;
		// its gate is not ours to open.
		if q.outstanding == out {
			if q.cfg.Retry.allows(out) {
				q.requeueLocked(out)
			}
			q.openGateLocked()
		}
		q.mu.Unlock()

	default:
		q.mu.Unlock()
		resp.Outcome = OutcomePassthrough
		q.passthroughs.Add(1)
	}

	q.deliver(resp)
}

// Outstanding returns the command awaiting resolution, or nil.
func (q *Queue) Outstanding() *Instance {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding
}

// Len returns the number of commands waiting for dispatch.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain removes and returns every command not yet dispatched.
func (q *Queue) Drain() []*Instance {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.pending
	q.pending = nil
	return drained
}

// Close stops the queue and wakes every waiter. Safe to call multiple times.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.broadcastLocked()
	}
	q.mu.Unlock()
	q.done.Close()
}

// Stats returns current queue counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Enqueued:     q.enqueued.Load(),
		Dispatched:   q.dispatched.Load(),
		Successes:    q.successes.Load(),
		Nacks:        q.nacks.Load(),
		Timeouts:     q.timeouts.Load(),
		Passthroughs: q.passthroughs.Load(),
		Retries:      q.retries.Load(),
		Pending:      q.Len(),
	}
}

// forceOpenLocked opens a gate whose ack wait expired.
func (q *Queue) forceOpenLocked() {
	out := q.outstanding
	q.timeouts.Add(1)

	name := ""
	if out != nil {
		name = out.Name()
	}
	q.log().Warn("no response from camera, continuing", "command", name, "error", ErrResponseTimeout)

	if q.cfg.Retry.allows(out) {
		q.requeueLocked(out)
	}
	q.openGateLocked()
}

// requeueLocked puts another attempt of inst at the head of the FIFO.
func (q *Queue) requeueLocked(inst *Instance) {
	q.pending = append([]*Instance{inst.retry()}, q.pending...)
	q.outstanding = nil
	q.retries.Add(1)
}

func (q *Queue) openGateLocked() {
	q.gateOpen = true
	q.gateDeadline = time.Time{}
	q.broadcastLocked()
}

func (q *Queue) broadcastLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// waitLocked releases mu until a broadcast, the timeout, cancellation or
// close. A zero timeout waits without limit.
func (q *Queue) waitLocked(ctx context.Context, timeout time.Duration) {
	wake := q.wake
	q.mu.Unlock()
	defer q.mu.Lock()

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-wake:
	case <-expired:
	case <-ctx.Done():
	case <-q.done.Done():
	}
}

func (q *Queue) deliver(resp Response) {
	q.listenerMu.RLock()
	l := q.listener
	q.listenerMu.RUnlock()

	if l == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.log().Error("response listener panicked", "panic", r)
		}
	}()
	l(resp)
}

func (q *Queue) log() Logger {
	q.loggerMu.RLock()
	defer q.loggerMu.RUnlock()
	return q.logger
}
