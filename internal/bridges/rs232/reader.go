package rs232

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// readBufferSize is the largest message a single read can return.
const readBufferSize = 20

// readDeadliner is implemented by links whose blocking read can be interrupted.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Reader pulls raw messages off the link. Each read is one message and is
// handed to the handler on the reader goroutine, so the next read waits
// until the handler returns.
type Reader struct {
	src     io.Reader
	handler func([]byte)
	onError func(error)

	startOnce sync.Once
	stopping  atomic.Bool
	done      chan struct{}

	logger Logger

	messages atomic.Uint64
	bytesRx  atomic.Uint64
}

// NewReader creates a reader delivering messages from src to handler.
func NewReader(src io.Reader, handler func([]byte)) *Reader {
	return &Reader{
		src:     src,
		handler: handler,
		done:    make(chan struct{}),
		logger:  nopLogger{},
	}
}

// SetLogger sets the logger. Call before Start.
func (r *Reader) SetLogger(l Logger) {
	r.logger = l
}

// OnError registers fn to be told when the read loop dies while still
// running. Call before Start.
func (r *Reader) OnError(fn func(error)) {
	r.onError = fn
}

// Start launches the read loop. Later calls do nothing.
func (r *Reader) Start() {
	r.startOnce.Do(func() {
		go r.loop()
	})
}

// Stop asks the loop to exit and interrupts a blocked read where the link
// allows it. Closing the link also unblocks the read.
func (r *Reader) Stop() {
	r.stopping.Store(true)
	if d, ok := r.src.(readDeadliner); ok {
		_ = d.SetReadDeadline(time.Now()) //nolint:errcheck // link may already be closed
	}
}

// Done is closed when the read loop has exited.
func (r *Reader) Done() <-chan struct{} {
	return r.done
}

// Messages returns the number of messages delivered.
func (r *Reader) Messages() uint64 {
	return r.messages.Load()
}

// BytesReceived returns the number of bytes read from the link.
func (r *Reader) BytesReceived() uint64 {
	return r.bytesRx.Load()
}

func (r *Reader) loop() {
	defer close(r.done)

	buf := make([]byte, readBufferSize)
	for {
		n, err := r.src.Read(buf)
		if n > 0 && !r.stopping.Load() {
			msg := make([]byte, n)
			copy(msg, buf[:n])
			r.messages.Add(1)
			r.bytesRx.Add(uint64(n))
			r.handler(msg)
		}
		if err == nil {
			continue
		}

		if r.stopping.Load() {
			r.logger.Debug("reader stopped", "error", err)
			return
		}
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			r.logger.Warn("camera link closed", "error", err)
		} else {
			r.logger.Error("camera link read failed", "error", err)
		}
		if r.onError != nil {
			r.onError(err)
		}
		return
	}
}
