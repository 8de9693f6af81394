// Package virtrpc is a native Go client for libvirt's RPC wire protocol:
// XDR encoding, the wire framer, and the connection core that ties them
// together into a typed Call. It does not link against C libvirt and does
// not implement a transport; callers supply an io.ReadWriteCloser already
// connected to a libvirtd socket.
package virtrpc

import (
	"context"
	"io"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

// EventSink receives MESSAGE-type packets (asynchronous server
// notifications) as they arrive. Registering one is optional; packets
// arriving with no sink registered are dropped.
type EventSink func(procedure uint32, payload []byte)

// Client is a connection to a libvirt RPC server over an already-dialed
// transport. The zero value is not usable; construct one with NewClient.
type Client struct {
	rw io.ReadWriteCloser

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[uint32]chan pendingResult

	serial uint32

	logger    logr.Logger
	metrics   *Metrics
	eventSink EventSink

	group     *errgroup.Group
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger injects a structured logger for receive-loop lifecycle
// events, dropped late replies, and framing failures. The default is
// logr.Discard().
func WithLogger(l logr.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics attaches an optional Prometheus instrument set. Passing nil
// (the default) disables instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithEventSink registers a handler for MESSAGE-type packets.
func WithEventSink(sink EventSink) Option {
	return func(c *Client) { c.eventSink = sink }
}

// NewClient wraps rw (already connected to a libvirtd socket, by whatever
// transport the caller chose) and starts the single receive-loop goroutine
// that owns the read side for the lifetime of the connection.
func NewClient(rw io.ReadWriteCloser, opts ...Option) *Client {
	c := &Client{
		rw:      rw,
		pending: make(map[uint32]chan pendingResult),
		logger:  logr.Discard(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	c.group = g
	g.Go(func() error {
		return c.recvLoop(gctx)
	})

	return c
}

// Close cancels the receive loop, closes the underlying transport to
// unblock any in-progress read, and waits for the loop to exit. It is
// idempotent and safe to call more than once or concurrently.
func (c *Client) Close() error {
	c.teardown()
	waitErr := c.group.Wait()
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.closeErr == nil {
		c.closeErr = waitErr
	}
	return c.closeErr
}

// teardown marks the connection closed, unblocks the receive loop's
// in-progress read, and fails every call still waiting on a reply with
// ConnectionClosed. It is idempotent and is invoked either by the public
// Close or by recvLoop itself right after a fatal framing or transport
// error (per §4.5/§7, such errors are fatal to the whole connection, not
// just the frame that triggered them) — so it must never wait on the
// receive-loop goroutine, which would deadlock when recvLoop is the
// caller.
func (c *Client) teardown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		c.closeErr = c.rw.Close()
		c.failPending()
	})
}

// failPending wakes every still-blocked Call with a ConnectionClosed
// error, so teardown doesn't leave callers hanging forever.
func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for serial, ch := range c.pending {
		close(ch)
		delete(c.pending, serial)
	}
}
