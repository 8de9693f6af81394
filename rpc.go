package virtrpc

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/jimyag/govirt/internal/constants"
	"github.com/jimyag/govirt/internal/wire"
)

// pendingResult is what the receive loop hands back to a blocked caller:
// the reply payload and the status that accompanied it.
type pendingResult struct {
	payload []byte
	status  wire.Status
}

// register installs a one-shot reply channel for serial. The serial is
// allocated and its slot installed strictly before the corresponding
// write, so a reply can never arrive before its channel exists.
func (c *Client) register(serial uint32) chan pendingResult {
	ch := make(chan pendingResult, 1)
	c.pendingMu.Lock()
	c.pending[serial] = ch
	c.pendingMu.Unlock()
	return ch
}

// deregister removes serial's slot. Safe to call more than once.
func (c *Client) deregister(serial uint32) {
	c.pendingMu.Lock()
	delete(c.pending, serial)
	c.pendingMu.Unlock()
}

// nextSerial provides atomic access to the next sequential request serial
// number.
func (c *Client) nextSerial() uint32 {
	return atomic.AddUint32(&c.serial, 1)
}

// Call sends a single RPC request for proc with the given pre-marshaled
// argument payload and blocks for the matching reply. It implements the
// minimal "caller" surface generated stubs depend on.
func (c *Client) Call(ctx context.Context, proc int32, args []byte) ([]byte, error) {
	if c.isClosed() {
		return nil, newRpcError(KindConnectionClosed, "client is closed")
	}

	start := time.Now()
	c.metrics.callStarted()

	serial := c.nextSerial()
	ch := c.register(serial)
	defer c.deregister(serial)

	h := wire.Header{
		Program:   constants.ProgramRemote,
		Version:   constants.ProtocolVersion,
		Procedure: uint32(proc),
		Type:      wire.Call,
		Serial:    serial,
		Status:    wire.StatusOK,
	}

	if err := c.sendFrame(h, args); err != nil {
		c.metrics.callFinished(outcomeTransportError, time.Since(start).Seconds())
		return nil, wrapRpcError(KindTransport, err, "sending call for proc %d", proc)
	}

	select {
	case res, ok := <-ch:
		if !ok {
			c.metrics.callFinished(outcomeTransportError, time.Since(start).Seconds())
			return nil, newRpcError(KindConnectionClosed, "connection closed while awaiting reply to proc %d", proc)
		}
		return c.finishCall(start, res)
	case <-ctx.Done():
		c.metrics.callFinished(outcomeTransportError, time.Since(start).Seconds())
		return nil, wrapRpcError(KindTransport, ctx.Err(), "waiting for reply to proc %d", proc)
	case <-c.done:
		c.metrics.callFinished(outcomeTransportError, time.Since(start).Seconds())
		return nil, newRpcError(KindConnectionClosed, "connection closed while awaiting reply to proc %d", proc)
	}
}

func (c *Client) finishCall(start time.Time, res pendingResult) ([]byte, error) {
	if res.status == wire.StatusError {
		remote, err := decodeRemoteError(res.payload)
		if err != nil {
			c.metrics.callFinished(outcomeTransportError, time.Since(start).Seconds())
			return nil, err
		}
		c.metrics.callFinished(outcomeRemoteError, time.Since(start).Seconds())
		if remote.Code == errOk {
			return res.payload, nil
		}
		return nil, &RpcError{Kind: KindRemote, Msg: remote.Message, Remote: remote}
	}
	c.metrics.callFinished(outcomeOK, time.Since(start).Seconds())
	return res.payload, nil
}

// sendFrame serializes writes to the transport.
func (c *Client) sendFrame(h wire.Header, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wire.Encode(c.rw, h, payload)
}

// recvLoop is the single goroutine that owns the read side of the
// connection. It runs until ctx is canceled (on Close) or the transport
// reaches a clean EOF, either of which ends it with a nil error after the
// connection is torn down and every pending call failed, or until
// wire.Decode reports a
// framing or transport failure — per §4.5/§7 either kind desynchronizes
// the stream and is fatal to the whole connection, so recvLoop tears the
// connection down and fails every pending call rather than looping on a
// stream it can no longer trust.
func (c *Client) recvLoop(ctx context.Context) error {
	for {
		h, payload, err := wire.Decode(c.rw)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.teardown()
				return nil
			}
			rpcErr := classifyRecvError(err)
			c.logger.Error(err, "receive loop terminating the connection after a fatal error")
			c.teardown()
			return rpcErr
		}
		c.route(h, payload)
	}
}

// classifyRecvError reports whether a wire.Decode failure was a framer
// validation error (the stream itself is desynchronized) or an ordinary
// transport read failure, both of which §7 treats as fatal to the
// connection, unlike a codec error on a single reply payload.
func classifyRecvError(err error) *RpcError {
	var mismatch *wire.ProtocolMismatchError
	var badType *wire.InvalidMsgTypeError
	var badStatus *wire.InvalidStatusError
	var oversized *wire.OversizedLengthError
	var short *wire.ShortFrameError
	switch {
	case errors.As(err, &mismatch), errors.As(err, &badType), errors.As(err, &badStatus),
		errors.As(err, &oversized), errors.As(err, &short):
		return wrapRpcError(KindFraming, err, "frame validation failed, connection desynchronized")
	default:
		return wrapRpcError(KindTransport, err, "transport read failed")
	}
}

// route dispatches a decoded frame by type: replies and stream packets are
// demultiplexed by serial to the matching pending call; MESSAGE packets
// go to the registered EventSink, if any, and are dropped otherwise.
func (c *Client) route(h wire.Header, payload []byte) {
	switch h.Type {
	case wire.Reply, wire.Stream:
		c.pendingMu.Lock()
		ch, ok := c.pending[h.Serial]
		c.pendingMu.Unlock()
		if !ok {
			c.logger.V(1).Info("dropping reply for unknown or already-completed serial", "serial", h.Serial)
			return
		}
		select {
		case ch <- pendingResult{payload: payload, status: h.Status}:
		default:
			c.logger.V(1).Info("dropping late reply, caller already gone", "serial", h.Serial)
		}
	case wire.Message:
		if c.eventSink != nil {
			c.eventSink(h.Procedure, payload)
		}
	default:
		c.logger.V(1).Info("dropping frame of unexpected type", "type", h.Type)
	}
}

// isClosed reports whether Close has run.
func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
