// Package transport carries framed RPC envelopes over a byte stream.
//
// Two interchangeable framings implement the Transport interface:
//
//   - FrameTransport: the binary frame protocol (fixed header + body,
//     pluggable JSON/binary body codec) — see package protocol.
//   - LineTransport: one JSON object per line, newline-delimited.
//
// Both ends of a connection must use the same framing; the server
// auto-detects it from the first byte ('{' means JSON lines).
//
// The package also provides ClientTransport, which multiplexes many
// concurrent calls over a single Transport, and Pool, which recycles
// client transports per target address.
package transport

import (
	"fmt"

	"linkrpc/message"
)

// Kind distinguishes the three frame types on the wire.
type Kind byte

const (
	KindRequest   Kind = 0
	KindResponse  Kind = 1
	KindHeartbeat Kind = 2
)

// Frame is one framed message. Seq is the correlation id pairing a request
// with its response; it is opaque to the server, which only echoes it.
type Frame struct {
	Kind Kind
	Seq  uint32
	Body *message.Message // nil for heartbeat frames
}

// Transport delivers discrete frames in both directions over a byte stream.
//
// Send serializes and writes one frame; it is safe for concurrent use and
// fails with the underlying IO error when the stream is down. Receive
// produces the next inbound frame; it returns io.EOF when the peer closes
// cleanly and *DecodeError when framing or deserialization fails. Receive
// must be called from a single goroutine.
type Transport interface {
	Send(f *Frame) error
	Receive() (*Frame, error)
	Close() error
}

// DecodeError reports an inbound frame that could not be decoded.
//
// Fatal means frame synchronization is lost (garbage where a frame header
// should be) and the connection must close. A non-fatal DecodeError is
// scoped to one frame: the stream is still positioned at the next frame and
// the connection stays usable. Seq carries the frame's correlation id when
// it could be recovered, so the peer can still be answered; zero otherwise.
type DecodeError struct {
	Seq   uint32
	Fatal bool
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("transport: unrecoverable decode error: %v", e.Err)
	}
	return fmt.Sprintf("transport: decode error (seq %d): %v", e.Seq, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
