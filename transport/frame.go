package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"linkrpc/codec"
	"linkrpc/message"
	"linkrpc/protocol"
)

// FrameTransport speaks the binary frame protocol over a byte stream.
//
// Writes are serialized by an internal mutex so that concurrent senders
// cannot interleave header and body bytes from different frames. Reads are
// unsynchronized and expected from a single goroutine.
type FrameTransport struct {
	r         io.Reader
	w         io.Writer
	closer    io.Closer
	codecType codec.CodecType
	writeMu   sync.Mutex
}

// NewFrameTransport wraps a network connection. codecType selects the body
// encoding for outbound frames; inbound frames declare their own codec in
// the header, so mixed peers interoperate.
func NewFrameTransport(conn net.Conn, codecType codec.CodecType) *FrameTransport {
	return &FrameTransport{
		r:         bufio.NewReader(conn),
		w:         conn,
		closer:    conn,
		codecType: codecType,
	}
}

// NewFrameTransportFrom builds a transport over an explicit reader/writer
// pair. The server uses this after peeking at the first byte through its own
// buffered reader to detect the framing.
func NewFrameTransportFrom(r io.Reader, wc io.WriteCloser, codecType codec.CodecType) *FrameTransport {
	return &FrameTransport{r: r, w: wc, closer: wc, codecType: codecType}
}

func (t *FrameTransport) Send(f *Frame) error {
	var body []byte
	if f.Body != nil {
		var err error
		body, err = codec.GetCodec(t.codecType).Encode(f.Body)
		if err != nil {
			return err
		}
	}

	header := protocol.Header{
		CodecType: byte(t.codecType),
		MsgType:   msgType(f.Kind),
		Seq:       f.Seq,
		BodyLen:   uint32(len(body)),
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return protocol.Encode(t.w, &header, body)
}

func (t *FrameTransport) Receive() (*Frame, error) {
	header, body, err := protocol.Decode(t.r)
	if err != nil {
		if errors.Is(err, protocol.ErrMalformed) {
			// Frame boundary lost — nothing after this point can be parsed.
			return nil, &DecodeError{Fatal: true, Err: err}
		}
		return nil, err
	}

	if header.MsgType == protocol.MsgTypeHeartbeat {
		return &Frame{Kind: KindHeartbeat, Seq: header.Seq}, nil
	}

	// The header parsed and the body was fully consumed, so the stream is
	// still frame-synchronized even if the body itself is garbage.
	msg := &message.Message{}
	if err := codec.GetCodec(codec.CodecType(header.CodecType)).Decode(body, msg); err != nil {
		return nil, &DecodeError{Seq: header.Seq, Err: err}
	}

	return &Frame{Kind: kind(header.MsgType), Seq: header.Seq, Body: msg}, nil
}

func (t *FrameTransport) Close() error {
	return t.closer.Close()
}

func msgType(k Kind) protocol.MsgType {
	switch k {
	case KindResponse:
		return protocol.MsgTypeResponse
	case KindHeartbeat:
		return protocol.MsgTypeHeartbeat
	default:
		return protocol.MsgTypeRequest
	}
}

func kind(mt protocol.MsgType) Kind {
	switch mt {
	case protocol.MsgTypeResponse:
		return KindResponse
	case protocol.MsgTypeHeartbeat:
		return KindHeartbeat
	default:
		return KindRequest
	}
}
