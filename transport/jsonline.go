package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"linkrpc/message"
	"linkrpc/protocol"
)

// lineEnvelope is the JSON-lines wire shape: one object per line.
// json.Marshal never emits a raw newline, so '\n' is an unambiguous
// frame delimiter.
type lineEnvelope struct {
	Kind    string          `json:"kind"` // "request" | "response" | "heartbeat"
	Seq     uint32          `json:"seq"`
	Method  string          `json:"method,omitempty"`
	Code    uint16          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// LineTransport frames messages as newline-delimited JSON objects.
//
// A line that fails to parse costs only that line — the scanner is already
// positioned at the next newline, so decode errors are never fatal here
// (unlike the binary framing, where lost sync kills the connection).
type LineTransport struct {
	scanner *bufio.Scanner
	w       io.Writer
	closer  io.Closer
	writeMu sync.Mutex
}

func NewLineTransport(conn net.Conn) *LineTransport {
	return newLineTransport(bufio.NewReader(conn), conn)
}

// NewLineTransportFrom builds a transport over an explicit reader/writer
// pair, for the server's framing auto-detection path.
func NewLineTransportFrom(r io.Reader, wc io.WriteCloser) *LineTransport {
	return newLineTransport(r, wc)
}

func newLineTransport(r io.Reader, wc io.WriteCloser) *LineTransport {
	scanner := bufio.NewScanner(r)
	// Same body bound as the binary framing
	scanner.Buffer(make([]byte, 64*1024), protocol.MaxBodySize)
	return &LineTransport{scanner: scanner, w: wc, closer: wc}
}

func (t *LineTransport) Send(f *Frame) error {
	env := lineEnvelope{Seq: f.Seq}
	switch f.Kind {
	case KindRequest:
		env.Kind = "request"
	case KindResponse:
		env.Kind = "response"
	case KindHeartbeat:
		env.Kind = "heartbeat"
	}
	if f.Body != nil {
		env.Method = f.Body.Method
		env.Payload = json.RawMessage(f.Body.Payload)
		if f.Body.Status != nil {
			env.Code = uint16(f.Body.Status.Code)
			env.Error = f.Body.Status.Message
		}
	}

	line, err := json.Marshal(&env)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.w.Write(line)
	return err
}

func (t *LineTransport) Receive() (*Frame, error) {
	for {
		if !t.scanner.Scan() {
			if err := t.scanner.Err(); err != nil {
				if err == bufio.ErrTooLong {
					// Cannot skip to the next delimiter once the buffer
					// overflows, so treat it like lost sync.
					return nil, &DecodeError{Fatal: true, Err: err}
				}
				return nil, err
			}
			return nil, io.EOF
		}

		line := t.scanner.Bytes()
		if len(line) == 0 {
			continue // tolerate blank lines
		}

		var env lineEnvelope
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, &DecodeError{Err: err}
		}

		f := &Frame{Seq: env.Seq}
		switch env.Kind {
		case "request":
			f.Kind = KindRequest
		case "response":
			f.Kind = KindResponse
		case "heartbeat":
			f.Kind = KindHeartbeat
			return f, nil
		default:
			return nil, &DecodeError{Seq: env.Seq, Err: fmt.Errorf("unknown frame kind %q", env.Kind)}
		}

		f.Body = &message.Message{
			Method:  env.Method,
			Payload: []byte(env.Payload),
		}
		if env.Code != 0 || env.Error != "" {
			f.Body.Status = &message.Status{
				Code:    message.Code(env.Code),
				Message: env.Error,
			}
		}
		return f, nil
	}
}

func (t *LineTransport) Close() error {
	return t.closer.Close()
}
