// Package message defines the RPC envelope exchanged between client and server.
//
// Message is serialized by the codec layer and carried inside a transport
// frame. The frame owns the sequence number; the envelope owns the method
// name, the payload, and the error status.
package message

import "fmt"

// Code classifies a failed RPC. Zero means success.
//
// Codes are part of the wire format: the server answers every accepted
// request with either a success envelope (Status == nil) or an error
// envelope carrying one of these codes, and the client surfaces them as
// typed errors.
type Code uint16

const (
	CodeOK            Code = 0
	CodeUnknownMethod Code = 1 // method identifier not in the service map
	CodeBadArgument   Code = 2 // payload did not decode into the method's args
	CodeDecode        Code = 3 // envelope itself was undecodable
	CodeHandler       Code = 4 // handler returned an application error
	CodeTimeout       Code = 5 // handler exceeded the configured deadline
	CodeRateLimited   Code = 6 // rejected by the rate-limit middleware
	CodeTransport     Code = 7 // connection failed before a response arrived
	CodeShutdown      Code = 8 // server is draining
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeUnknownMethod:
		return "unknown_method"
	case CodeBadArgument:
		return "bad_argument"
	case CodeDecode:
		return "decode_error"
	case CodeHandler:
		return "handler_error"
	case CodeTimeout:
		return "timeout"
	case CodeRateLimited:
		return "rate_limited"
	case CodeTransport:
		return "transport_error"
	case CodeShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("code(%d)", uint16(c))
	}
}

// Status describes a failed RPC. It travels on the wire and doubles as the
// error value handed to the caller, so every request ends in either a typed
// success value or a typed error.
type Status struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (s *Status) Error() string {
	return fmt.Sprintf("rpc: %s: %s", s.Code, s.Message)
}

// Message carries the data for a single RPC request or response.
//
//   - On request:  Method is set, Payload contains the serialized args, Status is nil.
//   - On response: Payload contains the serialized reply; Status is non-nil if the call failed.
type Message struct {
	Method  string  // Format: "ServiceName.MethodName", e.g., "Arith.Add"
	Status  *Status // nil on success
	Payload []byte  // Serialized args (request) or reply (response)
}

// Errorf builds an error response envelope.
func Errorf(code Code, format string, args ...any) *Message {
	return &Message{Status: &Status{Code: code, Message: fmt.Sprintf(format, args...)}}
}

// Err returns the envelope's status as an error, or nil on success.
func (m *Message) Err() error {
	if m.Status == nil {
		return nil
	}
	return m.Status
}
