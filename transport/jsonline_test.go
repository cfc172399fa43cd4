package transport

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"linkrpc/message"
)

func linePair(t *testing.T) (*LineTransport, *LineTransport, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	ta := NewLineTransport(a)
	tb := NewLineTransport(b)
	t.Cleanup(func() {
		ta.Close()
		tb.Close()
	})
	return ta, tb, a
}

func TestLineTransportRoundTrip(t *testing.T) {
	ta, tb, _ := linePair(t)

	go func() {
		ta.Send(&Frame{
			Kind: KindRequest,
			Seq:  5,
			Body: &message.Message{Method: "Greeter.Hello", Payload: []byte(`{"Name":"Bob"}`)},
		})
	}()

	got, err := tb.Receive()
	require.NoError(t, err)
	require.Equal(t, KindRequest, got.Kind)
	require.Equal(t, uint32(5), got.Seq)
	require.Equal(t, "Greeter.Hello", got.Body.Method)
	require.JSONEq(t, `{"Name":"Bob"}`, string(got.Body.Payload))
}

func TestLineTransportErrorResponse(t *testing.T) {
	ta, tb, _ := linePair(t)

	go func() {
		ta.Send(&Frame{
			Kind: KindResponse,
			Seq:  9,
			Body: message.Errorf(message.CodeUnknownMethod, "unknown service \"Nope\""),
		})
	}()

	got, err := tb.Receive()
	require.NoError(t, err)
	require.Equal(t, KindResponse, got.Kind)
	require.NotNil(t, got.Body.Status)
	require.Equal(t, message.CodeUnknownMethod, got.Body.Status.Code)
}

func TestLineTransportBadLineIsRecoverable(t *testing.T) {
	_, tb, raw := linePair(t)

	go func() {
		raw.Write([]byte("this is not json\n"))
		raw.Write([]byte(`{"kind":"request","seq":3,"method":"Arith.Add","payload":{"A":1,"B":2}}` + "\n"))
	}()

	_, err := tb.Receive()
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.False(t, de.Fatal, "a bad line costs only that line")

	got, err := tb.Receive()
	require.NoError(t, err)
	require.Equal(t, uint32(3), got.Seq)
	require.Equal(t, "Arith.Add", got.Body.Method)
}

func TestLineTransportSkipsBlankLines(t *testing.T) {
	_, tb, raw := linePair(t)

	go func() {
		raw.Write([]byte("\n\n"))
		raw.Write([]byte(`{"kind":"heartbeat","seq":0}` + "\n"))
	}()

	got, err := tb.Receive()
	require.NoError(t, err)
	require.Equal(t, KindHeartbeat, got.Kind)
}

func TestLineTransportEOF(t *testing.T) {
	a, b := net.Pipe()
	tb := NewLineTransport(b)
	t.Cleanup(func() { tb.Close() })

	a.Close()

	_, err := tb.Receive()
	require.ErrorIs(t, err, io.EOF)
}
