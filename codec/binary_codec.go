package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"linkrpc/message"
)

// BinaryCodec is a compact fixed-layout encoding of the envelope:
//
//	2B method len │ method │ 4B payload len │ payload │ 2B status code │ 2B status msg len │ status msg
//
// A zero status code with an empty status message decodes to a nil Status:
// success has no status on the wire, so a non-nil Status holding CodeOK and
// no message normalizes to nil across a round trip. Nil is the canonical
// success shape and the only one any sender produces.
type BinaryCodec struct{}

var errShortBody = errors.New("BinaryCodec: truncated body")

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(*message.Message)
	if !ok {
		return nil, errors.New("BinaryCodec: v must be *message.Message")
	}

	var code uint16
	var statusMsg string
	if msg.Status != nil {
		code = uint16(msg.Status.Code)
		statusMsg = msg.Status.Message
	}

	total := 2 + len(msg.Method) + 4 + len(msg.Payload) + 2 + 2 + len(statusMsg)
	buf := make([]byte, total)

	offset := 0
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(msg.Method)))
	offset += 2
	copy(buf[offset:offset+len(msg.Method)], msg.Method)
	offset += len(msg.Method)

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(msg.Payload)))
	offset += 4
	copy(buf[offset:offset+len(msg.Payload)], msg.Payload)
	offset += len(msg.Payload)

	binary.BigEndian.PutUint16(buf[offset:offset+2], code)
	offset += 2
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(statusMsg)))
	offset += 2
	copy(buf[offset:offset+len(statusMsg)], statusMsg)

	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	msg, ok := v.(*message.Message)
	if !ok {
		return errors.New("BinaryCodec: v must be *message.Message")
	}

	// Every read is bounds-checked: a truncated or garbage body must come
	// back as an error, never a panic — the server answers it with an
	// error response and keeps the connection.
	offset := 0
	methodLen, err := readUint16(data, &offset)
	if err != nil {
		return err
	}
	methodBytes, err := readBytes(data, &offset, int(methodLen))
	if err != nil {
		return err
	}
	msg.Method = string(methodBytes)

	payloadLen, err := readUint32(data, &offset)
	if err != nil {
		return err
	}
	payload, err := readBytes(data, &offset, int(payloadLen))
	if err != nil {
		return err
	}
	msg.Payload = make([]byte, payloadLen)
	copy(msg.Payload, payload)

	code, err := readUint16(data, &offset)
	if err != nil {
		return err
	}
	statusMsgLen, err := readUint16(data, &offset)
	if err != nil {
		return err
	}
	statusMsg, err := readBytes(data, &offset, int(statusMsgLen))
	if err != nil {
		return err
	}

	if code == 0 && statusMsgLen == 0 {
		msg.Status = nil
	} else {
		msg.Status = &message.Status{
			Code:    message.Code(code),
			Message: string(statusMsg),
		}
	}
	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

func readUint16(data []byte, offset *int) (uint16, error) {
	if *offset+2 > len(data) {
		return 0, fmt.Errorf("%w at offset %d", errShortBody, *offset)
	}
	v := binary.BigEndian.Uint16(data[*offset : *offset+2])
	*offset += 2
	return v, nil
}

func readUint32(data []byte, offset *int) (uint32, error) {
	if *offset+4 > len(data) {
		return 0, fmt.Errorf("%w at offset %d", errShortBody, *offset)
	}
	v := binary.BigEndian.Uint32(data[*offset : *offset+4])
	*offset += 4
	return v, nil
}

func readBytes(data []byte, offset *int, n int) ([]byte, error) {
	if n < 0 || *offset+n > len(data) {
		return nil, fmt.Errorf("%w at offset %d", errShortBody, *offset)
	}
	b := data[*offset : *offset+n]
	*offset += n
	return b, nil
}
