// Package codec serializes the RPC envelope into frame bodies.
//
// Two formats are supported: JSON (debuggable, cross-language) and a compact
// hand-written binary layout. Whatever Encode produces, Decode on the peer
// must read back to an equal envelope — the transport picks the codec per
// connection via the frame header's codec byte.
package codec

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType // 0=JSON, 1=Binary
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return &JSONCodec{}
	}

	return &BinaryCodec{}
}
