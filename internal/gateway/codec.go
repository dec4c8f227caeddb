package gateway

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName registers alongside the default "proto" codec so a
// client connection can select it via grpc.CallContentSubtype. The wire contract is
// exercised over real grpc framing and flow control; it simply is not
// protoc-generated, avoiding hand-written .pb.go stubs entirely.
const jsonCodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements encoding.Codec by marshaling whatever struct is
// handed to it as JSON. The wire DTOs in wire.go (wireAddress, wirePort)
// realize the tagged-union address and port shapes through ordinary struct
// tags, translated from acl.Address/acl.Port by the toWire* helpers rather
// than custom MarshalJSON/UnmarshalJSON methods.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string { return jsonCodecName }
