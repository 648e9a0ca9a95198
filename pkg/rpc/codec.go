package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered as this call's content-subtype, selecting
// jsonCodec for both ends of the connection. The worker fleet here has no
// generated protobuf stubs to pair with client-side messages, so the wire
// format is JSON carried over a normal gRPC unary call: the client still
// gets gRPC's framing, deadlines, status codes, and connection management,
// it just marshals with encoding/json instead of proto.Marshal.
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpc: unmarshal into %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }
