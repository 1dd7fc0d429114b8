// Package codec is a gRPC codec that puts JSON on the wire. Protobuf messages
// are encoded with protojson, everything else with encoding/json.
package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Name is the content-subtype the codec is registered under.
const Name = "json"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec implements encoding.Codec.
type Codec struct{}

var (
	marshalOpts   = protojson.MarshalOptions{UseProtoNames: true}
	unmarshalOpts = protojson.UnmarshalOptions{DiscardUnknown: true}
)

// Marshal encodes v.
func (Codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return marshalOpts.Marshal(m)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}

	return data, nil
}

// Unmarshal decodes data into v. Empty input leaves v untouched.
func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}

	if m, ok := v.(proto.Message); ok {
		return unmarshalOpts.Unmarshal(data, m)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	return nil
}

// Name implements encoding.Codec.
func (Codec) Name() string { return Name }
