package codec

import (
	"errors"
	"fmt"

	"github.com/Suhaibinator/SRest/pkg/common"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ErrNotProtoMessage is returned when a ProtoCodec is asked to encode a value
// that is not a proto.Message.
var ErrNotProtoMessage = errors.New("codec: value does not implement proto.Message")

// ProtoCodec is a codec that uses Protocol Buffers for marshaling and unmarshaling.
// T is a generated message pointer type such as *pb.User. When JSON is set the
// protobuf JSON mapping is used instead of the binary wire format.
type ProtoCodec[T proto.Message] struct {
	JSON bool
}

// NewProtoCodec creates a new ProtoCodec for the binary wire format.
func NewProtoCodec[T proto.Message]() *ProtoCodec[T] {
	return &ProtoCodec[T]{}
}

// NewProtoJSONCodec creates a new ProtoCodec for the protobuf JSON mapping.
func NewProtoJSONCodec[T proto.Message]() *ProtoCodec[T] {
	return &ProtoCodec[T]{JSON: true}
}

// Decode unmarshals body into a new T.
func (c *ProtoCodec[T]) Decode(body []byte) (T, error) {
	var zero T
	msg, ok := zero.ProtoReflect().New().Interface().(T)
	if !ok {
		return zero, fmt.Errorf("codec: cannot instantiate %T", zero)
	}

	var err error
	if c.JSON {
		err = protojson.Unmarshal(body, msg)
	} else {
		err = proto.Unmarshal(body, msg)
	}
	if err != nil {
		return zero, err
	}
	return msg, nil
}

// Encode marshals a proto.Message.
func (c *ProtoCodec[T]) Encode(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotProtoMessage, v)
	}
	if c.JSON {
		return protojson.Marshal(msg)
	}
	return proto.Marshal(msg)
}

// ContentType returns application/x-protobuf, or application/json for the JSON mapping.
func (c *ProtoCodec[T]) ContentType() string {
	if c.JSON {
		return "application/json"
	}
	return "application/x-protobuf"
}

// ProtoDecoder returns a request stage decoding binary protobuf bodies into T.
func ProtoDecoder[T proto.Message](opts ...DecoderOption) common.RequestHandler {
	return Decoder[T](NewProtoCodec[T](), opts...)
}

// ProtoEncoder returns a response stage encoding proto.Message bodies in the
// binary wire format.
func ProtoEncoder() common.ResponseHandler {
	return Encoder(NewProtoCodec[proto.Message]())
}
