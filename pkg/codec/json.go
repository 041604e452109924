package codec

import (
	"encoding/json"

	"github.com/Suhaibinator/SRest/pkg/common"
)

// JSONCodec is a codec that uses JSON for marshaling and unmarshaling.
type JSONCodec[T any] struct{}

// NewJSONCodec creates a new JSONCodec instance for the request type T.
func NewJSONCodec[T any]() *JSONCodec[T] {
	return &JSONCodec[T]{}
}

// Decode unmarshals a JSON body into a T.
func (c *JSONCodec[T]) Decode(body []byte) (T, error) {
	var data T
	err := json.Unmarshal(body, &data)
	return data, err
}

// Encode marshals v to JSON.
func (c *JSONCodec[T]) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// ContentType returns application/json.
func (c *JSONCodec[T]) ContentType() string {
	return "application/json"
}

// JSONDecoder returns a request stage decoding JSON bodies into T.
func JSONDecoder[T any](opts ...DecoderOption) common.RequestHandler {
	return Decoder[T](NewJSONCodec[T](), opts...)
}

// JSONEncoder returns a response stage encoding response values as JSON.
func JSONEncoder() common.ResponseHandler {
	return Encoder(NewJSONCodec[any]())
}
