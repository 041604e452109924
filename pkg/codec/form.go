package codec

import (
	"fmt"
	"net/url"

	"github.com/Suhaibinator/SRest/pkg/common"
	"github.com/go-viper/mapstructure/v2"
)

// FormTag is the struct tag naming the form field of a struct field.
const FormTag = "form"

// FormCodec is a codec for application/x-www-form-urlencoded bodies.
// T may be url.Values, which receives the parsed values as is, or a struct
// whose fields are tagged with `form:"name"`. Struct fields are converted
// with weak typing, so "30" decodes into an int field.
type FormCodec[T any] struct{}

// NewFormCodec creates a new FormCodec instance for the request type T.
func NewFormCodec[T any]() *FormCodec[T] {
	return &FormCodec[T]{}
}

// Decode parses a url-encoded body into a T.
func (c *FormCodec[T]) Decode(body []byte) (T, error) {
	var data T
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return data, err
	}
	if v, ok := any(&data).(*url.Values); ok {
		*v = values
		return data, nil
	}

	input := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			input[k] = vs[0]
		} else {
			input[k] = vs
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          FormTag,
		Result:           &data,
	})
	if err != nil {
		return data, err
	}
	if err := dec.Decode(input); err != nil {
		return data, err
	}
	return data, nil
}

// Encode url-encodes v. v may be url.Values, a map[string]string or a struct
// tagged with `form:"name"`.
func (c *FormCodec[T]) Encode(v any) ([]byte, error) {
	switch val := v.(type) {
	case url.Values:
		return []byte(val.Encode()), nil
	case map[string]string:
		values := make(url.Values, len(val))
		for k, s := range val {
			values.Set(k, s)
		}
		return []byte(values.Encode()), nil
	}

	fields := make(map[string]any)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: FormTag,
		Result:  &fields,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, err
	}

	values := make(url.Values, len(fields))
	for k, f := range fields {
		if list, ok := f.([]string); ok {
			values[k] = list
			continue
		}
		values.Set(k, fmt.Sprint(f))
	}
	return []byte(values.Encode()), nil
}

// ContentType returns application/x-www-form-urlencoded.
func (c *FormCodec[T]) ContentType() string {
	return "application/x-www-form-urlencoded"
}

// FormValues returns a request stage parsing url-encoded bodies into url.Values.
func FormValues(opts ...DecoderOption) common.RequestHandler {
	return Decoder[url.Values](NewFormCodec[url.Values](), opts...)
}

// FormDecoder returns a request stage decoding url-encoded bodies into T.
func FormDecoder[T any](opts ...DecoderOption) common.RequestHandler {
	return Decoder[T](NewFormCodec[T](), opts...)
}
