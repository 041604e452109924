// Package codec provides pipeline stages that decode request bodies into Go
// values and encode response values into bytes for different data formats.
package codec

import (
	"mime"
	"net/http"

	"github.com/Suhaibinator/SRest/pkg/common"
)

// Codec decodes request bodies into values of type T and encodes response values.
type Codec[T any] interface {
	BodyEncoder

	// Decode decodes a request body.
	Decode(body []byte) (T, error)
}

// BodyEncoder encodes response values into bytes.
type BodyEncoder interface {
	// Encode encodes a response value.
	Encode(v any) ([]byte, error)

	// ContentType is the media type of the encoded bytes.
	ContentType() string
}

// DecoderOption configures a Decoder stage.
type DecoderOption func(*decoderOptions)

type decoderOptions struct {
	acceptMissing bool
}

// AcceptMissingContentType makes the decoder also take bodies sent without a
// Content-Type header. Register at most one such decoder per pipeline.
func AcceptMissingContentType() DecoderOption {
	return func(o *decoderOptions) {
		o.acceptMissing = true
	}
}

type decoder[T any] struct {
	codec Codec[T]
	opts  decoderOptions
}

// Decoder returns a request stage that replaces the buffered []byte body with
// the decoded T. Requests without a body, and requests whose Content-Type is
// missing or names another media type, pass unchanged. A body that fails to
// decode is answered with 400 Bad Request, carrying the decode error as cause.
func Decoder[T any](c Codec[T], opts ...DecoderOption) common.RequestHandler {
	d := &decoder[T]{codec: c}
	for _, opt := range opts {
		opt(&d.opts)
	}
	return d
}

func (d *decoder[T]) Name() string { return "decoder(" + d.codec.ContentType() + ")" }

func (d *decoder[T]) Handle(ctx common.Context, req *common.Request) {
	raw, ok := req.Body.([]byte)
	if !ok || len(raw) == 0 || !d.accepts(req.Header("Content-Type")) {
		ctx.Next(req)
		return
	}

	v, err := d.codec.Decode(raw)
	if err != nil {
		herr := &common.HTTPError{StatusCode: http.StatusBadRequest, Message: "Bad Request", Err: err}
		ctx.Send(req, herr.Response().WithBody([]byte(herr.Message)))
		return
	}
	req.Body = v
	ctx.Next(req)
}

// accepts reports whether a body of the given Content-Type is for this codec.
func (d *decoder[T]) accepts(contentType string) bool {
	if contentType == "" {
		return d.opts.acceptMissing
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == d.codec.ContentType()
}

type encoder struct {
	codec BodyEncoder
}

// Encoder returns a response stage that encodes a non-byte response body.
// The Content-Type header is set unless a handler already set one. Encoding
// failures are escalated as a 500 response.
func Encoder(e BodyEncoder) common.ResponseHandler {
	return &encoder{codec: e}
}

func (e *encoder) Name() string { return "encoder(" + e.codec.ContentType() + ")" }

func (e *encoder) HandleResponse(ctx common.Context, req *common.Request, resp *common.Response) {
	switch resp.Body.(type) {
	case nil, []byte:
		ctx.Send(req, resp)
		return
	}

	body, err := e.codec.Encode(resp.Body)
	if err != nil {
		ctx.Error(req, err)
		return
	}
	resp.Body = body
	if resp.Header.Get("Content-Type") == "" {
		resp.WithHeader("Content-Type", e.codec.ContentType())
	}
	ctx.Send(req, resp)
}

// Body returns the request body as a T, as left by a Decoder stage.
func Body[T any](req *common.Request) (T, bool) {
	v, ok := req.Body.(T)
	return v, ok
}
