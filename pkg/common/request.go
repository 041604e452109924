package common

import (
	"net/http"
	"time"
)

// Request is the inbound value carried downstream through a pipeline.
// It is owned by a single flow and is never shared between flows, so none of
// its methods synchronize.
type Request struct {
	Method string
	Path   string

	// PathParams is filled by the router from the matched route.
	PathParams map[string]string

	// Body starts as the buffered []byte read by the transport. Pre-processing
	// handlers may replace it, e.g. with a decoded structure.
	Body any

	// HTTP is the underlying transport request. Treat it as read-only metadata
	// (headers, URI, remote address); its body has already been consumed.
	HTTP *http.Request

	// ReceivedAt is when the transport accepted the request.
	ReceivedAt time.Time

	sink  Sink
	attrs map[string]any
}

// NewRequest creates a Request for the given transport request, buffered body
// and response sink.
func NewRequest(r *http.Request, body any, sink Sink) *Request {
	req := &Request{
		PathParams: make(map[string]string),
		Body:       body,
		HTTP:       r,
		ReceivedAt: time.Now(),
		sink:       sink,
	}
	if r != nil {
		req.Method = r.Method
		if r.URL != nil {
			req.Path = r.URL.Path
		}
	}
	return req
}

// Sink returns the response sink of the flow. A handler that writes to it
// directly bypasses every response handler for this flow.
func (r *Request) Sink() Sink {
	return r.sink
}

// PathParam returns the value of a path parameter, or "" if it is not set.
func (r *Request) PathParam(name string) string {
	return r.PathParams[name]
}

// Param returns the first value of a query parameter.
func (r *Request) Param(name string) string {
	if r.HTTP == nil || r.HTTP.URL == nil {
		return ""
	}
	return r.HTTP.URL.Query().Get(name)
}

// Header returns the first value of a request header.
func (r *Request) Header(name string) string {
	if r.HTTP == nil {
		return ""
	}
	return r.HTTP.Header.Get(name)
}

// Accept returns the declared acceptable content type. The header is used as
// a single literal value; media ranges and q-values are not parsed.
func (r *Request) Accept() string {
	return r.Header("Accept")
}

// Set stores a per-flow attribute, e.g. a trace ID set by an earlier stage.
func (r *Request) Set(key string, value any) {
	if r.attrs == nil {
		r.attrs = make(map[string]any)
	}
	r.attrs[key] = value
}

// Get returns a per-flow attribute.
func (r *Request) Get(key string) (any, bool) {
	v, ok := r.attrs[key]
	return v, ok
}
