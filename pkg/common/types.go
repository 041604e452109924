// Package common provides the shared types used across the SRest framework:
// the request and response values carried through a pipeline, the handler
// roles a pipeline stage can take, and net/http middleware for the transport.
package common

import (
	"net/http"

	"go.uber.org/zap"
)

// Middleware is a function that wraps an http.Handler.
// Middlewares run at the transport level, around the whole pipeline, before
// the request body has been buffered.
type Middleware func(http.Handler) http.Handler

// Context is handed to every handler invocation. It is bound to the position
// of the handler in the pipeline and owns no other state.
//
// A correct handler calls exactly one of Next, Send or Error per invocation,
// and never more than once. What happens on a double dispatch is unspecified.
type Context interface {
	// Next passes the request downstream to the next request handler.
	Next(req *Request)

	// Send turns the flow around: the response travels upstream through the
	// response handlers registered before this position.
	Send(req *Request, resp *Response)

	// Error sends a 500 response carrying cause upstream.
	Error(req *Request, cause error)

	// Logger returns the pipeline's logger.
	Logger() *zap.Logger
}

// RequestHandler processes inbound requests (downstream direction).
type RequestHandler interface {
	Handle(ctx Context, req *Request)
}

// ResponseHandler processes outbound responses (upstream direction).
type ResponseHandler interface {
	HandleResponse(ctx Context, req *Request, resp *Response)
}

// RequestHandlerFunc adapts a function to the RequestHandler interface.
type RequestHandlerFunc func(ctx Context, req *Request)

// Handle calls f(ctx, req).
func (f RequestHandlerFunc) Handle(ctx Context, req *Request) {
	f(ctx, req)
}

// ResponseHandlerFunc adapts a function to the ResponseHandler interface.
type ResponseHandlerFunc func(ctx Context, req *Request, resp *Response)

// HandleResponse calls f(ctx, req, resp).
func (f ResponseHandlerFunc) HandleResponse(ctx Context, req *Request, resp *Response) {
	f(ctx, req, resp)
}

// Named may be implemented by handlers to give them a name in logs and in
// pipeline introspection.
type Named interface {
	Name() string
}

// Sink receives the single response written for a flow.
type Sink interface {
	Write(resp *Response) error
}
