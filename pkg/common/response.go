package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidErrorStatus is returned when an error response is built with a
// status code below 400.
var ErrInvalidErrorStatus = errors.New("error status codes should be greater than or equal to 400")

// Response is the outbound value carried upstream through a pipeline.
// By the time it reaches the wire writer its Body must be a []byte (or nil).
type Response struct {
	StatusCode    int
	StatusMessage string
	Body          any
	Cause         error
	Header        http.Header
}

// NewResponse creates a response with the given status code.
func NewResponse(statusCode int) *Response {
	return &Response{StatusCode: statusCode}
}

// OK returns an empty 200 response.
func OK() *Response { return NewResponse(http.StatusOK) }

// Created returns an empty 201 response.
func Created() *Response { return NewResponse(http.StatusCreated) }

// NoContent returns an empty 204 response.
func NoContent() *Response { return NewResponse(http.StatusNoContent) }

// NotFound returns an empty 404 response.
func NotFound() *Response { return NewResponse(http.StatusNotFound) }

// NotAcceptable returns an empty 406 response.
func NotAcceptable() *Response { return NewResponse(http.StatusNotAcceptable) }

// ErrorResponse creates an error response. statusCode must be >= 400.
func ErrorResponse(statusCode int, statusMessage string) (*Response, error) {
	if statusCode < 400 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidErrorStatus, statusCode)
	}
	return &Response{StatusCode: statusCode, StatusMessage: statusMessage}, nil
}

// MustErrorResponse is like ErrorResponse but panics on an invalid status code.
func MustErrorResponse(statusCode int, statusMessage string) *Response {
	resp, err := ErrorResponse(statusCode, statusMessage)
	if err != nil {
		panic(err)
	}
	return resp
}

// WithBody sets the body and returns the response.
func (r *Response) WithBody(body any) *Response {
	r.Body = body
	return r
}

// WithCause attaches a failure cause and returns the response.
func (r *Response) WithCause(cause error) *Response {
	r.Cause = cause
	return r
}

// WithHeader sets a response header and returns the response.
func (r *Response) WithHeader(key, value string) *Response {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
	return r
}

// IsError reports whether the status code denotes a failure.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// HTTPError represents an HTTP error with a status code and message.
// Handlers can pass it to Context.Error; it is kept as the response cause and
// stages such as the codecs use it to pick a status other than 500.
type HTTPError struct {
	StatusCode int    // HTTP status code (e.g., 400, 404, 500)
	Message    string // Error message
	Err        error  // Underlying error, if any
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d: %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Unwrap returns the underlying error.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTPError with the specified status code and message.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// Response converts the error into an error response carrying itself as the cause.
func (e *HTTPError) Response() *Response {
	code := e.StatusCode
	if code < 400 {
		code = http.StatusInternalServerError
	}
	return &Response{StatusCode: code, StatusMessage: e.Message, Cause: e}
}
