package middleware

import (
	"github.com/Suhaibinator/SRest/pkg/common"
	"github.com/google/uuid"
)

// TraceIDKey is the request attribute holding the trace ID.
const TraceIDKey = "trace_id"

// TraceIDHeader is the header used to propagate and echo trace IDs.
const TraceIDHeader = "X-Trace-ID"

type trace struct {
	trustHeader bool
}

// Trace returns a request stage that assigns a trace ID to every request.
// If trustHeader is true an incoming X-Trace-ID header is reused.
func Trace(trustHeader bool) common.RequestHandler {
	return &trace{trustHeader: trustHeader}
}

func (t *trace) Name() string { return "trace" }

func (t *trace) Handle(ctx common.Context, req *common.Request) {
	traceID := ""
	if t.trustHeader {
		traceID = req.Header(TraceIDHeader)
	}
	if traceID == "" {
		traceID = uuid.New().String()
	}
	req.Set(TraceIDKey, traceID)
	ctx.Next(req)
}

// TraceID returns the trace ID of the request, or "" if none was assigned.
func TraceID(req *common.Request) string {
	if v, ok := req.Get(TraceIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// EchoTraceID returns a response stage that copies the trace ID into the
// X-Trace-ID response header.
func EchoTraceID() common.ResponseHandler {
	return common.ResponseHandlerFunc(func(ctx common.Context, req *common.Request, resp *common.Response) {
		if id := TraceID(req); id != "" {
			resp.WithHeader(TraceIDHeader, id)
		}
		ctx.Send(req, resp)
	})
}
