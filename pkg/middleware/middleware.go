// Package middleware provides reusable pipeline stages for SRest servers:
// request handlers that enrich or short-circuit inbound requests and response
// handlers that observe or decorate outbound responses. It also provides the
// transport-level recovery middleware installed by every server.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/Suhaibinator/SRest/pkg/common"
	"go.uber.org/zap"
)

// Recovery is a transport middleware that recovers from panics outside the
// pipeline, e.g. while the body is buffered or the response is written.
func Recovery(logger *zap.Logger) common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("Panic recovered",
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
					)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// SlowRequestThreshold is the duration above which Logging reports a request as slow.
const SlowRequestThreshold = time.Second

type logging struct {
	logger *zap.Logger
}

// Logging returns a response stage that logs every response passing through it.
// Server errors are logged at Error, client errors and slow requests at Warn
// and everything else at Debug.
func Logging(logger *zap.Logger) common.ResponseHandler {
	return &logging{logger: logger}
}

func (l *logging) Name() string { return "logging" }

func (l *logging) HandleResponse(ctx common.Context, req *common.Request, resp *common.Response) {
	duration := time.Since(req.ReceivedAt)

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
	}
	if traceID := TraceID(req); traceID != "" {
		fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
	}

	switch {
	case resp.StatusCode >= 500:
		if resp.Cause != nil {
			fields = append(fields, zap.Error(resp.Cause))
		}
		l.logger.Error("Server error", fields...)
	case resp.StatusCode >= 400:
		l.logger.Warn("Client error", fields...)
	case duration > SlowRequestThreshold:
		l.logger.Warn("Slow request", fields...)
	default:
		l.logger.Debug("Request", fields...)
	}

	ctx.Send(req, resp)
}
