package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Suhaibinator/SRest/pkg/common"
	"github.com/Suhaibinator/SRest/pkg/pipeline"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	mu   sync.Mutex
	resp *common.Response
}

func (s *recordingSink) Write(resp *common.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resp = resp
	return nil
}

func (s *recordingSink) last() *common.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resp
}

// serve runs r through a pipeline built from stages (request and response
// handlers, in registration order) in front of handler, and returns the
// response written to the sink.
func serve(t *testing.T, r *http.Request, handler common.RequestHandler, stages ...any) (*common.Request, *common.Response) {
	t.Helper()
	p := pipeline.New(handler)
	for _, s := range stages {
		var err error
		switch h := s.(type) {
		case common.RequestHandler:
			err = p.AddRequestHandler(h)
		case common.ResponseHandler:
			err = p.AddResponseHandler(h)
		default:
			t.Fatalf("Unexpected stage type %T", s)
		}
		if err != nil {
			t.Fatalf("Failed to add stage: %v", err)
		}
	}
	p.Freeze()

	sink := &recordingSink{}
	req := common.NewRequest(r, nil, sink)
	if err := p.Serve(req); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	return req, sink.last()
}

func okHandler() common.RequestHandler {
	return common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		ctx.Send(req, common.OK().WithBody([]byte("OK")))
	})
}

func statusHandler(code int) common.RequestHandler {
	return common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		ctx.Send(req, common.NewResponse(code))
	})
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core)

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status code %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if logs.FilterMessage("Panic recovered").Len() != 1 {
		t.Errorf("Expected one panic log entry, got %d", logs.Len())
	}
}

func TestRecoveryRepanicsAbortHandler(t *testing.T) {
	handler := Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("Expected http.ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))
}

func TestLoggingLevels(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		level   zapcore.Level
		message string
	}{
		{"success", http.StatusOK, zapcore.DebugLevel, "Request"},
		{"client error", http.StatusNotFound, zapcore.WarnLevel, "Client error"},
		{"server error", http.StatusInternalServerError, zapcore.ErrorLevel, "Server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			logger := zap.New(core)

			_, resp := serve(t, httptest.NewRequest("GET", "/logged", nil), statusHandler(tt.status), Logging(logger))
			if resp.StatusCode != tt.status {
				t.Fatalf("Expected status code %d, got %d", tt.status, resp.StatusCode)
			}

			entries := logs.FilterMessage(tt.message).All()
			if len(entries) != 1 {
				t.Fatalf("Expected one %q log entry, got %d", tt.message, len(entries))
			}
			if entries[0].Level != tt.level {
				t.Errorf("Expected level %v, got %v", tt.level, entries[0].Level)
			}
			fields := entries[0].ContextMap()
			if fields["path"] != "/logged" {
				t.Errorf("Expected path field %q, got %v", "/logged", fields["path"])
			}
		})
	}
}

func TestLoggingSlowRequest(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	backdate := common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		req.ReceivedAt = time.Now().Add(-2 * SlowRequestThreshold)
		ctx.Next(req)
	})
	serve(t, httptest.NewRequest("GET", "/slow", nil), okHandler(), Logging(logger), backdate)

	if logs.FilterMessage("Slow request").Len() != 1 {
		t.Errorf("Expected one slow request log entry, got %d", logs.FilterMessage("Slow request").Len())
	}
}

func TestLoggingIncludesTraceIDAndCause(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	failing := common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		ctx.Error(req, http.ErrNotSupported)
	})
	serve(t, httptest.NewRequest("GET", "/fail", nil), failing, Logging(logger), Trace(false))

	entries := logs.FilterMessage("Server error").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one server error log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if id, _ := fields["trace_id"].(string); id == "" {
		t.Error("Expected trace_id field to be set")
	}
	if _, ok := fields["error"]; !ok {
		t.Error("Expected error field to be set")
	}
}
