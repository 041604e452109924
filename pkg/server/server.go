package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Suhaibinator/SRest/pkg/common"
	"github.com/Suhaibinator/SRest/pkg/middleware"
	"github.com/Suhaibinator/SRest/pkg/pipeline"
	"github.com/Suhaibinator/SRest/pkg/route"
	"go.uber.org/zap"
)

// ErrHandlerAlreadyBound is returned by New when the http.Server already has a handler.
var ErrHandlerAlreadyBound = errors.New("server: the http server already has a request handler associated with it")

// Server is a REST server: a pipeline of request and response handlers in
// front of a content-negotiating router, bound to an http.Server.
//
// Stages and routes are registered before Freeze (called by Start and Serve).
// Registering after that fails with pipeline.ErrFrozen.
type Server struct {
	config     Config
	httpServer *http.Server
	pipeline   *pipeline.Pipeline
	table      *route.Table
	logger     *zap.Logger
	handler    http.Handler

	// In-flight flow accounting, guarded by flowsMu.
	flowsMu  sync.Mutex
	active   int
	shutdown bool
	drained  chan struct{}
}

// New creates a Server and installs it as the handler of hs.
func New(hs *http.Server, config Config) (*Server, error) {
	if hs == nil {
		hs = &http.Server{}
	}
	if hs.Handler != nil {
		return nil, ErrHandlerAlreadyBound
	}

	// Set up the logger
	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	table := route.NewTable(config.Matcher, logger)
	router := route.NewRouter(table,
		route.WithRouterLogger(logger),
		route.WithUnresolvedPolicy(config.Unresolved),
	)

	s := &Server{
		config:     config,
		httpServer: hs,
		pipeline:   pipeline.New(router, pipeline.WithLogger(logger)),
		table:      table,
		logger:     logger,
	}

	// Recovery is always the outermost transport middleware
	chain := common.NewMiddlewareChain(middleware.Recovery(logger)).Append(config.Middlewares...)
	s.handler = chain.Then(http.HandlerFunc(s.serveFlow))
	hs.Handler = s

	return s, nil
}

// AddPreHandler appends a request handler to the pipeline.
func (s *Server) AddPreHandler(h common.RequestHandler) error {
	return s.pipeline.AddRequestHandler(h)
}

// AddPostHandler appends a response handler to the pipeline.
func (s *Server) AddPostHandler(h common.ResponseHandler) error {
	return s.pipeline.AddResponseHandler(h)
}

// Handle registers h for method and path. contentType selects the handler by
// the request's Accept header; "" or "*/*" registers the route's fallback.
func (s *Server) Handle(method, path, contentType string, h common.RequestHandler) error {
	if s.pipeline.Frozen() {
		return pipeline.ErrFrozen
	}
	return s.table.Add(path, method, contentType, h)
}

// Get registers a GET route for any content type.
func (s *Server) Get(path string, h common.RequestHandler) error {
	return s.Handle(http.MethodGet, path, "", h)
}

// GetAs registers a GET route for one content type.
func (s *Server) GetAs(path, contentType string, h common.RequestHandler) error {
	return s.Handle(http.MethodGet, path, contentType, h)
}

// Post registers a POST route for any content type.
func (s *Server) Post(path string, h common.RequestHandler) error {
	return s.Handle(http.MethodPost, path, "", h)
}

// PostAs registers a POST route for one content type.
func (s *Server) PostAs(path, contentType string, h common.RequestHandler) error {
	return s.Handle(http.MethodPost, path, contentType, h)
}

// Put registers a PUT route for any content type.
func (s *Server) Put(path string, h common.RequestHandler) error {
	return s.Handle(http.MethodPut, path, "", h)
}

// PutAs registers a PUT route for one content type.
func (s *Server) PutAs(path, contentType string, h common.RequestHandler) error {
	return s.Handle(http.MethodPut, path, contentType, h)
}

// Delete registers a DELETE route for any content type.
func (s *Server) Delete(path string, h common.RequestHandler) error {
	return s.Handle(http.MethodDelete, path, "", h)
}

// DeleteAs registers a DELETE route for one content type.
func (s *Server) DeleteAs(path, contentType string, h common.RequestHandler) error {
	return s.Handle(http.MethodDelete, path, contentType, h)
}

// Patch registers a PATCH route for any content type.
func (s *Server) Patch(path string, h common.RequestHandler) error {
	return s.Handle(http.MethodPatch, path, "", h)
}

// PatchAs registers a PATCH route for one content type.
func (s *Server) PatchAs(path, contentType string, h common.RequestHandler) error {
	return s.Handle(http.MethodPatch, path, contentType, h)
}

// Options registers an OPTIONS route for any content type.
func (s *Server) Options(path string, h common.RequestHandler) error {
	return s.Handle(http.MethodOptions, path, "", h)
}

// OptionsAs registers an OPTIONS route for one content type.
func (s *Server) OptionsAs(path, contentType string, h common.RequestHandler) error {
	return s.Handle(http.MethodOptions, path, contentType, h)
}

// Head registers a HEAD route for any content type.
func (s *Server) Head(path string, h common.RequestHandler) error {
	return s.Handle(http.MethodHead, path, "", h)
}

// HeadAs registers a HEAD route for one content type.
func (s *Server) HeadAs(path, contentType string, h common.RequestHandler) error {
	return s.Handle(http.MethodHead, path, contentType, h)
}

// Freeze ends the configuration phase. It is safe to call more than once.
func (s *Server) Freeze() {
	s.pipeline.Freeze()
}

// Routes returns the registered route paths.
func (s *Server) Routes() []string {
	return s.table.Paths()
}

// Stages returns the pipeline stages in chain order.
func (s *Server) Stages() []pipeline.Stage {
	return s.pipeline.Stages()
}

// Start freezes the configuration and listens on the http.Server's address.
// Like http.Server.ListenAndServe it blocks and returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start() error {
	s.Freeze()
	s.logger.Info("Rest server started", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	s.logStopped(err)
	return err
}

// Serve freezes the configuration and serves connections from l.
func (s *Server) Serve(l net.Listener) error {
	s.Freeze()
	s.logger.Info("Rest server started", zap.String("addr", l.Addr().String()))
	err := s.httpServer.Serve(l)
	s.logStopped(err)
	return err
}

func (s *Server) logStopped(err error) {
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Could not run rest server", zap.Error(err))
		return
	}
	s.logger.Info("Rest server stopped")
}

// Shutdown gracefully shuts down the server.
// It stops accepting new flows and waits for in-flight flows to complete.
// If the context is canceled before all flows complete, it returns the context's error.
func (s *Server) Shutdown(ctx context.Context) error {
	done := s.beginShutdown()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.httpServer.Shutdown(ctx)
}

// beginFlow counts a new flow in. It reports false once shutdown has begun.
func (s *Server) beginFlow() bool {
	s.flowsMu.Lock()
	defer s.flowsMu.Unlock()
	if s.shutdown {
		return false
	}
	s.active++
	return true
}

func (s *Server) endFlow() {
	s.flowsMu.Lock()
	defer s.flowsMu.Unlock()
	s.active--
	if s.active == 0 && s.drained != nil {
		close(s.drained)
		s.drained = nil
	}
}

// beginShutdown stops admitting flows and returns a channel closed once no
// flow is in flight.
func (s *Server) beginShutdown() <-chan struct{} {
	s.flowsMu.Lock()
	defer s.flowsMu.Unlock()
	s.shutdown = true
	if s.active == 0 {
		done := make(chan struct{})
		close(done)
		return done
	}
	if s.drained == nil {
		s.drained = make(chan struct{})
	}
	return s.drained
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// serveFlow buffers the request body, starts a flow and waits for it to write.
func (s *Server) serveFlow(w http.ResponseWriter, r *http.Request) {
	if !s.beginFlow() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	defer s.endFlow()

	if s.config.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodySize)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.Warn("Request body too large",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int64("limit", tooLarge.Limit),
			)
			http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		s.logger.Warn("Failed to read request body",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	fw := newFlowWriter(w)
	req := common.NewRequest(r, body, fw)
	s.logger.Debug("Request",
		zap.String("method", r.Method),
		zap.String("uri", r.RequestURI),
	)

	if err := s.pipeline.Serve(req); err != nil {
		s.logger.Error("Failed to start flow",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		fw.writeStatus(http.StatusServiceUnavailable)
		return
	}

	s.await(r, fw)
}

// await blocks until the flow has written its response, the client goes away
// or the flow timeout expires.
func (s *Server) await(r *http.Request, fw *flowWriter) {
	var timeout <-chan time.Time
	if s.config.FlowTimeout > 0 {
		timer := time.NewTimer(s.config.FlowTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-fw.done:
	case <-r.Context().Done():
		fw.abandon()
		s.logger.Debug("Client went away before the response was written",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
	case <-timeout:
		if fw.writeStatus(http.StatusRequestTimeout) {
			s.logger.Error("Request timed out",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("timeout", s.config.FlowTimeout),
				zap.String("client_ip", r.RemoteAddr),
			)
		}
	}
}
