package route

import (
	"github.com/Suhaibinator/SRest/pkg/common"
	"go.uber.org/zap"
)

// UnresolvedPolicy decides what happens when a route matches but neither a
// content-type handler nor a wildcard handler exists.
type UnresolvedPolicy int

const (
	// LeavePending sends nothing: the flow stays open until the transport
	// gives up on it. A warning is logged.
	LeavePending UnresolvedPolicy = iota

	// RespondNotAcceptable sends an empty 406 response.
	RespondNotAcceptable
)

// PatternKey is the request attribute holding the pattern of the matched route.
const PatternKey = "route_pattern"

// Pattern returns the pattern of the route that matched req, or "" if the
// request was not routed.
func Pattern(req *common.Request) string {
	if v, ok := req.Get(PatternKey); ok {
		if p, ok := v.(string); ok {
			return p
		}
	}
	return ""
}

// Router is the request handler hosted by the pipeline's tail.
type Router struct {
	table      *Table
	logger     *zap.Logger
	unresolved UnresolvedPolicy
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets the router's logger.
func WithRouterLogger(logger *zap.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithUnresolvedPolicy sets the content negotiation failure policy.
func WithUnresolvedPolicy(p UnresolvedPolicy) RouterOption {
	return func(r *Router) {
		r.unresolved = p
	}
}

// NewRouter creates a router over table.
func NewRouter(table *Table, opts ...RouterOption) *Router {
	r := &Router{table: table, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements common.Named.
func (r *Router) Name() string { return "router" }

// Handle resolves the request and invokes the application handler directly
// with the tail's context.
func (r *Router) Handle(ctx common.Context, req *common.Request) {
	rt, params, ok := r.table.Lookup(req.Path, req.Method)
	if !ok {
		r.logger.Debug("No route matched",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
		)
		ctx.Send(req, common.NotFound())
		return
	}

	req.Set(PatternKey, rt.Path())
	if req.PathParams == nil {
		req.PathParams = make(map[string]string, len(params))
	}
	for k, v := range params {
		req.PathParams[k] = v
	}

	accept := req.Accept()
	h := rt.Resolve(accept)
	if h == nil {
		r.logger.Warn("No handler for accepted content type",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("accept", accept),
		)
		if r.unresolved == RespondNotAcceptable {
			ctx.Send(req, common.NotAcceptable())
		}
		return
	}
	h.Handle(ctx, req)
}
