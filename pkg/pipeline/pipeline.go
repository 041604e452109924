// Package pipeline implements the bidirectional handler pipeline at the core
// of SRest.
//
// A pipeline is a doubly linked chain of stages bounded by two sentinels.
// The head writes the response to the transport and is the last response
// handler every flow reaches. The tail hosts the router and is the last
// request handler every flow reaches. Requests travel downstream (head to
// tail) visiting request handlers; responses travel upstream from the stage
// that produced them, visiting only the response handlers registered before it.
//
// Stages are added during a configuration phase. Freeze publishes the chain,
// after which it is read-only and traversed by any number of concurrent flows
// without locking.
package pipeline

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Suhaibinator/SRest/pkg/common"
	"go.uber.org/zap"
)

var (
	// ErrFrozen is returned when a stage is added after Freeze.
	ErrFrozen = errors.New("pipeline: cannot add a stage after the pipeline is frozen")

	// ErrNotFrozen is returned by Serve before Freeze has been called.
	ErrNotFrozen = errors.New("pipeline: serve called before freeze")

	// ErrNilHandler is returned when a nil handler is added.
	ErrNilHandler = errors.New("pipeline: nil handler")
)

// Role is the capability a stage was registered with.
type Role uint8

const (
	// RequestRole stages are visited downstream.
	RequestRole Role = iota + 1
	// ResponseRole stages are visited upstream.
	ResponseRole
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RequestRole:
		return "request"
	case ResponseRole:
		return "response"
	default:
		return "unknown"
	}
}

const (
	headIndex = 0
	tailIndex = 1
	noLink    = -1
)

// node is one stage of the chain. Links are indices into Pipeline.nodes.
type node struct {
	name     string
	role     Role
	request  common.RequestHandler
	response common.ResponseHandler
	next     int
	prev     int
}

// Pipeline is the ordered chain of stages.
type Pipeline struct {
	nodes  []node
	frozen atomic.Bool
	logger *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used by the pipeline and handed to handlers.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTerminal replaces the head's wire writer with another response handler.
func WithTerminal(h common.ResponseHandler) Option {
	return func(p *Pipeline) {
		if h != nil {
			p.nodes[headIndex].response = h
			p.nodes[headIndex].name = stageName(h, "head")
		}
	}
}

// New creates a pipeline whose tail hosts router.
func New(router common.RequestHandler, opts ...Option) *Pipeline {
	p := &Pipeline{
		logger: zap.NewNop(),
		nodes: []node{
			headIndex: {name: "head", role: ResponseRole, next: tailIndex, prev: noLink},
			tailIndex: {name: stageName(router, "router"), role: RequestRole, request: router, next: noLink, prev: headIndex},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.nodes[headIndex].response == nil {
		p.nodes[headIndex].response = &wireWriter{logger: p.logger}
	}
	return p
}

// AddRequestHandler appends a request handler just before the tail.
func (p *Pipeline) AddRequestHandler(h common.RequestHandler) error {
	if h == nil {
		return ErrNilHandler
	}
	return p.insert(node{name: stageName(h, "request"), role: RequestRole, request: h})
}

// AddResponseHandler appends a response handler just before the tail.
func (p *Pipeline) AddResponseHandler(h common.ResponseHandler) error {
	if h == nil {
		return ErrNilHandler
	}
	return p.insert(node{name: stageName(h, "response"), role: ResponseRole, response: h})
}

// insert links n between the tail and its predecessor. Only valid before Freeze;
// the chain is not guarded against concurrent mutation.
func (p *Pipeline) insert(n node) error {
	if p.frozen.Load() {
		return ErrFrozen
	}
	idx := len(p.nodes)
	prev := p.nodes[tailIndex].prev
	n.prev = prev
	n.next = tailIndex
	p.nodes = append(p.nodes, n)
	p.nodes[prev].next = idx
	p.nodes[tailIndex].prev = idx
	return nil
}

// Freeze ends the configuration phase. Writes made while building the chain
// happen before any Serve that observes the frozen flag.
func (p *Pipeline) Freeze() {
	if p.frozen.CompareAndSwap(false, true) {
		stages := p.Stages()
		names := make([]string, len(stages))
		for i, s := range stages {
			names[i] = s.Role.String() + ":" + s.Name
		}
		p.logger.Debug("Pipeline frozen", zap.Strings("stages", names))
	}
}

// Frozen reports whether Freeze has been called.
func (p *Pipeline) Frozen() bool {
	return p.frozen.Load()
}

// Serve starts a flow: the request is passed to the first request handler.
func (p *Pipeline) Serve(req *common.Request) error {
	if !p.frozen.Load() {
		return ErrNotFrozen
	}
	p.next(headIndex, req)
	return nil
}

// Stage describes one stage of the pipeline.
type Stage struct {
	Name string
	Role Role
}

// Stages returns the stages in chain order, sentinels included.
func (p *Pipeline) Stages() []Stage {
	stages := make([]Stage, 0, len(p.nodes))
	for i := headIndex; i != noLink; i = p.nodes[i].next {
		stages = append(stages, Stage{Name: p.nodes[i].name, Role: p.nodes[i].role})
	}
	return stages
}

// next walks forward from `from` to the nearest request handler and invokes it.
// The tail is always a request handler, so the walk stops at the tail at the latest.
func (p *Pipeline) next(from int, req *common.Request) {
	i := p.nodes[from].next
	for p.nodes[i].role != RequestRole {
		i = p.nodes[i].next
	}
	p.invokeRequest(i, req)
}

// send walks backward from `from` to the nearest response handler and invokes it.
// The head is always a response handler, so the walk stops at the head at the latest.
func (p *Pipeline) send(from int, req *common.Request, resp *common.Response) {
	i := p.nodes[from].prev
	for p.nodes[i].role != ResponseRole {
		i = p.nodes[i].prev
	}
	p.invokeResponse(i, req, resp)
}

// escalate is the error behavior shared by every stage regardless of its
// role: a 500 response carrying cause is sent upstream from position `from`.
func escalate(p *Pipeline, from int, req *common.Request, cause error) {
	resp := common.NewResponse(500).WithCause(cause)
	p.send(from, req, resp)
}

func (p *Pipeline) invokeRequest(i int, req *common.Request) {
	defer p.recoverStage(i, req)
	p.nodes[i].request.Handle(&handlerContext{p: p, pos: i}, req)
}

func (p *Pipeline) invokeResponse(i int, req *common.Request, resp *common.Response) {
	defer p.recoverStage(i, req)
	p.nodes[i].response.HandleResponse(&handlerContext{p: p, pos: i}, req, resp)
}

// recoverStage turns a panic in stage i into an escalation from that stage.
// A panic in the head cannot be escalated any further and is only logged.
func (p *Pipeline) recoverStage(i int, req *common.Request) {
	rec := recover()
	if rec == nil {
		return
	}
	perr := newPanicError(p.nodes[i].name, rec)
	p.logger.Error("Panic recovered",
		zap.String("stage", p.nodes[i].name),
		zap.Any("panic", rec),
		zap.String("stack", string(perr.Stack)),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
	)
	if i == headIndex {
		return
	}
	escalate(p, i, req, perr)
}

func stageName(h any, fallback string) string {
	if n, ok := h.(common.Named); ok {
		return n.Name()
	}
	if h == nil {
		return fallback
	}
	return fmt.Sprintf("%T", h)
}
