// Package route resolves a request to an application handler: an external
// Matcher turns path and method into a route, and the route picks a handler
// by the request's declared acceptable content type.
package route

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// ErrConflictingRoute is returned when a pattern cannot be added to the matcher.
var ErrConflictingRoute = errors.New("route: conflicting route pattern")

// Matcher is the path-matching collaborator used by the Table.
// Register is only called during configuration; Match must be safe for
// concurrent use once configuration is over.
type Matcher interface {
	Register(path, method string, id int) error
	Match(path, method string) (id int, params map[string]string, ok bool)
}

// HTTPRouterMatcher implements Matcher on top of julienschmidt/httprouter.
// Patterns use httprouter syntax: /people/:name and /files/*filepath.
type HTTPRouterMatcher struct {
	router *httprouter.Router
}

// NewHTTPRouterMatcher creates an empty HTTPRouterMatcher.
func NewHTTPRouterMatcher() *HTTPRouterMatcher {
	hr := httprouter.New()
	hr.RedirectTrailingSlash = false
	hr.RedirectFixedPath = false
	hr.HandleMethodNotAllowed = false
	return &HTTPRouterMatcher{router: hr}
}

// routeIDWriter receives the route id from a looked up httprouter.Handle.
// A fresh one is used for every Match, so lookups do not share state.
type routeIDWriter struct {
	http.ResponseWriter
	id int
}

// Register adds the pattern for method. httprouter panics on conflicting
// patterns; the panic is returned as an error instead.
func (m *HTTPRouterMatcher) Register(path, method string, id int) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s %s: %v", ErrConflictingRoute, method, path, rec)
		}
	}()
	m.router.Handle(method, path, func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		if rw, ok := w.(*routeIDWriter); ok {
			rw.id = id
		}
	})
	return nil
}

// Match looks up path for method and returns the route id and path parameters.
func (m *HTTPRouterMatcher) Match(path, method string) (int, map[string]string, bool) {
	handle, ps, _ := m.router.Lookup(method, path)
	if handle == nil {
		return 0, nil, false
	}
	rw := &routeIDWriter{id: -1}
	handle(rw, nil, ps)
	if rw.id < 0 {
		return 0, nil, false
	}
	params := make(map[string]string, len(ps))
	for _, p := range ps {
		params[p.Key] = p.Value
	}
	return rw.id, params, true
}
