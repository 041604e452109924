package route

import (
	"github.com/Suhaibinator/SRest/pkg/common"
)

// Wildcard is the content type registering a route's fallback handler.
const Wildcard = "*/*"

// Route maps content types to handlers for one path.
type Route struct {
	path     string
	handlers map[string]common.RequestHandler
	wildcard common.RequestHandler
}

func newRoute(path string) *Route {
	return &Route{path: path, handlers: make(map[string]common.RequestHandler)}
}

// Path returns the pattern the route was registered with.
func (r *Route) Path() string { return r.path }

// ContentTypes returns the content types with a specific handler.
func (r *Route) ContentTypes() []string {
	types := make([]string, 0, len(r.handlers))
	for ct := range r.handlers {
		types = append(types, ct)
	}
	return types
}

// HasWildcard reports whether a fallback handler is registered.
func (r *Route) HasWildcard() bool { return r.wildcard != nil }

// add registers h for contentType; "" and "*/*" set the wildcard. The last
// registration for a content type wins.
func (r *Route) add(contentType string, h common.RequestHandler) {
	if contentType == "" || contentType == Wildcard {
		r.wildcard = h
		return
	}
	r.handlers[contentType] = h
}

// Resolve returns the handler for accept, falling back to the wildcard.
// accept is compared literally; it returns nil when neither exists.
func (r *Route) Resolve(accept string) common.RequestHandler {
	if h, ok := r.handlers[accept]; ok {
		return h
	}
	return r.wildcard
}
