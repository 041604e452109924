package route

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Suhaibinator/SRest/pkg/common"
	"go.uber.org/zap"
)

// ErrInvalidRoute is returned for a registration missing its path, method or handler.
var ErrInvalidRoute = errors.New("route: invalid route")

// Table holds the routes by path. It is written during configuration only and
// read concurrently afterwards.
type Table struct {
	matcher Matcher
	logger  *zap.Logger
	byPath  map[string]*Route
	byID    []*Route
}

// NewTable creates a table that registers new paths with m.
func NewTable(m Matcher, logger *zap.Logger) *Table {
	if m == nil {
		m = NewHTTPRouterMatcher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Table{
		matcher: m,
		logger:  logger,
		byPath:  make(map[string]*Route),
	}
}

// Add registers h for path, method and contentType.
//
// The first registration for a path creates its Route and registers it with
// the matcher under method. Later registrations for the same path only add
// content types to that Route: their method is not registered, so a path
// answers only to the method of its first registration.
func (t *Table) Add(path, method, contentType string, h common.RequestHandler) error {
	if path == "" || method == "" || h == nil {
		return fmt.Errorf("%w: path=%q method=%q", ErrInvalidRoute, path, method)
	}

	r, ok := t.byPath[path]
	if !ok {
		r = newRoute(path)
		id := len(t.byID)
		if err := t.matcher.Register(path, method, id); err != nil {
			return err
		}
		t.byPath[path] = r
		t.byID = append(t.byID, r)
		t.logger.Debug("Route registered",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("route_id", id),
		)
	} else {
		t.logger.Debug("Route extended",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("content_type", contentType),
		)
	}
	r.add(contentType, h)
	return nil
}

// Lookup resolves path and method through the matcher.
func (t *Table) Lookup(path, method string) (*Route, map[string]string, bool) {
	id, params, ok := t.matcher.Match(path, method)
	if !ok || id < 0 || id >= len(t.byID) {
		return nil, nil, false
	}
	return t.byID[id], params, true
}

// Route returns the route registered for path.
func (t *Table) Route(path string) (*Route, bool) {
	r, ok := t.byPath[path]
	return r, ok
}

// Paths returns the registered paths, sorted.
func (t *Table) Paths() []string {
	paths := make([]string, 0, len(t.byPath))
	for p := range t.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
