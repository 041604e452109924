package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func headerMiddleware(key, value string, order *[]string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*order = append(*order, key+"-before")
			w.Header().Add(key, value)
			next.ServeHTTP(w, r)
			*order = append(*order, key+"-after")
		})
	}
}

func TestMiddlewareChainOrder(t *testing.T) {
	var order []string

	chain := NewMiddlewareChain(headerMiddleware("X-Test-1", "value1", &order))
	chain = chain.Append(headerMiddleware("X-Test-2", "value2", &order))
	chain = chain.Prepend(headerMiddleware("X-Test-0", "value0", &order))

	handler := chain.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "final")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	req := httptest.NewRequest("GET", "http://example.com/foo", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body %q, got %q", "OK", w.Body.String())
	}
	for _, h := range []string{"X-Test-0", "X-Test-1", "X-Test-2"} {
		if w.Header().Get(h) == "" {
			t.Errorf("Expected header %s to be set", h)
		}
	}

	expected := []string{
		"X-Test-0-before",
		"X-Test-1-before",
		"X-Test-2-before",
		"final",
		"X-Test-2-after",
		"X-Test-1-after",
		"X-Test-0-after",
	}
	if len(order) != len(expected) {
		t.Fatalf("Expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("Expected call %d to be %q, got %q", i, v, order[i])
		}
	}
}

func TestMiddlewareChainAppendDoesNotAlias(t *testing.T) {
	var order []string
	base := make(MiddlewareChain, 0, 4)
	base = base.Append(headerMiddleware("X-Base", "1", &order))

	a := base.Append(headerMiddleware("X-A", "1", &order))
	b := base.Append(headerMiddleware("X-B", "1", &order))

	w := httptest.NewRecorder()
	a.ThenFunc(func(http.ResponseWriter, *http.Request) {}).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Header().Get("X-A") == "" {
		t.Errorf("Expected chain a to keep its own middleware")
	}
	if len(b) != 2 {
		t.Errorf("Expected chain b to have 2 middlewares, got %d", len(b))
	}
}

func TestEmptyMiddlewareChainSkipsNil(t *testing.T) {
	chain := NewMiddlewareChain(nil)

	handler := chain.Then(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status code %d, got %d", http.StatusTeapot, w.Code)
	}
}
