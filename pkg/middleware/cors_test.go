package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Suhaibinator/SRest/pkg/common"
)

var testCORS = CORSConfig{
	Origins: []string{"https://example.com", "https://other.example"},
	Methods: []string{"GET", "POST"},
	Headers: []string{"Content-Type", "Authorization"},
	MaxAge:  600,
}

func withOrigin(r *http.Request, origin string) *http.Request {
	r.Header.Set("Origin", origin)
	return r
}

func TestCORSAddsHeaders(t *testing.T) {
	_, resp := serve(t, withOrigin(httptest.NewRequest("GET", "/", nil), "https://example.com"), okHandler(), CORS(testCORS))

	expected := map[string]string{
		"Access-Control-Allow-Origin":  "https://example.com",
		"Access-Control-Allow-Methods": "GET, POST",
		"Access-Control-Allow-Headers": "Content-Type, Authorization",
		"Access-Control-Max-Age":       "600",
		"Vary":                         "Origin",
	}
	for k, v := range expected {
		if got := resp.Header.Get(k); got != v {
			t.Errorf("Expected %s %q, got %q", k, v, got)
		}
	}
}

func TestPreflight(t *testing.T) {
	reached := false
	handler := common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		reached = true
		ctx.Send(req, common.OK())
	})

	_, resp := serve(t, withOrigin(httptest.NewRequest(http.MethodOptions, "/", nil), "https://example.com"), handler, Preflight(testCORS))
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected status code %d, got %d", http.StatusNoContent, resp.StatusCode)
	}
	if reached {
		t.Error("Expected preflight not to be routed")
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("Expected allow origin header, got %q", got)
	}

	_, resp = serve(t, httptest.NewRequest(http.MethodGet, "/", nil), handler, Preflight(testCORS))
	if !reached || resp.StatusCode != http.StatusOK {
		t.Errorf("Expected GET to be routed, got status %d", resp.StatusCode)
	}
}

func TestCORSEchoesSingleOrigin(t *testing.T) {
	_, resp := serve(t, withOrigin(httptest.NewRequest("GET", "/", nil), "https://other.example"), okHandler(), CORS(testCORS))
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://other.example" {
		t.Errorf("Expected allow origin %q, got %q", "https://other.example", got)
	}

	_, resp = serve(t, withOrigin(httptest.NewRequest("GET", "/", nil), "https://evil.example"), okHandler(), CORS(testCORS))
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no allow origin for an unknown origin, got %q", got)
	}
	if got := resp.Header.Get("Vary"); got != "Origin" {
		t.Errorf("Expected Vary %q, got %q", "Origin", got)
	}
}

func TestCORSWildcardOrigin(t *testing.T) {
	config := CORSConfig{Origins: []string{"*"}}
	_, resp := serve(t, withOrigin(httptest.NewRequest("GET", "/", nil), "https://any.example"), okHandler(), CORS(config))
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected allow origin %q, got %q", "*", got)
	}
	if got := resp.Header.Get("Vary"); got != "" {
		t.Errorf("Expected no Vary header, got %q", got)
	}
}

func TestCORSEmptyConfig(t *testing.T) {
	_, resp := serve(t, httptest.NewRequest("GET", "/", nil), okHandler(), CORS(CORSConfig{}))
	if len(resp.Header) != 0 {
		t.Errorf("Expected no headers, got %v", resp.Header)
	}
}
