package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Suhaibinator/SRest/pkg/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBasicAuthStage(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	stage := NewBasicAuthStage(map[string]string{"user": "password"}, zap.New(core))

	tests := []struct {
		name     string
		user     string
		password string
		setAuth  bool
		expected int
	}{
		{"valid credentials", "user", "password", true, http.StatusOK},
		{"wrong password", "user", "nope", true, http.StatusUnauthorized},
		{"unknown user", "other", "password", true, http.StatusUnauthorized},
		{"no credentials", "", "", false, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/secure", nil)
			if tt.setAuth {
				r.SetBasicAuth(tt.user, tt.password)
			}
			_, resp := serve(t, r, okHandler(), stage)
			if resp.StatusCode != tt.expected {
				t.Errorf("Expected status code %d, got %d", tt.expected, resp.StatusCode)
			}
		})
	}

	if logs.FilterMessage("Authentication failed").Len() != 3 {
		t.Errorf("Expected 3 authentication failures logged, got %d", logs.FilterMessage("Authentication failed").Len())
	}
}

func TestBearerTokenStage(t *testing.T) {
	stage := NewBearerTokenStage(map[string]bool{"good-token": true}, nil)

	tests := []struct {
		name     string
		header   string
		expected int
	}{
		{"valid token", "Bearer good-token", http.StatusOK},
		{"invalid token", "Bearer bad-token", http.StatusUnauthorized},
		{"wrong scheme", "Token good-token", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/secure", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			_, resp := serve(t, r, okHandler(), stage)
			if resp.StatusCode != tt.expected {
				t.Errorf("Expected status code %d, got %d", tt.expected, resp.StatusCode)
			}
		})
	}
}

func TestBearerTokenValidator(t *testing.T) {
	provider := &BearerTokenProvider{
		ValidTokens: map[string]bool{"ignored": true},
		Validator:   func(token string) bool { return token == "validated" },
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer validated")
	if !provider.Authenticate(r) {
		t.Error("Expected validator to accept the token")
	}

	r.Header.Set("Authorization", "Bearer ignored")
	if provider.Authenticate(r) {
		t.Error("Expected validator to take precedence over ValidTokens")
	}
}

func TestAPIKeyStage(t *testing.T) {
	stage := NewAPIKeyStage(map[string]bool{"secret": true}, "X-API-Key", "api_key", nil)

	r := httptest.NewRequest("GET", "/secure", nil)
	r.Header.Set("X-API-Key", "secret")
	if _, resp := serve(t, r, okHandler(), stage); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected header key to pass, got %d", resp.StatusCode)
	}

	r = httptest.NewRequest("GET", "/secure?api_key=secret", nil)
	if _, resp := serve(t, r, okHandler(), stage); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected query key to pass, got %d", resp.StatusCode)
	}

	r = httptest.NewRequest("GET", "/secure?api_key=wrong", nil)
	if _, resp := serve(t, r, okHandler(), stage); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected wrong key to be rejected, got %d", resp.StatusCode)
	}
}

func TestAuthenticationShortCircuits(t *testing.T) {
	reached := false
	handler := common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		reached = true
		ctx.Send(req, common.OK())
	})
	stage := Authentication(func(*http.Request) bool { return false }, nil)

	_, resp := serve(t, httptest.NewRequest("GET", "/secure", nil), handler, stage)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status code %d, got %d", http.StatusUnauthorized, resp.StatusCode)
	}
	if reached {
		t.Error("Expected the route handler not to run")
	}
	if string(resp.Body.([]byte)) != "Unauthorized" {
		t.Errorf("Expected body %q, got %q", "Unauthorized", resp.Body)
	}
}

type testUser struct {
	ID   string
	Name string
}

func (u *testUser) UserID() string { return u.ID }

func TestAuthenticationWithUser(t *testing.T) {
	users := map[string]*testUser{"token-1": {ID: "1", Name: "Alice"}}
	stage := NewBearerTokenWithUserStage(func(token string) (*testUser, error) {
		if u, ok := users[token]; ok {
			return u, nil
		}
		return nil, errors.New("unknown token")
	}, nil)

	var seen *testUser
	handler := common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		seen = GetUser[testUser](req)
		ctx.Send(req, common.OK())
	})

	r := httptest.NewRequest("GET", "/me", nil)
	r.Header.Set("Authorization", "Bearer token-1")
	req, resp := serve(t, r, handler, stage)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if seen == nil || seen.Name != "Alice" {
		t.Errorf("Expected user Alice, got %+v", seen)
	}
	if UserID(req) != "1" {
		t.Errorf("Expected user ID %q, got %q", "1", UserID(req))
	}

	r = httptest.NewRequest("GET", "/me", nil)
	r.Header.Set("Authorization", "Bearer token-2")
	if _, resp := serve(t, r, handler, stage); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status code %d, got %d", http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestBasicAndAPIKeyUserStages(t *testing.T) {
	basic := NewBasicAuthWithUserStage(func(username, password string) (*testUser, error) {
		if username == "alice" && password == "pw" {
			return &testUser{ID: "1", Name: "Alice"}, nil
		}
		return nil, errors.New("bad credentials")
	}, nil)
	apiKey := NewAPIKeyWithUserStage(func(key string) (*testUser, error) {
		if key == "k" {
			return &testUser{ID: "2", Name: "Bob"}, nil
		}
		return nil, errors.New("bad key")
	}, "X-API-Key", "", nil)

	r := httptest.NewRequest("GET", "/me", nil)
	r.SetBasicAuth("alice", "pw")
	if req, _ := serve(t, r, okHandler(), basic); GetUser[testUser](req) == nil {
		t.Error("Expected basic auth user to be stored")
	}

	r = httptest.NewRequest("GET", "/me", nil)
	r.Header.Set("X-API-Key", "k")
	if req, _ := serve(t, r, okHandler(), apiKey); UserID(req) != "2" {
		t.Errorf("Expected API key user ID %q, got %q", "2", UserID(req))
	}

	r = httptest.NewRequest("GET", "/me", nil)
	if _, resp := serve(t, r, okHandler(), apiKey); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected missing key to be rejected, got %d", resp.StatusCode)
	}
}

func TestGetUserWithoutStage(t *testing.T) {
	req, _ := serve(t, httptest.NewRequest("GET", "/", nil), okHandler())
	if GetUser[testUser](req) != nil {
		t.Error("Expected no user")
	}
	if UserID(req) != "" {
		t.Error("Expected no user ID")
	}
}
