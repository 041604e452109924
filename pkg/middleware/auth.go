package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/Suhaibinator/SRest/pkg/common"
	"go.uber.org/zap"
)

var (
	errNoBasicAuth      = errors.New("no basic auth credentials")
	errNoAuthHeader     = errors.New("no authorization header")
	errInvalidAuthToken = errors.New("invalid authorization header format")
	errNoAPIKey         = errors.New("no API key found")
)

// AuthProvider defines an interface for authentication providers.
// The package includes BasicAuthProvider, BearerTokenProvider and APIKeyProvider.
type AuthProvider interface {
	// Authenticate returns true if the transport request carries valid credentials.
	Authenticate(r *http.Request) bool
}

// BasicAuthProvider provides HTTP Basic Authentication.
// It validates username and password credentials against a predefined map.
type BasicAuthProvider struct {
	Credentials map[string]string // username -> password
}

// Authenticate authenticates a request using HTTP Basic Authentication.
func (p *BasicAuthProvider) Authenticate(r *http.Request) bool {
	username, password, ok := r.BasicAuth()
	if !ok {
		return false
	}

	expectedPassword, exists := p.Credentials[username]
	if !exists {
		return false
	}

	return password == expectedPassword
}

// BearerTokenProvider provides Bearer Token Authentication.
// It can validate tokens against a predefined map or using a custom validator function.
type BearerTokenProvider struct {
	ValidTokens map[string]bool         // token -> valid
	Validator   func(token string) bool // optional token validator
}

// Authenticate authenticates a request using Bearer Token Authentication.
// The validator function takes precedence over the ValidTokens map.
func (p *BearerTokenProvider) Authenticate(r *http.Request) bool {
	token, err := bearerToken(r)
	if err != nil {
		return false
	}

	if p.Validator != nil {
		return p.Validator(token)
	}
	return p.ValidTokens[token]
}

// APIKeyProvider provides API Key Authentication.
// It can validate API keys provided in a header or query parameter.
type APIKeyProvider struct {
	ValidKeys map[string]bool // key -> valid
	Header    string          // header name (e.g., "X-API-Key")
	Query     string          // query parameter name (e.g., "api_key")
}

// Authenticate authenticates a request using API Key Authentication.
func (p *APIKeyProvider) Authenticate(r *http.Request) bool {
	key, err := apiKey(r, p.Header, p.Query)
	if err != nil {
		return false
	}
	return p.ValidKeys[key]
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errNoAuthHeader
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return "", errInvalidAuthToken
	}
	return token, nil
}

func apiKey(r *http.Request, header, query string) (string, error) {
	if header != "" {
		if key := r.Header.Get(header); key != "" {
			return key, nil
		}
	}
	if query != "" {
		if key := r.URL.Query().Get(query); key != "" {
			return key, nil
		}
	}
	return "", errNoAPIKey
}

func unauthorized() *common.Response {
	return common.MustErrorResponse(http.StatusUnauthorized, "Unauthorized").
		WithBody([]byte("Unauthorized"))
}

type authentication struct {
	authenticate func(*http.Request) bool
	logger       *zap.Logger
}

// Authentication returns a request stage that answers 401 Unauthorized when
// authFunc rejects the request.
func Authentication(authFunc func(*http.Request) bool, logger *zap.Logger) common.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &authentication{authenticate: authFunc, logger: logger}
}

// AuthenticationWithProvider returns an Authentication stage backed by provider.
func AuthenticationWithProvider(provider AuthProvider, logger *zap.Logger) common.RequestHandler {
	return Authentication(provider.Authenticate, logger)
}

func (a *authentication) Name() string { return "authentication" }

func (a *authentication) Handle(ctx common.Context, req *common.Request) {
	if req.HTTP == nil || !a.authenticate(req.HTTP) {
		a.logger.Warn("Authentication failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("client_ip", ClientIP(req)),
		)
		ctx.Send(req, unauthorized())
		return
	}
	ctx.Next(req)
}

// NewBasicAuthStage creates a stage that uses HTTP Basic Authentication.
func NewBasicAuthStage(credentials map[string]string, logger *zap.Logger) common.RequestHandler {
	return AuthenticationWithProvider(&BasicAuthProvider{Credentials: credentials}, logger)
}

// NewBearerTokenStage creates a stage that uses Bearer Token Authentication.
func NewBearerTokenStage(validTokens map[string]bool, logger *zap.Logger) common.RequestHandler {
	return AuthenticationWithProvider(&BearerTokenProvider{ValidTokens: validTokens}, logger)
}

// NewAPIKeyStage creates a stage that uses API Key Authentication.
func NewAPIKeyStage(validKeys map[string]bool, header, query string, logger *zap.Logger) common.RequestHandler {
	return AuthenticationWithProvider(&APIKeyProvider{ValidKeys: validKeys, Header: header, Query: query}, logger)
}

// UserAuthProvider defines an interface for authentication providers that
// resolve the authenticated user.
type UserAuthProvider[T any] interface {
	// AuthenticateUser returns the user if the request is authenticated, nil and an error otherwise.
	AuthenticateUser(r *http.Request) (*T, error)
}

// BasicUserAuthProvider provides HTTP Basic Authentication with user object return.
type BasicUserAuthProvider[T any] struct {
	GetUserFunc func(username, password string) (*T, error)
}

// AuthenticateUser authenticates a request using HTTP Basic Authentication.
func (p *BasicUserAuthProvider[T]) AuthenticateUser(r *http.Request) (*T, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, errNoBasicAuth
	}
	return p.GetUserFunc(username, password)
}

// BearerTokenUserAuthProvider provides Bearer Token Authentication with user object return.
type BearerTokenUserAuthProvider[T any] struct {
	GetUserFunc func(token string) (*T, error)
}

// AuthenticateUser authenticates a request using Bearer Token Authentication.
func (p *BearerTokenUserAuthProvider[T]) AuthenticateUser(r *http.Request) (*T, error) {
	token, err := bearerToken(r)
	if err != nil {
		return nil, err
	}
	return p.GetUserFunc(token)
}

// APIKeyUserAuthProvider provides API Key Authentication with user object return.
type APIKeyUserAuthProvider[T any] struct {
	GetUserFunc func(key string) (*T, error)
	Header      string // header name (e.g., "X-API-Key")
	Query       string // query parameter name (e.g., "api_key")
}

// AuthenticateUser authenticates a request using API Key Authentication.
func (p *APIKeyUserAuthProvider[T]) AuthenticateUser(r *http.Request) (*T, error) {
	key, err := apiKey(r, p.Header, p.Query)
	if err != nil {
		return nil, err
	}
	return p.GetUserFunc(key)
}

// UserIDKey is the request attribute holding the authenticated user ID.
const UserIDKey = "user_id"

// Identified may be implemented by user types so that the authenticated user
// ID is recorded on the request, e.g. for per-user rate limiting.
type Identified interface {
	UserID() string
}

type userAuthentication[T any] struct {
	authenticate func(*http.Request) (*T, error)
	logger       *zap.Logger
}

// AuthenticationWithUser returns a request stage that resolves the user with
// authFunc and stores it on the request. Failures answer 401 Unauthorized.
func AuthenticationWithUser[T any](authFunc func(*http.Request) (*T, error), logger *zap.Logger) common.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &userAuthentication[T]{authenticate: authFunc, logger: logger}
}

// AuthenticationWithUserProvider returns an AuthenticationWithUser stage backed by provider.
func AuthenticationWithUserProvider[T any](provider UserAuthProvider[T], logger *zap.Logger) common.RequestHandler {
	return AuthenticationWithUser(provider.AuthenticateUser, logger)
}

func (a *userAuthentication[T]) Name() string { return "user-authentication" }

func (a *userAuthentication[T]) Handle(ctx common.Context, req *common.Request) {
	var (
		user *T
		err  = errNoAuthHeader
	)
	if req.HTTP != nil {
		user, err = a.authenticate(req.HTTP)
	}
	if err != nil || user == nil {
		a.logger.Warn("Authentication failed",
			zap.Error(err),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("client_ip", ClientIP(req)),
		)
		ctx.Send(req, unauthorized())
		return
	}

	req.Set(userKey[T](), user)
	if id, ok := any(user).(Identified); ok {
		req.Set(UserIDKey, id.UserID())
	}
	ctx.Next(req)
}

func userKey[T any]() string {
	return "user:" + reflect.TypeOf((*T)(nil)).Elem().String()
}

// GetUser retrieves the user stored by an AuthenticationWithUser stage.
// Returns nil if no user of type T is found.
func GetUser[T any](req *common.Request) *T {
	v, ok := req.Get(userKey[T]())
	if !ok {
		return nil
	}
	user, _ := v.(*T)
	return user
}

// UserID returns the authenticated user ID, or "" if none was recorded.
func UserID(req *common.Request) string {
	if v, ok := req.Get(UserIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// NewBasicAuthWithUserStage creates a stage that uses HTTP Basic Authentication
// and stores the user object.
func NewBasicAuthWithUserStage[T any](getUserFunc func(username, password string) (*T, error), logger *zap.Logger) common.RequestHandler {
	return AuthenticationWithUserProvider[T](&BasicUserAuthProvider[T]{GetUserFunc: getUserFunc}, logger)
}

// NewBearerTokenWithUserStage creates a stage that uses Bearer Token Authentication
// and stores the user object.
func NewBearerTokenWithUserStage[T any](getUserFunc func(token string) (*T, error), logger *zap.Logger) common.RequestHandler {
	return AuthenticationWithUserProvider[T](&BearerTokenUserAuthProvider[T]{GetUserFunc: getUserFunc}, logger)
}

// NewAPIKeyWithUserStage creates a stage that uses API Key Authentication
// and stores the user object.
func NewAPIKeyWithUserStage[T any](getUserFunc func(key string) (*T, error), header, query string, logger *zap.Logger) common.RequestHandler {
	return AuthenticationWithUserProvider[T](&APIKeyUserAuthProvider[T]{GetUserFunc: getUserFunc, Header: header, Query: query}, logger)
}
