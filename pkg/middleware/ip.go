package middleware

import (
	"net/http"
	"strings"

	"github.com/Suhaibinator/SRest/pkg/common"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the X-Forwarded-For header
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"

	// IPSourceCustomHeader uses a custom header specified in the configuration
	IPSourceCustomHeader IPSourceType = "custom_header"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType

	// CustomHeader is the name of the custom header to use when Source is IPSourceCustomHeader
	CustomHeader string

	// TrustProxy determines whether to trust proxy headers like X-Forwarded-For.
	// If false, RemoteAddr is always used.
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceXForwardedFor,
		TrustProxy: true,
	}
}

// ClientIPKey is the request attribute holding the client IP.
const ClientIPKey = "client_ip"

// ClientIP returns the client IP stored by the ClientIPExtractor stage. Without
// it, the remote address of the transport request is used.
func ClientIP(req *common.Request) string {
	if v, ok := req.Get(ClientIPKey); ok {
		if ip, ok := v.(string); ok {
			return ip
		}
	}
	if req.HTTP != nil {
		return cleanIP(req.HTTP.RemoteAddr)
	}
	return ""
}

type clientIPExtractor struct {
	config *IPConfig
}

// ClientIPExtractor returns a request stage that stores the client IP as a request attribute.
func ClientIPExtractor(config *IPConfig) common.RequestHandler {
	if config == nil {
		config = DefaultIPConfig()
	}
	return &clientIPExtractor{config: config}
}

func (c *clientIPExtractor) Name() string { return "client-ip" }

func (c *clientIPExtractor) Handle(ctx common.Context, req *common.Request) {
	if req.HTTP != nil {
		req.Set(ClientIPKey, extractClientIP(req.HTTP, c.config))
	}
	ctx.Next(req)
}

// extractClientIP extracts the client IP from the request based on the configuration
func extractClientIP(r *http.Request, config *IPConfig) string {
	var ip string

	switch config.Source {
	case IPSourceXRealIP:
		ip = r.Header.Get("X-Real-IP")
	case IPSourceCustomHeader:
		ip = r.Header.Get(config.CustomHeader)
	case IPSourceRemoteAddr:
		ip = r.RemoteAddr
	default:
		ip = extractIPFromXForwardedFor(r)
	}

	// If we don't trust proxy headers or couldn't extract an IP, fall back to RemoteAddr
	if !config.TrustProxy || ip == "" {
		ip = r.RemoteAddr
	}

	return cleanIP(ip)
}

// extractIPFromXForwardedFor returns the leftmost (original client) address of X-Forwarded-For.
func extractIPFromXForwardedFor(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// cleanIP removes the port from an IP address if present
func cleanIP(ip string) string {
	// IPv6 addresses with ports are formatted as [IPv6]:port
	if strings.HasPrefix(ip, "[") {
		if end := strings.LastIndex(ip, "]"); end > 0 {
			return ip[1:end]
		}
		return ip
	}

	// More than one colon: an IPv6 address without port
	if strings.Count(ip, ":") > 1 {
		return ip
	}

	if end := strings.LastIndex(ip, ":"); end > 0 {
		return ip[:end]
	}
	return ip
}
