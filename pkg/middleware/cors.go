package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Suhaibinator/SRest/pkg/common"
)

// CORSConfig defines the CORS headers added to responses.
type CORSConfig struct {
	Origins []string // allowed origins; "*" allows any
	Methods []string
	Headers []string
	MaxAge  int // seconds; 0 omits Access-Control-Max-Age
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// when origin is not allowed.
func (c CORSConfig) allowOrigin(origin string) string {
	for _, o := range c.Origins {
		if o == "*" {
			return "*"
		}
		if origin != "" && o == origin {
			return origin
		}
	}
	return ""
}

func (c CORSConfig) apply(req *common.Request, resp *common.Response) {
	if len(c.Origins) > 0 {
		allowed := c.allowOrigin(req.Header("Origin"))
		if allowed != "" {
			resp.WithHeader("Access-Control-Allow-Origin", allowed)
		}
		if allowed != "*" {
			if resp.Header == nil {
				resp.Header = make(http.Header)
			}
			resp.Header.Add("Vary", "Origin")
		}
	}
	if len(c.Methods) > 0 {
		resp.WithHeader("Access-Control-Allow-Methods", strings.Join(c.Methods, ", "))
	}
	if len(c.Headers) > 0 {
		resp.WithHeader("Access-Control-Allow-Headers", strings.Join(c.Headers, ", "))
	}
	if c.MaxAge > 0 {
		resp.WithHeader("Access-Control-Max-Age", strconv.Itoa(c.MaxAge))
	}
}

// CORS returns a response stage that adds CORS headers to every response.
// A request Origin listed in the config is echoed back; other origins get no
// Access-Control-Allow-Origin header.
func CORS(config CORSConfig) common.ResponseHandler {
	return common.ResponseHandlerFunc(func(ctx common.Context, req *common.Request, resp *common.Response) {
		config.apply(req, resp)
		ctx.Send(req, resp)
	})
}

// Preflight returns a request stage answering OPTIONS requests with 204 and
// the CORS headers, without routing them.
func Preflight(config CORSConfig) common.RequestHandler {
	return common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		if req.Method != http.MethodOptions {
			ctx.Next(req)
			return
		}
		resp := common.NoContent()
		config.apply(req, resp)
		ctx.Send(req, resp)
	})
}
