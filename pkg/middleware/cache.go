package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/Suhaibinator/SRest/pkg/common"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheStatusHeader reports whether a response was served from the cache.
const CacheStatusHeader = "X-Cache"

const cacheKeyAttr = "cache_key"

type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

// ResponseCache caches successful GET responses in memory. Requests carrying
// an Authorization header are neither answered from nor stored in the cache.
//
// Register Lookup as a pre-handler and Store as a post-handler after it:
// misses travel through Store on their way out, hits are answered by Lookup
// and never reach Store.
type ResponseCache struct {
	entries *expirable.LRU[string, cachedResponse]
}

// NewResponseCache creates a cache of at most size entries that expire after ttl.
// A ttl of 0 disables expiry.
func NewResponseCache(size int, ttl time.Duration) *ResponseCache {
	return &ResponseCache{entries: expirable.NewLRU[string, cachedResponse](size, nil, ttl)}
}

// Len returns the number of cached responses.
func (c *ResponseCache) Len() int { return c.entries.Len() }

// Purge removes every cached response.
func (c *ResponseCache) Purge() { c.entries.Purge() }

func cacheKey(req *common.Request) string {
	key := req.Method + " " + req.Path
	if req.HTTP != nil && req.HTTP.URL.RawQuery != "" {
		key += "?" + req.HTTP.URL.RawQuery
	}
	return key + " " + req.Accept()
}

// Lookup returns the request stage answering GET requests from the cache.
func (c *ResponseCache) Lookup() common.RequestHandler {
	return common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		if req.Method != http.MethodGet || req.Header("Authorization") != "" {
			ctx.Next(req)
			return
		}

		key := cacheKey(req)
		if entry, ok := c.entries.Get(key); ok {
			resp := common.NewResponse(entry.status).WithBody(bytes.Clone(entry.body))
			resp.Header = entry.header.Clone()
			resp.WithHeader(CacheStatusHeader, "HIT")
			ctx.Send(req, resp)
			return
		}

		req.Set(cacheKeyAttr, key)
		ctx.Next(req)
	})
}

// Store returns the response stage caching 200 responses with a byte body.
func (c *ResponseCache) Store() common.ResponseHandler {
	return common.ResponseHandlerFunc(func(ctx common.Context, req *common.Request, resp *common.Response) {
		v, ok := req.Get(cacheKeyAttr)
		key, _ := v.(string)
		body, isBytes := resp.Body.([]byte)
		if ok && key != "" && req.Header("Authorization") == "" &&
			resp.StatusCode == http.StatusOK && (isBytes || resp.Body == nil) {
			c.entries.Add(key, cachedResponse{
				status: resp.StatusCode,
				header: resp.Header.Clone(),
				body:   bytes.Clone(body),
			})
			resp.WithHeader(CacheStatusHeader, "MISS")
		}
		ctx.Send(req, resp)
	})
}
