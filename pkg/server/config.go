// Package server binds a pipeline to a net/http server and exposes the
// configuration API used to register pipeline stages and routes.
package server

import (
	"time"

	"github.com/Suhaibinator/SRest/pkg/common"
	"github.com/Suhaibinator/SRest/pkg/route"
	"go.uber.org/zap"
)

// Config defines the configuration of a Server.
type Config struct {
	Logger      *zap.Logger            // Logger for all server and pipeline operations
	MaxBodySize int64                  // Maximum request body size in bytes (0 = unlimited)
	FlowTimeout time.Duration          // Time a flow has to write its response (0 = until the client goes away)
	Matcher     route.Matcher          // Path matcher (nil = httprouter)
	Unresolved  route.UnresolvedPolicy // What to do when content negotiation finds no handler
	Middlewares []common.Middleware    // Transport middlewares wrapped around the pipeline
}
