package main

import (
	"fmt"
	"net/http"

	"github.com/Suhaibinator/SRest/pkg/config"
	"github.com/Suhaibinator/SRest/pkg/middleware"
	"github.com/Suhaibinator/SRest/pkg/server"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// app is a configured server ready to be started.
type app struct {
	server     *server.Server
	httpServer *http.Server
	registry   *prometheus.Registry
	people     *peopleStore
}

// build assembles the server described by cfg. Stage order, outermost first:
// logging, metrics, trace echo and CORS on the way out; trace, client IP,
// preflight, rate limit, cache and body decoding on the way in.
func build(cfg *config.Config, logger *zap.Logger) (*app, error) {
	policy, err := cfg.Server.UnresolvedPolicy()
	if err != nil {
		return nil, err
	}

	hs := &http.Server{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	s, err := server.New(hs, server.Config{
		Logger:      logger,
		MaxBodySize: cfg.Server.MaxBodySize,
		FlowTimeout: cfg.Server.FlowTimeout,
		Unresolved:  policy,
	})
	if err != nil {
		return nil, err
	}

	a := &app{server: s, httpServer: hs, people: newPeopleStore()}
	m := cfg.Middleware

	if m.Logging {
		if err := s.AddPostHandler(middleware.Logging(logger)); err != nil {
			return nil, err
		}
	}
	if m.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		stage, err := middleware.PrometheusMetrics(a.registry, middleware.PrometheusConfig{
			Namespace:        m.Metrics.Namespace,
			EnableLatency:    true,
			EnableThroughput: true,
			EnableQPS:        true,
			EnableErrors:     true,
		})
		if err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
		if err := s.AddPostHandler(stage); err != nil {
			return nil, err
		}
	}
	if m.Trace.Enabled {
		if err := s.AddPostHandler(middleware.EchoTraceID()); err != nil {
			return nil, err
		}
		if err := s.AddPreHandler(middleware.Trace(m.Trace.TrustHeader)); err != nil {
			return nil, err
		}
	}
	if err := s.AddPreHandler(middleware.ClientIPExtractor(nil)); err != nil {
		return nil, err
	}
	if m.CORS.Enabled {
		cors := middleware.CORSConfig{
			Origins: m.CORS.Origins,
			Methods: m.CORS.Methods,
			Headers: m.CORS.Headers,
			MaxAge:  m.CORS.MaxAge,
		}
		if err := s.AddPostHandler(middleware.CORS(cors)); err != nil {
			return nil, err
		}
		if err := s.AddPreHandler(middleware.Preflight(cors)); err != nil {
			return nil, err
		}
	}
	if m.RateLimit.Enabled {
		stage := middleware.RateLimit(&middleware.RateLimitConfig{
			BucketName: "global",
			Limit:      m.RateLimit.Limit,
			Window:     m.RateLimit.Window,
			Strategy:   middleware.RateLimitStrategy(m.RateLimit.Strategy),
		}, middleware.NewTokenBucketLimiter(middleware.DefaultMaxBuckets), logger)
		if err := s.AddPreHandler(stage); err != nil {
			return nil, err
		}
	}
	if m.Cache.Enabled {
		cache := middleware.NewResponseCache(m.Cache.Size, m.Cache.TTL)
		if err := s.AddPreHandler(cache.Lookup()); err != nil {
			return nil, err
		}
		if err := s.AddPostHandler(cache.Store()); err != nil {
			return nil, err
		}
	}

	if err := a.people.register(s); err != nil {
		return nil, err
	}
	if err := s.Get("/health", healthHandler()); err != nil {
		return nil, err
	}
	if a.registry != nil {
		if err := s.Get(m.Metrics.Path, middleware.MetricsEndpoint(a.registry)); err != nil {
			return nil, err
		}
	}

	s.Freeze()
	return a, nil
}
