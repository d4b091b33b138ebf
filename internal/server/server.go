// Package server exposes the application services over HTTP. Responses
// use a JSON envelope: successes under "data", failures under "error"
// with the taxonomy code, a human message, and the request ID.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lucasmontegu/driwet-sub001/internal/cache"
	"github.com/lucasmontegu/driwet-sub001/internal/services"
	"github.com/lucasmontegu/driwet-sub001/internal/types"
)

// RouteAnalyzer is the route weather surface the handlers call.
type RouteAnalyzer interface {
	AnalyzeRoute(ctx context.Context, req services.RouteRequest) (*types.RouteWeatherResult, error)
	Observation(ctx context.Context, lat, lng float64) (types.WeatherObservation, string, error)
}

// PlaceFinder is the safe-place surface the handlers call.
type PlaceFinder interface {
	FindNearby(ctx context.Context, lat, lng, radiusKm float64) (*types.SafePlacesResult, error)
}

// Config tunes the HTTP layer.
type Config struct {
	CorsOrigins    []string
	RequestTimeout time.Duration
}

// Server wires the handlers onto a chi router.
type Server struct {
	router chi.Router
	routes RouteAnalyzer
	places PlaceFinder
	stats  cache.StatsProvider
	logger *zap.Logger
}

// New builds the server. stats may be nil when the cache backend cannot
// report usage.
func New(cfg Config, routes RouteAnalyzer, places PlaceFinder, stats cache.StatsProvider, logger *zap.Logger) *Server {
	s := &Server{
		routes: routes,
		places: places,
		stats:  stats,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)
	r.Use(corsHeaders(cfg.CorsOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/route-weather", s.handleRouteWeather)
		r.Get("/safe-places", s.handleSafePlaces)
		r.Get("/observation", s.handleObservation)
	})

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

type contextKey string

const requestIDKey contextKey = "request_id"

// requestIDFrom returns the request ID attached by the middleware, or an
// empty string.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID attaches a fresh UUID to every request and echoes it in the
// X-Request-ID response header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// logRequests emits one structured line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestIDFrom(r.Context())))
	})
}

// recoverPanics converts a handler panic into an internal_unexpected
// response instead of tearing down the connection.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in handler",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestIDFrom(r.Context())))
				s.writeError(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "internal server error", nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsHeaders applies the configured allowed origins. "*" allows any.
func corsHeaders(origins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				if allowAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
