// Package server exposes the Controller over HTTP/JSON for the map front end.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/residence-finder/internal/app"
	"github.com/sells-group/residence-finder/internal/locate"
	"github.com/sells-group/residence-finder/internal/metrics"
)

// Options configures a Server.
type Options struct {
	Port           int
	AllowedOrigins []string
	// LookupTimeout bounds a single summary or distance request.
	LookupTimeout time.Duration
	// TrustProxy takes the client address from X-Forwarded-For and similar
	// headers. Enable only behind a reverse proxy that overwrites them.
	TrustProxy bool
}

// Server serves the residence API.
type Server struct {
	ctrl    *app.Controller
	metrics *metrics.Collector
	opts    Options
	router  chi.Router
}

// New builds the router. m may be nil, in which case /metrics is not mounted.
func New(ctrl *app.Controller, m *metrics.Collector, opts Options) *Server {
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 60 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{ctrl: ctrl, metrics: m, opts: opts}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(s.instrument)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/residences", s.handleVisible)
		r.Get("/residences.geojson", s.handleGeoJSON)
		r.Get("/residences.xlsx", s.handleExport)
		r.Get("/cities", s.handleCities)
		r.Get("/price-options", s.handlePriceOptions)
		r.Get("/state", s.handleState)

		r.Route("/filter", func(r chi.Router) {
			r.Get("/", s.handleFilter)
			r.Post("/cities", s.handleSelectAllCities)
			r.Delete("/cities", s.handleDeselectAllCities)
			r.Post("/cities/{city}", s.handleToggleCity)
			r.Post("/prices", s.handleSelectAllPrices)
			r.Delete("/prices", s.handleDeselectAllPrices)
			r.Post("/prices/{bucket}", s.handleTogglePrice)
			r.Put("/search", s.handleSetSearch)
			r.Post("/favorites-only", s.handleToggleFavoritesOnly)
		})

		r.Route("/proximity", func(r chi.Router) {
			r.Put("/radius", s.handleSetRadius)
			r.Post("/locate", s.handleLocate)
			r.Delete("/", s.handleClearProximity)
		})

		r.Post("/selection/{name}", s.handleSelect)
		r.Delete("/selection", s.handleClearSelection)
		r.Delete("/selection/{name}", s.handleDeselect)
		r.Put("/route/{ref}", s.handleSetRoute)

		r.Route("/residences/{name}", func(r chi.Router) {
			r.Get("/", s.handleResidence)
			r.Post("/favorite", s.handleToggleFavorite)
			r.Post("/contacted", s.handleToggleContacted)
			r.Put("/note", s.handleSetNote)
			r.Get("/summary", s.handleGetSummary)
			r.Post("/summary", s.handleFetchSummary)
			r.Get("/distances", s.handleGetDistances)
			r.Post("/distances", s.handleFetchDistances)
		})
	})
	return r
}

// instrument records one observation per request, labelled by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(route, r.Method, status, time.Since(start))
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", s.opts.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

// locateRequest builds the geolocation request from the body and the client address.
func (s *Server) locateRequest(r *http.Request, body locate.Request) locate.Request {
	body.IP = locate.ClientIP(r, s.opts.TrustProxy)
	return body
}
