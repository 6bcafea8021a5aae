// Package api serves the waypost admin HTTP API.
//
// Queue endpoints call the sync coordinator directly; it is safe for
// concurrent use. Navigation endpoints run on the mainloop that owns the
// navigation coordinator.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/waypost/internal/mainloop"
	"github.com/roach88/waypost/internal/navigation"
	"github.com/roach88/waypost/internal/remote"
	"github.com/roach88/waypost/internal/syncer"
)

// Server routes admin requests.
type Server struct {
	sync   *syncer.Coordinator
	loop   *mainloop.Loop
	nav    *navigation.Coordinator
	remote *remote.Client

	gatherer prometheus.Gatherer
	requests *prometheus.HistogramVec
	router   *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithRemote enables POST /queue, which enqueues HTTP request mutations
// built by c.
func WithRemote(c *remote.Client) Option {
	return func(s *Server) {
		s.remote = c
	}
}

// WithNavigation enables the /nav endpoints. nav must only be used from
// tasks on loop.
func WithNavigation(loop *mainloop.Loop, nav *navigation.Coordinator) Option {
	return func(s *Server) {
		s.loop = loop
		s.nav = nav
	}
}

// WithMetrics serves g on /metrics and records request latency on reg.
func WithMetrics(g prometheus.Gatherer, reg prometheus.Registerer, namespace string) Option {
	return func(s *Server) {
		s.gatherer = g
		s.requests = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Admin API request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		)
		reg.MustRegister(s.requests)
	}
}

// New creates a server for sc.
func New(sc *syncer.Coordinator, opts ...Option) *Server {
	s := &Server{sync: sc}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	if s.requests != nil {
		r.Use(s.instrument)
	}

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/queue", s.handleQueue).Methods(http.MethodGet)
	r.HandleFunc("/queue", s.handleEnqueue).Methods(http.MethodPost)
	r.HandleFunc("/queue", s.handleClearAll).Methods(http.MethodDelete)
	r.HandleFunc("/queue/sync", s.handleSync).Methods(http.MethodPost)
	r.HandleFunc("/queue/failed", s.handleClearFailed).Methods(http.MethodDelete)
	r.HandleFunc("/queue/failed/retry", s.handleRetryAll).Methods(http.MethodPost)
	r.HandleFunc("/queue/failed/{id}/retry", s.handleRetry).Methods(http.MethodPost)
	r.HandleFunc("/queue/failed/{id}/resolve", s.handleResolve).Methods(http.MethodPost)
	r.HandleFunc("/queue/failed/{id}", s.handleDiscard).Methods(http.MethodDelete)

	if s.nav != nil {
		r.HandleFunc("/nav", s.handleNavState).Methods(http.MethodGet)
		r.HandleFunc("/nav/navigate", s.handleNavigate).Methods(http.MethodPost)
		r.HandleFunc("/nav/dismiss", s.handleDismiss).Methods(http.MethodPost)
		r.HandleFunc("/nav/tabs/{index:[0-9]+}", s.handleSelectTab).Methods(http.MethodPost)
		r.HandleFunc("/nav/deeplink", s.handleDeepLink).Methods(http.MethodPost)
		r.HandleFunc("/nav/flows", s.handleStartFlow).Methods(http.MethodPost)
		r.HandleFunc("/nav/flows/{id}/advance", s.handleAdvanceFlow).Methods(http.MethodPost)
		r.HandleFunc("/nav/flows/{id}/back", s.handleFlowBack).Methods(http.MethodPost)
		r.HandleFunc("/nav/flows/{id}", s.handleCancelFlow).Methods(http.MethodDelete)
	}

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return r
}

// instrument records request latency by route template.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		s.requests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
