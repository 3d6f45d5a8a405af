package dashboard

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iammatthias/office-space/internal/observability"
	"github.com/iammatthias/office-space/pkg/syncer"
)

// Server renders the sensor dashboard and serves the per-series API.
type Server struct {
	addr        string
	controllers map[string]*syncer.Controller
	metrics     *observability.Metrics
	server      *http.Server
}

// NewServer creates a dashboard server over the given per-series
// controllers. metrics may be nil.
func NewServer(addr string, controllers map[string]*syncer.Controller, metrics *observability.Metrics) *Server {
	return &Server{
		addr:        addr,
		controllers: controllers,
		metrics:     metrics,
	}
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.Handle("/", s.metrics.Instrument("index", http.HandlerFunc(s.handleIndex))).Methods("GET")
	r.Handle("/api/v1/series/{sensor}", s.metrics.Instrument("series", http.HandlerFunc(s.handleSeries))).Methods("GET")
	r.Handle("/api/v1/summary/{sensor}", s.metrics.Instrument("summary", http.HandlerFunc(s.handleSummary))).Methods("GET")
	r.Handle("/charts/{sensor}.png", s.metrics.Instrument("chart", http.HandlerFunc(s.handleChart))).Methods("GET")
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return handlers.LoggingHandler(os.Stdout, r)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
