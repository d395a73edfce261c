// Package api wires the provisioning facade to a thin HTTP transport. The
// production RPC binding lives in front of this service; the routes here
// mirror its five operations one to one.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/homeport/provisioner/internal/api/handlers"
	apimiddleware "github.com/homeport/provisioner/internal/api/middleware"
	appprovision "github.com/homeport/provisioner/internal/app/provision"
	"github.com/homeport/provisioner/internal/pkg/logger"
)

// Provisioning is an internal control-plane API called by a small number of
// trusted orchestrators, not a public endpoint, so the per-IP budget is
// generous; it exists to absorb a misbehaving caller rather than to shape
// public traffic.
const (
	provisionRateLimitRPS   = 20
	provisionRateLimitBurst = 40
)

// Config configures the HTTP server.
type Config struct {
	Host    string
	Port    int
	Verbose bool
	Version string
}

// Server hosts the provisioning facade behind chi.
type Server struct {
	config           Config
	router           *chi.Mux
	httpServer       *http.Server
	provisionHandler *handlers.ProvisionHandler
}

// NewServer wires a Server around an already-constructed provisioning
// service.
func NewServer(cfg Config, service *appprovision.Service) *Server {
	s := &Server{
		config:           cfg,
		provisionHandler: handlers.NewProvisionHandler(service),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apimiddleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(apimiddleware.BodyLimit(apimiddleware.DefaultMaxBodySize))
	r.Use(apimiddleware.RateLimit(provisionRateLimitRPS, provisionRateLimitBurst))
	r.Use(apimiddleware.InjectClaim)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "healthy", "version": s.config.Version})
	})

	r.Route("/v1", func(r chi.Router) {
		s.provisionHandler.RegisterRoutes(r)
	})

	s.router = r
}

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	logger.Info("starting provisioner server", "host", s.config.Host, "port", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down provisioner server")
	apimiddleware.StopRateLimitCleanup()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying chi router, mainly for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
