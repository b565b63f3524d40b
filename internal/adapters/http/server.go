// Package http wires the chi router: health and metrics endpoints plus
// the room WebSocket.
package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/babelroom/babelroom/internal/adapters/http/handlers"
	"github.com/babelroom/babelroom/internal/adapters/http/middleware"
	"github.com/babelroom/babelroom/internal/config"
	"github.com/babelroom/babelroom/internal/hub"
	"github.com/babelroom/babelroom/internal/pipeline"
	"github.com/babelroom/babelroom/internal/ports"
)

type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server

	auth      ports.AuthPort
	users     ports.UserDirectory
	rooms     ports.RoomRegistry
	hub       *hub.Manager
	relay     *hub.Relay
	pipelines *pipeline.Manager
	db        *pgxpool.Pool
}

func NewServer(
	cfg *config.Config,
	auth ports.AuthPort,
	users ports.UserDirectory,
	rooms ports.RoomRegistry,
	hubManager *hub.Manager,
	relay *hub.Relay,
	pipelines *pipeline.Manager,
	db *pgxpool.Pool,
) *Server {
	s := &Server{
		config:    cfg,
		auth:      auth,
		users:     users,
		rooms:     rooms,
		hub:       hubManager,
		relay:     relay,
		pipelines: pipelines,
		db:        db,
	}

	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(s.config.Server.CORSOrigins))
	r.Use(middleware.Metrics)

	healthHandler := handlers.NewHealthHandler(s.db)
	r.Get("/health", healthHandler.Handle)
	r.Get("/health/ready", healthHandler.HandleReady)
	r.Handle("/metrics", promhttp.Handler())

	wsHandler := handlers.NewAudioWSHandler(
		s.auth,
		s.users,
		s.rooms,
		s.hub,
		s.relay,
		s.pipelines,
		s.config.Pipeline,
		s.config.Server.CORSOrigins,
	)

	r.Route(s.config.Server.PathPrefix, func(r chi.Router) {
		r.Get("/ws/audio/{room_id}", wsHandler.Handle)
	})

	s.router = r
}

// Router exposes the configured router, used by tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no write timeout for WebSocket streaming
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting HTTP server on %s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	log.Printf("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
