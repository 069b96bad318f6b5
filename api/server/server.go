// Package server wires the HTTP surface: REST CRUD, the two WebSocket
// endpoints, health, and metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/firespoon/sandchat/api/config"
	"github.com/firespoon/sandchat/api/sandbox"
	"github.com/firespoon/sandchat/api/server/handlers"
	"github.com/firespoon/sandchat/api/services"
	"github.com/firespoon/sandchat/api/store"
	"github.com/firespoon/sandchat/api/ws"
	"github.com/firespoon/sandchat/pkg/otel"
)

const ReadTimeout = 30 * time.Second

var registryGaugeOnce sync.Once

// hubOrchestrator adapts the hub + orchestrator pair to the conversation
// handler's teardown interface.
type hubOrchestrator struct {
	hub  *ws.Hub
	orch *sandbox.Orchestrator
}

func (t hubOrchestrator) RemoveContainer(conversationID string) {
	t.hub.RemoveContainer(conversationID)
}

func (t hubOrchestrator) StopContainer(ctx context.Context, conversationID string) error {
	return t.orch.StopContainer(ctx, conversationID)
}

type Server struct {
	cfg    *config.Config
	router *chi.Mux
	server *http.Server
	hub    *ws.Hub
}

func NewServer(
	cfg *config.Config,
	s *store.Store,
	hub *ws.Hub,
	orch *sandbox.Orchestrator,
	accountSvc *services.AccountService,
	convSvc *services.ConversationService,
	providerSvc *services.ProviderService,
	presetSvc *services.PresetService,
	mcpSvc *services.MCPService,
) *Server {
	router := chi.NewRouter()

	router.Use(otel.Middleware("sandchat-api"))
	router.Use(Recovery)
	router.Use(Logger)
	router.Use(CORS(cfg.Server.AllowedOrigins))

	registryGaugeOnce.Do(func() {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sandchat_registered_containers",
			Help: "Containers currently tracked by the lifecycle registry.",
		}, func() float64 { return float64(orch.Registry().Len()) })
	})

	healthH := handlers.NewHealthHandler(func(ctx context.Context) error {
		return s.Pool().Ping(ctx)
	})
	router.Get("/health", healthH.Readiness)
	router.Get("/health/live", healthH.Liveness)
	router.Handle("/metrics", promhttp.Handler())

	clientWS := ws.NewClientHandler(hub, s, orch, cfg.Auth.JWTSecret)
	containerWS := ws.NewContainerHandler(hub, s, cfg.Auth.JWTSecret, cfg.Auth.EncryptionKey)
	router.Get("/ws", clientWS.ServeHTTP)
	router.Get("/internal/ws", containerWS.ServeHTTP)

	authH := handlers.NewAuthHandler(accountSvc)
	router.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authH.Register)
		r.Post("/login", authH.Login)
		r.Post("/refresh", authH.Refresh)
		r.Post("/logout", authH.Logout)
	})

	sharingH := handlers.NewSharingHandler(convSvc)
	router.Route("/api/shared/{token}", func(r chi.Router) {
		r.Get("/", sharingH.GetShared)
		r.Get("/messages", sharingH.GetSharedMessages)
	})

	router.Route("/api", func(r chi.Router) {
		r.Use(Auth(cfg.Auth.JWTSecret))

		convH := handlers.NewConversationHandler(convSvc, mcpSvc, hubOrchestrator{hub: hub, orch: orch})
		r.Post("/conversations", convH.Create)
		r.Get("/conversations", convH.List)
		r.Get("/conversations/{id}", convH.Get)
		r.Patch("/conversations/{id}", convH.Update)
		r.Delete("/conversations/{id}", convH.Delete)
		r.Get("/conversations/{id}/messages", convH.ListMessages)
		r.Get("/conversations/{id}/mcp-servers", convH.GetMCPServers)
		r.Put("/conversations/{id}/mcp-servers", convH.SetMCPServers)

		r.Post("/conversations/{id}/share", sharingH.Create)
		r.Delete("/conversations/{id}/share", sharingH.Revoke)

		providerH := handlers.NewProviderHandler(providerSvc)
		r.Get("/providers", providerH.List)
		r.Post("/providers", providerH.Upsert)
		r.Delete("/providers/{provider}", providerH.Delete)

		presetH := handlers.NewPresetHandler(presetSvc)
		r.Get("/presets", presetH.List)
		r.Post("/presets", presetH.Create)
		r.Put("/presets/{id}", presetH.Update)
		r.Delete("/presets/{id}", presetH.Delete)

		adminH := handlers.NewAdminHandler(mcpSvc)
		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminOnly)
			r.Get("/mcp-servers", adminH.ListMCPServers)
			r.Post("/mcp-servers", adminH.CreateMCPServer)
			r.Get("/mcp-servers/{id}", adminH.GetMCPServer)
			r.Put("/mcp-servers/{id}", adminH.UpdateMCPServer)
			r.Delete("/mcp-servers/{id}", adminH.DeleteMCPServer)
		})
	})

	return &Server{
		cfg:    cfg,
		router: router,
		hub:    hub,
	}
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: ReadTimeout,
		// WebSocket connections are long-lived; no write timeout.
		WriteTimeout: 0,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
