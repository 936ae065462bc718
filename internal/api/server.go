package api

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"empiria/internal/cache"
	"empiria/internal/config"
	"empiria/internal/database"
	"empiria/internal/external"
	"empiria/internal/handlers"
	"empiria/internal/logger"
	"empiria/internal/messaging"
	"empiria/internal/middleware"
	"empiria/internal/repository"
	"empiria/internal/service"
)

// Server wires the HTTP API together: storage, broker, cache, the
// payment processor client and the service layer behind the routes.
type Server struct {
	router      *gin.Engine
	config      *config.Config
	db          *database.DB
	nats        *messaging.NATSClient
	cacheClient *cache.Client
	services    *service.Services
	repos       *repository.Repositories
}

func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	// The broker is optional: publishes on a nil client are no-ops, and
	// the pipeline itself never depends on a publish succeeding.
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		slog.Warn("NATS unavailable, continuing without event publishing", "error", err)
		natsClient = nil
	}

	// Same for the status cache; misses just fall through to Postgres.
	cacheClient, err := cache.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, continuing without status cache", "error", err)
		cacheClient = nil
	}

	stripeClient := external.NewStripeClient(cfg.Stripe)
	mailClient := external.NewMailClient(cfg.Email)

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, natsClient, stripeClient, mailClient,
		cfg.AppBaseURL, cfg.CheckoutTTL)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())

	server := &Server{
		router:      router,
		config:      cfg,
		db:          db,
		nats:        natsClient,
		cacheClient: cacheClient,
		services:    services,
		repos:       repos,
	}

	server.setupRoutes(stripeClient)

	return server
}

func (s *Server) setupRoutes(stripeClient *external.StripeClient) {
	h := handlers.NewHandlers(s.services, stripeClient, s.cacheClient)

	api := s.router.Group("/api")
	{
		checkout := api.Group("/checkout")
		{
			checkout.POST("", h.CreateCheckout)
			checkout.GET("/status", h.CheckoutStatus)
		}

		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/stripe", h.StripeWebhook)
		}
	}

	s.router.GET("/health", h.HealthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter exposes the router for tests.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

func (s *Server) Cleanup() error {
	if err := s.nats.Close(); err != nil {
		slog.Error("Error closing NATS connection", "error", err)
	}

	if s.cacheClient != nil {
		if err := s.cacheClient.Close(); err != nil {
			slog.Error("Error closing Redis connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
