package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	handlers "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/adapter/handler/http"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/config"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/provider"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/repository"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/middleware/auth"
	pkglogger "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/pkg/logger"
	"go.uber.org/zap"
)

// webhookBodyLimit caps the raw webhook body read before signature verification.
// Invoices with many line items regularly exceed 64 KiB.
const webhookBodyLimit = "1M"

// Dependencies are the collaborators the HTTP routes are built from
type Dependencies struct {
	Verifier   provider.Verifier
	Processor  handlers.EventProcessor
	Activities repository.ActivityRepository
}

type Server struct {
	config *config.Config
	logger *zap.Logger
	echo   *echo.Echo
	deps   Dependencies
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewRequestValidator()

	pkglogger.WithEchoLogger(e, logger)

	e.Use(middleware.RequestID())
	e.Use(pkglogger.NewEchoRequestLogger(logger))
	e.Use(middleware.Recover())

	s := &Server{
		config: cfg,
		logger: logger,
		echo:   e,
		deps:   deps,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	webhookHandler := handlers.NewWebhookHandler(s.deps.Verifier, s.deps.Processor, s.logger)
	activityHandler := handlers.NewActivityHandler(s.deps.Activities, s.logger)

	jwtConfig := auth.JWTConfig{
		Secret: s.config.Auth.JWTSecret,
		Logger: s.logger,
	}

	v1 := s.echo.Group("/api/v1", auth.JWTMiddleware(jwtConfig))
	v1.GET("/activities", activityHandler.ListActivities)

	// Webhook route (outside API versioning)
	s.echo.POST("/webhook", webhookHandler.HandleWebhook, middleware.BodyLimit(webhookBodyLimit))
}
