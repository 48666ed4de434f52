// Package http assembles the gin engine and HTTP server of the admission
// service.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/rlgprojects/admission/internal/config"
	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/internal/interfaces/http/handlers"
	"github.com/rlgprojects/admission/internal/interfaces/http/middleware"
	"github.com/rlgprojects/admission/pkg/logger"
)

// Router owns the gin engine and the HTTP server lifecycle.
type Router struct {
	engine           *gin.Engine
	config           *config.Config
	logger           logger.Logger
	admissionSvc     service.AdmissionService
	admissionHandler *handlers.AdmissionHandler
	adminHandler     *handlers.AdminHandler
	healthHandler    *handlers.HealthHandler
	tracer           trace.Tracer
	httpMetrics      *middleware.HTTPMetrics
	server           *http.Server
}

// NewRouter creates the router. SetupRoutes or Start must be called before
// serving.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	admissionSvc service.AdmissionService,
	admissionHandler *handlers.AdmissionHandler,
	adminHandler *handlers.AdminHandler,
	healthHandler *handlers.HealthHandler,
	tracer trace.Tracer,
	httpMetrics *middleware.HTTPMetrics,
) *Router {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Router{
		engine:           gin.New(),
		config:           cfg,
		logger:           log,
		admissionSvc:     admissionSvc,
		admissionHandler: admissionHandler,
		adminHandler:     adminHandler,
		healthHandler:    healthHandler,
		tracer:           tracer,
		httpMetrics:      httpMetrics,
	}
}

// SetupRoutes installs middleware and routes.
func (r *Router) SetupRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.AccessLog(r.logger))
	if r.tracer != nil && r.httpMetrics != nil {
		r.engine.Use(middleware.Observability(r.tracer, r.httpMetrics))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID", "X-Admission-Cost", "X-Principal-ID"}
	corsConfig.ExposeHeaders = []string{
		"X-Request-ID",
		"X-RateLimit-Limit",
		"X-RateLimit-Remaining",
		"X-RateLimit-Reset",
		"X-RateLimit-Policy",
		"X-RateLimit-AnomalyScore",
		"Retry-After",
	}
	r.engine.Use(cors.New(corsConfig))

	r.engine.GET("/health/live", r.healthHandler.Live)
	r.engine.GET("/health/ready", r.healthHandler.Ready)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if r.config.Server.Environment != "production" {
		pprof.Register(r.engine)
	}

	v1 := r.engine.Group("/api/v1")
	{
		// Decision API for sidecars enforcing admission themselves.
		v1.POST("/check", r.admissionHandler.Check)

		// Enforced surface: the middleware charges the window and rejects
		// over-limit callers before the handler runs.
		admit := v1.Group("/admit")
		admit.Use(middleware.Admission(r.admissionSvc, middleware.HeaderTrust{
			ProxySecret: r.config.Server.ProxySecret,
		}, r.logger))
		{
			admit.POST("/:endpoint", r.admissionHandler.Admitted)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/limits/reset", r.adminHandler.ResetLimits)
			admin.GET("/policy", r.adminHandler.GetPolicy)
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "the requested resource was not found",
		})
	})
}

// Engine exposes the gin engine for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Start sets up routes and serves until the listener fails or Stop is called.
func (r *Router) Start() error {
	r.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    time.Duration(r.config.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(r.config.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	r.logger.Info(context.Background(), "starting http server",
		logger.String("addr", addr),
	)

	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info(ctx, "stopping http server")
	return r.server.Shutdown(ctx)
}
