package handlers

import (
	"github.com/gin-gonic/gin"
)

// Router wires all HTTP handlers onto a gin engine.
type Router struct {
	walletHandler *WalletHandler
	healthHandler *HealthHandler
}

// NewRouter creates a Router with all handlers.
func NewRouter(aggregator Aggregator, healthHandler *HealthHandler) *Router {
	return &Router{
		walletHandler: NewWalletHandler(aggregator),
		healthHandler: healthHandler,
	}
}

// SetupRoutes configures the authenticated API routes.
func (r *Router) SetupRoutes(engine *gin.Engine, authMiddleware gin.HandlerFunc) {
	api := engine.Group("/api")
	api.Use(authMiddleware)
	{
		api.POST("/wallet", r.walletHandler.AnalyzeWallet)
	}
}

// SetupHealthRoutes configures the unauthenticated health and metrics
// routes.
func (r *Router) SetupHealthRoutes(engine *gin.Engine) {
	health := engine.Group("/health")
	{
		health.GET("", r.healthHandler.GetHealth)
		health.GET("/live", r.healthHandler.GetLiveness)
		health.GET("/ready", r.healthHandler.GetReadiness)
	}

	engine.GET("/metrics", r.healthHandler.GetMetrics)
	engine.GET("/status", r.healthHandler.GetStatus)
}
