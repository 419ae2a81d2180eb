package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Tad-z/BlockTrace-api/internal/chain"
	"github.com/Tad-z/BlockTrace-api/internal/chain/evm"
	"github.com/Tad-z/BlockTrace-api/internal/chain/solana"
	"github.com/Tad-z/BlockTrace-api/internal/config"
	"github.com/Tad-z/BlockTrace-api/internal/engine"
	"github.com/Tad-z/BlockTrace-api/internal/handlers"
	"github.com/Tad-z/BlockTrace-api/internal/middleware"
	"github.com/Tad-z/BlockTrace-api/internal/pricing"
	"github.com/Tad-z/BlockTrace-api/internal/quota"
	"github.com/Tad-z/BlockTrace-api/internal/resultcache"
	"github.com/Tad-z/BlockTrace-api/pkg/logger"
	"github.com/Tad-z/BlockTrace-api/pkg/metrics"
	"github.com/Tad-z/BlockTrace-api/pkg/ratelimiter"
)

// Server is the assembled application: HTTP surface plus the aggregation
// pipeline behind it.
type Server struct {
	httpServer  *http.Server
	config      *config.Config
	redisClient *redis.Client
	oracle      *pricing.Oracle
	rateLimiter *ratelimiter.RateLimiter
	router      *handlers.Router
	collector   *metrics.Collector
}

func main() {
	cfg := config.LoadConfig()

	loggerConfig := &logger.Config{
		Level:       cfg.Logging.Level,
		Environment: cfg.Logging.Environment,
		OutputPaths: cfg.Logging.OutputPaths,
	}
	if err := logger.Initialize(loggerConfig); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log := logger.GetLogger()

	log.Info("Starting BlockTrace API server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("solana_rpc", cfg.SolanaRPC.Endpoint),
		zap.String("ethereum_rpc", cfg.EthereumRPC.Endpoint),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.Int("api_keys", len(cfg.Auth.APIKeys)),
		zap.String("log_level", cfg.Logging.Level),
	)

	server, err := NewServer(cfg)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	if err := server.Start(); err != nil {
		log.Fatal("Server failed to start", zap.Error(err))
	}
}

// NewServer wires all dependencies together.
func NewServer(cfg *config.Config) (*Server, error) {
	log := logger.GetLogger()

	log.Info("Initializing server components")

	collector := metrics.NewCollector()

	solanaClient := solana.NewClient(&cfg.SolanaRPC)
	evmClient := evm.NewClient(&cfg.EthereumRPC)
	chains := chain.Registry{
		"solana":   solanaClient,
		"ethereum": evmClient,
	}

	for name, client := range chains {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(ctx); err != nil {
			log.Warn("Chain RPC health check failed", zap.String("chain", name), zap.Error(err))
		} else {
			log.Info("Chain RPC connection healthy", zap.String("chain", name))
		}
		cancel()
	}

	oracle := pricing.NewOracle(&cfg.Pricing)

	// Redis backs quota accounting and the result cache. Without it both
	// fall back to process-local storage.
	var redisClient *redis.Client
	var ledger quota.Ledger
	var results resultcache.Store

	redisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := redisClient.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		log.Warn("Redis unreachable, using in-memory quota and result cache",
			zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		_ = redisClient.Close()
		redisClient = nil
		ledger = quota.NewMemoryLedger()
		results = resultcache.NewMemoryStore()
	} else {
		log.Info("Redis connection healthy", zap.String("addr", cfg.Redis.Addr))
		ledger = quota.NewRedisLedger(redisClient)
		results = resultcache.NewRedisStore(redisClient)
	}

	processor := engine.NewProcessor(cfg.Batch, oracle, collector)
	aggregator := engine.New(chains, oracle, processor, ledger, results, cfg.ResultCache, collector)

	rateLimiter := ratelimiter.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowSize, cfg.RateLimit.CleanupInterval)

	var redisPinger redis.Cmdable
	if redisClient != nil {
		redisPinger = redisClient
	}
	healthHandler := handlers.NewHealthHandler(chains, redisPinger, collector)
	router := handlers.NewRouter(aggregator, healthHandler)

	log.Info("Server components initialized successfully")

	return &Server{
		config:      cfg,
		redisClient: redisClient,
		oracle:      oracle,
		rateLimiter: rateLimiter,
		router:      router,
		collector:   collector,
	}, nil
}

// Start starts the HTTP server with graceful shutdown handling.
func (s *Server) Start() error {
	log := logger.GetLogger()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	ginEngine := gin.New()

	s.setupMiddleware(ginEngine)
	s.setupRoutes(ginEngine)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:           ginEngine,
		ReadTimeout:       s.config.Server.ReadTimeout,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       s.config.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	log.Info("HTTP server configured",
		zap.String("address", s.httpServer.Addr),
		zap.Duration("read_timeout", s.config.Server.ReadTimeout),
		zap.Duration("write_timeout", s.config.Server.WriteTimeout),
	)

	go func() {
		log.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	return s.waitForShutdown()
}

func (s *Server) setupMiddleware(ginEngine *gin.Engine) {
	// Recovery first so panics in later middleware are caught.
	ginEngine.Use(logger.RecoveryMiddleware())
	ginEngine.Use(logger.LoggingMiddleware())
	ginEngine.Use(middleware.MetricsMiddleware(s.collector))
	ginEngine.Use(s.corsMiddleware())

	// Rate limiting before auth to stop credential-guessing bursts.
	ginEngine.Use(s.rateLimiter.Middleware())
}

func (s *Server) setupRoutes(ginEngine *gin.Engine) {
	s.router.SetupHealthRoutes(ginEngine)
	s.router.SetupRoutes(ginEngine, middleware.AuthMiddleware(&s.config.Auth))
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// waitForShutdown blocks until an interrupt, then drains the HTTP server
// and stops background workers.
func (s *Server) waitForShutdown() error {
	log := logger.GetLogger()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Info("Shutting down HTTP server", zap.Duration("timeout", 30*time.Second))

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	s.cleanup()

	log.Info("Server gracefully stopped")
	return nil
}

func (s *Server) cleanup() {
	log := logger.GetLogger()

	log.Info("Cleaning up services...")

	if s.oracle != nil {
		s.oracle.Stop()
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Error("Error closing redis client", zap.Error(err))
		}
	}

	if err := logger.GetLogger().Sync(); err != nil {
		fmt.Printf("Error syncing logger: %v\n", err)
	}

	log.Info("Cleanup completed")
}
