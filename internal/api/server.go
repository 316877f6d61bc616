package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bsc-invest-platform/internal/auth"
	"bsc-invest-platform/internal/cache"
	"bsc-invest-platform/internal/database"
	"bsc-invest-platform/internal/ledger"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	CronSecret     string
}

// Server represents the HTTP API server
type Server struct {
	router         *gin.Engine
	httpServer     *http.Server
	config         ServerConfig
	repo           *database.Repository
	withdrawals    *ledger.WithdrawalService
	distributor    *ledger.Distributor
	authService    *auth.Service
	authMiddleware *auth.Middleware
	cacheService   *cache.CacheService
	rateLimiter    *RateLimiter
	logger         zerolog.Logger
}

// NewServer creates a new API server. cacheService may be nil when Redis is
// disabled; dashboard reads then go straight to the database.
func NewServer(
	config ServerConfig,
	repo *database.Repository,
	withdrawals *ledger.WithdrawalService,
	distributor *ledger.Distributor,
	authService *auth.Service,
	authMiddleware *auth.Middleware,
	cacheService *cache.CacheService,
	logger zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:         router,
		config:         config,
		repo:           repo,
		withdrawals:    withdrawals,
		distributor:    distributor,
		authService:    authService,
		authMiddleware: authMiddleware,
		cacheService:   cacheService,
		rateLimiter:    NewRateLimiter(120, time.Minute),
		logger:         logger.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()

	return server
}

// rateLimitMiddleware rate limits requests by endpoint path
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !s.rateLimiter.Allow(path) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   true,
				"message": "rate limit exceeded",
				"path":    path,
			})
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	// Auth routes (public)
	authHandlers := auth.NewHandlers(s.authService)
	authHandlers.RegisterRoutes(s.router.Group("/api/auth"), s.authMiddleware)

	// Cron trigger, guarded by a shared secret rather than a user token
	s.router.GET("/api/cron/distribute-profits", s.requireCronSecret(), s.handleDistributeProfits)
	s.router.POST("/api/cron/distribute-profits", s.requireCronSecret(), s.handleDistributeProfits)

	// Authenticated API routes
	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	api.Use(s.authMiddleware.RequireAuth())
	{
		api.POST("/withdraw", s.handleSubmitWithdrawal)
		api.PUT("/withdraw", s.authMiddleware.RequireAdmin(), s.handleApproveWithdrawal)
		api.GET("/withdrawals/pending", s.authMiddleware.RequireAdmin(), s.handlePendingWithdrawals)

		api.GET("/wallet", s.handleGetWallet)
		api.GET("/transactions", s.handleGetTransactions)
		api.GET("/plans", s.handleGetPlans)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // approval holds the request across an on-chain transfer
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.repo.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
		})
		return
	}

	resp := gin.H{
		"status":   "healthy",
		"database": "healthy",
	}
	if s.cacheService != nil {
		resp["cache"] = s.cacheService.GetStats()
	}

	c.JSON(http.StatusOK, resp)
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// getUserIDRequired returns the authenticated user's id, or responds 401.
func (s *Server) getUserIDRequired(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := auth.GetUserID(c)
	if !ok {
		errorResponse(c, http.StatusUnauthorized, "authentication required")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, "invalid user identity")
		return uuid.Nil, false
	}
	return userID, true
}
