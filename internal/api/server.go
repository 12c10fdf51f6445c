package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"adaptive-trading-bot/internal/auth"
	"adaptive-trading-bot/internal/bot"
	"adaptive-trading-bot/internal/circuit"
	"adaptive-trading-bot/internal/confluence"
	"adaptive-trading-bot/internal/journal"
	"adaptive-trading-bot/internal/learning"
	"adaptive-trading-bot/internal/logging"
	"adaptive-trading-bot/internal/market"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// EngineAPI is what the HTTP surface needs from the engine
type EngineAPI interface {
	Status() bot.Status
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	OnCandle(ctx context.Context, c market.Candle) error
	LoadHistory(ctx context.Context, batch []market.Candle) int
	Journal(limit int) []journal.Entry
	Memory() map[string]learning.MemoryEntry
	Patterns() map[string]bot.PatternView
	SetVolatilityGuard(on bool)
	SetDevFlags(flags confluence.DevFlags)
	ConfigureCircuitBreaker(update bot.BreakerUpdate) circuit.CircuitBreakerConfig
	ResetCircuitBreaker(ctx context.Context) error
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ProductionMode bool
	MetricsPath    string
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	engine      EngineAPI
	hub         *WSHub
	authService *auth.Service
	metrics     http.Handler
	config      ServerConfig
	logger      *logging.Logger
	startedAt   time.Time
}

// NewServer creates a new API server. authService and metrics may be nil;
// without authService every route is open.
func NewServer(config ServerConfig, engine EngineAPI, hub *WSHub, authService *auth.Service, metrics http.Handler, logger *logging.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = logging.Default()
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware(logger))

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Trace-ID"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "X-Trace-ID"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:      router,
		engine:      engine,
		hub:         hub,
		authService: authService,
		metrics:     metrics,
		config:      config,
		logger:      logger.WithComponent("api"),
		startedAt:   time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET(s.config.MetricsPath, gin.WrapH(s.metrics))
	}
	if s.hub != nil {
		s.router.GET("/ws", s.hub.HandleWebSocket)
	}

	api := s.router.Group("/api")

	if s.authService != nil {
		api.POST("/auth/login", auth.NewHandlers(s.authService).Login)
	}

	// Read-only views
	api.GET("/status", s.handleStatus)
	api.GET("/journal", s.handleJournal)
	api.GET("/journal/summary", s.handleJournalSummary)
	api.GET("/brain", s.handleBrain)
	api.GET("/patterns", s.handlePatterns)

	// Mutating routes
	control := api.Group("")
	if s.authService != nil {
		control.Use(auth.Middleware(s.authService.GetJWTManager()), auth.RequireAdmin())
	}
	control.POST("/bot/start", s.handleStart)
	control.POST("/bot/stop", s.handleStop)
	control.POST("/candles", s.handleCandles)
	control.PUT("/volatility-guard", s.handleVolatilityGuard)
	control.PUT("/dev-flags", s.handleDevFlags)
	control.PUT("/circuit-breaker", s.handleCircuitBreaker)
	control.POST("/circuit-breaker/reset", s.handleCircuitBreakerReset)
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
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
