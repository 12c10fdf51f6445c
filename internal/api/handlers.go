package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"adaptive-trading-bot/internal/bot"
	"adaptive-trading-bot/internal/confluence"
	"adaptive-trading-bot/internal/events"
	"adaptive-trading-bot/internal/journal"
	"adaptive-trading-bot/internal/logging"
	"adaptive-trading-bot/internal/market"

	"github.com/gin-gonic/gin"
)

const (
	defaultJournalLimit = 100
	maxCandleBody       = 4 << 20
)

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	st := s.engine.Status()
	clients := 0
	if s.hub != nil {
		clients = s.hub.GetClientCount()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"running":    st.Running,
		"candles":    st.Candles,
		"ws_clients": clients,
		"uptime":     time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleStatus returns the engine snapshot
// GET /api/status
func (s *Server) handleStatus(c *gin.Context) {
	successResponse(c, s.engine.Status())
}

// handleStart enables trading
// POST /api/bot/start
func (s *Server) handleStart(c *gin.Context) {
	if err := s.engine.Start(c.Request.Context()); err != nil {
		logging.FromContext(c.Request.Context()).Error("Start failed", "error", err.Error())
		errorResponse(c, http.StatusInternalServerError, "engine started but state was not persisted: "+err.Error())
		return
	}
	successResponse(c, gin.H{"running": true})
}

// handleStop disables trading. An open position stays open.
// POST /api/bot/stop
func (s *Server) handleStop(c *gin.Context) {
	if err := s.engine.Stop(c.Request.Context()); err != nil {
		logging.FromContext(c.Request.Context()).Error("Stop failed", "error", err.Error())
		errorResponse(c, http.StatusInternalServerError, "engine stopped but state was not persisted: "+err.Error())
		return
	}
	successResponse(c, gin.H{"running": false})
}

// handleCandles ingests a live candle (object) or a history batch (array)
// POST /api/candles
func (s *Server) handleCandles(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCandleBody))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "failed to read body")
		return
	}

	candles, batch, err := events.DecodeCandles(body)
	if err != nil || len(candles) == 0 {
		errorResponse(c, http.StatusBadRequest, "expected a candle object or an array of candles")
		return
	}

	ctx := c.Request.Context()
	if batch {
		kept := s.engine.LoadHistory(ctx, candles)
		successResponse(c, gin.H{"received": len(candles), "candles": kept})
		return
	}

	if err := s.engine.OnCandle(ctx, candles[0]); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, market.ErrInvalidCandle) {
			status = http.StatusBadRequest
		}
		errorResponse(c, status, err.Error())
		return
	}
	successResponse(c, s.engine.Status())
}

// handleJournal returns recent trades, oldest first
// GET /api/journal?limit=N
func (s *Server) handleJournal(c *gin.Context) {
	limit := defaultJournalLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errorResponse(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	successResponse(c, s.engine.Journal(limit))
}

// handleJournalSummary aggregates the whole journal
// GET /api/journal/summary
func (s *Server) handleJournalSummary(c *gin.Context) {
	successResponse(c, journal.Summarize(s.engine.Journal(0)))
}

// handleBrain returns the market memory table
// GET /api/brain
func (s *Server) handleBrain(c *gin.Context) {
	successResponse(c, s.engine.Memory())
}

// handlePatterns returns pattern stats with current ranks
// GET /api/patterns
func (s *Server) handlePatterns(c *gin.Context) {
	successResponse(c, s.engine.Patterns())
}

// handleCircuitBreaker changes the breaker limits or switches it on/off
// PUT /api/circuit-breaker
func (s *Server) handleCircuitBreaker(c *gin.Context) {
	var req bot.BreakerUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	successResponse(c, s.engine.ConfigureCircuitBreaker(req))
}

// handleCircuitBreakerReset closes a tripped breaker
// POST /api/circuit-breaker/reset
func (s *Server) handleCircuitBreakerReset(c *gin.Context) {
	if err := s.engine.ResetCircuitBreaker(c.Request.Context()); err != nil {
		logging.FromContext(c.Request.Context()).Error("Breaker reset failed", "error", err.Error())
		errorResponse(c, http.StatusInternalServerError, "breaker reset but state was not persisted: "+err.Error())
		return
	}
	successResponse(c, s.engine.Status().Breaker)
}

type volatilityGuardRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// handleVolatilityGuard toggles the wide-stop override
// PUT /api/volatility-guard
func (s *Server) handleVolatilityGuard(c *gin.Context) {
	var req volatilityGuardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	s.engine.SetVolatilityGuard(*req.Enabled)
	successResponse(c, gin.H{"volatility_guard": *req.Enabled})
}

// handleDevFlags replaces the gate bypass flags
// PUT /api/dev-flags
func (s *Server) handleDevFlags(c *gin.Context) {
	var flags confluence.DevFlags
	if err := c.ShouldBindJSON(&flags); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	s.engine.SetDevFlags(flags)
	successResponse(c, flags)
}
