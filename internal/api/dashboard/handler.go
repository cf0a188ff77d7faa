// Package dashboard provides REST API handlers for the gamification dashboard.
// It exposes the leaderboard, the selected employee's XP and per-user standings.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lawnpro/crew-ops/internal/api/middleware"
	"github.com/lawnpro/crew-ops/internal/service/leaderboard"
	"github.com/lawnpro/crew-ops/internal/service/quests"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

// XPService interface for XP lookups.
type XPService interface {
	GetUserXP(ctx context.Context, email string) (*quests.XPSummary, error)
}

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, period string, limit int) ([]leaderboard.Entry, error)
	GetUserStats(ctx context.Context, email string) (*leaderboard.UserStats, error)
}

// Handler handles dashboard API requests.
type Handler struct {
	xpService          XPService
	leaderboardService LeaderboardService
	log                *logger.Logger
}

// NewHandler creates a new dashboard handler.
func NewHandler(questService *quests.Service, leaderboardService *leaderboard.Service, log *logger.Logger) *Handler {
	return NewHandlerWithInterfaces(questService, leaderboardService, log)
}

// NewHandlerWithInterfaces creates a new dashboard handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(xpService XPService, leaderboardService LeaderboardService, log *logger.Logger) *Handler {
	return &Handler{
		xpService:          xpService,
		leaderboardService: leaderboardService,
		log:                log,
	}
}

// GetLeaderboard returns the XP leaderboard.
// GET /api/v1/leaderboard?period=week&limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	period := c.DefaultQuery("period", leaderboard.PeriodAllTime)
	limit, err := h.parseLimit(c, 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.validatePeriod(period); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboardService.GetLeaderboard(c.Request.Context(), period, limit)
	if err != nil {
		h.log.Error().Err(err).Str("period", period).Msg("Failed to get leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	h.log.Debug().
		Str("period", period).
		Int("limit", limit).
		Int("entries", len(entries)).
		Msg("Retrieved leaderboard")

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"period":        period,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetMyXP returns the selected employee's XP, level and streak.
// GET /api/v1/me/xp.
func (h *Handler) GetMyXP(c *gin.Context) {
	employee := middleware.Employee(c)

	summary, err := h.xpService.GetUserXP(c.Request.Context(), employee.Email)
	if err != nil {
		h.log.Error().Err(err).Str("email", employee.Email).Msg("Failed to get user XP")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve XP")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"xp":           summary.Record,
		"level":        summary.Level,
		"generated_at": time.Now().UTC(),
	})
}

// GetUserStats returns a user's rank and XP in every leaderboard period.
// GET /api/v1/users/:email/stats.
func (h *Handler) GetUserStats(c *gin.Context) {
	email := strings.ToLower(strings.TrimSpace(c.Param("email")))
	if email == "" {
		h.errorResponse(c, http.StatusBadRequest, "email parameter is required")
		return
	}

	stats, err := h.leaderboardService.GetUserStats(c.Request.Context(), email)
	if err != nil {
		h.log.Error().Err(err).Str("email", email).Msg("Failed to get user stats")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve user statistics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":        stats,
		"generated_at": time.Now().UTC(),
	})
}

// Helper functions

// parseLimit extracts and validates the limit query parameter.
func (h *Handler) parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}

	if limit > 1000 {
		return 0, fmt.Errorf("limit cannot exceed 1000")
	}

	return limit, nil
}

// validatePeriod validates the period parameter.
func (h *Handler) validatePeriod(period string) error {
	if !leaderboard.ValidPeriod(period) {
		return fmt.Errorf("invalid period: %s (valid: %s)", period, strings.Join(leaderboard.Periods, ", "))
	}
	return nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
