// Package quests provides REST API handlers for the quest board and owner-mode
// quest administration.
package quests

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lawnpro/crew-ops/internal/api/middleware"
	"github.com/lawnpro/crew-ops/internal/models"
	questsvc "github.com/lawnpro/crew-ops/internal/service/quests"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

// QuestService interface for quest board operations.
type QuestService interface {
	Board(ctx context.Context, userEmail string) (*questsvc.Board, error)
	CompleteQuest(ctx context.Context, questID, userEmail, userName string) (*questsvc.CompletionResult, error)
	ListQuests() ([]models.Quest, error)
	GetQuest(id string) (*models.Quest, error)
	QuestCompletions(id string) (*questsvc.QuestHistory, error)
	CreateQuest(ctx context.Context, in questsvc.QuestInput, actor string) (*models.Quest, error)
	UpdateQuest(ctx context.Context, id string, in questsvc.QuestInput, actor string) (*models.Quest, error)
	SetQuestActive(ctx context.Context, id string, active bool, actor string) (*models.Quest, error)
	DeleteQuest(ctx context.Context, id, actor string) error
}

// Handler handles quest API requests.
type Handler struct {
	questService QuestService
	log          *logger.Logger
}

// NewHandler creates a new quest handler.
func NewHandler(questService QuestService, log *logger.Logger) *Handler {
	return &Handler{
		questService: questService,
		log:          log,
	}
}

// GetBoard returns the quest board for the selected employee.
// GET /api/v1/quests/board.
func (h *Handler) GetBoard(c *gin.Context) {
	employee := middleware.Employee(c)

	board, err := h.questService.Board(c.Request.Context(), employee.Email)
	if err != nil {
		h.log.Error().Err(err).Str("email", employee.Email).Msg("Failed to build quest board")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve quest board")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"today":        board.Today,
		"quests":       board.Quests,
		"total_quests": len(board.Quests),
		"generated_at": time.Now().UTC(),
	})
}

// CompleteQuest marks a quest done for the selected employee.
// POST /api/v1/quests/:id/complete.
func (h *Handler) CompleteQuest(c *gin.Context) {
	employee := middleware.Employee(c)
	questID := c.Param("id")

	result, err := h.questService.CompleteQuest(c.Request.Context(), questID, employee.Email, employee.Name)
	if err != nil {
		h.handleError(c, err, "Failed to complete quest")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"completion":     result.Completion,
		"xp":             result.XP,
		"level":          result.Level,
		"previous_level": result.PreviousLevel,
		"leveled_up":     result.LeveledUp,
		"generated_at":   time.Now().UTC(),
	})
}

// ListQuests returns every quest including inactive ones.
// GET /api/v1/quests.
func (h *Handler) ListQuests(c *gin.Context) {
	quests, err := h.questService.ListQuests()
	if err != nil {
		h.handleError(c, err, "Failed to list quests")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quests":       quests,
		"total_quests": len(quests),
		"generated_at": time.Now().UTC(),
	})
}

// GetQuest returns one quest.
// GET /api/v1/quests/:id.
func (h *Handler) GetQuest(c *gin.Context) {
	quest, err := h.questService.GetQuest(c.Param("id"))
	if err != nil {
		h.handleError(c, err, "Failed to get quest")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quest":        quest,
		"generated_at": time.Now().UTC(),
	})
}

// ListQuestCompletions returns the completion log of one quest.
// GET /api/v1/quests/:id/completions.
func (h *Handler) ListQuestCompletions(c *gin.Context) {
	history, err := h.questService.QuestCompletions(c.Param("id"))
	if err != nil {
		h.handleError(c, err, "Failed to get quest completions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quest":             history.Quest,
		"completions":       history.Completions,
		"total_completions": len(history.Completions),
		"awarded_xp":        history.AwardedXP,
		"generated_at":      time.Now().UTC(),
	})
}

// CreateQuest adds a quest.
// POST /api/v1/quests.
func (h *Handler) CreateQuest(c *gin.Context) {
	var in questsvc.QuestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	quest, err := h.questService.CreateQuest(c.Request.Context(), in, middleware.Employee(c).Email)
	if err != nil {
		h.handleError(c, err, "Failed to create quest")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"quest":        quest,
		"generated_at": time.Now().UTC(),
	})
}

// UpdateQuest replaces a quest's editable fields.
// PUT /api/v1/quests/:id.
func (h *Handler) UpdateQuest(c *gin.Context) {
	var in questsvc.QuestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	quest, err := h.questService.UpdateQuest(c.Request.Context(), c.Param("id"), in, middleware.Employee(c).Email)
	if err != nil {
		h.handleError(c, err, "Failed to update quest")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quest":        quest,
		"generated_at": time.Now().UTC(),
	})
}

type activeRequest struct {
	Active *bool `json:"active"`
}

// SetQuestActive shows or hides a quest.
// PATCH /api/v1/quests/:id/active.
func (h *Handler) SetQuestActive(c *gin.Context) {
	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		h.errorResponse(c, http.StatusBadRequest, "active is required")
		return
	}

	quest, err := h.questService.SetQuestActive(c.Request.Context(), c.Param("id"), *req.Active, middleware.Employee(c).Email)
	if err != nil {
		h.handleError(c, err, "Failed to update quest")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quest":        quest,
		"generated_at": time.Now().UTC(),
	})
}

// DeleteQuest removes a quest.
// DELETE /api/v1/quests/:id.
func (h *Handler) DeleteQuest(c *gin.Context) {
	id := c.Param("id")
	if err := h.questService.DeleteQuest(c.Request.Context(), id, middleware.Employee(c).Email); err != nil {
		h.handleError(c, err, "Failed to delete quest")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted":      id,
		"generated_at": time.Now().UTC(),
	})
}

// handleError maps service errors to HTTP responses.
func (h *Handler) handleError(c *gin.Context, err error, message string) {
	var validationErr *questsvc.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.errorResponse(c, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, questsvc.ErrQuestNotFound):
		h.errorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, questsvc.ErrQuestUnavailable):
		h.errorResponse(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, questsvc.ErrAlreadyCompleted):
		h.errorResponse(c, http.StatusConflict, err.Error())
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		h.errorResponse(c, http.StatusInternalServerError, message)
	}
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
