// Package procedures provides REST API handlers for AI-drafted procedures and
// crew acknowledgements.
package procedures

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lawnpro/crew-ops/internal/api/middleware"
	"github.com/lawnpro/crew-ops/internal/models"
	proceduresvc "github.com/lawnpro/crew-ops/internal/service/procedures"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

// ProcedureService interface for procedure operations.
type ProcedureService interface {
	Generate(ctx context.Context, actor string, req proceduresvc.GenerateRequest) (*models.Procedure, error)
	List(ctx context.Context, limit int) ([]models.Procedure, error)
	Get(ctx context.Context, id string) (*models.Procedure, error)
	Markdown(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, id, actor string) error
	Acknowledge(ctx context.Context, id, email, signatureDataURL string) (*models.ProcedureAcknowledgement, error)
}

// Handler handles procedure API requests.
type Handler struct {
	procedureService ProcedureService
	log              *logger.Logger
}

// NewHandler creates a new procedure handler.
func NewHandler(procedureService ProcedureService, log *logger.Logger) *Handler {
	return &Handler{
		procedureService: procedureService,
		log:              log,
	}
}

// GenerateProcedure drafts and stores a procedure.
// POST /api/v1/procedures.
func (h *Handler) GenerateProcedure(c *gin.Context) {
	var req proceduresvc.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	procedure, err := h.procedureService.Generate(c.Request.Context(), middleware.Employee(c).Email, req)
	if err != nil {
		h.handleError(c, err, "Failed to generate procedure")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"procedure":    procedure,
		"generated_at": time.Now().UTC(),
	})
}

// ListProcedures returns recent procedures.
// GET /api/v1/procedures?limit=50.
func (h *Handler) ListProcedures(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			h.errorResponse(c, http.StatusBadRequest, "invalid limit parameter: "+raw)
			return
		}
		limit = n
	}

	list, err := h.procedureService.List(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err, "Failed to list procedures")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"procedures":       list,
		"total_procedures": len(list),
		"generated_at":     time.Now().UTC(),
	})
}

// GetProcedure returns a procedure with its acknowledgements.
// GET /api/v1/procedures/:id.
func (h *Handler) GetProcedure(c *gin.Context) {
	if c.Query("format") == "markdown" {
		h.getMarkdown(c)
		return
	}

	procedure, err := h.procedureService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err, "Failed to get procedure")
		return
	}

	acknowledgedByMe := false
	if employee := middleware.Employee(c); employee != nil {
		for _, ack := range procedure.Acknowledgements {
			if ack.EmployeeEmail == employee.Email {
				acknowledgedByMe = true
				break
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"procedure":          procedure,
		"acknowledged_by_me": acknowledgedByMe,
		"generated_at":       time.Now().UTC(),
	})
}

// getMarkdown serves a procedure as a markdown document.
// GET /api/v1/procedures/:id?format=markdown.
func (h *Handler) getMarkdown(c *gin.Context) {
	out, err := h.procedureService.Markdown(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err, "Failed to render procedure")
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(out))
}

// DeleteProcedure removes a procedure.
// DELETE /api/v1/procedures/:id.
func (h *Handler) DeleteProcedure(c *gin.Context) {
	id := c.Param("id")
	if err := h.procedureService.Delete(c.Request.Context(), id, middleware.Employee(c).Email); err != nil {
		h.handleError(c, err, "Failed to delete procedure")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted":      id,
		"generated_at": time.Now().UTC(),
	})
}

type acknowledgeRequest struct {
	Signature string `json:"signature"`
}

// AcknowledgeProcedure records the selected employee's signature.
// POST /api/v1/procedures/:id/acknowledge.
func (h *Handler) AcknowledgeProcedure(c *gin.Context) {
	var req acknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ack, err := h.procedureService.Acknowledge(c.Request.Context(), c.Param("id"), middleware.Employee(c).Email, req.Signature)
	if err != nil {
		h.handleError(c, err, "Failed to acknowledge procedure")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"acknowledgement": ack,
		"generated_at":    time.Now().UTC(),
	})
}

// handleError maps service errors to HTTP responses.
func (h *Handler) handleError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, proceduresvc.ErrProcedureNotFound):
		h.errorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, proceduresvc.ErrEmptyTask), errors.Is(err, proceduresvc.ErrInvalidSignature):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, proceduresvc.ErrAlreadyAcknowledged):
		h.errorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, proceduresvc.ErrEmptyGeneration):
		h.errorResponse(c, http.StatusBadGateway, err.Error())
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
