// Package employees provides REST API handlers for picking an employee identity.
package employees

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lawnpro/crew-ops/internal/models"
	employeesvc "github.com/lawnpro/crew-ops/internal/service/employees"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

// EmployeeService interface for identity selection.
type EmployeeService interface {
	List(ctx context.Context) ([]models.Employee, error)
	Search(ctx context.Context, query string) ([]models.Employee, error)
	Select(ctx context.Context, email string) (*employeesvc.Selection, error)
}

// Handler handles employee API requests.
type Handler struct {
	employeeService EmployeeService
	log             *logger.Logger
}

// NewHandler creates a new employee handler.
func NewHandler(employeeService EmployeeService, log *logger.Logger) *Handler {
	return &Handler{
		employeeService: employeeService,
		log:             log,
	}
}

// ListEmployees returns the selectable employees, optionally fuzzy-filtered.
// GET /api/v1/employees?q=sam.
func (h *Handler) ListEmployees(c *gin.Context) {
	query := c.Query("q")

	var (
		list []models.Employee
		err  error
	)
	if query == "" {
		list, err = h.employeeService.List(c.Request.Context())
	} else {
		list, err = h.employeeService.Search(c.Request.Context(), query)
	}
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("Failed to list employees")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve employees")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"employees":       list,
		"query":           query,
		"total_employees": len(list),
		"generated_at":    time.Now().UTC(),
	})
}

// SelectEmployee returns an employee with their XP standing.
// GET /api/v1/employees/:email.
func (h *Handler) SelectEmployee(c *gin.Context) {
	email := c.Param("email")

	selection, err := h.employeeService.Select(c.Request.Context(), email)
	if errors.Is(err, employeesvc.ErrEmployeeNotFound) {
		h.errorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("email", email).Msg("Failed to select employee")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve employee")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"employee":     selection.Employee,
		"xp":           selection.XP,
		"generated_at": time.Now().UTC(),
	})
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
