// Package quickbooks provides REST API handlers for the QuickBooks Online connection.
package quickbooks

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lawnpro/crew-ops/internal/api/middleware"
	"github.com/lawnpro/crew-ops/internal/models"
	qbo "github.com/lawnpro/crew-ops/internal/quickbooks"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

// Client interface for QuickBooks operations.
type Client interface {
	AuthURL(ctx context.Context, requestedBy string) (string, error)
	HandleCallback(ctx context.Context, code, state, realmID string) (*models.QuickBooksConnection, error)
	Status(ctx context.Context) (*qbo.Status, error)
	Vehicles(ctx context.Context) ([]qbo.Vehicle, error)
}

// Handler handles QuickBooks API requests.
type Handler struct {
	client Client
	log    *logger.Logger
}

// NewHandler creates a new QuickBooks handler.
func NewHandler(client Client, log *logger.Logger) *Handler {
	return &Handler{
		client: client,
		log:    log,
	}
}

// Connect starts the OAuth flow. Browsers are redirected to Intuit; JSON
// clients receive the consent URL.
// GET /api/v1/quickbooks/connect.
func (h *Handler) Connect(c *gin.Context) {
	authURL, err := h.client.AuthURL(c.Request.Context(), middleware.Employee(c).Email)
	if err != nil {
		h.handleError(c, err, "Failed to start QuickBooks authorization")
		return
	}

	if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML {
		c.Redirect(http.StatusFound, authURL)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auth_url":     authURL,
		"generated_at": time.Now().UTC(),
	})
}

// Callback completes the OAuth flow.
// GET /api/v1/quickbooks/callback?code=&state=&realmId=.
func (h *Handler) Callback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		h.log.Warn().Str("reason", reason).Msg("QuickBooks authorization declined")
		h.errorResponse(c, http.StatusBadRequest, "authorization declined: "+reason)
		return
	}

	conn, err := h.client.HandleCallback(c.Request.Context(), c.Query("code"), c.Query("state"), c.Query("realmId"))
	if err != nil {
		h.handleError(c, err, "Failed to complete QuickBooks authorization")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":    true,
		"realm_id":     conn.RealmID,
		"generated_at": time.Now().UTC(),
	})
}

// GetStatus reports the connection state.
// GET /api/v1/quickbooks/status.
func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.client.Status(c.Request.Context())
	if err != nil {
		h.handleError(c, err, "Failed to get QuickBooks status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"generated_at": time.Now().UTC(),
	})
}

// GetVehicles lists the company's vehicles.
// GET /api/v1/quickbooks/vehicles.
func (h *Handler) GetVehicles(c *gin.Context) {
	vehicles, err := h.client.Vehicles(c.Request.Context())
	if err != nil {
		h.handleError(c, err, "Failed to fetch vehicles")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vehicles":       vehicles,
		"total_vehicles": len(vehicles),
		"generated_at":   time.Now().UTC(),
	})
}

// handleError maps client errors to HTTP responses.
func (h *Handler) handleError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, qbo.ErrNotConfigured):
		h.errorResponse(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, qbo.ErrNotConnected):
		h.errorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, qbo.ErrInvalidState), errors.Is(err, qbo.ErrMissingRealm):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		h.errorResponse(c, http.StatusBadGateway, message)
	}
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
