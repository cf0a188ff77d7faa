// Package middleware provides gin middleware for crew identity and request logging.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lawnpro/crew-ops/internal/models"
	"github.com/lawnpro/crew-ops/internal/service/employees"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

// HeaderEmployee carries the email of the employee selected in the UI.
const HeaderEmployee = "X-Employee-Email"

const employeeKey = "crewops.employee"

// EmployeeLookup resolves a selected employee.
type EmployeeLookup interface {
	Get(ctx context.Context, email string) (*models.Employee, error)
}

// Identity resolves the employee named by the X-Employee-Email header. It is
// a selection, not authentication: any active employee may be chosen.
func Identity(lookup EmployeeLookup, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := strings.TrimSpace(c.GetHeader(HeaderEmployee))
		if email == "" {
			abort(c, http.StatusUnauthorized, "select an employee first")
			return
		}

		employee, err := lookup.Get(c.Request.Context(), email)
		if errors.Is(err, employees.ErrEmployeeNotFound) {
			abort(c, http.StatusForbidden, "unknown employee")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("email", email).Msg("Failed to resolve employee")
			abort(c, http.StatusInternalServerError, "Failed to resolve employee")
			return
		}

		c.Set(employeeKey, employee)
		c.Next()
	}
}

// RequireOwner rejects employees without the owner role. It must run after Identity.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		employee := Employee(c)
		if employee == nil || !employee.IsOwner() {
			abort(c, http.StatusForbidden, "owner mode required")
			return
		}
		c.Next()
	}
}

// Employee returns the employee resolved by Identity, or nil.
func Employee(c *gin.Context) *models.Employee {
	v, ok := c.Get(employeeKey)
	if !ok {
		return nil
	}
	employee, _ := v.(*models.Employee)
	return employee
}

// RequestLogger logs each request once it completes.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Debug()
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("employee", c.GetHeader(HeaderEmployee)).
			Msg("HTTP request")
	}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
