// Package api assembles the HTTP routes of the crew operations service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/lawnpro/crew-ops/internal/api/dashboard"
	employeesapi "github.com/lawnpro/crew-ops/internal/api/employees"
	"github.com/lawnpro/crew-ops/internal/api/middleware"
	proceduresapi "github.com/lawnpro/crew-ops/internal/api/procedures"
	quickbooksapi "github.com/lawnpro/crew-ops/internal/api/quickbooks"
	questsapi "github.com/lawnpro/crew-ops/internal/api/quests"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(ctx context.Context) error

// Handlers are the route handlers to mount. Procedures and QuickBooks are
// optional.
type Handlers struct {
	Dashboard  *dashboard.Handler
	Employees  *employeesapi.Handler
	Quests     *questsapi.Handler
	Procedures *proceduresapi.Handler
	QuickBooks *quickbooksapi.Handler
}

// Options configures the router.
type Options struct {
	Identity    middleware.EmployeeLookup
	MetricsPath string
	Health      map[string]HealthChecker
	Debug       bool
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(h Handlers, opts Options, log *logger.Logger) *gin.Engine {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))

	router.GET("/health", healthHandler(opts.Health))
	if opts.MetricsPath != "" {
		router.GET(opts.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/api/v1")

	// Identity selection happens before an employee is chosen.
	v1.GET("/employees", h.Employees.ListEmployees)
	v1.GET("/employees/:email", h.Employees.SelectEmployee)
	v1.GET("/leaderboard", h.Dashboard.GetLeaderboard)
	v1.GET("/users/:email/stats", h.Dashboard.GetUserStats)

	if h.QuickBooks != nil {
		// Intuit redirects the browser here without the identity header.
		v1.GET("/quickbooks/callback", h.QuickBooks.Callback)
	}

	crew := v1.Group("", middleware.Identity(opts.Identity, log))
	crew.GET("/me/xp", h.Dashboard.GetMyXP)
	crew.GET("/quests/board", h.Quests.GetBoard)
	crew.POST("/quests/:id/complete", h.Quests.CompleteQuest)

	owner := crew.Group("", middleware.RequireOwner())
	owner.GET("/quests", h.Quests.ListQuests)
	owner.GET("/quests/:id", h.Quests.GetQuest)
	owner.GET("/quests/:id/completions", h.Quests.ListQuestCompletions)
	owner.POST("/quests", h.Quests.CreateQuest)
	owner.PUT("/quests/:id", h.Quests.UpdateQuest)
	owner.PATCH("/quests/:id/active", h.Quests.SetQuestActive)
	owner.DELETE("/quests/:id", h.Quests.DeleteQuest)

	if h.Procedures != nil {
		crew.GET("/procedures", h.Procedures.ListProcedures)
		crew.GET("/procedures/:id", h.Procedures.GetProcedure)
		crew.POST("/procedures/:id/acknowledge", h.Procedures.AcknowledgeProcedure)
		owner.POST("/procedures", h.Procedures.GenerateProcedure)
		owner.DELETE("/procedures/:id", h.Procedures.DeleteProcedure)
	}

	if h.QuickBooks != nil {
		owner.GET("/quickbooks/connect", h.QuickBooks.Connect)
		crew.GET("/quickbooks/status", h.QuickBooks.GetStatus)
		crew.GET("/quickbooks/vehicles", h.QuickBooks.GetVehicles)
	}

	return router
}

// WithCORS lets the listed browser origins call the API. With no origins the
// router is returned unchanged.
func WithCORS(router http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		return router
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Accept", middleware.HeaderEmployee},
		AllowCredentials: true,
	}).Handler(router)
}

func healthHandler(checks map[string]HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "healthy"
		if status != http.StatusOK {
			state = "unhealthy"
		}
		c.JSON(status, gin.H{
			"status":       state,
			"checks":       results,
			"generated_at": time.Now().UTC(),
		})
	}
}
