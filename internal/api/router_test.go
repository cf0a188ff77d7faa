//nolint:noctx // Test file uses http.NewRequest for simplicity
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnpro/crew-ops/internal/api/dashboard"
	employeesapi "github.com/lawnpro/crew-ops/internal/api/employees"
	"github.com/lawnpro/crew-ops/internal/api/middleware"
	proceduresapi "github.com/lawnpro/crew-ops/internal/api/procedures"
	quickbooksapi "github.com/lawnpro/crew-ops/internal/api/quickbooks"
	questsapi "github.com/lawnpro/crew-ops/internal/api/quests"
	"github.com/lawnpro/crew-ops/internal/config"
	"github.com/lawnpro/crew-ops/internal/quickbooks"
	"github.com/lawnpro/crew-ops/internal/repository"
	"github.com/lawnpro/crew-ops/internal/service/employees"
	"github.com/lawnpro/crew-ops/internal/service/leaderboard"
	"github.com/lawnpro/crew-ops/internal/service/procedures"
	"github.com/lawnpro/crew-ops/internal/service/quests"
	"github.com/lawnpro/crew-ops/pkg/logger"
	"github.com/lawnpro/crew-ops/test/mocks"
)

type stubLLM struct{}

func (stubLLM) Generate(context.Context, string) (string, error) {
	return "<h1>Trim hedges</h1><ol><li>Check blades</li></ol>", nil
}

func (stubLLM) IsModelAvailable(context.Context) error { return nil }

func (stubLLM) Model() string { return "stub" }

func setupRouter(t *testing.T, health map[string]HealthChecker) http.Handler {
	t.Helper()
	log := logger.Nop()

	db, err := repository.NewSQLiteDB(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	lb := leaderboard.NewService(
		repository.NewXPRepository(db),
		repository.NewCompletionRepository(db),
		mocks.NewMockCache(), time.Minute, time.UTC, log,
	)
	questService := quests.NewService(db, nil, lb, time.UTC, log)
	employeeService := employees.NewService(repository.NewEmployeeRepository(db), questService, log)
	_, err = employeeService.SyncFromConfig(context.Background(), []config.EmployeeConfig{
		{Email: "olive@example.com", Name: "Olive", Role: "owner"},
		{Email: "sam@example.com", Name: "Sam", Role: "crew"},
	})
	require.NoError(t, err)

	procedureService := procedures.NewService(repository.NewProcedureRepository(db), stubLLM{}, "Green Acres", log)
	qb := quickbooks.NewClient(&config.QuickBooksConfig{}, repository.NewQuickBooksRepository(db), log)

	return NewRouter(Handlers{
		Dashboard:  dashboard.NewHandler(questService, lb, log),
		Employees:  employeesapi.NewHandler(employeeService, log),
		Quests:     questsapi.NewHandler(questService, log),
		Procedures: proceduresapi.NewHandler(procedureService, log),
		QuickBooks: quickbooksapi.NewHandler(qb, log),
	}, Options{
		Identity:    employeeService,
		MetricsPath: "/metrics",
		Health:      health,
	}, log)
}

func do(router http.Handler, method, path, email, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		req.Header.Set(middleware.HeaderEmployee, email)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	healthy := setupRouter(t, map[string]HealthChecker{
		"database": func(context.Context) error { return nil },
	})
	w := do(healthy, "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	unhealthy := setupRouter(t, map[string]HealthChecker{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w = do(unhealthy, "GET", "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupRouter(t, nil)

	w := do(router, "GET", "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRoutes_Access(t *testing.T) {
	router := setupRouter(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		email  string
		body   string
		status int
	}{
		{name: "employees are public", method: "GET", path: "/api/v1/employees", status: http.StatusOK},
		{name: "select employee", method: "GET", path: "/api/v1/employees/sam@example.com", status: http.StatusOK},
		{name: "leaderboard is public", method: "GET", path: "/api/v1/leaderboard?period=week", status: http.StatusOK},
		{name: "board needs identity", method: "GET", path: "/api/v1/quests/board", status: http.StatusUnauthorized},
		{name: "board for crew", method: "GET", path: "/api/v1/quests/board", email: "sam@example.com", status: http.StatusOK},
		{name: "my xp", method: "GET", path: "/api/v1/me/xp", email: "sam@example.com", status: http.StatusOK},
		{name: "unknown employee", method: "GET", path: "/api/v1/me/xp", email: "ghost@example.com", status: http.StatusForbidden},
		{name: "crew cannot list quests", method: "GET", path: "/api/v1/quests", email: "sam@example.com", status: http.StatusForbidden},
		{name: "owner lists quests", method: "GET", path: "/api/v1/quests", email: "olive@example.com", status: http.StatusOK},
		{name: "crew cannot generate", method: "POST", path: "/api/v1/procedures", email: "sam@example.com", body: `{"task":"x"}`, status: http.StatusForbidden},
		{name: "owner generates", method: "POST", path: "/api/v1/procedures", email: "olive@example.com", body: `{"task":"Trim hedges"}`, status: http.StatusCreated},
		{name: "crew lists procedures", method: "GET", path: "/api/v1/procedures", email: "sam@example.com", status: http.StatusOK},
		{name: "quickbooks not configured", method: "GET", path: "/api/v1/quickbooks/connect", email: "olive@example.com", status: http.StatusServiceUnavailable},
		{name: "quickbooks status", method: "GET", path: "/api/v1/quickbooks/status", email: "sam@example.com", status: http.StatusOK},
		{name: "callback without identity", method: "GET", path: "/api/v1/quickbooks/callback?state=nope", status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, tt.method, tt.path, tt.email, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestRoutes_QuestLifecycle(t *testing.T) {
	router := setupRouter(t, nil)

	w := do(router, "POST", "/api/v1/quests", "olive@example.com", `{"title":"Blow off walks","type":"daily","xp":600}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Quest struct {
			ID string `json:"id"`
		} `json:"quest"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(router, "POST", "/api/v1/quests/"+created.Quest.ID+"/complete", "sam@example.com", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"leveled_up":true`)

	w = do(router, "GET", "/api/v1/leaderboard?period=week", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sam@example.com")
}

func TestWithCORS(t *testing.T) {
	router := setupRouter(t, nil)

	assert.Equal(t, router, WithCORS(router, nil))

	handler := WithCORS(router, []string{"http://board.local"})

	req, _ := http.NewRequest(http.MethodOptions, "/api/v1/quests/board", http.NoBody)
	req.Header.Set("Origin", "http://board.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", middleware.HeaderEmployee)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "http://board.local", w.Header().Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodGet, "/api/v1/employees", http.NoBody)
	req.Header.Set("Origin", "http://evil.local")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
