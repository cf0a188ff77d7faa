package quickbooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnpro/crew-ops/internal/config"
	"github.com/lawnpro/crew-ops/internal/repository"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

// fakeIntuit serves the token endpoint and the accounting query API.
type fakeIntuit struct {
	mu        sync.Mutex
	grants    []string
	queries   []string
	auth      []string
	nextToken string
	vehicles  string
	queryCode int
}

func (f *fakeIntuit) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		f.grants = append(f.grants, r.PostForm.Get("grant_type"))
		token := f.nextToken
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  token,
			"refresh_token": "refresh-" + token,
			"token_type":    "bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/v3/company/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.queries = append(f.queries, r.URL.RawQuery)
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		code := f.queryCode
		body := f.vehicles
		f.mu.Unlock()

		if code != 0 {
			http.Error(w, `{"Fault":{"type":"AUTHENTICATION"}}`, code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	return mux
}

type testEnv struct {
	client *Client
	repo   *repository.QuickBooksRepository
	intuit *fakeIntuit
	now    time.Time
}

func setupClient(t *testing.T, configured bool) *testEnv {
	t.Helper()

	db, err := repository.NewSQLiteDB(":memory:", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	intuit := &fakeIntuit{nextToken: "access-1"}
	server := httptest.NewServer(intuit.handler())
	t.Cleanup(server.Close)

	cfg := &config.QuickBooksConfig{
		RedirectURL:  "http://crew.local/api/v1/quickbooks/callback",
		AuthURL:      server.URL + "/oauth2/authorize",
		TokenURL:     server.URL + "/oauth2/token",
		APIBaseURL:   server.URL,
		MinorVersion: 75,
		StateTTL:     60,
	}
	if configured {
		cfg.ClientID = "client"
		cfg.ClientSecret = "secret"
	}

	env := &testEnv{
		repo:   repository.NewQuickBooksRepository(db),
		intuit: intuit,
		now:    time.Now(),
	}
	env.client = NewClientWithStore(cfg, env.repo, server.Client(), logger.Nop())
	env.client.SetClock(func() time.Time { return env.now })
	return env
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func connect(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()
	authURL, err := env.client.AuthURL(ctx, "owner@example.com")
	require.NoError(t, err)
	_, err = env.client.HandleCallback(ctx, "code-1", stateFrom(t, authURL), "realm-42")
	require.NoError(t, err)
}

func TestAuthURL(t *testing.T) {
	env := setupClient(t, true)

	authURL, err := env.client.AuthURL(context.Background(), "owner@example.com")
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "client", u.Query().Get("client_id"))
	assert.Equal(t, accountingScope, u.Query().Get("scope"))
	assert.Equal(t, "code", u.Query().Get("response_type"))
	assert.NotEmpty(t, u.Query().Get("state"))
}

func TestNotConfigured(t *testing.T) {
	env := setupClient(t, false)
	ctx := context.Background()

	_, err := env.client.AuthURL(ctx, "o")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = env.client.Vehicles(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)

	status, err := env.client.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Configured)
	assert.False(t, status.Connected)
}

func TestHandleCallback(t *testing.T) {
	env := setupClient(t, true)
	ctx := context.Background()

	authURL, err := env.client.AuthURL(ctx, "owner@example.com")
	require.NoError(t, err)
	state := stateFrom(t, authURL)

	conn, err := env.client.HandleCallback(ctx, "code-1", state, "realm-42")
	require.NoError(t, err)
	assert.Equal(t, "realm-42", conn.RealmID)
	assert.Equal(t, "access-1", conn.AccessToken)
	assert.Equal(t, "owner@example.com", conn.ConnectedBy)
	assert.Equal(t, []string{"authorization_code"}, env.intuit.grants)

	// States are single use.
	_, err = env.client.HandleCallback(ctx, "code-1", state, "realm-42")
	assert.ErrorIs(t, err, ErrInvalidState)

	status, err := env.client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, "realm-42", status.RealmID)
}

func TestHandleCallback_InvalidState(t *testing.T) {
	env := setupClient(t, true)
	ctx := context.Background()

	_, err := env.client.HandleCallback(ctx, "code", "", "realm")
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = env.client.HandleCallback(ctx, "code", "unknown", "realm")
	assert.ErrorIs(t, err, ErrInvalidState)

	authURL, err := env.client.AuthURL(ctx, "o")
	require.NoError(t, err)
	env.now = env.now.Add(2 * time.Minute)
	_, err = env.client.HandleCallback(ctx, "code", stateFrom(t, authURL), "realm")
	assert.ErrorIs(t, err, ErrInvalidState)

	authURL, err = env.client.AuthURL(ctx, "o")
	require.NoError(t, err)
	_, err = env.client.HandleCallback(ctx, "code", stateFrom(t, authURL), "")
	assert.ErrorIs(t, err, ErrMissingRealm)
	assert.Empty(t, env.intuit.grants)
}

func TestPurgeExpiredStates(t *testing.T) {
	env := setupClient(t, true)
	ctx := context.Background()

	_, err := env.client.AuthURL(ctx, "o")
	require.NoError(t, err)

	n, err := env.client.PurgeExpiredStates(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	env.now = env.now.Add(time.Hour)
	n, err = env.client.PurgeExpiredStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestVehicles(t *testing.T) {
	env := setupClient(t, true)
	env.intuit.vehicles = `{"QueryResponse":{"Vehicle":[
		{"Id":"1","Name":"Truck 1","Active":true,"Plate":"LAWN-1"},
		{"Id":"2","DisplayName":"Trailer","Active":false}
	],"startPosition":1,"maxResults":2}}`
	connect(t, env)

	vehicles, err := env.client.Vehicles(context.Background())
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	assert.Equal(t, "1", vehicles[0].ID)
	assert.Equal(t, "Truck 1", vehicles[0].Name)
	assert.True(t, vehicles[0].Active)
	assert.Equal(t, "LAWN-1", vehicles[0].Fields["Plate"])
	assert.Equal(t, "Trailer", vehicles[1].Name)
	assert.False(t, vehicles[1].Active)

	require.Len(t, env.intuit.queries, 1)
	q, err := url.ParseQuery(env.intuit.queries[0])
	require.NoError(t, err)
	assert.Equal(t, "select * from Vehicle", q.Get("query"))
	assert.Equal(t, "75", q.Get("minorversion"))
	assert.Equal(t, "Bearer access-1", env.intuit.auth[0])
}

func TestVehicles_Empty(t *testing.T) {
	env := setupClient(t, true)
	env.intuit.vehicles = `{"QueryResponse":{}}`
	connect(t, env)

	vehicles, err := env.client.Vehicles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, vehicles)
}

func TestVehicles_NotConnected(t *testing.T) {
	env := setupClient(t, true)

	_, err := env.client.Vehicles(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestVehicles_APIError(t *testing.T) {
	env := setupClient(t, true)
	env.intuit.queryCode = http.StatusUnauthorized
	connect(t, env)

	_, err := env.client.Vehicles(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestVehicles_RefreshesAndPersistsToken(t *testing.T) {
	env := setupClient(t, true)
	env.intuit.vehicles = `{"QueryResponse":{"Vehicle":[]}}`
	connect(t, env)

	require.NoError(t, env.repo.UpdateTokens("realm-42", "stale", "refresh-access-1", "bearer", time.Now().Add(-time.Hour)))
	env.intuit.nextToken = "access-2"

	_, err := env.client.Vehicles(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"authorization_code", "refresh_token"}, env.intuit.grants)
	assert.Equal(t, "Bearer access-2", env.intuit.auth[0])

	conn, err := env.repo.GetConnection()
	require.NoError(t, err)
	assert.Equal(t, "access-2", conn.AccessToken)
	assert.Equal(t, "refresh-access-2", conn.RefreshToken)
}

var _ Store = (*repository.QuickBooksRepository)(nil)

func TestToVehicle_Defaults(t *testing.T) {
	v := toVehicle(map[string]any{"FullyQualifiedName": "Mower:Z-Turn"})
	assert.Equal(t, "Mower:Z-Turn", v.Name)
	assert.True(t, v.Active)
	assert.Empty(t, v.ID)
}
