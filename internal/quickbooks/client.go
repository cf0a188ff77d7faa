// Package quickbooks connects to QuickBooks Online over OAuth2 and reads the
// company's vehicle records.
package quickbooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/lawnpro/crew-ops/internal/config"
	"github.com/lawnpro/crew-ops/internal/metrics"
	"github.com/lawnpro/crew-ops/internal/models"
	"github.com/lawnpro/crew-ops/internal/repository"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

// accountingScope grants read access to company data.
const accountingScope = "com.intuit.quickbooks.accounting"

var (
	// ErrNotConfigured is returned when no client credentials are set.
	ErrNotConfigured = errors.New("quickbooks is not configured")
	// ErrNotConnected is returned when no company has been connected yet.
	ErrNotConnected = errors.New("quickbooks is not connected")
	// ErrInvalidState is returned for unknown, reused or expired OAuth states.
	ErrInvalidState = errors.New("invalid or expired oauth state")
	// ErrMissingRealm is returned when the callback carries no company id.
	ErrMissingRealm = errors.New("missing realm id")
)

// Store persists OAuth state and company connections.
type Store interface {
	CreateState(state *models.OAuthState) error
	ConsumeState(value string) (*models.OAuthState, error)
	DeleteExpiredStates(now time.Time) (int64, error)
	SaveConnection(conn *models.QuickBooksConnection) error
	GetConnection() (*models.QuickBooksConnection, error)
	UpdateTokens(realmID, accessToken, refreshToken, tokenType string, expiry time.Time) error
}

// Client talks to QuickBooks Online.
type Client struct {
	oauth        *oauth2.Config
	store        Store
	httpClient   *http.Client
	baseURL      string
	query        string
	entity       string
	minorVersion int
	stateTTL     time.Duration
	configured   bool
	now          func() time.Time
	log          *logger.Logger
}

// NewClient creates a new QuickBooks client backed by the repository.
func NewClient(cfg *config.QuickBooksConfig, repo *repository.QuickBooksRepository, log *logger.Logger) *Client {
	return NewClientWithStore(cfg, repo, &http.Client{Timeout: 30 * time.Second}, log)
}

// NewClientWithStore creates a new QuickBooks client with interface dependencies (useful for testing).
func NewClientWithStore(cfg *config.QuickBooksConfig, store Store, httpClient *http.Client, log *logger.Logger) *Client {
	entity := cfg.VehicleType
	if entity == "" {
		entity = "Vehicle"
	}
	query := cfg.VehicleQuery
	if query == "" {
		query = "select * from " + entity
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{accountingScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		store:        store,
		httpClient:   httpClient,
		baseURL:      cfg.BaseURL(),
		query:        query,
		entity:       entity,
		minorVersion: cfg.MinorVersion,
		stateTTL:     cfg.StateLifetime(),
		configured:   cfg.Enabled(),
		now:          time.Now,
		log:          log,
	}
}

// SetClock replaces the wall clock (for tests).
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// AuthURL starts an authorization request and returns the Intuit consent URL.
//
//nolint:revive // ctx reserved for cancellation once repositories accept it
func (c *Client) AuthURL(ctx context.Context, requestedBy string) (string, error) {
	if !c.configured {
		return "", ErrNotConfigured
	}

	state := &models.OAuthState{
		State:       uuid.NewString(),
		RequestedBy: requestedBy,
		ExpiresAt:   c.now().Add(c.stateTTL),
	}
	if err := c.store.CreateState(state); err != nil {
		return "", err
	}

	return c.oauth.AuthCodeURL(state.State), nil
}

// HandleCallback verifies the state, exchanges the authorization code and
// stores the company connection.
func (c *Client) HandleCallback(ctx context.Context, code, state, realmID string) (*models.QuickBooksConnection, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	if state == "" {
		return nil, ErrInvalidState
	}

	pending, err := c.store.ConsumeState(state)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	if c.now().After(pending.ExpiresAt) {
		return nil, ErrInvalidState
	}
	if realmID == "" {
		return nil, ErrMissingRealm
	}

	token, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		metrics.RecordQuickBooksRequest("token_exchange", "error")
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	metrics.RecordQuickBooksRequest("token_exchange", "success")

	conn := &models.QuickBooksConnection{
		RealmID:      realmID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
		ConnectedBy:  pending.RequestedBy,
	}
	if err := c.store.SaveConnection(conn); err != nil {
		return nil, err
	}

	c.log.Info().
		Str("realm_id", realmID).
		Str("connected_by", pending.RequestedBy).
		Msg("QuickBooks connected")

	return conn, nil
}

// PurgeExpiredStates removes authorization requests that were never completed.
//
//nolint:revive // ctx reserved for cancellation once repositories accept it
func (c *Client) PurgeExpiredStates(ctx context.Context) (int64, error) {
	return c.store.DeleteExpiredStates(c.now())
}

// Status describes the current connection.
type Status struct {
	Configured bool      `json:"configured"`
	Connected  bool      `json:"connected"`
	RealmID    string    `json:"realm_id,omitempty"`
	Expiry     time.Time `json:"token_expiry,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// Status reports whether QuickBooks is configured and connected.
//
//nolint:revive // ctx reserved for cancellation once repositories accept it
func (c *Client) Status(ctx context.Context) (*Status, error) {
	status := &Status{Configured: c.configured}

	conn, err := c.store.GetConnection()
	if err != nil {
		return nil, err
	}
	if conn != nil {
		status.Connected = true
		status.RealmID = conn.RealmID
		status.Expiry = conn.Expiry
		status.UpdatedAt = conn.UpdatedAt
	}
	return status, nil
}

// persistingSource stores refreshed tokens so restarts reuse them.
type persistingSource struct {
	mu      sync.Mutex
	src     oauth2.TokenSource
	realmID string
	current string
	store   Store
	log     *logger.Logger
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	token, err := p.src.Token()
	if err != nil {
		metrics.RecordQuickBooksRequest("token_refresh", "error")
		return nil, err
	}
	if token.AccessToken != p.current {
		metrics.RecordQuickBooksRequest("token_refresh", "success")
		if err := p.store.UpdateTokens(p.realmID, token.AccessToken, token.RefreshToken, token.TokenType, token.Expiry); err != nil {
			p.log.Error().Err(err).Str("realm_id", p.realmID).Msg("Failed to persist refreshed QuickBooks token")
		}
		p.current = token.AccessToken
	}
	return token, nil
}

func (c *Client) apiClient(ctx context.Context) (*http.Client, *models.QuickBooksConnection, error) {
	if !c.configured {
		return nil, nil, ErrNotConfigured
	}

	conn, err := c.store.GetConnection()
	if err != nil {
		return nil, nil, err
	}
	if conn == nil {
		return nil, nil, ErrNotConnected
	}

	ctx = c.oauthContext(ctx)
	token := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		TokenType:    conn.TokenType,
		Expiry:       conn.Expiry,
	}
	src := &persistingSource{
		src:     c.oauth.TokenSource(ctx, token),
		realmID: conn.RealmID,
		current: conn.AccessToken,
		store:   c.store,
		log:     c.log,
	}
	return oauth2.NewClient(ctx, src), conn, nil
}

// Vehicle is one record returned by the vehicle query.
type Vehicle struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Active bool           `json:"active"`
	Fields map[string]any `json:"fields"`
}

// Vehicles runs the configured vehicle query against the connected company.
func (c *Client) Vehicles(ctx context.Context) ([]Vehicle, error) {
	client, conn, err := c.apiClient(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", c.query)
	if c.minorVersion > 0 {
		params.Set("minorversion", strconv.Itoa(c.minorVersion))
	}
	endpoint := fmt.Sprintf("%s/v3/company/%s/query?%s", c.baseURL, url.PathEscape(conn.RealmID), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create query request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		metrics.RecordQuickBooksRequest("query", "error")
		return nil, fmt.Errorf("failed to query quickbooks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordQuickBooksRequest("query", "error")
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("quickbooks query failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		QueryResponse map[string]json.RawMessage `json:"QueryResponse"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.RecordQuickBooksRequest("query", "error")
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	metrics.RecordQuickBooksRequest("query", "success")

	raw, ok := payload.QueryResponse[c.entity]
	if !ok {
		return []Vehicle{}, nil
	}

	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s records: %w", c.entity, err)
	}

	vehicles := make([]Vehicle, 0, len(records))
	for _, r := range records {
		vehicles = append(vehicles, toVehicle(r))
	}

	c.log.Debug().Int("count", len(vehicles)).Str("realm_id", conn.RealmID).Msg("Fetched QuickBooks vehicles")
	return vehicles, nil
}

func toVehicle(r map[string]any) Vehicle {
	v := Vehicle{Active: true, Fields: r}
	if id, ok := r["Id"].(string); ok {
		v.ID = id
	}
	for _, key := range []string{"Name", "DisplayName", "FullyQualifiedName"} {
		if name, ok := r[key].(string); ok && name != "" {
			v.Name = name
			break
		}
	}
	if active, ok := r["Active"].(bool); ok {
		v.Active = active
	}
	return v
}
