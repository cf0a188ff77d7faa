package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lawnpro/crew-ops/internal/models"
)

// QuickBooksRepository stores OAuth state and company connections.
type QuickBooksRepository struct {
	db *DB
}

// NewQuickBooksRepository creates a new QuickBooks repository.
func NewQuickBooksRepository(db *DB) *QuickBooksRepository {
	return &QuickBooksRepository{db: db}
}

// CreateState stores a pending authorization state.
func (r *QuickBooksRepository) CreateState(state *models.OAuthState) error {
	if err := r.db.Create(state).Error; err != nil {
		return fmt.Errorf("failed to create oauth state: %w", err)
	}
	return nil
}

// ConsumeState deletes and returns a pending state. Unknown states return
// gorm.ErrRecordNotFound; each state can be consumed once.
func (r *QuickBooksRepository) ConsumeState(value string) (*models.OAuthState, error) {
	var state models.OAuthState
	err := r.db.Transaction(func(tx *DB) error {
		if err := tx.Where("state = ?", value).First(&state).Error; err != nil {
			return err
		}
		return tx.Where("state = ?", value).Delete(&models.OAuthState{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return &state, nil
}

// DeleteExpiredStates removes states that expired before now.
func (r *QuickBooksRepository) DeleteExpiredStates(now time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", now).Delete(&models.OAuthState{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired oauth states: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// SaveConnection creates or replaces the connection for a realm.
func (r *QuickBooksRepository) SaveConnection(conn *models.QuickBooksConnection) error {
	var existing models.QuickBooksConnection
	err := r.db.Where("realm_id = ?", conn.RealmID).First(&existing).Error
	if err == nil {
		conn.ID = existing.ID
		conn.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up quickbooks connection: %w", err)
	}

	if err := r.db.Save(conn).Error; err != nil {
		return fmt.Errorf("failed to save quickbooks connection: %w", err)
	}
	return nil
}

// GetConnection returns the most recently updated connection, or nil when
// QuickBooks was never connected.
func (r *QuickBooksRepository) GetConnection() (*models.QuickBooksConnection, error) {
	var conn models.QuickBooksConnection
	err := r.db.Order("updated_at DESC").First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quickbooks connection: %w", err)
	}
	return &conn, nil
}

// UpdateTokens stores refreshed tokens for a realm.
func (r *QuickBooksRepository) UpdateTokens(realmID, accessToken, refreshToken, tokenType string, expiry time.Time) error {
	res := r.db.Model(&models.QuickBooksConnection{}).
		Where("realm_id = ?", realmID).
		Updates(map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"token_type":    tokenType,
			"expiry":        expiry,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update quickbooks tokens: %w", res.Error)
	}
	return nil
}
