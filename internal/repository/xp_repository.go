package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lawnpro/crew-ops/internal/models"
)

// XPRepository handles per-user XP records.
type XPRepository struct {
	db *DB
}

// NewXPRepository creates a new XP repository.
func NewXPRepository(db *DB) *XPRepository {
	return &XPRepository{db: db}
}

// Get retrieves the XP record for a user. A missing record is not an error:
// it returns nil, nil.
func (r *XPRepository) Get(email string) (*models.UserXP, error) {
	var record models.UserXP
	err := r.db.Where("user_email = ?", email).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get xp for %s: %w", email, err)
	}
	return &record, nil
}

// AddXP atomically adds delta to a user's total, creating the record on the
// first award, and returns the row as stored. The increment happens in SQL so
// concurrent awards for one user never overwrite each other.
func (r *XPRepository) AddXP(email, displayName string, delta int) (*models.UserXP, error) {
	now := time.Now().UTC()
	set := map[string]interface{}{
		"total_xp":   gorm.Expr("user_xp.total_xp + ?", delta),
		"updated_at": now,
	}
	if displayName != "" {
		set["display_name"] = displayName
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_email"}},
		DoUpdates: clause.Assignments(set),
	}).Create(&models.UserXP{
		UserEmail:   email,
		DisplayName: displayName,
		TotalXP:     delta,
		UpdatedAt:   now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to add xp for %s: %w", email, err)
	}

	record, err := r.Get(email)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("xp record for %s missing after upsert", email)
	}
	return record, nil
}

// UpdateDerived stores the cached level, streak and last completion date of
// a record. TotalXP and DisplayName are left as they are.
func (r *XPRepository) UpdateDerived(record *models.UserXP) error {
	res := r.db.Model(&models.UserXP{}).
		Where("user_email = ?", record.UserEmail).
		Updates(map[string]interface{}{
			"level":                record.Level,
			"streak":               record.Streak,
			"last_completion_date": record.LastCompletionDate,
			"updated_at":           time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update xp for %s: %w", record.UserEmail, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update xp for %s: %w", record.UserEmail, gorm.ErrRecordNotFound)
	}
	return nil
}

// GetAll retrieves every XP record ordered by total XP.
func (r *XPRepository) GetAll() ([]models.UserXP, error) {
	var records []models.UserXP
	if err := r.db.Order("total_xp DESC").Order("user_email ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list xp records: %w", err)
	}
	return records, nil
}
