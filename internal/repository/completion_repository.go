package repository

import (
	"fmt"
	"time"

	"github.com/lawnpro/crew-ops/internal/models"
)

// CompletionRepository handles the append-only completion log.
type CompletionRepository struct {
	db *DB
}

// NewCompletionRepository creates a new completion repository.
func NewCompletionRepository(db *DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// Create appends a completion. A second completion for the same quest, user
// and period violates idx_completion_once and returns gorm.ErrDuplicatedKey.
func (r *CompletionRepository) Create(completion *models.QuestCompletion) error {
	if err := r.db.Create(completion).Error; err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	return nil
}

// GetByUser retrieves every completion logged by a user, newest first.
func (r *CompletionRepository) GetByUser(email string) ([]models.QuestCompletion, error) {
	var completions []models.QuestCompletion
	err := r.db.Where("completed_by = ?", email).Order("completed_at DESC").Find(&completions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get completions for %s: %w", email, err)
	}
	return completions, nil
}

// GetByPeriods retrieves completions whose stored period is one of periods.
// The quest board only needs the current period of each quest type.
func (r *CompletionRepository) GetByPeriods(periods []string) ([]models.QuestCompletion, error) {
	var completions []models.QuestCompletion
	if len(periods) == 0 {
		return completions, nil
	}
	err := r.db.Where("period IN ?", periods).Order("completed_at DESC").Find(&completions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get completions by period: %w", err)
	}
	return completions, nil
}

// GetSince retrieves completions recorded at or after since.
func (r *CompletionRepository) GetSince(since time.Time) ([]models.QuestCompletion, error) {
	var completions []models.QuestCompletion
	err := r.db.Where("completed_at >= ?", since).Order("completed_at DESC").Find(&completions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get completions since %s: %w", since.Format(time.RFC3339), err)
	}
	return completions, nil
}

// GetByQuest retrieves the completions of one quest.
func (r *CompletionRepository) GetByQuest(questID string) ([]models.QuestCompletion, error) {
	var completions []models.QuestCompletion
	err := r.db.Where("quest_id = ?", questID).Order("completed_at DESC").Find(&completions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get completions for quest %s: %w", questID, err)
	}
	return completions, nil
}
