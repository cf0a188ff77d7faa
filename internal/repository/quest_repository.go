package repository

import (
	"fmt"

	"github.com/lawnpro/crew-ops/internal/models"
)

// QuestRepository handles quest definition storage.
type QuestRepository struct {
	db *DB
}

// NewQuestRepository creates a new quest repository.
func NewQuestRepository(db *DB) *QuestRepository {
	return &QuestRepository{db: db}
}

// Create creates a new quest.
func (r *QuestRepository) Create(quest *models.Quest) error {
	if err := r.db.Create(quest).Error; err != nil {
		return fmt.Errorf("failed to create quest: %w", err)
	}
	return nil
}

// GetByID retrieves a quest by its ID.
func (r *QuestRepository) GetByID(id string) (*models.Quest, error) {
	var quest models.Quest
	if err := r.db.Where("id = ?", id).First(&quest).Error; err != nil {
		return nil, fmt.Errorf("failed to get quest %s: %w", id, err)
	}
	return &quest, nil
}

// GetAll retrieves every quest, newest first within each type.
func (r *QuestRepository) GetAll() ([]models.Quest, error) {
	var quests []models.Quest
	err := r.db.Order("type ASC").Order("created_at DESC").Find(&quests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list quests: %w", err)
	}
	return quests, nil
}

// GetActive retrieves quests with the active flag set.
func (r *QuestRepository) GetActive() ([]models.Quest, error) {
	var quests []models.Quest
	err := r.db.Where("active = ?", true).Order("type ASC").Order("created_at DESC").Find(&quests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active quests: %w", err)
	}
	return quests, nil
}

// Update saves every field of an existing quest.
func (r *QuestRepository) Update(quest *models.Quest) error {
	if err := r.db.Save(quest).Error; err != nil {
		return fmt.Errorf("failed to update quest %s: %w", quest.ID, err)
	}
	return nil
}

// SetActive flips only the active flag.
func (r *QuestRepository) SetActive(id string, active bool) error {
	res := r.db.Model(&models.Quest{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return fmt.Errorf("failed to update quest %s: %w", id, res.Error)
	}
	return nil
}

// Delete deletes a quest by its ID. Completions are kept as history.
func (r *QuestRepository) Delete(id string) error {
	if err := r.db.Where("id = ?", id).Delete(&models.Quest{}).Error; err != nil {
		return fmt.Errorf("failed to delete quest %s: %w", id, err)
	}
	return nil
}

// CountActiveByType returns the number of active quests per type.
func (r *QuestRepository) CountActiveByType() (map[string]int, error) {
	type result struct {
		Type  string
		Count int
	}

	var results []result
	err := r.db.Model(&models.Quest{}).
		Select("type, COUNT(*) as count").
		Where("active = ?", true).
		Group("type").
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count active quests: %w", err)
	}

	counts := make(map[string]int, len(results))
	for _, res := range results {
		counts[res.Type] = res.Count
	}
	return counts, nil
}
