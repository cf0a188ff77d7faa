package repository

import (
	"fmt"

	"github.com/lawnpro/crew-ops/internal/models"
)

// ProcedureRepository handles generated procedures and their sign-offs.
type ProcedureRepository struct {
	db *DB
}

// NewProcedureRepository creates a new procedure repository.
func NewProcedureRepository(db *DB) *ProcedureRepository {
	return &ProcedureRepository{db: db}
}

// Create stores a new procedure.
func (r *ProcedureRepository) Create(procedure *models.Procedure) error {
	if err := r.db.Create(procedure).Error; err != nil {
		return fmt.Errorf("failed to create procedure: %w", err)
	}
	return nil
}

// GetByID retrieves a procedure with its acknowledgements.
func (r *ProcedureRepository) GetByID(id string) (*models.Procedure, error) {
	var procedure models.Procedure
	err := r.db.Preload("Acknowledgements").Where("id = ?", id).First(&procedure).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get procedure %s: %w", id, err)
	}
	return &procedure, nil
}

// List retrieves procedures, newest first.
func (r *ProcedureRepository) List(limit int) ([]models.Procedure, error) {
	query := r.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var procedures []models.Procedure
	if err := query.Find(&procedures).Error; err != nil {
		return nil, fmt.Errorf("failed to list procedures: %w", err)
	}
	return procedures, nil
}

// Delete removes a procedure and its acknowledgements.
func (r *ProcedureRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *DB) error {
		if err := tx.Where("procedure_id = ?", id).Delete(&models.ProcedureAcknowledgement{}).Error; err != nil {
			return fmt.Errorf("failed to delete acknowledgements for %s: %w", id, err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Procedure{}).Error; err != nil {
			return fmt.Errorf("failed to delete procedure %s: %w", id, err)
		}
		return nil
	})
}

// Acknowledge records a sign-off. Signing twice returns gorm.ErrDuplicatedKey.
func (r *ProcedureRepository) Acknowledge(ack *models.ProcedureAcknowledgement) error {
	if err := r.db.Create(ack).Error; err != nil {
		return fmt.Errorf("failed to record acknowledgement: %w", err)
	}
	return nil
}
