package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/lawnpro/crew-ops/internal/models"
)

// EmployeeRepository handles employee-related database operations.
type EmployeeRepository struct {
	db *DB
}

// NewEmployeeRepository creates a new employee repository.
func NewEmployeeRepository(db *DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// Create creates a new employee.
func (r *EmployeeRepository) Create(employee *models.Employee) error {
	employee.Email = normalizeEmail(employee.Email)
	if err := r.db.Create(employee).Error; err != nil {
		return fmt.Errorf("failed to create employee: %w", err)
	}
	return nil
}

// GetByEmail retrieves an employee by email, case-insensitively.
func (r *EmployeeRepository) GetByEmail(email string) (*models.Employee, error) {
	var employee models.Employee
	if err := r.db.Where("email = ?", normalizeEmail(email)).First(&employee).Error; err != nil {
		return nil, fmt.Errorf("failed to get employee by email %s: %w", email, err)
	}
	return &employee, nil
}

// List retrieves employees ordered by name. activeOnly hides deactivated staff.
func (r *EmployeeRepository) List(activeOnly bool) ([]models.Employee, error) {
	query := r.db.Model(&models.Employee{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var employees []models.Employee
	if err := query.Order("name ASC").Find(&employees).Error; err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return employees, nil
}

// Update updates an employee.
func (r *EmployeeRepository) Update(employee *models.Employee) error {
	if err := r.db.Save(employee).Error; err != nil {
		return fmt.Errorf("failed to update employee: %w", err)
	}
	return nil
}

// CreateOrUpdate creates an employee if the email is unknown, or refreshes
// name, role and active flag otherwise.
func (r *EmployeeRepository) CreateOrUpdate(employee *models.Employee) error {
	existing, err := r.GetByEmail(employee.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.Create(employee)
	}
	if err != nil {
		return err
	}

	existing.Name = employee.Name
	existing.Role = employee.Role
	existing.Active = employee.Active
	if err := r.Update(existing); err != nil {
		return err
	}
	*employee = *existing
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
