// Package employees resolves who is using the quest board and lets crew
// members find themselves in the directory.
package employees

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
	"gorm.io/gorm"

	"github.com/lawnpro/crew-ops/internal/config"
	"github.com/lawnpro/crew-ops/internal/models"
	"github.com/lawnpro/crew-ops/internal/repository"
	"github.com/lawnpro/crew-ops/internal/service/quests"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

// ErrEmployeeNotFound is returned for unknown or deactivated employees.
var ErrEmployeeNotFound = errors.New("employee not found")

// EmployeeRepository interface for employee operations.
type EmployeeRepository interface {
	GetByEmail(email string) (*models.Employee, error)
	List(activeOnly bool) ([]models.Employee, error)
	CreateOrUpdate(employee *models.Employee) error
}

// XPProvider returns a user's XP summary.
type XPProvider interface {
	GetUserXP(ctx context.Context, email string) (*quests.XPSummary, error)
}

// Service handles employee lookup and selection.
type Service struct {
	employeeRepo EmployeeRepository
	xp           XPProvider
	log          *logger.Logger
}

// NewService creates a new employee service with concrete repository types.
func NewService(employeeRepo *repository.EmployeeRepository, xp XPProvider, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(employeeRepo, xp, log)
}

// NewServiceWithInterfaces creates a new employee service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(employeeRepo EmployeeRepository, xp XPProvider, log *logger.Logger) *Service {
	return &Service{
		employeeRepo: employeeRepo,
		xp:           xp,
		log:          log,
	}
}

// List returns active employees ordered by name.
//
//nolint:revive // ctx reserved for cancellation once repositories accept it
func (s *Service) List(ctx context.Context) ([]models.Employee, error) {
	employees, err := s.employeeRepo.List(true)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return employees, nil
}

// directory implements fuzzy.Source over employee names and emails.
type directory []models.Employee

func (d directory) Len() int {
	return len(d)
}

func (d directory) String(i int) string {
	return strings.ToLower(d[i].Name + " " + d[i].Email)
}

// Search returns active employees matching query, best match first. An empty
// query returns everyone.
func (s *Service) Search(ctx context.Context, query string) ([]models.Employee, error) {
	employees, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return employees, nil
	}

	matches := fuzzy.FindFrom(query, directory(employees))
	results := make([]models.Employee, len(matches))
	for i, match := range matches {
		results[i] = employees[match.Index]
	}

	s.log.Debug().Str("query", query).Int("matches", len(results)).Msg("Searched employees")
	return results, nil
}

// Get returns an active employee by email.
//
//nolint:revive // ctx reserved for cancellation once repositories accept it
func (s *Service) Get(ctx context.Context, email string) (*models.Employee, error) {
	employee, err := s.employeeRepo.GetByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	if !employee.Active {
		return nil, ErrEmployeeNotFound
	}
	return employee, nil
}

// Selection is the identity picked on the board with its XP standing.
type Selection struct {
	Employee models.Employee   `json:"employee"`
	XP       *quests.XPSummary `json:"xp"`
}

// Select resolves the chosen employee and their XP summary.
func (s *Service) Select(ctx context.Context, email string) (*Selection, error) {
	employee, err := s.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	summary, err := s.xp.GetUserXP(ctx, employee.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to get xp for %s: %w", employee.Email, err)
	}

	return &Selection{Employee: *employee, XP: summary}, nil
}

// SyncFromConfig creates or updates the configured employees and deactivates
// the ones no longer listed. It returns how many employees are active.
//
//nolint:revive // ctx reserved for cancellation once repositories accept it
func (s *Service) SyncFromConfig(ctx context.Context, members []config.EmployeeConfig) (int, error) {
	listed := make(map[string]bool, len(members))
	for _, m := range members {
		role := strings.ToLower(m.Role)
		if role == "" {
			role = models.RoleCrew
		}
		employee := &models.Employee{
			Email:  strings.ToLower(strings.TrimSpace(m.Email)),
			Name:   m.Name,
			Role:   role,
			Active: true,
		}
		if employee.Name == "" {
			employee.Name = employee.Email
		}
		if err := s.employeeRepo.CreateOrUpdate(employee); err != nil {
			return 0, fmt.Errorf("failed to sync employee %s: %w", m.Email, err)
		}
		listed[employee.Email] = true
	}

	existing, err := s.employeeRepo.List(false)
	if err != nil {
		return 0, fmt.Errorf("failed to list employees: %w", err)
	}
	for i := range existing {
		e := existing[i]
		if listed[e.Email] || !e.Active {
			continue
		}
		e.Active = false
		if err := s.employeeRepo.CreateOrUpdate(&e); err != nil {
			return 0, fmt.Errorf("failed to deactivate employee %s: %w", e.Email, err)
		}
		s.log.Info().Str("email", e.Email).Msg("Deactivated employee no longer in config")
	}

	s.log.Info().Int("employees", len(listed)).Msg("Synced employees from config")
	return len(listed), nil
}
