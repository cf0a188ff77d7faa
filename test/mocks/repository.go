package mocks

import (
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/lawnpro/crew-ops/internal/models"
)

// MockXPRepository is an in-memory XP record store.
type MockXPRepository struct {
	mu      sync.Mutex
	Records map[string]models.UserXP
	Err     error
}

// NewMockXPRepository creates an empty XP store.
func NewMockXPRepository(records ...models.UserXP) *MockXPRepository {
	m := &MockXPRepository{Records: make(map[string]models.UserXP)}
	for _, r := range records {
		m.Records[r.UserEmail] = r
	}
	return m
}

func (m *MockXPRepository) GetAll() ([]models.UserXP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	records := make([]models.UserXP, 0, len(m.Records))
	for _, r := range m.Records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].TotalXP != records[j].TotalXP {
			return records[i].TotalXP > records[j].TotalXP
		}
		return records[i].UserEmail < records[j].UserEmail
	})
	return records, nil
}

// MockCompletionRepository is an in-memory completion log.
type MockCompletionRepository struct {
	mu          sync.Mutex
	Completions []models.QuestCompletion
	Err         error
}

func (m *MockCompletionRepository) Create(completion *models.QuestCompletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	for _, c := range m.Completions {
		if c.QuestID == completion.QuestID && c.CompletedBy == completion.CompletedBy && c.Period == completion.Period {
			return gorm.ErrDuplicatedKey
		}
	}
	m.Completions = append(m.Completions, *completion)
	return nil
}

func (m *MockCompletionRepository) GetByUser(email string) ([]models.QuestCompletion, error) {
	return m.filter(func(c *models.QuestCompletion) bool { return c.CompletedBy == email })
}

func (m *MockCompletionRepository) GetSince(since time.Time) ([]models.QuestCompletion, error) {
	return m.filter(func(c *models.QuestCompletion) bool { return !c.CompletedAt.Before(since) })
}

func (m *MockCompletionRepository) GetByPeriods(periods []string) ([]models.QuestCompletion, error) {
	want := make(map[string]bool, len(periods))
	for _, p := range periods {
		want[p] = true
	}
	return m.filter(func(c *models.QuestCompletion) bool { return want[c.Period] })
}

func (m *MockCompletionRepository) filter(keep func(c *models.QuestCompletion) bool) ([]models.QuestCompletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.QuestCompletion
	for i := range m.Completions {
		if keep(&m.Completions[i]) {
			out = append(out, m.Completions[i])
		}
	}
	return out, nil
}

// MockEmployeeRepository is an in-memory employee directory.
type MockEmployeeRepository struct {
	mu        sync.Mutex
	Employees []models.Employee
	Err       error
}

func (m *MockEmployeeRepository) GetByEmail(email string) (*models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	for i := range m.Employees {
		if m.Employees[i].Email == email {
			e := m.Employees[i]
			return &e, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockEmployeeRepository) List(activeOnly bool) ([]models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.Employee
	for _, e := range m.Employees {
		if activeOnly && !e.Active {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *MockEmployeeRepository) CreateOrUpdate(employee *models.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	for i := range m.Employees {
		if m.Employees[i].Email == employee.Email {
			m.Employees[i].Name = employee.Name
			m.Employees[i].Role = employee.Role
			m.Employees[i].Active = employee.Active
			*employee = m.Employees[i]
			return nil
		}
	}
	employee.ID = uint(len(m.Employees) + 1)
	m.Employees = append(m.Employees, *employee)
	return nil
}

// ErrMock is a generic failure for error-path tests.
var ErrMock = errors.New("mock failure")
