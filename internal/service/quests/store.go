package quests

import (
	"time"

	"github.com/lawnpro/crew-ops/internal/models"
	"github.com/lawnpro/crew-ops/internal/repository"
)

// QuestRepository interface for quest definition storage.
type QuestRepository interface {
	Create(quest *models.Quest) error
	GetByID(id string) (*models.Quest, error)
	GetAll() ([]models.Quest, error)
	GetActive() ([]models.Quest, error)
	Update(quest *models.Quest) error
	SetActive(id string, active bool) error
	Delete(id string) error
	CountActiveByType() (map[string]int, error)
}

// CompletionRepository interface for the completion log.
type CompletionRepository interface {
	Create(completion *models.QuestCompletion) error
	GetByUser(email string) ([]models.QuestCompletion, error)
	GetByQuest(questID string) ([]models.QuestCompletion, error)
	GetByPeriods(periods []string) ([]models.QuestCompletion, error)
	GetSince(since time.Time) ([]models.QuestCompletion, error)
}

// XPRepository interface for per-user XP records.
type XPRepository interface {
	Get(email string) (*models.UserXP, error)
	AddXP(email, displayName string, delta int) (*models.UserXP, error)
	UpdateDerived(record *models.UserXP) error
	GetAll() ([]models.UserXP, error)
}

// Store hands out repositories, optionally bound to one transaction.
type Store interface {
	Quests() QuestRepository
	Completions() CompletionRepository
	XP() XPRepository
	Transaction(fn func(tx Store) error) error
}

type dbStore struct {
	db *repository.DB
}

// NewStore returns a Store backed by the gorm repositories.
func NewStore(db *repository.DB) Store {
	return &dbStore{db: db}
}

func (s *dbStore) Quests() QuestRepository {
	return repository.NewQuestRepository(s.db)
}

func (s *dbStore) Completions() CompletionRepository {
	return repository.NewCompletionRepository(s.db)
}

func (s *dbStore) XP() XPRepository {
	return repository.NewXPRepository(s.db)
}

func (s *dbStore) Transaction(fn func(tx Store) error) error {
	return s.db.Transaction(func(tx *repository.DB) error {
		return fn(&dbStore{db: tx})
	})
}
