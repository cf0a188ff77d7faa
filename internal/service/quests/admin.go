package quests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lawnpro/crew-ops/internal/metrics"
	"github.com/lawnpro/crew-ops/internal/models"
	"github.com/lawnpro/crew-ops/internal/service/progress"
)

// ValidationError reports an invalid quest field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// QuestInput is the editable part of a quest.
type QuestInput struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Type        string `json:"type" yaml:"type"`
	XP          int    `json:"xp" yaml:"xp"`
	Reward      string `json:"reward" yaml:"reward"`
	Scope       string `json:"scope" yaml:"scope"`
	TargetCount int    `json:"target_count" yaml:"target_count"`
	ExpiresAt   string `json:"expires_at" yaml:"expires_at"`
	Active      *bool  `json:"active" yaml:"active"`
}

var questTypes = map[string]bool{
	models.QuestTypeDaily:   true,
	models.QuestTypeWeekly:  true,
	models.QuestTypeMonthly: true,
	models.QuestTypeBounty:  true,
}

// normalize trims the input and applies defaults, then validates it.
func (in *QuestInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	in.Scope = strings.ToLower(strings.TrimSpace(in.Scope))
	in.Reward = strings.TrimSpace(in.Reward)
	in.ExpiresAt = strings.TrimSpace(in.ExpiresAt)

	if in.Title == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if len(in.Title) > 255 {
		return &ValidationError{Field: "title", Message: "must be at most 255 characters"}
	}
	if !questTypes[in.Type] {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown quest type %q", in.Type)}
	}
	if in.XP <= 0 {
		return &ValidationError{Field: "xp", Message: "must be positive"}
	}

	switch in.Scope {
	case "", models.QuestScopeIndividual:
		in.Scope = models.QuestScopeIndividual
		in.TargetCount = 1
	case models.QuestScopeTeam:
		if in.TargetCount < 2 {
			return &ValidationError{Field: "target_count", Message: "team quests need a target of at least 2"}
		}
	default:
		return &ValidationError{Field: "scope", Message: fmt.Sprintf("unknown scope %q", in.Scope)}
	}

	if in.ExpiresAt != "" {
		if in.Type != models.QuestTypeBounty {
			return &ValidationError{Field: "expires_at", Message: "only bounties can expire"}
		}
		if _, err := time.Parse(progress.DateLayout, in.ExpiresAt); err != nil {
			return &ValidationError{Field: "expires_at", Message: "must be a YYYY-MM-DD date"}
		}
	}

	return nil
}

func (in *QuestInput) apply(q *models.Quest) {
	q.Title = in.Title
	q.Description = in.Description
	q.Type = in.Type
	q.XP = in.XP
	q.Reward = in.Reward
	q.Scope = in.Scope
	q.TargetCount = in.TargetCount
	q.ExpiresAt = in.ExpiresAt
	if in.Active != nil {
		q.Active = *in.Active
	}
}

// ListQuests returns every quest including inactive ones.
func (s *Service) ListQuests() ([]models.Quest, error) {
	quests, err := s.store.Quests().GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list quests: %w", err)
	}
	return quests, nil
}

// GetQuest returns one quest.
func (s *Service) GetQuest(id string) (*models.Quest, error) {
	quest, err := s.store.Quests().GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrQuestNotFound
	}
	if err != nil {
		return nil, err
	}
	return quest, nil
}

// QuestHistory is the completion log of one quest, newest first.
type QuestHistory struct {
	Quest       *models.Quest            `json:"quest"`
	Completions []models.QuestCompletion `json:"completions"`
	AwardedXP   int                      `json:"awarded_xp"`
}

// QuestCompletions returns who completed a quest and when.
func (s *Service) QuestCompletions(id string) (*QuestHistory, error) {
	quest, err := s.GetQuest(id)
	if err != nil {
		return nil, err
	}

	completions, err := s.store.Completions().GetByQuest(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get completions for quest %s: %w", id, err)
	}
	if completions == nil {
		completions = []models.QuestCompletion{}
	}

	history := &QuestHistory{Quest: quest, Completions: completions}
	for _, c := range completions {
		history.AwardedXP += c.XP
	}
	return history, nil
}

// CreateQuest adds a quest. New quests are active unless the input says otherwise.
//
//nolint:revive // ctx reserved for cancellation once repositories accept it
func (s *Service) CreateQuest(ctx context.Context, in QuestInput, actor string) (*models.Quest, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	quest := &models.Quest{
		ID:        uuid.NewString(),
		Active:    true,
		CreatedBy: actor,
	}
	in.apply(quest)

	if err := s.store.Quests().Create(quest); err != nil {
		return nil, fmt.Errorf("failed to create quest: %w", err)
	}

	s.log.Info().Str("quest_id", quest.ID).Str("type", quest.Type).Str("actor", actor).Msg("Quest created")
	s.refreshActiveQuestGauge()
	return quest, nil
}

// UpdateQuest replaces the editable fields of a quest. Completions already
// recorded keep their stored period.
//
//nolint:revive // ctx reserved for cancellation once repositories accept it
func (s *Service) UpdateQuest(ctx context.Context, id string, in QuestInput, actor string) (*models.Quest, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	quest, err := s.GetQuest(id)
	if err != nil {
		return nil, err
	}
	in.apply(quest)

	if err := s.store.Quests().Update(quest); err != nil {
		return nil, fmt.Errorf("failed to update quest: %w", err)
	}

	s.log.Info().Str("quest_id", id).Str("actor", actor).Msg("Quest updated")
	s.refreshActiveQuestGauge()
	return quest, nil
}

// SetQuestActive shows or hides a quest on the board.
//
//nolint:revive // ctx reserved for cancellation once repositories accept it
func (s *Service) SetQuestActive(ctx context.Context, id string, active bool, actor string) (*models.Quest, error) {
	quest, err := s.GetQuest(id)
	if err != nil {
		return nil, err
	}

	if err := s.store.Quests().SetActive(id, active); err != nil {
		return nil, fmt.Errorf("failed to update quest: %w", err)
	}
	quest.Active = active

	s.log.Info().Str("quest_id", id).Bool("active", active).Str("actor", actor).Msg("Quest visibility changed")
	s.refreshActiveQuestGauge()
	return quest, nil
}

// DeleteQuest removes a quest. Its completions and the XP they awarded stay.
//
//nolint:revive // ctx reserved for cancellation once repositories accept it
func (s *Service) DeleteQuest(ctx context.Context, id, actor string) error {
	if _, err := s.GetQuest(id); err != nil {
		return err
	}

	if err := s.store.Quests().Delete(id); err != nil {
		return fmt.Errorf("failed to delete quest: %w", err)
	}

	s.log.Info().Str("quest_id", id).Str("actor", actor).Msg("Quest deleted")
	s.refreshActiveQuestGauge()
	return nil
}

// refreshActiveQuestGauge publishes the number of active quests per type.
func (s *Service) refreshActiveQuestGauge() {
	counts, err := s.store.Quests().CountActiveByType()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to count active quests")
		return
	}
	for questType := range questTypes {
		metrics.SetActiveQuests(questType, counts[questType])
	}
}
