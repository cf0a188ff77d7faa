// Package quests runs the quest board: listing quests for a crew member,
// recording completions and maintaining XP records.
package quests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lawnpro/crew-ops/internal/metrics"
	"github.com/lawnpro/crew-ops/internal/models"
	"github.com/lawnpro/crew-ops/internal/repository"
	"github.com/lawnpro/crew-ops/internal/service/progress"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

var (
	// ErrQuestNotFound is returned when a quest id does not exist.
	ErrQuestNotFound = errors.New("quest not found")
	// ErrQuestUnavailable is returned for inactive or expired quests.
	ErrQuestUnavailable = errors.New("quest is not available")
	// ErrAlreadyCompleted is returned when the user already completed the quest this period.
	ErrAlreadyCompleted = errors.New("quest already completed this period")
)

// Notifier announces notable completions.
type Notifier interface {
	SendLevelUp(ctx context.Context, name, level string, totalXP int) error
	SendBountyCompleted(ctx context.Context, name, questTitle, reward string, xp int) error
}

// LeaderboardInvalidator drops cached leaderboards after XP changes.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context)
}

// Service handles quest board operations.
type Service struct {
	store       Store
	notifier    Notifier
	leaderboard LeaderboardInvalidator
	loc         *time.Location
	now         func() time.Time
	log         *logger.Logger
}

// NewService creates a new quest service backed by the database.
func NewService(
	db *repository.DB,
	notifier Notifier,
	leaderboard LeaderboardInvalidator,
	loc *time.Location,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(NewStore(db), notifier, leaderboard, loc, log)
}

// NewServiceWithInterfaces creates a new quest service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	store Store,
	notifier Notifier,
	leaderboard LeaderboardInvalidator,
	loc *time.Location,
	log *logger.Logger,
) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:       store,
		notifier:    notifier,
		leaderboard: leaderboard,
		loc:         loc,
		now:         time.Now,
		log:         log,
	}
}

// SetClock replaces the wall clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Location returns the quest board time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Today returns the current calendar date in the quest board time zone.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(progress.DateLayout)
}

// streakToday is the date streaks are measured against. Completion dates are
// taken from the UTC timestamp, so the reference day is too.
func (s *Service) streakToday() string {
	return s.now().UTC().Format(progress.DateLayout)
}

// BoardQuest is a quest annotated for one crew member.
type BoardQuest struct {
	models.Quest
	Period        string  `json:"period"`
	Available     bool    `json:"available"`
	CompletedByMe bool    `json:"completed_by_me"`
	TeamCount     int     `json:"team_count"`
	TeamProgress  float64 `json:"team_progress"`
	Completable   bool    `json:"completable"`
}

// Board is the quest board as seen by one crew member.
type Board struct {
	Today  string       `json:"today"`
	Quests []BoardQuest `json:"quests"`
}

// Board returns every active quest with its period state for the user.
//
//nolint:revive // ctx reserved for cancellation once repositories accept it
func (s *Service) Board(ctx context.Context, userEmail string) (*Board, error) {
	today := s.Today()

	quests, err := s.store.Quests().GetActive()
	if err != nil {
		return nil, fmt.Errorf("failed to get quests: %w", err)
	}

	periods := make([]string, 0, len(quests))
	seen := make(map[string]bool)
	for i := range quests {
		p := progress.CurrentPeriod(quests[i].Type, today)
		if !seen[p] {
			seen[p] = true
			periods = append(periods, p)
		}
	}

	completions, err := s.store.Completions().GetByPeriods(periods)
	if err != nil {
		return nil, fmt.Errorf("failed to get completions: %w", err)
	}

	board := &Board{Today: today, Quests: make([]BoardQuest, 0, len(quests))}
	for i := range quests {
		q := &quests[i]
		period := progress.CurrentPeriod(q.Type, today)
		count := progress.TeamCompletionCount(completions, q.ID, period)

		entry := BoardQuest{
			Quest:         *q,
			Period:        period,
			Available:     progress.IsQuestAvailable(q, today),
			CompletedByMe: progress.HasCompletedInPeriod(completions, q.ID, userEmail, period),
			TeamCount:     count,
		}
		if q.IsTeam() {
			entry.TeamProgress = progress.TeamProgress(count, q.TargetCount)
		}
		entry.Completable = entry.Available && !entry.CompletedByMe
		board.Quests = append(board.Quests, entry)
	}

	return board, nil
}

// CompletionResult describes a recorded completion and its effect on XP.
type CompletionResult struct {
	Completion    models.QuestCompletion `json:"completion"`
	XP            models.UserXP          `json:"xp"`
	Level         progress.LevelInfo     `json:"level"`
	PreviousLevel string                 `json:"previous_level"`
	LeveledUp     bool                   `json:"leveled_up"`
}

// CompleteQuest records that the user completed a quest in its current
// period and awards the quest XP. The availability and duplicate checks run
// in the same transaction as the insert.
func (s *Service) CompleteQuest(ctx context.Context, questID, userEmail, userName string) (*CompletionResult, error) {
	today := s.Today()
	now := s.now()

	var (
		result CompletionResult
		quest  *models.Quest
	)

	err := s.store.Transaction(func(tx Store) error {
		var err error
		quest, err = tx.Quests().GetByID(questID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestNotFound
		}
		if err != nil {
			return err
		}

		if !progress.IsQuestAvailable(quest, today) {
			return ErrQuestUnavailable
		}

		period := progress.CurrentPeriod(quest.Type, today)

		history, err := tx.Completions().GetByUser(userEmail)
		if err != nil {
			return err
		}
		if progress.HasCompletedInPeriod(history, quest.ID, userEmail, period) {
			return ErrAlreadyCompleted
		}

		completion := models.QuestCompletion{
			ID:              uuid.NewString(),
			QuestID:         quest.ID,
			CompletedBy:     userEmail,
			CompletedByName: userName,
			CompletedAt:     now.UTC(),
			Period:          period,
			XP:              quest.XP,
		}
		if err := tx.Completions().Create(&completion); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyCompleted
			}
			return err
		}
		history = append(history, completion)

		record, err := tx.XP().AddXP(userEmail, userName, quest.XP)
		if err != nil {
			return err
		}
		result.PreviousLevel = progress.CalculateLevel(record.TotalXP - quest.XP).Name

		updated := progress.RecomputeXP(*record, history, s.streakToday())
		if err := tx.XP().UpdateDerived(&updated); err != nil {
			return err
		}

		result.Completion = completion
		result.XP = updated
		result.Level = progress.CalculateLevel(updated.TotalXP)
		result.LeveledUp = result.Level.Name != result.PreviousLevel
		return nil
	})
	if err != nil {
		s.recordRejection(err)
		if errors.Is(err, ErrQuestNotFound) || errors.Is(err, ErrQuestUnavailable) || errors.Is(err, ErrAlreadyCompleted) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to complete quest %s: %w", questID, err)
	}

	s.log.Info().
		Str("quest_id", quest.ID).
		Str("user", userEmail).
		Str("period", result.Completion.Period).
		Int("xp", quest.XP).
		Int("total_xp", result.XP.TotalXP).
		Msg("Quest completed")

	metrics.RecordQuestCompletion(quest.Type, quest.Scope, quest.XP)
	s.afterCompletion(ctx, quest, &result)

	return &result, nil
}

func (s *Service) recordRejection(err error) {
	switch {
	case errors.Is(err, ErrQuestNotFound):
		metrics.RecordCompletionRejected("not_found")
	case errors.Is(err, ErrQuestUnavailable):
		metrics.RecordCompletionRejected("unavailable")
	case errors.Is(err, ErrAlreadyCompleted):
		metrics.RecordCompletionRejected("already_completed")
	default:
		metrics.RecordCompletionRejected("error")
	}
}

// afterCompletion runs the side effects of a committed completion. Failures
// are logged; the completion stands.
func (s *Service) afterCompletion(ctx context.Context, quest *models.Quest, result *CompletionResult) {
	if s.leaderboard != nil {
		s.leaderboard.Invalidate(ctx)
	}

	name := result.XP.DisplayName
	if name == "" {
		name = result.XP.UserEmail
	}

	if result.LeveledUp {
		metrics.RecordLevelUp(result.Level.Name)
		if s.notifier != nil {
			if err := s.notifier.SendLevelUp(ctx, name, result.Level.Name, result.XP.TotalXP); err != nil {
				s.log.Warn().Err(err).Str("user", result.XP.UserEmail).Msg("Failed to announce level-up")
			}
		}
	}

	if quest.Type == models.QuestTypeBounty && s.notifier != nil {
		if err := s.notifier.SendBountyCompleted(ctx, name, quest.Title, quest.Reward, quest.XP); err != nil {
			s.log.Warn().Err(err).Str("quest_id", quest.ID).Msg("Failed to announce bounty")
		}
	}
}

// XPSummary is a user's XP record with level details.
type XPSummary struct {
	Record models.UserXP      `json:"record"`
	Level  progress.LevelInfo `json:"level"`
}

// GetUserXP returns the user's XP with streak and level rederived from the
// completion log. Users without a record are zero-XP Rookies.
//
//nolint:revive // ctx reserved for cancellation once repositories accept it
func (s *Service) GetUserXP(ctx context.Context, email string) (*XPSummary, error) {
	record, err := s.store.XP().Get(email)
	if err != nil {
		return nil, fmt.Errorf("failed to get xp: %w", err)
	}
	if record == nil {
		record = &models.UserXP{UserEmail: email}
	}

	completions, err := s.store.Completions().GetByUser(email)
	if err != nil {
		return nil, fmt.Errorf("failed to get completions: %w", err)
	}

	updated := progress.RecomputeXP(*record, completions, s.streakToday())
	return &XPSummary{
		Record: updated,
		Level:  progress.CalculateLevel(updated.TotalXP),
	}, nil
}

// RefreshXPCache rederives the cached level, streak and last completion date
// of every XP record and stores the ones that changed. Streaks lapse without
// a write, so this runs on a schedule.
func (s *Service) RefreshXPCache(ctx context.Context) (int, error) {
	records, err := s.store.XP().GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to list xp records: %w", err)
	}

	today := s.streakToday()
	updated := 0
	for i := range records {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		completions, err := s.store.Completions().GetByUser(records[i].UserEmail)
		if err != nil {
			return updated, fmt.Errorf("failed to get completions for %s: %w", records[i].UserEmail, err)
		}

		fresh := progress.RecomputeXP(records[i], completions, today)
		if fresh.Level == records[i].Level &&
			fresh.Streak == records[i].Streak &&
			fresh.LastCompletionDate == records[i].LastCompletionDate {
			continue
		}

		if err := s.store.XP().UpdateDerived(&fresh); err != nil {
			return updated, fmt.Errorf("failed to save xp for %s: %w", fresh.UserEmail, err)
		}
		updated++
	}

	s.log.Info().Int("records", len(records)).Int("updated", updated).Msg("Refreshed XP cache")
	return updated, nil
}

// CompletionsToday returns completions recorded since local midnight.
func (s *Service) CompletionsToday() ([]models.QuestCompletion, error) {
	now := s.now().In(s.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	completions, err := s.store.Completions().GetSince(midnight.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get today's completions: %w", err)
	}
	return completions, nil
}
