// Package leaderboard provides XP leaderboard and ranking services.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/lawnpro/crew-ops/internal/cache"
	"github.com/lawnpro/crew-ops/internal/models"
	"github.com/lawnpro/crew-ops/internal/repository"
	"github.com/lawnpro/crew-ops/internal/service/progress"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

// Leaderboard periods.
const (
	PeriodAllTime = "all_time"
	PeriodMonth   = "month"
	PeriodWeek    = "week"
)

// Periods lists the supported leaderboard periods.
var Periods = []string{PeriodAllTime, PeriodMonth, PeriodWeek}

const cacheKeyPrefix = "leaderboard:"

// XPRepository interface for XP record operations.
type XPRepository interface {
	GetAll() ([]models.UserXP, error)
}

// CompletionRepository interface for completion log operations.
type CompletionRepository interface {
	GetSince(since time.Time) ([]models.QuestCompletion, error)
}

// Entry represents a single entry in a leaderboard.
type Entry struct {
	Rank        int    `json:"rank"`
	UserEmail   string `json:"user_email"`
	DisplayName string `json:"display_name"`
	XP          int    `json:"xp"` // XP earned in the period
	TotalXP     int    `json:"total_xp"`
	Level       string `json:"level"`
	Streak      int    `json:"streak"`
	Completions int    `json:"completions"`
}

// Service handles leaderboard generation.
type Service struct {
	xpRepo         XPRepository
	completionRepo CompletionRepository
	cache          cache.Cache
	ttl            time.Duration
	loc            *time.Location
	now            func() time.Time
	log            *logger.Logger
}

// NewService creates a new leaderboard service with concrete repository types.
func NewService(
	xpRepo *repository.XPRepository,
	completionRepo *repository.CompletionRepository,
	c cache.Cache,
	ttl time.Duration,
	loc *time.Location,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(xpRepo, completionRepo, c, ttl, loc, log)
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	xpRepo XPRepository,
	completionRepo CompletionRepository,
	c cache.Cache,
	ttl time.Duration,
	loc *time.Location,
	log *logger.Logger,
) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		xpRepo:         xpRepo,
		completionRepo: completionRepo,
		cache:          c,
		ttl:            ttl,
		loc:            loc,
		now:            time.Now,
		log:            log,
	}
}

// SetClock replaces the wall clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ValidPeriod reports whether period is a supported leaderboard period.
func ValidPeriod(period string) bool {
	for _, p := range Periods {
		if p == period {
			return true
		}
	}
	return false
}

// GetLeaderboard returns the ranked leaderboard for a period. A limit of 0
// returns every entry.
func (s *Service) GetLeaderboard(ctx context.Context, period string, limit int) ([]Entry, error) {
	if period == "" {
		period = PeriodAllTime
	}
	if !ValidPeriod(period) {
		return nil, fmt.Errorf("unknown leaderboard period %q", period)
	}

	entries, ok := s.fromCache(ctx, period)
	if !ok {
		var err error
		entries, err = s.build(period)
		if err != nil {
			return nil, err
		}
		s.toCache(ctx, period, entries)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Invalidate drops every cached leaderboard.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(Periods))
	for _, p := range Periods {
		keys = append(keys, cacheKeyPrefix+p)
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate leaderboard cache")
	}
}

func (s *Service) fromCache(ctx context.Context, period string) ([]Entry, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, cacheKeyPrefix+period)
	if err != nil {
		s.log.Warn().Err(err).Str("period", period).Msg("Failed to read leaderboard cache")
		return nil, false
	}
	if raw == "" {
		return nil, false
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.log.Warn().Err(err).Str("period", period).Msg("Discarding corrupt leaderboard cache entry")
		return nil, false
	}
	return entries, true
}

func (s *Service) toCache(ctx context.Context, period string, entries []Entry) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode leaderboard")
		return
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+period, string(payload), s.ttl); err != nil {
		s.log.Warn().Err(err).Str("period", period).Msg("Failed to write leaderboard cache")
	}
}

// build computes a leaderboard from the database.
func (s *Service) build(period string) ([]Entry, error) {
	records, err := s.xpRepo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to get xp records: %w", err)
	}

	byUser := make(map[string]*Entry, len(records))
	entries := make([]*Entry, 0, len(records))
	for i := range records {
		r := &records[i]
		e := &Entry{
			UserEmail:   r.UserEmail,
			DisplayName: r.DisplayName,
			TotalXP:     r.TotalXP,
			Level:       progress.CalculateLevel(r.TotalXP).Name,
			Streak:      r.Streak,
		}
		if period == PeriodAllTime {
			e.XP = r.TotalXP
		}
		byUser[r.UserEmail] = e
		entries = append(entries, e)
	}

	if period != PeriodAllTime {
		completions, err := s.periodCompletions(period)
		if err != nil {
			return nil, err
		}
		for i := range completions {
			c := &completions[i]
			e, ok := byUser[c.CompletedBy]
			if !ok {
				e = &Entry{
					UserEmail:   c.CompletedBy,
					DisplayName: c.CompletedByName,
					Level:       progress.CalculateLevel(0).Name,
				}
				byUser[c.CompletedBy] = e
				entries = append(entries, e)
			}
			e.XP += c.XP
			e.Completions++
		}

		// Period boards only rank people who scored in the period.
		scored := entries[:0]
		for _, e := range entries {
			if e.Completions > 0 {
				scored = append(scored, e)
			}
		}
		entries = scored
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].XP != entries[j].XP {
			return entries[i].XP > entries[j].XP
		}
		return entries[i].UserEmail < entries[j].UserEmail
	})

	result := make([]Entry, len(entries))
	for i, e := range entries {
		e.Rank = i + 1
		result[i] = *e
	}
	return result, nil
}

// periodCompletions returns the completions whose local date falls in the
// current calendar month or quest week.
func (s *Service) periodCompletions(period string) ([]models.QuestCompletion, error) {
	now := s.now().In(s.loc)
	today := now.Format(progress.DateLayout)

	var (
		since     time.Time
		questType string
	)
	switch period {
	case PeriodMonth:
		since = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
		questType = models.QuestTypeMonthly
	case PeriodWeek:
		since = time.Date(now.Year(), now.Month(), now.Day()-7, 0, 0, 0, 0, s.loc)
		questType = models.QuestTypeWeekly
	}

	completions, err := s.completionRepo.GetSince(since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get completions: %w", err)
	}

	current := progress.CurrentPeriod(questType, today)
	filtered := completions[:0]
	for _, c := range completions {
		date := c.CompletedAt.In(s.loc).Format(progress.DateLayout)
		if progress.CurrentPeriod(questType, date) == current {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// GetUserRank returns the rank of a user in a period.
func (s *Service) GetUserRank(ctx context.Context, email, period string) (int, error) {
	leaderboard, err := s.GetLeaderboard(ctx, period, 0)
	if err != nil {
		return 0, err
	}

	for _, entry := range leaderboard {
		if entry.UserEmail == email {
			return entry.Rank, nil
		}
	}

	return 0, fmt.Errorf("user not found in leaderboard")
}
