package leaderboard

import (
	"context"
)

// UserStats is a user's standing across every leaderboard period.
type UserStats struct {
	UserEmail string         `json:"user_email"`
	Ranks     map[string]int `json:"ranks"` // 0 when unranked
	PeriodXP  map[string]int `json:"period_xp"`
}

// GetUserStats returns the user's rank and XP for each period.
func (s *Service) GetUserStats(ctx context.Context, email string) (*UserStats, error) {
	stats := &UserStats{
		UserEmail: email,
		Ranks:     make(map[string]int, len(Periods)),
		PeriodXP:  make(map[string]int, len(Periods)),
	}

	for _, period := range Periods {
		entries, err := s.GetLeaderboard(ctx, period, 0)
		if err != nil {
			return nil, err
		}
		stats.Ranks[period] = 0
		stats.PeriodXP[period] = 0
		for _, e := range entries {
			if e.UserEmail == email {
				stats.Ranks[period] = e.Rank
				stats.PeriodXP[period] = e.XP
				break
			}
		}
	}

	return stats, nil
}
