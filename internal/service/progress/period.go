// Package progress computes quest periods, completion membership, team
// progress, streaks and XP levels.
//
// Every function is pure: date-dependent calls take the caller's local
// calendar date ("today", YYYY-MM-DD) instead of reading the clock, and no
// input slice or record is mutated.
package progress

import (
	"fmt"
	"time"

	"github.com/lawnpro/crew-ops/internal/models"
)

// DateLayout is the calendar date format used for "today", expiry dates and
// daily periods.
const DateLayout = "2006-01-02"

// BountyPeriod is the single period shared by every bounty completion.
const BountyPeriod = "bounty"

// CurrentPeriod returns the period identifier for a quest type on the given day.
// Unknown types fall back to the bounty period.
func CurrentPeriod(questType, today string) string {
	switch questType {
	case models.QuestTypeDaily:
		return today
	case models.QuestTypeWeekly:
		return weekPeriod(today)
	case models.QuestTypeMonthly:
		if len(today) < 7 {
			return today
		}
		return today[:7]
	default:
		return BountyPeriod
	}
}

// weekPeriod numbers weeks as ceil((dayOfYear + isoWeekday(Jan 1)) / 7) with a
// zero-based day of year. This is not ISO-8601 week numbering; stored weekly
// completions depend on it staying exactly as is.
func weekPeriod(today string) string {
	day, err := time.Parse(DateLayout, today)
	if err != nil {
		return today
	}
	jan1 := time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	week := (day.YearDay() - 1 + isoWeekday(jan1) + 6) / 7
	return fmt.Sprintf("%d-W%d", day.Year(), week)
}

// isoWeekday maps Monday..Sunday to 1..7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// IsQuestAvailable reports whether a quest can currently be completed by anyone.
// It does not look at whether a particular user already completed it.
func IsQuestAvailable(quest *models.Quest, today string) bool {
	if quest == nil || !quest.Active {
		return false
	}
	if quest.Type == models.QuestTypeBounty && quest.ExpiresAt != "" && today > quest.ExpiresAt {
		return false
	}
	return true
}
