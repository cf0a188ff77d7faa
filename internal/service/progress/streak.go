package progress

import (
	"sort"
	"time"

	"github.com/lawnpro/crew-ops/internal/models"
)

// CompletionDate returns the calendar date (UTC, YYYY-MM-DD) of a completion,
// or "" when the timestamp is unset.
func CompletionDate(c *models.QuestCompletion) string {
	if c == nil || c.CompletedAt.IsZero() {
		return ""
	}
	return c.CompletedAt.UTC().Format(DateLayout)
}

// Streak returns the number of consecutive days, ending today or yesterday, on
// which the user logged at least one completion. today must be the UTC
// calendar date (DateLayout), the same reference CompletionDate uses; a local
// date can put the latest completion after today and break the streak.
func Streak(completions []models.QuestCompletion, userEmail, today string) int {
	todayDate, err := time.Parse(DateLayout, today)
	if err != nil {
		return 0
	}

	days := distinctDays(completions, userEmail)
	if len(days) == 0 {
		return 0
	}

	// Today may not have a completion yet; yesterday keeps the streak alive.
	expected := todayDate
	if !days[0].Equal(todayDate) {
		expected = todayDate.AddDate(0, 0, -1)
		if !days[0].Equal(expected) {
			return 0
		}
	}

	streak := 0
	for _, d := range days {
		if !d.Equal(expected) {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}
	return streak
}

// LastCompletionDate returns the most recent completion date for the user.
func LastCompletionDate(completions []models.QuestCompletion, userEmail string) string {
	days := distinctDays(completions, userEmail)
	if len(days) == 0 {
		return ""
	}
	return days[0].Format(DateLayout)
}

// distinctDays returns the user's distinct completion dates, newest first.
func distinctDays(completions []models.QuestCompletion, userEmail string) []time.Time {
	seen := make(map[string]struct{})
	var days []time.Time
	for i := range completions {
		c := &completions[i]
		if c.CompletedBy != userEmail {
			continue
		}
		date := CompletionDate(c)
		if _, ok := seen[date]; ok || date == "" {
			continue
		}
		d, err := time.Parse(DateLayout, date)
		if err != nil {
			continue
		}
		seen[date] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days
}
