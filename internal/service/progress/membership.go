package progress

import (
	"github.com/lawnpro/crew-ops/internal/models"
)

// HasCompletedInPeriod reports whether the user already has a completion for the
// quest in the given period. Callers use it to guard inserts; it does not
// enforce uniqueness by itself.
func HasCompletedInPeriod(completions []models.QuestCompletion, questID, userEmail, period string) bool {
	for i := range completions {
		c := &completions[i]
		if c.QuestID == questID && c.CompletedBy == userEmail && c.Period == period {
			return true
		}
	}
	return false
}

// TeamCompletionCount counts distinct completers of a quest within a period.
func TeamCompletionCount(completions []models.QuestCompletion, questID, period string) int {
	seen := make(map[string]struct{})
	for i := range completions {
		c := &completions[i]
		if c.QuestID == questID && c.Period == period {
			seen[c.CompletedBy] = struct{}{}
		}
	}
	return len(seen)
}

// TeamProgress returns the fill percentage of a team target, clamped to [0, 100].
func TeamProgress(count, targetCount int) float64 {
	if targetCount < 1 {
		targetCount = 1
	}
	if count <= 0 {
		return 0
	}
	pct := float64(count) / float64(targetCount) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
