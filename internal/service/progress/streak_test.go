package progress

import (
	"testing"
	"time"

	"github.com/lawnpro/crew-ops/internal/models"
)

const user = "sam@example.com"

func onDays(email string, days ...string) []models.QuestCompletion {
	var out []models.QuestCompletion
	for _, d := range days {
		ts, err := time.Parse(time.RFC3339, d+"T15:04:05Z")
		if err != nil {
			panic(err)
		}
		out = append(out, models.QuestCompletion{CompletedBy: email, CompletedAt: ts})
	}
	return out
}

func TestStreak(t *testing.T) {
	tests := []struct {
		name        string
		completions []models.QuestCompletion
		today       string
		want        int
	}{
		{name: "no completions", completions: nil, today: "2024-06-10", want: 0},
		{name: "today only", completions: onDays(user, "2024-06-10"), today: "2024-06-10", want: 1},
		{name: "yesterday keeps the streak alive", completions: onDays(user, "2024-06-09"), today: "2024-06-10", want: 1},
		{name: "two days back breaks it", completions: onDays(user, "2024-06-08"), today: "2024-06-10", want: 0},
		{
			name:        "trailing run stops at first gap",
			completions: onDays(user, "2024-06-10", "2024-06-09", "2024-06-08", "2024-06-05"),
			today:       "2024-06-10",
			want:        3,
		},
		{
			name:        "unsorted input with duplicates",
			completions: onDays(user, "2024-06-08", "2024-06-10", "2024-06-09", "2024-06-10", "2024-06-09"),
			today:       "2024-06-10",
			want:        3,
		},
		{
			name:        "run ending yesterday",
			completions: onDays(user, "2024-06-09", "2024-06-08", "2024-06-07"),
			today:       "2024-06-10",
			want:        3,
		},
		{
			name:        "across a month boundary",
			completions: onDays(user, "2024-07-01", "2024-06-30", "2024-06-29"),
			today:       "2024-07-01",
			want:        3,
		},
		{
			name:        "other users ignored",
			completions: append(onDays("pat@example.com", "2024-06-10", "2024-06-09"), onDays(user, "2024-06-10")...),
			today:       "2024-06-10",
			want:        1,
		},
		{
			name:        "zero timestamps discarded",
			completions: append(onDays(user, "2024-06-10"), models.QuestCompletion{CompletedBy: user}),
			today:       "2024-06-10",
			want:        1,
		},
		{name: "malformed today", completions: onDays(user, "2024-06-10"), today: "10/06/2024", want: 0},
		{
			name:        "future completions do not count",
			completions: onDays(user, "2024-06-11"),
			today:       "2024-06-10",
			want:        0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Streak(tt.completions, user, tt.today); got != tt.want {
				t.Errorf("Streak() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStreak_Idempotent(t *testing.T) {
	completions := onDays(user, "2024-06-10", "2024-06-09")
	first := Streak(completions, user, "2024-06-10")
	second := Streak(completions, user, "2024-06-10")
	if first != second {
		t.Errorf("Streak not idempotent: %d then %d", first, second)
	}
}

func TestCompletionDate_UsesUTC(t *testing.T) {
	loc := time.FixedZone("CDT", -5*60*60)
	c := models.QuestCompletion{CompletedAt: time.Date(2024, 6, 10, 21, 0, 0, 0, loc)}
	if got := CompletionDate(&c); got != "2024-06-11" {
		t.Errorf("CompletionDate() = %q, want 2024-06-11", got)
	}
	if got := CompletionDate(&models.QuestCompletion{}); got != "" {
		t.Errorf("CompletionDate() of zero time = %q, want empty", got)
	}
}

func TestLastCompletionDate(t *testing.T) {
	completions := onDays(user, "2024-06-01", "2024-06-09", "2024-06-03")
	if got := LastCompletionDate(completions, user); got != "2024-06-09" {
		t.Errorf("LastCompletionDate() = %q", got)
	}
	if got := LastCompletionDate(completions, "nobody"); got != "" {
		t.Errorf("LastCompletionDate() for unknown user = %q", got)
	}
}

func TestStreak_ReferenceDayIsUTC(t *testing.T) {
	// 21:00 on the 10th at UTC-5 is the 11th in UTC.
	loc := time.FixedZone("CDT", -5*60*60)
	completions := []models.QuestCompletion{
		{CompletedBy: user, CompletedAt: time.Date(2024, 6, 10, 21, 0, 0, 0, loc)},
	}

	if got := Streak(completions, user, "2024-06-11"); got != 1 {
		t.Errorf("Streak() with UTC today = %d, want 1", got)
	}
	if got := Streak(completions, user, "2024-06-10"); got != 0 {
		t.Errorf("Streak() with local today = %d, want 0", got)
	}
}
