package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnpro/crew-ops/internal/config"
	"github.com/lawnpro/crew-ops/internal/mattermost"
	"github.com/lawnpro/crew-ops/internal/models"
	"github.com/lawnpro/crew-ops/internal/service/leaderboard"
	"github.com/lawnpro/crew-ops/internal/service/quests"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

type fakeBoard struct {
	board       *quests.Board
	completions []models.QuestCompletion
	refreshed   int
	err         error
	refreshes   int
}

func (f *fakeBoard) Today() string { return "2024-06-12" }

func (f *fakeBoard) Board(context.Context, string) (*quests.Board, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.board == nil {
		return &quests.Board{Today: f.Today()}, nil
	}
	return f.board, nil
}

func (f *fakeBoard) CompletionsToday() ([]models.QuestCompletion, error) {
	return f.completions, f.err
}

func (f *fakeBoard) RefreshXPCache(context.Context) (int, error) {
	f.refreshes++
	return f.refreshed, f.err
}

type fakeLeaderboard struct {
	entries     []leaderboard.Entry
	period      string
	limit       int
	invalidated int
}

func (f *fakeLeaderboard) GetLeaderboard(_ context.Context, period string, limit int) ([]leaderboard.Entry, error) {
	f.period = period
	f.limit = limit
	return f.entries, nil
}

func (f *fakeLeaderboard) Invalidate(context.Context) {
	f.invalidated++
}

type fakeSender struct {
	digests []mattermost.Digest
	err     error
}

func (f *fakeSender) SendDailyDigest(_ context.Context, digest mattermost.Digest) error {
	f.digests = append(f.digests, digest)
	return f.err
}

type fakePurger struct {
	removed int64
	calls   int
}

func (f *fakePurger) PurgeExpiredStates(context.Context) (int64, error) {
	f.calls++
	return f.removed, nil
}

func newTestService(cfg *config.Config, board *fakeBoard, lb *fakeLeaderboard, sender *fakeSender, purger StatePurger) *Service {
	return NewService(cfg, board, lb, sender, purger, logger.Nop())
}

func teamQuest(title string, count, target int, available bool) quests.BoardQuest {
	return quests.BoardQuest{
		Quest: models.Quest{
			Title:       title,
			Scope:       models.QuestScopeTeam,
			TargetCount: target,
		},
		Available:    available,
		TeamCount:    count,
		TeamProgress: float64(count) / float64(target) * 100,
	}
}

func TestBuildCronExpression(t *testing.T) {
	tests := []struct {
		name         string
		time         string
		skipWeekends bool
		want         string
		wantErr      bool
	}{
		{
			name: "daily at 6pm",
			time: "18:00",
			want: "0 18 * * *",
		},
		{
			name:         "weekdays at 6pm",
			time:         "18:00",
			skipWeekends: true,
			want:         "0 18 * * 1-5",
		},
		{
			name: "daily at 14:30",
			time: "14:30",
			want: "30 14 * * *",
		},
		{
			name:    "invalid format no colon",
			time:    "1800",
			wantErr: true,
		},
		{
			name:    "invalid hour",
			time:    "25:00",
			wantErr: true,
		},
		{
			name:    "invalid minute",
			time:    "09:60",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Scheduler: config.SchedulerConfig{
					DigestTime:   tt.time,
					SkipWeekends: tt.skipWeekends,
				},
			}

			s := &Service{config: cfg}

			got, err := s.buildCronExpression()

			if (err != nil) != tt.wantErr {
				t.Errorf("buildCronExpression() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if got != tt.want {
				t.Errorf("buildCronExpression() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildDigestEntries(t *testing.T) {
	entries := []leaderboard.Entry{
		{Rank: 1, UserEmail: "sam@example.com", DisplayName: "Sam", XP: 120, Level: "Rookie", Streak: 3},
		{Rank: 2, UserEmail: "olive@example.com", XP: 40, Level: "Crew"},
	}

	got := buildDigestEntries(entries)

	require.Len(t, got, 2)
	assert.Equal(t, mattermost.DigestEntry{Name: "Sam", XP: 120, Level: "Rookie", Streak: 3}, got[0])
	assert.Equal(t, "olive@example.com", got[1].Name, "falls back to email")
}

func TestOpenTeamQuests(t *testing.T) {
	board := []quests.BoardQuest{
		teamQuest("Mulch Marathon", 1, 3, true),
		teamQuest("Done Already", 3, 3, true),
		teamQuest("Expired Drive", 0, 2, false),
		{Quest: models.Quest{Title: "Solo", Scope: models.QuestScopeIndividual, TargetCount: 1}, Available: true},
	}

	got := openTeamQuests(board)

	require.Len(t, got, 1)
	assert.Equal(t, "Mulch Marathon", got[0].Title)
	assert.Equal(t, 1, got[0].Count)
	assert.Equal(t, 3, got[0].Target)
	assert.InDelta(t, 33.3, got[0].Progress, 0.1)
}

func TestRunDailyDigest(t *testing.T) {
	board := &fakeBoard{
		completions: make([]models.QuestCompletion, 4),
		board: &quests.Board{Quests: []quests.BoardQuest{
			teamQuest("Mulch Marathon", 1, 3, true),
		}},
	}
	lb := &fakeLeaderboard{entries: []leaderboard.Entry{{UserEmail: "sam@example.com", DisplayName: "Sam", XP: 50}}}
	sender := &fakeSender{}
	cfg := &config.Config{Scheduler: config.SchedulerConfig{DigestSize: 3}}

	newTestService(cfg, board, lb, sender, nil).runDailyDigest(context.Background())

	require.Len(t, sender.digests, 1)
	digest := sender.digests[0]
	assert.Equal(t, "2024-06-12", digest.Date)
	assert.Equal(t, 4, digest.Completions)
	assert.Len(t, digest.Leaders, 1)
	assert.Len(t, digest.TeamQuests, 1)
	assert.Equal(t, leaderboard.PeriodWeek, lb.period)
	assert.Equal(t, 3, lb.limit)
}

func TestRunDailyDigest_DefaultSize(t *testing.T) {
	lb := &fakeLeaderboard{}
	newTestService(&config.Config{}, &fakeBoard{}, lb, &fakeSender{}, nil).runDailyDigest(context.Background())
	assert.Equal(t, defaultDigestSize, lb.limit)
}

func TestRunDailyDigest_QuietDay(t *testing.T) {
	board := &fakeBoard{completions: make([]models.QuestCompletion, 1)}
	sender := &fakeSender{}
	cfg := &config.Config{Scheduler: config.SchedulerConfig{DigestMinCompletions: 2}}

	newTestService(cfg, board, &fakeLeaderboard{}, sender, nil).runDailyDigest(context.Background())

	assert.Empty(t, sender.digests)
}

func TestRunDailyDigest_Errors(t *testing.T) {
	sender := &fakeSender{}
	board := &fakeBoard{err: errors.New("db down")}

	newTestService(&config.Config{}, board, &fakeLeaderboard{}, sender, nil).runDailyDigest(context.Background())
	assert.Empty(t, sender.digests, "nothing sent when the board cannot be read")

	sender.err = errors.New("webhook down")
	newTestService(&config.Config{}, &fakeBoard{}, &fakeLeaderboard{}, sender, nil).runDailyDigest(context.Background())
	assert.Len(t, sender.digests, 1)
}

func TestRunXPRefresh(t *testing.T) {
	board := &fakeBoard{refreshed: 2}
	lb := &fakeLeaderboard{}
	s := newTestService(&config.Config{}, board, lb, &fakeSender{}, nil)

	s.runXPRefresh(context.Background())
	assert.Equal(t, 1, board.refreshes)
	assert.Equal(t, 1, lb.invalidated)

	board.refreshed = 0
	s.runXPRefresh(context.Background())
	assert.Equal(t, 1, lb.invalidated, "no invalidation when nothing changed")

	board.err = errors.New("db down")
	s.runXPRefresh(context.Background())
	assert.Equal(t, 1, lb.invalidated)
}

func TestRunStatePurge(t *testing.T) {
	purger := &fakePurger{removed: 3}
	s := newTestService(&config.Config{}, &fakeBoard{}, &fakeLeaderboard{}, &fakeSender{}, purger)

	s.runStatePurge(context.Background())
	assert.Equal(t, 1, purger.calls)
}

func TestStart(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestService(&config.Config{}, &fakeBoard{}, &fakeLeaderboard{}, &fakeSender{}, nil)
		require.NoError(t, s.Start())
		assert.Nil(t, s.cron)
		s.Stop()
	})

	t.Run("registers jobs", func(t *testing.T) {
		cfg := &config.Config{
			Quests: config.QuestsConfig{Timezone: "America/Chicago"},
			Scheduler: config.SchedulerConfig{
				Enabled:       true,
				XPRefreshTime: "5 0 * * *",
				DigestTime:    "18:00",
			},
		}
		s := newTestService(cfg, &fakeBoard{}, &fakeLeaderboard{}, &fakeSender{}, &fakePurger{})
		require.NoError(t, s.Start())
		defer s.Stop()

		assert.Len(t, s.cron.Entries(), 3)
	})

	t.Run("no purge job without quickbooks", func(t *testing.T) {
		cfg := &config.Config{
			Scheduler: config.SchedulerConfig{
				Enabled:       true,
				XPRefreshTime: "5 0 * * *",
				DigestTime:    "18:00",
			},
		}
		s := newTestService(cfg, &fakeBoard{}, &fakeLeaderboard{}, &fakeSender{}, nil)
		require.NoError(t, s.Start())
		defer s.Stop()

		assert.Len(t, s.cron.Entries(), 2)
	})

	t.Run("invalid digest time", func(t *testing.T) {
		cfg := &config.Config{Scheduler: config.SchedulerConfig{Enabled: true, DigestTime: "late"}}
		s := newTestService(cfg, &fakeBoard{}, &fakeLeaderboard{}, &fakeSender{}, nil)
		assert.Error(t, s.Start())
	})

	t.Run("invalid cron expression", func(t *testing.T) {
		cfg := &config.Config{Scheduler: config.SchedulerConfig{Enabled: true, XPRefreshTime: "whenever"}}
		s := newTestService(cfg, &fakeBoard{}, &fakeLeaderboard{}, &fakeSender{}, nil)
		assert.Error(t, s.Start())
	})
}
