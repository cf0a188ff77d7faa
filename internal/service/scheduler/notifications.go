package scheduler

import (
	"context"
	"fmt"

	"github.com/lawnpro/crew-ops/internal/mattermost"
	"github.com/lawnpro/crew-ops/internal/service/leaderboard"
	"github.com/lawnpro/crew-ops/internal/service/quests"
)

const defaultDigestSize = 5

// buildDigest collects today's completions, the weekly leaders and the team
// quests that have not reached their target.
func (s *Service) buildDigest(ctx context.Context) (*mattermost.Digest, error) {
	completions, err := s.board.CompletionsToday()
	if err != nil {
		return nil, err
	}

	size := s.config.Scheduler.DigestSize
	if size <= 0 {
		size = defaultDigestSize
	}

	leaders, err := s.leaderboard.GetLeaderboard(ctx, leaderboard.PeriodWeek, size)
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly leaderboard: %w", err)
	}

	board, err := s.board.Board(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get quest board: %w", err)
	}

	return &mattermost.Digest{
		Date:        s.board.Today(),
		Completions: len(completions),
		Leaders:     buildDigestEntries(leaders),
		TeamQuests:  openTeamQuests(board.Quests),
	}, nil
}

// buildDigestEntries transforms leaderboard entries into digest lines.
func buildDigestEntries(entries []leaderboard.Entry) []mattermost.DigestEntry {
	lines := make([]mattermost.DigestEntry, 0, len(entries))
	for _, e := range entries {
		name := e.DisplayName
		if name == "" {
			name = e.UserEmail
		}
		lines = append(lines, mattermost.DigestEntry{
			Name:   name,
			XP:     e.XP,
			Level:  e.Level,
			Streak: e.Streak,
		})
	}
	return lines
}

// openTeamQuests returns available team quests still short of their target.
func openTeamQuests(board []quests.BoardQuest) []mattermost.TeamQuestStatus {
	var open []mattermost.TeamQuestStatus
	for _, q := range board {
		if !q.IsTeam() || !q.Available || q.TeamCount >= q.TargetCount {
			continue
		}
		open = append(open, mattermost.TeamQuestStatus{
			Title:    q.Title,
			Count:    q.TeamCount,
			Target:   q.TargetCount,
			Progress: q.TeamProgress,
		})
	}
	return open
}
