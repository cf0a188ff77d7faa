// Package scheduler runs the quest board's cron jobs: the nightly XP cache
// refresh, the end-of-day digest and OAuth state cleanup.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lawnpro/crew-ops/internal/config"
	"github.com/lawnpro/crew-ops/internal/mattermost"
	prommetrics "github.com/lawnpro/crew-ops/internal/metrics"
	"github.com/lawnpro/crew-ops/internal/models"
	"github.com/lawnpro/crew-ops/internal/service/leaderboard"
	"github.com/lawnpro/crew-ops/internal/service/quests"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

// Job names used in logs and metrics.
const (
	JobXPRefresh  = "xp_refresh"
	JobDigest     = "daily_digest"
	JobStatePurge = "oauth_state_purge"
)

const statePurgeSchedule = "@hourly"

// QuestBoard is the quest service surface the jobs need.
type QuestBoard interface {
	Today() string
	Board(ctx context.Context, userEmail string) (*quests.Board, error)
	CompletionsToday() ([]models.QuestCompletion, error)
	RefreshXPCache(ctx context.Context) (int, error)
}

// Leaderboard is the leaderboard service surface the jobs need.
type Leaderboard interface {
	GetLeaderboard(ctx context.Context, period string, limit int) ([]leaderboard.Entry, error)
	Invalidate(ctx context.Context)
}

// DigestSender posts the daily digest.
type DigestSender interface {
	SendDailyDigest(ctx context.Context, digest mattermost.Digest) error
}

// StatePurger removes abandoned OAuth authorization requests.
type StatePurger interface {
	PurgeExpiredStates(ctx context.Context) (int64, error)
}

// Service handles cron scheduling.
type Service struct {
	config      *config.Config
	board       QuestBoard
	leaderboard Leaderboard
	sender      DigestSender
	purger      StatePurger
	log         *logger.Logger
	cron        *cron.Cron
}

// NewService creates a new scheduler service. purger may be nil when
// QuickBooks is not configured.
func NewService(
	cfg *config.Config,
	board QuestBoard,
	lb Leaderboard,
	sender DigestSender,
	purger StatePurger,
	log *logger.Logger,
) *Service {
	return &Service{
		config:      cfg,
		board:       board,
		leaderboard: lb,
		sender:      sender,
		purger:      purger,
		log:         log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Scheduler.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.Quests.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Quests.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	if err := s.register(); err != nil {
		return err
	}

	s.cron.Start()

	for _, entry := range s.cron.Entries() {
		s.log.Debug().Str("next_run", entry.Next.Format(time.RFC3339)).Msg("Scheduled job")
	}

	s.log.Info().
		Str("xp_refresh", s.config.Scheduler.XPRefreshTime).
		Str("digest_time", s.config.Scheduler.DigestTime).
		Str("timezone", location.String()).
		Bool("skip_weekends", s.config.Scheduler.SkipWeekends).
		Int("jobs", len(s.cron.Entries())).
		Msg("Scheduler started successfully")

	return nil
}

func (s *Service) register() error {
	if s.config.Scheduler.XPRefreshTime != "" {
		if _, err := s.cron.AddFunc(s.config.Scheduler.XPRefreshTime, func() {
			s.runXPRefresh(context.Background())
		}); err != nil {
			return fmt.Errorf("failed to register xp refresh job: %w", err)
		}
	}

	if s.config.Scheduler.DigestTime != "" {
		digestExpr, err := s.buildCronExpression()
		if err != nil {
			return fmt.Errorf("failed to build cron expression: %w", err)
		}
		if _, err := s.cron.AddFunc(digestExpr, func() {
			s.runDailyDigest(context.Background())
		}); err != nil {
			return fmt.Errorf("failed to register daily digest job: %w", err)
		}
	}

	if s.purger != nil {
		if _, err := s.cron.AddFunc(statePurgeSchedule, func() {
			s.runStatePurge(context.Background())
		}); err != nil {
			return fmt.Errorf("failed to register oauth state purge job: %w", err)
		}
	}

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression generates the digest cron expression from config.
func (s *Service) buildCronExpression() (string, error) {
	// Parse time string (format: "HH:MM")
	parts := strings.Split(s.config.Scheduler.DigestTime, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", s.config.Scheduler.DigestTime)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	// Format: "minute hour day month weekday"
	if s.config.Scheduler.SkipWeekends {
		return fmt.Sprintf("%d %d * * 1-5", minute, hour), nil
	}

	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// track records duration and last-run metrics for a job.
func track(job string) func() {
	start := time.Now()
	return func() {
		prommetrics.ObserveSchedulerJobDuration(job, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(job)
	}
}

// runXPRefresh rederives cached streaks and levels. Streaks lapse at
// midnight without any write, so the leaderboard cache is dropped too.
func (s *Service) runXPRefresh(ctx context.Context) {
	defer track(JobXPRefresh)()
	start := time.Now()

	s.log.Info().Msg("Running XP refresh job")

	updated, err := s.board.RefreshXPCache(ctx)
	if err != nil {
		s.log.Error().
			Err(err).
			Int("updated", updated).
			Dur("duration", time.Since(start)).
			Msg("XP refresh job failed")
		prommetrics.RecordSchedulerJobRun(JobXPRefresh, "error")
		return
	}

	if updated > 0 {
		s.leaderboard.Invalidate(ctx)
	}

	prommetrics.RecordSchedulerJobRun(JobXPRefresh, "success")
	s.log.Info().
		Int("updated", updated).
		Dur("duration", time.Since(start)).
		Msg("XP refresh job completed successfully")
}

// runDailyDigest posts today's quest board summary.
func (s *Service) runDailyDigest(ctx context.Context) {
	defer track(JobDigest)()
	start := time.Now()

	s.log.Info().Msg("Running daily digest job")

	digest, err := s.buildDigest(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to build daily digest")
		prommetrics.RecordSchedulerJobRun(JobDigest, "error")
		prommetrics.RecordSchedulerNotificationFailed("query_error")
		return
	}

	if digest.Completions < s.config.Scheduler.DigestMinCompletions {
		s.log.Debug().
			Int("completions", digest.Completions).
			Int("min_completions", s.config.Scheduler.DigestMinCompletions).
			Msg("Quiet day, skipping digest")
		prommetrics.RecordSchedulerJobRun(JobDigest, "success")
		return
	}

	sendStart := time.Now()
	if err := s.sender.SendDailyDigest(ctx, *digest); err != nil {
		s.log.Error().
			Err(err).
			Dur("send_duration", time.Since(sendStart)).
			Msg("Failed to send daily digest")
		prommetrics.RecordSchedulerJobRun(JobDigest, "error")
		prommetrics.RecordSchedulerNotificationFailed("mattermost_error")
		return
	}

	prommetrics.RecordSchedulerJobRun(JobDigest, "success")
	prommetrics.RecordSchedulerNotificationSent()

	s.log.Info().
		Int("completions", digest.Completions).
		Int("leaders", len(digest.Leaders)).
		Int("team_quests", len(digest.TeamQuests)).
		Dur("total_duration", time.Since(start)).
		Msg("Successfully sent daily digest")
}

// runStatePurge deletes expired QuickBooks authorization requests.
func (s *Service) runStatePurge(ctx context.Context) {
	defer track(JobStatePurge)()

	removed, err := s.purger.PurgeExpiredStates(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("OAuth state purge failed")
		prommetrics.RecordSchedulerJobRun(JobStatePurge, "error")
		return
	}

	prommetrics.RecordSchedulerJobRun(JobStatePurge, "success")
	if removed > 0 {
		s.log.Info().Int64("removed", removed).Msg("Purged expired OAuth states")
	}
}
