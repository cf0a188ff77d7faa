package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lawnpro/crew-ops/internal/api"
	"github.com/lawnpro/crew-ops/internal/api/dashboard"
	employeesapi "github.com/lawnpro/crew-ops/internal/api/employees"
	proceduresapi "github.com/lawnpro/crew-ops/internal/api/procedures"
	quickbooksapi "github.com/lawnpro/crew-ops/internal/api/quickbooks"
	questsapi "github.com/lawnpro/crew-ops/internal/api/quests"
	"github.com/lawnpro/crew-ops/internal/cache"
	"github.com/lawnpro/crew-ops/internal/llm"
	"github.com/lawnpro/crew-ops/internal/mattermost"
	"github.com/lawnpro/crew-ops/internal/quickbooks"
	"github.com/lawnpro/crew-ops/internal/repository"
	"github.com/lawnpro/crew-ops/internal/service/employees"
	"github.com/lawnpro/crew-ops/internal/service/leaderboard"
	"github.com/lawnpro/crew-ops/internal/service/procedures"
	"github.com/lawnpro/crew-ops/internal/service/quests"
	"github.com/lawnpro/crew-ops/internal/service/scheduler"
)

const shutdownTimeout = 15 * time.Second

func serveCmd(configPath *string) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *configPath, skipMigrate)
		},
	}

	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not apply migrations on startup")
	return cmd
}

func serve(ctx context.Context, configPath string, skipMigrate bool) error {
	cfg, log, db, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info().Str("version", Version).Str("environment", cfg.Server.Environment).Msg("Starting crewops")

	if !skipMigrate {
		if err := db.Migrate(log.Component("migrate")); err != nil {
			return err
		}
	}

	loc, err := cfg.Quests.GetLocation()
	if err != nil {
		return err
	}

	health := map[string]api.HealthChecker{
		"database": func(context.Context) error { return db.Health() },
	}

	var leaderboardCache cache.Cache
	redisCache, err := cache.NewRedisCache(ctx, &cfg.Database.Redis, log.Component("cache"))
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, falling back to in-process leaderboard cache")
		memoryCache, memErr := cache.NewMemoryCache(cache.DefaultMemorySize, log.Component("cache"))
		if memErr != nil {
			return memErr
		}
		leaderboardCache = memoryCache
	} else {
		defer redisCache.Close()
		leaderboardCache = redisCache
		health["redis"] = redisCache.Health
	}

	notifier := mattermost.NewClient(&cfg.Mattermost, log.Component("mattermost"))

	lb := leaderboard.NewService(
		repository.NewXPRepository(db),
		repository.NewCompletionRepository(db),
		leaderboardCache,
		cfg.Quests.LeaderboardTTL(),
		loc,
		log.Component("leaderboard"),
	)
	questService := quests.NewService(db, notifier, lb, loc, log.Component("quests"))

	employeeService := employees.NewService(repository.NewEmployeeRepository(db), questService, log.Component("employees"))
	synced, err := employeeService.SyncFromConfig(ctx, cfg.Employees)
	if err != nil {
		return fmt.Errorf("failed to sync employees: %w", err)
	}
	log.Info().Int("employees", synced).Msg("Synced employee roster")

	handlers := api.Handlers{
		Dashboard: dashboard.NewHandler(questService, lb, log.Component("dashboard")),
		Employees: employeesapi.NewHandler(employeeService, log.Component("employees")),
		Quests:    questsapi.NewHandler(questService, log.Component("quests")),
	}

	model, err := llm.NewClient(&cfg.AI, log.Component("llm"))
	if err != nil {
		log.Warn().Err(err).Msg("Procedure generator disabled")
	} else {
		procedureService := procedures.NewService(
			repository.NewProcedureRepository(db), model, cfg.AI.CompanyName, log.Component("procedures"),
		)
		procedureService.SetAnnouncer(notifier)
		handlers.Procedures = proceduresapi.NewHandler(procedureService, log.Component("procedures"))
		health["llm"] = model.IsModelAvailable
	}

	qb := quickbooks.NewClient(&cfg.QuickBooks, repository.NewQuickBooksRepository(db), log.Component("quickbooks"))
	handlers.QuickBooks = quickbooksapi.NewHandler(qb, log.Component("quickbooks"))

	var purger scheduler.StatePurger
	if cfg.QuickBooks.Enabled() {
		purger = qb
	}
	sched := scheduler.NewService(cfg, questService, lb, notifier, purger, log.Component("scheduler"))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	router := api.NewRouter(handlers, api.Options{
		Identity:    employeeService,
		MetricsPath: metricsPath,
		Health:      health,
		Debug:       log.IsDebug(),
	}, log.Component("http"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.WithCORS(router, cfg.Server.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
