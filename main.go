package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/studyplan/internal/bot"
	"github.com/example/studyplan/internal/catalog"
	"github.com/example/studyplan/internal/config"
	"github.com/example/studyplan/internal/database"
	"github.com/example/studyplan/internal/excel"
	"github.com/example/studyplan/internal/logger"
	"github.com/example/studyplan/internal/metrics"
	"github.com/example/studyplan/internal/progress"
	"github.com/example/studyplan/internal/review"
	"github.com/example/studyplan/internal/scheduler"
	"github.com/example/studyplan/internal/spaced_repetition"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the database
	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	store := database.NewStore(db)
	defer store.Close()
	log.Info("database ready", "driver", cfg.DBType)

	achievements := catalog.DefaultAchievements()
	if cfg.CatalogFile != "" {
		importCfg := excel.DefaultImportConfig()
		importCfg.FilePath = cfg.CatalogFile
		result, err := excel.ImportTopics(ctx, store, importCfg)
		if err != nil {
			return err
		}
		log.Info("imported topic catalogue",
			"file", cfg.CatalogFile, "processed", result.TotalProcessed,
			"created", result.Created, "updated", result.Updated, "skipped", result.Skipped)
		for _, e := range result.Errors {
			log.Warn("catalogue row skipped", "reason", e)
		}

		if excel.HasSheet(cfg.CatalogFile, excel.AchievementsSheet) {
			if achievements, err = excel.LoadAchievements(cfg.CatalogFile); err != nil {
				return err
			}
			log.Info("loaded achievements", "count", len(achievements))
		}
	}

	policy := spaced_repetition.NewPolicy()
	policy.MaxInterval = cfg.MaxIntervalDays

	topics := catalog.NewDBCatalog(store)
	reviews := review.NewService(store, topics,
		review.WithPolicy(policy),
		review.WithLocation(cfg.Location),
		review.WithLogger(log))
	prog := progress.NewService(store, topics,
		progress.WithAchievements(achievements),
		progress.WithLocation(cfg.Location),
		progress.WithLogger(log))
	log.Info("services ready", "today", prog.Today().String(), "achievements", len(achievements))

	if cfg.SchedulerEnabled && cfg.TelegramToken != "" {
		notifier, err := bot.NewNotifier(cfg.TelegramToken, log)
		if err != nil {
			return err
		}
		s := scheduler.New(cfg, store, reviews, notifier, log)
		if err := s.Start(); err != nil {
			return err
		}
		defer s.Stop()
		log.Info("reminder scheduler started",
			"start_hour", cfg.NotificationStartHour, "end_hour", cfg.NotificationEndHour)
	} else {
		log.Info("reminder scheduler disabled")
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			log.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics listener failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info("study engine started. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}
