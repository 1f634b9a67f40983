package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"

	"github.com/example/studyplan/internal/config"
	"github.com/example/studyplan/internal/database"
	"github.com/example/studyplan/internal/logger"
	"github.com/example/studyplan/internal/metrics"
	"github.com/example/studyplan/internal/review"
)

// Scheduler sends hourly reminders to users with reviews due
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	store     *database.Store
	reviews   *review.Service
	log       *logger.Logger

	startHour int
	endHour   int
	loc       *time.Location
	now       func() time.Time
}

// Notifier interface for sending notifications
type Notifier interface {
	SendReminders(ctx context.Context, userID int64, count int) error
}

// New creates a new scheduler instance
func New(cfg *config.Config, store *database.Store, reviews *review.Service, notifier Notifier, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(cfg.Location),
		notifier:  notifier,
		store:     store,
		reviews:   reviews,
		log:       log.With("component", "scheduler"),
		startHour: cfg.NotificationStartHour,
		endHour:   cfg.NotificationEndHour,
		loc:       cfg.Location,
		now:       time.Now,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	// Hourly check for users who need reminders
	if _, err := s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders); err != nil {
		return errors.Wrap(err, "failed to schedule reminder job")
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) checkAndSendReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := s.CheckAndSend(ctx); err != nil {
		s.log.Error("reminder check failed", "error", err)
	}
}

// CheckAndSend notifies every user with reminders enabled and reviews due
// today. Outside the notification hours it does nothing. Returns the number
// of reminders sent.
func (s *Scheduler) CheckAndSend(ctx context.Context) (int, error) {
	currentHour := s.now().In(s.loc).Hour()
	if currentHour < s.startHour || currentHour > s.endHour {
		s.log.Debug("outside notification hours, skipping reminders",
			"hour", currentHour, "start", s.startHour, "end", s.endHour)
		return 0, nil
	}

	profiles, err := s.store.Profiles.ListForReminders(ctx, s.store.DB())
	if err != nil {
		return 0, errors.Wrap(err, "failed to list users for reminders")
	}

	sent := 0
	for _, p := range profiles {
		ok, err := s.remind(ctx, p.UserID)
		if err != nil {
			s.log.Warn("failed to send reminder", "user_id", p.UserID, "error", err)
			continue
		}
		if ok {
			sent++
		}
	}
	s.log.Info("reminder check finished", "users", len(profiles), "sent", sent)
	return sent, nil
}

// RunManualCheck forces a check for a specific user, ignoring the
// notification hours
func (s *Scheduler) RunManualCheck(ctx context.Context, userID int64) error {
	_, err := s.remind(ctx, userID)
	return err
}

func (s *Scheduler) remind(ctx context.Context, userID int64) (bool, error) {
	today := s.reviews.Today()
	due, err := s.reviews.ListDue(ctx, userID, today)
	if err != nil {
		return false, err
	}
	if len(due) == 0 {
		return false, nil
	}

	if err := s.notifier.SendReminders(ctx, userID, len(due)); err != nil {
		metrics.RemindersSent.WithLabelValues("error").Inc()
		return false, err
	}
	metrics.RemindersSent.WithLabelValues("ok").Inc()
	return true, nil
}
