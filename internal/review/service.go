// Package review keeps the single pending review task of every studied topic
// and reschedules it from the rating the user gives after each review.
package review

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/studyplan/internal/catalog"
	"github.com/example/studyplan/internal/database"
	"github.com/example/studyplan/internal/errs"
	"github.com/example/studyplan/internal/logger"
	"github.com/example/studyplan/internal/metrics"
	"github.com/example/studyplan/internal/spaced_repetition"
	"github.com/example/studyplan/pkg/models"
)

// Service is the review scheduler
type Service struct {
	store   *database.Store
	catalog catalog.Catalog
	policy  *spaced_repetition.Policy
	log     *logger.Logger
	now     func() time.Time
	loc     *time.Location
}

// Option configures a Service
type Option func(*Service)

// WithPolicy replaces the default interval policy
func WithPolicy(p *spaced_repetition.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the location "today" is computed in
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a review scheduler
func NewService(store *database.Store, topics catalog.Catalog, opts ...Option) *Service {
	s := &Service{
		store:   store,
		catalog: topics,
		policy:  spaced_repetition.NewPolicy(),
		log:     logger.Nop(),
		now:     time.Now,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("service", "ReviewScheduler")
	return s
}

// Today returns the current date in the scheduler's location
func (s *Service) Today() models.Date {
	return models.DateOf(s.now().In(s.loc))
}

// ScheduleInitialReview creates the first pending review of a topic once it
// is marked as studied. Fails with InvalidState if one is already pending.
func (s *Service) ScheduleInitialReview(ctx context.Context, userID, topicID int64, tier models.PriorityTier) (*models.ReviewTask, error) {
	const op = "review.ScheduleInitialReview"

	if !tier.Valid() {
		return nil, errs.E(errs.InvalidInput, op, "unknown priority tier %q", tier)
	}
	interval, err := s.policy.BaseInterval(tier)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, op, err)
	}
	if _, err := s.catalog.GetTopic(ctx, topicID); err != nil {
		return nil, errs.Wrap(errs.Persistence, op, err)
	}

	now := s.now()
	task := &models.ReviewTask{
		UserID:        userID,
		TopicID:       topicID,
		Tier:          tier,
		ScheduledDate: models.DateOf(now.In(s.loc)).AddDays(interval),
		Status:        models.TaskPending,
		IntervalDays:  interval,
		CreatedAt:     now.UTC(),
	}

	_, err = s.store.Mutate(ctx, func(tx *sqlx.Tx) (int64, error) {
		if err := s.requireProfile(ctx, tx, op, userID); err != nil {
			return 0, err
		}
		existing, err := s.store.Tasks.FindPending(ctx, tx, userID, topicID)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			return 0, errs.E(errs.InvalidState, op, "topic %d already has pending task %d", topicID, existing.ID)
		}
		return userID, s.store.Tasks.Create(ctx, tx, task)
	})
	metrics.ObserveMutation("schedule_initial_review", err)
	if err != nil {
		return nil, database.Classify(op, err)
	}

	s.log.Info("scheduled initial review",
		"user_id", userID, "topic_id", topicID, "task_id", task.ID, "due", task.ScheduledDate.String())
	return task, nil
}

// ResolveReview completes a pending task with the given rating and creates
// its successor in the same transaction. Returns the successor.
func (s *Service) ResolveReview(ctx context.Context, taskID int64, rating models.Rating) (*models.ReviewTask, error) {
	const op = "review.ResolveReview"

	if !rating.Valid() {
		return nil, errs.E(errs.InvalidInput, op, "unknown rating %q", rating)
	}

	now := s.now()
	today := models.DateOf(now.In(s.loc))
	var next *models.ReviewTask

	_, err := s.store.Mutate(ctx, func(tx *sqlx.Tx) (int64, error) {
		task, err := s.store.Tasks.GetByID(ctx, tx, taskID)
		if database.IsNotFound(err) {
			return 0, errs.E(errs.NotFound, op, "review task %d", taskID)
		}
		if err != nil {
			return 0, err
		}
		if task.Status != models.TaskPending {
			return 0, errs.E(errs.InvalidState, op, "review task %d is %s", taskID, task.Status)
		}

		interval, streak, err := s.policy.ComputeNextInterval(task.Tier, task.IntervalDays, task.ConsecutiveSuccesses, rating)
		if err != nil {
			return 0, errs.Wrap(errs.InvalidState, op, err)
		}

		if err := s.store.Tasks.Complete(ctx, tx, task.ID, rating, now.UTC()); err != nil {
			if errors.Is(err, database.ErrNotUpdated) {
				return 0, errs.E(errs.InvalidState, op, "review task %d is no longer pending", taskID)
			}
			return 0, err
		}

		next = &models.ReviewTask{
			UserID:               task.UserID,
			TopicID:              task.TopicID,
			Tier:                 task.Tier,
			ScheduledDate:        today.AddDays(interval),
			Status:               models.TaskPending,
			IntervalDays:         interval,
			ConsecutiveSuccesses: streak,
			CreatedAt:            now.UTC(),
		}
		return task.UserID, s.store.Tasks.Create(ctx, tx, next)
	})
	metrics.ObserveMutation("resolve_review", err)
	if err != nil {
		return nil, database.Classify(op, err)
	}

	s.log.Info("resolved review",
		"task_id", taskID, "rating", rating, "next_task_id", next.ID,
		"interval_days", next.IntervalDays, "due", next.ScheduledDate.String())
	return next, nil
}

// DeleteTask removes a task outright. No successor is created, so the topic
// is simply not scheduled anymore.
func (s *Service) DeleteTask(ctx context.Context, taskID int64) error {
	const op = "review.DeleteTask"

	_, err := s.store.Mutate(ctx, func(tx *sqlx.Tx) (int64, error) {
		task, err := s.store.Tasks.GetByID(ctx, tx, taskID)
		if database.IsNotFound(err) {
			return 0, errs.E(errs.NotFound, op, "review task %d", taskID)
		}
		if err != nil {
			return 0, err
		}
		return task.UserID, s.store.Tasks.Delete(ctx, tx, taskID)
	})
	metrics.ObserveMutation("delete_task", err)
	if err != nil {
		return database.Classify(op, err)
	}

	s.log.Info("deleted review task", "task_id", taskID)
	return nil
}

// GetTask returns a task by ID
func (s *Service) GetTask(ctx context.Context, taskID int64) (*models.ReviewTask, error) {
	task, err := s.store.Tasks.GetByID(ctx, s.store.DB(), taskID)
	if err != nil {
		return nil, database.Classify("review.GetTask", err)
	}
	return task, nil
}

// ListDue returns the pending tasks of a user scheduled on or before asOf,
// ordered by date and then topic.
func (s *Service) ListDue(ctx context.Context, userID int64, asOf models.Date) ([]models.ReviewTask, error) {
	return s.ListDueIn(ctx, s.store.DB(), userID, asOf)
}

// ListDueIn is ListDue against an open transaction
func (s *Service) ListDueIn(ctx context.Context, q sqlx.ExtContext, userID int64, asOf models.Date) ([]models.ReviewTask, error) {
	tasks, err := s.store.Tasks.ListDue(ctx, q, userID, asOf)
	if err != nil {
		return nil, database.Classify("review.ListDue", err)
	}
	return tasks, nil
}

// ListPending returns the whole agenda of a user, including future reviews
func (s *Service) ListPending(ctx context.Context, userID int64) ([]models.ReviewTask, error) {
	return s.ListPendingIn(ctx, s.store.DB(), userID)
}

// ListPendingIn is ListPending against an open transaction
func (s *Service) ListPendingIn(ctx context.Context, q sqlx.ExtContext, userID int64) ([]models.ReviewTask, error) {
	tasks, err := s.store.Tasks.ListPending(ctx, q, userID)
	if err != nil {
		return nil, database.Classify("review.ListPending", err)
	}
	return tasks, nil
}

// History returns every task ever scheduled for a topic, newest first
func (s *Service) History(ctx context.Context, userID, topicID int64) ([]models.ReviewTask, error) {
	tasks, err := s.store.Tasks.ListByTopic(ctx, s.store.DB(), userID, topicID)
	if err != nil {
		return nil, database.Classify("review.History", err)
	}
	return tasks, nil
}

// IsMastered reports whether the task's topic counts as mastered
func (s *Service) IsMastered(task *models.ReviewTask) bool {
	return s.policy.IsMastered(task)
}

func (s *Service) requireProfile(ctx context.Context, q sqlx.ExtContext, op string, userID int64) error {
	_, err := s.store.Profiles.GetByID(ctx, q, userID)
	if database.IsNotFound(err) {
		return errs.E(errs.NotFound, op, "user %d", userID)
	}
	return err
}
