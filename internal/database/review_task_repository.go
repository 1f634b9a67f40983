package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/studyplan/pkg/models"
)

const taskColumns = `id, user_id, topic_id, tier, scheduled_date, status, interval_days, streak, rating, created_at, completed_at`

// ReviewTaskRepository handles database operations for review tasks
type ReviewTaskRepository struct{}

// NewReviewTaskRepository creates a new repository instance
func NewReviewTaskRepository() *ReviewTaskRepository {
	return &ReviewTaskRepository{}
}

// Create inserts a new task and sets its ID. Inserting a second pending task
// for the same user and topic fails with a unique violation.
func (r *ReviewTaskRepository) Create(ctx context.Context, q sqlx.ExtContext, task *models.ReviewTask) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	query := q.Rebind(`
		INSERT INTO review_tasks (
			user_id, topic_id, tier, scheduled_date, status,
			interval_days, streak, rating, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := q.QueryRowxContext(ctx, query,
		task.UserID,
		task.TopicID,
		task.Tier,
		task.ScheduledDate,
		task.Status,
		task.IntervalDays,
		task.ConsecutiveSuccesses,
		task.Rating,
		task.CreatedAt,
		task.CompletedAt,
	).Scan(&task.ID)
	if err != nil {
		return errors.Wrap(err, "failed to create review task")
	}
	return nil
}

// GetByID returns a task by ID
func (r *ReviewTaskRepository) GetByID(ctx context.Context, q sqlx.ExtContext, id int64) (*models.ReviewTask, error) {
	var task models.ReviewTask
	query := q.Rebind(`SELECT ` + taskColumns + ` FROM review_tasks WHERE id = ?`)
	if err := sqlx.GetContext(ctx, q, &task, query, id); err != nil {
		return nil, errors.Wrapf(err, "failed to get review task %d", id)
	}
	return &task, nil
}

// FindPending returns the pending task of a user for a topic, or nil if there is none
func (r *ReviewTaskRepository) FindPending(ctx context.Context, q sqlx.ExtContext, userID, topicID int64) (*models.ReviewTask, error) {
	var task models.ReviewTask
	query := q.Rebind(`
		SELECT ` + taskColumns + ` FROM review_tasks
		WHERE user_id = ? AND topic_id = ? AND status = ?
	`)
	err := sqlx.GetContext(ctx, q, &task, query, userID, topicID, models.TaskPending)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find pending review task")
	}
	return &task, nil
}

// Complete flips a pending task to completed. Returns ErrNotUpdated if the
// task is not pending anymore.
func (r *ReviewTaskRepository) Complete(ctx context.Context, q sqlx.ExtContext, id int64, rating models.Rating, at time.Time) error {
	query := q.Rebind(`
		UPDATE review_tasks SET status = ?, rating = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`)
	result, err := q.ExecContext(ctx, query, models.TaskCompleted, rating, at, id, models.TaskPending)
	if err != nil {
		return errors.Wrapf(err, "failed to complete review task %d", id)
	}
	return rowsAffected(result)
}

// Delete removes a task outright
func (r *ReviewTaskRepository) Delete(ctx context.Context, q sqlx.ExtContext, id int64) error {
	query := q.Rebind(`DELETE FROM review_tasks WHERE id = ?`)
	result, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete review task %d", id)
	}
	return rowsAffected(result)
}

// ListDue returns the pending tasks of a user scheduled on or before asOf
func (r *ReviewTaskRepository) ListDue(ctx context.Context, q sqlx.ExtContext, userID int64, asOf models.Date) ([]models.ReviewTask, error) {
	tasks := []models.ReviewTask{}
	query := q.Rebind(`
		SELECT ` + taskColumns + ` FROM review_tasks
		WHERE user_id = ? AND status = ? AND scheduled_date <= ?
		ORDER BY scheduled_date ASC, topic_id ASC
	`)
	if err := sqlx.SelectContext(ctx, q, &tasks, query, userID, models.TaskPending, asOf); err != nil {
		return nil, errors.Wrap(err, "failed to list due review tasks")
	}
	return tasks, nil
}

// ListPending returns every pending task of a user, including future ones
func (r *ReviewTaskRepository) ListPending(ctx context.Context, q sqlx.ExtContext, userID int64) ([]models.ReviewTask, error) {
	tasks := []models.ReviewTask{}
	query := q.Rebind(`
		SELECT ` + taskColumns + ` FROM review_tasks
		WHERE user_id = ? AND status = ?
		ORDER BY scheduled_date ASC, topic_id ASC
	`)
	if err := sqlx.SelectContext(ctx, q, &tasks, query, userID, models.TaskPending); err != nil {
		return nil, errors.Wrap(err, "failed to list pending review tasks")
	}
	return tasks, nil
}

// ListByTopic returns the full history of a topic for a user, newest first
func (r *ReviewTaskRepository) ListByTopic(ctx context.Context, q sqlx.ExtContext, userID, topicID int64) ([]models.ReviewTask, error) {
	tasks := []models.ReviewTask{}
	query := q.Rebind(`
		SELECT ` + taskColumns + ` FROM review_tasks
		WHERE user_id = ? AND topic_id = ?
		ORDER BY id DESC
	`)
	if err := sqlx.SelectContext(ctx, q, &tasks, query, userID, topicID); err != nil {
		return nil, errors.Wrap(err, "failed to list review tasks")
	}
	return tasks, nil
}
