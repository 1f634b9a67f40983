package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/studyplan/pkg/models"
)

// sessionRow is the storage shape of a session; ts is kept as unix milliseconds
type sessionRow struct {
	ID        int64         `db:"id"`
	UserID    int64         `db:"user_id"`
	TopicID   sql.NullInt64 `db:"topic_id"`
	Phase     models.Phase  `db:"phase"`
	Correct   int           `db:"correct"`
	Attempted int           `db:"attempted"`
	TS        int64         `db:"ts"`
}

func (r sessionRow) toModel() models.StudySession {
	s := models.StudySession{
		ID:        r.ID,
		UserID:    r.UserID,
		Phase:     r.Phase,
		Correct:   r.Correct,
		Attempted: r.Attempted,
		Timestamp: time.UnixMilli(r.TS).UTC(),
	}
	if r.TopicID.Valid {
		id := r.TopicID.Int64
		s.TopicID = &id
	}
	return s
}

// TopicTotals is the per-topic sum of a set of sessions; TopicID is nil for exams
type TopicTotals struct {
	TopicID   *int64 `db:"topic_id"`
	Correct   int64  `db:"correct"`
	Attempted int64  `db:"attempted"`
}

// SessionRepository handles database operations for study sessions.
// Sessions are append-only: there is no update or delete.
type SessionRepository struct{}

// NewSessionRepository creates a new repository instance
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{}
}

// Create appends a session and sets its ID
func (r *SessionRepository) Create(ctx context.Context, q sqlx.ExtContext, s *models.StudySession) error {
	var topicID sql.NullInt64
	if s.TopicID != nil {
		topicID = sql.NullInt64{Int64: *s.TopicID, Valid: true}
	}
	query := q.Rebind(`
		INSERT INTO sessions (user_id, topic_id, phase, correct, attempted, ts)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := q.QueryRowxContext(ctx, query,
		s.UserID, topicID, s.Phase, s.Correct, s.Attempted, s.Timestamp.UnixMilli(),
	).Scan(&s.ID)
	if err != nil {
		return errors.Wrap(err, "failed to create session")
	}
	return nil
}

// ListBetween returns the sessions of a user with from <= ts < to, oldest first
func (r *SessionRepository) ListBetween(ctx context.Context, q sqlx.ExtContext, userID int64, from, to time.Time) ([]models.StudySession, error) {
	var rows []sessionRow
	query := q.Rebind(`
		SELECT id, user_id, topic_id, phase, correct, attempted, ts
		FROM sessions
		WHERE user_id = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC, id ASC
	`)
	if err := sqlx.SelectContext(ctx, q, &rows, query, userID, from.UnixMilli(), to.UnixMilli()); err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	sessions := make([]models.StudySession, len(rows))
	for i, row := range rows {
		sessions[i] = row.toModel()
	}
	return sessions, nil
}

// SumAttempted returns the cumulative attempted count of a user
func (r *SessionRepository) SumAttempted(ctx context.Context, q sqlx.ExtContext, userID int64) (int64, error) {
	var total int64
	query := q.Rebind(`SELECT COALESCE(SUM(attempted), 0) FROM sessions WHERE user_id = ?`)
	if err := sqlx.GetContext(ctx, q, &total, query, userID); err != nil {
		return 0, errors.Wrap(err, "failed to sum attempted questions")
	}
	return total, nil
}

// SumAttemptedBetween returns the attempted count of a user with from <= ts < to
func (r *SessionRepository) SumAttemptedBetween(ctx context.Context, q sqlx.ExtContext, userID int64, from, to time.Time) (int64, error) {
	var total int64
	query := q.Rebind(`
		SELECT COALESCE(SUM(attempted), 0) FROM sessions
		WHERE user_id = ? AND ts >= ? AND ts < ?
	`)
	if err := sqlx.GetContext(ctx, q, &total, query, userID, from.UnixMilli(), to.UnixMilli()); err != nil {
		return 0, errors.Wrap(err, "failed to sum attempted questions")
	}
	return total, nil
}

// TotalsByTopic sums correct and attempted per topic with from <= ts < to
func (r *SessionRepository) TotalsByTopic(ctx context.Context, q sqlx.ExtContext, userID int64, from, to time.Time) ([]TopicTotals, error) {
	totals := []TopicTotals{}
	query := q.Rebind(`
		SELECT topic_id, SUM(correct) AS correct, SUM(attempted) AS attempted
		FROM sessions
		WHERE user_id = ? AND ts >= ? AND ts < ?
		GROUP BY topic_id
		ORDER BY topic_id
	`)
	if err := sqlx.SelectContext(ctx, q, &totals, query, userID, from.UnixMilli(), to.UnixMilli()); err != nil {
		return nil, errors.Wrap(err, "failed to sum sessions by topic")
	}
	return totals, nil
}
