package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/studyplan/pkg/models"
)

const profileColumns = `user_id, daily_goal, xp_total, version, reminders_enabled, created_at, updated_at`

// ProfileRepository handles database operations for user profiles
type ProfileRepository struct{}

// NewProfileRepository creates a new repository instance
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{}
}

// Create inserts a new profile
func (r *ProfileRepository) Create(ctx context.Context, q sqlx.ExtContext, p *models.UserProfile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt
	query := q.Rebind(`
		INSERT INTO profiles (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := q.ExecContext(ctx, query,
		p.UserID, p.DailyGoal, p.XPTotal, p.Version, p.RemindersEnabled, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "failed to create profile %d", p.UserID)
	}
	return nil
}

// GetByID returns the profile of a user
func (r *ProfileRepository) GetByID(ctx context.Context, q sqlx.ExtContext, userID int64) (*models.UserProfile, error) {
	var p models.UserProfile
	query := q.Rebind(`SELECT ` + profileColumns + ` FROM profiles WHERE user_id = ?`)
	if err := sqlx.GetContext(ctx, q, &p, query, userID); err != nil {
		return nil, errors.Wrapf(err, "failed to get profile %d", userID)
	}
	return &p, nil
}

// ListForReminders returns profiles that accept reminders
func (r *ProfileRepository) ListForReminders(ctx context.Context, q sqlx.ExtContext) ([]models.UserProfile, error) {
	profiles := []models.UserProfile{}
	query := q.Rebind(`SELECT ` + profileColumns + ` FROM profiles WHERE reminders_enabled = ? ORDER BY user_id`)
	if err := sqlx.SelectContext(ctx, q, &profiles, query, true); err != nil {
		return nil, errors.Wrap(err, "failed to list profiles for reminders")
	}
	return profiles, nil
}

// AddXP adds delta to the cumulative XP counter and returns the new total
func (r *ProfileRepository) AddXP(ctx context.Context, q sqlx.ExtContext, userID int64, delta int64) (int64, error) {
	var total int64
	query := q.Rebind(`
		UPDATE profiles SET xp_total = xp_total + ?, updated_at = ?
		WHERE user_id = ?
		RETURNING xp_total
	`)
	if err := q.QueryRowxContext(ctx, query, delta, time.Now().UTC(), userID).Scan(&total); err != nil {
		return 0, errors.Wrapf(err, "failed to add xp for %d", userID)
	}
	return total, nil
}

// UpdateDailyGoal sets the daily goal of a user
func (r *ProfileRepository) UpdateDailyGoal(ctx context.Context, q sqlx.ExtContext, userID int64, goal int) error {
	query := q.Rebind(`UPDATE profiles SET daily_goal = ?, updated_at = ? WHERE user_id = ?`)
	result, err := q.ExecContext(ctx, query, goal, time.Now().UTC(), userID)
	if err != nil {
		return errors.Wrapf(err, "failed to update daily goal for %d", userID)
	}
	return rowsAffected(result)
}

// SetReminders enables or disables reminders for a user
func (r *ProfileRepository) SetReminders(ctx context.Context, q sqlx.ExtContext, userID int64, enabled bool) error {
	query := q.Rebind(`UPDATE profiles SET reminders_enabled = ?, updated_at = ? WHERE user_id = ?`)
	result, err := q.ExecContext(ctx, query, enabled, time.Now().UTC(), userID)
	if err != nil {
		return errors.Wrapf(err, "failed to update reminders for %d", userID)
	}
	return rowsAffected(result)
}

// BumpVersion increments the version counter of a user and returns the new value
func (r *ProfileRepository) BumpVersion(ctx context.Context, q sqlx.ExtContext, userID int64) (uint64, error) {
	var version uint64
	query := q.Rebind(`UPDATE profiles SET version = version + 1 WHERE user_id = ? RETURNING version`)
	if err := q.QueryRowxContext(ctx, query, userID).Scan(&version); err != nil {
		return 0, errors.Wrapf(err, "failed to bump version for %d", userID)
	}
	return version, nil
}

// GetVersion returns the current version counter of a user
func (r *ProfileRepository) GetVersion(ctx context.Context, q sqlx.ExtContext, userID int64) (uint64, error) {
	var version uint64
	query := q.Rebind(`SELECT version FROM profiles WHERE user_id = ?`)
	if err := sqlx.GetContext(ctx, q, &version, query, userID); err != nil {
		return 0, errors.Wrapf(err, "failed to get version for %d", userID)
	}
	return version, nil
}
