package models

import "time"

// UserProfile is the small mutable per-user state next to the session history
type UserProfile struct {
	UserID           int64     `json:"user_id" db:"user_id"`
	DailyGoal        int       `json:"daily_goal" db:"daily_goal"`
	XPTotal          int64     `json:"xp_total" db:"xp_total"`
	Version          uint64    `json:"version" db:"version"`
	RemindersEnabled bool      `json:"reminders_enabled" db:"reminders_enabled"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}
