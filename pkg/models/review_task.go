package models

import "time"

// TaskStatus is the lifecycle state of a review task
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// Rating is the qualitative feedback given after a review
type Rating string

const (
	RatingVeryPoor  Rating = "very_poor"
	RatingPoor      Rating = "poor"
	RatingGood      Rating = "good"
	RatingExcellent Rating = "excellent"
)

// Valid reports whether r is one of the four ratings
func (r Rating) Valid() bool {
	switch r {
	case RatingVeryPoor, RatingPoor, RatingGood, RatingExcellent:
		return true
	}
	return false
}

// ReviewTask is a scheduled re-exposure to a topic
type ReviewTask struct {
	ID                   int64        `json:"id" db:"id"`
	UserID               int64        `json:"user_id" db:"user_id"`
	TopicID              int64        `json:"topic_id" db:"topic_id"`
	Tier                 PriorityTier `json:"tier" db:"tier"`
	ScheduledDate        Date         `json:"scheduled_date" db:"scheduled_date"`
	Status               TaskStatus   `json:"status" db:"status"`
	IntervalDays         int          `json:"interval_days" db:"interval_days"`
	ConsecutiveSuccesses int          `json:"consecutive_successes" db:"streak"`
	Rating               *Rating      `json:"rating,omitempty" db:"rating"`
	CreatedAt            time.Time    `json:"created_at" db:"created_at"`
	CompletedAt          *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
}
