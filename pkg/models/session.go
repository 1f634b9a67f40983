package models

import "time"

// Phase is the study phase a session was recorded under
type Phase string

const (
	PhasePreStudy  Phase = "pre_study"
	PhasePostStudy Phase = "post_study"
	PhaseReview    Phase = "review"
	PhaseExam      Phase = "exam"
)

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	switch p {
	case PhasePreStudy, PhasePostStudy, PhaseReview, PhaseExam:
		return true
	}
	return false
}

// StudySession is one practice or review attempt. Sessions are never updated.
type StudySession struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	TopicID   *int64    `json:"topic_id,omitempty"` // nil for simulated exams
	Phase     Phase     `json:"phase"`
	Correct   int       `json:"correct"`
	Attempted int       `json:"attempted"`
	Timestamp time.Time `json:"timestamp"`
}
