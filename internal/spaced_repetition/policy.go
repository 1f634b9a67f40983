package spaced_repetition

import (
	"fmt"
	"math"

	"github.com/example/studyplan/pkg/models"
)

// Policy maps a rating to the next review interval of a topic
type Policy struct {
	// Interval of a fresh topic and the reset target of a very poor review
	BaseIntervals map[models.PriorityTier]int
	// Factor applied to the current interval per rating; VeryPoor is not used
	Multipliers map[models.Rating]float64
	// Bounds of any interval in days
	MinInterval int
	MaxInterval int
	// A topic is mastered once both thresholds are reached
	MasteryStreak   int
	MasteryInterval int
}

// NewPolicy returns the default policy
func NewPolicy() *Policy {
	return &Policy{
		BaseIntervals: map[models.PriorityTier]int{
			models.TierCritical: 1,
			models.TierHigh:     2,
			models.TierMedium:   4,
			models.TierLow:      7,
		},
		Multipliers: map[models.Rating]float64{
			models.RatingPoor:      1.3,
			models.RatingGood:      2.0,
			models.RatingExcellent: 2.8,
		},
		MinInterval:     1,
		MaxInterval:     180,
		MasteryStreak:   3,
		MasteryInterval: 30,
	}
}

// BaseInterval returns the interval of a fresh topic of the given tier
func (p *Policy) BaseInterval(tier models.PriorityTier) (int, error) {
	base, ok := p.BaseIntervals[tier]
	if !ok {
		return 0, fmt.Errorf("no base interval for tier %q", tier)
	}
	return p.clamp(base), nil
}

// ComputeNextInterval returns the interval and success streak after a review.
// Successful ratings extend the streak, the others reset it.
func (p *Policy) ComputeNextInterval(tier models.PriorityTier, currentInterval, streak int, rating models.Rating) (int, int, error) {
	switch rating {
	case models.RatingVeryPoor:
		base, err := p.BaseInterval(tier)
		return base, 0, err
	case models.RatingPoor, models.RatingGood, models.RatingExcellent:
	default:
		return 0, 0, fmt.Errorf("unknown rating %q", rating)
	}

	factor, ok := p.Multipliers[rating]
	if !ok {
		return 0, 0, fmt.Errorf("no multiplier for rating %q", rating)
	}
	if currentInterval < p.MinInterval {
		currentInterval = p.MinInterval
	}
	// Products like 5 x 2.8 must land on 14, not 13.999...
	next := p.clamp(int(math.Floor(float64(currentInterval)*factor + 1e-9)))

	if rating == models.RatingPoor {
		return next, 0, nil
	}
	return next, streak + 1, nil
}

func (p *Policy) clamp(days int) int {
	if days < p.MinInterval {
		days = p.MinInterval
	}
	if days > p.MaxInterval {
		days = p.MaxInterval
	}
	return days
}

// IsMastered reports whether a task has reached both mastery thresholds
func (p *Policy) IsMastered(task *models.ReviewTask) bool {
	return task.ConsecutiveSuccesses >= p.MasteryStreak && task.IntervalDays >= p.MasteryInterval
}
