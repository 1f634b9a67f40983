package progress

import (
	"fmt"
	"time"

	"github.com/example/studyplan/pkg/models"
)

// Window is the period a windowed aggregate covers
type Window string

const (
	Day   Window = "day"
	Week  Window = "week"
	Month Window = "month"
)

// Windows lists every window in display order
var Windows = []Window{Day, Week, Month}

// Valid reports whether w is a known window
func (w Window) Valid() bool {
	switch w {
	case Day, Week, Month:
		return true
	}
	return false
}

// Bounds returns the half-open date range [from, to) of the window
// containing ref. Weeks start on Monday.
func (w Window) Bounds(ref models.Date) (models.Date, models.Date, error) {
	switch w {
	case Day:
		return ref, ref.AddDays(1), nil
	case Week:
		offset := (int(ref.Weekday()) + 6) % 7
		from := ref.AddDays(-offset)
		return from, from.AddDays(7), nil
	case Month:
		from := models.NewDate(ref.Year(), ref.Month(), 1)
		to := models.NewDate(ref.Year(), ref.Month()+1, 1)
		return from, to, nil
	}
	return models.Date{}, models.Date{}, fmt.Errorf("unknown window %q", w)
}

// timeBounds converts Bounds into instants in loc
func (w Window) timeBounds(ref models.Date, loc *time.Location) (time.Time, time.Time, error) {
	from, to, err := w.Bounds(ref)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from.Start(loc), to.Start(loc), nil
}
