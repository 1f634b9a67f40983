package catalog

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/example/studyplan/pkg/models"
)

// Achievements is an ordered achievement catalogue, ascending by threshold
type Achievements []models.Achievement

// DefaultAchievements is the catalogue used when no workbook overrides it
func DefaultAchievements() Achievements {
	return Achievements{
		{Name: "First Steps", Icon: "🌱", Threshold: 100},
		{Name: "Dedicated", Icon: "📚", Threshold: 500},
		{Name: "Thousand Questions", Icon: "🎯", Threshold: 1000},
		{Name: "Marathoner", Icon: "🏃", Threshold: 2000},
		{Name: "Unstoppable", Icon: "🔥", Threshold: 5000},
		{Name: "Legend", Icon: "🏆", Threshold: 10000},
	}
}

// NewAchievements validates and sorts a catalogue. Thresholds must be
// positive and unique.
func NewAchievements(list []models.Achievement) (Achievements, error) {
	out := make(Achievements, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Threshold < out[j].Threshold })
	for i, a := range out {
		if a.Name == "" {
			return nil, errors.Errorf("achievement at threshold %d has no name", a.Threshold)
		}
		if a.Threshold <= 0 {
			return nil, errors.Errorf("achievement %q has non-positive threshold %d", a.Name, a.Threshold)
		}
		if i > 0 && out[i-1].Threshold == a.Threshold {
			return nil, errors.Errorf("achievements %q and %q share threshold %d", out[i-1].Name, a.Name, a.Threshold)
		}
	}
	return out, nil
}

// Evaluate splits the catalogue at total: every achievement with threshold
// <= total is unlocked, next is the smallest one above it (nil when all are
// unlocked).
func (a Achievements) Evaluate(total int64) ([]models.Achievement, *models.Achievement) {
	i := sort.Search(len(a), func(i int) bool { return a[i].Threshold > total })
	unlocked := make([]models.Achievement, i)
	copy(unlocked, a[:i])
	if i == len(a) {
		return unlocked, nil
	}
	next := a[i]
	return unlocked, &next
}
