package progress

// XPPerLevel is the XP needed to advance one level
const XPPerLevel = 1000

// Titles names the levels in order; levels past the end keep the last title.
var Titles = []string{
	"Novice",
	"Apprentice",
	"Student",
	"Scholar",
	"Specialist",
	"Expert",
	"Master",
	"Legend",
}

// Level is the gamified standing derived from cumulative XP
type Level struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	// XPIntoLevel and XPToNext describe progress inside the current level
	XPIntoLevel int64 `json:"xp_into_level"`
	XPToNext    int64 `json:"xp_to_next"`
}

// ComputeLevel derives the level of an XP total. Negative totals are treated as 0.
func ComputeLevel(xp int64) Level {
	if xp < 0 {
		xp = 0
	}
	n := int(xp / XPPerLevel)
	title := Titles[len(Titles)-1]
	if n < len(Titles) {
		title = Titles[n]
	}
	into := xp % XPPerLevel
	return Level{
		Level:       n,
		Title:       title,
		XPIntoLevel: into,
		XPToNext:    XPPerLevel - into,
	}
}

// XPFor returns the XP awarded for a session
func XPFor(correct, attempted int) int64 {
	return int64(attempted) + int64(correct)
}
