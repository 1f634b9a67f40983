package models

// Achievement unlocks once the cumulative attempted question count reaches Threshold
type Achievement struct {
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Threshold int64  `json:"threshold"`
}

// AreaAccuracy is one row of a windowed accuracy table
type AreaAccuracy struct {
	Area       string  `json:"area" db:"area"`
	Correct    int64   `json:"correct" db:"correct"`
	Attempted  int64   `json:"attempted" db:"attempted"`
	Percentage float64 `json:"percentage" db:"-"`
}
