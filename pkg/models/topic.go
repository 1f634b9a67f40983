package models

import (
	"fmt"
	"strings"
)

// PriorityTier is the static priority class of a topic
type PriorityTier string

const (
	TierCritical PriorityTier = "critical"
	TierHigh     PriorityTier = "high"
	TierMedium   PriorityTier = "medium"
	TierLow      PriorityTier = "low"
)

// Tiers lists every tier from most to least urgent
var Tiers = []PriorityTier{TierCritical, TierHigh, TierMedium, TierLow}

// Valid reports whether t is one of the known tiers
func (t PriorityTier) Valid() bool {
	switch t {
	case TierCritical, TierHigh, TierMedium, TierLow:
		return true
	}
	return false
}

// ParseTier parses a tier name case-insensitively
func ParseTier(s string) (PriorityTier, error) {
	t := PriorityTier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown priority tier %q", s)
	}
	return t, nil
}

// Topic is a subject of study supplied by the catalogue
type Topic struct {
	ID   int64        `json:"id" db:"id"`
	Name string       `json:"name" db:"name"`
	Area string       `json:"area" db:"area"`
	Tier PriorityTier `json:"tier" db:"tier"`
}
