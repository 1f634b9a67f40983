// Package dbtest opens throwaway in-memory stores for tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/studyplan/internal/database"
	"github.com/example/studyplan/pkg/models"
)

// NewStore returns a store over a fresh in-memory sqlite database that is
// closed when the test ends.
func NewStore(t testing.TB) *database.Store {
	t.Helper()
	db, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	store := database.NewStore(db)
	t.Cleanup(func() { store.Close() })
	return store
}

// CreateProfile inserts a profile with the given daily goal
func CreateProfile(t testing.TB, store *database.Store, userID int64, dailyGoal int) *models.UserProfile {
	t.Helper()
	p := &models.UserProfile{
		UserID:           userID,
		DailyGoal:        dailyGoal,
		RemindersEnabled: true,
		CreatedAt:        time.Now().UTC(),
	}
	if err := store.Profiles.Create(context.Background(), store.DB(), p); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	return p
}

// CreateTopic inserts a catalogue topic
func CreateTopic(t testing.TB, store *database.Store, name, area string, tier models.PriorityTier) models.Topic {
	t.Helper()
	topic := models.Topic{Name: name, Area: area, Tier: tier}
	if err := store.Topics.Create(context.Background(), store.DB(), &topic); err != nil {
		t.Fatalf("failed to create topic: %v", err)
	}
	return topic
}
