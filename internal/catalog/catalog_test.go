package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studyplan/internal/database/dbtest"
	"github.com/example/studyplan/internal/errs"
	"github.com/example/studyplan/pkg/models"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()
	c, err := NewStatic([]models.Topic{
		{ID: 2, Name: "Sepse", Area: "Infectologia", Tier: models.TierCritical},
		{ID: 1, Name: "Asma", Area: "Pneumologia", Tier: models.TierMedium},
	})
	require.NoError(t, err)

	topic, err := c.GetTopic(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Sepse", topic.Name)

	_, err = c.GetTopic(ctx, 3)
	assert.True(t, errs.Is(err, errs.NotFound))

	topics, err := c.ListTopics(ctx)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "Asma", topics[0].Name)
}

func TestStaticRejectsBadTopics(t *testing.T) {
	_, err := NewStatic([]models.Topic{{ID: 1, Name: "x", Tier: "urgent"}})
	assert.Error(t, err)
	_, err = NewStatic([]models.Topic{
		{ID: 1, Name: "a", Tier: models.TierLow},
		{ID: 1, Name: "b", Tier: models.TierLow},
	})
	assert.Error(t, err)
}

func TestDBCatalog(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)
	sepse := dbtest.CreateTopic(t, store, "Sepse", "Infectologia", models.TierCritical)

	c := NewDBCatalog(store)
	topic, err := c.GetTopic(ctx, sepse.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierCritical, topic.Tier)

	_, err = c.GetTopic(ctx, sepse.ID+100)
	assert.True(t, errs.Is(err, errs.NotFound))

	topics, err := c.ListTopics(ctx)
	require.NoError(t, err)
	assert.Len(t, topics, 1)
}

func TestAchievementsEvaluate(t *testing.T) {
	catalogue, err := NewAchievements([]models.Achievement{
		{Name: "Gold", Threshold: 2000},
		{Name: "Bronze", Threshold: 100},
		{Name: "Silver", Threshold: 500},
	})
	require.NoError(t, err)

	unlocked, next := catalogue.Evaluate(480)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "Bronze", unlocked[0].Name)
	require.NotNil(t, next)
	assert.Equal(t, int64(500), next.Threshold)

	unlocked, next = catalogue.Evaluate(500)
	assert.Len(t, unlocked, 2)
	assert.Equal(t, "Gold", next.Name)

	unlocked, next = catalogue.Evaluate(0)
	assert.Empty(t, unlocked)
	assert.Equal(t, "Bronze", next.Name)

	unlocked, next = catalogue.Evaluate(1 << 40)
	assert.Len(t, unlocked, 3)
	assert.Nil(t, next)
}

func TestNewAchievementsValidates(t *testing.T) {
	_, err := NewAchievements([]models.Achievement{{Name: "a", Threshold: 0}})
	assert.Error(t, err)
	_, err = NewAchievements([]models.Achievement{{Name: "a", Threshold: 5}, {Name: "b", Threshold: 5}})
	assert.Error(t, err)
	_, err = NewAchievements([]models.Achievement{{Threshold: 5}})
	assert.Error(t, err)

	def, err := NewAchievements(DefaultAchievements())
	require.NoError(t, err)
	assert.Equal(t, DefaultAchievements(), def)
}
