package review_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studyplan/internal/catalog"
	"github.com/example/studyplan/internal/database"
	"github.com/example/studyplan/internal/database/dbtest"
	"github.com/example/studyplan/internal/errs"
	"github.com/example/studyplan/internal/review"
	"github.com/example/studyplan/pkg/models"
)

type fixture struct {
	store *database.Store
	svc   *review.Service
	topic models.Topic
	clock *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := dbtest.NewStore(t)
	dbtest.CreateProfile(t, store, 1, 50)
	topic := dbtest.CreateTopic(t, store, "Sepse", "Clinical", models.TierCritical)

	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	f := &fixture{store: store, topic: topic, clock: &now}
	f.svc = review.NewService(store, catalog.NewDBCatalog(store),
		review.WithClock(func() time.Time { return *f.clock }))
	return f
}

func (f *fixture) advance(days int) {
	*f.clock = f.clock.AddDate(0, 0, days)
}

func (f *fixture) version(t *testing.T) uint64 {
	t.Helper()
	v, err := f.store.Profiles.GetVersion(context.Background(), f.store.DB(), 1)
	require.NoError(t, err)
	return v
}

func TestRatingChain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	task, err := f.svc.ScheduleInitialReview(ctx, 1, f.topic.ID, models.TierCritical)
	require.NoError(t, err)
	assert.Equal(t, 1, task.IntervalDays)
	assert.Equal(t, 0, task.ConsecutiveSuccesses)
	assert.Equal(t, models.NewDate(2024, 6, 2), task.ScheduledDate)
	assert.Equal(t, models.TaskPending, task.Status)

	f.advance(1)
	next, err := f.svc.ResolveReview(ctx, task.ID, models.RatingGood)
	require.NoError(t, err)
	assert.Equal(t, 2, next.IntervalDays)
	assert.Equal(t, 1, next.ConsecutiveSuccesses)
	assert.Equal(t, models.NewDate(2024, 6, 4), next.ScheduledDate)

	old, err := f.svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, old.Status)
	require.NotNil(t, old.Rating)
	assert.Equal(t, models.RatingGood, *old.Rating)
	assert.NotNil(t, old.CompletedAt)

	f.advance(2)
	reset, err := f.svc.ResolveReview(ctx, next.ID, models.RatingVeryPoor)
	require.NoError(t, err)
	assert.Equal(t, 1, reset.IntervalDays)
	assert.Equal(t, 0, reset.ConsecutiveSuccesses)
	assert.Equal(t, models.NewDate(2024, 6, 5), reset.ScheduledDate)

	history, err := f.svc.History(ctx, 1, f.topic.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestScheduleInitialReviewRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.ScheduleInitialReview(ctx, 1, f.topic.ID, models.TierCritical)
	require.NoError(t, err)
	before := f.version(t)

	_, err = f.svc.ScheduleInitialReview(ctx, 1, f.topic.ID, models.TierCritical)
	assert.True(t, errs.Is(err, errs.InvalidState), "got %v", err)
	assert.Equal(t, before, f.version(t))

	pending, err := f.svc.ListPending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestScheduleInitialReviewValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.ScheduleInitialReview(ctx, 1, f.topic.ID, models.PriorityTier("urgent"))
	assert.True(t, errs.Is(err, errs.InvalidInput), "got %v", err)

	_, err = f.svc.ScheduleInitialReview(ctx, 1, 9999, models.TierHigh)
	assert.True(t, errs.Is(err, errs.NotFound), "got %v", err)

	_, err = f.svc.ScheduleInitialReview(ctx, 42, f.topic.ID, models.TierHigh)
	assert.True(t, errs.Is(err, errs.NotFound), "got %v", err)

	assert.Equal(t, uint64(0), f.version(t))
}

func TestResolveReviewErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.ResolveReview(ctx, 9999, models.RatingGood)
	assert.True(t, errs.Is(err, errs.NotFound), "got %v", err)

	task, err := f.svc.ScheduleInitialReview(ctx, 1, f.topic.ID, models.TierCritical)
	require.NoError(t, err)

	_, err = f.svc.ResolveReview(ctx, task.ID, models.Rating("meh"))
	assert.True(t, errs.Is(err, errs.InvalidInput), "got %v", err)

	_, err = f.svc.ResolveReview(ctx, task.ID, models.RatingExcellent)
	require.NoError(t, err)
	before := f.version(t)

	_, err = f.svc.ResolveReview(ctx, task.ID, models.RatingExcellent)
	assert.True(t, errs.Is(err, errs.InvalidState), "got %v", err)
	assert.Equal(t, before, f.version(t))
}

func TestListDueOrdersByDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i, due := range []models.Date{
		models.NewDate(2024, 6, 12),
		models.NewDate(2024, 6, 8),
		models.NewDate(2024, 6, 10),
	} {
		topic := dbtest.CreateTopic(t, f.store, "Topic "+due.String(), "Clinical", models.TierHigh)
		require.NoError(t, f.store.Tasks.Create(ctx, f.store.DB(), &models.ReviewTask{
			UserID:        1,
			TopicID:       topic.ID,
			Tier:          models.TierHigh,
			ScheduledDate: due,
			Status:        models.TaskPending,
			IntervalDays:  i + 1,
		}))
	}

	due, err := f.svc.ListDue(ctx, 1, models.NewDate(2024, 6, 10))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, models.NewDate(2024, 6, 8), due[0].ScheduledDate)
	assert.Equal(t, models.NewDate(2024, 6, 10), due[1].ScheduledDate)

	none, err := f.svc.ListDue(ctx, 77, models.NewDate(2024, 6, 10))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	task, err := f.svc.ScheduleInitialReview(ctx, 1, f.topic.ID, models.TierCritical)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteTask(ctx, task.ID))

	_, err = f.svc.GetTask(ctx, task.ID)
	assert.True(t, errs.Is(err, errs.NotFound), "got %v", err)

	err = f.svc.DeleteTask(ctx, task.ID)
	assert.True(t, errs.Is(err, errs.NotFound), "got %v", err)

	// the topic can be scheduled again once nothing is pending
	_, err = f.svc.ScheduleInitialReview(ctx, 1, f.topic.ID, models.TierCritical)
	assert.NoError(t, err)
}

func TestEachMutationBumpsVersionOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	task, err := f.svc.ScheduleInitialReview(ctx, 1, f.topic.ID, models.TierCritical)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.version(t))

	next, err := f.svc.ResolveReview(ctx, task.ID, models.RatingPoor)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.version(t))

	require.NoError(t, f.svc.DeleteTask(ctx, next.ID))
	assert.Equal(t, uint64(3), f.version(t))
}

func TestConcurrentResolveCreatesOneSuccessor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	task, err := f.svc.ScheduleInitialReview(ctx, 1, f.topic.ID, models.TierCritical)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.ResolveReview(ctx, task.ID, models.RatingGood)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errs.Is(err, errs.InvalidState), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)

	pending, err := f.svc.ListPending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
