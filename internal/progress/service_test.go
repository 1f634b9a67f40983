package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studyplan/internal/catalog"
	"github.com/example/studyplan/internal/database"
	"github.com/example/studyplan/internal/database/dbtest"
	"github.com/example/studyplan/internal/errs"
	"github.com/example/studyplan/internal/progress"
	"github.com/example/studyplan/pkg/models"
)

type fixture struct {
	store  *database.Store
	svc    *progress.Service
	clock  *time.Time
	sepse  models.Topic
	asthma models.Topic
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := dbtest.NewStore(t)
	dbtest.CreateProfile(t, store, 1, 50)

	now := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
	f := &fixture{
		store:  store,
		clock:  &now,
		sepse:  dbtest.CreateTopic(t, store, "Sepse", "Clinical", models.TierCritical),
		asthma: dbtest.CreateTopic(t, store, "Asthma", "Pediatrics", models.TierHigh),
	}
	f.svc = progress.NewService(store, catalog.NewDBCatalog(store),
		progress.WithClock(func() time.Time { return *f.clock }))
	return f
}

func (f *fixture) record(t *testing.T, topicID *int64, correct, attempted int) *progress.SessionResult {
	t.Helper()
	res, err := f.svc.RecordSession(context.Background(), progress.SessionInput{
		UserID:    1,
		TopicID:   topicID,
		Phase:     models.PhaseReview,
		Correct:   correct,
		Attempted: attempted,
	})
	require.NoError(t, err)
	return res
}

func TestRecordSessionCreditsXP(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.Profiles.AddXP(ctx, f.store.DB(), 1, 950)
	require.NoError(t, err)

	res := f.record(t, &f.sepse.ID, 25, 30)
	assert.Equal(t, int64(55), res.XPDelta)
	assert.Equal(t, int64(1005), res.XPTotal)
	assert.Equal(t, uint64(1), res.Version)
	assert.Equal(t, 1, progress.ComputeLevel(res.XPTotal).Level)

	p, err := f.svc.GetProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1005), p.XPTotal)
}

func TestRecordSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	today := f.svc.Today()

	before, err := f.svc.TodayProgress(ctx, 1, today)
	require.NoError(t, err)
	p, err := f.svc.GetProfile(ctx, 1)
	require.NoError(t, err)

	f.record(t, &f.asthma.ID, 7, 10)

	after, err := f.svc.TodayProgress(ctx, 1, today)
	require.NoError(t, err)
	assert.Equal(t, before+10, after)

	p2, err := f.svc.GetProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, p.XPTotal+17, p2.XPTotal)
	assert.Equal(t, p.Version+1, p2.Version)
}

func TestRecordSessionValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	missing := int64(9999)

	tests := []struct {
		name string
		in   progress.SessionInput
		kind errs.Kind
	}{
		{"zero attempted", progress.SessionInput{UserID: 1, Phase: models.PhaseExam, Attempted: 0}, errs.InvalidInput},
		{"negative correct", progress.SessionInput{UserID: 1, Phase: models.PhaseExam, Correct: -1, Attempted: 3}, errs.InvalidInput},
		{"correct above attempted", progress.SessionInput{UserID: 1, Phase: models.PhaseExam, Correct: 4, Attempted: 3}, errs.InvalidInput},
		{"unknown phase", progress.SessionInput{UserID: 1, Phase: "cram", Attempted: 3}, errs.InvalidInput},
		{"unknown topic", progress.SessionInput{UserID: 1, TopicID: &missing, Phase: models.PhaseReview, Attempted: 3}, errs.NotFound},
		{"unknown user", progress.SessionInput{UserID: 2, Phase: models.PhaseExam, Attempted: 3}, errs.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordSession(ctx, tt.in)
			assert.Equal(t, tt.kind, errs.KindOf(err), "got %v", err)
		})
	}

	p, err := f.svc.GetProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.XPTotal)
	assert.Equal(t, uint64(0), p.Version)

	total, err := f.store.Sessions.SumAttempted(ctx, f.store.DB(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestXPIsMonotone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var last int64
	for _, n := range []int{1, 5, 3, 12} {
		res := f.record(t, nil, 0, n)
		assert.Greater(t, res.XPTotal, last)
		last = res.XPTotal
	}
	p, err := f.svc.GetProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, last, p.XPTotal)
}

func TestComputeAchievements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	achievements, err := catalog.NewAchievements([]models.Achievement{
		{Name: "Bronze", Threshold: 100},
		{Name: "Silver", Threshold: 500},
		{Name: "Gold", Threshold: 2000},
	})
	require.NoError(t, err)
	svc := progress.NewService(f.store, catalog.NewDBCatalog(f.store), progress.WithAchievements(achievements))

	unlocked, next, err := svc.ComputeAchievements(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, unlocked)
	require.NotNil(t, next)
	assert.Equal(t, int64(100), next.Threshold)

	f.record(t, nil, 0, 400)
	f.record(t, nil, 0, 80)

	unlocked, next, err = svc.ComputeAchievements(ctx, 1)
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, int64(100), unlocked[0].Threshold)
	require.NotNil(t, next)
	assert.Equal(t, int64(500), next.Threshold)
}

func TestComputeWindowAggregate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Monday of the same week
	*f.clock = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	f.record(t, &f.asthma.ID, 3, 4)
	// Wednesday, the reference day
	*f.clock = time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	f.record(t, &f.sepse.ID, 8, 10)
	f.record(t, nil, 1, 4)
	// earlier in the month
	*f.clock = time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	f.record(t, &f.sepse.ID, 0, 10)

	orphan := int64(777)
	require.NoError(t, f.store.Sessions.Create(ctx, f.store.DB(), &models.StudySession{
		UserID:    1,
		TopicID:   &orphan,
		Phase:     models.PhaseReview,
		Correct:   2,
		Attempted: 2,
		Timestamp: time.Date(2024, 6, 12, 11, 0, 0, 0, time.UTC),
	}))

	ref := models.NewDate(2024, 6, 12)

	day, err := f.svc.ComputeWindowAggregate(ctx, 1, progress.Day, ref)
	require.NoError(t, err)
	assert.Equal(t, []models.AreaAccuracy{
		{Area: "Clinical", Correct: 8, Attempted: 10, Percentage: 80},
		{Area: progress.ExamArea, Correct: 1, Attempted: 4, Percentage: 25},
		{Area: progress.UnassignedArea, Correct: 2, Attempted: 2, Percentage: 100},
	}, day)

	week, err := f.svc.ComputeWindowAggregate(ctx, 1, progress.Week, ref)
	require.NoError(t, err)
	require.Len(t, week, 4)
	assert.Equal(t, "Pediatrics", week[2].Area)
	assert.Equal(t, 75.0, week[2].Percentage)

	month, err := f.svc.ComputeWindowAggregate(ctx, 1, progress.Month, ref)
	require.NoError(t, err)
	require.Len(t, month, 4)
	assert.Equal(t, "Clinical", month[0].Area)
	assert.Equal(t, int64(20), month[0].Attempted)
	assert.Equal(t, 40.0, month[0].Percentage)

	again, err := f.svc.ComputeWindowAggregate(ctx, 1, progress.Month, ref)
	require.NoError(t, err)
	assert.Equal(t, month, again)
}

func TestComputeWindowAggregateEmpty(t *testing.T) {
	f := newFixture(t)

	rows, err := f.svc.ComputeWindowAggregate(context.Background(), 1, progress.Week, models.NewDate(2024, 1, 3))
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	_, err = f.svc.ComputeWindowAggregate(context.Background(), 1, progress.Window("decade"), models.NewDate(2024, 1, 3))
	assert.True(t, errs.Is(err, errs.InvalidInput), "got %v", err)
}

func TestProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.svc.CreateProfile(ctx, 2, 30)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), p.Version)

	_, err = f.svc.CreateProfile(ctx, 2, 30)
	assert.True(t, errs.Is(err, errs.InvalidState), "got %v", err)

	_, err = f.svc.CreateProfile(ctx, 3, 0)
	assert.True(t, errs.Is(err, errs.InvalidInput), "got %v", err)

	require.NoError(t, f.svc.UpdateDailyGoal(ctx, 2, 5))
	err = f.svc.UpdateDailyGoal(ctx, 2, 0)
	assert.True(t, errs.Is(err, errs.InvalidInput), "got %v", err)
	err = f.svc.UpdateDailyGoal(ctx, 99, 5)
	assert.True(t, errs.Is(err, errs.NotFound), "got %v", err)

	require.NoError(t, f.svc.SetReminders(ctx, 2, false))
	assert.True(t, errs.Is(f.svc.SetReminders(ctx, 99, false), errs.NotFound))

	p, err = f.svc.GetProfile(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, p.DailyGoal)
	assert.Equal(t, uint64(1), p.Version)
	assert.False(t, p.RemindersEnabled)

	_, err = f.svc.GetProfile(ctx, 99)
	assert.True(t, errs.Is(err, errs.NotFound), "got %v", err)
}

func TestDailyGoalStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.record(t, nil, 10, 20)

	status, err := f.svc.DailyGoalStatus(ctx, 1, f.svc.Today())
	require.NoError(t, err)
	assert.Equal(t, int64(20), status.Attempted)
	assert.Equal(t, 50, status.Goal)
	assert.Equal(t, int64(30), status.Remaining)
	assert.False(t, status.Reached)

	f.record(t, nil, 10, 30)
	status, err = f.svc.DailyGoalStatus(ctx, 1, f.svc.Today())
	require.NoError(t, err)
	assert.True(t, status.Reached)

	yesterday, err := f.svc.DailyGoalStatus(ctx, 1, f.svc.Today().AddDays(-1))
	require.NoError(t, err)
	assert.Equal(t, int64(0), yesterday.Attempted)
}
