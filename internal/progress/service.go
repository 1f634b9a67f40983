// Package progress records study sessions and derives XP, levels,
// achievements and per-area accuracy from the session history.
package progress

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/studyplan/internal/catalog"
	"github.com/example/studyplan/internal/database"
	"github.com/example/studyplan/internal/errs"
	"github.com/example/studyplan/internal/logger"
	"github.com/example/studyplan/internal/metrics"
	"github.com/example/studyplan/pkg/models"
)

const (
	// ExamArea groups sessions recorded without a topic
	ExamArea = "Exam"
	// UnassignedArea groups sessions whose topic is missing from the catalogue
	UnassignedArea = "Unassigned"
)

// SessionInput describes a session to record
type SessionInput struct {
	UserID    int64
	TopicID   *int64
	Phase     models.Phase
	Correct   int
	Attempted int
}

// SessionResult is the XP outcome of RecordSession
type SessionResult struct {
	SessionID int64  `json:"session_id"`
	XPDelta   int64  `json:"xp_delta"`
	XPTotal   int64  `json:"xp_total"`
	Version   uint64 `json:"version"`
}

// GoalStatus compares today's attempted count with the daily goal
type GoalStatus struct {
	Attempted int64 `json:"attempted"`
	Goal      int   `json:"goal"`
	Remaining int64 `json:"remaining"`
	Reached   bool  `json:"reached"`
}

// Service is the progress aggregator
type Service struct {
	store        *database.Store
	catalog      catalog.Catalog
	achievements catalog.Achievements
	log          *logger.Logger
	now          func() time.Time
	loc          *time.Location
}

// Option configures a Service
type Option func(*Service)

// WithAchievements replaces the default achievement catalogue
func WithAchievements(a catalog.Achievements) Option {
	return func(s *Service) { s.achievements = a }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the location day boundaries are computed in
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a progress aggregator
func NewService(store *database.Store, topics catalog.Catalog, opts ...Option) *Service {
	s := &Service{
		store:        store,
		catalog:      topics,
		achievements: catalog.DefaultAchievements(),
		log:          logger.Nop(),
		now:          time.Now,
		loc:          time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("service", "ProgressAggregator")
	return s
}

// Today returns the current date in the aggregator's location
func (s *Service) Today() models.Date {
	return models.DateOf(s.now().In(s.loc))
}

// CreateProfile registers a user. Creating an existing profile fails with InvalidState.
func (s *Service) CreateProfile(ctx context.Context, userID int64, dailyGoal int) (*models.UserProfile, error) {
	const op = "progress.CreateProfile"

	if dailyGoal < 1 {
		return nil, errs.E(errs.InvalidInput, op, "daily goal must be at least 1, got %d", dailyGoal)
	}
	p := &models.UserProfile{
		UserID:           userID,
		DailyGoal:        dailyGoal,
		RemindersEnabled: true,
		CreatedAt:        s.now().UTC(),
	}
	err := s.store.Profiles.Create(ctx, s.store.DB(), p)
	metrics.ObserveMutation("create_profile", err)
	if err != nil {
		return nil, database.Classify(op, err)
	}
	s.log.Info("created profile", "user_id", userID, "daily_goal", dailyGoal)
	return p, nil
}

// GetProfile returns the profile of a user
func (s *Service) GetProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	return s.GetProfileIn(ctx, s.store.DB(), userID)
}

// GetProfileIn is GetProfile against an open transaction
func (s *Service) GetProfileIn(ctx context.Context, q sqlx.ExtContext, userID int64) (*models.UserProfile, error) {
	p, err := s.store.Profiles.GetByID(ctx, q, userID)
	if database.IsNotFound(err) {
		return nil, errs.E(errs.NotFound, "progress.GetProfile", "user %d", userID)
	}
	if err != nil {
		return nil, database.Classify("progress.GetProfile", err)
	}
	return p, nil
}

// UpdateDailyGoal changes the daily attempted-question goal
func (s *Service) UpdateDailyGoal(ctx context.Context, userID int64, goal int) error {
	const op = "progress.UpdateDailyGoal"

	if goal < 1 {
		return errs.E(errs.InvalidInput, op, "daily goal must be at least 1, got %d", goal)
	}
	_, err := s.store.Mutate(ctx, func(tx *sqlx.Tx) (int64, error) {
		err := s.store.Profiles.UpdateDailyGoal(ctx, tx, userID, goal)
		if errors.Is(err, database.ErrNotUpdated) {
			return 0, errs.E(errs.NotFound, op, "user %d", userID)
		}
		return userID, err
	})
	metrics.ObserveMutation("update_daily_goal", err)
	if err != nil {
		return database.Classify(op, err)
	}
	s.log.Info("updated daily goal", "user_id", userID, "daily_goal", goal)
	return nil
}

// SetReminders enables or disables review reminders for a user
func (s *Service) SetReminders(ctx context.Context, userID int64, enabled bool) error {
	const op = "progress.SetReminders"

	err := s.store.Profiles.SetReminders(ctx, s.store.DB(), userID, enabled)
	if errors.Is(err, database.ErrNotUpdated) {
		return errs.E(errs.NotFound, op, "user %d", userID)
	}
	if err != nil {
		return database.Classify(op, err)
	}
	return nil
}

// RecordSession appends a session and credits its XP. All validation happens
// before anything is written.
func (s *Service) RecordSession(ctx context.Context, in SessionInput) (*SessionResult, error) {
	const op = "progress.RecordSession"

	if err := validateSession(op, in); err != nil {
		return nil, err
	}
	if in.TopicID != nil {
		if _, err := s.catalog.GetTopic(ctx, *in.TopicID); err != nil {
			return nil, errs.Wrap(errs.Persistence, op, err)
		}
	}

	session := &models.StudySession{
		UserID:    in.UserID,
		TopicID:   in.TopicID,
		Phase:     in.Phase,
		Correct:   in.Correct,
		Attempted: in.Attempted,
		Timestamp: s.now().UTC(),
	}
	result := &SessionResult{XPDelta: XPFor(in.Correct, in.Attempted)}

	version, err := s.store.Mutate(ctx, func(tx *sqlx.Tx) (int64, error) {
		if _, err := s.store.Profiles.GetByID(ctx, tx, in.UserID); err != nil {
			if database.IsNotFound(err) {
				return 0, errs.E(errs.NotFound, op, "user %d", in.UserID)
			}
			return 0, err
		}
		if err := s.store.Sessions.Create(ctx, tx, session); err != nil {
			return 0, err
		}
		total, err := s.store.Profiles.AddXP(ctx, tx, in.UserID, result.XPDelta)
		if err != nil {
			return 0, err
		}
		result.XPTotal = total
		return in.UserID, nil
	})
	metrics.ObserveMutation("record_session", err)
	if err != nil {
		return nil, database.Classify(op, err)
	}
	result.SessionID = session.ID
	result.Version = version

	s.log.Info("recorded session",
		"user_id", in.UserID, "phase", in.Phase, "attempted", in.Attempted,
		"correct", in.Correct, "xp_delta", result.XPDelta, "xp_total", result.XPTotal)
	return result, nil
}

func validateSession(op string, in SessionInput) error {
	if !in.Phase.Valid() {
		return errs.E(errs.InvalidInput, op, "unknown phase %q", in.Phase)
	}
	if in.Attempted < 1 {
		return errs.E(errs.InvalidInput, op, "attempted must be at least 1, got %d", in.Attempted)
	}
	if in.Correct < 0 {
		return errs.E(errs.InvalidInput, op, "correct must not be negative, got %d", in.Correct)
	}
	if in.Correct > in.Attempted {
		return errs.E(errs.InvalidInput, op, "correct %d exceeds attempted %d", in.Correct, in.Attempted)
	}
	return nil
}

// ComputeAchievements returns the unlocked achievements of a user and the
// next one to unlock, if any
func (s *Service) ComputeAchievements(ctx context.Context, userID int64) ([]models.Achievement, *models.Achievement, error) {
	return s.ComputeAchievementsIn(ctx, s.store.DB(), userID)
}

// ComputeAchievementsIn is ComputeAchievements against an open transaction
func (s *Service) ComputeAchievementsIn(ctx context.Context, q sqlx.ExtContext, userID int64) ([]models.Achievement, *models.Achievement, error) {
	total, err := s.store.Sessions.SumAttempted(ctx, q, userID)
	if err != nil {
		return nil, nil, database.Classify("progress.ComputeAchievements", err)
	}
	unlocked, next := s.achievements.Evaluate(total)
	return unlocked, next, nil
}

// AreaIndex maps topic IDs to their catalogue area
type AreaIndex map[int64]string

// AreaIndex loads the area of every catalogue topic. Load it before opening a
// transaction: the catalogue may share the store's connection.
func (s *Service) AreaIndex(ctx context.Context) (AreaIndex, error) {
	topics, err := s.catalog.ListTopics(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.Persistence, "progress.AreaIndex", err)
	}
	areas := make(AreaIndex, len(topics))
	for _, t := range topics {
		areas[t.ID] = t.Area
	}
	return areas, nil
}

// ComputeWindowAggregate returns accuracy per topic area over the window
// containing ref, sorted by area
func (s *Service) ComputeWindowAggregate(ctx context.Context, userID int64, w Window, ref models.Date) ([]models.AreaAccuracy, error) {
	areas, err := s.AreaIndex(ctx)
	if err != nil {
		return nil, err
	}
	return s.ComputeWindowAggregateIn(ctx, s.store.DB(), areas, userID, w, ref)
}

// ComputeWindowAggregateIn is ComputeWindowAggregate against an open transaction
func (s *Service) ComputeWindowAggregateIn(ctx context.Context, q sqlx.ExtContext, areas AreaIndex, userID int64, w Window, ref models.Date) ([]models.AreaAccuracy, error) {
	const op = "progress.ComputeWindowAggregate"

	from, to, err := w.timeBounds(ref, s.loc)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, op, err)
	}
	totals, err := s.store.Sessions.TotalsByTopic(ctx, q, userID, from, to)
	if err != nil {
		return nil, database.Classify(op, err)
	}
	return groupByArea(totals, areas), nil
}

func groupByArea(totals []database.TopicTotals, areaOf AreaIndex) []models.AreaAccuracy {
	byArea := make(map[string]*models.AreaAccuracy)
	for _, t := range totals {
		area := ExamArea
		if t.TopicID != nil {
			a, ok := areaOf[*t.TopicID]
			if !ok {
				a = UnassignedArea
			}
			area = a
		}
		row, ok := byArea[area]
		if !ok {
			row = &models.AreaAccuracy{Area: area}
			byArea[area] = row
		}
		row.Correct += t.Correct
		row.Attempted += t.Attempted
	}

	rows := make([]models.AreaAccuracy, 0, len(byArea))
	for _, row := range byArea {
		if row.Attempted > 0 {
			row.Percentage = float64(row.Correct) * 100 / float64(row.Attempted)
		}
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Area < rows[j].Area })
	return rows
}

// TodayProgress returns the questions attempted on ref
func (s *Service) TodayProgress(ctx context.Context, userID int64, ref models.Date) (int64, error) {
	return s.TodayProgressIn(ctx, s.store.DB(), userID, ref)
}

// TodayProgressIn is TodayProgress against an open transaction
func (s *Service) TodayProgressIn(ctx context.Context, q sqlx.ExtContext, userID int64, ref models.Date) (int64, error) {
	from, to, _ := Day.timeBounds(ref, s.loc)
	total, err := s.store.Sessions.SumAttemptedBetween(ctx, q, userID, from, to)
	if err != nil {
		return 0, database.Classify("progress.TodayProgress", err)
	}
	return total, nil
}

// DailyGoalStatus compares the questions attempted on ref with the user's goal
func (s *Service) DailyGoalStatus(ctx context.Context, userID int64, ref models.Date) (*GoalStatus, error) {
	return s.DailyGoalStatusIn(ctx, s.store.DB(), userID, ref)
}

// DailyGoalStatusIn is DailyGoalStatus against an open transaction
func (s *Service) DailyGoalStatusIn(ctx context.Context, q sqlx.ExtContext, userID int64, ref models.Date) (*GoalStatus, error) {
	p, err := s.GetProfileIn(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	attempted, err := s.TodayProgressIn(ctx, q, userID, ref)
	if err != nil {
		return nil, err
	}
	return goalStatus(attempted, p.DailyGoal), nil
}

func goalStatus(attempted int64, goal int) *GoalStatus {
	status := &GoalStatus{Attempted: attempted, Goal: goal}
	if remaining := int64(goal) - attempted; remaining > 0 {
		status.Remaining = remaining
	} else {
		status.Reached = true
	}
	return status
}
