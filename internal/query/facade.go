// Package query serves versioned read snapshots of a user's study state.
// A snapshot is recomputed only when the user's version counter moved.
package query

import (
	"context"
	"strconv"
	"sync"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/singleflight"

	"github.com/example/studyplan/internal/database"
	"github.com/example/studyplan/internal/errs"
	"github.com/example/studyplan/internal/logger"
	"github.com/example/studyplan/internal/metrics"
	"github.com/example/studyplan/internal/progress"
	"github.com/example/studyplan/internal/review"
	"github.com/example/studyplan/pkg/models"
)

// Sidebar is the always-visible progress summary
type Sidebar struct {
	XPTotal   int64               `json:"xp_total"`
	Level     progress.Level      `json:"level"`
	DailyGoal progress.GoalStatus `json:"daily_goal"`
}

// Agenda lists the reviews due as of the snapshot date
type Agenda struct {
	Due           []models.ReviewTask `json:"due"`
	PendingCount  int                 `json:"pending_count"`
	MasteredCount int                 `json:"mastered_count"`
}

// Dashboard holds achievements and the windowed accuracy tables
type Dashboard struct {
	Unlocked []models.Achievement                      `json:"unlocked"`
	Next     *models.Achievement                       `json:"next,omitempty"`
	Areas    map[progress.Window][]models.AreaAccuracy `json:"areas"`
}

// Snapshot is every derived view of one user at one version. Callers must
// treat it as read-only; cached snapshots are shared.
type Snapshot struct {
	UserID    int64       `json:"user_id"`
	Version   uint64      `json:"version"`
	AsOf      models.Date `json:"as_of"`
	Unchanged bool        `json:"unchanged"`
	Sidebar   Sidebar     `json:"sidebar"`
	Agenda    Agenda      `json:"agenda"`
	Dashboard Dashboard   `json:"dashboard"`
}

// Facade is the read side over the review scheduler and progress aggregator
type Facade struct {
	store    *database.Store
	reviews  *review.Service
	progress *progress.Service
	log      *logger.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[int64]*Snapshot

	// called with every freshly built snapshot
	built func(*Snapshot)
}

// NewFacade creates a query façade
func NewFacade(store *database.Store, reviews *review.Service, prog *progress.Service, log *logger.Logger) *Facade {
	if log == nil {
		log = logger.Nop()
	}
	return &Facade{
		store:    store,
		reviews:  reviews,
		progress: prog,
		log:      log.With("service", "QueryFacade"),
		cache:    make(map[int64]*Snapshot),
	}
}

// Version returns the current version counter of a user
func (f *Facade) Version(ctx context.Context, userID int64) (uint64, error) {
	v, err := f.store.Profiles.GetVersion(ctx, f.store.DB(), userID)
	if database.IsNotFound(err) {
		return 0, errs.E(errs.NotFound, "query.Version", "user %d", userID)
	}
	if err != nil {
		return 0, database.Classify("query.Version", err)
	}
	return v, nil
}

// Read returns the snapshot of a user as of a date together with the
// current version. Snapshot.Unchanged reports whether hint already equals
// that version, in which case the caller may keep what it rendered.
func (f *Facade) Read(ctx context.Context, userID int64, hint uint64, asOf models.Date) (*Snapshot, uint64, error) {
	for {
		current, err := f.Version(ctx, userID)
		if err != nil {
			f.forget(userID, err)
			return nil, 0, err
		}

		if snap := f.cached(userID, current, asOf); snap != nil {
			metrics.SnapshotReads.WithLabelValues("cache").Inc()
			return withHint(snap, hint), snap.Version, nil
		}

		// Readers only share a build started at the version they observed,
		// so a reader never gets a snapshot older than its own writes.
		key := strconv.FormatInt(userID, 10) + "/" + asOf.String() + "/" + strconv.FormatUint(current, 10)
		v, err, _ := f.group.Do(key, func() (interface{}, error) {
			return f.build(context.WithoutCancel(ctx), userID, asOf)
		})
		if err != nil {
			f.forget(userID, err)
			return nil, 0, err
		}
		metrics.SnapshotReads.WithLabelValues("compute").Inc()

		snap := v.(*Snapshot)
		f.keep(snap)
		if snap.Version >= current {
			return withHint(snap, hint), snap.Version, nil
		}
	}
}

// Invalidate drops the cached snapshot of a user
func (f *Facade) Invalidate(userID int64) {
	f.mu.Lock()
	delete(f.cache, userID)
	f.mu.Unlock()
}

// forget drops the cached snapshot of a user that no longer exists
func (f *Facade) forget(userID int64, err error) {
	if errs.Is(err, errs.NotFound) {
		f.Invalidate(userID)
	}
}

func (f *Facade) cached(userID int64, version uint64, asOf models.Date) *Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap, ok := f.cache[userID]
	if !ok || snap.Version != version || snap.AsOf != asOf {
		return nil
	}
	return snap
}

// keep never replaces a snapshot with one of an older version
func (f *Facade) keep(snap *Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if old, ok := f.cache[snap.UserID]; ok && old.Version > snap.Version {
		return
	}
	f.cache[snap.UserID] = snap
}

func withHint(snap *Snapshot, hint uint64) *Snapshot {
	out := *snap
	out.Unchanged = hint == snap.Version
	return &out
}

// build reads every part of the snapshot inside one read transaction
func (f *Facade) build(ctx context.Context, userID int64, asOf models.Date) (*Snapshot, error) {
	snap := &Snapshot{UserID: userID, AsOf: asOf}
	areas, err := f.progress.AreaIndex(ctx)
	if err != nil {
		return nil, err
	}

	err = f.store.ReadTx(ctx, func(tx *sqlx.Tx) error {
		version, err := f.store.Profiles.GetVersion(ctx, tx, userID)
		if database.IsNotFound(err) {
			return errs.E(errs.NotFound, "query.Read", "user %d", userID)
		}
		if err != nil {
			return err
		}
		snap.Version = version

		if err := f.sidebar(ctx, tx, snap); err != nil {
			return err
		}
		if err := f.agenda(ctx, tx, snap); err != nil {
			return err
		}
		return f.dashboard(ctx, tx, areas, snap)
	})
	if err != nil {
		return nil, database.Classify("query.Read", err)
	}

	if f.built != nil {
		f.built(snap)
	}
	f.log.Debug("built snapshot", "user_id", userID, "version", snap.Version, "as_of", asOf.String())
	return snap, nil
}

func (f *Facade) sidebar(ctx context.Context, tx *sqlx.Tx, snap *Snapshot) error {
	p, err := f.progress.GetProfileIn(ctx, tx, snap.UserID)
	if err != nil {
		return err
	}
	goal, err := f.progress.DailyGoalStatusIn(ctx, tx, snap.UserID, snap.AsOf)
	if err != nil {
		return err
	}
	snap.Sidebar = Sidebar{
		XPTotal:   p.XPTotal,
		Level:     progress.ComputeLevel(p.XPTotal),
		DailyGoal: *goal,
	}
	return nil
}

func (f *Facade) agenda(ctx context.Context, tx *sqlx.Tx, snap *Snapshot) error {
	due, err := f.reviews.ListDueIn(ctx, tx, snap.UserID, snap.AsOf)
	if err != nil {
		return err
	}
	pending, err := f.reviews.ListPendingIn(ctx, tx, snap.UserID)
	if err != nil {
		return err
	}
	snap.Agenda = Agenda{Due: due, PendingCount: len(pending)}
	for i := range pending {
		if f.reviews.IsMastered(&pending[i]) {
			snap.Agenda.MasteredCount++
		}
	}
	return nil
}

func (f *Facade) dashboard(ctx context.Context, tx *sqlx.Tx, areaIndex progress.AreaIndex, snap *Snapshot) error {
	unlocked, next, err := f.progress.ComputeAchievementsIn(ctx, tx, snap.UserID)
	if err != nil {
		return err
	}
	areas := make(map[progress.Window][]models.AreaAccuracy, len(progress.Windows))
	for _, w := range progress.Windows {
		rows, err := f.progress.ComputeWindowAggregateIn(ctx, tx, areaIndex, snap.UserID, w, snap.AsOf)
		if err != nil {
			return err
		}
		areas[w] = rows
	}
	snap.Dashboard = Dashboard{Unlocked: unlocked, Next: next, Areas: areas}
	return nil
}
