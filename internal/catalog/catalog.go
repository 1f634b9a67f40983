// Package catalog adapts the external topic and achievement catalogues to the core.
package catalog

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/example/studyplan/internal/database"
	"github.com/example/studyplan/internal/errs"
	"github.com/example/studyplan/pkg/models"
)

// Catalog is the read-only topic source consumed by the scheduler and the aggregator
type Catalog interface {
	GetTopic(ctx context.Context, id int64) (models.Topic, error)
	ListTopics(ctx context.Context) ([]models.Topic, error)
}

// DBCatalog serves topics from the topics table
type DBCatalog struct {
	store *database.Store
}

// NewDBCatalog creates a catalogue over the store's topics table
func NewDBCatalog(store *database.Store) *DBCatalog {
	return &DBCatalog{store: store}
}

// GetTopic returns a topic or a NotFound error
func (c *DBCatalog) GetTopic(ctx context.Context, id int64) (models.Topic, error) {
	topic, err := c.store.Topics.GetByID(ctx, c.store.DB(), id)
	if database.IsNotFound(err) {
		return models.Topic{}, errs.E(errs.NotFound, "catalog.GetTopic", "topic %d", id)
	}
	if err != nil {
		return models.Topic{}, errs.Wrap(errs.Persistence, "catalog.GetTopic", err)
	}
	return *topic, nil
}

// ListTopics returns all topics ordered by name
func (c *DBCatalog) ListTopics(ctx context.Context) ([]models.Topic, error) {
	topics, err := c.store.Topics.List(ctx, c.store.DB())
	if err != nil {
		return nil, errs.Wrap(errs.Persistence, "catalog.ListTopics", err)
	}
	return topics, nil
}

// Static is an in-memory catalogue. It is never modified after NewStatic.
type Static struct {
	byID   map[int64]models.Topic
	sorted []models.Topic
}

// NewStatic builds a catalogue from a fixed topic list
func NewStatic(topics []models.Topic) (*Static, error) {
	s := &Static{byID: make(map[int64]models.Topic, len(topics))}
	for _, t := range topics {
		if !t.Tier.Valid() {
			return nil, errors.Errorf("topic %q has unknown tier %q", t.Name, t.Tier)
		}
		if _, dup := s.byID[t.ID]; dup {
			return nil, errors.Errorf("duplicate topic id %d", t.ID)
		}
		s.byID[t.ID] = t
		s.sorted = append(s.sorted, t)
	}
	sort.Slice(s.sorted, func(i, j int) bool { return s.sorted[i].Name < s.sorted[j].Name })
	return s, nil
}

// GetTopic returns a topic or a NotFound error
func (s *Static) GetTopic(_ context.Context, id int64) (models.Topic, error) {
	t, ok := s.byID[id]
	if !ok {
		return models.Topic{}, errs.E(errs.NotFound, "catalog.GetTopic", "topic %d", id)
	}
	return t, nil
}

// ListTopics returns all topics ordered by name
func (s *Static) ListTopics(_ context.Context) ([]models.Topic, error) {
	out := make([]models.Topic, len(s.sorted))
	copy(out, s.sorted)
	return out, nil
}
