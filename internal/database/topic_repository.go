package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/studyplan/pkg/models"
)

// TopicRepository handles database operations for the topic catalogue
type TopicRepository struct{}

// NewTopicRepository creates a new repository instance
func NewTopicRepository() *TopicRepository {
	return &TopicRepository{}
}

// GetByID returns a topic by ID
func (r *TopicRepository) GetByID(ctx context.Context, q sqlx.ExtContext, id int64) (*models.Topic, error) {
	var topic models.Topic
	query := q.Rebind(`SELECT id, name, area, tier FROM topics WHERE id = ?`)
	if err := sqlx.GetContext(ctx, q, &topic, query, id); err != nil {
		return nil, errors.Wrapf(err, "failed to get topic %d", id)
	}
	return &topic, nil
}

// GetByName returns a topic by its name, ignoring case
func (r *TopicRepository) GetByName(ctx context.Context, q sqlx.ExtContext, name string) (*models.Topic, error) {
	var topic models.Topic
	query := q.Rebind(`SELECT id, name, area, tier FROM topics WHERE LOWER(name) = LOWER(?)`)
	if err := sqlx.GetContext(ctx, q, &topic, query, name); err != nil {
		return nil, errors.Wrapf(err, "failed to get topic %q", name)
	}
	return &topic, nil
}

// List returns all topics ordered by name
func (r *TopicRepository) List(ctx context.Context, q sqlx.ExtContext) ([]models.Topic, error) {
	topics := []models.Topic{}
	if err := sqlx.SelectContext(ctx, q, &topics, `SELECT id, name, area, tier FROM topics ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "failed to list topics")
	}
	return topics, nil
}

// Create inserts a new topic and sets its ID
func (r *TopicRepository) Create(ctx context.Context, q sqlx.ExtContext, topic *models.Topic) error {
	query := q.Rebind(`INSERT INTO topics (name, area, tier) VALUES (?, ?, ?) RETURNING id`)
	if err := q.QueryRowxContext(ctx, query, topic.Name, topic.Area, topic.Tier).Scan(&topic.ID); err != nil {
		return errors.Wrapf(err, "failed to create topic %q", topic.Name)
	}
	return nil
}

// Update modifies the area and tier of an existing topic
func (r *TopicRepository) Update(ctx context.Context, q sqlx.ExtContext, topic *models.Topic) error {
	query := q.Rebind(`UPDATE topics SET name = ?, area = ?, tier = ? WHERE id = ?`)
	result, err := q.ExecContext(ctx, query, topic.Name, topic.Area, topic.Tier, topic.ID)
	if err != nil {
		return errors.Wrapf(err, "failed to update topic %d", topic.ID)
	}
	return rowsAffected(result)
}
