package repository

import (
	"context"
	"time"

	"github.com/sifan077/GateLink/internal/app/model"
	"gorm.io/gorm"
)

// LinkEventRepository defines the data access contract for the link audit trail.
type LinkEventRepository interface {
	Create(ctx context.Context, event *model.LinkEvent) error
	ListByLink(ctx context.Context, linkID string) ([]model.LinkEvent, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type linkEventRepository struct {
	db *gorm.DB
}

// NewLinkEventRepository returns a GORM-backed LinkEventRepository.
func NewLinkEventRepository(db *gorm.DB) LinkEventRepository {
	return &linkEventRepository{db: db}
}

// Create is idempotent on the event id so JetStream redeliveries do not duplicate rows.
func (r *linkEventRepository) Create(ctx context.Context, event *model.LinkEvent) error {
	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil && isDuplicateKey(err) {
		return nil
	}
	return err
}

func (r *linkEventRepository) ListByLink(ctx context.Context, linkID string) ([]model.LinkEvent, error) {
	var events []model.LinkEvent
	if err := r.db.WithContext(ctx).
		Where("link_id = ?", linkID).
		Order("occurred_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *linkEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("occurred_at < ?", cutoff).
		Delete(&model.LinkEvent{})
	return result.RowsAffected, result.Error
}
