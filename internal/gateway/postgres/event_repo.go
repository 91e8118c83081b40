package postgres

import (
	"context"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var timeNow = time.Now

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *eventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) ListPublishedUpcoming(ctx context.Context, now time.Time, limit int) ([]domain.Event, error) {
	var events []domain.Event
	err := r.db.WithContext(ctx).
		Where("is_published = ? AND start_at >= ?", true, now).
		Order("start_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, mapError(err)
	}
	return events, nil
}

func (r *eventRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]domain.Event, error) {
	var events []domain.Event
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("start_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, mapError(err)
	}
	return events, nil
}

func (r *eventRepository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var event domain.Event
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &event, nil
}

func (r *eventRepository) CreateEvent(ctx context.Context, insert domain.EventInsert) (*domain.Event, error) {
	event := insert.Event()
	event.ID = uuid.New()
	event.CreatedAt = timeNow()
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, mapError(err)
	}
	return event, nil
}

func (r *eventRepository) UpdateEvent(ctx context.Context, id uuid.UUID, update domain.EventUpdate) error {
	return r.update(ctx, id, update.Columns())
}

func (r *eventRepository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	return mapError(r.db.WithContext(ctx).Delete(&domain.Event{}, "id = ?", id).Error)
}

func (r *eventRepository) PublishEvent(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, id, map[string]interface{}{"is_published": true})
}

func (r *eventRepository) UpdateCoverURL(ctx context.Context, id uuid.UUID, coverURL string) error {
	return r.update(ctx, id, map[string]interface{}{"cover_url": coverURL})
}

func (r *eventRepository) update(ctx context.Context, id uuid.UUID, columns map[string]interface{}) error {
	return mapError(r.db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("id = ?", id).
		Updates(columns).Error)
}
