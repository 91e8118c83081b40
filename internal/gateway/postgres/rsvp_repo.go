package postgres

import (
	"context"
	"errors"

	"github.com/dom/pulse/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type rsvpRepository struct {
	db *gorm.DB
}

func NewRSVPRepository(db *gorm.DB) *rsvpRepository {
	return &rsvpRepository{db: db}
}

func (r *rsvpRepository) GetRSVP(ctx context.Context, eventID, userID uuid.UUID) (*domain.RSVP, error) {
	var rsvp domain.RSVP
	err := r.db.WithContext(ctx).First(&rsvp, "event_id = ? AND user_id = ?", eventID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &rsvp, nil
}

func (r *rsvpRepository) UpsertRSVP(ctx context.Context, upsert domain.RSVPUpsert) error {
	rsvp := &domain.RSVP{
		ID:        uuid.New(),
		EventID:   upsert.EventID,
		UserID:    upsert.UserID,
		Status:    upsert.Status,
		CreatedAt: timeNow(),
	}
	return mapError(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status"}),
	}).Create(rsvp).Error)
}

func (r *rsvpRepository) DeleteRSVP(ctx context.Context, eventID, userID uuid.UUID) error {
	return mapError(r.db.WithContext(ctx).
		Delete(&domain.RSVP{}, "event_id = ? AND user_id = ?", eventID, userID).Error)
}

func (r *rsvpRepository) ListRSVPsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.RSVP, error) {
	var rsvps []domain.RSVP
	err := r.db.WithContext(ctx).
		Preload("Event").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rsvps).Error
	if err != nil {
		return nil, mapError(err)
	}
	return rsvps, nil
}
