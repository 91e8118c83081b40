package postgres

import (
	"context"
	"errors"

	"github.com/dom/pulse/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *profileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.db.WithContext(ctx).First(&profile, "id = ?", userID).Error
	if err != nil {
		return nil, mapError(err)
	}
	return &profile, nil
}

func (r *profileRepository) UpsertProfile(ctx context.Context, upsert domain.ProfileUpsert) error {
	now := timeNow()
	profile := upsert.Profile()
	profile.CreatedAt = &now

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "birthdate", "interests", "role", "is_completed"}),
	}).Create(profile).Error
	return mapError(err)
}

func (r *profileRepository) GetProfileSnippet(ctx context.Context, userID uuid.UUID) (*domain.ProfileSnippet, error) {
	var snippet domain.ProfileSnippet
	err := r.db.WithContext(ctx).Select("id", "full_name").First(&snippet, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &snippet, nil
}
