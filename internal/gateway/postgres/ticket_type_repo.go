package postgres

import (
	"context"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const availabilityView = "ticket_types_with_availability"

type ticketTypeRepository struct {
	db *gorm.DB
}

func NewTicketTypeRepository(db *gorm.DB) *ticketTypeRepository {
	return &ticketTypeRepository{db: db}
}

func (r *ticketTypeRepository) ListActiveTicketTypes(ctx context.Context, eventID uuid.UUID) ([]domain.TicketType, error) {
	var types []domain.TicketType
	err := r.db.WithContext(ctx).
		Table(availabilityView).
		Where("event_id = ? AND is_active = ?", eventID, true).
		Order("created_at ASC").
		Find(&types).Error
	if err != nil {
		return nil, mapError(err)
	}
	return types, nil
}

func (r *ticketTypeRepository) CreateTicketTypes(ctx context.Context, inserts []domain.TicketTypeInsert) error {
	if len(inserts) == 0 {
		return nil
	}

	now := timeNow()
	rows := make([]*domain.TicketType, 0, len(inserts))
	for i, in := range inserts {
		row := in.TicketType()
		row.ID = uuid.New()
		if row.Currency == "" {
			row.Currency = domain.DefaultCurrency
		}
		sold := 0
		row.SoldCount = &sold
		// Keep insertion order stable for the created_at sort.
		row.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		rows = append(rows, row)
	}
	return mapError(r.db.WithContext(ctx).Create(rows).Error)
}
