package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ticketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *ticketRepository {
	return &ticketRepository{db: db}
}

// scoped limits tickets to one event created by the organizer.
func (r *ticketRepository) scoped(ctx context.Context, scope gateway.TicketScope) *gorm.DB {
	return r.db.WithContext(ctx).
		Select("tickets.*").
		Preload("Event").
		Preload("TicketType").
		Joins("JOIN events ON events.id = tickets.event_id AND events.creator_id = ?", scope.OrganizerID).
		Where("tickets.event_id = ?", scope.EventID)
}

func (r *ticketRepository) FindTicketByScanCode(ctx context.Context, scope gateway.TicketScope, code string) (*domain.Ticket, error) {
	return r.first(r.scoped(ctx, scope).Where("tickets.scan_code = ?", code))
}

func (r *ticketRepository) FindTicketByID(ctx context.Context, scope gateway.TicketScope, id uuid.UUID) (*domain.Ticket, error) {
	return r.first(r.scoped(ctx, scope).Where("tickets.id = ?", id))
}

func (r *ticketRepository) first(query *gorm.DB) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := query.First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) ListTicketsByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	err := r.db.WithContext(ctx).
		Preload("Event").
		Preload("TicketType").
		Where("owner_user_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&tickets).Error
	if err != nil {
		return nil, mapError(err)
	}
	return tickets, nil
}

func (r *ticketRepository) ListTicketsForOrganizer(ctx context.Context, scope gateway.TicketScope, limit int) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	err := r.scoped(ctx, scope).
		Order("tickets.created_at DESC").
		Limit(limit).
		Find(&tickets).Error
	if err != nil {
		return nil, mapError(err)
	}
	return tickets, nil
}

func (r *ticketRepository) MarkTicketScanned(ctx context.Context, id uuid.UUID, at time.Time) error {
	return mapError(r.db.WithContext(ctx).
		Model(&domain.Ticket{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"status":     domain.TicketStatusScanned,
			"scanned_at": at,
		}).Error)
}

func (r *ticketRepository) SetTicketActive(ctx context.Context, id uuid.UUID, active bool) error {
	return mapError(r.db.WithContext(ctx).
		Model(&domain.Ticket{}).
		Where("id = ?", id).
		Update("is_active", active).Error)
}
