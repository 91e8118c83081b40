package domain

import (
	"time"

	"github.com/google/uuid"
)

const DefaultCurrency = "CAD"

// TicketType is a purchasable class of admission for a paid event.
type TicketType struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EventID     uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index"`
	CreatorID   uuid.UUID `json:"creator_id" gorm:"type:uuid;not null"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description" gorm:"not null"`
	PriceCents  int       `json:"price_cents" gorm:"not null;check:price_cents >= 0"`
	Currency    string    `json:"currency" gorm:"not null;default:'CAD'"`
	Capacity    int       `json:"capacity" gorm:"not null;check:capacity > 0"`

	// SoldCount is maintained by the checkout procedure.
	SoldCount *int `json:"sold_count" gorm:"not null;default:0"`
	// Remaining is computed by the availability view and absent on the base table.
	Remaining *int `json:"remaining" gorm:"->;-:migration"`

	IsActive  bool      `json:"is_active" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (TicketType) TableName() string {
	return "ticket_types"
}

// Available is a read-side projection of remaining inventory. Remaining wins
// over capacity minus sold count when the server reports it. The client never
// decrements capacity itself.
func (t *TicketType) Available() int {
	var n int
	if t.Remaining != nil {
		n = *t.Remaining
	} else {
		sold := 0
		if t.SoldCount != nil {
			sold = *t.SoldCount
		}
		n = t.Capacity - sold
	}
	return max(0, n)
}

func (t *TicketType) SoldOut() bool {
	return t.Available() == 0
}

// TicketTypeInsert is the creation payload for one ticket type.
type TicketTypeInsert struct {
	EventID     uuid.UUID `json:"event_id"`
	CreatorID   uuid.UUID `json:"creator_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int       `json:"price_cents"`
	Currency    string    `json:"currency"`
	Capacity    int       `json:"capacity"`
	IsActive    bool      `json:"is_active"`
}

func (in TicketTypeInsert) TicketType() *TicketType {
	return &TicketType{
		EventID:     in.EventID,
		CreatorID:   in.CreatorID,
		Name:        in.Name,
		Description: in.Description,
		PriceCents:  in.PriceCents,
		Currency:    in.Currency,
		Capacity:    in.Capacity,
		IsActive:    in.IsActive,
	}
}

// TicketTypeSnippet is the projection embedded in order items and tickets.
type TicketTypeSnippet struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int       `json:"price_cents"`
	Currency    string    `json:"currency"`
}

func (TicketTypeSnippet) TableName() string {
	return "ticket_types"
}
