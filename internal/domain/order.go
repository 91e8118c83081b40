package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order is created server-side by the checkout procedure. Event is populated
// when the listing embeds it.
type Order struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EventID    uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index"`
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Status     string    `json:"status" gorm:"not null"`
	TotalCents int       `json:"total_cents" gorm:"not null"`
	Currency   string    `json:"currency" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`

	Event *EventSnippet `json:"events,omitempty" gorm:"foreignKey:EventID;-:migration"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrderID        uuid.UUID `json:"order_id" gorm:"type:uuid;not null;index"`
	TicketTypeID   uuid.UUID `json:"ticket_type_id" gorm:"type:uuid;not null"`
	Quantity       int       `json:"quantity" gorm:"not null;check:quantity > 0"`
	UnitPriceCents int       `json:"unit_price_cents" gorm:"not null"`
	Currency       string    `json:"currency" gorm:"not null"`

	TicketType *TicketTypeSnippet `json:"ticket_types,omitempty" gorm:"foreignKey:TicketTypeID;-:migration"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// CheckoutItem is one line of the order-creation request.
type CheckoutItem struct {
	TicketTypeID uuid.UUID `json:"ticket_type_id"`
	Quantity     int       `json:"quantity"`
}
