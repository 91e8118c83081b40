package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	TicketStatusValid   = "valid"
	TicketStatusScanned = "scanned"
)

// Ticket is one redeemable admission unit, created server-side from a paid order.
type Ticket struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EventID      uuid.UUID  `json:"event_id" gorm:"type:uuid;not null;index"`
	OrderID      *uuid.UUID `json:"order_id" gorm:"type:uuid"`
	OrderItemID  *uuid.UUID `json:"order_item_id" gorm:"type:uuid"`
	TicketTypeID *uuid.UUID `json:"ticket_type_id" gorm:"type:uuid"`
	OwnerUserID  uuid.UUID  `json:"owner_user_id" gorm:"type:uuid;not null;index"`
	Status       string     `json:"status" gorm:"not null"`
	IsActive     bool       `json:"is_active" gorm:"not null"`
	ScanCode     *string    `json:"scan_code" gorm:"uniqueIndex"`
	ScannedAt    *time.Time `json:"scanned_at"`
	CreatedAt    time.Time  `json:"created_at"`

	Event      *EventSnippet      `json:"events,omitempty" gorm:"foreignKey:EventID;-:migration"`
	TicketType *TicketTypeSnippet `json:"ticket_types,omitempty" gorm:"foreignKey:TicketTypeID;-:migration"`
}

func (Ticket) TableName() string {
	return "tickets"
}

// Redeemable reports whether an automatic scan may consume the ticket.
func (t *Ticket) Redeemable() bool {
	return t.IsActive && t.ScannedAt == nil
}

func (t *Ticket) Scanned() bool {
	return t.ScannedAt != nil
}

// QRPayload is the string encoded on the ticket's QR code: the scan code
// when one was issued, otherwise the structured fallback payload.
func (t *Ticket) QRPayload() string {
	if t.ScanCode != nil && *t.ScanCode != "" {
		return *t.ScanCode
	}
	return FormatScanPayload(t.ID, t.EventID, t.OwnerUserID)
}

const (
	scanPayloadPrefix = "PULSE|"
	canonicalUUIDLen  = 36
)

// FormatScanPayload renders PULSE|ticket=<id>|event=<id>|owner=<id>.
func FormatScanPayload(ticketID, eventID, ownerID uuid.UUID) string {
	return scanPayloadPrefix +
		"ticket=" + ticketID.String() +
		"|event=" + eventID.String() +
		"|owner=" + ownerID.String()
}

// ParseScanPayload extracts the ticket id from a structured fallback payload.
// Strings without the PULSE| prefix, or whose first ticket= part is not a
// uuid in its hyphenated 36-character form, yield no id.
func ParseScanPayload(code string) (uuid.UUID, bool) {
	if !strings.HasPrefix(code, scanPayloadPrefix) {
		return uuid.Nil, false
	}
	for _, part := range strings.Split(code, "|") {
		value, ok := strings.CutPrefix(part, "ticket=")
		if !ok {
			continue
		}
		if len(value) != canonicalUUIDLen {
			return uuid.Nil, false
		}
		id, err := uuid.Parse(value)
		if err != nil {
			return uuid.Nil, false
		}
		return id, true
	}
	return uuid.Nil, false
}
