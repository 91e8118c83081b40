package domain

import (
	"time"

	"github.com/google/uuid"
)

const RSVPGoing = "going"

// RSVP is unique per (event, user); the server enforces it.
type RSVP struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EventID   uuid.UUID `json:"event_id" gorm:"type:uuid;not null;uniqueIndex:idx_event_rsvps_event_user"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_event_rsvps_event_user"`
	Status    string    `json:"status" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`

	Event *EventSnippet `json:"events,omitempty" gorm:"foreignKey:EventID;-:migration"`
}

func (RSVP) TableName() string {
	return "event_rsvps"
}

type RSVPUpsert struct {
	EventID uuid.UUID `json:"event_id"`
	UserID  uuid.UUID `json:"user_id"`
	Status  string    `json:"status"`
}
