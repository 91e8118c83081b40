package domain

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatorID       uuid.UUID  `json:"creator_id" gorm:"type:uuid;not null;index"`
	Title           string     `json:"title" gorm:"not null"`
	Description     string     `json:"description" gorm:"not null"`
	StartAt         time.Time  `json:"start_at" gorm:"not null;index"`
	EndAt           *time.Time `json:"end_at"`
	LocationName    *string    `json:"location_name"`
	LocationAddress *string    `json:"location_address"`
	City            *string    `json:"city"`
	CoverURL        *string    `json:"cover_url" gorm:"column:cover_url"`
	Category        *string    `json:"category"`

	// IsFree selects RSVP-only admission; ticket types exist only when false.
	IsFree bool `json:"is_free" gorm:"not null"`
	// RSVPCapacity applies to free events; nil means unlimited.
	RSVPCapacity *int `json:"rsvp_capacity" gorm:"column:rsvp_capacity"`

	IsPublished bool      `json:"is_published" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Event) TableName() string {
	return "events"
}

// Location returns the most specific location label available.
func (e *Event) Location() string {
	for _, s := range []*string{e.LocationName, e.LocationAddress, e.City} {
		if s != nil && *s != "" {
			return *s
		}
	}
	return ""
}

// EventInsert is the creation payload. The server assigns id and created_at.
type EventInsert struct {
	CreatorID       uuid.UUID  `json:"creator_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	StartAt         time.Time  `json:"start_at"`
	EndAt           *time.Time `json:"end_at"`
	LocationName    *string    `json:"location_name"`
	LocationAddress *string    `json:"location_address"`
	City            *string    `json:"city"`
	CoverURL        *string    `json:"cover_url"`
	Category        *string    `json:"category"`
	IsFree          bool       `json:"is_free"`
	RSVPCapacity    *int       `json:"rsvp_capacity"`
	IsPublished     bool       `json:"is_published"`
}

func (in EventInsert) Event() *Event {
	return &Event{
		CreatorID:       in.CreatorID,
		Title:           in.Title,
		Description:     in.Description,
		StartAt:         in.StartAt,
		EndAt:           in.EndAt,
		LocationName:    in.LocationName,
		LocationAddress: in.LocationAddress,
		City:            in.City,
		CoverURL:        in.CoverURL,
		Category:        in.Category,
		IsFree:          in.IsFree,
		RSVPCapacity:    in.RSVPCapacity,
		IsPublished:     in.IsPublished,
	}
}

// EventUpdate carries the fields an organizer may edit after creation.
type EventUpdate struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	StartAt      time.Time  `json:"start_at"`
	EndAt        *time.Time `json:"end_at"`
	LocationName *string    `json:"location_name"`
	City         *string    `json:"city"`
	IsPublished  bool       `json:"is_published"`
}

// Columns returns the update as a column map so nil fields are written as NULL.
func (u EventUpdate) Columns() map[string]interface{} {
	return map[string]interface{}{
		"title":         u.Title,
		"description":   u.Description,
		"start_at":      u.StartAt,
		"end_at":        u.EndAt,
		"location_name": u.LocationName,
		"city":          u.City,
		"is_published":  u.IsPublished,
	}
}

// EventSnippet is the lightweight projection embedded in orders, RSVPs and tickets.
type EventSnippet struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Title    string    `json:"title"`
	StartAt  time.Time `json:"start_at"`
	City     *string   `json:"city"`
	CoverURL *string   `json:"cover_url" gorm:"column:cover_url"`
}

func (EventSnippet) TableName() string {
	return "events"
}
