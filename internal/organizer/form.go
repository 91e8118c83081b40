// Package organizer covers the organizer side of the client: creating and
// managing events, the orders feed and the per-event door dashboard.
package organizer

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/google/uuid"
)

const (
	maxCoverBytes = 5 << 20
	// maxAmount bounds prices and capacities to the integer columns storing them.
	maxAmount = math.MaxInt32
)

// TicketDraft is one ticket type as typed into the form. Numeric fields keep
// the raw text; only digits are read from them.
type TicketDraft struct {
	Name        string
	Description string
	PriceCents  string
	Capacity    string
	Currency    string
}

// EventForm is the create-event form.
type EventForm struct {
	Title        string
	Description  string
	StartAt      time.Time
	EndAt        *time.Time
	LocationName string
	City         string
	Category     string
	IsFree       bool
	RSVPCapacity string
	IsPublished  bool
	Tickets      []TicketDraft
	// Cover is an optional JPEG image.
	Cover []byte
}

// Validate checks the whole form. It never calls the network and must pass
// before anything is created.
func (f EventForm) Validate() error {
	if err := validateDetails(f.Title, f.StartAt, f.EndAt); err != nil {
		return err
	}
	if _, err := f.rsvpCapacity(); err != nil {
		return err
	}
	if len(f.Cover) > 0 {
		if err := validateCover(f.Cover); err != nil {
			return err
		}
	}
	if f.IsFree {
		return nil
	}

	if len(f.Tickets) == 0 {
		return domain.NewValidationError("tickets", "Add at least one ticket type.")
	}
	for _, d := range f.Tickets {
		if strings.TrimSpace(d.Name) == "" {
			return domain.NewValidationError("tickets", "Each ticket type must have a name.")
		}
		capacity, err := parseDigits(d.Capacity)
		if err != nil {
			return domain.NewValidationError("tickets", "Ticket capacity is too large.")
		}
		if capacity <= 0 {
			return domain.NewValidationError("tickets", "Ticket capacity must be greater than 0.")
		}
		price, err := parseDigits(d.PriceCents)
		if err != nil {
			return domain.NewValidationError("tickets", "Ticket price is too large.")
		}
		if price < 0 {
			return domain.NewValidationError("tickets", "Ticket price cannot be negative.")
		}
	}
	return nil
}

func validateDetails(title string, startAt time.Time, endAt *time.Time) error {
	if strings.TrimSpace(title) == "" {
		return domain.NewValidationError("title", "Title is required.")
	}
	if startAt.IsZero() {
		return domain.NewValidationError("start_at", "Start time is required.")
	}
	if endAt != nil && endAt.Before(startAt) {
		return domain.NewValidationError("end_at", "End time must be after the start time.")
	}
	return nil
}

func validateCover(jpeg []byte) error {
	if len(jpeg) > maxCoverBytes {
		return domain.NewValidationError("cover", "Cover image must be under 5 MB.")
	}
	if http.DetectContentType(jpeg) != "image/jpeg" {
		return domain.NewValidationError("cover", "Cover image must be a JPEG.")
	}
	return nil
}

// rsvpCapacity applies to free events only. Blank means unlimited.
func (f EventForm) rsvpCapacity() (*int, error) {
	if !f.IsFree {
		return nil, nil
	}
	text := strings.TrimSpace(f.RSVPCapacity)
	if text == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil || n <= 0 || n > maxAmount {
		return nil, domain.NewValidationError("rsvp_capacity", "RSVP capacity must be a positive number.")
	}
	return &n, nil
}

// insert must only be called on a validated form.
func (f EventForm) insert(creatorID uuid.UUID) domain.EventInsert {
	capacity, _ := f.rsvpCapacity()
	return domain.EventInsert{
		CreatorID:    creatorID,
		Title:        strings.TrimSpace(f.Title),
		Description:  f.Description,
		StartAt:      f.StartAt,
		EndAt:        f.EndAt,
		LocationName: optional(f.LocationName),
		City:         optional(f.City),
		Category:     optional(f.Category),
		IsFree:       f.IsFree,
		RSVPCapacity: capacity,
		IsPublished:  f.IsPublished,
	}
}

func (f EventForm) ticketTypes(eventID, creatorID uuid.UUID) []domain.TicketTypeInsert {
	if f.IsFree {
		return nil
	}
	inserts := make([]domain.TicketTypeInsert, 0, len(f.Tickets))
	for _, d := range f.Tickets {
		currency := strings.ToUpper(strings.TrimSpace(d.Currency))
		if currency == "" {
			currency = domain.DefaultCurrency
		}
		price, _ := parseDigits(d.PriceCents)
		capacity, _ := parseDigits(d.Capacity)
		inserts = append(inserts, domain.TicketTypeInsert{
			EventID:     eventID,
			CreatorID:   creatorID,
			Name:        strings.TrimSpace(d.Name),
			Description: d.Description,
			PriceCents:  price,
			Currency:    currency,
			Capacity:    capacity,
			IsActive:    true,
		})
	}
	return inserts
}

// EventEdit holds the fields that can change after creation.
type EventEdit struct {
	Title        string
	Description  string
	StartAt      time.Time
	EndAt        *time.Time
	LocationName string
	City         string
	IsPublished  bool
}

// EditFrom prefills the edit form from an existing event.
func EditFrom(e *domain.Event) EventEdit {
	edit := EventEdit{
		Title:       e.Title,
		Description: e.Description,
		StartAt:     e.StartAt,
		EndAt:       e.EndAt,
		IsPublished: e.IsPublished,
	}
	if e.LocationName != nil {
		edit.LocationName = *e.LocationName
	}
	if e.City != nil {
		edit.City = *e.City
	}
	return edit
}

func (e EventEdit) Validate() error {
	return validateDetails(e.Title, e.StartAt, e.EndAt)
}

func (e EventEdit) update() domain.EventUpdate {
	return domain.EventUpdate{
		Title:        strings.TrimSpace(e.Title),
		Description:  e.Description,
		StartAt:      e.StartAt,
		EndAt:        e.EndAt,
		LocationName: optional(e.LocationName),
		City:         optional(e.City),
		IsPublished:  e.IsPublished,
	}
}

// parseDigits reads the digits of s as an integer, ignoring everything else
// except a leading minus sign. Text without digits reads as zero. Values
// beyond maxAmount are an error.
func parseDigits(s string) (int, error) {
	sign := 1
	if strings.HasPrefix(strings.TrimSpace(s), "-") {
		sign = -1
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(b.String())
	if err != nil || n > maxAmount {
		return 0, strconv.ErrRange
	}
	return sign * n, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
