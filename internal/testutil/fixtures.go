package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	email    string
	password string
	fullName string
	role     domain.Role
	complete bool
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		email:    fmt.Sprintf("user_%s@example.com", uuid.New().String()[:8]),
		password: "testpassword123",
		role:     domain.RoleAttendee,
	}
}

// WithEmail sets the email
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// WithCompletedProfile also stores a completed profile for the user
func (b *UserBuilder) WithCompletedProfile(fullName string, role domain.Role) *UserBuilder {
	b.fullName = fullName
	b.role = role
	b.complete = true
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(b.email),
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	if b.complete {
		profile := domain.ProfileUpsert{
			ID:          user.ID,
			FullName:    b.fullName,
			Birthdate:   "1990-01-01",
			Interests:   []string{"Music"},
			Role:        b.role,
			IsCompleted: true,
		}.Profile()
		if err := db.Create(profile).Error; err != nil {
			t.Fatalf("failed to create profile: %v", err)
		}
	}

	return user, b.password
}

// EventBuilder creates test events
type EventBuilder struct {
	creator   *domain.User
	title     string
	startAt   time.Time
	city      string
	free      bool
	published bool
}

// NewEventBuilder creates a published paid event starting tomorrow
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{
		title:     fmt.Sprintf("Event %s", uuid.New().String()[:6]),
		startAt:   time.Now().Add(24 * time.Hour).Truncate(time.Second),
		city:      "Montreal",
		published: true,
	}
}

func (b *EventBuilder) WithCreator(user *domain.User) *EventBuilder {
	b.creator = user
	return b
}

func (b *EventBuilder) WithTitle(title string) *EventBuilder {
	b.title = title
	return b
}

func (b *EventBuilder) WithStartAt(startAt time.Time) *EventBuilder {
	b.startAt = startAt
	return b
}

func (b *EventBuilder) Free() *EventBuilder {
	b.free = true
	return b
}

func (b *EventBuilder) Draft() *EventBuilder {
	b.published = false
	return b
}

// Build creates the event in the database
func (b *EventBuilder) Build(t *testing.T, db *gorm.DB) *domain.Event {
	t.Helper()

	if b.creator == nil {
		user, _ := NewUserBuilder().Build(t, db)
		b.creator = user
	}

	city := b.city
	event := &domain.Event{
		ID:          uuid.New(),
		CreatorID:   b.creator.ID,
		Title:       b.title,
		Description: "A test event",
		StartAt:     b.startAt,
		City:        &city,
		IsFree:      b.free,
		IsPublished: b.published,
		CreatedAt:   time.Now(),
	}

	if err := db.Create(event).Error; err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	return event
}

// TicketTypeBuilder creates test ticket types
type TicketTypeBuilder struct {
	event      *domain.Event
	name       string
	priceCents int
	capacity   int
	sold       int
	active     bool
}

// NewTicketTypeBuilder creates an active type priced at 25.00 with 100 seats
func NewTicketTypeBuilder() *TicketTypeBuilder {
	return &TicketTypeBuilder{
		name:       "General",
		priceCents: 2500,
		capacity:   100,
		active:     true,
	}
}

func (b *TicketTypeBuilder) WithEvent(event *domain.Event) *TicketTypeBuilder {
	b.event = event
	return b
}

func (b *TicketTypeBuilder) WithName(name string) *TicketTypeBuilder {
	b.name = name
	return b
}

func (b *TicketTypeBuilder) WithPrice(cents int) *TicketTypeBuilder {
	b.priceCents = cents
	return b
}

func (b *TicketTypeBuilder) WithCapacity(capacity, sold int) *TicketTypeBuilder {
	b.capacity = capacity
	b.sold = sold
	return b
}

func (b *TicketTypeBuilder) Inactive() *TicketTypeBuilder {
	b.active = false
	return b
}

// Build creates the ticket type in the database
func (b *TicketTypeBuilder) Build(t *testing.T, db *gorm.DB) *domain.TicketType {
	t.Helper()

	if b.event == nil {
		b.event = NewEventBuilder().Build(t, db)
	}

	sold := b.sold
	ticketType := &domain.TicketType{
		ID:          uuid.New(),
		EventID:     b.event.ID,
		CreatorID:   b.event.CreatorID,
		Name:        b.name,
		Description: b.name + " admission",
		PriceCents:  b.priceCents,
		Currency:    domain.DefaultCurrency,
		Capacity:    b.capacity,
		SoldCount:   &sold,
		IsActive:    b.active,
		CreatedAt:   time.Now(),
	}

	if err := db.Create(ticketType).Error; err != nil {
		t.Fatalf("failed to create ticket type: %v", err)
	}

	return ticketType
}

// TicketBuilder creates issued tickets without going through checkout
type TicketBuilder struct {
	event    *domain.Event
	owner    *domain.User
	scanCode string
	inactive bool
	scanned  bool
}

func NewTicketBuilder() *TicketBuilder {
	return &TicketBuilder{
		scanCode: strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12]),
	}
}

func (b *TicketBuilder) WithEvent(event *domain.Event) *TicketBuilder {
	b.event = event
	return b
}

func (b *TicketBuilder) WithOwner(user *domain.User) *TicketBuilder {
	b.owner = user
	return b
}

func (b *TicketBuilder) WithScanCode(code string) *TicketBuilder {
	b.scanCode = code
	return b
}

func (b *TicketBuilder) Inactive() *TicketBuilder {
	b.inactive = true
	return b
}

func (b *TicketBuilder) Scanned() *TicketBuilder {
	b.scanned = true
	b.inactive = true
	return b
}

// Build creates the ticket in the database
func (b *TicketBuilder) Build(t *testing.T, db *gorm.DB) *domain.Ticket {
	t.Helper()

	if b.event == nil {
		b.event = NewEventBuilder().Build(t, db)
	}
	if b.owner == nil {
		user, _ := NewUserBuilder().Build(t, db)
		b.owner = user
	}

	ticket := &domain.Ticket{
		ID:          uuid.New(),
		EventID:     b.event.ID,
		OwnerUserID: b.owner.ID,
		Status:      domain.TicketStatusValid,
		IsActive:    !b.inactive,
		CreatedAt:   time.Now(),
	}
	if b.scanCode != "" {
		code := b.scanCode
		ticket.ScanCode = &code
	}
	if b.scanned {
		at := time.Now().Add(-time.Minute)
		ticket.ScannedAt = &at
		ticket.Status = domain.TicketStatusScanned
	}

	if err := db.Create(ticket).Error; err != nil {
		t.Fatalf("failed to create ticket: %v", err)
	}

	return ticket
}
