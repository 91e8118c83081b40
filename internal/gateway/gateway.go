// Package gateway defines the capability surface the client needs from its
// backend. Adapters in the rest and postgres subpackages implement it; the
// workflows depend only on these interfaces.
package gateway

import (
	"context"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/google/uuid"
)

type Auth interface {
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context) error
	// User revalidates the current session against the auth server.
	User(ctx context.Context) (*domain.User, error)
	// CurrentUser returns the locally held user without a network call.
	CurrentUser() *domain.User
	// Subscribe delivers auth-state changes, starting with the current
	// session. The returned func cancels the subscription.
	Subscribe() (<-chan AuthChange, func())
}

type Profiles interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, profile domain.ProfileUpsert) error
	GetProfileSnippet(ctx context.Context, userID uuid.UUID) (*domain.ProfileSnippet, error)
}

type Events interface {
	ListPublishedUpcoming(ctx context.Context, now time.Time, limit int) ([]domain.Event, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]domain.Event, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	CreateEvent(ctx context.Context, insert domain.EventInsert) (*domain.Event, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, update domain.EventUpdate) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	PublishEvent(ctx context.Context, id uuid.UUID) error
	UpdateCoverURL(ctx context.Context, id uuid.UUID, coverURL string) error
}

type TicketTypes interface {
	// ListActiveTicketTypes returns active types ordered by creation time,
	// including the server-computed remaining and sold counts.
	ListActiveTicketTypes(ctx context.Context, eventID uuid.UUID) ([]domain.TicketType, error)
	CreateTicketTypes(ctx context.Context, inserts []domain.TicketTypeInsert) error
}

type Orders interface {
	// CreateOrder is a single atomic server-side operation. It is never retried.
	CreateOrder(ctx context.Context, eventID uuid.UUID, items []domain.CheckoutItem) (uuid.UUID, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Order, error)
	// ListOrdersByOrganizer lists orders for events created by the organizer,
	// optionally restricted to one event.
	ListOrdersByOrganizer(ctx context.Context, organizerID uuid.UUID, eventID *uuid.UUID, limit int) ([]domain.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error)
}

type RSVPs interface {
	// GetRSVP returns nil without error when the user has no RSVP.
	GetRSVP(ctx context.Context, eventID, userID uuid.UUID) (*domain.RSVP, error)
	UpsertRSVP(ctx context.Context, rsvp domain.RSVPUpsert) error
	DeleteRSVP(ctx context.Context, eventID, userID uuid.UUID) error
	ListRSVPsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.RSVP, error)
}

// TicketScope restricts ticket lookups to one event created by one organizer.
// Authorization for redemption is enforced by this scoping.
type TicketScope struct {
	EventID     uuid.UUID
	OrganizerID uuid.UUID
}

type Tickets interface {
	// FindTicketByScanCode and FindTicketByID return nil without error when
	// no ticket matches within the scope.
	FindTicketByScanCode(ctx context.Context, scope TicketScope, code string) (*domain.Ticket, error)
	FindTicketByID(ctx context.Context, scope TicketScope, id uuid.UUID) (*domain.Ticket, error)
	ListTicketsByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.Ticket, error)
	ListTicketsForOrganizer(ctx context.Context, scope TicketScope, limit int) ([]domain.Ticket, error)
	MarkTicketScanned(ctx context.Context, id uuid.UUID, at time.Time) error
	SetTicketActive(ctx context.Context, id uuid.UUID, active bool) error
}

type Storage interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error
	PublicURL(bucket, path string) string
}

// Gateway bundles one backend's capabilities.
type Gateway struct {
	Auth        Auth
	Profiles    Profiles
	Events      Events
	TicketTypes TicketTypes
	Orders      Orders
	RSVPs       RSVPs
	Tickets     Tickets
	Storage     Storage
}
