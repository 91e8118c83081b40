// Package attendee serves the attendee screens: the explore feed, event
// details and everything the signed-in user owns.
package attendee

import (
	"context"
	"log/slog"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	exploreLimit = 50
	ordersLimit  = 50
	rsvpsLimit   = 50
	ticketsLimit = 100
)

// Stuff is the "my stuff" listing.
type Stuff struct {
	Orders []domain.Order
	RSVPs  []domain.RSVP
}

// Pass is an owned ticket with the payload to render as its QR code.
type Pass struct {
	Ticket  domain.Ticket
	Payload string
}

type Option func(*Library)

func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

type Library struct {
	auth    gateway.Auth
	events  gateway.Events
	orders  gateway.Orders
	rsvps   gateway.RSVPs
	tickets gateway.Tickets
	log     *slog.Logger
	now     func() time.Time
}

func NewLibrary(gw *gateway.Gateway, log *slog.Logger, opts ...Option) *Library {
	if log == nil {
		log = slog.Default()
	}
	l := &Library{
		auth:    gw.Auth,
		events:  gw.Events,
		orders:  gw.Orders,
		rsvps:   gw.RSVPs,
		tickets: gw.Tickets,
		log:     log.With("component", "attendee"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Explore lists published events that have not started yet, soonest first.
func (l *Library) Explore(ctx context.Context) ([]domain.Event, error) {
	return l.events.ListPublishedUpcoming(ctx, l.now(), exploreLimit)
}

func (l *Library) Event(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return l.events.GetEvent(ctx, id)
}

// Load fetches the user's orders and RSVPs concurrently.
func (l *Library) Load(ctx context.Context) (Stuff, error) {
	user, err := l.currentUser()
	if err != nil {
		return Stuff{}, err
	}

	var stuff Stuff
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stuff.Orders, err = l.orders.ListOrdersByUser(gctx, user.ID, ordersLimit)
		return err
	})
	g.Go(func() error {
		var err error
		stuff.RSVPs, err = l.rsvps.ListRSVPsByUser(gctx, user.ID, rsvpsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		l.log.Warn("loading my stuff failed", "error", err)
		return Stuff{}, err
	}
	return stuff, nil
}

// Tickets lists the user's tickets, newest first, each with its QR payload.
func (l *Library) Tickets(ctx context.Context) ([]Pass, error) {
	user, err := l.currentUser()
	if err != nil {
		return nil, err
	}
	tickets, err := l.tickets.ListTicketsByOwner(ctx, user.ID, ticketsLimit)
	if err != nil {
		return nil, err
	}
	passes := make([]Pass, 0, len(tickets))
	for _, t := range tickets {
		passes = append(passes, Pass{Ticket: t, Payload: t.QRPayload()})
	}
	return passes, nil
}

func (l *Library) OrderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	return l.orders.ListOrderItems(ctx, orderID)
}

func (l *Library) currentUser() (*domain.User, error) {
	user := l.auth.CurrentUser()
	if user == nil {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "You are not logged in."}
	}
	return user, nil
}
