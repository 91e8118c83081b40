package organizer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"github.com/dom/pulse/internal/redemption"
	"github.com/dom/pulse/internal/session"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	dashboardOrdersLimit  = 100
	dashboardTicketsLimit = 400
)

// View is what the dashboard currently shows.
type View struct {
	Orders  []domain.Order
	Tickets []domain.Ticket
	Names   map[uuid.UUID]string
	Err     error
}

// Name returns the display name for a user, or fallback when unresolved.
func (v View) Name(userID uuid.UUID, fallback string) string {
	if name, ok := v.Names[userID]; ok {
		return name
	}
	return fallback
}

// Dashboard is the door view of one event: its orders, its tickets and a
// scanner. Every redemption or toggle reloads it.
type Dashboard struct {
	orders   gateway.Orders
	tickets  gateway.Tickets
	profiles gateway.Profiles
	scope    gateway.TicketScope
	log      *slog.Logger
	scanner  *redemption.Workflow

	mu   sync.Mutex
	view View
}

func NewDashboard(gw *gateway.Gateway, scope gateway.TicketScope, log *slog.Logger, opts ...redemption.Option) *Dashboard {
	if log == nil {
		log = slog.Default()
	}
	d := &Dashboard{
		orders:   gw.Orders,
		tickets:  gw.Tickets,
		profiles: gw.Profiles,
		scope:    scope,
		log:      log.With("component", "dashboard", "event_id", scope.EventID),
	}
	opts = append(opts, redemption.WithRefresh(d.reload))
	d.scanner = redemption.New(gw.Tickets, scope, log, opts...)
	return d
}

// Load fetches orders and tickets concurrently, then resolves the names of
// buyers and ticket owners. On failure the previous view is kept.
func (d *Dashboard) Load(ctx context.Context) error {
	var (
		orders  []domain.Order
		tickets []domain.Ticket
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = d.orders.ListOrdersByOrganizer(gctx, d.scope.OrganizerID, &d.scope.EventID, dashboardOrdersLimit)
		return err
	})
	g.Go(func() error {
		var err error
		tickets, err = d.tickets.ListTicketsForOrganizer(gctx, d.scope, dashboardTicketsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		d.mu.Lock()
		d.view.Err = err
		d.mu.Unlock()
		return err
	}

	ids := make([]uuid.UUID, 0, len(orders)+len(tickets))
	for _, o := range orders {
		ids = append(ids, o.UserID)
	}
	for _, t := range tickets {
		ids = append(ids, t.OwnerUserID)
	}
	names := session.ResolveNames(ctx, d.profiles, ids, d.log)

	d.mu.Lock()
	d.view = View{Orders: orders, Tickets: tickets, Names: names}
	d.mu.Unlock()
	return nil
}

func (d *Dashboard) reload(ctx context.Context) {
	if err := d.Load(ctx); err != nil {
		d.log.Warn("dashboard reload failed", "error", err)
	}
}

func (d *Dashboard) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

// Scanner is the redemption workflow bound to this event.
func (d *Dashboard) Scanner() *redemption.Workflow {
	return d.scanner
}

// Toggle enables or disables a ticket by hand.
func (d *Dashboard) Toggle(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	return d.scanner.Toggle(ctx, ticketID)
}

// Stats summarises the loaded tickets.
type Stats struct {
	Issued   int
	Scanned  int
	Disabled int
	Revenue  int
}

func (v View) Stats() Stats {
	var s Stats
	for _, t := range v.Tickets {
		s.Issued++
		switch {
		case t.Scanned():
			s.Scanned++
		case !t.IsActive:
			s.Disabled++
		}
	}
	for _, o := range v.Orders {
		s.Revenue += o.TotalCents
	}
	return s
}
