package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
)

const (
	ticketColumns     = "id,event_id,order_id,order_item_id,ticket_type_id,owner_user_id,status,is_active,scan_code,scanned_at,created_at"
	ticketTypeSnippet = "ticket_types(id,name,description,price_cents,currency)"
)

// scoped restricts a ticket query to one event owned by the organizer. The
// inner join drops rows whose event belongs to someone else.
func scoped(scope gateway.TicketScope) *query {
	return from("tickets").
		columns(ticketColumns+",events!inner("+eventSnippetColumns+",creator_id),"+ticketTypeSnippet).
		eq("event_id", scope.EventID).
		eq("events.creator_id", scope.OrganizerID)
}

func (c *Client) FindTicketByScanCode(ctx context.Context, scope gateway.TicketScope, code string) (*domain.Ticket, error) {
	return c.findTicket(ctx, scoped(scope).eq("scan_code", code).limit(1))
}

func (c *Client) FindTicketByID(ctx context.Context, scope gateway.TicketScope, id uuid.UUID) (*domain.Ticket, error) {
	return c.findTicket(ctx, scoped(scope).eq("id", id).limit(1))
}

func (c *Client) findTicket(ctx context.Context, q *query) (*domain.Ticket, error) {
	var rows []domain.Ticket
	if err := c.do(ctx, request{Method: http.MethodGet, Path: q.path(), Query: q.params}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) ListTicketsByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.Ticket, error) {
	q := from("tickets").
		columns(ticketColumns+",events("+eventSnippetColumns+"),"+ticketTypeSnippet).
		eq("owner_user_id", ownerID).
		order("created_at", false).
		limit(limit)

	var rows []domain.Ticket
	if err := c.do(ctx, request{Method: http.MethodGet, Path: q.path(), Query: q.params}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) ListTicketsForOrganizer(ctx context.Context, scope gateway.TicketScope, limit int) ([]domain.Ticket, error) {
	q := scoped(scope).order("created_at", false).limit(limit)

	var rows []domain.Ticket
	if err := c.do(ctx, request{Method: http.MethodGet, Path: q.path(), Query: q.params}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

type ticketScanPatch struct {
	IsActive  bool      `json:"is_active"`
	Status    string    `json:"status"`
	ScannedAt time.Time `json:"scanned_at"`
}

func (c *Client) MarkTicketScanned(ctx context.Context, id uuid.UUID, at time.Time) error {
	return c.patchTicket(ctx, id, ticketScanPatch{
		IsActive:  false,
		Status:    domain.TicketStatusScanned,
		ScannedAt: at.UTC(),
	})
}

func (c *Client) SetTicketActive(ctx context.Context, id uuid.UUID, active bool) error {
	return c.patchTicket(ctx, id, map[string]bool{"is_active": active})
}

func (c *Client) patchTicket(ctx context.Context, id uuid.UUID, body interface{}) error {
	q := from("tickets").eq("id", id)
	return c.do(ctx, request{
		Method:  http.MethodPatch,
		Path:    q.path(),
		Query:   q.params,
		Body:    body,
		Headers: map[string]string{"Prefer": "return=minimal"},
	}, nil)
}
