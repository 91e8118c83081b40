package rest

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dom/pulse/internal/domain"
)

const rsvpColumns = "id,event_id,user_id,status,created_at"

func (c *Client) GetRSVP(ctx context.Context, eventID, userID uuid.UUID) (*domain.RSVP, error) {
	q := from("event_rsvps").
		columns(rsvpColumns).
		eq("event_id", eventID).
		eq("user_id", userID).
		limit(1)

	var rows []domain.RSVP
	if err := c.do(ctx, request{Method: http.MethodGet, Path: q.path(), Query: q.params}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) UpsertRSVP(ctx context.Context, rsvp domain.RSVPUpsert) error {
	q := from("event_rsvps").onConflict("event_id,user_id")
	return c.do(ctx, request{
		Method:  http.MethodPost,
		Path:    q.path(),
		Query:   q.params,
		Body:    rsvp,
		Headers: map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"},
	}, nil)
}

func (c *Client) DeleteRSVP(ctx context.Context, eventID, userID uuid.UUID) error {
	q := from("event_rsvps").eq("event_id", eventID).eq("user_id", userID)
	return c.do(ctx, request{Method: http.MethodDelete, Path: q.path(), Query: q.params}, nil)
}

func (c *Client) ListRSVPsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.RSVP, error) {
	q := from("event_rsvps").
		columns(rsvpColumns+",events("+eventSnippetColumns+")").
		eq("user_id", userID).
		order("created_at", false).
		limit(limit)

	var rows []domain.RSVP
	if err := c.do(ctx, request{Method: http.MethodGet, Path: q.path(), Query: q.params}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
