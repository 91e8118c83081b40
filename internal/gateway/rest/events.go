package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dom/pulse/internal/domain"
)

const eventSnippetColumns = "id,title,start_at,city,cover_url"

func (c *Client) ListPublishedUpcoming(ctx context.Context, now time.Time, limit int) ([]domain.Event, error) {
	q := from("events").
		columns("*").
		eq("is_published", true).
		gte("start_at", now).
		order("start_at", true).
		limit(limit)

	var events []domain.Event
	if err := c.do(ctx, request{Method: http.MethodGet, Path: q.path(), Query: q.params}, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]domain.Event, error) {
	q := from("events").
		columns("*").
		eq("creator_id", creatorID).
		order("start_at", true).
		limit(limit)

	var events []domain.Event
	if err := c.do(ctx, request{Method: http.MethodGet, Path: q.path(), Query: q.params}, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	q := from("events").columns("*").eq("id", id)

	var event domain.Event
	err := c.do(ctx, request{
		Method:  http.MethodGet,
		Path:    q.path(),
		Query:   q.params,
		Headers: map[string]string{"Accept": singleObject},
	}, &event)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// CreateEvent inserts the event and returns the stored row, id included.
func (c *Client) CreateEvent(ctx context.Context, insert domain.EventInsert) (*domain.Event, error) {
	q := from("events").columns("*")

	var event domain.Event
	err := c.do(ctx, request{
		Method: http.MethodPost,
		Path:   q.path(),
		Query:  q.params,
		Body:   insert,
		Headers: map[string]string{
			"Prefer": "return=representation",
			"Accept": singleObject,
		},
	}, &event)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *Client) UpdateEvent(ctx context.Context, id uuid.UUID, update domain.EventUpdate) error {
	return c.patchEvent(ctx, id, update)
}

func (c *Client) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	q := from("events").eq("id", id)
	return c.do(ctx, request{Method: http.MethodDelete, Path: q.path(), Query: q.params}, nil)
}

func (c *Client) PublishEvent(ctx context.Context, id uuid.UUID) error {
	return c.patchEvent(ctx, id, map[string]bool{"is_published": true})
}

func (c *Client) UpdateCoverURL(ctx context.Context, id uuid.UUID, coverURL string) error {
	return c.patchEvent(ctx, id, map[string]string{"cover_url": coverURL})
}

func (c *Client) patchEvent(ctx context.Context, id uuid.UUID, body interface{}) error {
	q := from("events").eq("id", id)
	return c.do(ctx, request{
		Method:  http.MethodPatch,
		Path:    q.path(),
		Query:   q.params,
		Body:    body,
		Headers: map[string]string{"Prefer": "return=minimal"},
	}, nil)
}
