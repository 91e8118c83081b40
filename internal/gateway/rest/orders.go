package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/dom/pulse/internal/domain"
)

const (
	createOrderRPC = "create_order_with_items"

	orderColumns     = "id,event_id,user_id,status,total_cents,currency,created_at"
	orderItemColumns = "id,order_id,ticket_type_id,quantity,unit_price_cents,currency"
)

func (c *Client) ListActiveTicketTypes(ctx context.Context, eventID uuid.UUID) ([]domain.TicketType, error) {
	q := from("ticket_types_with_availability").
		columns("*").
		eq("event_id", eventID).
		eq("is_active", true).
		order("created_at", true)

	var types []domain.TicketType
	if err := c.do(ctx, request{Method: http.MethodGet, Path: q.path(), Query: q.params}, &types); err != nil {
		return nil, err
	}
	return types, nil
}

func (c *Client) CreateTicketTypes(ctx context.Context, inserts []domain.TicketTypeInsert) error {
	if len(inserts) == 0 {
		return nil
	}
	q := from("ticket_types")
	return c.do(ctx, request{
		Method:  http.MethodPost,
		Path:    q.path(),
		Body:    inserts,
		Headers: map[string]string{"Prefer": "return=minimal"},
	}, nil)
}

type createOrderParams struct {
	EventID uuid.UUID             `json:"p_event_id"`
	Items   []domain.CheckoutItem `json:"p_items"`
}

// CreateOrder calls the checkout procedure, which validates inventory and
// creates the order, its items and tickets in one transaction.
func (c *Client) CreateOrder(ctx context.Context, eventID uuid.UUID, items []domain.CheckoutItem) (uuid.UUID, error) {
	var raw string
	err := c.do(ctx, request{
		Method: http.MethodPost,
		Path:   rpcPrefix + createOrderRPC,
		Body:   createOrderParams{EventID: eventID, Items: items},
	}, &raw)
	if err != nil {
		return uuid.Nil, err
	}

	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse order id %q: %w", raw, err)
	}
	return orderID, nil
}

func (c *Client) ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Order, error) {
	q := from("orders").
		columns(orderColumns+",events("+eventSnippetColumns+")").
		eq("user_id", userID).
		order("created_at", false).
		limit(limit)

	var orders []domain.Order
	if err := c.do(ctx, request{Method: http.MethodGet, Path: q.path(), Query: q.params}, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) ListOrdersByOrganizer(ctx context.Context, organizerID uuid.UUID, eventID *uuid.UUID, limit int) ([]domain.Order, error) {
	q := from("orders").
		columns(orderColumns+",events!inner("+eventSnippetColumns+",creator_id)").
		eq("events.creator_id", organizerID)
	if eventID != nil {
		q.eq("event_id", *eventID)
	}
	q.order("created_at", false).limit(limit)

	var orders []domain.Order
	if err := c.do(ctx, request{Method: http.MethodGet, Path: q.path(), Query: q.params}, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	q := from("order_items").
		columns(orderItemColumns+",ticket_types(id,name,description,price_cents,currency)").
		eq("order_id", orderID)

	var items []domain.OrderItem
	if err := c.do(ctx, request{Method: http.MethodGet, Path: q.path(), Query: q.params}, &items); err != nil {
		return nil, err
	}
	return items, nil
}
