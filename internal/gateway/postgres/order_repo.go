package postgres

import (
	"context"
	"encoding/json"

	"github.com/dom/pulse/internal/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type orderRepository struct {
	db   *gorm.DB
	auth *AuthProvider
}

func NewOrderRepository(db *gorm.DB, auth *AuthProvider) *orderRepository {
	return &orderRepository{db: db, auth: auth}
}

// CreateOrder runs the checkout procedure as the signed-in user.
func (r *orderRepository) CreateOrder(ctx context.Context, eventID uuid.UUID, items []domain.CheckoutItem) (uuid.UUID, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return uuid.Nil, err
	}

	var raw string
	err = r.auth.withUser(ctx, r.db, func(tx *gorm.DB) error {
		return tx.Raw("SELECT create_order_with_items(?, ?::jsonb)::text", eventID, datatypes.JSON(payload)).
			Scan(&raw).Error
	})
	if err != nil {
		return uuid.Nil, mapError(err)
	}
	return uuid.Parse(raw)
}

func (r *orderRepository) ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.db.WithContext(ctx).
		Preload("Event").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, mapError(err)
	}
	return orders, nil
}

func (r *orderRepository) ListOrdersByOrganizer(ctx context.Context, organizerID uuid.UUID, eventID *uuid.UUID, limit int) ([]domain.Order, error) {
	query := r.db.WithContext(ctx).
		Select("orders.*").
		Preload("Event").
		Joins("JOIN events ON events.id = orders.event_id AND events.creator_id = ?", organizerID)
	if eventID != nil {
		query = query.Where("orders.event_id = ?", *eventID)
	}

	var orders []domain.Order
	err := query.Order("orders.created_at DESC").Limit(limit).Find(&orders).Error
	if err != nil {
		return nil, mapError(err)
	}
	return orders, nil
}

func (r *orderRepository) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	err := r.db.WithContext(ctx).
		Preload("TicketType").
		Where("order_id = ?", orderID).
		Find(&items).Error
	if err != nil {
		return nil, mapError(err)
	}
	return items, nil
}
