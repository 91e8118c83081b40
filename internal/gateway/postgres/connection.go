// Package postgres implements the gateway directly on a Postgres database
// through gorm, with self-hosted password auth and local object storage.
package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dom/pulse/internal/config"
	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewConnection(databaseURL string, level slog.Level) (*gorm.DB, error) {
	logMode := logger.Warn
	if level <= slog.LevelDebug {
		logMode = logger.Info
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables, then the constraints, view and checkout
// procedure that gorm cannot express.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.User{},
		&domain.UserSession{},
		&domain.Profile{},
		&domain.Event{},
		&domain.TicketType{},
		&domain.Order{},
		&domain.OrderItem{},
		&domain.RSVP{},
		&domain.Ticket{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// NewGateway wires every repository over one connection.
func NewGateway(db *gorm.DB, cfg *config.Config) *gateway.Gateway {
	auth := NewAuthProvider(db, cfg.JWTSecret, time.Duration(cfg.JWTExpirationHours)*time.Hour)
	return &gateway.Gateway{
		Auth:        auth,
		Profiles:    NewProfileRepository(db),
		Events:      NewEventRepository(db),
		TicketTypes: NewTicketTypeRepository(db),
		Orders:      NewOrderRepository(db, auth),
		RSVPs:       NewRSVPRepository(db),
		Tickets:     NewTicketRepository(db),
		Storage:     NewLocalStorage(cfg.StorageDir, cfg.StoragePublicURL),
	}
}
