package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/dom/pulse/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// mapError translates gorm and Postgres errors into the gateway taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.RemoteError{Kind: domain.ErrNotFound, Message: "record not found"}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &domain.RemoteError{
			Kind:    pgKind(pgErr.Code),
			Code:    pgErr.Code,
			Message: pgErr.Message,
		}
	}

	return &domain.RemoteError{Kind: domain.ErrTransport, Message: err.Error()}
}

func pgKind(code string) error {
	switch {
	case code == "P0001", strings.HasPrefix(code, "23"):
		return domain.ErrConflict
	case code == "28000", code == "42501":
		return domain.ErrAuth
	case strings.HasPrefix(code, "22"):
		return domain.ErrValidation
	default:
		return domain.ErrTransport
	}
}
