package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dom/pulse/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRemoteError(t *testing.T) {
	err := &domain.RemoteError{
		Kind:    domain.ErrConflict,
		Status:  409,
		Code:    "P0001",
		Message: "Not enough tickets remaining for General Admission",
	}

	wrapped := fmt.Errorf("create order: %w", err)
	assert.ErrorIs(t, wrapped, domain.ErrConflict)
	assert.Equal(t, "Not enough tickets remaining for General Admission", err.Error())

	var remote *domain.RemoteError
	assert.True(t, errors.As(wrapped, &remote))
	assert.Equal(t, "P0001", remote.Code)

	bare := &domain.RemoteError{Kind: domain.ErrTransport, Status: 502}
	assert.Equal(t, "transport error (status 502)", bare.Error())
}

func TestValidationError(t *testing.T) {
	err := domain.NewValidationError("title", "Title is required.")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "Title is required.", err.Error())
}
