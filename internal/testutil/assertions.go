package testutil

import (
	"errors"
	"testing"

	"github.com/dom/pulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertRemoteError verifies err belongs to kind and, when message is not
// empty, that the backend's message is surfaced verbatim.
func AssertRemoteError(t *testing.T, err error, kind error, message string) {
	t.Helper()

	require.Error(t, err)
	assert.ErrorIs(t, err, kind, "unexpected error kind")

	if message == "" {
		return
	}
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		assert.Equal(t, message, remote.Message, "error message mismatch")
		return
	}
	assert.Equal(t, message, err.Error(), "error message mismatch")
}

// AssertValidationError verifies err is a validation failure on field
func AssertValidationError(t *testing.T, err error, field string) {
	t.Helper()

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected *domain.ValidationError, got %T", err)
	assert.Equal(t, field, verr.Field, "unexpected field")
}

// AssertSoldCount verifies the server-side sold count of a ticket type
func AssertSoldCount(t *testing.T, ticketType *domain.TicketType, expected int) {
	t.Helper()
	require.NotNil(t, ticketType.SoldCount, "sold count not loaded")
	assert.Equal(t, expected, *ticketType.SoldCount, "unexpected sold count")
}

// RequireNoError fails immediately if err is not nil
func RequireNoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	require.NoError(t, err, msgAndArgs...)
}
