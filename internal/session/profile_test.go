package session_test

import (
	"context"
	"testing"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/session"
	"github.com/dom/pulse/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileInput_Validate(t *testing.T) {
	valid := session.ProfileInput{
		FullName:  "Ada Lovelace",
		Birthdate: "1990-12-10",
		Interests: []string{"Tech"},
		Role:      domain.RoleAttendee,
	}

	tests := []struct {
		name          string
		modify        func(*session.ProfileInput)
		expectedField string
	}{
		{name: "valid input", modify: func(*session.ProfileInput) {}},
		{
			name:          "blank name",
			modify:        func(in *session.ProfileInput) { in.FullName = "   " },
			expectedField: "full_name",
		},
		{
			name:          "no interests",
			modify:        func(in *session.ProfileInput) { in.Interests = nil },
			expectedField: "interests",
		},
		{
			name:          "unknown role",
			modify:        func(in *session.ProfileInput) { in.Role = "admin" },
			expectedField: "role",
		},
		{
			name:          "badly formatted birthdate",
			modify:        func(in *session.ProfileInput) { in.Birthdate = "10/12/1990" },
			expectedField: "birthdate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.modify(&in)

			err := in.Validate()

			if tt.expectedField == "" {
				assert.NoError(t, err)
				return
			}
			testutil.AssertValidationError(t, err, tt.expectedField)
		})
	}
}

func TestManager_CompleteProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("stores profile and becomes ready", func(t *testing.T) {
		fake := testutil.NewFakeGateway()
		m := newManager(fake)
		user, change := signedIn(fake, "complete@example.com")
		m.HandleAuthChange(ctx, change)
		require.True(t, m.Snapshot().NeedsProfileCompletion())

		err := m.CompleteProfile(ctx, session.ProfileInput{
			FullName:  "  Grace Hopper ",
			Birthdate: "1985-03-04",
			Interests: []string{"Tech", "Music"},
			Role:      domain.RoleOrganizer,
		})
		require.NoError(t, err)

		snap := m.Snapshot()
		assert.Equal(t, session.StateAuthenticatedReady, snap.State)
		assert.Equal(t, domain.RoleOrganizer, snap.Role)

		stored, err := fake.GetProfile(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.FullName)
		assert.Equal(t, "Grace Hopper", *stored.FullName)
		assert.True(t, stored.Completed())
	})

	t.Run("invalid input never reaches the gateway", func(t *testing.T) {
		fake := testutil.NewFakeGateway()
		m := newManager(fake)

		err := m.CompleteProfile(ctx, session.ProfileInput{Birthdate: "1985-03-04", Role: domain.RoleAttendee})

		testutil.AssertValidationError(t, err, "full_name")
		assert.Equal(t, 0, fake.Calls("User"))
		assert.Equal(t, 0, fake.Calls("UpsertProfile"))
	})

	t.Run("signed out user is rejected", func(t *testing.T) {
		fake := testutil.NewFakeGateway()
		m := newManager(fake)

		err := m.CompleteProfile(ctx, session.ProfileInput{
			FullName:  "Nobody",
			Birthdate: "1985-03-04",
			Interests: []string{"Art"},
			Role:      domain.RoleAttendee,
		})

		assert.ErrorIs(t, err, domain.ErrAuth)
		assert.Equal(t, 0, fake.Calls("UpsertProfile"))
		assert.Equal(t, session.StateLoggedOut, m.Snapshot().State)
	})
}
