package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"github.com/dom/pulse/internal/gateway/postgres"
	"github.com/dom/pulse/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketRepository_Scoping(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewTicketRepository(testDB.DB)
	ctx := context.Background()

	organizer, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	event := testutil.NewEventBuilder().WithCreator(organizer).Build(t, testDB.DB)
	sibling := testutil.NewEventBuilder().WithCreator(organizer).Build(t, testDB.DB)
	rival := testutil.NewEventBuilder().Build(t, testDB.DB)

	ticket := testutil.NewTicketBuilder().WithEvent(event).WithScanCode("AAAABBBBCCCC").Build(t, testDB.DB)
	siblingTicket := testutil.NewTicketBuilder().WithEvent(sibling).WithScanCode("SIBLING00001").Build(t, testDB.DB)
	rivalTicket := testutil.NewTicketBuilder().WithEvent(rival).WithScanCode("RIVAL0000001").Build(t, testDB.DB)

	scope := gateway.TicketScope{EventID: event.ID, OrganizerID: organizer.ID}

	tests := []struct {
		name   string
		scope  gateway.TicketScope
		code   string
		wantID uuid.UUID
	}{
		{name: "own ticket", scope: scope, code: "AAAABBBBCCCC", wantID: ticket.ID},
		{name: "sibling event ticket", scope: scope, code: "SIBLING00001"},
		{name: "rival event ticket", scope: scope, code: "RIVAL0000001"},
		{name: "unknown code", scope: scope, code: "NOPE"},
		{
			name:  "forged scope",
			scope: gateway.TicketScope{EventID: rival.ID, OrganizerID: organizer.ID},
			code:  "RIVAL0000001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := repo.FindTicketByScanCode(ctx, tt.scope, tt.code)
			require.NoError(t, err)
			if tt.wantID == uuid.Nil {
				assert.Nil(t, found)
				return
			}
			require.NotNil(t, found)
			assert.Equal(t, tt.wantID, found.ID)
			require.NotNil(t, found.Event)
			assert.Equal(t, event.Title, found.Event.Title)
		})
	}

	byID, err := repo.FindTicketByID(ctx, scope, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)

	for _, other := range []*domain.Ticket{siblingTicket, rivalTicket} {
		found, err := repo.FindTicketByID(ctx, scope, other.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
	}

	listed, err := repo.ListTicketsForOrganizer(ctx, scope, 400)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, ticket.ID, listed[0].ID)
}

func TestTicketRepository_MarkScannedAndToggle(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewTicketRepository(testDB.DB)
	ctx := context.Background()

	organizer, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	event := testutil.NewEventBuilder().WithCreator(organizer).Build(t, testDB.DB)
	ticket := testutil.NewTicketBuilder().WithEvent(event).Build(t, testDB.DB)
	scope := gateway.TicketScope{EventID: event.ID, OrganizerID: organizer.ID}

	at := time.Now().Truncate(time.Second)
	require.NoError(t, repo.MarkTicketScanned(ctx, ticket.ID, at))

	scanned, err := repo.FindTicketByID(ctx, scope, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, scanned)
	assert.False(t, scanned.IsActive)
	assert.Equal(t, domain.TicketStatusScanned, scanned.Status)
	require.NotNil(t, scanned.ScannedAt)
	assert.True(t, at.Equal(*scanned.ScannedAt))
	assert.False(t, scanned.Redeemable())

	// Re-enabling keeps the scan record, so automatic redemption stays closed.
	require.NoError(t, repo.SetTicketActive(ctx, ticket.ID, true))
	enabled, err := repo.FindTicketByID(ctx, scope, ticket.ID)
	require.NoError(t, err)
	assert.True(t, enabled.IsActive)
	assert.True(t, enabled.Scanned())
	assert.False(t, enabled.Redeemable())
}

func TestTicketRepository_ListTicketsByOwner(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewTicketRepository(testDB.DB)
	ctx := context.Background()

	owner, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	testutil.NewTicketBuilder().WithOwner(owner).Build(t, testDB.DB)
	testutil.NewTicketBuilder().WithOwner(owner).WithScanCode("").Build(t, testDB.DB)
	testutil.NewTicketBuilder().Build(t, testDB.DB)

	tickets, err := repo.ListTicketsByOwner(ctx, owner.ID, 100)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	for _, ticket := range tickets {
		assert.Equal(t, owner.ID, ticket.OwnerUserID)
		assert.NotNil(t, ticket.Event)
	}
}
