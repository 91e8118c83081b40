package attendee_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/pulse/internal/attendee"
	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newLibrary(t *testing.T) (*testutil.FakeGateway, *domain.User, *attendee.Library) {
	t.Helper()
	fake := testutil.NewFakeGateway()
	fake.SetClock(func() time.Time { return now })
	user := fake.AddUser("fan@example.com", "secret123")
	fake.SignInAs(user, now.Add(time.Hour))
	return fake, user, attendee.NewLibrary(fake.Gateway(), nil, attendee.WithClock(func() time.Time { return now }))
}

func TestLibrary_Explore(t *testing.T) {
	ctx := context.Background()
	fake, _, lib := newLibrary(t)
	host := fake.AddUser("host@example.com", "secret123")

	later := fake.AddEvent(domain.Event{CreatorID: host.ID, Title: "Later", StartAt: now.Add(48 * time.Hour), IsPublished: true})
	soon := fake.AddEvent(domain.Event{CreatorID: host.ID, Title: "Soon", StartAt: now.Add(time.Hour), IsPublished: true})
	fake.AddEvent(domain.Event{CreatorID: host.ID, Title: "Draft", StartAt: now.Add(time.Hour)})
	fake.AddEvent(domain.Event{CreatorID: host.ID, Title: "Past", StartAt: now.Add(-time.Hour), IsPublished: true})

	events, err := lib.Explore(ctx)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, soon.ID, events[0].ID)
	assert.Equal(t, later.ID, events[1].ID)

	event, err := lib.Event(ctx, soon.ID)
	require.NoError(t, err)
	assert.Equal(t, "Soon", event.Title)
}

func TestLibrary_Load(t *testing.T) {
	ctx := context.Background()
	fake, user, lib := newLibrary(t)
	host := fake.AddUser("host@example.com", "secret123")

	paid := fake.AddEvent(domain.Event{CreatorID: host.ID, Title: "Concert", StartAt: now.Add(time.Hour), IsPublished: true})
	tt := fake.AddTicketType(domain.TicketType{EventID: paid.ID, CreatorID: host.ID, Name: "GA", PriceCents: 4000, Capacity: 5, IsActive: true})
	free := fake.AddEvent(domain.Event{CreatorID: host.ID, Title: "Meetup", StartAt: now.Add(time.Hour), IsFree: true, IsPublished: true})

	orderID, err := fake.CreateOrder(ctx, paid.ID, []domain.CheckoutItem{{TicketTypeID: tt.ID, Quantity: 2}})
	require.NoError(t, err)
	require.NoError(t, fake.UpsertRSVP(ctx, domain.RSVPUpsert{EventID: free.ID, UserID: user.ID, Status: domain.RSVPGoing}))

	stuff, err := lib.Load(ctx)
	require.NoError(t, err)

	require.Len(t, stuff.Orders, 1)
	assert.Equal(t, orderID, stuff.Orders[0].ID)
	require.NotNil(t, stuff.Orders[0].Event)
	assert.Equal(t, "Concert", stuff.Orders[0].Event.Title)
	require.Len(t, stuff.RSVPs, 1)
	require.NotNil(t, stuff.RSVPs[0].Event)
	assert.Equal(t, "Meetup", stuff.RSVPs[0].Event.Title)

	items, err := lib.OrderItems(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	require.NotNil(t, items[0].TicketType)
	assert.Equal(t, "GA", items[0].TicketType.Name)

	passes, err := lib.Tickets(ctx)
	require.NoError(t, err)
	require.Len(t, passes, 2)
	for _, p := range passes {
		require.NotNil(t, p.Ticket.ScanCode)
		assert.Equal(t, *p.Ticket.ScanCode, p.Payload)
	}
}

func TestLibrary_TicketWithoutScanCodeUsesFallbackPayload(t *testing.T) {
	ctx := context.Background()
	fake, user, lib := newLibrary(t)
	event := fake.AddEvent(domain.Event{CreatorID: user.ID, Title: "Legacy", StartAt: now})
	ticket := fake.AddTicket(domain.Ticket{EventID: event.ID, OwnerUserID: user.ID, IsActive: true})

	passes, err := lib.Tickets(ctx)
	require.NoError(t, err)

	require.Len(t, passes, 1)
	assert.Equal(t, domain.FormatScanPayload(ticket.ID, event.ID, user.ID), passes[0].Payload)
	id, ok := domain.ParseScanPayload(passes[0].Payload)
	require.True(t, ok)
	assert.Equal(t, ticket.ID, id)
}

func TestLibrary_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("one failing listing fails the load", func(t *testing.T) {
		fake, _, lib := newLibrary(t)
		fake.FailNext("ListRSVPsByUser", &domain.RemoteError{Kind: domain.ErrTransport, Message: "timeout"})

		_, err := lib.Load(ctx)

		assert.ErrorIs(t, err, domain.ErrTransport)
	})

	t.Run("signed out", func(t *testing.T) {
		fake, _, lib := newLibrary(t)
		require.NoError(t, fake.SignOut(ctx))

		_, err := lib.Load(ctx)
		assert.ErrorIs(t, err, domain.ErrAuth)
		_, err = lib.Tickets(ctx)
		assert.ErrorIs(t, err, domain.ErrAuth)
		assert.Equal(t, 0, fake.Calls("ListOrdersByUser"))
	})
}
