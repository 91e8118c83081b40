package reservation_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/reservation"
	"github.com/dom/pulse/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paidFixture struct {
	fake    *testutil.FakeGateway
	buyer   *domain.User
	event   domain.Event
	general domain.TicketType
	vip     domain.TicketType
}

func newPaidFixture(t *testing.T) *paidFixture {
	t.Helper()
	fake := testutil.NewFakeGateway()
	organizer := fake.AddUser("org@example.com", "secret123")
	buyer := fake.AddUser("buyer@example.com", "secret123")
	fake.SignInAs(buyer, time.Now().Add(time.Hour))

	event := fake.AddEvent(domain.Event{
		CreatorID:   organizer.ID,
		Title:       "Night Market",
		StartAt:     time.Now().Add(48 * time.Hour),
		IsPublished: true,
	})
	general := fake.AddTicketType(domain.TicketType{
		EventID: event.ID, CreatorID: organizer.ID, Name: "General", PriceCents: 2500, Capacity: 10, IsActive: true,
	})
	vip := fake.AddTicketType(domain.TicketType{
		EventID: event.ID, CreatorID: organizer.ID, Name: "VIP", PriceCents: 9000, Capacity: 3, IsActive: true,
	})
	return &paidFixture{fake: fake, buyer: buyer, event: event, general: general, vip: vip}
}

func (f *paidFixture) workflow(t *testing.T) *reservation.Workflow {
	t.Helper()
	w := reservation.New(f.fake.Gateway(), f.event, nil)
	require.NoError(t, w.Load(context.Background()))
	return w
}

func quantityOf(state reservation.State, id uuid.UUID) int {
	for _, line := range state.Lines {
		if line.TicketType.ID == id {
			return line.Quantity
		}
	}
	return -1
}

func TestWorkflow_LoadPaid(t *testing.T) {
	f := newPaidFixture(t)
	inactive := f.fake.AddTicketType(domain.TicketType{
		EventID: f.event.ID, CreatorID: f.event.CreatorID, Name: "Hidden", Capacity: 5, IsActive: false,
	})

	w := f.workflow(t)
	state := w.State()

	assert.Equal(t, reservation.PhaseIdle, state.Phase)
	require.Len(t, state.Lines, 2)
	assert.Equal(t, "General", state.Lines[0].TicketType.Name)
	assert.Equal(t, "VIP", state.Lines[1].TicketType.Name)
	for _, line := range state.Lines {
		assert.Zero(t, line.Quantity)
		assert.NotEqual(t, inactive.ID, line.TicketType.ID)
	}
}

func TestWorkflow_SetQuantityClamps(t *testing.T) {
	f := newPaidFixture(t)
	w := f.workflow(t)

	for requested := -5; requested <= 15; requested++ {
		got, err := w.SetQuantity(f.vip.ID, requested)
		require.NoError(t, err)
		assert.Equal(t, min(max(0, requested), 3), got, "requested %d", requested)
	}

	got, err := w.SetQuantity(uuid.New(), 4)
	require.NoError(t, err)
	assert.Zero(t, got, "unknown ticket types clamp to zero")
}

func TestWorkflow_ReloadReclampsSelections(t *testing.T) {
	f := newPaidFixture(t)
	w := f.workflow(t)

	_, err := w.SetQuantity(f.general.ID, 6)
	require.NoError(t, err)
	_, err = w.SetQuantity(f.vip.ID, 2)
	require.NoError(t, err)

	f.fake.SetRemaining(f.general.ID, 4)
	f.fake.SetRemaining(f.vip.ID, 0)
	require.NoError(t, w.Load(context.Background()))

	state := w.State()
	assert.Equal(t, 4, quantityOf(state, f.general.ID))
	assert.Equal(t, 0, quantityOf(state, f.vip.ID))
}

func TestWorkflow_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("no selection is rejected locally", func(t *testing.T) {
		f := newPaidFixture(t)
		w := f.workflow(t)

		_, err := w.Submit(ctx)

		testutil.AssertValidationError(t, err, "quantity")
		assert.Equal(t, 0, f.fake.Calls("CreateOrder"))
		assert.Equal(t, reservation.PhaseIdle, w.State().Phase)
	})

	t.Run("reserves positive selections", func(t *testing.T) {
		f := newPaidFixture(t)
		w := f.workflow(t)
		_, err := w.SetQuantity(f.general.ID, 2)
		require.NoError(t, err)
		_, err = w.SetQuantity(f.vip.ID, 0)
		require.NoError(t, err)

		orderID, err := w.Submit(ctx)
		require.NoError(t, err)

		state := w.State()
		assert.Equal(t, reservation.PhaseReserved, state.Phase)
		assert.Equal(t, orderID, state.OrderID)

		general, _ := f.fake.TicketType(f.general.ID)
		testutil.AssertSoldCount(t, &general, 2)
		vip, _ := f.fake.TicketType(f.vip.ID)
		testutil.AssertSoldCount(t, &vip, 0)

		items, err := f.fake.ListOrderItems(ctx, orderID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, f.general.ID, items[0].TicketTypeID)

		_, err = w.Submit(ctx)
		assert.ErrorIs(t, err, reservation.ErrCompleted)
		assert.Equal(t, 1, f.fake.Calls("CreateOrder"))
	})

	t.Run("sold out between load and submit surfaces the server message", func(t *testing.T) {
		f := newPaidFixture(t)
		w := f.workflow(t)
		_, err := w.SetQuantity(f.vip.ID, 3)
		require.NoError(t, err)

		f.fake.SetRemaining(f.vip.ID, 1)
		_, err = w.Submit(ctx)

		testutil.AssertRemoteError(t, err, domain.ErrConflict, "Not enough tickets remaining for VIP")
		state := w.State()
		assert.Equal(t, reservation.PhaseFailed, state.Phase)
		assert.Equal(t, err, state.Err)
		assert.Equal(t, 3, quantityOf(state, f.vip.ID), "selections survive a failed submit")
		assert.Equal(t, 1, f.fake.Calls("CreateOrder"), "never retried")
	})

	t.Run("re-entrant submit is refused", func(t *testing.T) {
		f := newPaidFixture(t)
		w := f.workflow(t)
		_, err := w.SetQuantity(f.general.ID, 1)
		require.NoError(t, err)

		gate := f.fake.Hold("CreateOrder")
		done := make(chan error, 1)
		go func() {
			_, err := w.Submit(ctx)
			done <- err
		}()
		<-gate.Entered()

		assert.Equal(t, reservation.PhaseSubmitting, w.State().Phase)
		_, err = w.Submit(ctx)
		assert.ErrorIs(t, err, reservation.ErrBusy)
		_, err = w.SetQuantity(f.general.ID, 5)
		assert.ErrorIs(t, err, reservation.ErrBusy)

		gate.Release()
		require.NoError(t, <-done)
		assert.Equal(t, 1, f.fake.Calls("CreateOrder"))
		assert.Equal(t, reservation.PhaseReserved, w.State().Phase)
	})
}

func TestWorkflow_Return(t *testing.T) {
	ctx := context.Background()
	f := newPaidFixture(t)
	w := f.workflow(t)
	_, err := w.SetQuantity(f.vip.ID, 3)
	require.NoError(t, err)
	_, err = w.Submit(ctx)
	require.NoError(t, err)

	require.NoError(t, w.Return(ctx))

	state := w.State()
	assert.Equal(t, reservation.PhaseIdle, state.Phase)
	assert.Equal(t, uuid.Nil, state.OrderID)
	for _, line := range state.Lines {
		assert.Zero(t, line.Quantity)
		if line.TicketType.ID == f.vip.ID {
			assert.True(t, line.TicketType.SoldOut(), "availability reloaded after purchase")
		}
	}
	assert.Equal(t, 2, f.fake.Calls("ListActiveTicketTypes"))
}

func TestWorkflow_LoadAfterReservation(t *testing.T) {
	ctx := context.Background()
	f := newPaidFixture(t)
	w := f.workflow(t)
	_, err := w.SetQuantity(f.general.ID, 2)
	require.NoError(t, err)
	orderID, err := w.Submit(ctx)
	require.NoError(t, err)

	err = w.Load(ctx)
	assert.ErrorIs(t, err, reservation.ErrCompleted)

	state := w.State()
	assert.Equal(t, reservation.PhaseReserved, state.Phase)
	assert.Equal(t, orderID, state.OrderID)
	assert.Equal(t, 1, f.fake.Calls("ListActiveTicketTypes"))

	_, err = w.Submit(ctx)
	assert.ErrorIs(t, err, reservation.ErrCompleted)
	assert.Equal(t, 1, f.fake.Calls("CreateOrder"))
}

func TestWorkflow_Checkout(t *testing.T) {
	f := newPaidFixture(t)
	w := f.workflow(t)
	assert.True(t, w.Checkout().Empty())

	_, err := w.SetQuantity(f.general.ID, 2)
	require.NoError(t, err)
	_, err = w.SetQuantity(f.vip.ID, 1)
	require.NoError(t, err)

	summary := w.Checkout()

	require.Len(t, summary.Lines, 2)
	assert.Equal(t, 5000, summary.Lines[0].SubtotalCents)
	assert.Equal(t, 9000, summary.Lines[1].SubtotalCents)
	assert.Equal(t, 14000, summary.TotalCents)
	assert.Equal(t, "CAD", summary.Currency)
	assert.Equal(t, "140.00 CAD", reservation.FormatCents(summary.TotalCents, summary.Currency))
	assert.False(t, summary.MixedCurrency())
}

func TestWorkflow_CheckoutMixedCurrencies(t *testing.T) {
	f := newPaidFixture(t)
	usd := f.fake.AddTicketType(domain.TicketType{
		EventID: f.event.ID, CreatorID: f.event.CreatorID, Name: "Visitor", PriceCents: 4000, Currency: "usd", Capacity: 5, IsActive: true,
	})
	w := f.workflow(t)

	_, err := w.SetQuantity(f.general.ID, 2)
	require.NoError(t, err)
	_, err = w.SetQuantity(usd.ID, 1)
	require.NoError(t, err)

	summary := w.Checkout()

	require.Len(t, summary.Lines, 2)
	assert.True(t, summary.MixedCurrency())
	assert.Empty(t, summary.Currency)
	assert.Zero(t, summary.TotalCents)
	assert.Equal(t, map[string]int{"CAD": 5000, "USD": 4000}, summary.Totals)
	assert.Equal(t, "USD", summary.Lines[1].Currency)
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents    int
		expected string
	}{
		{0, "0.00 CAD"},
		{5, "0.05 CAD"},
		{2500, "25.00 CAD"},
		{-150, "-1.50 CAD"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, reservation.FormatCents(tt.cents, "CAD"))
	}
}

func newFreeWorkflow(t *testing.T) (*testutil.FakeGateway, *domain.User, *reservation.Workflow) {
	t.Helper()
	fake := testutil.NewFakeGateway()
	organizer := fake.AddUser("host@example.com", "secret123")
	guest := fake.AddUser("guest@example.com", "secret123")
	fake.SignInAs(guest, time.Now().Add(time.Hour))

	event := fake.AddEvent(domain.Event{
		CreatorID:   organizer.ID,
		Title:       "Park Picnic",
		StartAt:     time.Now().Add(24 * time.Hour),
		IsFree:      true,
		IsPublished: true,
	})
	w := reservation.New(fake.Gateway(), event, nil)
	require.NoError(t, w.Load(context.Background()))
	return fake, guest, w
}

func TestWorkflow_RSVP(t *testing.T) {
	ctx := context.Background()

	t.Run("going twice leaves one rsvp", func(t *testing.T) {
		fake, guest, w := newFreeWorkflow(t)
		assert.False(t, w.State().Going())

		_, err := w.RSVPGoing(ctx)
		require.NoError(t, err)
		rsvp, err := w.RSVPGoing(ctx)
		require.NoError(t, err)

		require.NotNil(t, rsvp)
		assert.Equal(t, domain.RSVPGoing, rsvp.Status)
		assert.True(t, w.State().Going())

		all, err := fake.ListRSVPsByUser(ctx, guest.ID, 0)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("cancel without rsvp is a no-op", func(t *testing.T) {
		_, _, w := newFreeWorkflow(t)

		rsvp, err := w.CancelRSVP(ctx)

		require.NoError(t, err)
		assert.Nil(t, rsvp)
		assert.Equal(t, reservation.PhaseIdle, w.State().Phase)
	})

	t.Run("state follows the server after a write", func(t *testing.T) {
		fake, _, w := newFreeWorkflow(t)
		_, err := w.RSVPGoing(ctx)
		require.NoError(t, err)

		fake.FailNext("DeleteRSVP", &domain.RemoteError{Kind: domain.ErrTransport, Message: "timeout"})
		_, err = w.CancelRSVP(ctx)

		assert.ErrorIs(t, err, domain.ErrTransport)
		state := w.State()
		assert.Equal(t, reservation.PhaseFailed, state.Phase)
		assert.True(t, state.Going(), "prior state kept on failure")

		_, err = w.CancelRSVP(ctx)
		require.NoError(t, err)
		assert.False(t, w.State().Going())
	})

	t.Run("signed out caller is rejected", func(t *testing.T) {
		fake, _, w := newFreeWorkflow(t)
		require.NoError(t, fake.SignOut(ctx))

		_, err := w.RSVPGoing(ctx)

		assert.ErrorIs(t, err, domain.ErrAuth)
		assert.Equal(t, 0, fake.Calls("UpsertRSVP"))
	})
}

func TestWorkflow_WrongEventKind(t *testing.T) {
	ctx := context.Background()

	_, _, free := newFreeWorkflow(t)
	_, err := free.SetQuantity(uuid.New(), 1)
	testutil.AssertValidationError(t, err, "event")
	_, err = free.Submit(ctx)
	testutil.AssertValidationError(t, err, "event")

	paid := newPaidFixture(t).workflow(t)
	_, err = paid.RSVPGoing(ctx)
	testutil.AssertValidationError(t, err, "event")
	_, err = paid.CancelRSVP(ctx)
	testutil.AssertValidationError(t, err, "event")
}
