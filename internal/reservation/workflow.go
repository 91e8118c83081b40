// Package reservation drives checkout for one event: quantity selection and
// order creation for paid events, RSVP for free ones.
package reservation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"github.com/google/uuid"
)

type Phase int

const (
	PhaseLoading Phase = iota
	PhaseIdle
	PhaseSubmitting
	PhaseReserved
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhaseReserved:
		return "reserved"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrBusy      = errors.New("another operation is in progress")
	ErrCompleted = errors.New("reservation already completed")
)

// Line is one ticket type with the current selection for it.
type Line struct {
	TicketType domain.TicketType
	Quantity   int
}

// State is a copy of the workflow state at one point in time.
type State struct {
	Phase   Phase
	Event   domain.Event
	Lines   []Line
	RSVP    *domain.RSVP
	OrderID uuid.UUID
	Err     error
}

// Going reports whether the caller holds a "going" RSVP.
func (s State) Going() bool {
	return s.RSVP != nil && s.RSVP.Status == domain.RSVPGoing
}

// Workflow is the reservation state machine for one event. It is safe for
// concurrent use, but only one gateway operation runs at a time.
type Workflow struct {
	auth        gateway.Auth
	ticketTypes gateway.TicketTypes
	orders      gateway.Orders
	rsvps       gateway.RSVPs
	log         *slog.Logger

	mu         sync.Mutex
	event      domain.Event
	phase      Phase
	busy       bool
	types      []domain.TicketType
	quantities map[uuid.UUID]int
	rsvp       *domain.RSVP
	orderID    uuid.UUID
	err        error
}

func New(gw *gateway.Gateway, event domain.Event, log *slog.Logger) *Workflow {
	if log == nil {
		log = slog.Default()
	}
	return &Workflow{
		auth:        gw.Auth,
		ticketTypes: gw.TicketTypes,
		orders:      gw.Orders,
		rsvps:       gw.RSVPs,
		log:         log.With("component", "reservation", "event_id", event.ID),
		event:       event,
		phase:       PhaseLoading,
		quantities:  make(map[uuid.UUID]int),
	}
}

// Load fetches the caller's RSVP for a free event, or the active ticket types
// for a paid one. Existing selections are clamped to the fresh availability.
// A completed reservation is only reloaded through Return.
func (w *Workflow) Load(ctx context.Context) error {
	if err := w.start(PhaseLoading); err != nil {
		return err
	}

	if w.event.IsFree {
		rsvp, err := w.fetchRSVP(ctx)
		w.finish(func() {
			if err == nil {
				w.rsvp = rsvp
			}
		}, err)
		return err
	}

	types, err := w.ticketTypes.ListActiveTicketTypes(ctx, w.event.ID)
	w.finish(func() {
		if err == nil {
			w.applyTypes(types)
		}
	}, err)
	return err
}

// applyTypes must be called with w.mu held.
func (w *Workflow) applyTypes(types []domain.TicketType) {
	fresh := make(map[uuid.UUID]int, len(types))
	for i := range types {
		t := &types[i]
		fresh[t.ID] = clamp(w.quantities[t.ID], t.Available())
	}
	w.types = types
	w.quantities = fresh
}

// SetQuantity clamps requested into [0, available] for the ticket type and
// returns the stored quantity. Unknown ids clamp to zero.
func (w *Workflow) SetQuantity(ticketTypeID uuid.UUID, requested int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.event.IsFree {
		return 0, errFreeEvent()
	}
	if w.busy {
		return w.quantities[ticketTypeID], ErrBusy
	}
	if w.phase == PhaseReserved {
		return w.quantities[ticketTypeID], ErrCompleted
	}

	available := 0
	for i := range w.types {
		if w.types[i].ID == ticketTypeID {
			available = w.types[i].Available()
			break
		}
	}
	q := clamp(requested, available)
	if q > 0 {
		w.quantities[ticketTypeID] = q
	} else if _, known := w.quantities[ticketTypeID]; known {
		w.quantities[ticketTypeID] = 0
	}
	return q, nil
}

// Submit creates the order from every selection with a positive quantity.
// The order call is made once and never retried; on failure the selections
// are kept.
func (w *Workflow) Submit(ctx context.Context) (uuid.UUID, error) {
	w.mu.Lock()
	if w.event.IsFree {
		w.mu.Unlock()
		return uuid.Nil, errFreeEvent()
	}
	if w.busy {
		w.mu.Unlock()
		return uuid.Nil, ErrBusy
	}
	if w.phase == PhaseReserved {
		id := w.orderID
		w.mu.Unlock()
		return id, ErrCompleted
	}
	items := w.items()
	if len(items) == 0 {
		w.mu.Unlock()
		return uuid.Nil, domain.NewValidationError("quantity", "Select at least one ticket.")
	}
	w.busy = true
	w.phase = PhaseSubmitting
	w.err = nil
	w.mu.Unlock()

	w.log.Info("submitting order", "lines", len(items))
	orderID, err := w.orders.CreateOrder(ctx, w.event.ID, items)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy = false
	if err != nil {
		w.log.Warn("order rejected", "error", err)
		w.phase = PhaseFailed
		w.err = err
		return uuid.Nil, err
	}
	w.log.Info("order reserved", "order_id", orderID)
	w.phase = PhaseReserved
	w.orderID = orderID
	return orderID, nil
}

// items must be called with w.mu held. Lines follow ticket type creation order.
func (w *Workflow) items() []domain.CheckoutItem {
	var items []domain.CheckoutItem
	for _, t := range w.types {
		if q := w.quantities[t.ID]; q > 0 {
			items = append(items, domain.CheckoutItem{TicketTypeID: t.ID, Quantity: q})
		}
	}
	return items
}

// Return leaves a completed reservation: selections are discarded and
// availability is reloaded.
func (w *Workflow) Return(ctx context.Context) error {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return ErrBusy
	}
	w.quantities = make(map[uuid.UUID]int)
	w.orderID = uuid.Nil
	w.err = nil
	w.phase = PhaseLoading
	w.mu.Unlock()

	return w.Load(ctx)
}

// RSVPGoing marks the caller as going to a free event. Repeating it is harmless.
func (w *Workflow) RSVPGoing(ctx context.Context) (*domain.RSVP, error) {
	return w.mutateRSVP(ctx, func(userID uuid.UUID) error {
		return w.rsvps.UpsertRSVP(ctx, domain.RSVPUpsert{EventID: w.event.ID, UserID: userID, Status: domain.RSVPGoing})
	})
}

// CancelRSVP removes the caller's RSVP. Cancelling without one is not an error.
func (w *Workflow) CancelRSVP(ctx context.Context) (*domain.RSVP, error) {
	return w.mutateRSVP(ctx, func(userID uuid.UUID) error {
		return w.rsvps.DeleteRSVP(ctx, w.event.ID, userID)
	})
}

// mutateRSVP runs the write and then re-reads the RSVP so the state reflects
// the server rather than the assumed outcome.
func (w *Workflow) mutateRSVP(ctx context.Context, write func(uuid.UUID) error) (*domain.RSVP, error) {
	if !w.event.IsFree {
		return nil, domain.NewValidationError("event", "This event sells tickets; RSVP is not available.")
	}
	if err := w.start(PhaseSubmitting); err != nil {
		return nil, err
	}

	var rsvp *domain.RSVP
	err := w.withUser(func(userID uuid.UUID) error {
		if err := write(userID); err != nil {
			return err
		}
		var err error
		rsvp, err = w.rsvps.GetRSVP(ctx, w.event.ID, userID)
		return err
	})

	w.finish(func() {
		if err == nil {
			w.rsvp = rsvp
		}
	}, err)
	return rsvp, err
}

func (w *Workflow) fetchRSVP(ctx context.Context) (*domain.RSVP, error) {
	var rsvp *domain.RSVP
	err := w.withUser(func(userID uuid.UUID) error {
		var err error
		rsvp, err = w.rsvps.GetRSVP(ctx, w.event.ID, userID)
		return err
	})
	return rsvp, err
}

func (w *Workflow) withUser(fn func(uuid.UUID) error) error {
	user := w.auth.CurrentUser()
	if user == nil {
		return &domain.RemoteError{Kind: domain.ErrAuth, Message: "Not authenticated"}
	}
	return fn(user.ID)
}

// start claims the workflow for one gateway operation.
func (w *Workflow) start(phase Phase) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	if w.phase == PhaseReserved {
		return ErrCompleted
	}
	w.busy = true
	w.phase = phase
	return nil
}

// finish applies the result of the operation claimed by start.
func (w *Workflow) finish(apply func(), err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy = false
	if err != nil {
		w.log.Warn("reservation step failed", "phase", w.phase, "error", err)
		w.phase = PhaseFailed
		w.err = err
		return
	}
	apply()
	w.phase = PhaseIdle
	w.err = nil
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	lines := make([]Line, 0, len(w.types))
	for _, t := range w.types {
		lines = append(lines, Line{TicketType: t, Quantity: w.quantities[t.ID]})
	}
	return State{
		Phase:   w.phase,
		Event:   w.event,
		Lines:   lines,
		RSVP:    w.rsvp,
		OrderID: w.orderID,
		Err:     w.err,
	}
}

func clamp(requested, available int) int {
	return min(max(0, requested), max(0, available))
}

func errFreeEvent() error {
	return domain.NewValidationError("event", "This event is free; RSVP instead of buying tickets.")
}
