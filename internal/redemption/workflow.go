// Package redemption resolves scanned ticket codes for an organizer and
// redeems each ticket at most once.
package redemption

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"github.com/google/uuid"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseResolved
	PhaseNotFound
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseResolved:
		return "resolved"
	case PhaseNotFound:
		return "not_found"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome describes what a resolved scan did to the ticket.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeRedeemed
	OutcomeAlreadyScanned
	OutcomeDisabled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRedeemed:
		return "redeemed"
	case OutcomeAlreadyScanned:
		return "already_scanned"
	case OutcomeDisabled:
		return "disabled"
	default:
		return "none"
	}
}

var (
	ErrScanInProgress = errors.New("a scan is already being processed")
	ErrBusy           = errors.New("another ticket update is in progress")
)

// Result is the state after the latest scan or toggle.
type Result struct {
	Phase   Phase
	Code    string
	Ticket  *domain.Ticket
	Outcome Outcome
	Err     error
}

// Message is the feedback line shown to the organizer.
func (r Result) Message() string {
	switch r.Phase {
	case PhaseNotFound:
		return "Ticket not found for this event."
	case PhaseError:
		if r.Err != nil {
			return r.Err.Error()
		}
		return "Something went wrong."
	case PhaseResolved:
		switch r.Outcome {
		case OutcomeRedeemed:
			return "Ticket scanned and disabled."
		case OutcomeAlreadyScanned:
			return "Ticket already scanned. You can still toggle enable/disable manually."
		case OutcomeDisabled:
			return "Ticket is disabled."
		}
	}
	return ""
}

type Option func(*Workflow)

func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithRefresh registers a hook run after every successful mutation.
func WithRefresh(fn func(context.Context)) Option {
	return func(w *Workflow) { w.refresh = fn }
}

// Workflow redeems tickets of one event on behalf of its organizer. Every
// lookup is restricted to that scope.
type Workflow struct {
	tickets gateway.Tickets
	scope   gateway.TicketScope
	log     *slog.Logger
	now     func() time.Time
	refresh func(context.Context)

	mu         sync.Mutex
	processing bool
	toggling   bool
	result     Result
}

func New(tickets gateway.Tickets, scope gateway.TicketScope, log *slog.Logger, opts ...Option) *Workflow {
	if log == nil {
		log = slog.Default()
	}
	w := &Workflow{
		tickets: tickets,
		scope:   scope,
		log:     log.With("component", "redemption", "event_id", scope.EventID),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Process resolves one scanned code. While another scan is being processed
// the call returns ErrScanInProgress and leaves the state untouched.
func (w *Workflow) Process(ctx context.Context, code string) (Result, error) {
	code = strings.TrimSpace(code)

	w.mu.Lock()
	if w.processing {
		current := w.result
		w.mu.Unlock()
		return current, ErrScanInProgress
	}
	w.processing = true
	w.result = Result{Phase: PhaseScanning, Code: code}
	w.mu.Unlock()

	result := w.process(ctx, code)

	w.mu.Lock()
	w.processing = false
	w.result = result
	w.mu.Unlock()

	w.log.Info("scan processed", "phase", result.Phase, "outcome", result.Outcome)
	return result, result.Err
}

func (w *Workflow) process(ctx context.Context, code string) Result {
	result := Result{Code: code}

	ticket, err := w.resolve(ctx, code)
	if err != nil {
		result.Phase = PhaseError
		result.Err = err
		return result
	}
	if ticket == nil {
		result.Phase = PhaseNotFound
		return result
	}

	result.Phase = PhaseResolved
	result.Ticket = ticket

	switch {
	case ticket.Redeemable():
		result.Outcome = OutcomeRedeemed
		if err := w.tickets.MarkTicketScanned(ctx, ticket.ID, w.now()); err != nil {
			w.log.Warn("mark scanned failed", "ticket_id", ticket.ID, "error", err)
			return Result{Phase: PhaseError, Code: code, Ticket: ticket, Err: err}
		}
		w.runRefresh(ctx)
		canonical, err := w.tickets.FindTicketByID(ctx, w.scope, ticket.ID)
		if err != nil {
			result.Phase = PhaseError
			result.Err = err
			return result
		}
		if canonical != nil {
			result.Ticket = canonical
		}
	case ticket.Scanned():
		result.Outcome = OutcomeAlreadyScanned
	default:
		result.Outcome = OutcomeDisabled
	}
	return result
}

// resolve tries the scan code first, then the structured fallback payload.
func (w *Workflow) resolve(ctx context.Context, code string) (*domain.Ticket, error) {
	if code == "" {
		return nil, nil
	}
	ticket, err := w.tickets.FindTicketByScanCode(ctx, w.scope, code)
	if err != nil || ticket != nil {
		return ticket, err
	}
	id, ok := domain.ParseScanPayload(code)
	if !ok {
		return nil, nil
	}
	return w.tickets.FindTicketByID(ctx, w.scope, id)
}

// Toggle flips is_active on a ticket of this event. Scan status and time are
// never changed.
func (w *Workflow) Toggle(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	w.mu.Lock()
	if w.toggling {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	w.toggling = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.toggling = false
		w.mu.Unlock()
	}()

	ticket, err := w.tickets.FindTicketByID(ctx, w.scope, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, &domain.RemoteError{Kind: domain.ErrNotFound, Message: "Ticket not found for this event."}
	}

	if err := w.tickets.SetTicketActive(ctx, ticket.ID, !ticket.IsActive); err != nil {
		return nil, err
	}
	w.log.Info("ticket toggled", "ticket_id", ticket.ID, "active", !ticket.IsActive)
	w.runRefresh(ctx)

	refreshed, err := w.tickets.FindTicketByID(ctx, w.scope, ticket.ID)
	if err != nil {
		return nil, err
	}
	if refreshed == nil {
		return nil, &domain.RemoteError{Kind: domain.ErrNotFound, Message: "Ticket not found for this event."}
	}

	w.mu.Lock()
	if w.result.Ticket != nil && w.result.Ticket.ID == refreshed.ID {
		w.result.Ticket = refreshed
	}
	w.mu.Unlock()
	return refreshed, nil
}

func (w *Workflow) Result() Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

func (w *Workflow) Processing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.processing
}

func (w *Workflow) runRefresh(ctx context.Context) {
	if w.refresh != nil {
		w.refresh(ctx)
	}
}
