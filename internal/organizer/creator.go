package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"github.com/google/uuid"
)

const (
	myEventsLimit   = 50
	ordersFeedLimit = 100
)

// Stage names the step of event creation that failed after the event row
// already existed.
type Stage string

const (
	StageTicketTypes Stage = "ticket_types"
	StageCoverUpload Stage = "cover_upload"
	StageCoverURL    Stage = "cover_url"
)

// PartialCreateError reports an event that was created but not fully set up.
// The event is left in place for the organizer to fix or delete.
type PartialCreateError struct {
	Event *domain.Event
	Stage Stage
	Err   error
}

func (e *PartialCreateError) Error() string {
	return fmt.Sprintf("event %q was created but %s failed: %v", e.Event.Title, strings.ReplaceAll(string(e.Stage), "_", " "), e.Err)
}

func (e *PartialCreateError) Unwrap() error {
	return e.Err
}

// Creator manages the events of the signed-in organizer.
type Creator struct {
	auth        gateway.Auth
	events      gateway.Events
	ticketTypes gateway.TicketTypes
	orders      gateway.Orders
	storage     gateway.Storage
	coverBucket string
	log         *slog.Logger
}

func NewCreator(gw *gateway.Gateway, coverBucket string, log *slog.Logger) *Creator {
	if log == nil {
		log = slog.Default()
	}
	return &Creator{
		auth:        gw.Auth,
		events:      gw.Events,
		ticketTypes: gw.TicketTypes,
		orders:      gw.Orders,
		storage:     gw.Storage,
		coverBucket: coverBucket,
		log:         log.With("component", "organizer"),
	}
}

// Create validates the form, then creates the event, its ticket types and
// its cover in that order. A failure after the event exists is returned as
// *PartialCreateError.
func (c *Creator) Create(ctx context.Context, form EventForm) (*domain.Event, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	user, err := c.currentUser()
	if err != nil {
		return nil, err
	}

	event, err := c.events.CreateEvent(ctx, form.insert(user.ID))
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	c.log.Info("event created", "event_id", event.ID, "published", event.IsPublished)

	if inserts := form.ticketTypes(event.ID, user.ID); len(inserts) > 0 {
		if err := c.ticketTypes.CreateTicketTypes(ctx, inserts); err != nil {
			return event, c.partial(event, StageTicketTypes, err)
		}
	}

	if len(form.Cover) > 0 {
		url, stage, err := c.uploadCover(ctx, event.ID, form.Cover)
		if err != nil {
			return event, c.partial(event, stage, err)
		}
		event.CoverURL = &url
	}

	return event, nil
}

func (c *Creator) partial(event *domain.Event, stage Stage, err error) error {
	c.log.Warn("event left partially created", "event_id", event.ID, "stage", stage, "error", err)
	return &PartialCreateError{Event: event, Stage: stage, Err: err}
}

// UploadCover replaces the cover of an existing event.
func (c *Creator) UploadCover(ctx context.Context, eventID uuid.UUID, jpeg []byte) (string, error) {
	if err := validateCover(jpeg); err != nil {
		return "", err
	}
	url, _, err := c.uploadCover(ctx, eventID, jpeg)
	return url, err
}

func (c *Creator) uploadCover(ctx context.Context, eventID uuid.UUID, jpeg []byte) (string, Stage, error) {
	path := strings.ToUpper(eventID.String()) + ".jpg"
	if err := c.storage.Upload(ctx, c.coverBucket, path, jpeg, "image/jpeg", true); err != nil {
		return "", StageCoverUpload, err
	}
	url := c.storage.PublicURL(c.coverBucket, path)
	if err := c.events.UpdateCoverURL(ctx, eventID, url); err != nil {
		return "", StageCoverURL, err
	}
	return url, "", nil
}

func (c *Creator) Update(ctx context.Context, eventID uuid.UUID, edit EventEdit) error {
	if err := edit.Validate(); err != nil {
		return err
	}
	if err := c.events.UpdateEvent(ctx, eventID, edit.update()); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	c.log.Info("event updated", "event_id", eventID)
	return nil
}

func (c *Creator) Publish(ctx context.Context, eventID uuid.UUID) error {
	if err := c.events.PublishEvent(ctx, eventID); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	c.log.Info("event published", "event_id", eventID)
	return nil
}

// Delete removes the event. Ticket types, orders and tickets go with it.
func (c *Creator) Delete(ctx context.Context, eventID uuid.UUID) error {
	if err := c.events.DeleteEvent(ctx, eventID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	c.log.Info("event deleted", "event_id", eventID)
	return nil
}

// MyEvents lists the organizer's events, drafts included.
func (c *Creator) MyEvents(ctx context.Context) ([]domain.Event, error) {
	user, err := c.currentUser()
	if err != nil {
		return nil, err
	}
	return c.events.ListByCreator(ctx, user.ID, myEventsLimit)
}

// OrdersFeed lists recent orders across all of the organizer's events.
func (c *Creator) OrdersFeed(ctx context.Context) ([]domain.Order, error) {
	user, err := c.currentUser()
	if err != nil {
		return nil, err
	}
	return c.orders.ListOrdersByOrganizer(ctx, user.ID, nil, ordersFeedLimit)
}

func (c *Creator) currentUser() (*domain.User, error) {
	user := c.auth.CurrentUser()
	if user == nil {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "You are not logged in."}
	}
	return user, nil
}
