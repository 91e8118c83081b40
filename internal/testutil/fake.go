package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"github.com/google/uuid"
)

// FakeGateway is an in-memory backend implementing every gateway
// capability. Failures can be injected per method and calls can be held at
// a Gate to exercise in-flight behavior.
type FakeGateway struct {
	mu       sync.Mutex
	notifier *gateway.Notifier
	now      func() time.Time

	users       map[uuid.UUID]fakeUser
	profiles    map[uuid.UUID]domain.Profile
	events      map[uuid.UUID]domain.Event
	ticketTypes []domain.TicketType
	orders      []domain.Order
	orderItems  []domain.OrderItem
	rsvps       map[[2]uuid.UUID]domain.RSVP
	tickets     []domain.Ticket
	objects     map[string][]byte

	failures map[string][]error
	sticky   map[string]error
	gates    map[string]*Gate
	calls    map[string]int
}

type fakeUser struct {
	user     domain.User
	password string
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		notifier: gateway.NewNotifier(),
		now:      time.Now,
		users:    make(map[uuid.UUID]fakeUser),
		profiles: make(map[uuid.UUID]domain.Profile),
		events:   make(map[uuid.UUID]domain.Event),
		rsvps:    make(map[[2]uuid.UUID]domain.RSVP),
		objects:  make(map[string][]byte),
		failures: make(map[string][]error),
		sticky:   make(map[string]error),
		gates:    make(map[string]*Gate),
		calls:    make(map[string]int),
	}
}

// Gateway exposes the fake through the capability surface.
func (f *FakeGateway) Gateway() *gateway.Gateway {
	return &gateway.Gateway{
		Auth:        f,
		Profiles:    f,
		Events:      f,
		TicketTypes: f,
		Orders:      f,
		RSVPs:       f,
		Tickets:     f,
		Storage:     f,
	}
}

// SetClock replaces the fake's time source.
func (f *FakeGateway) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// FailNext makes the next call to method return err. Calls queue up.
func (f *FakeGateway) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], err)
}

// FailAlways makes every call to method return err until cleared with nil.
func (f *FakeGateway) FailAlways(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.sticky, method)
		return
	}
	f.sticky[method] = err
}

// Calls reports how many times method was invoked.
func (f *FakeGateway) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Gate holds calls to one method until released.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Entered is signalled each time a call reaches the gate.
func (g *Gate) Entered() <-chan struct{} {
	return g.entered
}

// Release lets every held and future call through.
func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}

// Hold installs a gate on method.
func (f *FakeGateway) Hold(method string) *Gate {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &Gate{entered: make(chan struct{}, 16), release: make(chan struct{})}
	f.gates[method] = g
	return g
}

// enter records the call, waits at any gate and returns an injected failure.
func (f *FakeGateway) enter(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls[method]++
	gate := f.gates[method]
	f.mu.Unlock()

	if gate != nil {
		select {
		case gate.entered <- struct{}{}:
		default:
		}
		select {
		case <-gate.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if queued := f.failures[method]; len(queued) > 0 {
		f.failures[method] = queued[1:]
		return queued[0]
	}
	return f.sticky[method]
}

func notFound(what string) error {
	return &domain.RemoteError{Kind: domain.ErrNotFound, Message: what + " not found"}
}

// ---- seeding ----

// AddUser registers an account that can sign in with password.
func (f *FakeGateway) AddUser(email, password string) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	user := domain.User{ID: uuid.New(), Email: email, CreatedAt: now, UpdatedAt: now}
	f.users[user.ID] = fakeUser{user: user, password: password}
	return &user
}

// AddProfile stores a profile row as-is.
func (f *FakeGateway) AddProfile(profile domain.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[profile.ID] = profile
}

// AddCompletedProfile stores a completed profile with the given role.
func (f *FakeGateway) AddCompletedProfile(userID uuid.UUID, fullName string, role domain.Role) {
	f.AddProfile(*domain.ProfileUpsert{
		ID:          userID,
		FullName:    fullName,
		Birthdate:   "1990-01-01",
		Interests:   []string{"Music"},
		Role:        role,
		IsCompleted: true,
	}.Profile())
}

func (f *FakeGateway) AddEvent(event domain.Event) domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = f.now()
	}
	f.events[event.ID] = event
	return event
}

func (f *FakeGateway) AddTicketType(tt domain.TicketType) domain.TicketType {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tt.ID == uuid.Nil {
		tt.ID = uuid.New()
	}
	if tt.Currency == "" {
		tt.Currency = domain.DefaultCurrency
	}
	if tt.SoldCount == nil {
		sold := 0
		tt.SoldCount = &sold
	}
	if tt.CreatedAt.IsZero() {
		tt.CreatedAt = f.now().Add(time.Duration(len(f.ticketTypes)) * time.Millisecond)
	}
	f.ticketTypes = append(f.ticketTypes, tt)
	return tt
}

func (f *FakeGateway) AddTicket(ticket domain.Ticket) domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusValid
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = f.now()
	}
	f.tickets = append(f.tickets, ticket)
	return ticket
}

// Ticket returns the stored ticket by id.
func (f *FakeGateway) Ticket(id uuid.UUID) (domain.Ticket, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Ticket{}, false
}

// TicketType returns the stored ticket type by id.
func (f *FakeGateway) TicketType(id uuid.UUID) (domain.TicketType, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tt := range f.ticketTypes {
		if tt.ID == id {
			return tt, true
		}
	}
	return domain.TicketType{}, false
}

// SetRemaining overrides the server-computed remaining count of a type.
func (f *FakeGateway) SetRemaining(id uuid.UUID, remaining int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.ticketTypes {
		if f.ticketTypes[i].ID == id {
			sold := f.ticketTypes[i].Capacity - remaining
			f.ticketTypes[i].SoldCount = &sold
		}
	}
}

// Object returns an uploaded object.
func (f *FakeGateway) Object(bucket, path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+path]
	return data, ok
}

// SignInAs publishes a session for user without checking a password.
func (f *FakeGateway) SignInAs(user *domain.User, expiresAt time.Time) *domain.Session {
	session := &domain.Session{
		AccessToken:  "access-" + user.ID.String(),
		RefreshToken: "refresh-" + user.ID.String(),
		ExpiresAt:    expiresAt,
		User:         *user,
	}
	f.notifier.Publish(gateway.AuthSignedIn, session)
	return session
}

// Publish emits an arbitrary auth change.
func (f *FakeGateway) Publish(event gateway.AuthEvent, session *domain.Session) {
	f.notifier.Publish(event, session)
}

// ---- Auth ----

func (f *FakeGateway) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	if err := f.enter(ctx, "SignUp"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	for _, u := range f.users {
		if strings.EqualFold(u.user.Email, email) {
			f.mu.Unlock()
			return nil, &domain.RemoteError{Kind: domain.ErrConflict, Message: "User already registered"}
		}
	}
	f.mu.Unlock()

	user := f.AddUser(email, password)
	return f.SignInAs(user, f.now().Add(time.Hour)), nil
}

func (f *FakeGateway) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	if err := f.enter(ctx, "SignIn"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	var found *domain.User
	for _, u := range f.users {
		if strings.EqualFold(u.user.Email, email) && u.password == password {
			user := u.user
			found = &user
		}
	}
	expiresAt := f.now().Add(time.Hour)
	f.mu.Unlock()

	if found == nil {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "Invalid login credentials"}
	}
	return f.SignInAs(found, expiresAt), nil
}

func (f *FakeGateway) SignOut(ctx context.Context) error {
	err := f.enter(ctx, "SignOut")
	if f.notifier.Current() != nil {
		f.notifier.Publish(gateway.AuthSignedOut, nil)
	}
	return err
}

func (f *FakeGateway) User(ctx context.Context) (*domain.User, error) {
	if err := f.enter(ctx, "User"); err != nil {
		return nil, err
	}
	current := f.notifier.Current()
	if current == nil {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "not signed in"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[current.User.ID]; !ok {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "user no longer exists"}
	}
	u := current.User
	return &u, nil
}

func (f *FakeGateway) CurrentUser() *domain.User {
	current := f.notifier.Current()
	if current == nil {
		return nil
	}
	u := current.User
	return &u
}

func (f *FakeGateway) Subscribe() (<-chan gateway.AuthChange, func()) {
	return f.notifier.Subscribe()
}

// ---- Profiles ----

func (f *FakeGateway) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	if err := f.enter(ctx, "GetProfile"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, notFound("profile")
	}
	return &profile, nil
}

func (f *FakeGateway) UpsertProfile(ctx context.Context, upsert domain.ProfileUpsert) error {
	if err := f.enter(ctx, "UpsertProfile"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	profile := upsert.Profile()
	if existing, ok := f.profiles[upsert.ID]; ok {
		profile.CreatedAt = existing.CreatedAt
	}
	f.profiles[upsert.ID] = *profile
	return nil
}

func (f *FakeGateway) GetProfileSnippet(ctx context.Context, userID uuid.UUID) (*domain.ProfileSnippet, error) {
	if err := f.enter(ctx, "GetProfileSnippet"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &domain.ProfileSnippet{ID: profile.ID, FullName: profile.FullName}, nil
}

// ---- Events ----

func (f *FakeGateway) sortedEvents(keep func(domain.Event) bool, limit int) []domain.Event {
	var out []domain.Event
	for _, e := range f.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *FakeGateway) ListPublishedUpcoming(ctx context.Context, now time.Time, limit int) ([]domain.Event, error) {
	if err := f.enter(ctx, "ListPublishedUpcoming"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedEvents(func(e domain.Event) bool {
		return e.IsPublished && !e.StartAt.Before(now)
	}, limit), nil
}

func (f *FakeGateway) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]domain.Event, error) {
	if err := f.enter(ctx, "ListByCreator"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedEvents(func(e domain.Event) bool { return e.CreatorID == creatorID }, limit), nil
}

func (f *FakeGateway) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	if err := f.enter(ctx, "GetEvent"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return nil, notFound("event")
	}
	return &event, nil
}

func (f *FakeGateway) CreateEvent(ctx context.Context, insert domain.EventInsert) (*domain.Event, error) {
	if err := f.enter(ctx, "CreateEvent"); err != nil {
		return nil, err
	}
	event := f.AddEvent(*insert.Event())
	return &event, nil
}

func (f *FakeGateway) UpdateEvent(ctx context.Context, id uuid.UUID, update domain.EventUpdate) error {
	if err := f.enter(ctx, "UpdateEvent"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return nil
	}
	event.Title = update.Title
	event.Description = update.Description
	event.StartAt = update.StartAt
	event.EndAt = update.EndAt
	event.LocationName = update.LocationName
	event.City = update.City
	event.IsPublished = update.IsPublished
	f.events[id] = event
	return nil
}

func (f *FakeGateway) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	if err := f.enter(ctx, "DeleteEvent"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, id)
	kept := f.ticketTypes[:0]
	for _, tt := range f.ticketTypes {
		if tt.EventID != id {
			kept = append(kept, tt)
		}
	}
	f.ticketTypes = kept
	return nil
}

func (f *FakeGateway) PublishEvent(ctx context.Context, id uuid.UUID) error {
	if err := f.enter(ctx, "PublishEvent"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if event, ok := f.events[id]; ok {
		event.IsPublished = true
		f.events[id] = event
	}
	return nil
}

func (f *FakeGateway) UpdateCoverURL(ctx context.Context, id uuid.UUID, coverURL string) error {
	if err := f.enter(ctx, "UpdateCoverURL"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if event, ok := f.events[id]; ok {
		event.CoverURL = &coverURL
		f.events[id] = event
	}
	return nil
}

// ---- Ticket types ----

func (f *FakeGateway) ListActiveTicketTypes(ctx context.Context, eventID uuid.UUID) ([]domain.TicketType, error) {
	if err := f.enter(ctx, "ListActiveTicketTypes"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TicketType
	for _, tt := range f.ticketTypes {
		if tt.EventID != eventID || !tt.IsActive {
			continue
		}
		sold := *tt.SoldCount
		remaining := max(0, tt.Capacity-sold)
		tt.SoldCount = &sold
		tt.Remaining = &remaining
		out = append(out, tt)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *FakeGateway) CreateTicketTypes(ctx context.Context, inserts []domain.TicketTypeInsert) error {
	if len(inserts) == 0 {
		return nil
	}
	if err := f.enter(ctx, "CreateTicketTypes"); err != nil {
		return err
	}
	for _, in := range inserts {
		f.AddTicketType(*in.TicketType())
	}
	return nil
}

// ---- Orders ----

// CreateOrder mirrors the checkout procedure: all lines are validated
// against remaining inventory before anything is written.
func (f *FakeGateway) CreateOrder(ctx context.Context, eventID uuid.UUID, items []domain.CheckoutItem) (uuid.UUID, error) {
	if err := f.enter(ctx, "CreateOrder"); err != nil {
		return uuid.Nil, err
	}
	current := f.notifier.Current()
	if current == nil {
		return uuid.Nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "Not authenticated"}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	event, ok := f.events[eventID]
	if !ok || !event.IsPublished {
		return uuid.Nil, &domain.RemoteError{Kind: domain.ErrConflict, Code: "P0001", Message: "Event not found"}
	}
	if len(items) == 0 {
		return uuid.Nil, &domain.RemoteError{Kind: domain.ErrConflict, Code: "P0001", Message: "No tickets selected"}
	}

	indexes := make([]int, len(items))
	for i, item := range items {
		idx := -1
		for j, tt := range f.ticketTypes {
			if tt.ID == item.TicketTypeID && tt.EventID == eventID && tt.IsActive {
				idx = j
			}
		}
		if idx < 0 {
			return uuid.Nil, &domain.RemoteError{Kind: domain.ErrConflict, Code: "P0001", Message: "Ticket type not found"}
		}
		tt := f.ticketTypes[idx]
		if item.Quantity <= 0 || tt.Capacity-*tt.SoldCount < item.Quantity {
			return uuid.Nil, &domain.RemoteError{
				Kind:    domain.ErrConflict,
				Code:    "P0001",
				Message: fmt.Sprintf("Not enough tickets remaining for %s", tt.Name),
			}
		}
		indexes[i] = idx
	}

	now := f.now()
	order := domain.Order{
		ID:        uuid.New(),
		EventID:   eventID,
		UserID:    current.User.ID,
		Status:    "paid",
		Currency:  domain.DefaultCurrency,
		CreatedAt: now,
	}
	for i, item := range items {
		tt := &f.ticketTypes[indexes[i]]
		sold := *tt.SoldCount + item.Quantity
		tt.SoldCount = &sold

		orderItem := domain.OrderItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			TicketTypeID:   tt.ID,
			Quantity:       item.Quantity,
			UnitPriceCents: tt.PriceCents,
			Currency:       tt.Currency,
		}
		f.orderItems = append(f.orderItems, orderItem)
		order.TotalCents += item.Quantity * tt.PriceCents
		order.Currency = tt.Currency

		for n := 0; n < item.Quantity; n++ {
			code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
			orderID, itemID, typeID := order.ID, orderItem.ID, tt.ID
			f.tickets = append(f.tickets, domain.Ticket{
				ID:           uuid.New(),
				EventID:      eventID,
				OrderID:      &orderID,
				OrderItemID:  &itemID,
				TicketTypeID: &typeID,
				OwnerUserID:  current.User.ID,
				Status:       domain.TicketStatusValid,
				IsActive:     true,
				ScanCode:     &code,
				CreatedAt:    now,
			})
		}
	}
	f.orders = append(f.orders, order)
	return order.ID, nil
}

func (f *FakeGateway) eventSnippet(id uuid.UUID) *domain.EventSnippet {
	event, ok := f.events[id]
	if !ok {
		return nil
	}
	return &domain.EventSnippet{ID: event.ID, Title: event.Title, StartAt: event.StartAt, City: event.City, CoverURL: event.CoverURL}
}

func (f *FakeGateway) listOrders(keep func(domain.Order) bool, limit int) []domain.Order {
	var out []domain.Order
	for i := len(f.orders) - 1; i >= 0; i-- {
		o := f.orders[i]
		if !keep(o) {
			continue
		}
		o.Event = f.eventSnippet(o.EventID)
		out = append(out, o)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (f *FakeGateway) ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Order, error) {
	if err := f.enter(ctx, "ListOrdersByUser"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listOrders(func(o domain.Order) bool { return o.UserID == userID }, limit), nil
}

func (f *FakeGateway) ListOrdersByOrganizer(ctx context.Context, organizerID uuid.UUID, eventID *uuid.UUID, limit int) ([]domain.Order, error) {
	if err := f.enter(ctx, "ListOrdersByOrganizer"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listOrders(func(o domain.Order) bool {
		event, ok := f.events[o.EventID]
		if !ok || event.CreatorID != organizerID {
			return false
		}
		return eventID == nil || o.EventID == *eventID
	}, limit), nil
}

func (f *FakeGateway) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	if err := f.enter(ctx, "ListOrderItems"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.OrderItem
	for _, item := range f.orderItems {
		if item.OrderID != orderID {
			continue
		}
		for _, tt := range f.ticketTypes {
			if tt.ID == item.TicketTypeID {
				item.TicketType = &domain.TicketTypeSnippet{
					ID: tt.ID, Name: tt.Name, Description: tt.Description, PriceCents: tt.PriceCents, Currency: tt.Currency,
				}
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// ---- RSVPs ----

func (f *FakeGateway) GetRSVP(ctx context.Context, eventID, userID uuid.UUID) (*domain.RSVP, error) {
	if err := f.enter(ctx, "GetRSVP"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rsvp, ok := f.rsvps[[2]uuid.UUID{eventID, userID}]
	if !ok {
		return nil, nil
	}
	return &rsvp, nil
}

func (f *FakeGateway) UpsertRSVP(ctx context.Context, upsert domain.RSVPUpsert) error {
	if err := f.enter(ctx, "UpsertRSVP"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]uuid.UUID{upsert.EventID, upsert.UserID}
	rsvp, ok := f.rsvps[key]
	if !ok {
		rsvp = domain.RSVP{ID: uuid.New(), EventID: upsert.EventID, UserID: upsert.UserID, CreatedAt: f.now()}
	}
	rsvp.Status = upsert.Status
	f.rsvps[key] = rsvp
	return nil
}

func (f *FakeGateway) DeleteRSVP(ctx context.Context, eventID, userID uuid.UUID) error {
	if err := f.enter(ctx, "DeleteRSVP"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rsvps, [2]uuid.UUID{eventID, userID})
	return nil
}

func (f *FakeGateway) ListRSVPsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.RSVP, error) {
	if err := f.enter(ctx, "ListRSVPsByUser"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RSVP
	for _, rsvp := range f.rsvps {
		if rsvp.UserID == userID {
			rsvp.Event = f.eventSnippet(rsvp.EventID)
			out = append(out, rsvp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Tickets ----

func (f *FakeGateway) inScope(t domain.Ticket, scope gateway.TicketScope) bool {
	event, ok := f.events[t.EventID]
	return ok && t.EventID == scope.EventID && event.CreatorID == scope.OrganizerID
}

func (f *FakeGateway) decorate(t domain.Ticket) domain.Ticket {
	t.Event = f.eventSnippet(t.EventID)
	if t.TicketTypeID != nil {
		for _, tt := range f.ticketTypes {
			if tt.ID == *t.TicketTypeID {
				t.TicketType = &domain.TicketTypeSnippet{
					ID: tt.ID, Name: tt.Name, Description: tt.Description, PriceCents: tt.PriceCents, Currency: tt.Currency,
				}
			}
		}
	}
	return t
}

func (f *FakeGateway) findTicket(keep func(domain.Ticket) bool) *domain.Ticket {
	for _, t := range f.tickets {
		if keep(t) {
			found := f.decorate(t)
			return &found
		}
	}
	return nil
}

func (f *FakeGateway) FindTicketByScanCode(ctx context.Context, scope gateway.TicketScope, code string) (*domain.Ticket, error) {
	if err := f.enter(ctx, "FindTicketByScanCode"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findTicket(func(t domain.Ticket) bool {
		return f.inScope(t, scope) && t.ScanCode != nil && *t.ScanCode == code
	}), nil
}

func (f *FakeGateway) FindTicketByID(ctx context.Context, scope gateway.TicketScope, id uuid.UUID) (*domain.Ticket, error) {
	if err := f.enter(ctx, "FindTicketByID"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findTicket(func(t domain.Ticket) bool {
		return f.inScope(t, scope) && t.ID == id
	}), nil
}

func (f *FakeGateway) ListTicketsByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.Ticket, error) {
	if err := f.enter(ctx, "ListTicketsByOwner"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for i := len(f.tickets) - 1; i >= 0; i-- {
		if f.tickets[i].OwnerUserID == ownerID {
			out = append(out, f.decorate(f.tickets[i]))
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *FakeGateway) ListTicketsForOrganizer(ctx context.Context, scope gateway.TicketScope, limit int) ([]domain.Ticket, error) {
	if err := f.enter(ctx, "ListTicketsForOrganizer"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for i := len(f.tickets) - 1; i >= 0; i-- {
		if f.inScope(f.tickets[i], scope) {
			out = append(out, f.decorate(f.tickets[i]))
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *FakeGateway) MarkTicketScanned(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := f.enter(ctx, "MarkTicketScanned"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tickets {
		if f.tickets[i].ID == id {
			scannedAt := at
			f.tickets[i].IsActive = false
			f.tickets[i].Status = domain.TicketStatusScanned
			f.tickets[i].ScannedAt = &scannedAt
		}
	}
	return nil
}

func (f *FakeGateway) SetTicketActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := f.enter(ctx, "SetTicketActive"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tickets {
		if f.tickets[i].ID == id {
			f.tickets[i].IsActive = active
		}
	}
	return nil
}

// ---- Storage ----

func (f *FakeGateway) Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error {
	if err := f.enter(ctx, "Upload"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := bucket + "/" + path
	if _, exists := f.objects[key]; exists && !upsert {
		return &domain.RemoteError{Kind: domain.ErrConflict, Message: "The resource already exists"}
	}
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *FakeGateway) PublicURL(bucket, path string) string {
	return "https://storage.test/" + bucket + "/" + path
}
