// Package session tracks authentication and profile completeness for the
// lifetime of the client.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"github.com/google/uuid"
)

type State int

const (
	StateUnknown State = iota
	StateLoggedOut
	StateAuthenticatedIncomplete
	StateAuthenticatedReady
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateAuthenticatedIncomplete:
		return "authenticated_incomplete"
	case StateAuthenticatedReady:
		return "authenticated_ready"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the session state.
type Snapshot struct {
	State State
	// SessionChecked turns true on the first determination and stays true.
	SessionChecked bool
	// Role is empty unless the state is StateAuthenticatedReady.
	Role    domain.Role
	Profile *domain.Profile
	UserID  uuid.UUID
	Expiry  time.Time
}

func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticatedIncomplete || s.State == StateAuthenticatedReady
}

func (s Snapshot) NeedsProfileCompletion() bool {
	return s.State == StateAuthenticatedIncomplete
}

// Manager is the session state machine. Construct one per application and
// pass it to whatever needs it.
type Manager struct {
	auth     gateway.Auth
	profiles gateway.Profiles
	log      *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	snap     Snapshot
	gen      uint64
	watchers map[int]chan Snapshot
	nextID   int
}

func NewManager(auth gateway.Auth, profiles gateway.Profiles, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		auth:     auth,
		profiles: profiles,
		log:      log.With("component", "session"),
		now:      time.Now,
		watchers: make(map[int]chan Snapshot),
	}
}

// Run subscribes to auth changes and applies each one until ctx is done or
// the subscription closes.
func (m *Manager) Run(ctx context.Context) error {
	changes, cancel := m.auth.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			m.HandleAuthChange(ctx, change)
		}
	}
}

// HandleAuthChange applies one auth-state notification.
func (m *Manager) HandleAuthChange(ctx context.Context, change gateway.AuthChange) {
	gen := m.begin()
	m.log.Debug("auth change", "event", change.Event)

	session := change.Session
	if session == nil || session.Expired(m.now()) {
		m.apply(gen, loggedOut())
		return
	}

	if _, err := m.auth.User(ctx); err != nil {
		m.failSafe(ctx, gen, err)
		return
	}

	m.apply(gen, m.fetchProfile(ctx, session.User.ID, session.ExpiresAt))
}

// RefreshProfile revalidates the session and reloads the profile outside the
// subscription, with the same fail-safe rules.
func (m *Manager) RefreshProfile(ctx context.Context) error {
	gen := m.begin()

	if _, err := m.auth.User(ctx); err != nil {
		m.failSafe(ctx, gen, err)
		return err
	}

	user := m.auth.CurrentUser()
	if user == nil {
		err := &domain.RemoteError{Kind: domain.ErrAuth, Message: "Not authenticated"}
		m.failSafe(ctx, gen, err)
		return err
	}

	m.apply(gen, m.fetchProfile(ctx, user.ID, m.Snapshot().Expiry))
	return nil
}

// SignOut is best-effort: local state resets even when the remote call fails.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.auth.SignOut(ctx)
	if err != nil {
		m.log.Warn("remote sign-out failed", "error", err)
	}
	m.reset()
	return err
}

// SignIn authenticates and applies the resulting session directly, so
// callers that do not Run the machine still observe the transition.
func (m *Manager) SignIn(ctx context.Context, email, password string) (Snapshot, error) {
	session, err := m.auth.SignIn(ctx, email, password)
	if err != nil {
		return m.Snapshot(), err
	}
	m.HandleAuthChange(ctx, gateway.AuthChange{Event: gateway.AuthSignedIn, Session: session})
	return m.Snapshot(), nil
}

// SignUp registers an account. A nil session means the backend wants the
// address confirmed first; the machine is then logged out.
func (m *Manager) SignUp(ctx context.Context, email, password string) (Snapshot, error) {
	session, err := m.auth.SignUp(ctx, email, password)
	if err != nil {
		return m.Snapshot(), err
	}
	m.HandleAuthChange(ctx, gateway.AuthChange{Event: gateway.AuthSignedIn, Session: session})
	return m.Snapshot(), nil
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Watch delivers the latest snapshot after every transition. Slow readers
// only see the most recent one.
func (m *Manager) Watch() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Snapshot, 1)
	id := m.nextID
	m.nextID++
	m.watchers[id] = ch
	ch <- m.snap

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.watchers, id)
			close(ch)
		})
	}
}

// failSafe treats an unverifiable session as a failed sign-out: the remote
// sign-out is attempted and the machine ends logged out. A failure belonging
// to a superseded transition is dropped and leaves the remote session alone.
func (m *Manager) failSafe(ctx context.Context, gen uint64, cause error) {
	if !m.current(gen) {
		m.log.Debug("dropping stale revalidation failure", "error", cause)
		return
	}
	m.log.Warn("session revalidation failed", "error", cause)
	if err := m.auth.SignOut(ctx); err != nil {
		m.log.Warn("remote sign-out failed", "error", err)
	}
	m.reset()
}

// fetchProfile decides between ready and incomplete. A missing profile, a
// fetch error and an incomplete profile are indistinguishable to callers.
func (m *Manager) fetchProfile(ctx context.Context, userID uuid.UUID, expiry time.Time) Snapshot {
	next := Snapshot{
		State:  StateAuthenticatedIncomplete,
		UserID: userID,
		Expiry: expiry,
	}

	profile, err := m.profiles.GetProfile(ctx, userID)
	if err != nil {
		m.log.Debug("profile fetch failed", "user_id", userID, "error", err)
		return next
	}

	next.Profile = profile
	if profile.Completed() {
		next.State = StateAuthenticatedReady
		next.Role = profile.Role
	}
	return next
}

func loggedOut() Snapshot {
	return Snapshot{State: StateLoggedOut}
}

// begin starts a transition. Transitions started earlier than the latest
// one are dropped when they resolve.
func (m *Manager) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	return m.gen
}

// generation returns the latest transition without starting a new one.
func (m *Manager) generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

// reset logs out unconditionally, superseding any transition in flight.
func (m *Manager) reset() {
	m.apply(m.begin(), loggedOut())
}

func (m *Manager) apply(gen uint64, next Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		m.log.Debug("dropping stale transition", "state", next.State)
		return
	}

	next.SessionChecked = true
	if m.snap.State != next.State {
		m.log.Info("session state changed", "from", m.snap.State, "to", next.State)
	}
	m.snap = next

	for _, ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}
