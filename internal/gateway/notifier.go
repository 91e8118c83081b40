package gateway

import (
	"sync"

	"github.com/dom/pulse/internal/domain"
)

type AuthEvent string

const (
	AuthInitialSession AuthEvent = "initial_session"
	AuthSignedIn       AuthEvent = "signed_in"
	AuthSignedOut      AuthEvent = "signed_out"
	AuthTokenRefreshed AuthEvent = "token_refreshed"
	AuthUserUpdated    AuthEvent = "user_updated"
)

// AuthChange is one auth-state notification. Session is nil when signed out.
type AuthChange struct {
	Event   AuthEvent
	Session *domain.Session
}

const subscriberBuffer = 8

// Notifier holds the current session and fans auth changes out to
// subscribers. Sessions are treated as immutable once published.
type Notifier struct {
	mu      sync.Mutex
	current *domain.Session
	subs    map[int]chan AuthChange
	nextID  int
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan AuthChange)}
}

// Current returns the session last published, or nil.
func (n *Notifier) Current() *domain.Session {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Publish records session as current and notifies every subscriber.
func (n *Notifier) Publish(event AuthEvent, session *domain.Session) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.current = session
	change := AuthChange{Event: event, Session: session}
	for _, ch := range n.subs {
		deliver(ch, change)
	}
}

// Subscribe registers a listener. The first value received is the current
// session as an initial_session event.
func (n *Notifier) Subscribe() (<-chan AuthChange, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan AuthChange, subscriberBuffer)
	ch <- AuthChange{Event: AuthInitialSession, Session: n.current}
	n.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// deliver never blocks the publisher: a full buffer drops its oldest change.
// Callers hold n.mu, so this is the only sender on ch.
func deliver(ch chan AuthChange, change AuthChange) {
	for {
		select {
		case ch <- change:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
