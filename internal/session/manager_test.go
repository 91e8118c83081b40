package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"github.com/dom/pulse/internal/session"
	"github.com/dom/pulse/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(fake *testutil.FakeGateway) *session.Manager {
	return session.NewManager(fake, fake, nil)
}

func signedIn(fake *testutil.FakeGateway, email string) (*domain.User, gateway.AuthChange) {
	user := fake.AddUser(email, "secret123")
	sess := fake.SignInAs(user, time.Now().Add(time.Hour))
	return user, gateway.AuthChange{Event: gateway.AuthSignedIn, Session: sess}
}

func TestManager_InitialSnapshot(t *testing.T) {
	m := newManager(testutil.NewFakeGateway())

	snap := m.Snapshot()
	assert.Equal(t, session.StateUnknown, snap.State)
	assert.False(t, snap.SessionChecked)
	assert.False(t, snap.Authenticated())
}

func TestManager_HandleAuthChange(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		setup         func(*testutil.FakeGateway) gateway.AuthChange
		expectedState session.State
		expectedRole  domain.Role
		checkFake     func(*testing.T, *testutil.FakeGateway)
	}{
		{
			name: "no session logs out",
			setup: func(f *testutil.FakeGateway) gateway.AuthChange {
				return gateway.AuthChange{Event: gateway.AuthInitialSession}
			},
			expectedState: session.StateLoggedOut,
			checkFake: func(t *testing.T, f *testutil.FakeGateway) {
				assert.Equal(t, 0, f.Calls("User"))
			},
		},
		{
			name: "expired session logs out without revalidating",
			setup: func(f *testutil.FakeGateway) gateway.AuthChange {
				user := f.AddUser("late@example.com", "secret123")
				sess := f.SignInAs(user, time.Now().Add(-time.Minute))
				return gateway.AuthChange{Event: gateway.AuthInitialSession, Session: sess}
			},
			expectedState: session.StateLoggedOut,
			checkFake: func(t *testing.T, f *testutil.FakeGateway) {
				assert.Equal(t, 0, f.Calls("User"))
			},
		},
		{
			name: "revalidation failure signs out",
			setup: func(f *testutil.FakeGateway) gateway.AuthChange {
				_, change := signedIn(f, "revoked@example.com")
				f.FailNext("User", &domain.RemoteError{Kind: domain.ErrAuth, Status: 401, Message: "JWT expired"})
				return change
			},
			expectedState: session.StateLoggedOut,
			checkFake: func(t *testing.T, f *testutil.FakeGateway) {
				assert.Equal(t, 1, f.Calls("SignOut"))
				assert.Nil(t, f.CurrentUser())
			},
		},
		{
			name: "revalidation transport failure also signs out",
			setup: func(f *testutil.FakeGateway) gateway.AuthChange {
				_, change := signedIn(f, "offline@example.com")
				f.FailNext("User", &domain.RemoteError{Kind: domain.ErrTransport, Message: "dial tcp: timeout"})
				return change
			},
			expectedState: session.StateLoggedOut,
		},
		{
			name: "missing profile needs completion",
			setup: func(f *testutil.FakeGateway) gateway.AuthChange {
				_, change := signedIn(f, "new@example.com")
				return change
			},
			expectedState: session.StateAuthenticatedIncomplete,
		},
		{
			name: "profile fetch failure needs completion",
			setup: func(f *testutil.FakeGateway) gateway.AuthChange {
				user, change := signedIn(f, "flaky@example.com")
				f.AddCompletedProfile(user.ID, "Flaky", domain.RoleOrganizer)
				f.FailNext("GetProfile", &domain.RemoteError{Kind: domain.ErrTransport, Message: "bad gateway"})
				return change
			},
			expectedState: session.StateAuthenticatedIncomplete,
		},
		{
			name: "incomplete profile needs completion",
			setup: func(f *testutil.FakeGateway) gateway.AuthChange {
				user, change := signedIn(f, "half@example.com")
				completed := false
				f.AddProfile(domain.Profile{ID: user.ID, Role: domain.RoleAttendee, IsCompleted: &completed})
				return change
			},
			expectedState: session.StateAuthenticatedIncomplete,
		},
		{
			name: "completed profile is ready with role",
			setup: func(f *testutil.FakeGateway) gateway.AuthChange {
				user, change := signedIn(f, "org@example.com")
				f.AddCompletedProfile(user.ID, "Olive Organizer", domain.RoleOrganizer)
				return change
			},
			expectedState: session.StateAuthenticatedReady,
			expectedRole:  domain.RoleOrganizer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeGateway()
			m := newManager(fake)

			m.HandleAuthChange(ctx, tt.setup(fake))

			snap := m.Snapshot()
			assert.True(t, snap.SessionChecked)
			assert.Equal(t, tt.expectedState, snap.State)
			assert.Equal(t, tt.expectedRole, snap.Role)
			assert.Equal(t, tt.expectedState == session.StateAuthenticatedIncomplete, snap.NeedsProfileCompletion())
			if snap.State == session.StateLoggedOut {
				assert.Nil(t, snap.Profile)
				assert.False(t, snap.Authenticated())
			}
			if tt.checkFake != nil {
				tt.checkFake(t, fake)
			}
		})
	}
}

func TestManager_SessionCheckedStaysTrue(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeGateway()
	m := newManager(fake)

	_, change := signedIn(fake, "sticky@example.com")
	m.HandleAuthChange(ctx, change)
	require.True(t, m.Snapshot().SessionChecked)

	m.HandleAuthChange(ctx, gateway.AuthChange{Event: gateway.AuthSignedOut})
	assert.True(t, m.Snapshot().SessionChecked)
	assert.Equal(t, session.StateLoggedOut, m.Snapshot().State)
}

func TestManager_Run(t *testing.T) {
	fake := testutil.NewFakeGateway()
	m := newManager(fake)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		return m.Snapshot().SessionChecked
	}, time.Second, 5*time.Millisecond, "initial session never applied")
	assert.Equal(t, session.StateLoggedOut, m.Snapshot().State)

	user := fake.AddUser("runner@example.com", "secret123")
	fake.AddCompletedProfile(user.ID, "Rae Runner", domain.RoleAttendee)
	fake.SignInAs(user, time.Now().Add(time.Hour))

	require.Eventually(t, func() bool {
		return m.Snapshot().State == session.StateAuthenticatedReady
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.RoleAttendee, m.Snapshot().Role)
	assert.Equal(t, user.ID, m.Snapshot().UserID)

	fake.Publish(gateway.AuthSignedOut, nil)
	require.Eventually(t, func() bool {
		return m.Snapshot().State == session.StateLoggedOut
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestManager_RefreshProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("picks up a completed profile", func(t *testing.T) {
		fake := testutil.NewFakeGateway()
		m := newManager(fake)
		user, change := signedIn(fake, "later@example.com")
		m.HandleAuthChange(ctx, change)
		require.Equal(t, session.StateAuthenticatedIncomplete, m.Snapshot().State)

		fake.AddCompletedProfile(user.ID, "Later Person", domain.RoleAttendee)
		require.NoError(t, m.RefreshProfile(ctx))

		assert.Equal(t, session.StateAuthenticatedReady, m.Snapshot().State)
	})

	t.Run("revalidation failure fails safe", func(t *testing.T) {
		fake := testutil.NewFakeGateway()
		m := newManager(fake)
		user, change := signedIn(fake, "midstream@example.com")
		fake.AddCompletedProfile(user.ID, "Mid Stream", domain.RoleOrganizer)
		m.HandleAuthChange(ctx, change)
		require.Equal(t, session.StateAuthenticatedReady, m.Snapshot().State)

		fake.FailNext("User", &domain.RemoteError{Kind: domain.ErrAuth, Status: 401, Message: "invalid JWT"})
		err := m.RefreshProfile(ctx)

		testutil.AssertRemoteError(t, err, domain.ErrAuth, "invalid JWT")
		snap := m.Snapshot()
		assert.Equal(t, session.StateLoggedOut, snap.State)
		assert.Empty(t, snap.Role)
		assert.False(t, snap.Authenticated())
	})
}

func TestManager_SignOut(t *testing.T) {
	ctx := context.Background()

	t.Run("clears state", func(t *testing.T) {
		fake := testutil.NewFakeGateway()
		m := newManager(fake)
		_, change := signedIn(fake, "bye@example.com")
		m.HandleAuthChange(ctx, change)

		require.NoError(t, m.SignOut(ctx))
		assert.Equal(t, session.StateLoggedOut, m.Snapshot().State)
	})

	t.Run("remote failure still logs out", func(t *testing.T) {
		fake := testutil.NewFakeGateway()
		m := newManager(fake)
		_, change := signedIn(fake, "stubborn@example.com")
		m.HandleAuthChange(ctx, change)

		fake.FailNext("SignOut", &domain.RemoteError{Kind: domain.ErrTransport, Message: "connection reset"})
		err := m.SignOut(ctx)

		assert.ErrorIs(t, err, domain.ErrTransport)
		assert.Equal(t, session.StateLoggedOut, m.Snapshot().State)
	})
}

func TestManager_SignIn(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		password      string
		expectedState session.State
		expectedErr   error
	}{
		{
			name:          "valid credentials",
			password:      "secret123",
			expectedState: session.StateAuthenticatedReady,
		},
		{
			name:          "wrong password",
			password:      "nope",
			expectedState: session.StateUnknown,
			expectedErr:   domain.ErrAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeGateway()
			m := newManager(fake)
			user := fake.AddUser("signin@example.com", "secret123")
			fake.AddCompletedProfile(user.ID, "Sam Signin", domain.RoleAttendee)

			snap, err := m.SignIn(ctx, "signin@example.com", tt.password)

			if tt.expectedErr != nil {
				testutil.AssertRemoteError(t, err, tt.expectedErr, "Invalid login credentials")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectedState, snap.State)
		})
	}
}

func TestManager_SignUp(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeGateway()
	m := newManager(fake)

	snap, err := m.SignUp(ctx, "fresh@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, session.StateAuthenticatedIncomplete, snap.State)

	_, err = m.SignUp(ctx, "FRESH@example.com", "secret123")
	testutil.AssertRemoteError(t, err, domain.ErrConflict, "User already registered")
}

func TestManager_Watch(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeGateway()
	m := newManager(fake)

	updates, cancel := m.Watch()
	defer cancel()

	first := <-updates
	assert.Equal(t, session.StateUnknown, first.State)

	m.HandleAuthChange(ctx, gateway.AuthChange{Event: gateway.AuthInitialSession})
	m.HandleAuthChange(ctx, gateway.AuthChange{Event: gateway.AuthSignedOut})

	select {
	case snap := <-updates:
		assert.Equal(t, session.StateLoggedOut, snap.State)
		assert.True(t, snap.SessionChecked)
	default:
		t.Fatal("no snapshot delivered")
	}

	select {
	case <-updates:
		t.Fatal("slow watcher should only hold the latest snapshot")
	default:
	}

	cancel()
	_, open := <-updates
	assert.False(t, open)
}

func TestManager_RevalidationErrorKinds(t *testing.T) {
	ctx := context.Background()
	causes := []error{
		&domain.RemoteError{Kind: domain.ErrAuth, Message: "session_not_found"},
		&domain.RemoteError{Kind: domain.ErrNotFound, Message: "user gone"},
		errors.New("unexpected"),
	}

	for _, cause := range causes {
		fake := testutil.NewFakeGateway()
		m := newManager(fake)
		_, change := signedIn(fake, "kinds@example.com")
		fake.FailNext("User", cause)

		m.HandleAuthChange(ctx, change)

		assert.Equal(t, session.StateLoggedOut, m.Snapshot().State, "cause %v", cause)
	}
}

// stalledAuth holds the first User call until released, then fails it.
type stalledAuth struct {
	gateway.Auth
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	err     error
}

func newStalledAuth(auth gateway.Auth, err error) *stalledAuth {
	return &stalledAuth{Auth: auth, entered: make(chan struct{}), release: make(chan struct{}), err: err}
}

func (s *stalledAuth) User(ctx context.Context) (*domain.User, error) {
	first := false
	s.once.Do(func() { first = true })
	if !first {
		return s.Auth.User(ctx)
	}
	close(s.entered)
	<-s.release
	return nil, s.err
}

func TestManager_StaleRevalidationFailureKeepsNewerSession(t *testing.T) {
	ctx := context.Background()
	transportErr := &domain.RemoteError{Kind: domain.ErrTransport, Status: 503, Message: "upstream unavailable"}

	tests := []struct {
		name  string
		stale func(*session.Manager, gateway.AuthChange)
	}{
		{
			name:  "auth change",
			stale: func(m *session.Manager, change gateway.AuthChange) { m.HandleAuthChange(ctx, change) },
		},
		{
			name:  "profile refresh",
			stale: func(m *session.Manager, _ gateway.AuthChange) { _ = m.RefreshProfile(ctx) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeGateway()
			user, change := signedIn(fake, "stale@example.com")
			fake.AddCompletedProfile(user.ID, "Stella Stale", domain.RoleAttendee)

			auth := newStalledAuth(fake, transportErr)
			m := session.NewManager(auth, fake, nil)

			done := make(chan struct{})
			go func() {
				defer close(done)
				tt.stale(m, change)
			}()
			<-auth.entered

			snap, err := m.SignIn(ctx, "stale@example.com", "secret123")
			require.NoError(t, err)
			require.Equal(t, session.StateAuthenticatedReady, snap.State)

			close(auth.release)
			<-done

			assert.Equal(t, session.StateAuthenticatedReady, m.Snapshot().State)
			assert.Equal(t, 0, fake.Calls("SignOut"))
			assert.NotNil(t, fake.CurrentUser())
		})
	}
}
