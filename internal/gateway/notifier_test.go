package gateway_test

import (
	"testing"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_SubscribeReceivesCurrentSession(t *testing.T) {
	n := gateway.NewNotifier()
	session := &domain.Session{AccessToken: "token", User: domain.User{ID: uuid.New()}}
	n.Publish(gateway.AuthSignedIn, session)

	ch, cancel := n.Subscribe()
	defer cancel()

	change := <-ch
	assert.Equal(t, gateway.AuthInitialSession, change.Event)
	assert.Same(t, session, change.Session)
}

func TestNotifier_PublishFansOut(t *testing.T) {
	n := gateway.NewNotifier()

	first, cancelFirst := n.Subscribe()
	defer cancelFirst()
	second, cancelSecond := n.Subscribe()
	defer cancelSecond()

	<-first
	<-second

	n.Publish(gateway.AuthSignedOut, nil)

	for _, ch := range []<-chan gateway.AuthChange{first, second} {
		change := <-ch
		assert.Equal(t, gateway.AuthSignedOut, change.Event)
		assert.Nil(t, change.Session)
	}
	assert.Nil(t, n.Current())
}

func TestNotifier_SlowSubscriberKeepsLatest(t *testing.T) {
	n := gateway.NewNotifier()
	ch, cancel := n.Subscribe()
	defer cancel()

	var last *domain.Session
	for i := 0; i < 50; i++ {
		last = &domain.Session{AccessToken: uuid.NewString()}
		n.Publish(gateway.AuthTokenRefreshed, last)
	}

	var got gateway.AuthChange
	for len(ch) > 0 {
		got = <-ch
	}
	require.NotNil(t, got.Session)
	assert.Equal(t, last.AccessToken, got.Session.AccessToken)
}

func TestNotifier_CancelClosesChannel(t *testing.T) {
	n := gateway.NewNotifier()
	ch, cancel := n.Subscribe()
	<-ch

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after cancel must not panic.
	n.Publish(gateway.AuthSignedOut, nil)
}
