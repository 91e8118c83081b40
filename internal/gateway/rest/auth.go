package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
)

// expiryMargin refreshes a session slightly before the server would reject it.
const expiryMargin = 30 * time.Second

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authUser struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u authUser) toDomain() domain.User {
	return domain.User{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// tokenResponse is returned by both the token endpoint and, when email
// confirmation is disabled, by signup.
type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         *authUser `json:"user"`
}

// session converts a token response, falling back to the access token's
// claims for anything the body left out.
func (c *Client) session(resp tokenResponse) (*domain.Session, error) {
	if resp.AccessToken == "" {
		return nil, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	session := &domain.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}

	switch {
	case resp.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		session.ExpiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	default:
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			session.ExpiresAt = exp.Time
		}
	}

	if resp.User != nil {
		session.User = resp.User.toDomain()
	}
	if session.User.ID == uuid.Nil {
		sub, err := claims.GetSubject()
		if err != nil {
			return nil, fmt.Errorf("access token subject: %w", err)
		}
		id, err := uuid.Parse(sub)
		if err != nil {
			return nil, fmt.Errorf("access token subject: %w", err)
		}
		session.User.ID = id
	}
	if session.User.Email == "" {
		if email, ok := claims["email"].(string); ok {
			session.User.Email = email
		}
	}
	return session, nil
}

// SignUp registers an account. When the backend requires email
// confirmation no session is returned and the client stays signed out.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	var resp tokenResponse
	err := c.do(ctx, request{
		Method: http.MethodPost,
		Path:   authPrefix + "signup",
		Body:   credentials{Email: email, Password: password},
		Token:  c.anonKey,
	}, &resp)
	if err != nil {
		return nil, err
	}

	session, err := c.session(resp)
	if err != nil {
		return nil, err
	}
	if session == nil {
		c.log.Info("sign up pending confirmation", "email", email)
		return nil, nil
	}
	c.notifier.Publish(gateway.AuthSignedIn, session)
	return session, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	var resp tokenResponse
	err := c.do(ctx, request{
		Method: http.MethodPost,
		Path:   authPrefix + "token",
		Query:  url.Values{"grant_type": {"password"}},
		Body:   credentials{Email: email, Password: password},
		Token:  c.anonKey,
	}, &resp)
	if err != nil {
		return nil, err
	}

	session, err := c.session(resp)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "sign in returned no session"}
	}
	c.notifier.Publish(gateway.AuthSignedIn, session)
	return session, nil
}

// SignOut revokes the session remotely. The local session is cleared even
// when the remote call fails.
func (c *Client) SignOut(ctx context.Context) error {
	current := c.notifier.Current()
	if current == nil {
		return nil
	}

	err := c.do(ctx, request{
		Method: http.MethodPost,
		Path:   authPrefix + "logout",
		Token:  current.AccessToken,
	}, nil)
	c.notifier.Publish(gateway.AuthSignedOut, nil)
	return err
}

// Refresh exchanges the refresh token for a new session.
func (c *Client) Refresh(ctx context.Context) (*domain.Session, error) {
	current := c.notifier.Current()
	if current == nil || current.RefreshToken == "" {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "no session to refresh"}
	}

	var resp tokenResponse
	err := c.do(ctx, request{
		Method: http.MethodPost,
		Path:   authPrefix + "token",
		Query:  url.Values{"grant_type": {"refresh_token"}},
		Body:   map[string]string{"refresh_token": current.RefreshToken},
		Token:  c.anonKey,
	}, &resp)
	if err != nil {
		if errors.Is(err, domain.ErrAuth) {
			c.notifier.Publish(gateway.AuthSignedOut, nil)
		}
		return nil, err
	}

	session, err := c.session(resp)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "refresh returned no session"}
	}
	if session.User.Email == "" {
		session.User.Email = current.User.Email
	}
	c.notifier.Publish(gateway.AuthTokenRefreshed, session)
	return session, nil
}

// User validates the current session with the auth server, refreshing it
// first when the access token has expired.
func (c *Client) User(ctx context.Context) (*domain.User, error) {
	current := c.notifier.Current()
	if current == nil {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "not signed in"}
	}

	if current.Expired(c.now().Add(expiryMargin)) && current.RefreshToken != "" {
		refreshed, err := c.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		current = refreshed
	}

	var user authUser
	err := c.do(ctx, request{
		Method: http.MethodGet,
		Path:   authPrefix + "user",
		Token:  current.AccessToken,
	}, &user)
	if err != nil {
		return nil, err
	}
	u := user.toDomain()
	return &u, nil
}

func (c *Client) CurrentUser() *domain.User {
	current := c.notifier.Current()
	if current == nil {
		return nil
	}
	u := current.User
	return &u
}

func (c *Client) Subscribe() (<-chan gateway.AuthChange, func()) {
	return c.notifier.Subscribe()
}
