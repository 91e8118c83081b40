package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const refreshTTL = 7 * 24 * time.Hour

var errInvalidCredentials = &domain.RemoteError{Kind: domain.ErrAuth, Message: "Invalid login credentials"}

// AuthProvider is a self-hosted auth server over the users and
// user_sessions tables. One refresh session is kept per user.
type AuthProvider struct {
	db        *gorm.DB
	secret    []byte
	accessTTL time.Duration
	notifier  *gateway.Notifier
	now       func() time.Time
}

func NewAuthProvider(db *gorm.DB, secret string, accessTTL time.Duration) *AuthProvider {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &AuthProvider{
		db:        db,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		notifier:  gateway.NewNotifier(),
		now:       time.Now,
	}
}

func (a *AuthProvider) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, domain.NewValidationError("email", "Email and password are required")
	}

	var count int64
	if err := a.db.WithContext(ctx).Model(&domain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, mapError(err)
	}
	if count > 0 {
		return nil, &domain.RemoteError{Kind: domain.ErrConflict, Message: "User already registered"}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := a.now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, mapError(err)
	}

	session, err := a.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	a.notifier.Publish(gateway.AuthSignedIn, session)
	return session, nil
}

func (a *AuthProvider) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	var user domain.User
	err := a.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, mapError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}

	session, err := a.issue(ctx, &user)
	if err != nil {
		return nil, err
	}
	a.notifier.Publish(gateway.AuthSignedIn, session)
	return session, nil
}

// SignOut deletes the user's refresh session. The local session is cleared
// even when the delete fails.
func (a *AuthProvider) SignOut(ctx context.Context) error {
	current := a.notifier.Current()
	if current == nil {
		return nil
	}
	err := a.db.WithContext(ctx).Delete(&domain.UserSession{}, "user_id = ?", current.User.ID).Error
	a.notifier.Publish(gateway.AuthSignedOut, nil)
	return mapError(err)
}

// Refresh rotates the refresh session and issues a new access token.
func (a *AuthProvider) Refresh(ctx context.Context) (*domain.Session, error) {
	current := a.notifier.Current()
	if current == nil || current.RefreshToken == "" {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "no session to refresh"}
	}

	user, err := a.checkRefreshToken(ctx, current.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrAuth) {
			a.notifier.Publish(gateway.AuthSignedOut, nil)
		}
		return nil, err
	}

	session, err := a.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	a.notifier.Publish(gateway.AuthTokenRefreshed, session)
	return session, nil
}

// User revalidates the access token and the refresh session behind it.
func (a *AuthProvider) User(ctx context.Context) (*domain.User, error) {
	current := a.notifier.Current()
	if current == nil {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "not signed in"}
	}
	if current.Expired(a.now()) {
		refreshed, err := a.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		current = refreshed
	}

	userID, err := a.ValidateToken(current.AccessToken)
	if err != nil {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: err.Error()}
	}

	var user domain.User
	if err := a.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "user no longer exists"}
		}
		return nil, mapError(err)
	}

	var sessions int64
	err = a.db.WithContext(ctx).Model(&domain.UserSession{}).
		Where("user_id = ? AND expires_at > ?", user.ID, a.now()).
		Count(&sessions).Error
	if err != nil {
		return nil, mapError(err)
	}
	if sessions == 0 {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "session revoked"}
	}
	return &user, nil
}

func (a *AuthProvider) CurrentUser() *domain.User {
	current := a.notifier.Current()
	if current == nil {
		return nil
	}
	u := current.User
	return &u
}

func (a *AuthProvider) Subscribe() (<-chan gateway.AuthChange, func()) {
	return a.notifier.Subscribe()
}

// ValidateToken checks the signature and expiry of an access token and
// returns its subject.
func (a *AuthProvider) ValidateToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return uuid.Nil, err
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(sub)
}

// issue replaces the user's refresh session and signs a new access token.
// Refresh tokens are "<session id>.<secret>"; only a bcrypt hash of the
// secret is stored.
func (a *AuthProvider) issue(ctx context.Context, user *domain.User) (*domain.Session, error) {
	now := a.now()
	expiresAt := now.Add(a.accessTTL)

	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"exp":   expiresAt.Unix(),
		"iat":   now.Unix(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, err
	}

	secret := uuid.New().String()
	hashedRefresh, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	row := &domain.UserSession{
		ID:               uuid.New(),
		UserID:           user.ID,
		RefreshTokenHash: string(hashedRefresh),
		ExpiresAt:        now.Add(refreshTTL),
		CreatedAt:        now,
	}

	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.UserSession{}, "user_id = ?", user.ID).Error; err != nil {
			return err
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, mapError(err)
	}

	return &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: row.ID.String() + "." + secret,
		ExpiresAt:    time.Unix(expiresAt.Unix(), 0),
		User:         *user,
	}, nil
}

func (a *AuthProvider) checkRefreshToken(ctx context.Context, token string) (*domain.User, error) {
	sessionPart, secret, ok := strings.Cut(token, ".")
	if !ok {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "malformed refresh token"}
	}
	sessionID, err := uuid.Parse(sessionPart)
	if err != nil {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "malformed refresh token"}
	}

	var row domain.UserSession
	if err := a.db.WithContext(ctx).First(&row, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "refresh token not found"}
		}
		return nil, mapError(err)
	}
	if !a.now().Before(row.ExpiresAt) {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "refresh token expired"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.RefreshTokenHash), []byte(secret)); err != nil {
		return nil, &domain.RemoteError{Kind: domain.ErrAuth, Message: "invalid refresh token"}
	}

	var user domain.User
	if err := a.db.WithContext(ctx).First(&user, "id = ?", row.UserID).Error; err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

// withUser runs fn in a transaction that identifies the signed-in user to
// server-side procedures.
func (a *AuthProvider) withUser(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	user := a.CurrentUser()
	if user == nil {
		return &domain.RemoteError{Kind: domain.ErrAuth, Message: "not signed in"}
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT set_config('request.jwt.claim.sub', ?, true)", user.ID.String()).Error; err != nil {
			return fmt.Errorf("set request user: %w", err)
		}
		return fn(tx)
	})
}
