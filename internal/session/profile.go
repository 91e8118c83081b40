package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/dom/pulse/internal/domain"
)

// ProfileInput is what the user supplies when completing their profile.
type ProfileInput struct {
	FullName  string
	Birthdate string
	Interests []string
	Role      domain.Role
}

// Validate checks the input without touching the network.
func (in ProfileInput) Validate() error {
	if strings.TrimSpace(in.FullName) == "" {
		return domain.NewValidationError("full_name", "Please enter your full name.")
	}
	if len(in.Interests) == 0 {
		return domain.NewValidationError("interests", "Pick at least one interest.")
	}
	if !in.Role.IsValid() {
		return domain.NewValidationError("role", domain.ErrInvalidRole.Error())
	}
	if _, err := domain.ParseDate(in.Birthdate); err != nil {
		return domain.NewValidationError("birthdate", err.Error())
	}
	return nil
}

// CompleteProfile stores the profile as completed and moves the machine to
// the ready state.
func (m *Manager) CompleteProfile(ctx context.Context, in ProfileInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	birthdate, _ := domain.ParseDate(in.Birthdate)

	gen := m.generation()
	if _, err := m.auth.User(ctx); err != nil {
		m.failSafe(ctx, gen, err)
		return err
	}
	user := m.auth.CurrentUser()
	if user == nil {
		return &domain.RemoteError{Kind: domain.ErrAuth, Message: "Not authenticated"}
	}

	upsert := domain.ProfileUpsert{
		ID:          user.ID,
		FullName:    strings.TrimSpace(in.FullName),
		Birthdate:   birthdate,
		Interests:   in.Interests,
		Role:        in.Role,
		IsCompleted: true,
	}
	if err := m.profiles.UpsertProfile(ctx, upsert); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	return m.RefreshProfile(ctx)
}
