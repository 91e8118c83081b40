package rest

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dom/pulse/internal/domain"
)

func (c *Client) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	q := from("profiles").columns("*").eq("id", userID)

	var profile domain.Profile
	err := c.do(ctx, request{
		Method:  http.MethodGet,
		Path:    q.path(),
		Query:   q.params,
		Headers: map[string]string{"Accept": singleObject},
	}, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) UpsertProfile(ctx context.Context, profile domain.ProfileUpsert) error {
	q := from("profiles").onConflict("id")
	return c.do(ctx, request{
		Method:  http.MethodPost,
		Path:    q.path(),
		Query:   q.params,
		Body:    profile,
		Headers: map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"},
	}, nil)
}

// GetProfileSnippet returns nil without error when the profile is missing.
func (c *Client) GetProfileSnippet(ctx context.Context, userID uuid.UUID) (*domain.ProfileSnippet, error) {
	q := from("profiles").columns("id,full_name").eq("id", userID).limit(1)

	var rows []domain.ProfileSnippet
	if err := c.do(ctx, request{Method: http.MethodGet, Path: q.path(), Query: q.params}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
