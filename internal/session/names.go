package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/dom/pulse/internal/gateway"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ResolveNames looks up display names for ids, one concurrent request per
// distinct id. Failed lookups and blank names are left out of the result.
func ResolveNames(ctx context.Context, profiles gateway.Profiles, ids []uuid.UUID, log *slog.Logger) map[uuid.UUID]string {
	if log == nil {
		log = slog.Default()
	}

	seen := make(map[uuid.UUID]struct{}, len(ids))
	var distinct []uuid.UUID
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}

	var mu sync.Mutex
	names := make(map[uuid.UUID]string, len(distinct))

	// Lookups never return an error to the group so one failure cannot
	// cancel the others.
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range distinct {
		g.Go(func() error {
			snippet, err := profiles.GetProfileSnippet(gctx, id)
			if err != nil {
				log.Warn("profile name lookup failed", "user_id", id, "error", err)
				return nil
			}
			if snippet == nil || snippet.FullName == nil {
				return nil
			}
			name := strings.TrimSpace(*snippet.FullName)
			if name == "" {
				return nil
			}
			mu.Lock()
			names[id] = name
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return names
}
