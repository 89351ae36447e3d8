package push

import (
	"context"
	"fmt"

	"github.com/dukerupert/homecal/internal/model"
	"golang.org/x/sync/errgroup"
)

// TokenLister fetches the tokens registered by one user.
type TokenLister interface {
	ListByUser(ctx context.Context, userID string) ([]model.DeviceToken, error)
}

// Resolver maps user IDs to the distinct set of their device tokens.
type Resolver struct {
	tokens      TokenLister
	concurrency int
}

func NewResolver(tokens TokenLister, concurrency int) *Resolver {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Resolver{tokens: tokens, concurrency: concurrency}
}

// Resolve returns the union of all tokens registered for userIDs, with
// duplicates (by token value) removed. No tokens yields an empty slice and a
// nil error.
func (r *Resolver) Resolve(ctx context.Context, userIDs []string) ([]model.DeviceToken, error) {
	ids := distinct(userIDs)
	perUser := make([][]model.DeviceToken, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, uid := range ids {
		g.Go(func() error {
			toks, err := r.tokens.ListByUser(gctx, uid)
			if err != nil {
				return fmt.Errorf("tokens for user %s: %w", uid, err)
			}
			perUser[i] = toks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := []model.DeviceToken{}
	for _, toks := range perUser {
		for _, t := range toks {
			if t.Token == "" {
				continue
			}
			if _, dup := seen[t.Token]; dup {
				continue
			}
			seen[t.Token] = struct{}{}
			out = append(out, t)
		}
	}
	return out, nil
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
