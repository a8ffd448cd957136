package provider

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// PlaceSearcher is satisfied by NaverClient and OpenTripMapClient.
type PlaceSearcher interface {
	Name() string
	Search(ctx context.Context, region string, keywords []string) ([]Place, error)
}

// Recommender queries every place provider in parallel and merges the
// results.
type Recommender struct {
	searchers []PlaceSearcher
	log       *slog.Logger
}

// NewRecommender constructs a Recommender over the given providers. Result
// order follows provider order.
func NewRecommender(log *slog.Logger, searchers ...PlaceSearcher) *Recommender {
	return &Recommender{searchers: searchers, log: log}
}

// Search fans out to all providers using errgroup. Provider failures are
// non-fatal: whatever the others return is merged, de-duplicated by name.
func (r *Recommender) Search(ctx context.Context, region string, keywords []string) ([]Place, error) {
	g, gCtx := errgroup.WithContext(ctx)
	results := make([][]Place, len(r.searchers))

	for i, s := range r.searchers {
		i, s := i, s
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error("place search panicked", "provider", s.Name(), "recover", rec)
					err = fmt.Errorf("%s search panicked: %v", s.Name(), rec)
				}
			}()
			places, searchErr := s.Search(gCtx, region, keywords)
			if searchErr != nil {
				r.log.Warn("place search failed", "provider", s.Name(), "region", region, "err", searchErr)
				return nil
			}
			results[i] = places
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("searching places in %s: %w", region, err)
	}

	seen := make(map[string]struct{})
	merged := make([]Place, 0)
	for _, places := range results {
		for _, p := range places {
			key := normalizeName(p.Name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, p)
		}
	}
	return merged, nil
}
