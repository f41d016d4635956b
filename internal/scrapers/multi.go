package scrapers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"price-resolution-api/internal/models"
)

// ListingSource is one origin of shopping listings.
type ListingSource interface {
	SearchListings(ctx context.Context, query, regionCode string) ([]models.ListingRecord, error)
}

// regional sources cover only some countries.
type regional interface {
	Supports(regionCode string) bool
}

type namedSource struct {
	name   string
	source ListingSource
}

// MultiSearcher fans a listing search out to several sources and merges the
// results in source order. One failing source does not fail the search.
type MultiSearcher struct {
	sources []namedSource
	logger  zerolog.Logger
}

func NewMultiSearcher(logger zerolog.Logger) *MultiSearcher {
	return &MultiSearcher{logger: logger.With().Str("component", "multi_search").Logger()}
}

// Add registers a source. Sources are queried concurrently but merged in the
// order they were added.
func (m *MultiSearcher) Add(name string, source ListingSource) *MultiSearcher {
	m.sources = append(m.sources, namedSource{name: name, source: source})
	return m
}

func (m *MultiSearcher) Len() int { return len(m.sources) }

// SearchListings returns models.ErrUnavailable only when every applicable
// source failed.
func (m *MultiSearcher) SearchListings(ctx context.Context, query, regionCode string) ([]models.ListingRecord, error) {
	var active []namedSource
	for _, s := range m.sources {
		if r, ok := s.source.(regional); ok && !r.Supports(regionCode) {
			continue
		}
		active = append(active, s)
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: no listing source for region %q", models.ErrUnavailable, regionCode)
	}

	results := make([][]models.ListingRecord, len(active))
	errs := make([]error, len(active))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range active {
		i, s := i, s
		g.Go(func() error {
			results[i], errs[i] = s.source.SearchListings(gctx, query, regionCode)
			return nil
		})
	}
	_ = g.Wait()

	var merged []models.ListingRecord
	seen := make(map[string]struct{})
	failed := 0
	for i, s := range active {
		if errs[i] != nil {
			failed++
			m.logger.Warn().Err(errs[i]).Str("source", s.name).Str("region", regionCode).Msg("listing source failed")
			continue
		}
		for _, l := range results[i] {
			if link := strings.TrimSpace(l.Link); link != "" {
				if _, dup := seen[link]; dup {
					continue
				}
				seen[link] = struct{}{}
			}
			merged = append(merged, l)
		}
	}

	if failed == len(active) {
		return nil, fmt.Errorf("%w: all listing sources failed: %v", models.ErrUnavailable, errors.Join(errs...))
	}
	return merged, nil
}
