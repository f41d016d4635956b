package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"price-resolution-api/internal/matching"
	"price-resolution-api/internal/models"
)

const (
	DefaultMarketplaceReviewFloor = 1000
	DefaultConsensusMinSellers    = 3
)

// Strategy names in precedence order.
const (
	StrategyExpertReview = "expert_review"
	StrategyTier1        = "shopping_tier1"
	StrategyTier2        = "shopping_tier2"
	StrategyTier3        = "shopping_tier3_consensus"
)

type RatingConfig struct {
	MinMatchScore float64
	// Marketplace and unknown sellers need strictly more reviews than this.
	MarketplaceReviewFloor int
	// Distinct sellers that must report the same rating and review count.
	ConsensusMinSellers int
}

type ratingCandidate struct {
	listing models.ListingRecord
	rating  float64
	reviews int // -1 when unknown
	match   float64
}

type ratingBuckets struct {
	expert              *models.RatingCandidate
	tier1, tier2, tier3 []ratingCandidate
}

type ratingStrategy struct {
	name    string
	resolve func(b *ratingBuckets) *models.RatingCandidate
}

// RatingResolver picks one rating with provenance from expert reviews or shopping
// listings, trying each strategy in order until one yields a candidate.
type RatingResolver struct {
	matcher    matching.Matcher
	cfg        RatingConfig
	expert     *ExpertReviewer
	strategies []ratingStrategy
	logger     zerolog.Logger
	now        func() time.Time
}

// NewRatingResolver builds the resolver. expert may be nil, which disables the
// expert review strategy.
func NewRatingResolver(cfg RatingConfig, expert *ExpertReviewer, logger zerolog.Logger) *RatingResolver {
	if cfg.MarketplaceReviewFloor <= 0 {
		cfg.MarketplaceReviewFloor = DefaultMarketplaceReviewFloor
	}
	if cfg.ConsensusMinSellers <= 1 {
		cfg.ConsensusMinSellers = DefaultConsensusMinSellers
	}

	r := &RatingResolver{
		matcher: matching.NewMatcher(cfg.MinMatchScore),
		cfg:     cfg,
		expert:  expert,
		logger:  logger.With().Str("component", "rating_resolver").Logger(),
		now:     time.Now,
	}
	r.strategies = []ratingStrategy{
		{StrategyExpertReview, func(b *ratingBuckets) *models.RatingCandidate {
			return b.expert
		}},
		{StrategyTier1, func(b *ratingBuckets) *models.RatingCandidate {
			return r.fromBucket(b.tier1, models.RatingTierTrusted)
		}},
		{StrategyTier2, func(b *ratingBuckets) *models.RatingCandidate {
			return r.fromBucket(b.tier2, models.RatingTierReputable)
		}},
		{StrategyTier3, func(b *ratingBuckets) *models.RatingCandidate {
			if c := r.consensus(b.tier3); c != nil {
				return c
			}
			return r.fromBucket(b.tier3, models.RatingTierMarketplace)
		}},
	}
	return r
}

func (r *RatingResolver) strategyNames() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.name
	}
	return names
}

// Resolve runs the shopping strategies only. It does no I/O.
func (r *RatingResolver) Resolve(query string, listings []models.ListingRecord) *models.RatingCandidate {
	return r.ResolveFrom(query, nil, listings)
}

// ResolveFrom walks the strategy list with an expert result the caller already
// looked up, so the lookup can run alongside the listing search. A nil expert
// falls through to the shopping strategies. It does no I/O.
func (r *RatingResolver) ResolveFrom(query string, expert *models.RatingCandidate, listings []models.ListingRecord) *models.RatingCandidate {
	b := r.bucket(query, listings)
	b.expert = expert
	for _, s := range r.strategies {
		if c := s.resolve(b); c != nil {
			r.logger.Debug().Str("query", query).Str("strategy", s.name).
				Float64("rating", c.Rating).Str("source", c.Source).Msg("rating resolved")
			return c
		}
	}
	r.logger.Debug().Str("query", query).Int("listings", len(listings)).Msg("no rating candidate")
	return nil
}

// ResolveExpert returns nil when no expert reviewer is configured.
func (r *RatingResolver) ResolveExpert(ctx context.Context, query string) *models.RatingCandidate {
	if r.expert == nil {
		return nil
	}
	return r.expert.Lookup(ctx, query)
}

func (r *RatingResolver) bucket(query string, listings []models.ListingRecord) *ratingBuckets {
	b := &ratingBuckets{}
	for _, l := range listings {
		if l.Rating == nil || *l.Rating <= 0 || *l.Rating > 5 {
			continue
		}
		if strings.TrimSpace(l.Link) == "" {
			continue
		}
		score, ok := r.matcher.Accept(query, l.Title)
		if !ok {
			continue
		}

		c := ratingCandidate{listing: l, rating: *l.Rating, reviews: -1, match: score}
		if l.ReviewCount != nil {
			c.reviews = *l.ReviewCount
		}

		switch matching.ClassifyListing(l.Source, l.Link) {
		case models.TierTrusted:
			b.tier1 = append(b.tier1, c)
		case models.TierReputable:
			b.tier2 = append(b.tier2, c)
		default:
			if c.reviews > r.cfg.MarketplaceReviewFloor {
				b.tier3 = append(b.tier3, c)
			}
		}
	}
	return b
}

func (r *RatingResolver) fromBucket(bucket []ratingCandidate, tier models.RatingTier) *models.RatingCandidate {
	if len(bucket) == 0 {
		return nil
	}
	sorted := append([]ratingCandidate(nil), bucket...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].reviews != sorted[j].reviews {
			return sorted[i].reviews > sorted[j].reviews
		}
		return sorted[i].match > sorted[j].match
	})

	best := sorted[0]
	out, err := models.NewRatingCandidate(best.rating, best.listing.ReviewCount, best.listing.Source, best.listing.Link, tier)
	if err != nil {
		r.logger.Warn().Err(err).Str("source", best.listing.Source).Msg("discarding rating")
		return nil
	}
	out.MatchScore = best.match
	out.ExtractMethod = models.ExtractShopping
	out.RetrievedAt = r.now().UTC()

	switch tier {
	case models.RatingTierTrusted:
		out.Confidence, out.Verified, out.Label = models.ConfidenceHigh, true, "verified retailer rating"
	case models.RatingTierReputable:
		out.Confidence, out.Verified, out.Label = models.ConfidenceMedium, true, "verified retailer rating"
	default:
		out.Confidence, out.Verified, out.Label = models.ConfidenceLow, false, "unverified marketplace rating"
	}
	return out
}

type ratingPair struct {
	rating  float64
	reviews int
}

type consensusGroup struct {
	pair    ratingPair
	sellers map[string]struct{}
	first   ratingCandidate
	match   float64
	order   int
}

// consensus promotes a (rating, review count) pair reported by enough distinct
// sellers. Identical pairs across unrelated sellers come from one upstream source.
func (r *RatingResolver) consensus(candidates []ratingCandidate) *models.RatingCandidate {
	groups := make(map[ratingPair]*consensusGroup)
	for _, c := range candidates {
		if c.reviews < 0 {
			continue
		}
		p := ratingPair{rating: c.rating, reviews: c.reviews}
		g, ok := groups[p]
		if !ok {
			g = &consensusGroup{pair: p, sellers: map[string]struct{}{}, first: c, order: len(groups)}
			groups[p] = g
		}
		g.sellers[strings.ToLower(strings.TrimSpace(c.listing.Source))] = struct{}{}
		if c.match > g.match {
			g.match = c.match
		}
	}

	var best *consensusGroup
	for _, g := range groups {
		if len(g.sellers) < r.cfg.ConsensusMinSellers {
			continue
		}
		if best == nil || betterGroup(g, best) {
			best = g
		}
	}
	if best == nil {
		return nil
	}

	reviews := best.pair.reviews
	out, err := models.NewRatingCandidate(best.pair.rating, &reviews,
		fmt.Sprintf("Cross-seller aggregate (%d sellers)", len(best.sellers)),
		best.first.listing.Link, models.RatingTierMarketplace)
	if err != nil {
		r.logger.Warn().Err(err).Msg("discarding consensus rating")
		return nil
	}
	out.MatchScore = best.match
	out.Confidence = models.ConfidenceHigh
	out.Verified = true
	out.Label = "cross-seller aggregate"
	out.ExtractMethod = models.ExtractConsensus
	out.RetrievedAt = r.now().UTC()
	return out
}

func betterGroup(a, b *consensusGroup) bool {
	if len(a.sellers) != len(b.sellers) {
		return len(a.sellers) > len(b.sellers)
	}
	if a.pair.reviews != b.pair.reviews {
		return a.pair.reviews > b.pair.reviews
	}
	if a.pair.rating != b.pair.rating {
		return a.pair.rating > b.pair.rating
	}
	return a.order < b.order
}
