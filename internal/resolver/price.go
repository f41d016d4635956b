package resolver

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"price-resolution-api/internal/currency"
	"price-resolution-api/internal/matching"
	"price-resolution-api/internal/models"
	"price-resolution-api/pkg/utils"
)

const DefaultHighValueFloor = 100

type PriceConfig struct {
	MinMatchScore  float64
	HighValueFloor decimal.Decimal
}

// PriceResolver reduces a batch of listings to the single best price.
type PriceResolver struct {
	matcher   matching.Matcher
	floor     decimal.Decimal
	converter *currency.Converter
	logger    zerolog.Logger
	now       func() time.Time
}

func NewPriceResolver(cfg PriceConfig, converter *currency.Converter, logger zerolog.Logger) *PriceResolver {
	floor := cfg.HighValueFloor
	if !floor.IsPositive() {
		floor = decimal.NewFromInt(DefaultHighValueFloor)
	}
	return &PriceResolver{
		matcher:   matching.NewMatcher(cfg.MinMatchScore),
		floor:     floor,
		converter: converter,
		logger:    logger.With().Str("component", "price_resolver").Logger(),
		now:       time.Now,
	}
}

type priceCandidate struct {
	listing   models.ListingRecord
	amount    decimal.Decimal
	reference decimal.Decimal
	currency  models.Currency
	match     float64
	tier      models.RetailerTier
}

// Resolve returns nil when no listing survives the filters.
func (r *PriceResolver) Resolve(query string, listings []models.ListingRecord, cur models.Currency) *models.PriceCandidate {
	highValue := matching.IsHighValueQuery(query)

	var dropped struct{ price, accessory, floor, title, overlap int }
	candidates := make([]priceCandidate, 0, len(listings))

	for _, l := range listings {
		amount, ok := utils.ParsePrice(l.PriceText)
		if !ok || !amount.IsPositive() {
			dropped.price++
			continue
		}
		if matching.IsAccessory(l.Title) {
			dropped.accessory++
			continue
		}
		listingCurrency := utils.DetectCurrency(l.PriceText, cur)
		// The floor is in units of the target currency.
		if highValue && r.inTarget(amount, listingCurrency, cur).LessThan(r.floor) {
			dropped.floor++
			continue
		}
		if highValue && !matching.StrictTitleMatch(query, l.Title) {
			dropped.title++
			continue
		}
		score := matching.WordOverlapScore(query, l.Title)
		if score < r.matcher.MinMatchScore {
			dropped.overlap++
			continue
		}

		candidates = append(candidates, priceCandidate{
			listing:   l,
			amount:    amount,
			reference: r.toReference(amount, listingCurrency),
			currency:  listingCurrency,
			match:     score,
			tier:      matching.ClassifyListing(l.Source, l.Link),
		})
	}

	before := len(candidates)
	candidates = purgeLowTrust(candidates)

	r.logger.Debug().
		Str("query", query).
		Int("listings", len(listings)).
		Int("no_price", dropped.price).
		Int("accessory", dropped.accessory).
		Int("below_floor", dropped.floor).
		Int("title_mismatch", dropped.title).
		Int("low_overlap", dropped.overlap).
		Int("purged_marketplace", before-len(candidates)).
		Int("candidates", len(candidates)).
		Msg("price filter")

	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.match != b.match {
			return a.match > b.match
		}
		if a.tier.Score() != b.tier.Score() {
			return a.tier.Score() > b.tier.Score()
		}
		return a.reference.LessThan(b.reference)
	})

	best := candidates[0]
	return &models.PriceCandidate{
		Amount:        best.amount,
		Currency:      best.currency,
		Retailer:      best.listing.Source,
		URL:           best.listing.Link,
		Title:         best.listing.Title,
		Confidence:    PriceConfidence(best.match),
		MatchScore:    best.match,
		RetailerScore: best.tier.Score(),
		Method:        models.MethodShopping,
		RetrievedAt:   r.now().UTC(),
	}
}

// Once a trusted or reputable listing exists, anything scored below unknown is
// never selected.
func purgeLowTrust(candidates []priceCandidate) []priceCandidate {
	hasTrusted := false
	for _, c := range candidates {
		if c.tier.Score() >= models.TierReputable.Score() {
			hasTrusted = true
			break
		}
	}
	if !hasTrusted {
		return candidates
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.tier.Score() >= models.TierUnknown.Score() {
			kept = append(kept, c)
		}
	}
	return kept
}

// PriceConfidence maps a title match score to [0.7, 1.0].
func PriceConfidence(match float64) float64 {
	c := math.Min(0.7+match*0.3, 1.0)
	return math.Round(c*1000) / 1000
}

func (r *PriceResolver) toReference(amount decimal.Decimal, cur models.Currency) decimal.Decimal {
	if r.converter == nil {
		return amount
	}
	return r.converter.ToReference(amount, cur)
}

func (r *PriceResolver) inTarget(amount decimal.Decimal, from, to models.Currency) decimal.Decimal {
	if r.converter == nil {
		return amount
	}
	return r.converter.Convert(amount, from, to)
}
