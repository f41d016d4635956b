package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"price-resolution-api/internal/currency"
	"price-resolution-api/internal/models"
	"price-resolution-api/internal/resolver"
	"price-resolution-api/pkg/cache"
)

const (
	MinCompareProducts = 2
	MaxCompareProducts = 4
)

// ListingSearcher returns shopping listings for a query in one country.
type ListingSearcher interface {
	SearchListings(ctx context.Context, query, regionCode string) ([]models.ListingRecord, error)
}

// Generator produces the fields that have no shopping source.
type Generator interface {
	GenerateSpecs(ctx context.Context, q models.ProductQuery, evidence []models.OrganicResult) (map[string]string, error)
	GenerateProsCons(ctx context.Context, q models.ProductQuery, specs map[string]string, rating *models.RatingCandidate, price *models.PriceCandidate) (*models.ProsCons, error)
	EstimatePrice(ctx context.Context, q models.ProductQuery, region models.Region) (*models.PriceCandidate, error)
}

// Deps are the collaborators of a ResolutionService. Listings, Price, Rating,
// Converter and Cache are required; a nil Web or Generator disables specs,
// pros/cons and the estimate fallback.
type Deps struct {
	Listings  ListingSearcher
	Web       resolver.WebSearcher
	Generator Generator
	Price     *resolver.PriceResolver
	Rating    *resolver.RatingResolver
	Converter *currency.Converter
	Cache     *cache.Cache
	TTL       cache.TTLPolicy

	CallTimeout time.Duration
	// Regions searched when the requested region has no usable listing.
	GlobalRegions []string
	Logger        zerolog.Logger
}

type ResolutionService struct {
	listings      ListingSearcher
	web           resolver.WebSearcher
	generator     Generator
	price         *resolver.PriceResolver
	rating        *resolver.RatingResolver
	converter     *currency.Converter
	cache         *cache.Cache
	ttl           cache.TTLPolicy
	callTimeout   time.Duration
	globalRegions []models.Region
	logger        zerolog.Logger
	now           func() time.Time
}

func NewResolutionService(d Deps) *ResolutionService {
	if d.CallTimeout <= 0 {
		d.CallTimeout = 15 * time.Second
	}
	if d.TTL == (cache.TTLPolicy{}) {
		d.TTL = cache.DefaultTTLPolicy()
	}

	logger := d.Logger.With().Str("component", "resolution").Logger()
	var global []models.Region
	for _, name := range d.GlobalRegions {
		r, ok := models.LookupRegion(name)
		if !ok {
			logger.Warn().Str("region", name).Msg("ignoring unknown global fallback region")
			continue
		}
		global = append(global, r)
	}

	return &ResolutionService{
		listings:      d.Listings,
		web:           d.Web,
		generator:     d.Generator,
		price:         d.Price,
		rating:        d.Rating,
		converter:     d.Converter,
		cache:         d.Cache,
		ttl:           d.TTL,
		callTimeout:   d.CallTimeout,
		globalRegions: global,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *ResolutionService) Cache() *cache.Cache {
	return s.cache
}

func validateQuery(q models.ProductQuery) (models.ProductQuery, models.Region, error) {
	q.Brand = strings.TrimSpace(q.Brand)
	q.Name = strings.TrimSpace(q.Name)
	q.Variant = strings.TrimSpace(q.Variant)
	if q.Name == "" {
		return q, models.Region{}, fmt.Errorf("%w: product name is required", models.ErrInvalidRequest)
	}
	region, ok := models.LookupRegion(q.Region)
	if !ok {
		return q, models.Region{}, fmt.Errorf("%w: unknown region %q", models.ErrInvalidRequest, q.Region)
	}
	q.Region = region.Name
	return q, region, nil
}

// ResolvePrice returns the best price for the product in region, or nil when
// nothing could be found. Errors are returned only for invalid input.
func (s *ResolutionService) ResolvePrice(ctx context.Context, brand, name, variant, region string) (*models.PriceCandidate, error) {
	q, reg, err := validateQuery(models.ProductQuery{Brand: brand, Name: name, Variant: variant, Region: region})
	if err != nil {
		return nil, err
	}
	if p, ok := s.cachedPrice(ctx, q); ok {
		return p, nil
	}
	listings := s.searchListings(ctx, q.FullName(), reg)
	return s.resolvePrice(ctx, q, reg, listings), nil
}

// ResolveRating returns a provenanced rating for the product, or nil.
func (s *ResolutionService) ResolveRating(ctx context.Context, fullName string) (*models.RatingCandidate, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, fmt.Errorf("%w: product name is required", models.ErrInvalidRequest)
	}
	if r, ok := s.cachedRating(ctx, fullName); ok {
		return r, nil
	}

	reg, _ := models.LookupRegion(models.DefaultRegion)
	var listings []models.ListingRecord
	var expert *models.RatingCandidate

	var g errgroup.Group
	g.Go(func() error {
		listings = s.searchListings(ctx, fullName, reg)
		return nil
	})
	g.Go(func() error {
		expert = s.rating.ResolveExpert(ctx, fullName)
		return nil
	})
	_ = g.Wait()

	return s.settleRating(ctx, fullName, expert, listings), nil
}

// Resolve builds the full result for one product. Price and rating are read from
// cache independently; on a miss one listing search feeds both resolvers.
func (s *ResolutionService) Resolve(ctx context.Context, q models.ProductQuery) (*models.ResolutionResult, error) {
	start := s.now()
	q, reg, err := validateQuery(q)
	if err != nil {
		return nil, err
	}
	fullName := q.FullName()

	result := &models.ResolutionResult{Product: q, Region: reg.Name}

	cachedRating, ratingHit := s.cachedRating(ctx, fullName)
	var priceHit bool
	var listings []models.ListingRecord

	// Phase 1: specs and price.
	var phase1 errgroup.Group
	phase1.Go(func() error {
		result.Specs = s.resolveSpecs(ctx, q, reg)
		return nil
	})
	phase1.Go(func() error {
		var p *models.PriceCandidate
		p, priceHit = s.cachedPrice(ctx, q)
		if !priceHit || !ratingHit {
			listings = s.searchListings(ctx, fullName, reg)
		}
		if !priceHit {
			p = s.resolvePrice(ctx, q, reg, listings)
		}
		result.Price = p
		return nil
	})
	_ = phase1.Wait()

	// Phase 2: expert review, then the strategy list over the same listings.
	if ratingHit {
		result.Rating = cachedRating
	} else {
		expert := s.rating.ResolveExpert(ctx, fullName)
		result.Rating = s.settleRating(ctx, fullName, expert, listings)
	}

	result.ProsCons = s.resolveProsCons(ctx, q, result.Specs, result.Rating, result.Price)
	result.Freshness = models.FreshnessOf(priceHit, ratingHit)
	result.Duration = s.now().Sub(start).String()

	s.logger.Info().
		Str("product", fullName).
		Str("region", reg.Name).
		Bool("price", result.Price != nil).
		Bool("rating", result.Rating != nil).
		Str("freshness", string(result.Freshness)).
		Str("duration", result.Duration).
		Msg("resolved product")
	return result, nil
}

// Compare resolves each product independently and in parallel. Region, when
// set, overrides the per-product region.
func (s *ResolutionService) Compare(ctx context.Context, products []models.ProductQuery, region string) ([]*models.ResolutionResult, error) {
	if len(products) < MinCompareProducts || len(products) > MaxCompareProducts {
		return nil, fmt.Errorf("%w: compare needs %d to %d products, got %d",
			models.ErrInvalidRequest, MinCompareProducts, MaxCompareProducts, len(products))
	}
	queries := append([]models.ProductQuery(nil), products...)
	for i := range queries {
		if region != "" {
			queries[i].Region = region
		}
		if _, _, err := validateQuery(queries[i]); err != nil {
			return nil, fmt.Errorf("product %d: %w", i+1, err)
		}
	}

	results := make([]*models.ResolutionResult, len(queries))
	var g errgroup.Group
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			r, err := s.Resolve(ctx, q)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ResolveRegional prices the product in every Gulf market and reports the
// cheapest one in the reference currency.
func (s *ResolutionService) ResolveRegional(ctx context.Context, brand, name, variant string) (*models.RegionalComparison, error) {
	q, _, err := validateQuery(models.ProductQuery{Brand: brand, Name: name, Variant: variant})
	if err != nil {
		return nil, err
	}
	q.Region = ""

	regions := models.GCCRegions()
	prices := make([]models.RegionalPrice, len(regions))

	var g errgroup.Group
	for i, reg := range regions {
		i, reg := i, reg
		g.Go(func() error {
			p, err := s.ResolvePrice(ctx, q.Brand, q.Name, q.Variant, reg.Name)
			prices[i] = models.RegionalPrice{Region: reg.Name, Price: p}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &models.RegionalComparison{
		Product:     q,
		Reference:   currency.Reference,
		Prices:      prices,
		GeneratedAt: s.now().UTC(),
	}
	var cheapest decimal.Decimal
	for i := range out.Prices {
		p := out.Prices[i].Price
		if p == nil {
			continue
		}
		ref := s.converter.ToReference(p.Amount, p.Currency)
		out.Prices[i].ReferenceValue = ref.StringFixed(3)
		if out.CheapestRegion == "" || ref.LessThan(cheapest) {
			cheapest = ref
			out.CheapestRegion = out.Prices[i].Region
		}
	}
	return out, nil
}

func (s *ResolutionService) cachedPrice(ctx context.Context, q models.ProductQuery) (*models.PriceCandidate, bool) {
	var p models.PriceCandidate
	if !s.cache.Get(ctx, cache.PriceKey(q.Brand, q.Name, q.Variant, q.Region), &p) {
		return nil, false
	}
	return &p, true
}

func (s *ResolutionService) cachedRating(ctx context.Context, fullName string) (*models.RatingCandidate, bool) {
	var r models.RatingCandidate
	key := cache.ReviewsKey(fullName)
	if !s.cache.Get(ctx, key, &r) {
		return nil, false
	}
	if s.enforceProvenance(&r) == nil {
		s.cache.Delete(ctx, key)
		return nil, false
	}
	return &r, true
}

func (s *ResolutionService) searchListings(ctx context.Context, query string, reg models.Region) []models.ListingRecord {
	if s.listings == nil {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	listings, err := s.listings.SearchListings(callCtx, query, reg.Code)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Str("region", reg.Name).Msg("listing search failed")
		return nil
	}
	return listings
}

// resolvePrice walks local listings, then global listings converted into the
// region's currency, then a generated estimate. Whatever is found is cached.
func (s *ResolutionService) resolvePrice(ctx context.Context, q models.ProductQuery, reg models.Region, listings []models.ListingRecord) *models.PriceCandidate {
	fullName := q.FullName()

	p := s.price.Resolve(fullName, listings, reg.Currency)
	if p == nil {
		p = s.globalPrice(ctx, fullName, reg)
	}
	if p == nil && s.generator != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		est, err := s.generator.EstimatePrice(callCtx, q, reg)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Str("product", fullName).Msg("price estimate failed")
		}
		p = est
	}
	if p == nil {
		return nil
	}

	s.cache.Set(ctx, cache.PriceKey(q.Brand, q.Name, q.Variant, q.Region), p, s.ttl.For(cache.KindPrice, p.Estimated))
	return p
}

func (s *ResolutionService) globalPrice(ctx context.Context, fullName string, reg models.Region) *models.PriceCandidate {
	for _, global := range s.globalRegions {
		if global.Code == reg.Code {
			continue
		}
		p := s.price.Resolve(fullName, s.searchListings(ctx, fullName, global), global.Currency)
		if p == nil {
			continue
		}

		original := p.Display()
		p.Amount = s.converter.Convert(p.Amount, p.Currency, reg.Currency).Round(3)
		p.Currency = reg.Currency
		p.Estimated = true
		p.Method = models.MethodGlobalShopping
		p.Note = fmt.Sprintf("converted from %s (%s)", original, global.Name)
		if !p.Amount.IsPositive() {
			continue
		}
		return p
	}
	return nil
}

// settleRating ranks the expert result against the listings, strips anything
// without provenance and caches the survivor.
func (s *ResolutionService) settleRating(ctx context.Context, fullName string, expert *models.RatingCandidate, listings []models.ListingRecord) *models.RatingCandidate {
	r := s.enforceProvenance(s.rating.ResolveFrom(fullName, expert, listings))
	if r != nil {
		s.cache.Set(ctx, cache.ReviewsKey(fullName), r, s.ttl.For(cache.KindReviews, false))
	}
	return r
}

// enforceProvenance drops a rating that fails validation before it reaches a caller.
func (s *ResolutionService) enforceProvenance(r *models.RatingCandidate) *models.RatingCandidate {
	if r == nil {
		return nil
	}
	if err := r.Validate(); err != nil {
		s.logger.Error().Err(err).Str("source", r.Source).Msg("dropping rating at service boundary")
		return nil
	}
	return r
}

func (s *ResolutionService) resolveSpecs(ctx context.Context, q models.ProductQuery, reg models.Region) map[string]string {
	key := cache.SpecsKey(q.Brand, q.Name, q.Variant)
	var specs map[string]string
	if s.cache.Get(ctx, key, &specs) {
		return specs
	}
	if s.generator == nil {
		return nil
	}

	var evidence []models.OrganicResult
	if s.web != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		results, err := s.web.SearchWeb(callCtx, q.FullName()+" specifications", reg.Code)
		cancel()
		if err != nil {
			s.logger.Debug().Err(err).Str("product", q.FullName()).Msg("specs search failed")
		}
		evidence = results
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	specs, err := s.generator.GenerateSpecs(callCtx, q, evidence)
	if err != nil {
		s.logger.Warn().Err(err).Str("product", q.FullName()).Msg("specs generation failed")
		return nil
	}
	if len(specs) > 0 {
		s.cache.Set(ctx, key, specs, s.ttl.For(cache.KindSpecs, false))
	}
	return specs
}

func (s *ResolutionService) resolveProsCons(ctx context.Context, q models.ProductQuery, specs map[string]string, rating *models.RatingCandidate, price *models.PriceCandidate) *models.ProsCons {
	key := cache.ProsConsKey(q.Brand, q.Name, q.Variant)
	var pc models.ProsCons
	if s.cache.Get(ctx, key, &pc) {
		return &pc
	}
	if s.generator == nil {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	out, err := s.generator.GenerateProsCons(callCtx, q, specs, rating, price)
	if err != nil {
		s.logger.Warn().Err(err).Str("product", q.FullName()).Msg("pros/cons generation failed")
		return nil
	}
	if out != nil && (len(out.Pros) > 0 || len(out.Cons) > 0) {
		s.cache.Set(ctx, key, out, s.ttl.For(cache.KindProsCons, false))
	}
	return out
}
