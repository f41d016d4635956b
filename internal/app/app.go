package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"price-resolution-api/internal/config"
	"price-resolution-api/internal/currency"
	"price-resolution-api/internal/llm"
	"price-resolution-api/internal/resolver"
	"price-resolution-api/internal/scrapers"
	"price-resolution-api/internal/services"
	"price-resolution-api/pkg/browser"
	"price-resolution-api/pkg/cache"
)

// App owns every long-lived collaborator of the resolution service.
type App struct {
	Service *services.ResolutionService
	Cache   *cache.Cache

	renderer *browser.PageRenderer
	logger   zerolog.Logger
}

// Build wires the service from cfg. Missing API keys and an unreachable cache
// degrade features instead of failing.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *App {
	a := &App{logger: logger}

	a.Cache = cache.New(openStore(ctx, cfg.Cache, logger), logger)

	search := scrapers.NewSerperClient(scrapers.SerperConfig{
		APIKey:        cfg.Search.APIKey,
		BaseURL:       cfg.Search.BaseURL,
		Timeout:       cfg.Search.Timeout,
		NumResults:    cfg.Search.NumResults,
		RatePerSecond: cfg.Search.RatePerSecond,
		Burst:         cfg.Search.Burst,
	}, logger)
	if !search.Configured() {
		logger.Warn().Msg("SERPER_API_KEY not set, listing search disabled")
	}

	listings := scrapers.NewMultiSearcher(logger)
	if search.Configured() {
		listings.Add("serper", search)
	}
	if cfg.Storefront.Enabled {
		listings.Add("amazon", scrapers.NewAmazonListings(scrapers.AmazonConfig{
			Timeout:     cfg.Storefront.Timeout,
			Delay:       cfg.Storefront.Delay,
			Storefronts: cfg.Storefront.Hosts,
			MaxResults:  cfg.Storefront.MaxResults,
		}, logger))
	}
	if listings.Len() == 0 {
		// Reports the missing key on every search.
		listings.Add("serper", search)
	}

	fetchers := []resolver.PageFetcher{
		scrapers.NewReviewPageFetcher(scrapers.ReviewPageConfig{
			Timeout:        cfg.Review.Timeout,
			Delay:          cfg.Review.Delay,
			AllowedDomains: reviewDomains(cfg.Review.Domains),
		}, logger),
	}
	if cfg.Browser.Enabled {
		a.renderer = browser.NewPageRenderer(browser.Config{
			ExecPath: cfg.Browser.ExecPath,
			Timeout:  cfg.Browser.Timeout,
			Settle:   cfg.Browser.Settle,
		}, logger)
		fetchers = append(fetchers, a.renderer)
	}

	var expert *resolver.ExpertReviewer
	if search.Configured() {
		expert = resolver.NewExpertReviewer(search, fetchers, resolver.ExpertConfig{
			Domains:     cfg.Review.Domains,
			MaxPages:    cfg.Review.MaxPages,
			CallTimeout: cfg.Review.Timeout,
		}, logger)
	}

	converter := currency.NewConverter(logger)
	deps := services.Deps{
		Listings: listings,
		Price: resolver.NewPriceResolver(resolver.PriceConfig{
			MinMatchScore:  cfg.Resolver.MinMatchScore,
			HighValueFloor: decimal.NewFromFloat(cfg.Resolver.HighValueFloor),
		}, converter, logger),
		Rating: resolver.NewRatingResolver(resolver.RatingConfig{
			MinMatchScore:          cfg.Resolver.MinMatchScore,
			MarketplaceReviewFloor: cfg.Resolver.MarketplaceReviewFloor,
			ConsensusMinSellers:    cfg.Resolver.ConsensusMinSellers,
		}, expert, logger),
		Converter: converter,
		Cache:     a.Cache,
		TTL: cache.TTLPolicy{
			Specs:          cfg.Cache.TTL.Specs,
			Price:          cfg.Cache.TTL.Price,
			PriceEstimated: cfg.Cache.TTL.PriceEstimated,
			Reviews:        cfg.Cache.TTL.Reviews,
			ProsCons:       cfg.Cache.TTL.ProsCons,
		},
		CallTimeout:   cfg.Resolver.CallTimeout,
		GlobalRegions: cfg.Search.GlobalRegions,
		Logger:        logger,
	}
	if search.Configured() {
		deps.Web = search
	}

	gen, err := llm.NewOpenAIGenerator(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("specs, pros/cons and price estimates disabled")
	} else {
		deps.Generator = gen
	}

	a.Service = services.NewResolutionService(deps)
	return a
}

// openStore returns a nil Store, never a typed nil, when no cache is usable.
func openStore(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) cache.Store {
	switch cfg.Type {
	case "redis":
		pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout+time.Second)
		defer cancel()
		store, err := cache.NewRedisStore(pingCtx, cache.RedisConfig{
			URL:         cfg.RedisURL,
			DB:          cfg.RedisDB,
			DialTimeout: cfg.DialTimeout,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, running without cache")
			return nil
		}
		logger.Info().Str("url", cfg.RedisURL).Msg("redis cache connected")
		return store
	case "memory":
		logger.Info().Msg("using in-process cache")
		return cache.NewMemoryStore(cfg.TTL.Price, 10*time.Minute)
	default:
		logger.Info().Msg("cache disabled")
		return nil
	}
}

func reviewDomains(configured []string) []string {
	if len(configured) > 0 {
		return configured
	}
	return resolver.DefaultReviewDomains
}

func (a *App) Close() error {
	a.renderer.Close()
	return a.Cache.Close()
}
