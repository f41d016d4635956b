package scrapers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
	"price-resolution-api/internal/models"
	"price-resolution-api/pkg/utils"
)

// Regional storefronts keyed by region code.
var defaultAmazonStorefronts = map[string]string{
	"ae": "https://www.amazon.ae",
	"sa": "https://www.amazon.sa",
	"us": "https://www.amazon.com",
}

type AmazonConfig struct {
	UserAgent string
	Timeout   time.Duration
	Delay     time.Duration
	// Overrides defaultAmazonStorefronts.
	Storefronts map[string]string
	MaxResults  int
}

// AmazonListings reads the first page of Amazon search results directly from
// the regional storefront.
type AmazonListings struct {
	collector   *colly.Collector
	storefronts map[string]string
	maxResults  int
	logger      zerolog.Logger
}

func NewAmazonListings(cfg AmazonConfig, logger zerolog.Logger) *AmazonListings {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if len(cfg.Storefronts) == 0 {
		cfg.Storefronts = defaultAmazonStorefronts
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}

	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(cfg.Timeout)
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
	})

	return &AmazonListings{
		collector:   c,
		storefronts: cfg.Storefronts,
		maxResults:  cfg.MaxResults,
		logger:      logger.With().Str("component", "amazon").Logger(),
	}
}

func (a *AmazonListings) Supports(regionCode string) bool {
	_, ok := a.storefronts[strings.ToLower(regionCode)]
	return ok
}

// SearchListings returns search results from the storefront of regionCode.
// Regions without a storefront report models.ErrUnavailable.
func (a *AmazonListings) SearchListings(ctx context.Context, query, regionCode string) ([]models.ListingRecord, error) {
	base, ok := a.storefronts[strings.ToLower(regionCode)]
	if !ok {
		return nil, fmt.Errorf("%w: no amazon storefront for region %q", models.ErrUnavailable, regionCode)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}

	source := "Amazon." + storefrontSuffix(base)
	searchURL := strings.TrimRight(base, "/") + "/s?k=" + url.QueryEscape(query)

	c := a.collector.Clone()
	listings := make([]models.ListingRecord, 0, a.maxResults)
	var status int

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	c.OnHTML("div[data-component-type='s-search-result']", func(e *colly.HTMLElement) {
		if len(listings) >= a.maxResults {
			return
		}
		if l, ok := amazonListing(e, base, source); ok {
			listings = append(listings, l)
		}
	})

	done := make(chan error, 1)
	go func() { done <- c.Visit(searchURL) }()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: amazon %s: %v", models.ErrUnavailable, regionCode, ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("%w: amazon %s: %v", models.ErrUnavailable, regionCode, err)
		}
	}

	a.logger.Debug().Str("query", query).Str("region", regionCode).Int("status", status).
		Int("listings", len(listings)).Msg("storefront search")
	return listings, nil
}

func amazonListing(e *colly.HTMLElement, base, source string) (models.ListingRecord, bool) {
	var title string
	for _, sel := range []string{"h2 a span", "h2 span", ".a-link-normal span"} {
		if t := strings.TrimSpace(e.ChildText(sel)); len(t) > 5 {
			title = t
			break
		}
	}
	if title == "" {
		return models.ListingRecord{}, false
	}

	l := models.ListingRecord{
		Title:     title,
		PriceText: firstText(e, ".a-price .a-offscreen", ".a-price-whole"),
		Source:    source,
	}

	href := e.ChildAttr("h2 a", "href")
	if href == "" {
		href = e.ChildAttr("a.a-link-normal", "href")
	}
	if href != "" {
		if u, err := url.Parse(base); err == nil {
			if ref, err := u.Parse(href); err == nil {
				l.Link = ref.String()
			}
		}
	}

	// "4.5 out of 5 stars"
	if r, ok := utils.ParseRating(e.ChildText(".a-icon-alt")); ok && r > 0 && r <= 5 {
		l.Rating = &r
	}
	if n, ok := utils.ParseReviewCount(firstText(e, "span.s-underline-text", "a[href*='customerReviews'] span")); ok {
		l.ReviewCount = &n
	}
	return l, true
}

func firstText(e *colly.HTMLElement, selectors ...string) string {
	for _, sel := range selectors {
		// ChildText concatenates every match; keep the first element only.
		var text string
		e.ForEachWithBreak(sel, func(_ int, child *colly.HTMLElement) bool {
			text = strings.TrimSpace(child.Text)
			return text == ""
		})
		if text != "" {
			return text
		}
	}
	return ""
}

func storefrontSuffix(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return "com"
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if i := strings.Index(host, "."); i >= 0 {
		return host[i+1:]
	}
	return host
}
