package scrapers

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
	"price-resolution-api/internal/models"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type ReviewPageConfig struct {
	UserAgent string
	Timeout   time.Duration
	// Delay between requests to the same host.
	Delay time.Duration
	// Empty allows every host.
	AllowedDomains []string
	MaxBodySize    int
}

// ReviewPageFetcher downloads editorial review pages.
type ReviewPageFetcher struct {
	collector *colly.Collector
	logger    zerolog.Logger
}

func NewReviewPageFetcher(cfg ReviewPageConfig, logger zerolog.Logger) *ReviewPageFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 4 << 20
	}

	opts := []colly.CollectorOption{
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(cfg.MaxBodySize),
	}
	if len(cfg.AllowedDomains) > 0 {
		domains := make([]string, 0, len(cfg.AllowedDomains)*2)
		for _, d := range cfg.AllowedDomains {
			domains = append(domains, d, "www."+d)
		}
		opts = append(opts, colly.AllowedDomains(domains...))
	}

	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(cfg.Timeout)
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		Delay:       cfg.Delay,
	})

	return &ReviewPageFetcher{
		collector: c,
		logger:    logger.With().Str("component", "review_page").Logger(),
	}
}

// FetchPage returns the body of pageURL. Non-2xx answers, disallowed hosts and
// context expiry are reported as models.ErrUnavailable.
func (f *ReviewPageFetcher) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}

	c := f.collector.Clone()
	var body []byte
	var status int

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	done := make(chan error, 1)
	go func() { done <- c.Visit(pageURL) }()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: fetch %s: %v", models.ErrUnavailable, pageURL, ctx.Err())
	case err := <-done:
		if err != nil {
			f.logger.Debug().Err(err).Str("url", pageURL).Int("status", status).Msg("review page fetch failed")
			return nil, fmt.Errorf("%w: fetch %s: %v", models.ErrUnavailable, pageURL, err)
		}
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("%w: fetch %s: empty body (status %d)", models.ErrUnavailable, pageURL, status)
	}
	return body, nil
}

func (f *ReviewPageFetcher) Name() string { return "colly" }
