package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"price-resolution-api/internal/models"
)

// WebSearcher returns organic results for a free-text query.
type WebSearcher interface {
	SearchWeb(ctx context.Context, query, regionCode string) ([]models.OrganicResult, error)
}

// PageFetcher returns the raw body of a page.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) ([]byte, error)
}

var DefaultReviewDomains = []string{
	"rtings.com", "techradar.com", "gsmarena.com", "theverge.com",
	"tomsguide.com", "pcmag.com", "cnet.com", "engadget.com",
}

const DefaultMaxExpertPages = 3

type ExpertConfig struct {
	Domains     []string
	MaxPages    int
	CallTimeout time.Duration
}

// ExpertReviewer looks for an editorial review with schema.org rating markup.
type ExpertReviewer struct {
	search   WebSearcher
	fetchers []PageFetcher
	cfg      ExpertConfig
	logger   zerolog.Logger
	now      func() time.Time
}

// NewExpertReviewer tries fetchers in order for each candidate page, so a plain
// HTTP fetcher can be followed by a script-rendering one.
func NewExpertReviewer(search WebSearcher, fetchers []PageFetcher, cfg ExpertConfig, logger zerolog.Logger) *ExpertReviewer {
	if len(cfg.Domains) == 0 {
		cfg.Domains = DefaultReviewDomains
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxExpertPages
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	return &ExpertReviewer{
		search:   search,
		fetchers: fetchers,
		cfg:      cfg,
		logger:   logger.With().Str("component", "expert_review").Logger(),
		now:      time.Now,
	}
}

// Lookup returns nil when no page among the first MaxPages candidates carries a
// usable structured rating.
func (e *ExpertReviewer) Lookup(ctx context.Context, query string) *models.RatingCandidate {
	if e == nil || e.search == nil || len(e.fetchers) == 0 {
		return nil
	}

	pages, err := e.candidatePages(ctx, query)
	if err != nil {
		e.logger.Warn().Err(err).Str("query", query).Msg("expert review search failed")
		return nil
	}

	for _, page := range pages {
		review, err := e.fetchReview(ctx, page.Link)
		if err != nil {
			e.logger.Debug().Err(err).Str("url", page.Link).Msg("no structured review on page")
			continue
		}

		host := reviewHost(page.Link)
		out, err := models.NewRatingCandidate(review.Rating, review.ReviewCount, host, page.Link, models.RatingTierExpert)
		if err != nil {
			e.logger.Warn().Err(err).Str("url", page.Link).Msg("discarding expert rating")
			continue
		}
		out.MatchScore = 1
		out.Confidence = models.ConfidenceHigh
		out.Verified = true
		out.Label = "expert review"
		out.ExtractMethod = models.ExtractExpertReview
		out.RetrievedAt = e.now().UTC()
		out.ExpertPros = review.Pros
		out.ExpertCons = review.Cons
		return out
	}
	return nil
}

func (e *ExpertReviewer) candidatePages(ctx context.Context, query string) ([]models.OrganicResult, error) {
	sites := make([]string, len(e.cfg.Domains))
	for i, d := range e.cfg.Domains {
		sites[i] = "site:" + d
	}
	q := fmt.Sprintf("%s review (%s)", query, strings.Join(sites, " OR "))

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	results, err := e.search.SearchWeb(callCtx, q, "us")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	pages := make([]models.OrganicResult, 0, e.cfg.MaxPages)
	for _, r := range results {
		if !e.isReviewDomain(r.Link) {
			continue
		}
		if _, dup := seen[r.Link]; dup {
			continue
		}
		seen[r.Link] = struct{}{}
		pages = append(pages, r)
		if len(pages) == e.cfg.MaxPages {
			break
		}
	}
	return pages, nil
}

func (e *ExpertReviewer) fetchReview(ctx context.Context, pageURL string) (*StructuredReview, error) {
	var errs []error
	for _, f := range e.fetchers {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		body, err := f.FetchPage(callCtx, pageURL)
		cancel()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		review, err := ParseStructuredReview(body)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return review, nil
	}
	return nil, errors.Join(errs...)
}

func (e *ExpertReviewer) isReviewDomain(link string) bool {
	host := reviewHost(link)
	if host == "" {
		return false
	}
	for _, d := range e.cfg.Domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func reviewHost(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
