package scrapers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"price-resolution-api/internal/models"
	"price-resolution-api/pkg/utils"
)

const defaultSerperURL = "https://google.serper.dev"

type SerperConfig struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	NumResults    int
	RatePerSecond float64
	Burst         int
}

// SerperClient is the listing search collaborator. It queries the shopping and
// organic endpoints of a Google search API and normalises the results.
type SerperClient struct {
	cfg     SerperConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func NewSerperClient(cfg SerperConfig, logger zerolog.Logger) *SerperClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSerperURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.NumResults <= 0 {
		cfg.NumResults = 20
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}

	return &SerperClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:  logger.With().Str("component", "serper").Logger(),
	}
}

func (s *SerperClient) Configured() bool {
	return s != nil && s.cfg.APIKey != ""
}

type serperRequest struct {
	Query   string `json:"q"`
	Country string `json:"gl,omitempty"`
	Num     int    `json:"num,omitempty"`
}

type serperShoppingItem struct {
	Title       string          `json:"title"`
	Source      string          `json:"source"`
	Link        string          `json:"link"`
	Price       json.RawMessage `json:"price"`
	Rating      json.RawMessage `json:"rating"`
	RatingCount json.RawMessage `json:"ratingCount"`
	Reviews     json.RawMessage `json:"reviews"`
}

type serperShoppingResponse struct {
	Shopping []serperShoppingItem `json:"shopping"`
}

type serperOrganicResponse struct {
	Organic []models.OrganicResult `json:"organic"`
}

// SearchListings returns shopping listings for query in the given country.
func (s *SerperClient) SearchListings(ctx context.Context, query, regionCode string) ([]models.ListingRecord, error) {
	var resp serperShoppingResponse
	if err := s.post(ctx, "/shopping", serperRequest{Query: query, Country: regionCode, Num: s.cfg.NumResults}, &resp); err != nil {
		return nil, err
	}

	listings := make([]models.ListingRecord, 0, len(resp.Shopping))
	for _, item := range resp.Shopping {
		listings = append(listings, item.toListing())
	}
	s.logger.Debug().Str("query", query).Str("region", regionCode).Int("listings", len(listings)).Msg("shopping search")
	return listings, nil
}

// SearchWeb returns organic results for query.
func (s *SerperClient) SearchWeb(ctx context.Context, query, regionCode string) ([]models.OrganicResult, error) {
	var resp serperOrganicResponse
	if err := s.post(ctx, "/search", serperRequest{Query: query, Country: regionCode, Num: 10}, &resp); err != nil {
		return nil, err
	}
	return resp.Organic, nil
}

func (s *SerperClient) post(ctx context.Context, path string, body serperRequest, dest interface{}) error {
	if !s.Configured() {
		return fmt.Errorf("%w: search api key not configured", models.ErrUnavailable)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.cfg.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: search %s: %v", models.ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: search %s returned %d: %s", models.ErrUnavailable, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 5<<20)).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode search %s: %v", models.ErrUnavailable, path, err)
	}
	s.logger.Debug().Str("path", path).Dur("took", time.Since(start)).Msg("search call")
	return nil
}

func (item serperShoppingItem) toListing() models.ListingRecord {
	l := models.ListingRecord{
		Title:     strings.TrimSpace(item.Title),
		PriceText: rawText(item.Price),
		Source:    strings.TrimSpace(item.Source),
		Link:      strings.TrimSpace(item.Link),
	}

	if r, ok := utils.ParseRating(rawText(item.Rating)); ok && r > 0 && r <= 5 {
		l.Rating = &r
	}
	for _, raw := range []json.RawMessage{item.RatingCount, item.Reviews} {
		if n, ok := utils.ParseReviewCount(rawText(raw)); ok {
			l.ReviewCount = &n
			break
		}
	}
	return l
}

// rawText renders a JSON string or number as plain text.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
