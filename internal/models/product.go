package models

import (
	"strings"
	"time"
)

// ProductQuery identifies one logical product in one region.
type ProductQuery struct {
	Brand   string `json:"brand"`
	Name    string `json:"name"`
	Variant string `json:"variant,omitempty"`
	Region  string `json:"region,omitempty"`
}

// FullName joins the non-empty identity fields with single spaces.
func (q ProductQuery) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{q.Brand, q.Name, q.Variant} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// ListingRecord is one shopping result as returned by the search collaborator.
// Records are passed by value and never modified after the collaborator builds them.
type ListingRecord struct {
	Title       string   `json:"title"`
	PriceText   string   `json:"price,omitempty"`
	Source      string   `json:"source"`
	Link        string   `json:"link"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"reviews,omitempty"`
}

// OrganicResult is one organic web hit.
type OrganicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
}

// ProsCons is opaque generated text attached to a result.
type ProsCons struct {
	Pros           []string `json:"pros"`
	Cons           []string `json:"cons"`
	Recommendation string   `json:"recommendation,omitempty"`
}

type Freshness string

const (
	FreshnessLive   Freshness = "live"
	FreshnessCached Freshness = "cached"
	FreshnessMixed  Freshness = "mixed"
)

// FreshnessOf labels a result from whether each resolved field came from cache.
func FreshnessOf(fromCache ...bool) Freshness {
	hits := 0
	for _, hit := range fromCache {
		if hit {
			hits++
		}
	}
	switch {
	case hits == 0:
		return FreshnessLive
	case hits == len(fromCache):
		return FreshnessCached
	default:
		return FreshnessMixed
	}
}

type ResolutionResult struct {
	Product   ProductQuery      `json:"product"`
	Region    string            `json:"region"`
	Price     *PriceCandidate   `json:"price"`
	Rating    *RatingCandidate  `json:"rating"`
	Specs     map[string]string `json:"specs,omitempty"`
	ProsCons  *ProsCons         `json:"pros_cons,omitempty"`
	Freshness Freshness         `json:"freshness"`
	Duration  string            `json:"duration"`
}

type RegionalPrice struct {
	Region         string          `json:"region"`
	Price          *PriceCandidate `json:"price"`
	ReferenceValue string          `json:"reference_value,omitempty"`
}

type RegionalComparison struct {
	Product        ProductQuery    `json:"product"`
	Reference      Currency        `json:"reference_currency"`
	Prices         []RegionalPrice `json:"prices"`
	CheapestRegion string          `json:"cheapest_region,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

type CompareRequest struct {
	Products []ProductQuery `json:"products" binding:"required,min=2,max=4"`
	Region   string         `json:"region"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
