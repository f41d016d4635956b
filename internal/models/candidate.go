package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MethodShopping       = "shopping"
	MethodGlobalShopping = "global_shopping"
	MethodLLMEstimate    = "llm_estimate"
)

// PriceCandidate is the selected price for a product together with the sort keys
// that ranked it.
type PriceCandidate struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      Currency        `json:"currency"`
	Retailer      string          `json:"retailer"`
	URL           string          `json:"url,omitempty"`
	Title         string          `json:"title,omitempty"`
	InStock       *bool           `json:"in_stock"`
	Confidence    float64         `json:"confidence"`
	MatchScore    float64         `json:"match_score"`
	RetailerScore float64         `json:"retailer_score"`
	Estimated     bool            `json:"estimated"`
	Method        string          `json:"method"`
	Note          string          `json:"note,omitempty"`
	RetrievedAt   time.Time       `json:"retrieved_at"`
}

// NewPriceCandidate rejects non-positive amounts.
func NewPriceCandidate(amount decimal.Decimal, currency Currency, retailer, url string) (*PriceCandidate, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	return &PriceCandidate{
		Amount:      amount,
		Currency:    currency,
		Retailer:    retailer,
		URL:         url,
		Method:      MethodShopping,
		RetrievedAt: time.Now().UTC(),
	}, nil
}

// Display renders the amount with its currency code, e.g. "BHD 339.000".
func (p *PriceCandidate) Display() string {
	places := int32(2)
	switch p.Currency {
	case BHD, KWD, OMR:
		places = 3
	}
	return fmt.Sprintf("%s %s", p.Currency, p.Amount.StringFixed(places))
}

type RatingTier int

const (
	RatingTierExpert RatingTier = iota
	RatingTierTrusted
	RatingTierReputable
	RatingTierMarketplace
)

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"

	ExtractExpertReview = "expert_review"
	ExtractShopping     = "google_shopping"
	ExtractConsensus    = "consensus"
)

// RatingCandidate is a rating together with the provenance that justifies showing it.
type RatingCandidate struct {
	Rating        float64    `json:"rating"`
	ReviewCount   *int       `json:"review_count,omitempty"`
	Source        string     `json:"source"`
	SourceURL     string     `json:"source_url"`
	Tier          RatingTier `json:"tier"`
	MatchScore    float64    `json:"match_score"`
	Confidence    string     `json:"confidence"`
	Verified      bool       `json:"verified"`
	Label         string     `json:"label"`
	ExtractMethod string     `json:"extract_method"`
	RetrievedAt   time.Time  `json:"retrieved_at"`
	ExpertPros    []string   `json:"expert_pros,omitempty"`
	ExpertCons    []string   `json:"expert_cons,omitempty"`
}

// NewRatingCandidate is the only way the resolvers build ratings. A rating without
// a source URL cannot be constructed.
func NewRatingCandidate(rating float64, reviewCount *int, source, sourceURL string, tier RatingTier) (*RatingCandidate, error) {
	r := &RatingCandidate{
		Rating:      rating,
		ReviewCount: reviewCount,
		Source:      source,
		SourceURL:   sourceURL,
		Tier:        tier,
		RetrievedAt: time.Now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RatingCandidate) Validate() error {
	if r == nil {
		return nil
	}
	if strings.TrimSpace(r.SourceURL) == "" {
		return ErrProvenanceViolation
	}
	if r.Rating <= 0 || r.Rating > 5 {
		return fmt.Errorf("%w: %.2f", ErrInvalidRating, r.Rating)
	}
	return nil
}

type RatingSource struct {
	Name          string    `json:"name"`
	URL           string    `json:"url"`
	RetrievedAt   time.Time `json:"retrieved_at"`
	ExtractMethod string    `json:"extract_method"`
	Confidence    string    `json:"confidence"`
}

type RatingResponse struct {
	Rating       *float64      `json:"rating"`
	ReviewCount  *int          `json:"review_count"`
	RatingSource *RatingSource `json:"rating_source"`
	Verified     bool          `json:"verified"`
	Label        string        `json:"label,omitempty"`
}

// APIResponse flattens the candidate for clients. A nil or invalid candidate
// renders as an empty rating.
func (r *RatingCandidate) APIResponse() RatingResponse {
	if r == nil || r.Validate() != nil {
		return RatingResponse{}
	}
	rating := r.Rating
	return RatingResponse{
		Rating:      &rating,
		ReviewCount: r.ReviewCount,
		RatingSource: &RatingSource{
			Name:          r.Source,
			URL:           r.SourceURL,
			RetrievedAt:   r.RetrievedAt,
			ExtractMethod: r.ExtractMethod,
			Confidence:    r.Confidence,
		},
		Verified: r.Verified,
		Label:    r.Label,
	}
}
