package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"price-resolution-api/internal/models"
)

// EstimateConfidence is the fixed confidence of a price that was guessed rather than seen.
const EstimateConfidence = 0.5

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIGenerator fills the fields no shopping listing provides: specifications,
// pros and cons, and a last-resort price estimate.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

func NewOpenAIGenerator(cfg Config, logger zerolog.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", models.ErrUnavailable)
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		logger: logger.With().Str("component", "llm").Logger(),
		now:    time.Now,
	}, nil
}

// GenerateSpecs returns a flat name→value map. Search results, when given, are
// passed along as grounding context.
func (g *OpenAIGenerator) GenerateSpecs(ctx context.Context, q models.ProductQuery, evidence []models.OrganicResult) (map[string]string, error) {
	var sb strings.Builder
	for i, r := range evidence {
		if i == 8 {
			break
		}
		fmt.Fprintf(&sb, "- %s: %s\n", r.Title, r.Snippet)
	}
	searchContext := sb.String()
	if len(searchContext) > 3000 {
		searchContext = searchContext[:3000]
	}

	prompt := fmt.Sprintf(`Extract the key technical specifications of this product.

PRODUCT: %s

SEARCH CONTEXT:
%s

Return ONLY a flat JSON object mapping specification names to string values, e.g.
{"display": "6.1 inch OLED", "storage": "256 GB"}. Use "N/A" for unknown values.`, q.FullName(), searchContext)

	var raw map[string]interface{}
	if err := g.completeJSON(ctx, prompt, 800, 0.1, &raw); err != nil {
		return nil, err
	}

	specs := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			specs[k] = "N/A"
		case string:
			if strings.TrimSpace(t) == "" || t == "null" {
				specs[k] = "N/A"
			} else {
				specs[k] = t
			}
		case []interface{}:
			parts := make([]string, 0, len(t))
			for _, p := range t {
				parts = append(parts, fmt.Sprint(p))
			}
			specs[k] = strings.Join(parts, ", ")
		default:
			specs[k] = fmt.Sprint(t)
		}
	}
	return specs, nil
}

// GenerateProsCons summarises strengths and weaknesses from whatever is already known.
func (g *OpenAIGenerator) GenerateProsCons(ctx context.Context, q models.ProductQuery, specs map[string]string, rating *models.RatingCandidate, price *models.PriceCandidate) (*models.ProsCons, error) {
	specsJSON, _ := json.MarshalIndent(specs, "", "  ")
	reviews := "none"
	if rating != nil {
		reviews = fmt.Sprintf("%.1f/5 from %s", rating.Rating, rating.Source)
		if len(rating.ExpertPros) > 0 || len(rating.ExpertCons) > 0 {
			reviews += fmt.Sprintf("; reviewer pros: %s; reviewer cons: %s",
				strings.Join(rating.ExpertPros, "; "), strings.Join(rating.ExpertCons, "; "))
		}
	}
	priceText := "unknown"
	if price != nil {
		priceText = price.Display()
	}

	prompt := fmt.Sprintf(`List the pros and cons of this product for a buyer.

PRODUCT: %s
PRICE: %s
RATING: %s
SPECS:
%s

Return ONLY JSON: {"pros": ["..."], "cons": ["..."], "recommendation": "one sentence"}.
Give at most 4 pros and 4 cons.`, q.FullName(), priceText, reviews, specsJSON)

	var out models.ProsCons
	if err := g.completeJSON(ctx, prompt, 400, 0.3, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type priceEstimate struct {
	Price    *float64 `json:"price"`
	Currency string   `json:"currency"`
	Note     string   `json:"note"`
}

// EstimatePrice asks the model for a typical retail price in region. It returns nil
// when the model declines to estimate.
func (g *OpenAIGenerator) EstimatePrice(ctx context.Context, q models.ProductQuery, region models.Region) (*models.PriceCandidate, error) {
	prompt := fmt.Sprintf(`Estimate a typical retail price for this product in %s.

PRODUCT: %s

Return ONLY JSON: {"price": 339.0, "currency": "%s", "note": "short basis for the estimate"}
Use the local currency %s. If you cannot estimate, set price to null.`,
		region.Name, q.FullName(), region.Currency, region.Currency)

	var est priceEstimate
	if err := g.completeJSON(ctx, prompt, 100, 0.3, &est); err != nil {
		return nil, err
	}
	if est.Price == nil {
		return nil, nil
	}

	cur := models.Currency(strings.ToUpper(strings.TrimSpace(est.Currency)))
	if cur == "" {
		cur = region.Currency
	}
	out, err := models.NewPriceCandidate(decimal.NewFromFloat(*est.Price), cur, "Estimated", "")
	if err != nil {
		return nil, err
	}
	out.Estimated = true
	out.Confidence = EstimateConfidence
	out.Method = models.MethodLLMEstimate
	out.Note = est.Note
	out.RetrievedAt = g.now().UTC()
	return out, nil
}

func (g *OpenAIGenerator) completeJSON(ctx context.Context, prompt string, maxTokens int, temperature float32, dest interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a product data assistant. Answer with JSON only."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: openai: %v", models.ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%w: openai returned no choices", models.ErrUnavailable)
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), dest); err != nil {
		return fmt.Errorf("%w: openai response: %v", models.ErrParseFailure, err)
	}

	g.logger.Debug().
		Dur("took", time.Since(start)).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("completion")
	return nil
}

// stripCodeFence removes a surrounding ```json fence some models add anyway.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
