package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"price-resolution-api/internal/models"
)

func completionServer(t *testing.T, content string) (*httptest.Server, *[]openai.ChatCompletionRequest) {
	t.Helper()
	var requests []openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: openai.GPT4oMini,
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			}},
			Usage: openai.Usage{PromptTokens: 40, CompletionTokens: 20, TotalTokens: 60},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newGenerator(t *testing.T, baseURL string) *OpenAIGenerator {
	t.Helper()
	g, err := NewOpenAIGenerator(Config{APIKey: "test-key", BaseURL: baseURL, Timeout: 5 * time.Second}, zerolog.Nop())
	require.NoError(t, err)
	g.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return g
}

var pixel = models.ProductQuery{Brand: "Google", Name: "Pixel 9", Variant: "128GB"}

func TestNewOpenAIGenerator_RequiresKey(t *testing.T) {
	_, err := NewOpenAIGenerator(Config{}, zerolog.Nop())
	assert.ErrorIs(t, err, models.ErrUnavailable)
}

func TestEstimatePrice(t *testing.T) {
	srv, requests := completionServer(t, `{"price": 329.5, "currency": "BHD", "note": "launch price in Bahrain"}`)
	g := newGenerator(t, srv.URL)

	region, _ := models.LookupRegion("bahrain")
	got, err := g.EstimatePrice(context.Background(), pixel, region)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "329.5", got.Amount.String())
	assert.Equal(t, models.BHD, got.Currency)
	assert.True(t, got.Estimated)
	assert.Equal(t, EstimateConfidence, got.Confidence)
	assert.Equal(t, models.MethodLLMEstimate, got.Method)
	assert.Empty(t, got.URL)
	assert.Equal(t, "launch price in Bahrain", got.Note)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, openai.GPT4oMini, req.Model)
	assert.Contains(t, req.Messages[1].Content, "Google Pixel 9 128GB")
	assert.Contains(t, req.Messages[1].Content, "BHD")
}

func TestEstimatePrice_Declined(t *testing.T) {
	srv, _ := completionServer(t, `{"price": null, "currency": "BHD"}`)
	g := newGenerator(t, srv.URL)

	region, _ := models.LookupRegion("bh")
	got, err := g.EstimatePrice(context.Background(), pixel, region)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEstimatePrice_NonPositive(t *testing.T) {
	srv, _ := completionServer(t, `{"price": 0, "currency": "BHD"}`)
	g := newGenerator(t, srv.URL)

	region, _ := models.LookupRegion("bh")
	_, err := g.EstimatePrice(context.Background(), pixel, region)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestGenerateSpecs_FlattensValues(t *testing.T) {
	srv, requests := completionServer(t, "```json\n"+`{"display": "6.3 inch OLED", "storage": 128, "colors": ["Obsidian", "Porcelain"], "weight": null, "modem": ""}`+"\n```")
	g := newGenerator(t, srv.URL)

	specs, err := g.GenerateSpecs(context.Background(), pixel, []models.OrganicResult{
		{Title: "Pixel 9 specs", Link: "https://store.google.com/pixel_9", Snippet: "6.3-inch Actua display"},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"display": "6.3 inch OLED",
		"storage": "128",
		"colors":  "Obsidian, Porcelain",
		"weight":  "N/A",
		"modem":   "N/A",
	}, specs)
	assert.Contains(t, (*requests)[0].Messages[1].Content, "6.3-inch Actua display")
}

func TestGenerateProsCons(t *testing.T) {
	srv, requests := completionServer(t, `{"pros": ["Bright display", "Clean software"], "cons": ["Slow charging"], "recommendation": "Good value."}`)
	g := newGenerator(t, srv.URL)

	reviews := 812
	rating, err := models.NewRatingCandidate(4.5, &reviews, "gsmarena.com", "https://www.gsmarena.com/pixel_9-review.php", models.RatingTierExpert)
	require.NoError(t, err)
	rating.ExpertPros = []string{"Great camera"}

	got, err := g.GenerateProsCons(context.Background(), pixel, map[string]string{"display": "6.3 inch"}, rating, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bright display", "Clean software"}, got.Pros)
	assert.Equal(t, []string{"Slow charging"}, got.Cons)
	assert.Equal(t, "Good value.", got.Recommendation)

	prompt := (*requests)[0].Messages[1].Content
	assert.Contains(t, prompt, "4.5/5 from gsmarena.com")
	assert.Contains(t, prompt, "Great camera")
	assert.Contains(t, prompt, "PRICE: unknown")
}

func TestCompletion_BadJSON(t *testing.T) {
	srv, _ := completionServer(t, "I think it costs about 300 dinars")
	g := newGenerator(t, srv.URL)

	region, _ := models.LookupRegion("bh")
	_, err := g.EstimatePrice(context.Background(), pixel, region)
	assert.ErrorIs(t, err, models.ErrParseFailure)
}

func TestCompletion_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer srv.Close()
	g := newGenerator(t, srv.URL)

	_, err := g.GenerateSpecs(context.Background(), pixel, nil)
	assert.ErrorIs(t, err, models.ErrUnavailable)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, stripCodeFence("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, stripCodeFence("  {\"a\": 1} "))
}
