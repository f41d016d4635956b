package scrapers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"price-resolution-api/internal/models"
)

func newSerperServer(t *testing.T, handler http.HandlerFunc) *SerperClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSerperClient(SerperConfig{APIKey: "test-key", BaseURL: srv.URL, Timeout: 2 * time.Second}, zerolog.Nop())
}

func TestSerperClient_SearchListings(t *testing.T) {
	client := newSerperServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shopping", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

		var req serperRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "iPhone 16 Pro Max", req.Query)
		assert.Equal(t, "bh", req.Country)

		_, _ = w.Write([]byte(`{"shopping":[
			{"title":"iPhone 16 Pro Max Case","price":"$15","source":"eBay","link":"https://ebay.com/itm/1"},
			{"title":"Apple iPhone 16 Pro Max 256GB","price":"$1199","source":"Amazon","link":"https://amazon.com/dp/1","rating":4.6,"reviews":"12,500"},
			{"title":" Apple iPhone 16 Pro Max ","price":469.5,"source":"Jarir","link":"https://jarir.com/p","rating":"4.4","ratingCount":870},
			{"title":"Apple iPhone 16 Pro Max","price":null,"source":"Noon","link":"https://noon.com/p","rating":9}
		]}`))
	})

	listings, err := client.SearchListings(context.Background(), "iPhone 16 Pro Max", "bh")
	require.NoError(t, err)
	require.Len(t, listings, 4)

	assert.Equal(t, "$15", listings[0].PriceText)
	assert.Nil(t, listings[0].Rating)
	assert.Nil(t, listings[0].ReviewCount)

	require.NotNil(t, listings[1].Rating)
	assert.Equal(t, 4.6, *listings[1].Rating)
	require.NotNil(t, listings[1].ReviewCount)
	assert.Equal(t, 12500, *listings[1].ReviewCount)

	assert.Equal(t, "Apple iPhone 16 Pro Max", listings[2].Title)
	assert.Equal(t, "469.5", listings[2].PriceText)
	assert.Equal(t, 870, *listings[2].ReviewCount)

	assert.Equal(t, "", listings[3].PriceText)
	assert.Nil(t, listings[3].Rating, "ratings above 5 are dropped")
}

func TestSerperClient_SearchWeb(t *testing.T) {
	client := newSerperServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		_, _ = w.Write([]byte(`{"organic":[{"title":"Sony WH-1000XM5 review","link":"https://www.rtings.com/x","snippet":"Our verdict"}]}`))
	})

	results, err := client.SearchWeb(context.Background(), "Sony WH-1000XM5 review", "us")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://www.rtings.com/x", results[0].Link)
	assert.Equal(t, "Our verdict", results[0].Snippet)
}

func TestSerperClient_Unavailable(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		client := newSerperServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusForbidden)
		})
		_, err := client.SearchListings(context.Background(), "x", "bh")
		assert.ErrorIs(t, err, models.ErrUnavailable)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("timeout", func(t *testing.T) {
		client := newSerperServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := client.SearchListings(ctx, "x", "bh")
		assert.ErrorIs(t, err, models.ErrUnavailable)
	})

	t.Run("bad json", func(t *testing.T) {
		client := newSerperServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"shopping":`))
		})
		_, err := client.SearchListings(context.Background(), "x", "bh")
		assert.ErrorIs(t, err, models.ErrUnavailable)
	})

	t.Run("no api key", func(t *testing.T) {
		client := NewSerperClient(SerperConfig{}, zerolog.Nop())
		assert.False(t, client.Configured())
		_, err := client.SearchWeb(context.Background(), "x", "bh")
		assert.ErrorIs(t, err, models.ErrUnavailable)
	})
}
