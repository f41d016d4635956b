package scrapers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"price-resolution-api/internal/models"
)

func TestReviewPageFetcher_FetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/review":
			assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><script type="application/ld+json">{"@type":"Review"}</script></html>`))
		case "/slow":
			time.Sleep(500 * time.Millisecond)
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewReviewPageFetcher(ReviewPageConfig{Timeout: 2 * time.Second}, zerolog.Nop())
	assert.Equal(t, "colly", f.Name())

	body, err := f.FetchPage(context.Background(), srv.URL+"/review")
	require.NoError(t, err)
	assert.Contains(t, string(body), "application/ld+json")

	// same page twice must not be rejected as already visited
	_, err = f.FetchPage(context.Background(), srv.URL+"/review")
	require.NoError(t, err)

	_, err = f.FetchPage(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, models.ErrUnavailable)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.FetchPage(ctx, srv.URL+"/slow")
	assert.ErrorIs(t, err, models.ErrUnavailable)
}

func TestReviewPageFetcher_AllowedDomains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	f := NewReviewPageFetcher(ReviewPageConfig{AllowedDomains: []string{"rtings.com"}}, zerolog.Nop())
	_, err := f.FetchPage(context.Background(), srv.URL)
	assert.ErrorIs(t, err, models.ErrUnavailable)
}
