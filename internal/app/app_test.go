package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"price-resolution-api/internal/config"
	"price-resolution-api/internal/models"
)

func loadConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resolver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestBuild_MemoryCacheWithoutKeys(t *testing.T) {
	cfg := loadConfig(t, "cache:\n  type: memory\n")
	cfg.Search.APIKey = ""
	cfg.LLM.APIKey = ""

	a := Build(context.Background(), cfg, zerolog.Nop())
	t.Cleanup(func() { _ = a.Close() })

	require.NotNil(t, a.Service)
	assert.True(t, a.Cache.Available())
	assert.Equal(t, "memory", a.Cache.Stats(context.Background())["store"])

	got, err := a.Service.ResolvePrice(context.Background(), "Sony", "WH-1000XM5", "", "bahrain")
	require.NoError(t, err)
	assert.Nil(t, got, "no search key means no candidate, not an error")
}

func TestBuild_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := loadConfig(t, "cache:\n  type: redis\n")
	cfg.Cache.RedisURL = "redis://" + mr.Addr()

	a := Build(context.Background(), cfg, zerolog.Nop())
	t.Cleanup(func() { _ = a.Close() })

	assert.True(t, a.Cache.Available())
	assert.Equal(t, "redis", a.Cache.Stats(context.Background())["store"])
}

func TestBuild_UnreachableRedisDisablesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := loadConfig(t, "cache:\n  type: redis\n  dial_timeout: 200ms\n")
	cfg.Cache.RedisURL = "redis://" + addr

	a := Build(context.Background(), cfg, zerolog.Nop())
	t.Cleanup(func() { _ = a.Close() })

	assert.False(t, a.Cache.Available())
	assert.Equal(t, "unavailable", a.Cache.Stats(context.Background())["status"])

	_, err := a.Service.ResolvePrice(context.Background(), "Sony", "", "", "bahrain")
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestBuild_CacheDisabled(t *testing.T) {
	cfg := loadConfig(t, "cache:\n  type: none\n")

	a := Build(context.Background(), cfg, zerolog.Nop())
	assert.False(t, a.Cache.Available())
	assert.NoError(t, a.Close())
}

func TestBuild_StorefrontWithoutSearchKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div data-component-type="s-search-result">
			<h2><a href="/dp/B0DGHY"><span>Sony WH-1000XM5 Wireless Noise Cancelling Headphones</span></a></h2>
			<span class="a-price"><span class="a-offscreen">AED 1,199.00</span></span>
		</div></body></html>`))
	}))
	t.Cleanup(srv.Close)

	cfg := loadConfig(t, "cache:\n  type: none\nstorefront:\n  enabled: true\n")
	cfg.Search.APIKey = ""
	cfg.LLM.APIKey = ""
	cfg.Storefront.Hosts = map[string]string{"ae": srv.URL}

	a := Build(context.Background(), cfg, zerolog.Nop())
	t.Cleanup(func() { _ = a.Close() })

	got, err := a.Service.ResolvePrice(context.Background(), "Sony", "WH-1000XM5", "", "uae")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(1199)), got.Amount.String())
	assert.Equal(t, models.AED, got.Currency)
	assert.Equal(t, srv.URL+"/dp/B0DGHY", got.URL)

	// No storefront for bahrain and no search key.
	got, err = a.Service.ResolvePrice(context.Background(), "Sony", "WH-1000XM5", "", "bahrain")
	require.NoError(t, err)
	assert.Nil(t, got)
}
