package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"price-resolution-api/internal/models"
)

type fakeResolver struct {
	calls   []string
	args    []string
	queries []models.ProductQuery
}

func (f *fakeResolver) ResolvePrice(_ context.Context, brand, name, variant, region string) (*models.PriceCandidate, error) {
	f.calls = append(f.calls, "price")
	f.args = []string{brand, name, variant, region}
	return models.NewPriceCandidate(decimal.NewFromInt(339), models.BHD, "Sharaf DG", "https://sharafdg.example/p")
}

func (f *fakeResolver) ResolveRating(_ context.Context, fullName string) (*models.RatingCandidate, error) {
	f.calls = append(f.calls, "rating")
	f.args = []string{fullName}
	return nil, nil
}

func (f *fakeResolver) Resolve(_ context.Context, q models.ProductQuery) (*models.ResolutionResult, error) {
	f.calls = append(f.calls, "resolve")
	return &models.ResolutionResult{Product: q, Freshness: models.FreshnessLive}, nil
}

func (f *fakeResolver) Compare(_ context.Context, products []models.ProductQuery, region string) ([]*models.ResolutionResult, error) {
	f.calls = append(f.calls, "compare")
	f.queries = products
	f.args = []string{region}
	return nil, nil
}

func (f *fakeResolver) ResolveRegional(_ context.Context, brand, name, variant string) (*models.RegionalComparison, error) {
	f.calls = append(f.calls, "regional")
	f.args = []string{brand, name, variant}
	return &models.RegionalComparison{Reference: models.BHD, CheapestRegion: "uae"}, nil
}

func execute(t *testing.T, f *fakeResolver, args ...string) (string, error) {
	t.Helper()
	released := false
	build := func(context.Context, *options, io.Writer) (Resolver, func(), error) {
		return f, func() { released = true }, nil
	}

	var out bytes.Buffer
	cmd := newRootCmd(build)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		assert.True(t, released, "resolver is released after the command")
	}
	return out.String(), err
}

func TestPriceCommand(t *testing.T) {
	f := &fakeResolver{}
	out, err := execute(t, f, "price", "--brand", "Philips", "--name", "Air Fryer XL", "--region", "uae")
	require.NoError(t, err)

	assert.Equal(t, []string{"Philips", "Air Fryer XL", "", "uae"}, f.args)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, "BHD 339.000", body["display"])
}

func TestPriceCommand_RequiresName(t *testing.T) {
	_, err := execute(t, &fakeResolver{}, "price", "--brand", "Philips")
	assert.Error(t, err)
}

func TestPriceCommand_DefaultRegion(t *testing.T) {
	f := &fakeResolver{}
	_, err := execute(t, f, "price", "--name", "Air Fryer XL")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRegion, f.args[3])
}

func TestRatingCommand(t *testing.T) {
	f := &fakeResolver{}
	out, err := execute(t, f, "rating", "Sony WH-1000XM5")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sony WH-1000XM5"}, f.args)
	assert.Contains(t, out, `"rating": null`)
}

func TestCompareCommand(t *testing.T) {
	f := &fakeResolver{}
	_, err := execute(t, f, "compare", "Philips Air Fryer XL", "Ninja Air Fryer Max", "--region", "kw")
	require.NoError(t, err)
	require.Len(t, f.queries, 2)
	assert.Equal(t, "Ninja Air Fryer Max", f.queries[1].Name)
	assert.Equal(t, []string{"kw"}, f.args)

	_, err = execute(t, f, "compare", "only one")
	assert.Error(t, err)
}

func TestRegionalCommand(t *testing.T) {
	f := &fakeResolver{}
	out, err := execute(t, f, "regional", "--brand", "Philips", "--name", "Air Fryer XL")
	require.NoError(t, err)
	assert.Equal(t, []string{"Philips", "Air Fryer XL", ""}, f.args)
	assert.Contains(t, out, `"cheapest_region": "uae"`)
}

func TestAllCommand(t *testing.T) {
	f := &fakeResolver{}
	out, err := execute(t, f, "all", "--name", "Air Fryer XL", "--region", "qa")
	require.NoError(t, err)
	assert.Equal(t, []string{"resolve"}, f.calls)
	assert.Contains(t, out, `"freshness": "live"`)
}

func TestBuildFailure(t *testing.T) {
	cmd := newRootCmd(func(context.Context, *options, io.Writer) (Resolver, func(), error) {
		return nil, nil, errors.New("bad config")
	})
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"rating", "x"})
	assert.EqualError(t, cmd.Execute(), "bad config")
}
