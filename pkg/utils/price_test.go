package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"price-resolution-api/internal/models"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"bahraini dinar with fils", "BHD 339.000", "339", true},
		{"saudi riyal thousands separator", "SAR 2,499", "2499", true},
		{"dollar symbol", "$1,199.00", "1199", true},
		{"code glued to amount", "AED4,199", "4199", true},
		{"trailing text", "Rs. 1,299 onwards", "1299", true},
		{"price range takes first", "from 45.50 to 60", "45.5", true},
		{"no digits", "Call for price", "0", false},
		{"empty", "   ", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestDetectCurrency(t *testing.T) {
	tests := []struct {
		input string
		want  models.Currency
	}{
		{"BHD 339.000", models.BHD},
		{"SAR 2,499", models.SAR},
		{"BD 12.500", models.BHD},
		{"2,999 Dhs", models.AED},
		{"KD 250", models.KWD},
		{"$1,199", models.USD},
		{"£899", models.GBP},
		{"€1.099", models.EUR},
		{"1,299", models.QAR},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectCurrency(tt.input, models.QAR))
		})
	}
}

func TestParseReviewCount(t *testing.T) {
	tests := []struct {
		input  string
		want   int
		wantOK bool
	}{
		{"12,500", 12500, true},
		{"8200+", 8200, true},
		{"(1,024 reviews)", 1024, true},
		{"3.4K", 3400, true},
		{"1.2M", 1200000, true},
		{"12 500", 12500, true},
		{"1 234 567 ratings", 1234567, true},
		{"12\u00a0500", 12500, true},
		{"2m", 2000000, true},
		{"", 0, false},
		{"( )", 0, false},
		{"none", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseReviewCount(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRating(t *testing.T) {
	got, ok := ParseRating("4.5 out of 5 stars")
	assert.True(t, ok)
	assert.Equal(t, 4.5, got)

	_, ok = ParseRating("no rating")
	assert.False(t, ok)
}
