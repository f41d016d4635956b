package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"price-resolution-api/internal/models"
)

func TestIsAccessory(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"iPhone 16 Pro Max Case", true},
		{"Tempered Glass Screen Protector for Galaxy S24", true},
		{"USB-C Charger 20W", true},
		{"Apple iPhone 16 Pro Max 256GB", false},
		{"Casetify Impact", false},
		{"Penguin Books Box Set", false},
		{"Logitech MX Master Mouse", true},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAccessory(tt.title))
		})
	}
}

func TestWordOverlapScore(t *testing.T) {
	assert.Equal(t, 1.0, WordOverlapScore("iPhone 16 Pro Max", "Apple iPhone 16 Pro Max 256GB"))
	assert.Equal(t, 0.5, WordOverlapScore("iPhone 16 Pro Max", "Case for iPhone 16"))
	assert.Equal(t, 1.0, WordOverlapScore("Sony WH-1000XM5", "Sony WH-1000XM5, Black"))
	assert.Equal(t, 0.0, WordOverlapScore("", "anything"))
	assert.Equal(t, 0.0, WordOverlapScore("kettle", "Toaster"))
}

func TestIsHighValueQuery(t *testing.T) {
	assert.True(t, IsHighValueQuery("iPhone 16 Pro Max"))
	assert.True(t, IsHighValueQuery("Dell XPS 13 laptop"))
	assert.False(t, IsHighValueQuery("Philips air fryer"))
}

func TestStrictTitleMatch(t *testing.T) {
	assert.True(t, StrictTitleMatch("iPhone 16 Pro Max", "Apple iPhone 16 Pro Max 256GB Titanium"))
	assert.False(t, StrictTitleMatch("iPhone 16 Pro Max", "Case for iPhone 16"))
	// two-character tokens such as "5g" are not required
	assert.True(t, StrictTitleMatch("Galaxy S24 Ultra 5G", "Samsung Galaxy S24 Ultra 512GB"))
	assert.False(t, StrictTitleMatch("iPhone 16 Pro", "iPhone 16 Professional"))
}

func TestMatcher_Accept(t *testing.T) {
	m := NewMatcher(0)
	assert.Equal(t, DefaultMinMatchScore, m.MinMatchScore)

	score, ok := m.Accept("iPhone 16 Pro Max", "Apple iPhone 16 Pro Max 256GB")
	assert.True(t, ok)
	assert.Equal(t, 1.0, score)

	_, ok = m.Accept("iPhone 16 Pro Max", "iPhone 16 Pro Max Case")
	assert.False(t, ok, "accessory")

	_, ok = m.Accept("iPhone 16 Pro Max", "Apple iPhone 16 Pro 128GB")
	assert.False(t, ok, "strict title")

	_, ok = m.Accept("philips air fryer xl", "Philips Kettle")
	assert.False(t, ok, "overlap below threshold")
}

func TestClassifyRetailer(t *testing.T) {
	tests := []struct {
		source string
		want   models.RetailerTier
	}{
		{"Amazon.com", models.TierTrusted},
		{"Sharaf DG", models.TierTrusted},
		{"B&H Photo-Video", models.TierReputable},
		{"Newegg.com - TechDeals", models.TierReputable},
		{"eBay - gadgetworld", models.TierMarketplace},
		{"AliExpress", models.TierMarketplace},
		{"Gulf Gadgets LLC", models.TierUnknown},
		{"", models.TierUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRetailer(tt.source))
		})
	}
}

func TestClassifyListing_FallsBackToLinkHost(t *testing.T) {
	assert.Equal(t, models.TierReputable, ClassifyListing("Store 42", "https://www.newegg.com/p/123"))
	assert.Equal(t, models.TierTrusted, ClassifyListing("Amazon", "https://www.ebay.com/itm/1"))
	assert.Equal(t, models.TierUnknown, ClassifyListing("Store 42", "not a url"))
	assert.Equal(t, models.TierUnknown, ClassifyListing("Store 42", ""))
}
