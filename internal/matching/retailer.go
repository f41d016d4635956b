package matching

import (
	"net/url"
	"strings"

	"price-resolution-api/internal/models"
)

type tierTable struct {
	tier     models.RetailerTier
	keywords []string
}

// Checked in order; the first table with a substring hit wins.
var retailerTables = []tierTable{
	{models.TierTrusted, []string{
		"amazon", "apple", "samsung", "best buy", "bestbuy", "walmart", "target",
		"noon", "jarir", "extra", "lulu", "carrefour", "sharaf dg", "virgin megastore",
		"microsoft", "google store", "oneplus", "sony", "dell", "hp store", "lenovo",
	}},
	{models.TierReputable, []string{
		"newegg", "b&h", "bhphoto", "adorama", "costco", "ubuy", "micro center",
		"john lewis", "currys", "fnac",
	}},
	{models.TierMarketplace, []string{
		"ebay", "aliexpress", "alibaba", "temu", "wish", "dhgate", "banggood",
		"gearbest", "etsy", "mercari", "swappa", "backmarket", "back market",
		"refurbished",
	}},
}

// ClassifyRetailer maps a free-text seller name to its trust tier. Names matching
// no table get TierUnknown.
func ClassifyRetailer(source string) models.RetailerTier {
	name := strings.ToLower(strings.TrimSpace(source))
	if name == "" {
		return models.TierUnknown
	}
	for _, table := range retailerTables {
		for _, kw := range table.keywords {
			if strings.Contains(name, kw) {
				return table.tier
			}
		}
	}
	return models.TierUnknown
}

// ClassifyListing classifies by seller name and falls back to the link's host
// when the name is unknown.
func ClassifyListing(source, link string) models.RetailerTier {
	if tier := ClassifyRetailer(source); tier != models.TierUnknown {
		return tier
	}
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return models.TierUnknown
	}
	return ClassifyRetailer(u.Hostname())
}
