package models

import (
	"sort"
	"strings"
)

type Currency string

const (
	BHD Currency = "BHD"
	SAR Currency = "SAR"
	AED Currency = "AED"
	KWD Currency = "KWD"
	QAR Currency = "QAR"
	OMR Currency = "OMR"
	USD Currency = "USD"
	GBP Currency = "GBP"
	EUR Currency = "EUR"
	INR Currency = "INR"
)

// Region is a shopping market: the search collaborator's country code and the
// currency prices are resolved in.
type Region struct {
	Name     string   `json:"name"`
	Code     string   `json:"code"`
	Currency Currency `json:"currency"`
}

const DefaultRegion = "bahrain"

var regions = map[string]Region{
	"bahrain":      {Name: "bahrain", Code: "bh", Currency: BHD},
	"saudi_arabia": {Name: "saudi_arabia", Code: "sa", Currency: SAR},
	"uae":          {Name: "uae", Code: "ae", Currency: AED},
	"kuwait":       {Name: "kuwait", Code: "kw", Currency: KWD},
	"qatar":        {Name: "qatar", Code: "qa", Currency: QAR},
	"oman":         {Name: "oman", Code: "om", Currency: OMR},
	"usa":          {Name: "usa", Code: "us", Currency: USD},
}

// LookupRegion accepts a region name ("saudi_arabia", "Saudi Arabia") or its
// country code ("sa"). An empty string resolves to DefaultRegion.
func LookupRegion(s string) (Region, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		key = DefaultRegion
	}
	key = strings.ReplaceAll(key, " ", "_")
	if r, ok := regions[key]; ok {
		return r, true
	}
	for _, r := range regions {
		if r.Code == key {
			return r, true
		}
	}
	return Region{}, false
}

// GCCRegions returns the Gulf markets sorted by name.
func GCCRegions() []Region {
	out := make([]Region, 0, len(regions))
	for _, r := range regions {
		if r.Code == "us" {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
