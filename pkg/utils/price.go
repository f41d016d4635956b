package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"price-resolution-api/internal/models"
)

var (
	currencyCodeRe = regexp.MustCompile(`[A-Z]{2,3}\s*`)
	currencySymRe  = regexp.MustCompile(`[$£€¥₹]`)
	firstNumberRe  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	reviewCountRe  = regexp.MustCompile(`\d+`)

	// "12 500", also with no-break and narrow no-break spaces.
	digitGroupsRe = regexp.MustCompile(`\b\d{1,3}(?:[ \x{00A0}\x{202F}]\d{3})+\b`)
)

var countSuffixes = map[string]float64{"k": 1e3, "m": 1e6}

// ParsePrice converts a display price ("BHD 339.000", "SAR 2,499", "$1,199.00")
// to a decimal. Currency codes, symbols and thousands separators are stripped;
// when the remainder is not a plain number the first numeric token is used.
// The second return value is false when nothing numeric could be recovered.
func ParsePrice(priceStr string) (decimal.Decimal, bool) {
	if strings.TrimSpace(priceStr) == "" {
		return decimal.Zero, false
	}

	cleanPrice := currencyCodeRe.ReplaceAllString(priceStr, "")
	cleanPrice = currencySymRe.ReplaceAllString(cleanPrice, "")
	cleanPrice = strings.ReplaceAll(cleanPrice, ",", "")
	cleanPrice = strings.TrimSpace(cleanPrice)

	if price, err := decimal.NewFromString(cleanPrice); err == nil {
		return price, true
	}

	match := firstNumberRe.FindString(cleanPrice)
	if match == "" {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

// ParseRating extracts a rating from strings like "4.5 out of 5 stars".
func ParseRating(ratingStr string) (float64, bool) {
	match := firstNumberRe.FindString(ratingStr)
	if match == "" {
		return 0, false
	}

	rating, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return rating, true
}

// ParseReviewCount accepts "12,500", "12 500", "8200+", "(1,024 reviews)", "3.4K"
// and "1.2M".
func ParseReviewCount(s string) (int, bool) {
	clean := strings.ToLower(strings.TrimSpace(s))
	clean = strings.NewReplacer(",", "", "+", "", "(", "", ")", "").Replace(clean)
	clean = digitGroupsRe.ReplaceAllStringFunc(clean, func(m string) string {
		return strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, m)
	})
	fields := strings.Fields(clean)
	if len(fields) == 0 {
		return 0, false
	}

	head := fields[0]
	if mult, ok := countSuffixes[head[len(head)-1:]]; ok {
		if n, err := strconv.ParseFloat(head[:len(head)-1], 64); err == nil {
			return int(math.Round(n * mult)), true
		}
	}

	match := reviewCountRe.FindString(clean)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}

type currencyPattern struct {
	re       *regexp.Regexp
	currency models.Currency
}

// Checked in order; ISO codes before local abbreviations, symbols last.
var currencyPatterns = []currencyPattern{
	{regexp.MustCompile(`\bBHD\b`), models.BHD},
	{regexp.MustCompile(`\bSAR\b`), models.SAR},
	{regexp.MustCompile(`\bAED\b`), models.AED},
	{regexp.MustCompile(`\bKWD\b`), models.KWD},
	{regexp.MustCompile(`\bQAR\b`), models.QAR},
	{regexp.MustCompile(`\bOMR\b`), models.OMR},
	{regexp.MustCompile(`\bUSD\b`), models.USD},
	{regexp.MustCompile(`\bGBP\b`), models.GBP},
	{regexp.MustCompile(`\bEUR\b`), models.EUR},
	{regexp.MustCompile(`\bINR\b`), models.INR},
	{regexp.MustCompile(`\bBD\b`), models.BHD},
	{regexp.MustCompile(`\bSR\b`), models.SAR},
	{regexp.MustCompile(`\b(DHS?|DIRHAMS?)\b`), models.AED},
	{regexp.MustCompile(`\bKD\b`), models.KWD},
	{regexp.MustCompile(`\bQR\b`), models.QAR},
	{regexp.MustCompile(`\bRO\b`), models.OMR},
	{regexp.MustCompile(`\bRS\.?`), models.INR},
	{regexp.MustCompile(`£`), models.GBP},
	{regexp.MustCompile(`€`), models.EUR},
	{regexp.MustCompile(`₹`), models.INR},
	{regexp.MustCompile(`\$`), models.USD},
}

// DetectCurrency returns the currency named in a display price, or fallback.
func DetectCurrency(priceStr string, fallback models.Currency) models.Currency {
	upper := strings.ToUpper(priceStr)
	for _, p := range currencyPatterns {
		if p.re.MatchString(upper) {
			return p.currency
		}
	}
	return fallback
}
