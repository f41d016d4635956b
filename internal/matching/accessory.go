package matching

import (
	"regexp"
	"strings"
)

var accessoryKeywords = []string{
	"case", "cover", "protector", "charger", "cable", "adapter", "holder",
	"stand", "strap", "sleeve", "pouch", "film", "tempered", "glass", "mount",
	"grip", "wallet", "skin", "bumper", "shell", "screen protector", "armband",
	"holster", "dock", "cradle", "earbuds", "headphone", "stylus", "pen",
	"keyboard", "mouse",
}

var accessoryRe = buildWordRegexp(accessoryKeywords)

func buildWordRegexp(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// IsAccessory reports whether a listing title names an accessory rather than the
// product itself. Keywords match whole words only, so "Casely" or "Penguin" pass.
func IsAccessory(title string) bool {
	return accessoryRe.MatchString(strings.ToLower(title))
}
