package matching

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinMatchScore is the word overlap below which a listing is irrelevant.
const DefaultMinMatchScore = 0.4

var highValueKeywords = map[string]struct{}{
	"iphone": {}, "galaxy": {}, "pixel": {}, "samsung": {}, "oneplus": {},
	"huawei": {}, "xiaomi": {}, "macbook": {}, "ipad": {}, "laptop": {},
	"playstation": {}, "xbox": {}, "nintendo": {},
}

const tokenEdgePunct = `.,;:!?()[]{}"'`

func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	tokens := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, tokenEdgePunct); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokenize(s) {
		set[t] = struct{}{}
	}
	return set
}

// WordOverlapScore is the fraction of distinct query tokens that also occur as
// tokens of the title.
func WordOverlapScore(query, title string) float64 {
	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 {
		return 0
	}
	titleTokens := tokenSet(title)

	found := 0
	for t := range queryTokens {
		if _, ok := titleTokens[t]; ok {
			found++
		}
	}
	return float64(found) / float64(len(queryTokens))
}

// IsHighValueQuery reports whether the query names a flagship electronics line.
func IsHighValueQuery(query string) bool {
	for _, t := range tokenize(query) {
		if _, ok := highValueKeywords[t]; ok {
			return true
		}
	}
	return false
}

// StrictTitleMatch requires every query token longer than two characters to be a
// whole word of the title.
func StrictTitleMatch(query, title string) bool {
	titleTokens := tokenSet(title)
	for _, t := range tokenize(query) {
		if utf8.RuneCountInString(t) <= 2 {
			continue
		}
		if _, ok := titleTokens[t]; !ok {
			return false
		}
	}
	return true
}

// Matcher applies the title gates shared by the price and rating resolvers.
type Matcher struct {
	MinMatchScore float64
}

func NewMatcher(minMatchScore float64) Matcher {
	if minMatchScore <= 0 {
		minMatchScore = DefaultMinMatchScore
	}
	return Matcher{MinMatchScore: minMatchScore}
}

// Accept runs the accessory, strict-title and overlap gates in that order and
// returns the overlap score of a title that passes all three.
func (m Matcher) Accept(query, title string) (float64, bool) {
	if IsAccessory(title) {
		return 0, false
	}
	if IsHighValueQuery(query) && !StrictTitleMatch(query, title) {
		return 0, false
	}
	score := WordOverlapScore(query, title)
	if score < m.MinMatchScore {
		return score, false
	}
	return score, true
}
