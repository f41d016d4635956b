package resolver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"price-resolution-api/internal/models"
	"price-resolution-api/pkg/utils"
)

var ErrNoStructuredReview = fmt.Errorf("%w: no structured review rating", models.ErrParseFailure)

// StructuredReview is a rating read from schema.org markup, already on a 5-point scale.
type StructuredReview struct {
	Rating      float64
	ReviewCount *int
	Pros        []string
	Cons        []string
	// Review or AggregateRating
	Type string
}

// ParseStructuredReview reads JSON-LD blocks from an HTML page. An editor's Review
// rating wins over an AggregateRating of user scores. Reviews listed under a
// product's review key are shopper reviews and count only when an organization
// wrote them.
func ParseStructuredReview(page []byte) (*StructuredReview, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrParseFailure, err)
	}

	var review, aggregate *StructuredReview
	var pros, cons []string

	for _, block := range jsonLDBlocks(doc) {
		var data interface{}
		if err := json.Unmarshal([]byte(block), &data); err != nil {
			continue
		}
		walkJSONLD(data, "", func(obj map[string]interface{}, key string) {
			switch {
			case hasType(obj, "Review"):
				if !isEditorial(obj, key) {
					return
				}
				if p := collectNotes(obj["positiveNotes"]); len(p) > 0 && pros == nil {
					pros = p
				}
				if c := collectNotes(obj["negativeNotes"]); len(c) > 0 && cons == nil {
					cons = c
				}
				if review != nil {
					return
				}
				if rating, ok := obj["reviewRating"].(map[string]interface{}); ok {
					if v, ok := ratingFrom(rating); ok {
						review = &StructuredReview{Rating: v, Type: "Review"}
					}
				}
			// Nested aggregateRating objects often omit @type.
			case hasType(obj, "AggregateRating") || key == "aggregateRating":
				if aggregate != nil {
					return
				}
				if v, ok := ratingFrom(obj); ok {
					aggregate = &StructuredReview{Rating: v, ReviewCount: countFrom(obj), Type: "AggregateRating"}
				}
			}
		})
	}

	out := review
	if out == nil {
		out = aggregate
	}
	if out == nil {
		return nil, ErrNoStructuredReview
	}
	if out.ReviewCount == nil && aggregate != nil {
		out.ReviewCount = aggregate.ReviewCount
	}
	out.Pros, out.Cons = pros, cons
	return out, nil
}

func isEditorial(review map[string]interface{}, key string) bool {
	if key != "review" && key != "reviews" {
		return true
	}
	return authoredByOrganization(review["author"])
}

func authoredByOrganization(author interface{}) bool {
	switch a := author.(type) {
	case map[string]interface{}:
		return hasType(a, "Organization") || hasType(a, "NewsMediaOrganization")
	case []interface{}:
		for _, item := range a {
			if authoredByOrganization(item) {
				return true
			}
		}
	}
	return false
}

func jsonLDBlocks(n *html.Node) []string {
	var blocks []string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && isJSONLD(n) {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			if s := strings.TrimSpace(sb.String()); s != "" {
				blocks = append(blocks, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return blocks
}

func isJSONLD(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key == "type" && strings.EqualFold(strings.TrimSpace(a.Val), "application/ld+json") {
			return true
		}
	}
	return false
}

// walkJSONLD calls fn for every nested object with the key it was found under,
// @graph members included. Array members inherit the array's key. Object keys
// are visited in sorted order so repeated parses agree.
func walkJSONLD(v interface{}, key string, fn func(obj map[string]interface{}, key string)) {
	switch t := v.(type) {
	case map[string]interface{}:
		fn(t, key)
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkJSONLD(t[k], k, fn)
		}
	case []interface{}:
		for _, child := range t {
			walkJSONLD(child, key, fn)
		}
	}
}

func hasType(obj map[string]interface{}, want string) bool {
	switch t := obj["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []interface{}:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

func ratingFrom(obj map[string]interface{}) (float64, bool) {
	value, ok := toFloat(obj["ratingValue"])
	if !ok {
		return 0, false
	}
	best, ok := toFloat(obj["bestRating"])
	if !ok {
		best = 5
	}
	return NormalizeRating(value, best)
}

// NormalizeRating rescales value to a 5-point scale given the scale's maximum and
// rejects results outside (0,5].
func NormalizeRating(value, best float64) (float64, bool) {
	switch {
	case best == 10:
		value /= 2
	case best > 0 && best != 5:
		value = value * 5 / best
	}
	value = math.Round(value*100) / 100
	if value <= 0 || value > 5 {
		return 0, false
	}
	return value, true
}

func countFrom(obj map[string]interface{}) *int {
	for _, key := range []string{"reviewCount", "ratingCount"} {
		switch v := obj[key].(type) {
		case float64:
			n := int(v)
			return &n
		case string:
			if n, ok := utils.ParseReviewCount(v); ok {
				return &n
			}
		}
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", ".")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		return utils.ParseRating(s)
	}
	return 0, false
}

func collectNotes(v interface{}) []string {
	var notes []string
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			notes = append(notes, s)
		}
	case []interface{}:
		for _, item := range t {
			notes = append(notes, collectNotes(item)...)
		}
	case map[string]interface{}:
		if items, ok := t["itemListElement"]; ok {
			return collectNotes(items)
		}
		if name, ok := t["name"].(string); ok && strings.TrimSpace(name) != "" {
			notes = append(notes, strings.TrimSpace(name))
		}
	}
	return notes
}
