package resolver

import "price-resolution-api/internal/models"

func listing(title, price, source, link string) models.ListingRecord {
	return models.ListingRecord{Title: title, PriceText: price, Source: source, Link: link}
}

func rated(title, source, link string, rating float64, reviews int) models.ListingRecord {
	return models.ListingRecord{
		Title:       title,
		Source:      source,
		Link:        link,
		Rating:      &rating,
		ReviewCount: &reviews,
	}
}
