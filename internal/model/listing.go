package model

import "time"

// RawListing is a single scrape of a marketplace listing, stored verbatim.
// Listings are append-only: re-scraping a business adds a new row rather
// than replacing the old one, so multiple captures per business coexist.
type RawListing struct {
	ID              string    `json:"id"`
	BusinessID      string    `json:"business_id"`
	Marketplace     string    `json:"marketplace"`
	ListingURL      string    `json:"listing_url"`
	ScrapeTimestamp time.Time `json:"scrape_timestamp"`
	RawHTML         string    `json:"raw_html"`
	RawText         string    `json:"raw_text"`
	ListingCategory string    `json:"listing_category,omitempty"`
	SellerCountry   string    `json:"seller_country,omitempty"`
	AskingPriceRaw  string    `json:"asking_price_raw,omitempty"`
	RevenueRaw      string    `json:"revenue_raw,omitempty"`
	ProfitRaw       string    `json:"profit_raw,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Metadata returns the listing metadata map that participates in content
// fingerprinting. The scrape timestamp is deliberately excluded: two scrapes
// of identical content must produce identical fingerprints so resubmission
// stays idempotent.
func (l *RawListing) Metadata() map[string]any {
	return map[string]any{
		"marketplace":      l.Marketplace,
		"listing_url":      l.ListingURL,
		"listing_category": l.ListingCategory,
		"seller_country":   l.SellerCountry,
		"asking_price_raw": l.AskingPriceRaw,
		"revenue_raw":      l.RevenueRaw,
		"profit_raw":       l.ProfitRaw,
	}
}
