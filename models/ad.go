// Package models defines data structures for the crawler.
package models

import "time"

// Missing is the sentinel stored when an ad page does not carry a field.
// It is data, not an error: downstream consumers filter on it explicitly.
const Missing = "NA"

// AdRecord is one plots-and-lands advertisement in tabular form.
//
// RawPrice and RawArea hold the advertisement text verbatim; the numeric
// fields are derived from them and stay nil when the text does not match
// the expected pattern. They are never zeroed on a failed parse.
type AdRecord struct {
	Link            string   `csv:"link" json:"link"`
	City            string   `csv:"city" json:"city"`
	Street          string   `csv:"street" json:"street"`
	Village         string   `csv:"village" json:"village"`
	RawArea         string   `csv:"raw_area" json:"raw_area"`
	RawPrice        string   `csv:"raw_price" json:"raw_price"`
	LandType        string   `csv:"land_type" json:"land_type"`
	CadastralNumber string   `csv:"cadastral_number" json:"cadastral_number"`
	PostedDate      string   `csv:"posted_date" json:"posted_date"`
	CollectionDate  string   `csv:"collection_date" json:"collection_date"`
	PriceEUR        *float64 `csv:"price_eur" json:"price_eur"`
	PriceEURPerM2   *float64 `csv:"price_eur_m2" json:"price_eur_m2"`
	AreaQuantity    *float64 `csv:"area_quantity" json:"area_quantity"`
	AreaUnit        string   `csv:"area_unit" json:"area_unit"`
}

// CrawlResult holds the overall outcome of one crawl run.
type CrawlResult struct {
	StartTime        time.Time
	EndTime          time.Time
	CategoryCount    int
	SellURLCount     int
	ListingPageCount int
	LinkCount        int
	RecordCount      int
	RequestCount     int
	ErrorCount       int
	RetryCount       int
	FailedURLs       []string
	ErrorsByType     map[string]int
}
