// Package parser holds the pure text-to-value normalizers for ad records.
package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/zemeslab/sslv-plots/models"
)

// CollectionDate formats the wall-clock date stamped on every record
// produced by a run. It is the collection time, not the ad's posting date.
func CollectionDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ValidateRecord ensures the extractor captured the one mandatory field.
func ValidateRecord(rec *models.AdRecord) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(rec.Link) == "" {
		return fmt.Errorf("record missing link")
	}
	return nil
}

// NormalizeRecord derives the numeric fields from the raw price and area
// texts in place. Unparseable text leaves the numeric fields nil.
func NormalizeRecord(rec *models.AdRecord) {
	if rec == nil {
		return
	}
	rec.PriceEUR = ParsePriceEUR(rec.RawPrice)
	rec.PriceEURPerM2 = ParsePricePerM2(rec.RawPrice)
	rec.AreaQuantity, rec.AreaUnit = ParseArea(rec.RawArea)
}
