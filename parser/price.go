package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	priceEURRe   = regexp.MustCompile(`([\d\s]+)\s*€`)
	pricePerM2Re = regexp.MustCompile(`\(([\d.,\s]+)\s*€/m²\)`)
)

// ParsePriceEUR extracts the whole-euro amount from a raw price text such
// as "15 000 € (150,00 €/m²)". It returns nil when no amount is present.
func ParsePriceEUR(raw string) *float64 {
	m := priceEURRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	cleaned := strings.ReplaceAll(m[1], " ", "")
	return parseFloat(cleaned)
}

// ParsePricePerM2 extracts the parenthesized per-square-metre amount from a
// raw price text. The source uses a comma decimal separator.
func ParsePricePerM2(raw string) *float64 {
	m := pricePerM2Re.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	cleaned := strings.ReplaceAll(m[1], " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	return parseFloat(cleaned)
}

// parseFloat degrades to nil on any parse failure; malformed text is data,
// not an error.
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &value
}
