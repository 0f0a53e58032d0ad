package parser

import (
	"regexp"
	"strings"
)

// Leading quantity with optional space-grouped thousands and a comma or dot
// decimal part, followed by whatever the site uses as a unit ("m²", "ha.").
var areaRe = regexp.MustCompile(`(\d+(?:\s\d{3})*(?:[.,]\d+)?)\s*(.*)`)

// ParseArea splits a raw area text like "2500 m²" into a numeric quantity
// and a unit string. The quantity is nil when the text carries no number;
// the unit is preserved verbatim (possibly empty) either way.
func ParseArea(raw string) (*float64, string) {
	m := areaRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, ""
	}
	cleaned := strings.ReplaceAll(m[1], " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	return parseFloat(cleaned), strings.TrimSpace(m[2])
}
