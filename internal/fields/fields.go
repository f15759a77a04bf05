// Package fields extracts the derived filter fields (city, price lower bound) from raw residence data.
package fields

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/residence-finder/internal/model"
)

// UnknownCity is returned when no city can be derived from an address.
const UnknownCity = "Desconocida"

// Price labels that carry no numeric information.
var unpricedLabels = map[string]bool{
	"ND":              true,
	"No especificado": true,
	"Concertada":      true,
}

var (
	postalCodePrefix  = regexp.MustCompile(`^\d{5}\s*`)
	digitRun          = regexp.MustCompile(`\d+`)
	thousandSeparator = regexp.MustCompile(`(\d)[.\x{00A0}\x{202F}](\d{3})\b`)
)

// ExtractCity returns the city part of a free-text address.
//
// The address is split on commas and the second-to-last segment is taken, trimmed,
// with a leading 5-digit postal code removed:
//
//	"Calle Mayor 3, 28801 Alcalá de Henares, Madrid" -> "Alcalá de Henares"
//
// Addresses with fewer than two segments yield UnknownCity.
func ExtractCity(address string) string {
	parts := strings.Split(address, ",")
	if len(parts) < 2 {
		return UnknownCity
	}
	city := strings.TrimSpace(parts[len(parts)-2])
	return postalCodePrefix.ReplaceAllString(city, "")
}

// ParsePrice returns the lower bound of a monthly price label, or nil when the
// label is empty, one of the unpriced sentinels, or contains no digits.
// Thousands separators between digits are ignored: "1.800€ - 2.200€" -> 1800.
func ParsePrice(label string) *int {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" || unpricedLabels[trimmed] {
		return nil
	}

	normalized := trimmed
	for {
		next := thousandSeparator.ReplaceAllString(normalized, "$1$2")
		if next == normalized {
			break
		}
		normalized = next
	}

	run := digitRun.FindString(normalized)
	if run == "" {
		return nil
	}
	n, err := strconv.Atoi(run)
	if err != nil {
		// Only reachable on overflow.
		return nil
	}
	return &n
}

// Cities returns the sorted distinct cities of residences, derived with ExtractCity.
func Cities(residences []model.Residence) []string {
	seen := make(map[string]bool, len(residences))
	var out []string
	for _, r := range residences {
		c := ExtractCity(r.Address)
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
