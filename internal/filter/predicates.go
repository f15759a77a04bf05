// Package filter decides which residences are visible for a given filter configuration.
package filter

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/residence-finder/internal/fields"
	"github.com/sells-group/residence-finder/internal/geo"
	"github.com/sells-group/residence-finder/internal/model"
)

// Price bucket tags.
const (
	BucketUnder2000  = "<2000"
	Bucket2000To2500 = "2000-2500"
	Bucket2500To3000 = "2500-3000"
	BucketOver3000   = ">3000"
	BucketNA         = "na"
)

// PriceOption is a selectable price bucket with its display label.
type PriceOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// PriceOptions lists every bucket in display order.
var PriceOptions = []PriceOption{
	{Value: BucketUnder2000, Label: "Menos de 2.000€"},
	{Value: Bucket2000To2500, Label: "2.000€ - 2.500€"},
	{Value: Bucket2500To3000, Label: "2.500€ - 3.000€"},
	{Value: BucketOver3000, Label: "Más de 3.000€"},
	{Value: BucketNA, Label: "No disponible / Concertada"},
}

// AllPriceBuckets returns every bucket tag.
func AllPriceBuckets() model.StringSet {
	s := model.NewStringSet()
	for _, o := range PriceOptions {
		s[o.Value] = struct{}{}
	}
	return s
}

// bucketMatches reports whether price falls in one bucket. Ranges are inclusive at
// both ends, so 2000, 2500 and 3000 each satisfy two adjacent buckets.
func bucketMatches(bucket string, price int) bool {
	switch bucket {
	case BucketUnder2000:
		return price < 2000
	case Bucket2000To2500:
		return price >= 2000 && price <= 2500
	case Bucket2500To3000:
		return price >= 2500 && price <= 3000
	case BucketOver3000:
		return price > 3000
	default:
		return false
	}
}

// PriceMatches reports whether a parsed price satisfies any selected bucket.
// Nothing selected matches nothing. A nil price matches only when BucketNA is selected.
func PriceMatches(price *int, selected model.StringSet) bool {
	if selected.Len() == 0 {
		return false
	}
	if price == nil {
		return selected.Has(BucketNA)
	}
	for bucket := range selected {
		if bucketMatches(bucket, *price) {
			return true
		}
	}
	return false
}

// CityMatches reports whether city is selected. Nothing selected matches nothing.
func CityMatches(city string, selected model.StringSet) bool {
	if selected.Len() == 0 {
		return false
	}
	return selected.Has(city)
}

// NameMatches reports whether name contains term, ignoring case. An empty term matches everything.
func NameMatches(name, term string) bool {
	if term == "" {
		return true
	}
	fold := cases.Fold()
	return strings.Contains(fold.String(name), fold.String(term))
}

// Matches evaluates every active stage against r:
//  1. proximity circle, when set, replaces the city and price stages entirely;
//     otherwise city AND price must match
//  2. favorites-only requires membership in favorites
//  3. a non-empty search term must appear in the name, case-insensitively
func Matches(r model.Residence, cfg Config, favorites model.StringSet) bool {
	if cfg.Proximity != nil {
		if !geo.Within(r.Coords, cfg.Proximity.Center, cfg.Proximity.RadiusKM) {
			return false
		}
	} else {
		if !CityMatches(fields.ExtractCity(r.Address), cfg.Cities) {
			return false
		}
		if !PriceMatches(fields.ParsePrice(r.PriceRange), cfg.Prices) {
			return false
		}
	}

	if cfg.FavoritesOnly && !favorites.Has(r.Name) {
		return false
	}

	return NameMatches(r.Name, cfg.Search)
}
