package filter

import "github.com/sells-group/residence-finder/internal/model"

// Proximity is an active proximity circle.
type Proximity struct {
	Center   model.Coord `json:"center"`
	RadiusKM float64     `json:"radius_km"`
}

// Config is the active filter configuration.
type Config struct {
	Cities        model.StringSet `json:"cities"`
	Prices        model.StringSet `json:"prices"`
	Proximity     *Proximity      `json:"proximity,omitempty"`
	FavoritesOnly bool            `json:"favorites_only"`
	Search        string          `json:"search"`
}

// DefaultConfig selects every known city and every price bucket, with no
// proximity circle, favorites-only off and an empty search.
func DefaultConfig(cities []string) Config {
	return Config{
		Cities: model.NewStringSet(cities...),
		Prices: AllPriceBuckets(),
	}
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	out.Cities = c.Cities.Clone()
	out.Prices = c.Prices.Clone()
	if c.Proximity != nil {
		p := *c.Proximity
		out.Proximity = &p
	}
	return out
}

// Equal reports whether two configurations select the same residences for the same inputs.
func (c Config) Equal(o Config) bool {
	if c.FavoritesOnly != o.FavoritesOnly || c.Search != o.Search {
		return false
	}
	if (c.Proximity == nil) != (o.Proximity == nil) {
		return false
	}
	if c.Proximity != nil && *c.Proximity != *o.Proximity {
		return false
	}
	return c.Cities.Equal(o.Cities) && c.Prices.Equal(o.Prices)
}
