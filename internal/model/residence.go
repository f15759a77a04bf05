package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Coord is a [latitude, longitude] pair in decimal degrees.
type Coord [2]float64

// NewCoord builds a Coord from latitude and longitude.
func NewCoord(lat, lon float64) Coord { return Coord{lat, lon} }

// Lat returns the latitude.
func (c Coord) Lat() float64 { return c[0] }

// Lon returns the longitude.
func (c Coord) Lon() float64 { return c[1] }

// Valid reports whether the coordinate is within WGS84 bounds.
func (c Coord) Valid() bool {
	return c[0] >= -90 && c[0] <= 90 && c[1] >= -180 && c[1] <= 180
}

func (c Coord) String() string {
	return fmt.Sprintf("%.6f,%.6f", c[0], c[1])
}

// ParseCoord parses "lat,lon".
func ParseCoord(s string) (Coord, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Coord{}, fmt.Errorf("coord %q: want lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coord{}, fmt.Errorf("coord %q: latitude: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coord{}, fmt.Errorf("coord %q: longitude: %w", s, err)
	}
	c := Coord{lat, lon}
	if !c.Valid() {
		return Coord{}, fmt.Errorf("coord %q: out of range", s)
	}
	return c, nil
}

// Residence is a single elder-care residence from the static dataset.
// Name is the unique key used by every annotation and cache map.
type Residence struct {
	Name           string   `json:"name" yaml:"name"`
	ContactPersons []string `json:"contactPersons,omitempty" yaml:"contactPersons,omitempty"`
	ContactPhones  []string `json:"contactPhones,omitempty" yaml:"contactPhones,omitempty"`
	Address        string   `json:"address" yaml:"address"`
	PriceRange     string   `json:"priceRange" yaml:"priceRange"`
	Coords         Coord    `json:"coords" yaml:"coords"`
	Email          string   `json:"email,omitempty" yaml:"email,omitempty"`
	Website        string   `json:"website,omitempty" yaml:"website,omitempty"`

	// Notes is attached at read time from the annotation store; never part of the dataset.
	Notes string `json:"notes,omitempty" yaml:"-"`
}

// Summary is the AI-generated description and ratings of a residence.
// Services and Opinions are 1..5 once stored.
type Summary struct {
	Summary  string `json:"summary"`
	Services int    `json:"services"`
	Opinions int    `json:"opinions"`
}

// Clamp forces both ratings into [1,5].
func (s Summary) Clamp() Summary {
	s.Services = clampRating(s.Services)
	s.Opinions = clampRating(s.Opinions)
	return s
}

func clampRating(v int) int {
	return max(1, min(5, v))
}

// Distance is a driving estimate to one reference point, as free text ("12 km", "18 minutos").
type Distance struct {
	Distancia string `json:"distancia"`
	Tiempo    string `json:"tiempo"`
}

// DistancePair holds driving estimates to the two reference homes.
type DistancePair struct {
	Casa1 Distance `json:"casa1"`
	Casa2 Distance `json:"casa2"`
}

// Route is a straight segment drawn on the map between a residence and a reference point.
type Route struct {
	From Coord `json:"from"`
	To   Coord `json:"to"`
}
