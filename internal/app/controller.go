// Package app holds the Controller, the single owner of the filter configuration,
// selection, route and geolocation state. Every mutation goes through its methods.
package app

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/residence-finder/internal/annotation"
	"github.com/sells-group/residence-finder/internal/fields"
	"github.com/sells-group/residence-finder/internal/filter"
	"github.com/sells-group/residence-finder/internal/geo"
	"github.com/sells-group/residence-finder/internal/locate"
	"github.com/sells-group/residence-finder/internal/lookup"
	"github.com/sells-group/residence-finder/internal/metrics"
	"github.com/sells-group/residence-finder/internal/model"
)

// Radius slider bounds and default, in km.
const (
	MinRadiusKM     = 1.0
	MaxRadiusKM     = 50.0
	DefaultRadiusKM = 10.0
)

// Route reference names.
const (
	RefCasa1 = "casa1"
	RefCasa2 = "casa2"
)

var (
	ErrUnknownResidence = eris.New("app: unknown residence")
	ErrUnknownCity      = eris.New("app: unknown city")
	ErrUnknownBucket    = eris.New("app: unknown price bucket")
	ErrUnknownReference = eris.New("app: unknown route reference")
	ErrNoSelection      = eris.New("app: no residence selected")
	ErrInvalidRadius    = eris.New("app: invalid radius")
)

// Deps are the collaborators a Controller is built from.
type Deps struct {
	Dataset     []model.Residence
	Annotations *annotation.Store
	Summaries   *lookup.SummaryLookup
	Distances   *lookup.DistanceLookup
	Locator     locate.Locator
	Metrics     *metrics.Collector
	// DefaultRadiusKM is the initial proximity radius. Zero means DefaultRadiusKM.
	DefaultRadiusKM float64
}

// State is a point-in-time view of everything the rendering surface needs besides
// the visible list.
type State struct {
	Filter           filter.Config `json:"filter"`
	RadiusKM         float64       `json:"radius_km"`
	Center           model.Coord   `json:"center"`
	Zoom             int           `json:"zoom"`
	Selected         string        `json:"selected,omitempty"`
	Route            *model.Route  `json:"route,omitempty"`
	GeolocationError string        `json:"geolocation_error,omitempty"`
}

// Controller owns the mutable application state.
type Controller struct {
	pipeline  *filter.Pipeline
	byName    map[string]model.Residence
	cities    []string
	ann       *annotation.Store
	summaries *lookup.SummaryLookup
	distances *lookup.DistanceLookup
	locator   locate.Locator
	metrics   *metrics.Collector

	mu       sync.RWMutex
	cfg      filter.Config
	radiusKM float64
	selected string
	route    *model.Route
	geoErr   string
}

// New builds a Controller with every city and price bucket selected.
func New(d Deps) *Controller {
	byName := make(map[string]model.Residence, len(d.Dataset))
	for _, r := range d.Dataset {
		byName[r.Name] = r
	}
	cities := fields.Cities(d.Dataset)
	radius := d.DefaultRadiusKM
	if radius == 0 {
		radius = DefaultRadiusKM
	}
	return &Controller{
		pipeline:  filter.NewPipeline(d.Dataset),
		byName:    byName,
		cities:    cities,
		ann:       d.Annotations,
		summaries: d.Summaries,
		distances: d.Distances,
		locator:   d.Locator,
		metrics:   d.Metrics,
		cfg:       filter.DefaultConfig(cities),
		radiusKM:  clampRadius(radius),
	}
}

func clampRadius(km float64) float64 {
	return max(MinRadiusKM, min(MaxRadiusKM, km))
}

// Residence returns the residence named name.
func (c *Controller) Residence(name string) (model.Residence, error) {
	r, ok := c.byName[name]
	if !ok {
		return model.Residence{}, eris.Wrapf(ErrUnknownResidence, "app: residence %q", name)
	}
	r.Notes = c.ann.Note(name)
	return r, nil
}

// Dataset returns every residence in dataset order.
func (c *Controller) Dataset() []model.Residence {
	return filter.Enrich(c.pipeline.Dataset(), c.ann.Snapshot().Notes)
}

// Annotations returns the current annotation snapshot.
func (c *Controller) Annotations() annotation.Snapshot {
	return c.ann.Snapshot()
}

// Visible returns the residences passing the current filter, in dataset order.
func (c *Controller) Visible() []model.Residence {
	c.mu.RLock()
	cfg := c.cfg.Clone()
	c.mu.RUnlock()

	out := c.pipeline.Visible(c.ann.Snapshot(), cfg)
	c.metrics.SetVisible(len(out))
	return out
}

// Cities returns every known city, sorted.
func (c *Controller) Cities() []string {
	return append([]string(nil), c.cities...)
}

// Filter returns a copy of the current filter configuration.
func (c *Controller) Filter() filter.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Clone()
}

// State returns the current view state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := State{
		Filter:           c.cfg.Clone(),
		RadiusKM:         c.radiusKM,
		Center:           geo.DefaultCenter,
		Zoom:             c.zoomLocked(),
		Selected:         c.selected,
		GeolocationError: c.geoErr,
	}
	if c.cfg.Proximity != nil {
		s.Center = c.cfg.Proximity.Center
	}
	if c.route != nil {
		r := *c.route
		s.Route = &r
	}
	return s
}

// ToggleCity flips city's membership in the city selection.
func (c *Controller) ToggleCity(city string) error {
	if !c.knownCity(city) {
		return eris.Wrapf(ErrUnknownCity, "app: city %q", city)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Cities = c.cfg.Cities.Toggle(city)
	return nil
}

func (c *Controller) knownCity(city string) bool {
	for _, k := range c.cities {
		if k == city {
			return true
		}
	}
	return false
}

// SelectAllCities selects every known city.
func (c *Controller) SelectAllCities() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Cities = model.NewStringSet(c.cities...)
}

// DeselectAllCities empties the city selection, which hides every residence
// unless a proximity circle is active.
func (c *Controller) DeselectAllCities() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Cities = model.NewStringSet()
}

// TogglePrice flips bucket's membership in the price selection.
func (c *Controller) TogglePrice(bucket string) error {
	if !filter.AllPriceBuckets().Has(bucket) {
		return eris.Wrapf(ErrUnknownBucket, "app: bucket %q", bucket)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Prices = c.cfg.Prices.Toggle(bucket)
	return nil
}

// SelectAllPrices selects every price bucket.
func (c *Controller) SelectAllPrices() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Prices = filter.AllPriceBuckets()
}

// DeselectAllPrices empties the price selection.
func (c *Controller) DeselectAllPrices() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Prices = model.NewStringSet()
}

// SetSearch sets the name search term.
func (c *Controller) SetSearch(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Search = term
}

// ToggleFavoritesOnly flips the favorites-only flag and returns its new value.
func (c *Controller) ToggleFavoritesOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.FavoritesOnly = !c.cfg.FavoritesOnly
	return c.cfg.FavoritesOnly
}

// SetProximityRadius sets the radius, clamped to [MinRadiusKM, MaxRadiusKM], and
// applies it to the active circle if there is one. Returns the stored radius.
func (c *Controller) SetProximityRadius(km float64) (float64, error) {
	if math.IsNaN(km) {
		return 0, ErrInvalidRadius
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.radiusKM = clampRadius(km)
	if c.cfg.Proximity != nil {
		c.cfg.Proximity = &filter.Proximity{Center: c.cfg.Proximity.Center, RadiusKM: c.radiusKM}
	}
	return c.radiusKM, nil
}

// UseGeolocation resolves the user's position and centers the proximity circle on it.
// The previous geolocation error is cleared before locating. On failure the circle
// is left as it was and the categorized message is recorded. Concurrent calls are
// not cancelled; whichever resolves last wins.
func (c *Controller) UseGeolocation(ctx context.Context, req locate.Request) (model.Coord, error) {
	c.mu.Lock()
	c.geoErr = ""
	c.mu.Unlock()

	if c.locator == nil {
		err := locate.NewError(locate.Unsupported, nil)
		c.setGeoErr(err)
		return model.Coord{}, err
	}

	coord, err := c.locator.Locate(ctx, req)
	if err != nil {
		zap.L().Info("app: geolocation failed",
			zap.Stringer("category", locate.CategoryOf(err)),
			zap.Error(err),
		)
		c.setGeoErr(err)
		return model.Coord{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Proximity = &filter.Proximity{Center: coord, RadiusKM: c.radiusKM}
	c.geoErr = ""
	return coord, nil
}

func (c *Controller) setGeoErr(err error) {
	var lerr *locate.Error
	msg := locate.Unknown.Message()
	if errors.As(err, &lerr) {
		msg = lerr.Error()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.geoErr = msg
}

// ClearProximity removes the proximity circle and any geolocation error.
func (c *Controller) ClearProximity() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Proximity = nil
	c.geoErr = ""
}

// GeolocationError returns the last geolocation failure message, or "".
func (c *Controller) GeolocationError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.geoErr
}

// Zoom returns the map zoom level: framed to the circle while proximity is
// active, geo.DefaultZoom otherwise.
func (c *Controller) Zoom() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.zoomLocked()
}

func (c *Controller) zoomLocked() int {
	if c.cfg.Proximity == nil {
		return geo.DefaultZoom
	}
	return geo.ZoomForRadius(c.cfg.Proximity.RadiusKM)
}

// Select makes name the selected residence. Selecting a different residence
// drops the route and any distances of the previous one.
func (c *Controller) Select(name string) (model.Residence, error) {
	r, err := c.Residence(name)
	if err != nil {
		return model.Residence{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected != name {
		c.route = nil
	}
	c.selected = name
	c.distances.Select(name)
	return r, nil
}

// ClearSelection deselects the residence and clears the route and distances.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearSelectionLocked()
}

// Deselect clears the selection only if name is the selected residence.
func (c *Controller) Deselect(name string) error {
	if _, err := c.Residence(name); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected != name {
		return eris.Wrapf(ErrNoSelection, "app: %q is not selected", name)
	}
	c.clearSelectionLocked()
	return nil
}

// clearSelectionLocked keeps the selection and the distance lookup in step; c.mu must be held.
func (c *Controller) clearSelectionLocked() {
	c.selected = ""
	c.route = nil
	c.distances.Select("")
}

// Selected returns the selected residence name, or "".
func (c *Controller) Selected() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

// ToggleFavorite flips name's favorite mark and returns the new value. A storage
// failure is returned but the change is kept in memory.
func (c *Controller) ToggleFavorite(ctx context.Context, name string) (bool, error) {
	if _, ok := c.byName[name]; !ok {
		return false, eris.Wrapf(ErrUnknownResidence, "app: residence %q", name)
	}
	c.metrics.ObserveAnnotationWrite(string(annotation.KindFavorites))
	return c.ann.ToggleFavorite(ctx, name)
}

// ToggleContacted flips name's contacted mark and returns the new value.
func (c *Controller) ToggleContacted(ctx context.Context, name string) (bool, error) {
	if _, ok := c.byName[name]; !ok {
		return false, eris.Wrapf(ErrUnknownResidence, "app: residence %q", name)
	}
	c.metrics.ObserveAnnotationWrite(string(annotation.KindContacted))
	return c.ann.ToggleContacted(ctx, name)
}

// SetNote stores text as name's note; blank text removes it.
func (c *Controller) SetNote(ctx context.Context, name, text string) error {
	if _, ok := c.byName[name]; !ok {
		return eris.Wrapf(ErrUnknownResidence, "app: residence %q", name)
	}
	c.metrics.ObserveAnnotationWrite(string(annotation.KindNotes))
	return c.ann.SetNote(ctx, name, text)
}

// FetchSummary returns name's AI summary, calling out only when none is cached.
func (c *Controller) FetchSummary(ctx context.Context, name string) (model.Summary, error) {
	r, err := c.Residence(name)
	if err != nil {
		return model.Summary{}, err
	}
	return c.summaries.Fetch(ctx, r)
}

// Summary returns the cached state of name's summary without calling out.
func (c *Controller) Summary(name string) (lookup.Entry[model.Summary], error) {
	if _, ok := c.byName[name]; !ok {
		return lookup.Entry[model.Summary]{}, eris.Wrapf(ErrUnknownResidence, "app: residence %q", name)
	}
	return c.summaries.Get(name), nil
}

// InvalidateSummary drops name's cached summary so the next fetch calls out again.
func (c *Controller) InvalidateSummary(ctx context.Context, name string) error {
	if _, ok := c.byName[name]; !ok {
		return eris.Wrapf(ErrUnknownResidence, "app: residence %q", name)
	}
	return c.summaries.Invalidate(ctx, name)
}

// Summaries returns every cached summary.
func (c *Controller) Summaries() map[string]model.Summary {
	return c.summaries.All()
}

// FetchDistances returns driving distances from name to both reference homes.
// name must be the selected residence.
func (c *Controller) FetchDistances(ctx context.Context, name string) (model.DistancePair, error) {
	r, err := c.Residence(name)
	if err != nil {
		return model.DistancePair{}, err
	}
	return c.distances.Fetch(ctx, r)
}

// Distances returns the selected residence and the state of its distances.
func (c *Controller) Distances() (string, lookup.Entry[model.DistancePair]) {
	return c.distances.Current()
}

// SetRoute draws the route from the selected residence to the reference home ref
// (RefCasa1 or RefCasa2).
func (c *Controller) SetRoute(ref string) (model.Route, error) {
	refs := c.distances.References()
	var to model.Coord
	switch ref {
	case RefCasa1:
		to = refs.Casa1
	case RefCasa2:
		to = refs.Casa2
	default:
		return model.Route{}, eris.Wrapf(ErrUnknownReference, "app: reference %q", ref)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == "" {
		return model.Route{}, ErrNoSelection
	}
	route := model.Route{From: c.byName[c.selected].Coords, To: to}
	c.route = &route
	return route, nil
}

// Route returns the active route, or nil.
func (c *Controller) Route() *model.Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.route == nil {
		return nil
	}
	r := *c.route
	return &r
}
