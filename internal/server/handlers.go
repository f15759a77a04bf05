package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/residence-finder/internal/app"
	"github.com/sells-group/residence-finder/internal/export"
	"github.com/sells-group/residence-finder/internal/filter"
	"github.com/sells-group/residence-finder/internal/geo"
	"github.com/sells-group/residence-finder/internal/locate"
	"github.com/sells-group/residence-finder/internal/lookup"
	"github.com/sells-group/residence-finder/internal/model"
)

// User-facing messages for failures that have no message of their own.
const (
	msgNotFound      = "Residencia no encontrada."
	msgBadRequest    = "Solicitud no válida."
	msgNoSelection   = "No hay ninguna residencia seleccionada."
	msgStale         = "La selección ha cambiado."
	msgPersistFailed = "No se pudo guardar el cambio."
	msgInternal      = "Ha ocurrido un error inesperado."
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps a controller error to a status and a user-facing message.
func writeFailure(w http.ResponseWriter, err error) {
	var (
		lerr   *lookup.Error
		locErr *locate.Error
	)
	switch {
	case errors.As(err, &lerr):
		writeError(w, http.StatusBadGateway, lerr.Message)
	case errors.As(err, &locErr):
		writeError(w, http.StatusUnprocessableEntity, locErr.Error())
	case eris.Is(err, app.ErrUnknownResidence):
		writeError(w, http.StatusNotFound, msgNotFound)
	case eris.Is(err, app.ErrUnknownCity),
		eris.Is(err, app.ErrUnknownBucket),
		eris.Is(err, app.ErrUnknownReference),
		eris.Is(err, app.ErrInvalidRadius):
		writeError(w, http.StatusBadRequest, msgBadRequest)
	case eris.Is(err, app.ErrNoSelection), eris.Is(err, lookup.ErrNotSelected):
		writeError(w, http.StatusConflict, msgNoSelection)
	case eris.Is(err, lookup.ErrStale):
		writeError(w, http.StatusConflict, msgStale)
	default:
		zap.L().Error("server: request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// decode reads a JSON body into dst. An empty body leaves dst untouched when allowEmpty is set.
func decode(r *http.Request, dst any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	return err
}

func param(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

type residencesResponse struct {
	Residences []model.Residence `json:"residences"`
	Count      int               `json:"count"`
	Favorites  model.StringSet   `json:"favorites"`
	Contacted  model.StringSet   `json:"contacted"`
	Route      *model.Route      `json:"route,omitempty"`
}

func (s *Server) handleVisible(w http.ResponseWriter, _ *http.Request) {
	visible := s.ctrl.Visible()
	ann := s.ctrl.Annotations()
	writeJSON(w, http.StatusOK, residencesResponse{
		Residences: visible,
		Count:      len(visible),
		Favorites:  ann.Favorites,
		Contacted:  ann.Contacted,
		Route:      s.ctrl.Route(),
	})
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, _ *http.Request) {
	ann := s.ctrl.Annotations()
	data, err := geo.FeatureCollection(s.ctrl.Visible(), ann.Favorites, ann.Contacted, s.ctrl.Route())
	if err != nil {
		writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="residencias.xlsx"`)
	if err := export.WriteXLSX(w, s.ctrl.Visible(), s.ctrl.Annotations(), s.ctrl.Summaries()); err != nil {
		zap.L().Error("server: export failed", zap.Error(err))
	}
}

func (s *Server) handleCities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"cities": s.ctrl.Cities()})
}

func (s *Server) handlePriceOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]filter.PriceOption{"price_options": filter.PriceOptions})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleFilter(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Filter())
}

// writeState answers a mutation with the resulting state, or the failure.
func (s *Server) writeState(w http.ResponseWriter, err error) {
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleToggleCity(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, s.ctrl.ToggleCity(param(r, "city")))
}

func (s *Server) handleSelectAllCities(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.SelectAllCities()
	s.writeState(w, nil)
}

func (s *Server) handleDeselectAllCities(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.DeselectAllCities()
	s.writeState(w, nil)
}

func (s *Server) handleTogglePrice(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, s.ctrl.TogglePrice(param(r, "bucket")))
}

func (s *Server) handleSelectAllPrices(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.SelectAllPrices()
	s.writeState(w, nil)
}

func (s *Server) handleDeselectAllPrices(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.DeselectAllPrices()
	s.writeState(w, nil)
}

func (s *Server) handleSetSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Search string `json:"search"`
	}
	if err := decode(r, &body, false); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	s.ctrl.SetSearch(body.Search)
	s.writeState(w, nil)
}

func (s *Server) handleToggleFavoritesOnly(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.ToggleFavoritesOnly()
	s.writeState(w, nil)
}

func (s *Server) handleSetRadius(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RadiusKM *float64 `json:"radius_km"`
	}
	if err := decode(r, &body, false); err != nil || body.RadiusKM == nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	_, err := s.ctrl.SetProximityRadius(*body.RadiusKM)
	s.writeState(w, err)
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	var body locate.Request
	if err := decode(r, &body, true); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	_, err := s.ctrl.UseGeolocation(r.Context(), s.locateRequest(r, body))
	s.writeState(w, err)
}

func (s *Server) handleClearProximity(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.ClearProximity()
	s.writeState(w, nil)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	_, err := s.ctrl.Select(param(r, "name"))
	s.writeState(w, err)
}

func (s *Server) handleClearSelection(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.ClearSelection()
	s.writeState(w, nil)
}

func (s *Server) handleDeselect(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, s.ctrl.Deselect(param(r, "name")))
}

func (s *Server) handleSetRoute(w http.ResponseWriter, r *http.Request) {
	_, err := s.ctrl.SetRoute(param(r, "ref"))
	s.writeState(w, err)
}

type residenceResponse struct {
	model.Residence
	Favorite  bool `json:"favorite"`
	Contacted bool `json:"contacted"`
}

func (s *Server) handleResidence(w http.ResponseWriter, r *http.Request) {
	res, err := s.ctrl.Residence(param(r, "name"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	ann := s.ctrl.Annotations()
	writeJSON(w, http.StatusOK, residenceResponse{
		Residence: res,
		Favorite:  ann.Favorites.Has(res.Name),
		Contacted: ann.Contacted.Has(res.Name),
	})
}

// writeAnnotation answers an annotation write. A persistence failure after the
// change was applied in memory still reports the failure.
func writeAnnotation(w http.ResponseWriter, err error, body map[string]any) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, body)
	case eris.Is(err, app.ErrUnknownResidence):
		writeFailure(w, err)
	default:
		zap.L().Error("server: annotation not persisted", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgPersistFailed)
	}
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	fav, err := s.ctrl.ToggleFavorite(r.Context(), name)
	writeAnnotation(w, err, map[string]any{"name": name, "favorite": fav})
}

func (s *Server) handleToggleContacted(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	contacted, err := s.ctrl.ToggleContacted(r.Context(), name)
	writeAnnotation(w, err, map[string]any{"name": name, "contacted": contacted})
}

func (s *Server) handleSetNote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decode(r, &body, false); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	name := param(r, "name")
	err := s.ctrl.SetNote(r.Context(), name, body.Text)
	writeAnnotation(w, err, map[string]any{"name": name, "note": s.ctrl.Annotations().Notes[name]})
}

type entryResponse[V any] struct {
	Name  string       `json:"name"`
	State lookup.State `json:"state"`
	Value *V           `json:"value,omitempty"`
	Error string       `json:"error,omitempty"`
}

func newEntryResponse[V any](name string, e lookup.Entry[V]) entryResponse[V] {
	out := entryResponse[V]{Name: name, State: e.State}
	if e.State == lookup.StateReady {
		v := e.Value
		out.Value = &v
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return out
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	e, err := s.ctrl.Summary(name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEntryResponse(name, e))
}

func (s *Server) lookupContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.opts.LookupTimeout)
}

func (s *Server) handleFetchSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.lookupContext(r)
	defer cancel()

	name := param(r, "name")
	sum, err := s.ctrl.FetchSummary(ctx, name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEntryResponse(name, lookup.Entry[model.Summary]{State: lookup.StateReady, Value: sum}))
}

func (s *Server) handleGetDistances(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	selected, e := s.ctrl.Distances()
	if selected != name {
		writeJSON(w, http.StatusOK, newEntryResponse(name, lookup.Entry[model.DistancePair]{}))
		return
	}
	writeJSON(w, http.StatusOK, newEntryResponse(name, e))
}

func (s *Server) handleFetchDistances(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.lookupContext(r)
	defer cancel()

	name := param(r, "name")
	pair, err := s.ctrl.FetchDistances(ctx, name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEntryResponse(name, lookup.Entry[model.DistancePair]{State: lookup.StateReady, Value: pair}))
}
