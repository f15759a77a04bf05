// Package enrich fetches AI-generated information about residences: a short
// review summary with ratings, and driving distances to two reference homes.
package enrich

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/residence-finder/internal/model"
)

// ErrSchema is returned when a response is not a JSON object with the required fields.
var ErrSchema = eris.New("enrich: response does not match schema")

// References are the two fixed points driving distances are measured to.
type References struct {
	Casa1 model.Coord `json:"casa1"`
	Casa2 model.Coord `json:"casa2"`
}

// Enricher produces enrichment data for one residence per call.
type Enricher interface {
	Summarize(ctx context.Context, r model.Residence) (model.Summary, error)
	Distances(ctx context.Context, r model.Residence, refs References) (model.DistancePair, error)
}

type correlationKey struct{}

// WithCorrelationID attaches an id that is logged with every external call made under ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id attached by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
