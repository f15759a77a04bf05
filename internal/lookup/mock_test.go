package lookup

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/sells-group/residence-finder/internal/enrich"
	"github.com/sells-group/residence-finder/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockEnricher struct {
	mock.Mock
}

func (m *mockEnricher) Summarize(ctx context.Context, r model.Residence) (model.Summary, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(model.Summary), args.Error(1)
}

func (m *mockEnricher) Distances(ctx context.Context, r model.Residence, refs enrich.References) (model.DistancePair, error) {
	args := m.Called(ctx, r, refs)
	return args.Get(0).(model.DistancePair), args.Error(1)
}

var _ enrich.Enricher = (*mockEnricher)(nil)
