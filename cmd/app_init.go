package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/residence-finder/internal/annotation"
	"github.com/sells-group/residence-finder/internal/app"
	"github.com/sells-group/residence-finder/internal/config"
	"github.com/sells-group/residence-finder/internal/dataset"
	"github.com/sells-group/residence-finder/internal/enrich"
	"github.com/sells-group/residence-finder/internal/locate"
	"github.com/sells-group/residence-finder/internal/lookup"
	"github.com/sells-group/residence-finder/internal/metrics"
	"github.com/sells-group/residence-finder/internal/model"
	"github.com/sells-group/residence-finder/internal/store"
	anthropicpkg "github.com/sells-group/residence-finder/pkg/anthropic"
)

// appEnv holds everything the commands need. Callers should defer env.Close().
type appEnv struct {
	Store      store.Store
	Controller *app.Controller
	Metrics    *metrics.Collector
	GeoIP      *locate.GeoIPLocator // may be nil
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.GeoIP != nil {
		_ = e.GeoIP.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp validates cfg for mode, opens the store, loads the dataset and
// annotations, and builds the Controller. The enricher is only wired when an
// Anthropic key is configured.
func initApp(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	residences, err := dataset.Load(c.Dataset.Path)
	if err != nil {
		return nil, err
	}

	casa1, casa2, err := c.Reference.Coords()
	if err != nil {
		return nil, err
	}
	refs := enrich.References{Casa1: casa1, Casa2: casa2}

	m, err := metrics.NewCollector(nil)
	if err != nil {
		return nil, eris.Wrap(err, "init metrics")
	}

	st, err := store.Open(ctx, storeOptions(c.Store))
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	env := &appEnv{Store: st, Metrics: m}

	locator, geoip, err := initLocator(c)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.GeoIP = geoip

	var enricher enrich.Enricher
	if c.Anthropic.Key != "" {
		enricher = enrich.NewBreaker(initEnricher(c.Anthropic), enrich.BreakerConfig{
			Threshold: c.Anthropic.BreakerThreshold,
			Cooldown:  time.Duration(c.Anthropic.BreakerCooldownSecs) * time.Second,
			OnStateChange: func(_, to enrich.BreakerState) {
				m.SetBreakerOpen(to == enrich.BreakerOpen)
			},
		})
	} else {
		zap.L().Debug("RESIDENCES_ANTHROPIC_KEY not set, enrichment disabled")
		enricher = disabledEnricher{}
	}

	env.Controller = app.New(app.Deps{
		Dataset:         residences,
		Annotations:     annotation.Load(ctx, st),
		Summaries:       lookup.NewSummaryLookup(ctx, st, enricher, m),
		Distances:       lookup.NewDistanceLookup(enricher, refs, m),
		Locator:         locator,
		Metrics:         m,
		DefaultRadiusKM: c.Proximity.DefaultRadiusKM,
	})

	zap.L().Info("residences loaded",
		zap.Int("residences", len(residences)),
		zap.String("store", c.Store.Driver),
	)
	return env, nil
}

func storeOptions(s config.StoreConfig) store.Options {
	return store.Options{
		Driver:        s.Driver,
		Path:          s.Path,
		DatabaseURL:   s.DatabaseURL,
		RedisAddr:     s.RedisAddr,
		RedisPassword: s.RedisPassword,
		RedisDB:       s.RedisDB,
		RedisPrefix:   s.RedisPrefix,
	}
}

// initLocator builds the position chain: what the client reports, then the
// GeoIP database when configured, then the configured fallback point.
func initLocator(c *config.Config) (locate.Locator, *locate.GeoIPLocator, error) {
	chain := locate.Chain{locate.ClientLocator{}}

	var geoip *locate.GeoIPLocator
	if c.GeoIP.DBPath != "" {
		g, err := locate.NewGeoIPLocator(c.GeoIP.DBPath)
		if err != nil {
			return nil, nil, err
		}
		geoip = g
		chain = append(chain, g)
		zap.L().Info("geoip locator enabled", zap.String("db", c.GeoIP.DBPath))
	}

	if c.Proximity.Fallback != "" {
		coord, err := model.ParseCoord(c.Proximity.Fallback)
		if err != nil {
			if geoip != nil {
				_ = geoip.Close()
			}
			return nil, nil, eris.Wrap(err, "config: proximity.fallback")
		}
		chain = append(chain, locate.StaticLocator{Coord: coord})
	}
	return chain, geoip, nil
}

func initEnricher(a config.AnthropicConfig) *enrich.AnthropicEnricher {
	client := anthropicpkg.NewClient(a.Key)
	return enrich.NewAnthropicEnricher(client,
		enrich.WithModel(a.Model),
		enrich.WithMaxTokens(a.MaxTokens),
		enrich.WithRateLimit(a.RatePerSec),
		enrich.WithRetries(a.MaxAttempts, time.Duration(a.BackoffMilli)*time.Millisecond),
	)
}

// errEnrichmentDisabled is returned by disabledEnricher.
var errEnrichmentDisabled = eris.New("enrich: anthropic key not configured")

// disabledEnricher fails every call, so lookups report their usual failure message.
type disabledEnricher struct{}

func (disabledEnricher) Summarize(context.Context, model.Residence) (model.Summary, error) {
	return model.Summary{}, errEnrichmentDisabled
}

func (disabledEnricher) Distances(context.Context, model.Residence, enrich.References) (model.DistancePair, error) {
	return model.DistancePair{}, errEnrichmentDisabled
}
