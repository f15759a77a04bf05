package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/residence-finder/internal/model"
	"github.com/sells-group/residence-finder/pkg/anthropic"
)

// Defaults for the Anthropic-backed enricher.
const (
	DefaultModel     = "claude-haiku-4-5-20251001"
	DefaultMaxTokens = 1024
)

// AnthropicEnricher implements Enricher with the Anthropic Messages API.
type AnthropicEnricher struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
	retry     retryPolicy
}

// Option configures an AnthropicEnricher.
type Option func(*AnthropicEnricher)

// WithModel sets the model id.
func WithModel(m string) Option {
	return func(e *AnthropicEnricher) {
		if m != "" {
			e.model = m
		}
	}
}

// WithMaxTokens sets the response token cap.
func WithMaxTokens(n int64) Option {
	return func(e *AnthropicEnricher) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables the cap.
func WithRateLimit(rps float64) Option {
	return func(e *AnthropicEnricher) {
		if rps <= 0 {
			e.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithRetries sets the total attempts per call, and the base backoff between them.
// Transient API failures and malformed responses are retried.
func WithRetries(attempts int, backoff time.Duration) Option {
	return func(e *AnthropicEnricher) {
		e.retry.MaxAttempts = attempts
		e.retry.InitialBackoff = backoff
	}
}

// NewAnthropicEnricher creates an enricher over client.
func NewAnthropicEnricher(client anthropic.Client, opts ...Option) *AnthropicEnricher {
	e := &AnthropicEnricher{
		client:    client,
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		limiter:   rate.NewLimiter(2, 2),
		retry: retryPolicy{
			MaxAttempts:    2,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
			ShouldRetry:    retryable,
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func retryable(err error) bool {
	return eris.Is(err, ErrSchema) || anthropic.IsTransient(err)
}

// Summarize asks for a review summary with service and opinion ratings. Ratings are
// returned as given; range enforcement belongs to the caller.
func (e *AnthropicEnricher) Summarize(ctx context.Context, r model.Residence) (model.Summary, error) {
	req := e.request(summarySchema, summaryPrompt(r))
	return retry(ctx, e.retry, "summary", func(ctx context.Context) (model.Summary, error) {
		text, err := e.call(ctx, "summary", req)
		if err != nil {
			return model.Summary{}, err
		}
		s, err := decodeSummary(text)
		if err != nil {
			return model.Summary{}, eris.Wrapf(err, "enrich: summary for %q", r.Name)
		}
		return s, nil
	})
}

// Distances asks for driving distance and time from r to both reference points.
func (e *AnthropicEnricher) Distances(ctx context.Context, r model.Residence, refs References) (model.DistancePair, error) {
	req := e.request(distancesSchema, distancesPrompt(r.Coords, refs))
	return retry(ctx, e.retry, "distances", func(ctx context.Context) (model.DistancePair, error) {
		text, err := e.call(ctx, "distances", req)
		if err != nil {
			return model.DistancePair{}, err
		}
		d, err := decodeDistances(text)
		if err != nil {
			return model.DistancePair{}, eris.Wrapf(err, "enrich: distances for %q", r.Name)
		}
		return d, nil
	})
}

func (e *AnthropicEnricher) request(schema responseSchema, prompt string) anthropic.MessageRequest {
	return anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System:    anthropic.CachedSystem(schema.systemPrompt(), "1h"),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		Prefill:   "{",
	}
}

// call performs one rate-limited request and returns the response text.
func (e *AnthropicEnricher) call(ctx context.Context, op string, req anthropic.MessageRequest) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "enrich: rate limit wait")
	}

	resp, err := e.client.CreateMessage(ctx, req)
	if err != nil {
		return "", eris.Wrapf(err, "enrich: %s request", op)
	}
	resp.Usage.LogUsage(e.model, op, CorrelationID(ctx))

	text := resp.Text()
	if text == "" {
		zap.L().Warn("enrich: empty response",
			zap.String("operation", op),
			zap.String("stop_reason", resp.StopReason),
		)
		return "", eris.Wrapf(ErrSchema, "%s: empty response", op)
	}
	return text, nil
}
