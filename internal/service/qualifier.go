package service

import (
	"context"
	"time"

	"github.com/avasquez/leadqual/internal/domain"
	"github.com/avasquez/leadqual/internal/infra/observability"
	"github.com/avasquez/leadqual/internal/port"
	"github.com/avasquez/leadqual/internal/prompt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Qualifier runs the lead-qualification pipeline: recompute engagement,
// render the prompt, call the scorer, clamp and derive, persist, report.
// A record is re-scored from scratch on every run; there is no "already
// qualified" guard.
type Qualifier struct {
	store   port.CustomerStore
	scorer  port.Scorer
	cache   port.Cache[*domain.Customer]
	events  port.EventPublisher // nil when no broker is configured
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewQualifier creates the qualification orchestrator.
func NewQualifier(
	store port.CustomerStore,
	scorer port.Scorer,
	cache port.Cache[*domain.Customer],
	events port.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Qualifier {
	return &Qualifier{
		store:   store,
		scorer:  scorer,
		cache:   cache,
		events:  events,
		metrics: metrics,
		logger:  logger,
	}
}

// Qualify scores one record and persists the outcome. Any step failure
// aborts the whole operation; the stored record is never half-updated.
func (q *Qualifier) Qualify(ctx context.Context, id int) (*domain.CustomerWithLeadTime, error) {
	ctx, span := tracer.Start(ctx, "Qualifier.Qualify")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", id))

	start := time.Now()
	defer func() {
		q.metrics.RecordRequestDuration("qualify", time.Since(start))
	}()

	c, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Always recompute from the webinar timestamps; a stale value must
	// never leak into the prompt or the stored record.
	c.EngagedMins = domain.EngagedMinutes(c.WebinarJoin, c.WebinarLeave)

	result, err := q.scorer.Score(ctx, prompt.Build(c))
	if err != nil {
		q.metrics.IncrExternalError("scoring")
		q.metrics.IncrQualification("error")
		q.logger.Error("scoring call failed",
			zap.Int("customer_id", id),
			zap.Error(err),
		)
		return nil, err
	}
	q.metrics.RecordTokens(result.Usage.PromptTokens, result.Usage.CompletionTokens)

	score := 0
	if result.Score != nil {
		score = *result.Score
	}
	score = domain.ClampScore(score)
	status := domain.DeriveStatus(result.Status, score)

	c.Score = &score
	c.Status = &status
	reasoning := result.Reasoning
	c.Reasoning = &reasoning

	// The model's own engagement estimate overrides the local computation
	// when it supplies a numeric value.
	if result.EngagedMins != nil {
		c.EngagedMins = result.EngagedMins
	}

	updated, err := q.store.Replace(ctx, id, *c)
	if err != nil {
		q.metrics.IncrQualification("error")
		return nil, err
	}
	q.cache.Set(cacheKey(id), updated)
	q.metrics.IncrQualification(status)

	q.logger.Info("customer qualified",
		zap.Int("customer_id", id),
		zap.Int("score", score),
		zap.String("status", status),
	)

	q.publish(ctx, updated)

	out := updated.WithLeadTime()
	return &out, nil
}

// publish emits the qualification event. Best-effort: a broker failure is
// logged, never surfaced to the qualifying request.
func (q *Qualifier) publish(ctx context.Context, c *domain.Customer) {
	if q.events == nil {
		return
	}

	ev := domain.QualificationEvent{
		EventID:     uuid.New().String(),
		CustomerID:  c.ID,
		Status:      derefStr(c.Status),
		EngagedMins: c.EngagedMins,
		OccurredAt:  time.Now().UTC(),
	}
	if c.Score != nil {
		ev.Score = *c.Score
	}

	if err := q.events.PublishQualified(ctx, ev); err != nil {
		q.metrics.IncrExternalError("events")
		q.logger.Warn("failed to publish qualification event",
			zap.Int("customer_id", c.ID),
			zap.Error(err),
		)
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
