// Package service holds the application services: record CRUD/export and
// the qualification orchestrator.
package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/avasquez/leadqual/internal/domain"
	"github.com/avasquez/leadqual/internal/infra/observability"
	"github.com/avasquez/leadqual/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

const customerCache = "customer"

// Customers implements the record CRUD, lead-time and export operations
// over the configured store, with a read cache in front of Get.
type Customers struct {
	store   port.CustomerStore
	cache   port.Cache[*domain.Customer]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewCustomers creates the customer service with all dependencies injected.
func NewCustomers(store port.CustomerStore, cache port.Cache[*domain.Customer], metrics *observability.Metrics, logger *zap.Logger) *Customers {
	return &Customers{
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// Create validates and stores a new record. Qualification is never
// auto-triggered on create; derived fields stay exactly as supplied.
func (s *Customers) Create(ctx context.Context, c domain.Customer) (*domain.CustomerWithLeadTime, error) {
	ctx, span := tracer.Start(ctx, "Customers.Create")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", c.ID))

	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = domain.Time{Time: time.Now().UTC()}
	}

	created, err := s.store.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKey(created.ID), created)

	s.logger.Info("customer created",
		zap.Int("customer_id", created.ID),
		zap.String("email", created.Email),
	)
	out := created.WithLeadTime()
	return &out, nil
}

// List returns every record with lead-time attached.
func (s *Customers) List(ctx context.Context) ([]domain.CustomerWithLeadTime, error) {
	ctx, span := tracer.Start(ctx, "Customers.List")
	defer span.End()

	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CustomerWithLeadTime, 0, len(records))
	for _, c := range records {
		out = append(out, c.WithLeadTime())
	}
	return out, nil
}

// Get returns one record with lead-time attached, served from the read
// cache when possible.
func (s *Customers) Get(ctx context.Context, id int) (*domain.CustomerWithLeadTime, error) {
	ctx, span := tracer.Start(ctx, "Customers.Get")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", id))

	if cached, ok := s.cache.Get(cacheKey(id)); ok {
		s.metrics.IncrCacheHit(customerCache)
		out := cached.WithLeadTime()
		return &out, nil
	}
	s.metrics.IncrCacheMiss(customerCache)

	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKey(id), c)
	out := c.WithLeadTime()
	return &out, nil
}

// Replace overwrites a record wholesale. The path id wins over the body's.
func (s *Customers) Replace(ctx context.Context, id int, c domain.Customer) (*domain.CustomerWithLeadTime, error) {
	ctx, span := tracer.Start(ctx, "Customers.Replace")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", id))

	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = domain.Time{Time: time.Now().UTC()}
	}

	updated, err := s.store.Replace(ctx, id, c)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKey(id), updated)

	out := updated.WithLeadTime()
	return &out, nil
}

// Delete removes a record and returns it with lead-time attached.
func (s *Customers) Delete(ctx context.Context, id int) (*domain.CustomerWithLeadTime, error) {
	ctx, span := tracer.Start(ctx, "Customers.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", id))

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Delete(cacheKey(id))

	s.logger.Info("customer deleted", zap.Int("customer_id", id))
	out := deleted.WithLeadTime()
	return &out, nil
}

// LeadTime reports the derived lead-time for one record.
func (s *Customers) LeadTime(ctx context.Context, id int) (*domain.LeadTimeReport, error) {
	got, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.LeadTimeReport{ID: id, LeadTimeDays: got.LeadTimeDays}, nil
}

// ExportCSV serializes every record into CSV-shaped rows. An empty store
// is reported as not-found, matching the dashboard contract.
func (s *Customers) ExportCSV(ctx context.Context) ([]domain.ExportRow, error) {
	ctx, span := tracer.Start(ctx, "Customers.ExportCSV")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("export", time.Since(start))
	}()

	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &domain.ErrNotFound{Resource: "customers"}
	}

	rows := make([]domain.ExportRow, 0, len(records))
	for i := range records {
		rows = append(rows, exportRow(&records[i]))
	}
	return rows, nil
}

func exportRow(c *domain.Customer) domain.ExportRow {
	return domain.ExportRow{
		ID:              c.ID,
		Name:            c.Name,
		Email:           c.Email,
		Phone:           deref(c.Phone),
		Address:         deref(c.Address),
		Country:         deref(c.Country),
		Goal:            deref(c.Goal),
		Budget:          deref(c.Budget),
		WebinarJoin:     isoOrEmpty(c.WebinarJoin),
		WebinarLeave:    isoOrEmpty(c.WebinarLeave),
		AskedQuestion:   c.AskedQuestion,
		Referred:        c.Referred,
		PastTouchpoints: c.PastTouchpoints,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
		ClosedAt:        isoOrEmpty(c.ClosedAt),
		EngagedMins:     intOrEmpty(c.EngagedMins),
		Score:           intOrEmpty(c.Score),
		Reasoning:       deref(c.Reasoning),
		Status:          deref(c.Status),
		LeadTimeDays:    intOrEmpty(c.LeadTimeDays()),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isoOrEmpty(t *domain.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func intOrEmpty(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func cacheKey(id int) string {
	return fmt.Sprintf("customer:%d", id)
}
