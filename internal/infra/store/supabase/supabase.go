// Package supabase implements the record store over a Supabase hosted
// table via the PostgREST API. Responses are normalized into one typed row
// shape at this boundary; call sites never branch on raw response shapes.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/avasquez/leadqual/internal/domain"
	"github.com/avasquez/leadqual/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("store/supabase")

const table = "customers"

// Store wraps HTTP calls to the Supabase PostgREST API.
type Store struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// New creates a Supabase-backed store.
func New(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Store {
	return &Store{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// row maps the hosted table's columns. Nullable columns are pointers.
type row struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Phone           *string `json:"phone"`
	Address         *string `json:"address"`
	Country         *string `json:"country"`
	Goal            *string `json:"goal"`
	Budget          *string `json:"budget"`
	WebinarJoin     *string `json:"webinar_join"`
	WebinarLeave    *string `json:"webinar_leave"`
	AskedQuestion   bool    `json:"asked_q"`
	Referred        bool    `json:"referred"`
	PastTouchpoints int     `json:"past_touchpoints"`
	CreatedAt       *string `json:"created_at"`
	ClosedAt        *string `json:"closed_at"`
	EngagedMins     *int    `json:"engaged_mins"`
	Score           *int    `json:"score"`
	Reasoning       *string `json:"reasoning"`
	Status          *string `json:"status"`
}

// Create inserts a record. A unique-key conflict on id maps to
// ErrDuplicateID.
func (s *Store) Create(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Create")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", c.ID))

	body, err := json.Marshal(fromDomain(&c))
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase", Err: err}
	}

	rows, err := s.execute(ctx, http.MethodPost, table, body)
	if err != nil {
		if isConflict(err) {
			return nil, &domain.ErrDuplicateID{ID: c.ID}
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrExternalService{Service: "supabase", Err: errors.New("insert returned no representation")}
	}
	return toDomain(&rows[0]), nil
}

// List returns every record in id order.
func (s *Store) List(ctx context.Context) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.List")
	defer span.End()

	rows, err := s.execute(ctx, http.MethodGet, table+"?order=id.asc", nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Customer, 0, len(rows))
	for i := range rows {
		out = append(out, *toDomain(&rows[i]))
	}
	return out, nil
}

// Get fetches one record by id.
func (s *Store) Get(ctx context.Context, id int) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Get")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", id))

	path := fmt.Sprintf("%s?id=eq.%d&limit=1", table, id)
	rows, err := s.execute(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFound(id)
	}
	return toDomain(&rows[0]), nil
}

// Replace overwrites the whole row at id.
func (s *Store) Replace(ctx context.Context, id int, c domain.Customer) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Replace")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", id))

	c.ID = id
	body, err := json.Marshal(fromDomain(&c))
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase", Err: err}
	}

	path := fmt.Sprintf("%s?id=eq.%d", table, id)
	rows, err := s.execute(ctx, http.MethodPatch, path, body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFound(id)
	}
	return toDomain(&rows[0]), nil
}

// Delete removes the row at id and returns it.
func (s *Store) Delete(ctx context.Context, id int) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", id))

	path := fmt.Sprintf("%s?id=eq.%d", table, id)
	rows, err := s.execute(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFound(id)
	}
	return toDomain(&rows[0]), nil
}

// execute runs one PostgREST request behind the circuit breaker with
// retry, and decodes the response into typed rows.
func (s *Store) execute(ctx context.Context, method, path string, body []byte) ([]row, error) {
	var rows []row

	_, err := s.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, s.cfg, func() error {
			data, err := s.doRequest(ctx, method, path, body)
			if err != nil {
				return err
			}
			rows = nil
			if len(data) == 0 {
				return nil
			}
			if err := json.Unmarshal(data, &rows); err != nil {
				return fmt.Errorf("decode rows: %w", err)
			}
			return nil
		})
	})

	if err != nil {
		var conflict *conflictError
		if errors.As(err, &conflict) {
			return nil, err
		}
		return nil, &domain.ErrExternalService{Service: "supabase", Err: err}
	}
	return rows, nil
}

// conflictError marks a PostgREST 409 (unique violation) so it is not
// retried into a generic external-service error.
type conflictError struct {
	body string
}

func (e *conflictError) Error() string {
	return "supabase conflict: " + e.body
}

func isConflict(err error) bool {
	var c *conflictError
	return errors.As(err, &c)
}

// doRequest executes one authenticated request to Supabase PostgREST.
func (s *Store) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusConflict {
		return nil, &conflictError{body: string(data)}
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(data)),
		)
		return nil, fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, string(data))
	}

	s.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return data, nil
}

func fromDomain(c *domain.Customer) *row {
	return &row{
		ID:              c.ID,
		Name:            c.Name,
		Email:           c.Email,
		Phone:           c.Phone,
		Address:         c.Address,
		Country:         c.Country,
		Goal:            c.Goal,
		Budget:          c.Budget,
		WebinarJoin:     formatTime(c.WebinarJoin),
		WebinarLeave:    formatTime(c.WebinarLeave),
		AskedQuestion:   c.AskedQuestion,
		Referred:        c.Referred,
		PastTouchpoints: c.PastTouchpoints,
		CreatedAt:       formatTime(&c.CreatedAt),
		ClosedAt:        formatTime(c.ClosedAt),
		EngagedMins:     c.EngagedMins,
		Score:           c.Score,
		Reasoning:       c.Reasoning,
		Status:          c.Status,
	}
}

func toDomain(r *row) *domain.Customer {
	c := &domain.Customer{
		ID:              r.ID,
		Name:            r.Name,
		Email:           r.Email,
		Phone:           r.Phone,
		Address:         r.Address,
		Country:         r.Country,
		Goal:            r.Goal,
		Budget:          r.Budget,
		WebinarJoin:     parseTime(r.WebinarJoin),
		WebinarLeave:    parseTime(r.WebinarLeave),
		AskedQuestion:   r.AskedQuestion,
		Referred:        r.Referred,
		PastTouchpoints: r.PastTouchpoints,
		ClosedAt:        parseTime(r.ClosedAt),
		EngagedMins:     r.EngagedMins,
		Score:           r.Score,
		Reasoning:       r.Reasoning,
		Status:          r.Status,
	}
	if t := parseTime(r.CreatedAt); t != nil {
		c.CreatedAt = *t
	}
	return c
}

func formatTime(t *domain.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.Format("2006-01-02T15:04:05Z07:00")
	return &s
}

// parseTime is defensive: a column value that fails to parse is treated as
// absent rather than failing the whole row.
func parseTime(s *string) *domain.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := domain.ParseTime(*s)
	if err != nil {
		return nil
	}
	return &t
}

func notFound(id int) error {
	return &domain.ErrNotFound{Resource: "customer", ID: strconv.Itoa(id)}
}
