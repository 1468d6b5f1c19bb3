// Package postgres implements the record store over a Postgres table
// using database/sql. Single-row statements give the same per-operation
// atomicity as the hosted-table backend.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/avasquez/leadqual/internal/domain"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("store/postgres")

const uniqueViolation = "23505"

const columns = `id, name, email, phone, address, country, goal, budget,
	webinar_join, webinar_leave, asked_q, referred, past_touchpoints,
	created_at, closed_at, engaged_mins, score, reasoning, status`

// Store is a Postgres-backed customer store.
type Store struct {
	db *sql.DB
}

// Connect opens a pooled connection and verifies it with a ping.
func Connect(connString string) (*Store, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a record; a unique violation on id maps to
// ErrDuplicateID.
func (s *Store) Create(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.Create")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", c.ID))

	query := `
		INSERT INTO customers (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := s.db.ExecContext(ctx, query, args(&c)...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, &domain.ErrDuplicateID{ID: c.ID}
		}
		return nil, &domain.ErrExternalService{Service: "postgres", Err: err}
	}
	out := c
	return &out, nil
}

// List returns every record in id order.
func (s *Store) List(ctx context.Context) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.List")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM customers ORDER BY id`)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres", Err: err}
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, &domain.ErrExternalService{Service: "postgres", Err: err}
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres", Err: err}
	}
	return out, nil
}

// Get fetches one record by id.
func (s *Store) Get(ctx context.Context, id int) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.Get")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", id))

	r := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM customers WHERE id = $1`, id)
	c, err := scan(r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres", Err: err}
	}
	return c, nil
}

// Replace overwrites the whole row at id.
func (s *Store) Replace(ctx context.Context, id int, c domain.Customer) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.Replace")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", id))

	c.ID = id
	query := `
		UPDATE customers SET
			name = $2, email = $3, phone = $4, address = $5, country = $6,
			goal = $7, budget = $8, webinar_join = $9, webinar_leave = $10,
			asked_q = $11, referred = $12, past_touchpoints = $13,
			created_at = $14, closed_at = $15, engaged_mins = $16,
			score = $17, reasoning = $18, status = $19
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, args(&c)...)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres", Err: err}
	}
	if affected == 0 {
		return nil, notFound(id)
	}
	out := c
	return &out, nil
}

// Delete removes the row at id and returns it.
func (s *Store) Delete(ctx context.Context, id int) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", id))

	r := s.db.QueryRowContext(ctx, `DELETE FROM customers WHERE id = $1 RETURNING `+columns, id)
	c, err := scan(r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres", Err: err}
	}
	return c, nil
}

func args(c *domain.Customer) []any {
	return []any{
		c.ID,
		c.Name,
		c.Email,
		c.Phone,
		c.Address,
		c.Country,
		c.Goal,
		c.Budget,
		nullTime(c.WebinarJoin),
		nullTime(c.WebinarLeave),
		c.AskedQuestion,
		c.Referred,
		c.PastTouchpoints,
		c.CreatedAt.Time,
		nullTime(c.ClosedAt),
		c.EngagedMins,
		c.Score,
		c.Reasoning,
		c.Status,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (*domain.Customer, error) {
	var (
		c            domain.Customer
		createdAt    time.Time
		webinarJoin  sql.NullTime
		webinarLeave sql.NullTime
		closedAt     sql.NullTime
		engagedMins  sql.NullInt64
		score        sql.NullInt64
	)

	err := r.Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Country,
		&c.Goal, &c.Budget, &webinarJoin, &webinarLeave,
		&c.AskedQuestion, &c.Referred, &c.PastTouchpoints,
		&createdAt, &closedAt, &engagedMins, &score,
		&c.Reasoning, &c.Status,
	)
	if err != nil {
		return nil, err
	}

	c.CreatedAt = domain.Time{Time: createdAt}
	c.WebinarJoin = fromNullTime(webinarJoin)
	c.WebinarLeave = fromNullTime(webinarLeave)
	c.ClosedAt = fromNullTime(closedAt)
	c.EngagedMins = fromNullInt(engagedMins)
	c.Score = fromNullInt(score)
	return &c, nil
}

func nullTime(t *domain.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Time
}

func fromNullTime(v sql.NullTime) *domain.Time {
	if !v.Valid {
		return nil
	}
	return &domain.Time{Time: v.Time}
}

func fromNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func notFound(id int) error {
	return &domain.ErrNotFound{Resource: "customer", ID: strconv.Itoa(id)}
}
