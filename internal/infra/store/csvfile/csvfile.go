// Package csvfile implements the record store over a flat CSV file keyed
// by record id. The whole collection is held in memory, loaded once at
// open, and the file is rewritten on each mutation via a temp file and an
// atomic rename.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/avasquez/leadqual/internal/domain"

	"go.uber.org/zap"
)

var header = []string{
	"id", "name", "email", "phone", "address", "country", "goal", "budget",
	"webinar_join", "webinar_leave", "asked_q", "referred", "past_touchpoints",
	"created_at", "closed_at", "engaged_mins", "score", "reasoning", "status",
}

// Store is a CSV-file-backed customer store.
type Store struct {
	mu        sync.Mutex
	path      string
	customers []domain.Customer
	logger    *zap.Logger
}

// Open loads the store from path. A missing file is an empty store; the
// file is created on the first mutation.
func Open(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Create appends a record after scanning the full collection for a
// duplicate id, then rewrites the file.
func (s *Store) Create(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.customers {
		if s.customers[i].ID == c.ID {
			return nil, &domain.ErrDuplicateID{ID: c.ID}
		}
	}
	s.customers = append(s.customers, c)
	if err := s.save(); err != nil {
		s.customers = s.customers[:len(s.customers)-1]
		return nil, err
	}
	out := c
	return &out, nil
}

// List returns a copy of every record.
func (s *Store) List(_ context.Context) ([]domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Customer, len(s.customers))
	copy(out, s.customers)
	return out, nil
}

// Get returns the record with the given id.
func (s *Store) Get(_ context.Context, id int) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.customers {
		if s.customers[i].ID == id {
			out := s.customers[i]
			return &out, nil
		}
	}
	return nil, notFound(id)
}

// Replace overwrites the record at id and rewrites the file.
func (s *Store) Replace(_ context.Context, id int, c domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = id
	for i := range s.customers {
		if s.customers[i].ID == id {
			prev := s.customers[i]
			s.customers[i] = c
			if err := s.save(); err != nil {
				s.customers[i] = prev
				return nil, err
			}
			out := c
			return &out, nil
		}
	}
	return nil, notFound(id)
}

// Delete removes and returns the record at id, then rewrites the file.
func (s *Store) Delete(_ context.Context, id int) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.customers {
		if s.customers[i].ID == id {
			out := s.customers[i]
			rest := append([]domain.Customer{}, s.customers[:i]...)
			rest = append(rest, s.customers[i+1:]...)
			prev := s.customers
			s.customers = rest
			if err := s.save(); err != nil {
				s.customers = prev
				return nil, err
			}
			return &out, nil
		}
	}
	return nil, notFound(id)
}

func (s *Store) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(rows) <= 1 {
		return nil
	}

	for _, row := range rows[1:] {
		c, err := fromRow(row)
		if err != nil {
			// A malformed row is skipped, not fatal; the file may have
			// been hand-edited.
			s.logger.Warn("csv store: skipping malformed row", zap.Error(err))
			continue
		}
		s.customers = append(s.customers, c)
	}
	return nil
}

// save rewrites the entire file via a temp file + rename.
func (s *Store) save() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".customers-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return err
	}
	for i := range s.customers {
		if err := w.Write(toRow(&s.customers[i])); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func toRow(c *domain.Customer) []string {
	return []string{
		strconv.Itoa(c.ID),
		c.Name,
		c.Email,
		strOrEmpty(c.Phone),
		strOrEmpty(c.Address),
		strOrEmpty(c.Country),
		strOrEmpty(c.Goal),
		strOrEmpty(c.Budget),
		timeOrEmpty(c.WebinarJoin),
		timeOrEmpty(c.WebinarLeave),
		strconv.FormatBool(c.AskedQuestion),
		strconv.FormatBool(c.Referred),
		strconv.Itoa(c.PastTouchpoints),
		c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		timeOrEmpty(c.ClosedAt),
		intOrEmpty(c.EngagedMins),
		intOrEmpty(c.Score),
		strOrEmpty(c.Reasoning),
		strOrEmpty(c.Status),
	}
}

func fromRow(row []string) (domain.Customer, error) {
	var c domain.Customer
	if len(row) != len(header) {
		return c, fmt.Errorf("expected %d columns, got %d", len(header), len(row))
	}

	id, err := strconv.Atoi(row[0])
	if err != nil {
		return c, fmt.Errorf("bad id %q: %w", row[0], err)
	}
	createdAt, err := domain.ParseTime(row[13])
	if err != nil {
		return c, fmt.Errorf("bad created_at: %w", err)
	}

	c.ID = id
	c.Name = row[1]
	c.Email = row[2]
	c.Phone = emptyToNil(row[3])
	c.Address = emptyToNil(row[4])
	c.Country = emptyToNil(row[5])
	c.Goal = emptyToNil(row[6])
	c.Budget = emptyToNil(row[7])
	c.WebinarJoin = parseTimeOrNil(row[8])
	c.WebinarLeave = parseTimeOrNil(row[9])
	c.AskedQuestion = row[10] == "true" || row[10] == "True"
	c.Referred = row[11] == "true" || row[11] == "True"
	c.PastTouchpoints, _ = strconv.Atoi(row[12])
	c.CreatedAt = createdAt
	c.ClosedAt = parseTimeOrNil(row[14])
	c.EngagedMins = parseIntOrNil(row[15])
	c.Score = parseIntOrNil(row[16])
	c.Reasoning = emptyToNil(row[17])
	c.Status = emptyToNil(row[18])
	return c, nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeOrEmpty(t *domain.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02T15:04:05Z07:00")
}

func intOrEmpty(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseTimeOrNil(s string) *domain.Time {
	if s == "" {
		return nil
	}
	t, err := domain.ParseTime(s)
	if err != nil {
		return nil
	}
	return &t
}

func parseIntOrNil(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func notFound(id int) error {
	return &domain.ErrNotFound{Resource: "customer", ID: strconv.Itoa(id)}
}
