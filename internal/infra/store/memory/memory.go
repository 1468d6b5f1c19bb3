// Package memory implements the record store as an ordered in-process
// slice guarded by an RWMutex. The duplicate check and the mutation run
// under one lock, so concurrent creates cannot race on the same id.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/avasquez/leadqual/internal/domain"
)

// Store is a thread-safe in-memory customer store.
type Store struct {
	mu        sync.RWMutex
	customers []domain.Customer
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

// Create appends a record after scanning the full collection for a
// duplicate id.
func (s *Store) Create(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.customers {
		if s.customers[i].ID == c.ID {
			return nil, &domain.ErrDuplicateID{ID: c.ID}
		}
	}
	s.customers = append(s.customers, c)
	out := c
	return &out, nil
}

// List returns a copy of every record in insertion order.
func (s *Store) List(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Customer, len(s.customers))
	copy(out, s.customers)
	return out, nil
}

// Get returns the record with the given id.
func (s *Store) Get(_ context.Context, id int) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.customers {
		if s.customers[i].ID == id {
			out := s.customers[i]
			return &out, nil
		}
	}
	return nil, notFound(id)
}

// Replace overwrites the record at id. The path id is authoritative.
func (s *Store) Replace(_ context.Context, id int, c domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = id
	for i := range s.customers {
		if s.customers[i].ID == id {
			s.customers[i] = c
			out := c
			return &out, nil
		}
	}
	return nil, notFound(id)
}

// Delete removes and returns the record at id.
func (s *Store) Delete(_ context.Context, id int) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.customers {
		if s.customers[i].ID == id {
			out := s.customers[i]
			s.customers = append(s.customers[:i], s.customers[i+1:]...)
			return &out, nil
		}
	}
	return nil, notFound(id)
}

func notFound(id int) error {
	return &domain.ErrNotFound{Resource: "customer", ID: strconv.Itoa(id)}
}
