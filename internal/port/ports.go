// Package port defines the interfaces between services and infrastructure.
package port

import (
	"context"

	"github.com/avasquez/leadqual/internal/domain"
)

// CustomerStore is the record store contract. All operations use
// whole-record replace semantics; there is no partial-field patch.
type CustomerStore interface {
	// Create stores a new record. Returns *domain.ErrDuplicateID when the
	// id is already live; the duplicate check scans the full collection.
	Create(ctx context.Context, c domain.Customer) (*domain.Customer, error)

	// List returns every live record in id order.
	List(ctx context.Context) ([]domain.Customer, error)

	// Get fetches one record. Returns *domain.ErrNotFound when missing.
	Get(ctx context.Context, id int) (*domain.Customer, error)

	// Replace overwrites the record at id with c. The path id is
	// authoritative; c.ID is forced to match. Returns *domain.ErrNotFound
	// when missing.
	Replace(ctx context.Context, id int, c domain.Customer) (*domain.Customer, error)

	// Delete removes a record and returns it. Returns *domain.ErrNotFound
	// when missing.
	Delete(ctx context.Context, id int) (*domain.Customer, error)
}

// Scorer sends a rendered prompt to the external completion service and
// returns the parsed verdict.
type Scorer interface {
	Score(ctx context.Context, prompt string) (*domain.ScoreResult, error)
}

// Cache abstracts the read cache used by the services.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// EventPublisher emits qualification events to interested consumers.
// Publishing is best-effort from the orchestrator's point of view.
type EventPublisher interface {
	PublishQualified(ctx context.Context, ev domain.QualificationEvent) error
}
