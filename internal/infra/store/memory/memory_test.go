package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/avasquez/leadqual/internal/domain"
	"github.com/avasquez/leadqual/internal/infra/store/memory"
)

func customer(id int, name string) domain.Customer {
	return domain.Customer{ID: id, Name: name, Email: name + "@example.com"}
}

func TestCreateAndGet(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	created, err := s.Create(ctx, customer(1, "asha"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 1 {
		t.Errorf("expected id 1, got %d", created.ID)
	}

	got, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "asha" {
		t.Errorf("expected name asha, got %q", got.Name)
	}
}

func TestCreateDuplicate(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if _, err := s.Create(ctx, customer(1, "asha")); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := s.Create(ctx, customer(1, "imposter"))
	var dupErr *domain.ErrDuplicateID
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if dupErr.ID != 1 {
		t.Errorf("expected duplicate id 1, got %d", dupErr.ID)
	}
}

func TestGetMissing(t *testing.T) {
	s := memory.New()

	_, err := s.Get(context.Background(), 999)
	var nfErr *domain.ErrNotFound
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPreservesInsertionOrder(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	for _, id := range []int{3, 1, 2} {
		if _, err := s.Create(ctx, customer(id, "c")); err != nil {
			t.Fatalf("create %d: %v", id, err)
		}
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	for i, want := range []int{3, 1, 2} {
		if all[i].ID != want {
			t.Errorf("position %d: expected id %d, got %d", i, want, all[i].ID)
		}
	}
}

func TestReplaceForcesPathID(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if _, err := s.Create(ctx, customer(1, "asha")); err != nil {
		t.Fatal(err)
	}

	// Body claims a different id; the path wins.
	replacement := customer(42, "renamed")
	updated, err := s.Replace(ctx, 1, replacement)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if updated.ID != 1 {
		t.Errorf("expected id 1, got %d", updated.ID)
	}
	if updated.Name != "renamed" {
		t.Errorf("expected name renamed, got %q", updated.Name)
	}

	if _, err := s.Get(ctx, 42); err == nil {
		t.Error("expected no record under the body id")
	}
}

func TestReplaceMissing(t *testing.T) {
	s := memory.New()

	_, err := s.Replace(context.Background(), 5, customer(5, "ghost"))
	var nfErr *domain.ErrNotFound
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteReturnsRemoved(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if _, err := s.Create(ctx, customer(1, "asha")); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Delete(ctx, 1)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed.Name != "asha" {
		t.Errorf("expected removed record, got %q", removed.Name)
	}

	if _, err := s.Get(ctx, 1); err == nil {
		t.Error("expected record to be gone")
	}
	if _, err := s.Delete(ctx, 1); err == nil {
		t.Error("expected second delete to fail")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if _, err := s.Create(ctx, customer(id, "c")); err != nil {
				t.Errorf("create %d: %v", id, err)
			}
			if _, err := s.List(ctx); err != nil {
				t.Errorf("list: %v", err)
			}
		}(i)
	}
	wg.Wait()

	all, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 50 {
		t.Errorf("expected 50 records, got %d", len(all))
	}
}
