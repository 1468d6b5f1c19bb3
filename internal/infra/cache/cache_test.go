package cache_test

import (
	"testing"
	"time"

	"github.com/avasquez/leadqual/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("customer:1", "value1")
	val, ok := c.Get("customer:1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("customer:1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("customer:1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("customer:1", "value1")
	c.Delete("customer:1")

	_, ok := c.Get("customer:1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_OverwriteRefreshesValue(t *testing.T) {
	c := cache.New[int](5 * time.Minute)

	c.Set("customer:1", 1)
	c.Set("customer:1", 2)

	val, ok := c.Get("customer:1")
	if !ok || val != 2 {
		t.Fatalf("expected overwritten value 2, got %d (ok=%v)", val, ok)
	}
}
