package cache

import (
	"sync"
	"testing"
	"time"
)

// clock is a manually advanced time source.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(ttl time.Duration, limit int) (*TTLCache[string, int], *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewWithLimit[string, int](ttl, limit)
	c.now = clk.now
	return c, clk
}

func TestNew(t *testing.T) {
	c := New[string, int](5 * time.Minute)
	if c.ttl != 5*time.Minute {
		t.Errorf("TTL mismatch: got %v, want %v", c.ttl, 5*time.Minute)
	}
	if c.limit != DefaultLimit {
		t.Errorf("limit = %d, want %d", c.limit, DefaultLimit)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	if NewWithLimit[string, int](time.Minute, 0).limit != 1 {
		t.Error("non-positive limit should be raised to 1")
	}
}

func TestSetAndGet(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)
	c.Set("key1", 42)

	value, ok := c.Get("key1")
	if !ok || value != 42 {
		t.Errorf("Get(key1) = %d, %v, want 42, true", value, ok)
	}
	if _, ok := c.Get("nonexistent"); ok {
		t.Error("Get returned ok=true for non-existent key")
	}
}

func TestEntriesExpireIndividually(t *testing.T) {
	c, clk := newTestCache(time.Minute, 10)
	c.Set("old", 1)
	clk.advance(40 * time.Second)
	c.Set("new", 2)
	clk.advance(30 * time.Second)

	if _, ok := c.Get("old"); ok {
		t.Error("old entry should have expired")
	}
	if v, ok := c.Get("new"); !ok || v != 2 {
		t.Errorf("Get(new) = %d, %v, want 2, true", v, ok)
	}

	if n := c.Prune(); n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() after Prune = %d, want 1", c.Len())
	}
}

func TestSetRestartsTTL(t *testing.T) {
	c, clk := newTestCache(time.Minute, 10)
	c.Set("k", 1)
	clk.advance(50 * time.Second)
	c.Set("k", 2)
	clk.advance(50 * time.Second)
	if v, ok := c.Get("k"); !ok || v != 2 {
		t.Errorf("Get(k) = %d, %v, want 2, true", v, ok)
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c, clk := newTestCache(0, 10)
	c.Set("k", 1)
	clk.advance(1000 * time.Hour)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry expired with zero TTL")
	}
}

func TestLimitEvictsOldest(t *testing.T) {
	c, clk := newTestCache(time.Hour, 2)
	c.Set("a", 1)
	clk.advance(time.Second)
	c.Set("b", 2)
	clk.advance(time.Second)
	c.Set("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry a should have been evicted")
	}
	for _, k := range []string{"b", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("entry %s missing", k)
		}
	}

	// Overwriting an existing key never evicts.
	c.Set("b", 20)
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestLimitPrefersExpired(t *testing.T) {
	c, clk := newTestCache(time.Minute, 2)
	c.Set("a", 1)
	clk.advance(30 * time.Second)
	c.Set("b", 2)
	clk.advance(45 * time.Second)
	c.Set("c", 3)

	if _, ok := c.Get("b"); !ok {
		t.Error("live entry b was evicted instead of expired a")
	}
}

func TestGetOrCompute(t *testing.T) {
	c, clk := newTestCache(time.Minute, 10)
	calls := 0
	fn := func() int { calls++; return 7 }

	for i := 0; i < 3; i++ {
		if v := c.GetOrCompute("k", fn); v != 7 {
			t.Errorf("GetOrCompute() = %d, want 7", v)
		}
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}

	clk.advance(2 * time.Minute)
	c.GetOrCompute("k", fn)
	if calls != 2 {
		t.Errorf("fn called %d times after expiry, want 2", calls)
	}
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)
	c.Set("k", 1)
	c.Invalidate()
	if c.Len() != 0 {
		t.Errorf("Len() after Invalidate = %d", c.Len())
	}
	if _, ok := c.Get("k"); ok {
		t.Error("Get after Invalidate returned ok=true")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int, int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(n*100+j, j)
				c.Get(n*100 + j)
				c.GetOrCompute(j, func() int { return j })
			}
		}(i)
	}
	wg.Wait()
	if c.Len() == 0 {
		t.Error("cache is empty after concurrent writes")
	}
}
