package memory

import (
	"context"
	"testing"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestResultCacheExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewResultCache().WithClock(clk.now)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("Get on empty cache reported a hit")
	}
	if err := c.Set(ctx, "k", domain.ScanResult{ID: "scan-1"}, 30*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clk.advance(29 * time.Second)
	got, ok := c.Get(ctx, "k")
	if !ok || got.ID != "scan-1" {
		t.Errorf("Get = (%q, %v), want (scan-1, true)", got.ID, ok)
	}

	clk.advance(time.Second)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Get returned an entry at its expiry instant")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after expired read, want 0", c.Len())
	}
}

func TestResultCacheReplace(t *testing.T) {
	c := NewResultCache()
	ctx := context.Background()
	_ = c.Set(ctx, "k", domain.ScanResult{ID: "a"}, time.Minute)
	_ = c.Set(ctx, "k", domain.ScanResult{ID: "b"}, time.Minute)
	if got, _ := c.Get(ctx, "k"); got.ID != "b" {
		t.Errorf("Get = %q, want b", got.ID)
	}
	_ = c.Set(ctx, "z", domain.ScanResult{ID: "z"}, 0)
	if _, ok := c.Get(ctx, "z"); ok {
		t.Error("zero ttl stored an entry")
	}
}

func TestResultCacheSweep(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewResultCache().WithClock(clk.now)
	ctx := context.Background()
	_ = c.Set(ctx, "short", domain.ScanResult{}, 10*time.Second)
	_ = c.Set(ctx, "long", domain.ScanResult{}, time.Minute)

	clk.advance(20 * time.Second)
	if n := c.Sweep(); n != 1 {
		t.Errorf("Sweep = %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}
