package resultcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/testingx"
)

func TestCache(t *testing.T) {
	info := func(address string) *model.IPInfo {
		return &model.IPInfo{Address: address, Country: "IT"}
	}

	t.Run("put then get returns the value", func(t *testing.T) {
		c := New(Config{MaxEntries: 10})
		c.Put("8.8.8.8", info("8.8.8.8"))
		got, found := c.Get("8.8.8.8")
		if !found {
			t.Fatal("expected to find the entry")
		}
		if diff := cmp.Diff(info("8.8.8.8"), got); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(Stats{Hits: 1}, c.Stats()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("get on a missing key is a miss", func(t *testing.T) {
		c := New(Config{MaxEntries: 10})
		if _, found := c.Get("8.8.8.8"); found {
			t.Fatal("expected a miss")
		}
		if diff := cmp.Diff(Stats{Misses: 1}, c.Stats()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("entries expire after the write TTL", func(t *testing.T) {
		clock := testingx.NewFakeClock(time.Time{})
		c := New(Config{
			MaxEntries:       10,
			ExpireAfterWrite: 10 * time.Minute,
			TimeNow:          clock.Now,
		})
		c.Put("8.8.8.8", info("8.8.8.8"))
		clock.Advance(10 * time.Minute)
		if _, found := c.Get("8.8.8.8"); !found {
			t.Fatal("expected the entry to exist at exactly the TTL")
		}
		clock.Advance(time.Second)
		if _, found := c.Get("8.8.8.8"); found {
			t.Fatal("expected the entry to be expired")
		}
		if c.Len() != 0 {
			t.Fatal("expected the expired entry to be removed")
		}
		if diff := cmp.Diff(Stats{Hits: 1, Misses: 1, Expirations: 1}, c.Stats()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("accessing an entry keeps it alive until the write TTL", func(t *testing.T) {
		clock := testingx.NewFakeClock(time.Time{})
		c := New(Config{
			MaxEntries:        10,
			ExpireAfterWrite:  10 * time.Minute,
			ExpireAfterAccess: 3 * time.Minute,
			TimeNow:           clock.Now,
		})
		c.Put("8.8.8.8", info("8.8.8.8"))
		for i := 0; i < 5; i++ {
			clock.Advance(2 * time.Minute)
			if _, found := c.Get("8.8.8.8"); !found {
				t.Fatal("expected the entry to be alive at iteration", i)
			}
		}
		clock.Advance(2 * time.Minute)
		if _, found := c.Get("8.8.8.8"); found {
			t.Fatal("expected the write TTL to fire")
		}
	})

	t.Run("Len does not count expired entries", func(t *testing.T) {
		clock := testingx.NewFakeClock(time.Time{})
		c := New(Config{
			MaxEntries:       10,
			ExpireAfterWrite: 10 * time.Minute,
			TimeNow:          clock.Now,
		})
		for _, address := range []string{"1.1.1.1", "8.8.8.8", "9.9.9.9"} {
			c.Put(address, info(address))
		}
		if c.Len() != 3 {
			t.Fatal("expected three entries")
		}
		clock.Advance(time.Hour)
		c.Put("4.4.4.4", info("4.4.4.4"))
		if c.Len() != 1 {
			t.Fatal("expected only the fresh entry")
		}
		if diff := cmp.Diff(Stats{Expirations: 3}, c.Stats()); diff != "" {
			t.Fatal(diff)
		}
		if _, found := c.Get("4.4.4.4"); !found {
			t.Fatal("expected the fresh entry to survive")
		}
	})

	t.Run("entries expire after the access TTL", func(t *testing.T) {
		clock := testingx.NewFakeClock(time.Time{})
		c := New(Config{
			MaxEntries:        10,
			ExpireAfterWrite:  10 * time.Minute,
			ExpireAfterAccess: 3 * time.Minute,
			TimeNow:           clock.Now,
		})
		c.Put("8.8.8.8", info("8.8.8.8"))
		clock.Advance(3*time.Minute + time.Second)
		if _, found := c.Get("8.8.8.8"); found {
			t.Fatal("expected the access TTL to fire")
		}
	})

	t.Run("when full we evict the least recently used entry", func(t *testing.T) {
		c := New(Config{MaxEntries: 2})
		c.Put("a", info("a"))
		c.Put("b", info("b"))
		if _, found := c.Get("a"); !found {
			t.Fatal("expected a")
		}
		c.Put("c", info("c"))
		if c.Len() != 2 {
			t.Fatal("unexpected len", c.Len())
		}
		if _, found := c.Get("b"); found {
			t.Fatal("expected b to be evicted")
		}
		if _, found := c.Get("a"); !found {
			t.Fatal("expected a to survive")
		}
		if _, found := c.Get("c"); !found {
			t.Fatal("expected c to survive")
		}
		if c.Stats().Evictions != 1 {
			t.Fatal("unexpected evictions", c.Stats().Evictions)
		}
	})

	t.Run("overwriting a key does not evict", func(t *testing.T) {
		c := New(Config{MaxEntries: 1})
		c.Put("a", info("a"))
		c.Put("a", &model.IPInfo{Address: "a", Country: "FR"})
		got, found := c.Get("a")
		if !found || got.Country != "FR" {
			t.Fatal("expected the updated value")
		}
		if c.Stats().Evictions != 0 {
			t.Fatal("unexpected evictions")
		}
	})

	t.Run("Invalidate and InvalidateAll", func(t *testing.T) {
		c := New(Config{MaxEntries: 10})
		c.Put("a", info("a"))
		c.Put("b", info("b"))
		c.Invalidate("a")
		if _, found := c.Get("a"); found {
			t.Fatal("expected a to be invalidated")
		}
		if c.Len() != 1 {
			t.Fatal("unexpected len", c.Len())
		}
		c.InvalidateAll()
		if c.Len() != 0 {
			t.Fatal("unexpected len", c.Len())
		}
		c.Put("c", info("c"))
		if _, found := c.Get("c"); !found {
			t.Fatal("expected the cache to be usable after InvalidateAll")
		}
	})

	t.Run("String", func(t *testing.T) {
		c := New(Config{MaxEntries: 10})
		c.Put("a", info("a"))
		c.Get("a")
		c.Get("a")
		c.Get("a")
		c.Get("b")
		expect := "hits=3 misses=1 hit_rate=0.7500 evictions=0 expirations=0"
		if diff := cmp.Diff(expect, c.String()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("concurrent access is safe", func(t *testing.T) {
		c := New(Config{MaxEntries: 16})
		wg := &sync.WaitGroup{}
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 200; j++ {
					key := fmt.Sprintf("10.0.%d.%d", i, j%32)
					c.Put(key, info(key))
					c.Get(key)
					if j%50 == 0 {
						c.Invalidate(key)
					}
				}
			}(i)
		}
		wg.Wait()
		if c.Len() > 16 {
			t.Fatal("unexpected len", c.Len())
		}
		stats := c.Stats()
		if stats.Hits+stats.Misses != 16*200 {
			t.Fatal("unexpected number of lookups", stats)
		}
	})
}

func TestStats(t *testing.T) {
	t.Run("HitRate without lookups", func(t *testing.T) {
		if rate := (Stats{}).HitRate(); rate != 0 {
			t.Fatal("unexpected hit rate", rate)
		}
	})
}
