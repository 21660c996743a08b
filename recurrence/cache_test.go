package recurrence

import (
	"sync"
	"testing"
	"time"
)

var (
	cacheStart = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	cacheTimes = []time.Time{
		time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
	}
)

func dailyRule(count int) Rule {
	return Rule{Frequency: Daily, Interval: 1, EndRepeatMode: EndByCount, Count: count}
}

func TestRecurrenceCache_BasicOperations(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: 1 * time.Minute,
	})
	defer cache.Close()

	rule := dailyRule(2)

	// Cache miss first
	result, found := cache.Get(cacheStart, rule, nil, 10)
	if found {
		t.Error("Expected cache miss, got hit")
	}
	if result != nil {
		t.Error("Expected nil result on cache miss")
	}

	cache.Set(cacheStart, rule, nil, 10, cacheTimes)

	result, found = cache.Get(cacheStart, rule, nil, 10)
	if !found {
		t.Fatal("Expected cache hit, got miss")
	}
	if len(result) != 2 || !result[1].Equal(cacheTimes[1]) {
		t.Errorf("Expected cached occurrences, got %v", result)
	}
}

func TestRecurrenceCache_TTLExpiration(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             100 * time.Millisecond, // Very short TTL for testing
		MaxEntries:      100,
		CleanupInterval: 50 * time.Millisecond,
	})
	defer cache.Close()

	rule := dailyRule(2)
	cache.Set(cacheStart, rule, nil, 10, cacheTimes)

	if _, found := cache.Get(cacheStart, rule, nil, 10); !found {
		t.Error("Expected cache hit immediately after set")
	}

	time.Sleep(150 * time.Millisecond)

	if _, found := cache.Get(cacheStart, rule, nil, 10); found {
		t.Error("Expected cache miss after TTL expiration")
	}
}

func TestRecurrenceCache_DifferentKeys(t *testing.T) {
	cache := NewRecurrenceCache(DefaultCacheConfig)
	defer cache.Close()

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	base := dailyRule(5)
	cache.Set(cacheStart, base, nil, 10, cacheTimes[:1])

	variants := []struct {
		name  string
		start time.Time
		rule  Rule
		loc   *time.Location
		limit int
	}{
		{"different start", cacheStart.Add(time.Minute), base, nil, 10},
		{"different rule", cacheStart, Rule{Frequency: Weekly, Interval: 1, EndRepeatMode: EndByCount, Count: 5}, nil, 10},
		{"different byday", cacheStart, Rule{Frequency: Weekly, Interval: 1, ByDay: "MO", EndRepeatMode: EndByCount, Count: 5}, nil, 10},
		{"different location", cacheStart, base, berlin, 10},
		{"different limit", cacheStart, base, nil, 3},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			if _, found := cache.Get(v.start, v.rule, v.loc, v.limit); found {
				t.Errorf("variant %q should not share the base key", v.name)
			}
		})
	}

	// an unused companion field does not change the key
	noisy := base
	noisy.Until = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, found := cache.Get(cacheStart, noisy, nil, 10); !found {
		t.Error("normalized rules should share a key")
	}
}

func TestRecurrenceCache_Stats(t *testing.T) {
	cache := NewRecurrenceCache(DefaultCacheConfig)
	defer cache.Close()

	stats := cache.Stats()
	if stats.TotalEntries != 0 {
		t.Errorf("Expected 0 initial entries, got %d", stats.TotalEntries)
	}

	for i := 0; i < 5; i++ {
		cache.Set(cacheStart, dailyRule(i+1), nil, 10, cacheTimes)
	}

	stats = cache.Stats()
	if stats.TotalEntries != 5 {
		t.Errorf("Expected 5 entries, got %d", stats.TotalEntries)
	}
	if stats.ActiveEntries != 5 {
		t.Errorf("Expected 5 active entries, got %d", stats.ActiveEntries)
	}
}

// Test cache size limits and LRU eviction
func TestRecurrenceCache_MaxEntriesEviction(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      3,
		CleanupInterval: 1 * time.Minute,
	})
	defer cache.Close()

	for i := 0; i < 3; i++ {
		cache.Set(cacheStart, dailyRule(i+1), nil, 10, cacheTimes)
		time.Sleep(time.Millisecond)
	}

	if stats := cache.Stats(); stats.TotalEntries != 3 {
		t.Errorf("Expected 3 entries, got %d", stats.TotalEntries)
	}

	newest := Rule{Frequency: Weekly, Interval: 1, EndRepeatMode: EndByCount, Count: 1}
	cache.Set(cacheStart, newest, nil, 10, cacheTimes[:1])

	if stats := cache.Stats(); stats.TotalEntries != 3 {
		t.Errorf("Expected 3 entries after eviction, got %d", stats.TotalEntries)
	}
	if _, found := cache.Get(cacheStart, newest, nil, 10); !found {
		t.Error("Expected newest entry to be present after eviction")
	}
	if _, found := cache.Get(cacheStart, dailyRule(1), nil, 10); found {
		t.Error("Expected oldest entry to be evicted")
	}
}

func TestRecurrenceCache_ConcurrentAccess(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: 1 * time.Minute,
	})
	defer cache.Close()

	const numGoroutines = 10
	const operationsPerGoroutine = 100

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < operationsPerGoroutine; j++ {
				rule := dailyRule(id*operationsPerGoroutine + j)
				if j%2 == 0 {
					cache.Set(cacheStart, rule, nil, 10, cacheTimes)
				} else {
					cache.Get(cacheStart, rule, nil, 10)
				}
			}
		}(i)
	}
	wg.Wait()

	rule := dailyRule(9999)
	cache.Set(cacheStart, rule, nil, 10, cacheTimes)
	if _, found := cache.Get(cacheStart, rule, nil, 10); !found {
		t.Error("Cache should still be functional after concurrent access")
	}
}

func TestRecurrenceCache_CloseTwice(t *testing.T) {
	cache := NewRecurrenceCache(DefaultCacheConfig)
	cache.Close()
	cache.Close()

	if stats := cache.Stats(); stats.TotalEntries != 0 {
		t.Errorf("Expected empty cache after close, got %d entries", stats.TotalEntries)
	}
}
