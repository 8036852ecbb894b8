package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Limiter tracks event timestamps per string category, across one or more
// sliding windows. A category that's been quiet for the retention period
// (the longest configured window) is forgotten the next time any category
// is checked, so the map doesn't grow for peers that never reconnect.
type Limiter struct {
	rates     map[time.Duration]int
	retention time.Duration

	mu         sync.Mutex
	categories map[string]*window
}

type window struct {
	events   []int64 // unix nano, ascending
	lastSeen time.Time
}

// NewLimiter builds a Limiter from rates: a map of window duration to the
// maximum event count allowed in that window. Every duration and count must
// be positive, and each longer window must allow strictly more events than
// the next shorter one at a strictly lower average rate (e.g. 1s:5 and 1m:30
// is valid; 1s:5 and 1m:2 is not, since the one-second window could then
// never bind). NewLimiter panics if rates fails either check.
func NewLimiter(rates map[time.Duration]int) *Limiter {
	retention, ok := parseRates(rates)
	if !ok {
		panic(fmt.Errorf("ratelimit: invalid rates: %v", rates))
	}
	return &Limiter{
		rates:      rates,
		retention:  retention,
		categories: make(map[string]*window),
	}
}

// Allow registers an event for category, returning false if doing so would
// exceed any configured rate (the event is still recorded either way). The
// returned time is when category will next be allowed; it's the zero value
// whenever another event could be registered immediately.
func (x *Limiter) Allow(category string) (time.Time, bool) {
	if x == nil || len(x.rates) == 0 {
		return time.Time{}, true
	}

	now := time.Now()

	x.mu.Lock()
	defer x.mu.Unlock()

	x.evictLocked(now)

	w := x.categories[category]
	if w == nil {
		w = &window{}
		x.categories[category] = w
	}
	w.lastSeen = now

	remaining, filtered := filterEvents(now, x.rates, w.events)
	w.events = insertSorted(filtered, now.UnixNano())

	if remaining > 0 {
		return now.Add(remaining), false
	}
	return time.Time{}, true
}

// evictLocked drops categories that haven't been seen within the retention
// window. Callers must hold x.mu.
func (x *Limiter) evictLocked(now time.Time) {
	threshold := now.Add(-x.retention)
	for k, w := range x.categories {
		if w.lastSeen.Before(threshold) {
			delete(x.categories, k)
		}
	}
}
