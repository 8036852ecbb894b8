package ratelimit

import (
	"sort"
	"time"
)

// filterEvents drops events (unix-nano timestamps, sorted ascending) older
// than every configured rate's window, and reports how long to wait before
// another event would fit under the tightest rate that's currently at its
// limit (zero if none are).
func filterEvents(now time.Time, rates map[time.Duration]int, events []int64) (remaining time.Duration, filtered []int64) {
	firstRelevant := len(events)

	for rate, limit := range rates {
		boundary := now.Add(-rate)
		idx := sort.Search(len(events), func(i int) bool { return events[i] > boundary.UnixNano() })
		if idx < firstRelevant {
			firstRelevant = idx
		}
		if n := len(events) - idx; n >= limit {
			offset := time.Unix(0, events[len(events)-limit]).Sub(boundary)
			if offset > remaining {
				remaining = offset
			}
		}
	}

	return remaining, events[firstRelevant:]
}

// insertSorted inserts v into events (ascending order), keeping it sorted.
func insertSorted(events []int64, v int64) []int64 {
	i := sort.Search(len(events), func(i int) bool { return events[i] >= v })
	events = append(events, 0)
	copy(events[i+1:], events[i:])
	events[i] = v
	return events
}
