package ratelimit

import (
	"sort"
	"time"
)

// parseRates validates rates and returns the retention duration: the
// largest window any rate is defined over, so a category can be forgotten
// once it's been quiet for that long. Rates are valid only if every
// duration and count is positive, and each longer window allows strictly
// more events than the next shorter one at a strictly lower average rate.
func parseRates(rates map[time.Duration]int) (time.Duration, bool) {
	if len(rates) == 0 {
		return 0, false
	}

	durations := make([]time.Duration, 0, len(rates))
	for d := range rates {
		durations = append(durations, d)
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	for i, d := range durations {
		count := rates[d]
		if count <= 0 || d <= 0 {
			return 0, false
		}
		if i < len(durations)-1 && count >= rates[durations[i+1]] {
			return 0, false
		}
		if i > 0 && float64(count)/float64(d) >= float64(rates[durations[i-1]])/float64(durations[i-1]) {
			return 0, false
		}
	}

	return durations[len(durations)-1], true
}
