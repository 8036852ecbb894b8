package ratelimit

import (
	"testing"
	"time"
)

func TestNewLimiter_InvalidRates(t *testing.T) {
	for _, tc := range [...]struct {
		name  string
		rates map[time.Duration]int
	}{
		{`empty`, nil},
		{`zero duration`, map[time.Duration]int{0: 1}},
		{`zero count`, map[time.Duration]int{time.Second: 0}},
		{`non-monotonic count`, map[time.Duration]int{time.Second: 10, time.Minute: 5}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected a panic")
				}
			}()
			NewLimiter(tc.rates)
		})
	}
}

func TestLimiter_Allow_UnderLimit(t *testing.T) {
	l := NewLimiter(map[time.Duration]int{time.Second: 3})
	for i := 0; i < 3; i++ {
		if _, ok := l.Allow("peer"); !ok {
			t.Fatalf("event %d should have been allowed", i)
		}
	}
}

func TestLimiter_Allow_OverLimit(t *testing.T) {
	l := NewLimiter(map[time.Duration]int{time.Minute: 2})
	if _, ok := l.Allow("peer"); !ok {
		t.Fatal("first event should be allowed")
	}
	if _, ok := l.Allow("peer"); !ok {
		t.Fatal("second event should be allowed")
	}
	next, ok := l.Allow("peer")
	if ok {
		t.Fatal("third event should exceed the limit")
	}
	if !next.After(time.Now()) {
		t.Fatalf("expected next allowed time in the future, got %v", next)
	}
}

func TestLimiter_Allow_SeparateCategories(t *testing.T) {
	l := NewLimiter(map[time.Duration]int{time.Minute: 1})
	if _, ok := l.Allow("a"); !ok {
		t.Fatal("peer a's first event should be allowed")
	}
	if _, ok := l.Allow("b"); !ok {
		t.Fatal("peer b's first event should be allowed, independent of peer a")
	}
	if _, ok := l.Allow("a"); ok {
		t.Fatal("peer a's second event should be rate limited")
	}
}

func TestLimiter_NilLimiter(t *testing.T) {
	var l *Limiter
	if _, ok := l.Allow("peer"); !ok {
		t.Fatal("a nil Limiter should never rate limit")
	}
}
