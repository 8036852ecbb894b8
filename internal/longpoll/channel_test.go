package longpoll

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChannel_DeliversUntilClose(t *testing.T) {
	ch := make(chan int, 4)
	ch <- 1
	ch <- 2
	ch <- 3
	close(ch)

	var got []int
	err := Channel(context.Background(), ch, func(v int) error {
		got = append(got, v)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("unexpected values: %v", got)
	}
}

func TestChannel_ContextCanceled(t *testing.T) {
	ch := make(chan int)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Channel(ctx, ch, func(int) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestChannel_HandlerError(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 1
	wantErr := errors.New("boom")

	err := Channel(context.Background(), ch, func(int) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestChannel_StopsOnContextCancelDuringWait(t *testing.T) {
	ch := make(chan int)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := Channel(ctx, ch, func(int) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}
