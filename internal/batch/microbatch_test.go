package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewBatcher(t *testing.T) {
	for _, tc := range [...]struct {
		name      string
		config    *BatcherConfig
		nilProc   bool
		wantPanic bool
	}{
		{`nil config uses defaults`, nil, false, false},
		{`valid config`, &BatcherConfig{MaxSize: 10, FlushInterval: 50 * time.Millisecond}, false, false},
		{`max size only`, &BatcherConfig{MaxSize: 10}, false, false},
		{`flush interval only`, &BatcherConfig{FlushInterval: 10 * time.Millisecond}, false, false},
		{`nil processor panics`, nil, true, true},
		{`both disabled panics`, &BatcherConfig{MaxSize: -1, FlushInterval: -1}, false, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if (r != nil) != tc.wantPanic {
					t.Fatalf("panic = %v, wantPanic = %v", r, tc.wantPanic)
				}
			}()
			var proc BatchProcessor[int]
			if !tc.nilProc {
				proc = func(context.Context, []int) error { return nil }
			}
			b := NewBatcher(tc.config, proc)
			if b != nil {
				_ = b.Shutdown(context.Background())
			}
		})
	}
}

func TestBatcher_Submit_ctxCancelGuarded(t *testing.T) {
	b := NewBatcher[int](nil, func(context.Context, []int) error { return nil })
	defer b.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Submit(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBatcher_Submit_batcherShutdownGuarded(t *testing.T) {
	b := NewBatcher[int](nil, func(context.Context, []int) error { return nil })
	if err := b.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Submit(context.Background(), 1); err == nil {
		t.Fatal("expected an error submitting to a shut-down Batcher")
	}
}

func TestBatcher_BatchesBySize(t *testing.T) {
	var mu sync.Mutex
	var batches [][]int
	b := NewBatcher(&BatcherConfig{MaxSize: 2, FlushInterval: -1}, func(_ context.Context, jobs []int) error {
		mu.Lock()
		defer mu.Unlock()
		cp := append([]int(nil), jobs...)
		batches = append(batches, cp)
		return nil
	})
	defer b.Shutdown(context.Background())

	var results []*JobResult[int]
	for i := 0; i < 4; i++ {
		res, err := b.Submit(context.Background(), i)
		if err != nil {
			t.Fatal(err)
		}
		results = append(results, res)
	}
	for _, res := range results {
		if err := res.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 2 || len(batches[0]) != 2 || len(batches[1]) != 2 {
		t.Fatalf("unexpected batches: %v", batches)
	}
}

func TestBatcher_FlushInterval(t *testing.T) {
	processed := make(chan []int, 1)
	b := NewBatcher(&BatcherConfig{MaxSize: -1, FlushInterval: 10 * time.Millisecond}, func(_ context.Context, jobs []int) error {
		processed <- append([]int(nil), jobs...)
		return nil
	})
	defer b.Shutdown(context.Background())

	res, err := b.Submit(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case jobs := <-processed:
		if len(jobs) != 1 || jobs[0] != 42 {
			t.Fatalf("unexpected batch: %v", jobs)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for flush interval to trigger the batch")
	}

	if err := res.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestBatcher_ProcessorError(t *testing.T) {
	wantErr := errors.New("boom")
	b := NewBatcher(&BatcherConfig{MaxSize: 1}, func(context.Context, []int) error { return wantErr })
	defer b.Shutdown(context.Background())

	res, err := b.Submit(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := res.Wait(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestBatcher_Shutdown_flushesPending(t *testing.T) {
	processed := make(chan []int, 1)
	b := NewBatcher(&BatcherConfig{MaxSize: 100, FlushInterval: time.Hour}, func(_ context.Context, jobs []int) error {
		processed <- append([]int(nil), jobs...)
		return nil
	})

	res, err := b.Submit(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case jobs := <-processed:
		if len(jobs) != 1 {
			t.Fatalf("unexpected batch: %v", jobs)
		}
	default:
		t.Fatal("expected Shutdown to flush the pending batch")
	}
	if err := res.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestBatcher_Shutdown_ctxCanceledForces(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	b := NewBatcher(&BatcherConfig{MaxSize: 1}, func(ctx context.Context, jobs []int) error {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return ctx.Err()
	})

	if _, err := b.Submit(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := b.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	close(release)
}

func TestJobResult_Wait_contextCancel(t *testing.T) {
	b := NewBatcher(&BatcherConfig{MaxSize: 100, FlushInterval: time.Hour}, func(context.Context, []int) error { return nil })
	defer b.Shutdown(context.Background())

	res, err := b.Submit(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := res.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
