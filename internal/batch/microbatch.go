// Package batch groups appended log messages into small batches before they
// hit disk, the way logstore.Store needs to: one checkpoint block per batch,
// batches run strictly one at a time (the store's writer holds a single
// os.File and patches prior blocks in place, so overlapping batches would
// race on those offsets).
package batch

import (
	"context"
	"sync"
	"time"
)

type (
	// BatcherConfig configures a Batcher's flush policy: a batch is handed to
	// the BatchProcessor once it reaches MaxSize jobs, or once FlushInterval
	// has elapsed since its first job, whichever comes first.
	//
	// MaxSize defaults to 16 and FlushInterval to 50ms if left zero; at least
	// one of the two must end up positive, or NewBatcher panics.
	BatcherConfig struct {
		MaxSize       int
		FlushInterval time.Duration
	}

	// BatchProcessor runs one batch of jobs. Any error it returns is
	// propagated to every JobResult.Wait call for jobs in that batch.
	BatchProcessor[Job any] func(ctx context.Context, jobs []Job) error

	// Batcher accepts jobs one at a time via Submit and flushes them to its
	// BatchProcessor in batches, never running two batches concurrently.
	// Construct with NewBatcher.
	Batcher[Job any] struct {
		processor     BatchProcessor[Job]
		maxSize       int
		flushInterval time.Duration

		ctx      context.Context
		cancel   context.CancelFunc
		done     chan struct{}
		stopped  chan struct{}
		stopOnce sync.Once

		jobCh   chan Job                // sent on Submit (ping)
		batchCh chan *batcherState[Job] // received on Submit (pong)
	}

	batcherState[Job any] struct {
		err  error
		done chan struct{}
		jobs []Job
	}

	// JobResult is returned by Submit; call Wait before reading any result
	// the BatchProcessor attached to Job.
	JobResult[Job any] struct {
		Job Job

		batch *batcherState[Job]
	}
)

// NewBatcher starts a Batcher running processor according to config (which
// may be nil to take the documented defaults). Call Shutdown when done with
// it. Panics if processor is nil, or if config disables both MaxSize and
// FlushInterval.
func NewBatcher[Job any](config *BatcherConfig, processor BatchProcessor[Job]) *Batcher[Job] {
	if processor == nil {
		panic(`batch: nil processor`)
	}

	x := &Batcher[Job]{
		processor:     processor,
		maxSize:       16,
		flushInterval: 50 * time.Millisecond,
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
		jobCh:         make(chan Job),
		batchCh:       make(chan *batcherState[Job]),
	}

	if config != nil {
		if config.MaxSize != 0 {
			x.maxSize = config.MaxSize
		}
		if config.FlushInterval != 0 {
			x.flushInterval = config.FlushInterval
		}
	}
	if x.maxSize <= 0 && x.flushInterval <= 0 {
		panic(`batch: one of MaxSize or FlushInterval must be specified`)
	}

	x.ctx, x.cancel = context.WithCancel(context.Background())
	go x.run()
	return x
}

// Shutdown prevents further jobs via Submit, flushes any pending batch, and
// waits for the final BatchProcessor call to return. If ctx is canceled
// first, Shutdown forces a close and returns ctx.Err().
func (x *Batcher[Job]) Shutdown(ctx context.Context) error {
	x.stopOnce.Do(func() { close(x.stopped) })

	select {
	case <-ctx.Done():
		x.cancel()
		<-x.done
		return ctx.Err()
	case <-x.done:
		return nil
	}
}

// Submit schedules job for the current (or next) batch, returning an error
// if ctx is canceled or the Batcher has been shut down.
func (x *Batcher[Job]) Submit(ctx context.Context, job Job) (*JobResult[Job], error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-x.ctx.Done():
		return nil, x.ctx.Err()
	case <-x.stopped:
		return nil, context.Canceled
	case x.jobCh <- job: // ping
		batch := <-x.batchCh // pong: the state job was appended to
		return &JobResult[Job]{Job: job, batch: batch}, nil
	}
}

// run is the Batcher's single goroutine: it owns the pending batch and is
// the only place that ever calls the BatchProcessor, so batches never
// overlap.
func (x *Batcher[Job]) run() {
	defer close(x.done)
	defer x.cancel()

	state := &batcherState[Job]{done: make(chan struct{})}
	flushCh := make(chan *batcherState[Job])

	runBatch := func() {
		if len(state.jobs) == 0 {
			return
		}
		batch := state
		state = &batcherState[Job]{done: make(chan struct{})}
		batch.err = x.processor(x.ctx, batch.jobs)
		close(batch.done)
	}

	for {
		select {
		case <-x.ctx.Done():
			return

		case <-x.stopped:
			runBatch()
			return

		case job := <-x.jobCh: // ping
			x.batchCh <- state // pong
			state.jobs = append(state.jobs, job)

			if x.maxSize > 0 && len(state.jobs) >= x.maxSize {
				runBatch()
			} else if x.flushInterval > 0 && len(state.jobs) == 1 {
				batch := state
				timer := time.NewTimer(x.flushInterval)
				go func() {
					defer timer.Stop()
					select {
					case <-x.ctx.Done():
					case <-x.stopped:
					case <-batch.done:
					case <-timer.C:
						select {
						case <-x.ctx.Done():
						case <-x.stopped:
						case <-batch.done:
						case flushCh <- batch:
						}
					}
				}()
			}

		case batch := <-flushCh:
			if batch == state {
				runBatch()
			}
		}
	}
}

// Wait blocks until Job's batch has been processed, then returns whatever
// error the BatchProcessor returned for that batch.
func (x *JobResult[Job]) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-x.batch.done:
		return x.batch.err
	}
}
