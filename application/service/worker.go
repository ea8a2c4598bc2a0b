package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helixml/marketbasket/domain/basket"
)

// Worker defaults.
const (
	DefaultPollPeriod       = 500 * time.Millisecond
	DefaultMaxBackoff       = 30 * time.Second
	DefaultMaxEventAttempts = 5
)

// outcome is what processing the head of a partition did.
type outcome int

const (
	// outcomeIdle: the partition had no live event.
	outcomeIdle outcome = iota
	// outcomeDone: the event was applied or dead-lettered.
	outcomeDone
	// outcomeRetry: the event failed and stays at the head of its partition.
	outcomeRetry
)

// Worker projects queued events. Each partition is consumed by exactly one
// goroutine in arrival order, so a product's summary has a single writer.
//
// An event that fails stays at the head of its partition. The partition
// waits one poll period before the retry, doubling the wait after every
// further failure up to maxBackoff. After maxAttempts failures, or at once
// when it can never be applied, the event is dead-lettered and the partition
// moves on.
type Worker struct {
	store       basket.EventStore
	projection  *Projection
	partitions  int
	maxAttempts int
	pollPeriod  time.Duration
	maxBackoff  time.Duration
	logger      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewWorker creates a Worker for the given number of partitions.
func NewWorker(store basket.EventStore, projection *Projection, partitions int, logger *slog.Logger) *Worker {
	if partitions < 1 {
		partitions = 1
	}
	return &Worker{
		store:       store,
		projection:  projection,
		partitions:  partitions,
		maxAttempts: DefaultMaxEventAttempts,
		pollPeriod:  DefaultPollPeriod,
		maxBackoff:  DefaultMaxBackoff,
		logger:      logger,
	}
}

// WithPollPeriod sets how long an idle partition waits before polling again.
func (w *Worker) WithPollPeriod(d time.Duration) *Worker {
	if d > 0 {
		w.pollPeriod = d
	}
	return w
}

// WithMaxBackoff caps the wait before retrying a failed event. The cap is
// never below the poll period.
func (w *Worker) WithMaxBackoff(d time.Duration) *Worker {
	if d > 0 {
		w.maxBackoff = d
	}
	return w
}

// WithMaxAttempts sets how many failures an event may have before it is dead-lettered.
func (w *Worker) WithMaxAttempts(n int) *Worker {
	if n > 0 {
		w.maxAttempts = n
	}
	return w
}

// Partitions returns the number of partitions.
func (w *Worker) Partitions() int { return w.partitions }

// Start launches one goroutine per partition. It is a no-op when already running.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.group != nil {
		return
	}

	ctx, w.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for p := range w.partitions {
		g.Go(func() error {
			w.run(gctx, p)
			return nil
		})
	}
	w.group = g

	w.logger.Info("projection worker started", slog.Int("partitions", w.partitions))
}

// Stop cancels the partition loops and waits for in-flight events to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, g := w.cancel, w.group
	w.cancel, w.group = nil, nil
	w.mu.Unlock()

	if g == nil {
		return
	}
	cancel()
	_ = g.Wait()
	w.logger.Info("projection worker stopped")
}

// Running reports whether the partition loops are active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.group != nil
}

func (w *Worker) run(ctx context.Context, partition int) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// Keep going while the partition has a backlog.
	backlog:
		for {
			result, err := w.step(ctx, partition)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				w.logger.Error("partition stalled",
					slog.Int("partition", partition),
					slog.String("error", err.Error()),
				)
				failures++
				break
			}
			switch result {
			case outcomeIdle:
				failures = 0
				break backlog
			case outcomeRetry:
				failures++
				break backlog
			default:
				failures = 0
			}
		}
		timer.Reset(w.backoff(failures))
	}
}

// backoff returns the wait before polling again after the given number of
// consecutive failures.
func (w *Worker) backoff(failures int) time.Duration {
	limit := max(w.maxBackoff, w.pollPeriod)
	d := w.pollPeriod
	for i := 1; i < failures && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

// ProcessOne projects the oldest live event of partition. It reports whether
// an event was found. Projection failures are recorded on the event, not
// returned; the error is non-nil only if the outcome could not be recorded
// or ctx was canceled.
func (w *Worker) ProcessOne(ctx context.Context, partition int) (bool, error) {
	result, err := w.step(ctx, partition)
	return result != outcomeIdle, err
}

func (w *Worker) step(ctx context.Context, partition int) (outcome, error) {
	q, found, err := w.store.Next(ctx, partition)
	if err != nil {
		return outcomeIdle, fmt.Errorf("next event in partition %d: %w", partition, err)
	}
	if !found {
		return outcomeIdle, nil
	}
	return w.process(ctx, q)
}

func (w *Worker) process(ctx context.Context, q basket.QueuedEvent) (outcome, error) {
	attrs := []any{
		slog.Int64("event_id", q.ID()),
		slog.String("product_id", q.Event().ProductID().String()),
		slog.Int("partition", q.Partition()),
	}

	_, err := w.applyWithRecovery(ctx, q.Event())

	// The projection may have committed just before cancellation; the
	// bookkeeping below must still happen or the event would be applied twice.
	bookkeeping := context.WithoutCancel(ctx)

	switch {
	case err == nil:
		if err := w.store.Delete(bookkeeping, q); err != nil {
			return outcomeRetry, fmt.Errorf("remove applied event %d: %w", q.ID(), err)
		}
		return outcomeDone, nil

	case ctx.Err() != nil && (errors.Is(err, basket.ErrCanceled) || errors.Is(err, context.Canceled)):
		w.logger.Info("projection canceled, event left queued", attrs...)
		return outcomeRetry, ctx.Err()

	case errors.Is(err, basket.ErrInvalidInput):
		w.logger.Warn("event can never be applied, dead-lettering", append(attrs, slog.String("error", err.Error()))...)
		if _, err := w.store.DeadLetter(bookkeeping, q, err); err != nil {
			return outcomeRetry, fmt.Errorf("dead-letter event %d: %w", q.ID(), err)
		}
		return outcomeDone, nil

	case q.Attempts()+1 >= w.maxAttempts:
		w.logger.Error("event failed too often, dead-lettering",
			append(attrs, slog.Int("attempts", q.Attempts()+1), slog.String("error", err.Error()))...)
		if _, err := w.store.DeadLetter(bookkeeping, q, err); err != nil {
			return outcomeRetry, fmt.Errorf("dead-letter event %d: %w", q.ID(), err)
		}
		return outcomeDone, nil

	default:
		w.logger.Warn("event failed, will retry",
			append(attrs, slog.Int("attempts", q.Attempts()+1), slog.String("error", err.Error()))...)
		if _, err := w.store.RecordFailure(bookkeeping, q, err); err != nil {
			return outcomeRetry, fmt.Errorf("record failure of event %d: %w", q.ID(), err)
		}
		return outcomeRetry, nil
	}
}

func (w *Worker) applyWithRecovery(ctx context.Context, event basket.CartProductItemsMatched) (s basket.Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("projection panicked: %v", r)
		}
	}()
	return w.projection.Apply(ctx, event)
}

// Drain returns once the inbox has no live events. While the worker is
// running it waits for the partition loops; otherwise it processes every
// partition itself, still one goroutine per partition and with the same
// backoff between retries of a failed event.
func (w *Worker) Drain(ctx context.Context) error {
	if w.Running() {
		return w.waitEmpty(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	for p := range w.partitions {
		g.Go(func() error {
			failures := 0
			for {
				result, err := w.step(gctx, p)
				if err != nil {
					return err
				}
				switch result {
				case outcomeIdle:
					return nil
				case outcomeRetry:
					failures++
					if err := sleep(gctx, w.backoff(failures)); err != nil {
						return err
					}
				default:
					failures = 0
				}
			}
		})
	}
	return g.Wait()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Worker) waitEmpty(ctx context.Context) error {
	ticker := time.NewTicker(w.pollPeriod)
	defer ticker.Stop()
	for {
		n, err := w.store.CountPending(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
