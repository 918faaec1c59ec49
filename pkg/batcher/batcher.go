// Package batcher provides an asynchronous single-writer queue for tree
// mutations.
//
// Jobs that arrive while a batch is being applied are coalesced into the next
// ntree.Batch, so a burst of structural changes costs one interval rebuild
// instead of one per change.
package batcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/cienislaw/thirtybees/pkg/ntree"
)

var (
	defaultQueueSize uint = 256
	defaultMaxBatch  uint = 64
)

// ErrClosed is returned by Submit once Close has been called.
var ErrClosed = errors.New("batcher is closed")

// ErrQueueFull is returned by Submit when the job queue has no capacity.
var ErrQueueFull = errors.New("batcher queue is full")

// Job is a unit of work applied inside a shared ntree.Batch.
type Job struct {
	// Name labels the job in logs.
	Name string

	// Apply performs the mutation. It must only use b inside the call.
	Apply func(ctx context.Context, b *ntree.Batch) error

	// Done, when set, receives the outcome of the job.
	Done func(err error)

	// Ctx, when set, lets the caller withdraw the job. A job whose Ctx is
	// done before the worker reaches it is skipped and finishes with
	// Ctx.Err(). Once applied, the job is not rolled back.
	Ctx context.Context
}

func (j Job) withdrawn() error {
	if j.Ctx == nil {
		return nil
	}
	return j.Ctx.Err()
}

// Config is the configuration options for the batcher.
type Config struct {
	// Tree is the engine jobs are applied to.
	Tree *ntree.Tree

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// MaxBatch caps how many queued jobs share one batch (defaults to 64).
	MaxBatch uint

	// Logger is the provided logger.
	Logger *slog.Logger
}

// Batcher applies queued jobs on a single worker goroutine.
type Batcher struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// New creates a Batcher and starts its worker.
func New(c *Config) (*Batcher, error) {
	if c.Tree == nil {
		return nil, errors.New("batcher requires a tree")
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.MaxBatch == 0 {
		c.MaxBatch = defaultMaxBatch
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	b := &Batcher{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	b.wg.Add(1)
	go b.worker()

	return b, nil
}

// Enqueue submits a job without waiting for it.
// Returns true if enqueued, false if the queue is full or the batcher is
// closed, resulting in the job being dropped.
func (b *Batcher) Enqueue(job Job) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Error("job not queued, batcher closed", "job", job.Name)
		return false
	}

	select {
	case b.queue <- job:
		b.logger.Debug("job queued", "job", job.Name)
		return true
	default:
		b.logger.Error("job not queued, queue full, job dropped", "job", job.Name)
		return false
	}
}

// Submit enqueues apply and waits for its outcome. When ctx ends first,
// Submit returns ctx.Err() and the job is skipped if the worker has not
// reached it yet. A job already being applied may still commit.
func (b *Batcher) Submit(ctx context.Context, name string, apply func(ctx context.Context, b *ntree.Batch) error) error {
	done := make(chan error, 1)
	job := Job{
		Name:  name,
		Apply: apply,
		Done:  func(err error) { done <- err },
		Ctx:   ctx,
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !b.Enqueue(job) {
		return ErrQueueFull
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to drain.
func (b *Batcher) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *Batcher) worker() {
	defer b.wg.Done()
	b.logger.Debug("batcher started")

	for job := range b.queue {
		jobs := b.collect(job)
		b.process(jobs)
	}

	b.logger.Debug("batcher stopped")
}

// collect gathers first and whatever else is already queued, up to MaxBatch.
func (b *Batcher) collect(first Job) []Job {
	jobs := []Job{first}
	for uint(len(jobs)) < b.config.MaxBatch {
		select {
		case job, ok := <-b.queue:
			if !ok {
				return jobs
			}
			jobs = append(jobs, job)
		default:
			return jobs
		}
	}
	return jobs
}

// process applies jobs as one batch. When the shared batch fails every job is
// retried alone so that one rejected job does not discard the others.
func (b *Batcher) process(jobs []Job) {
	ctx := context.Background()

	live := jobs[:0]
	for _, job := range jobs {
		if err := job.withdrawn(); err != nil {
			b.logger.Debug("job withdrawn", "job", job.Name, "error", err)
			finish(job, err)
			continue
		}
		live = append(live, job)
	}
	jobs = live
	if len(jobs) == 0 {
		return
	}

	if len(jobs) > 1 {
		change, err := b.config.Tree.Batch(ctx, func(ctx context.Context, batch *ntree.Batch) error {
			for _, job := range jobs {
				if err := job.Apply(ctx, batch); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			b.logger.Debug("batch applied",
				"op", change.Op,
				"jobs", len(jobs),
				"rebuilt", change.Rebuilt,
				"nodes", change.NodeCount,
			)
			for _, job := range jobs {
				finish(job, nil)
			}
			return
		}
		b.logger.Warn("batch failed, retrying jobs one by one", "jobs", len(jobs), "error", err)
	}

	for _, job := range jobs {
		_, err := b.config.Tree.Batch(ctx, job.Apply)
		if err != nil {
			b.logger.Error("job failed", "job", job.Name, "error", err)
		}
		finish(job, err)
	}
}

func finish(job Job, err error) {
	if job.Done != nil {
		job.Done(err)
	}
}
