// Package inproc runs processing jobs on a fixed set of worker goroutines.
package inproc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/docintel/internal/core/domain"
)

// Handler processes one job. Errors are reported to the Observer only.
type Handler func(ctx context.Context, job domain.ProcessJob) error

// Observer receives lifecycle callbacks for metrics.
type Observer interface {
	StartDocument()
	FinishDocument(duration time.Duration, err error)
	ObserveQueueLag(lag time.Duration)
}

type Options struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	Logger     *slog.Logger
	Observer   Observer
}

var errPoolClosed = errors.New("worker pool is closed")

// Pool is a JobQueue backed by a buffered channel. Jobs for the same
// document id never run concurrently.
type Pool struct {
	handler Handler
	opts    Options
	jobs    chan domain.ProcessJob

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	locks *keyedMutex
}

func NewPool(handler Handler, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		handler: handler,
		opts:    opts,
		jobs:    make(chan domain.ProcessJob, opts.QueueSize),
		baseCtx: ctx,
		cancel:  cancel,
		locks:   newKeyedMutex(),
	}
	p.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go p.worker()
	}
	return p
}

// Enqueue never blocks: a full buffer is a temporary failure.
func (p *Pool) Enqueue(_ context.Context, job domain.ProcessJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return domain.WrapError(domain.ErrTemporary, "enqueue", errPoolClosed)
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return domain.WrapError(domain.ErrTemporary, "enqueue", errors.New("worker pool queue is full"))
	}
}

// Submit waits for buffer space instead of failing, for consumers that
// cannot redeliver a rejected job.
func (p *Pool) Submit(ctx context.Context, job domain.ProcessJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return domain.WrapError(domain.ErrTemporary, "submit", errPoolClosed)
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return domain.WrapError(domain.ErrTemporary, "submit", ctx.Err())
	}
}

// Close stops accepting jobs and waits for queued ones to finish or ctx to expire.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *Pool) run(job domain.ProcessJob) {
	unlock := p.locks.Lock(job.DocumentID)
	defer unlock()

	ctx := p.baseCtx
	if p.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.JobTimeout)
		defer cancel()
	}

	if p.opts.Observer != nil {
		p.opts.Observer.ObserveQueueLag(time.Since(job.EnqueuedAt))
		p.opts.Observer.StartDocument()
	}
	started := time.Now()
	err := p.safeHandle(ctx, job)
	if p.opts.Observer != nil {
		p.opts.Observer.FinishDocument(time.Since(started), err)
	}
	if err != nil {
		p.opts.Logger.Error("worker_job_failed", "document_id", job.DocumentID, "error", err)
	}
}

func (p *Pool) safeHandle(ctx context.Context, job domain.ProcessJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("worker panic")
			p.opts.Logger.Error("worker_job_panic", "document_id", job.DocumentID, "panic", r)
		}
	}()
	return p.handler(ctx, job)
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
