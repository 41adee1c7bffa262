package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoHandler is returned when a Mux receives a job type it does not know.
var ErrNoHandler = errors.New("no handler registered for job type")

// ErrQueueClosed is returned by Enqueue once Stop has been called or before Start.
var ErrQueueClosed = errors.New("queue not running")

// ErrQueueFull is returned by Enqueue when the buffer has no free slot.
var ErrQueueFull = errors.New("queue full")

// Job is a unit of background work.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. Returning an error schedules a retry.
type Handler func(context.Context, Job) error

// Mux routes jobs to handlers keyed by Job.Type.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{handlers: make(map[string]Handler)}
}

// Handle registers h for jobType, replacing any previous registration.
func (m *Mux) Handle(jobType string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[jobType] = h
}

// Process implements Handler.
func (m *Mux) Process(ctx context.Context, job Job) error {
	m.mu.RLock()
	h, ok := m.handlers[job.Type]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, job.Type)
	}
	return h(ctx, job)
}

// ResultHook observes the final outcome of a job (success or retries exhausted).
type ResultHook func(job Job, err error)

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
	OnResult   ResultHook
}

// Queue is an in-memory worker pool. Jobs that fail are retried after RetryDelay
// until MaxRetries is exhausted.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
	onResult   ResultHook

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	retries sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

// NewQueue builds a queue around handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		onResult:   cfg.OnResult,
		jobs:       make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.workers))
}

// Stop cancels the workers and waits for in-flight jobs to return.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.cancel()
	q.mu.Unlock()

	q.retries.Wait()
	q.wg.Wait()
	q.logger.Info("queue stopped", zap.String("queue", q.name), zap.Int("dropped", len(q.jobs)))
}

// Enqueue hands job to the workers. It never blocks: a full buffer yields ErrQueueFull.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	running := q.started && !q.stopped
	ctx := q.ctx
	q.mu.Unlock()

	if !running {
		return fmt.Errorf("%s: %w", q.name, ErrQueueClosed)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", q.name, ErrQueueClosed)
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("%s: %w", q.name, ErrQueueFull)
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.run(job)
		}
	}
}

func (q *Queue) run(job Job) {
	err := q.safeHandle(job)
	if err == nil {
		q.report(job, nil)
		return
	}
	if errors.Is(err, ErrNoHandler) || job.Attempt >= q.maxRetries {
		q.logger.Error("job failed",
			zap.String("queue", q.name),
			zap.String("job_id", job.ID),
			zap.String("type", job.Type),
			zap.Int("attempt", job.Attempt),
			zap.Error(err),
		)
		q.report(job, err)
		return
	}

	job.Attempt++
	q.logger.Warn("job failed, retrying",
		zap.String("queue", q.name),
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempt),
		zap.Error(err),
	)
	q.retries.Add(1)
	go func(j Job) {
		defer q.retries.Done()
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.report(j, q.ctx.Err())
		case <-timer.C:
			select {
			case q.jobs <- j:
			case <-q.ctx.Done():
				q.report(j, q.ctx.Err())
			}
		}
	}(job)
}

func (q *Queue) safeHandle(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return q.handler(q.ctx, job)
}

func (q *Queue) report(job Job, err error) {
	if q.onResult != nil {
		q.onResult(job, err)
	}
}
