package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrSuperseded is the cancellation cause seen by a job replaced by a newer one with the same key.
var ErrSuperseded = errors.New("job superseded by a newer request")

// Job represents a queued background task. Jobs sharing a non-empty Key
// supersede each other: enqueuing a new one cancels the previous one.
type Job struct {
	ID       string
	Type     string
	Key      string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. ctx is cancelled when the queue stops or the job is superseded.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

type keyedJob struct {
	jobID  string
	cancel context.CancelCauseFunc
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	current map[string]*keyedJob
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
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
		jobs:       make(chan Job, cfg.BufferSize),
		current:    make(map[string]*keyedJob),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop cancels workers and waits for them to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// Enqueue pushes a job onto the queue. A keyed job cancels the job it replaces,
// whether that one is still waiting or already running.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return fmt.Errorf("queue %s not started", q.name)
	}
	ctx := q.ctx
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	if job.Key != "" && job.Attempt == 0 {
		if prev, ok := q.current[job.Key]; ok && prev.jobID != job.ID {
			if prev.cancel != nil {
				prev.cancel(ErrSuperseded)
			}
			q.logger.Sugar().Infow("job superseded", "queue", q.name, "key", job.Key, "job_id", prev.jobID, "by", job.ID)
		}
		q.current[job.Key] = &keyedJob{jobID: job.ID}
	}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

// Superseded reports whether a newer job took over the key of job.
func (q *Queue) Superseded(job Job) bool {
	if job.Key == "" {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	cur, ok := q.current[job.Key]
	return ok && cur.jobID != job.ID
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.run(workerID, job)
		}
	}
}

func (q *Queue) run(workerID int, job Job) {
	jobCtx, cancel := context.WithCancelCause(q.ctx)
	defer cancel(nil)

	if job.Key != "" {
		q.mu.Lock()
		cur, ok := q.current[job.Key]
		if !ok || cur.jobID != job.ID {
			q.mu.Unlock()
			q.logger.Sugar().Debugw("skipping superseded job", "queue", q.name, "job_id", job.ID, "worker", workerID)
			return
		}
		cur.cancel = cancel
		q.mu.Unlock()
	}

	err := q.handler(jobCtx, job)
	if err != nil && context.Cause(jobCtx) == nil {
		q.handleFailure(job, err)
		return
	}
	q.release(job)
}

func (q *Queue) release(job Job) {
	if job.Key == "" {
		return
	}
	q.mu.Lock()
	if cur, ok := q.current[job.Key]; ok && cur.jobID == job.ID {
		delete(q.current, job.Key)
	}
	q.mu.Unlock()
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Sugar().Errorw("job exceeded retries", "queue", q.name, "job_id", job.ID, "type", job.Type, "error", err)
		q.release(job)
		return
	}
	q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if q.Superseded(j) {
				return
			}
			if err := q.Enqueue(j); err != nil {
				q.logger.Sugar().Errorw("failed to requeue job", "queue", q.name, "job_id", j.ID, "error", err)
			}
		}
	}(job)
}
