package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Handler executes one job against its payload. The returned value becomes
// the job's Result on success; a non-nil error marks the job failed with
// the error's message. Handlers run on pool workers and must be safe for
// concurrent invocation.
type Handler func(ctx context.Context, payload map[string]any) (any, error)

// Config configures a Pool.
type Config struct {
	// Workers is the fixed number of concurrent consumers. Controls the
	// maximum degree of parallel job execution, not queue capacity.
	Workers int
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	if cfg.Workers < 1 {
		return fmt.Errorf("jobs: workers must be at least 1, got %d", cfg.Workers)
	}
	return nil
}

// Pool owns the job queue, the job-record table, and a fixed set of
// workers draining the queue. Submissions enter the queue in PENDING
// state; workers claim jobs one at a time (the queue guarantees
// exactly-once delivery), run the registered handler for the job type,
// and record the terminal state. Per-job failures are isolated — a
// failing or panicking handler marks that job failed and never takes
// down the worker.
//
// Records are retained for the life of the process so terminal jobs stay
// inspectable.
type Pool struct {
	queue    *Queue
	workers  int
	log      logrus.FieldLogger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  sync.Once
	mu       sync.RWMutex
	table    map[string]*Job
	handlers map[string]Handler
}

// NewPool creates a pool with the given worker count. Workers do not run
// until Start is called. The "sum" handler is pre-registered so a fresh
// pool can execute the demo workload out of the box.
func NewPool(cfg Config, log logrus.FieldLogger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:    NewQueue(),
		workers:  cfg.Workers,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		table:    make(map[string]*Job),
		handlers: make(map[string]Handler),
	}
	p.Register("sum", SumHandler)
	return p, nil
}

// Register binds a handler to a job type, replacing any previous binding.
// Must be called before jobs of that type are submitted.
func (p *Pool) Register(jobType string, h Handler) {
	p.mu.Lock()
	p.handlers[jobType] = h
	p.mu.Unlock()
}

// Start launches the workers. Safe to call once; subsequent calls are
// no-ops.
func (p *Pool) Start() {
	p.started.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
		p.log.WithField("workers", p.workers).Info("worker pool started")
	})
}

// Stop signals the workers to exit and waits for them, bounded by ctx.
// A job already claimed runs to completion; pending jobs stay queued.
func (p *Pool) Stop(ctx context.Context) {
	p.cancel()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Submit records a new PENDING job and enqueues it, returning the assigned
// ID immediately. The job type must have a registered handler.
func (p *Pool) Submit(jobType string, payload map[string]any) (Job, error) {
	p.mu.Lock()
	if _, ok := p.handlers[jobType]; !ok {
		p.mu.Unlock()
		return Job{}, errors.Wrapf(ErrUnknownType, "%q", jobType)
	}
	j := &Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Payload:     payload,
		Status:      StatusPending,
		SubmittedAt: time.Now().UTC(),
	}
	p.table[j.ID] = j
	p.mu.Unlock()

	p.queue.Enqueue(j)
	p.log.WithFields(logrus.Fields{"job_id": j.ID, "type": jobType}).Debug("job submitted")
	return j.clone(), nil
}

// Inspect returns a snapshot of the job with the given ID, or ErrNotFound.
func (p *Pool) Inspect(id string) (Job, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	j, ok := p.table[id]
	if !ok {
		return Job{}, errors.Wrapf(ErrNotFound, "%q", id)
	}
	return j.clone(), nil
}

// Snapshot returns copies of every known job, oldest submission first.
func (p *Pool) Snapshot() []Job {
	p.mu.RLock()
	out := make([]Job, 0, len(p.table))
	for _, j := range p.table {
		out = append(out, j.clone())
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool {
		if out[i].SubmittedAt.Equal(out[k].SubmittedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].SubmittedAt.Before(out[k].SubmittedAt)
	})
	return out
}

// Pending reports the number of jobs waiting to be claimed.
func (p *Pool) Pending() int {
	return p.queue.Len()
}

func (p *Pool) worker(n int) {
	defer p.wg.Done()
	log := p.log.WithField("worker", n)
	for {
		j, err := p.queue.Dequeue(p.ctx)
		if err != nil {
			// Context cancelled; the pool is shutting down.
			return
		}
		p.execute(log, j)
	}
}

// execute drives one job through RUNNING to a terminal state. The worker
// that dequeued the job has exclusive claim to it, so no other worker
// mutates the record concurrently; the table lock still guards each
// transition so Inspect never observes a torn state.
func (p *Pool) execute(log logrus.FieldLogger, j *Job) {
	p.mu.Lock()
	handler := p.handlers[j.Type]
	now := time.Now().UTC()
	j.Status = StatusRunning
	j.StartedAt = &now
	p.mu.Unlock()

	result, err := p.run(handler, j.Payload)

	p.mu.Lock()
	completed := time.Now().UTC()
	j.CompletedAt = &completed
	if err != nil {
		j.Status = StatusFailed
		j.Error = err.Error()
	} else {
		j.Status = StatusDone
		j.Result = result
	}
	p.mu.Unlock()

	if err != nil {
		log.WithFields(logrus.Fields{"job_id": j.ID, "type": j.Type}).WithError(err).Warn("job failed")
		return
	}
	log.WithFields(logrus.Fields{"job_id": j.ID, "type": j.Type}).Debug("job done")
}

// run invokes the handler, converting a panic into an error so one bad
// job cannot terminate its worker.
func (p *Pool) run(handler Handler, payload map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(p.ctx, payload)
}

// SumHandler is the demo workload: it adds every numeric field in the
// payload and returns {"sum": total}.
func SumHandler(_ context.Context, payload map[string]any) (any, error) {
	var total float64
	for _, v := range payload {
		switch n := v.(type) {
		case int:
			total += float64(n)
		case int64:
			total += float64(n)
		case float64:
			total += n
		}
	}
	return map[string]any{"sum": total}, nil
}
