package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/pkg/logx"
)

const (
	// DefaultPersistQueueSize bounds the number of pending durable writes.
	DefaultPersistQueueSize = 1024

	// DefaultPersistTimeout bounds a single durable write.
	DefaultPersistTimeout = 5 * time.Second
)

// Job is one fire-and-forget write to the store or the mirror.
type Job func(ctx context.Context) error

type namedJob struct {
	name string
	run  Job
}

// Persister runs jobs one at a time on a background worker. Callers never wait on it:
// a full queue drops the job and failures are only logged.
type Persister struct {
	jobs    chan namedJob
	timeout time.Duration

	// mu guards closed against Enqueue racing Close.
	mu     sync.RWMutex
	closed bool

	done   chan struct{}
	logger zerolog.Logger
}

// NewPersister starts the worker.
func NewPersister(queueSize int, timeout time.Duration) *Persister {
	if queueSize <= 0 {
		queueSize = DefaultPersistQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultPersistTimeout
	}

	p := &Persister{
		jobs:    make(chan namedJob, queueSize),
		timeout: timeout,
		done:    make(chan struct{}),
		logger:  logx.Component("Persister"),
	}

	go p.run()

	return p
}

// Enqueue reports whether the job was accepted.
func (p *Persister) Enqueue(name string, job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn().Str("job", name).Msg("Persister closed, dropping job.")
		return false
	}

	select {
	case p.jobs <- namedJob{name: name, run: job}:
		return true
	default:
		p.logger.Warn().Str("job", name).Int("queue_len", len(p.jobs)).Msg("Persist queue full, dropping job.")
		return false
	}
}

// Close stops accepting jobs and waits until the queued ones have run or ctx ends.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("persister drain interrupted: %w", ctx.Err())
	}
}

func (p *Persister) run() {
	defer close(p.done)

	for job := range p.jobs {
		p.execute(job)
	}

	p.logger.Info().Msg("Persister drained.")
}

func (p *Persister) execute(job namedJob) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Str("job", job.name).Msg("Recovered from panic in persist job.")
		}
	}()

	if err := job.run(ctx); err != nil {
		p.logger.Warn().Err(err).Str("job", job.name).Msg("Persist job failed.")
	}
}
