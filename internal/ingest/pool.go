package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Job is one unit of ingestion work: a training data record ready to be
// chunked, embedded, and upserted.
type Job struct {
	TrainingDataID string
}

// Pool is a bounded worker pool for detached ingestion jobs, grounded on the
// teacher's detached-goroutine background-task pattern in
// cmd/registry/main.go (ticker-driven goroutines selecting on a quit
// channel), generalized here into a fixed set of workers draining a job
// channel.
type Pool struct {
	jobs    chan Job
	wg      sync.WaitGroup
	log     *zap.Logger
	handler func(context.Context, Job)
}

// NewPool starts workers workers pulling from an internally-buffered job
// queue. handler is invoked for every job; it is expected to log and record
// its own failures rather than panic.
func NewPool(workers, queueSize int, log *zap.Logger, handler func(context.Context, Job)) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	p := &Pool{
		jobs:    make(chan Job, queueSize),
		log:     log,
		handler: handler,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.handler(context.Background(), job)
	}
}

// Enqueue submits a job without blocking the caller. If the queue is full
// the job is dropped and logged — callers relying on guaranteed delivery
// should check TrainingData.Status later and resubmit.
func (p *Pool) Enqueue(job Job) {
	select {
	case p.jobs <- job:
	default:
		p.log.Warn("ingestion queue full, dropping job", zap.String("training_data_id", job.TrainingDataID))
	}
}

// Shutdown closes the job queue and waits for in-flight jobs to finish.
// Callers should stop calling Enqueue before calling Shutdown.
func (p *Pool) Shutdown() {
	close(p.jobs)
	p.wg.Wait()
}
