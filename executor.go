package cabhfuil

import (
	"io"

	"gopkg.in/src-d/go-log.v1"
	"gopkg.in/src-d/go-queue.v1"
)

// Executor retrieves jobs from a job iterator and passes them through a
// queue to a worker pool. It acts as a producer-consumer in a single
// component, used for one-shot runs over a fixed set of repositories.
type Executor struct {
	log  log.Logger
	wp   *WorkerPool
	q    queue.Queue
	iter JobIter
}

// NewExecutor creates a new job executor.
func NewExecutor(l log.Logger, q queue.Queue, pool *WorkerPool, iter JobIter) *Executor {
	return &Executor{
		log:  l,
		wp:   pool,
		q:    q,
		iter: iter,
	}
}

// Execute queues all jobs from the iterator and distributes them across the
// worker pool. It returns once every queued job was delivered to a worker
// and the pool drained.
func (p *Executor) Execute() error {
	n, err := p.queueJobs()
	if err != nil {
		return err
	}

	if err := p.consumeJobs(n); err != nil {
		return err
	}

	return p.wp.Close()
}

func (p *Executor) queueJobs() (int, error) {
	p.log.Debugf("queueing jobs")
	var n int
	for {
		job, err := p.iter.Next()
		if err == io.EOF {
			p.log.With(log.Fields{"jobs": n}).Debugf("jobs queued")
			return n, nil
		}

		if err != nil {
			return n, err
		}

		qj, err := queue.NewJob()
		if err != nil {
			return n, err
		}

		if err := qj.Encode(job); err != nil {
			return n, err
		}

		if err := p.q.Publish(qj); err != nil {
			return n, err
		}

		n++
	}
}

func (p *Executor) consumeJobs(total int) error {
	iter, err := p.q.Consume(p.wp.Len())
	if err != nil {
		return err
	}

	defer func() { _ = iter.Close() }()

	var done int
	for done < total {
		j, err := iter.Next()
		if queue.ErrEmptyJob.Is(err) {
			p.log.Errorf(err, "empty job received")
			done++
			continue
		}

		if err != nil {
			return err
		}

		if j == nil {
			return nil
		}

		var job Job
		if err := j.Decode(&job); err != nil {
			p.log.Errorf(err, "error decoding job")
			if err := j.Reject(false); err != nil {
				p.log.Errorf(err, "error rejecting job")
			}
		} else {
			p.wp.Do(&WorkerJob{Job: &job, qj: j})
		}

		done++
	}

	return nil
}
