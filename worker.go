package cabhfuil

import (
	"sync/atomic"

	"gopkg.in/src-d/go-log.v1"
	"gopkg.in/src-d/go-queue.v1"
)

// A WorkerJob is a job to be passed to the worker. It contains the Job
// itself and the queue job it came from, so the worker can acknowledge it.
type WorkerJob struct {
	*Job
	qj *queue.Job
}

// Ack acknowledges the underlying queue job, if any.
func (j *WorkerJob) Ack() error {
	if j.qj == nil {
		return nil
	}

	return j.qj.Ack()
}

// Reject rejects the underlying queue job, if any.
func (j *WorkerJob) Reject(requeue bool) error {
	if j.qj == nil {
		return nil
	}

	return j.qj.Reject(requeue)
}

// Worker processes jobs from a channel.
type Worker struct {
	log        log.Logger
	do         func(log.Logger, *Job) error
	jobChannel chan *WorkerJob
	quit       chan struct{}
	running    atomic.Bool
}

// NewWorker creates a new Worker. The processing function is called for
// every job consumed from the channel.
func NewWorker(l log.Logger, do func(log.Logger, *Job) error, ch chan *WorkerJob) *Worker {
	return &Worker{
		log:        l,
		do:         do,
		jobChannel: ch,
		quit:       make(chan struct{}),
	}
}

// Start processes jobs from the input channel until it is stopped. Start
// blocks until the worker is stopped or the channel is closed.
func (w *Worker) Start() {
	w.running.Store(true)
	defer w.running.Store(false)

	w.log.Infof("worker started")
	for {
		select {
		case job, ok := <-w.jobChannel:
			if !ok {
				return
			}

			if err := w.do(w.log, job.Job); err != nil {
				if err := job.Reject(false); err != nil {
					w.log.Errorf(err, "error rejecting job")
				}

				w.log.Errorf(err, "error on job")
				continue
			}

			if err := job.Ack(); err != nil {
				w.log.Errorf(err, "error acking job")
			}
		case <-w.quit:
			return
		}
	}
}

// Stop stops the worker. It blocks until it is actually stopped. If it is
// currently processing a job, it will finish before stopping.
func (w *Worker) Stop() {
	w.quit <- struct{}{}
}

// IsRunning returns true if the worker is running.
func (w *Worker) IsRunning() bool {
	return w.running.Load()
}
