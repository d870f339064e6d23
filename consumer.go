package cabhfuil

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/src-d/go-queue.v1"
)

// Consumer consumes sync jobs from a queue and uses a worker pool to
// process them.
type Consumer struct {
	Notifiers struct {
		QueueError func(error)
	}
	*WorkerPool

	queue     queue.Queue
	running   atomic.Bool
	startOnce *sync.Once
	stopOnce  *sync.Once
}

// NewConsumer creates a new consumer.
func NewConsumer(q queue.Queue, pool *WorkerPool) *Consumer {
	return &Consumer{
		WorkerPool: pool,
		queue:      q,
		startOnce:  &sync.Once{},
		stopOnce:   &sync.Once{},
	}
}

// IsRunning returns true if the consumer is running.
func (c *Consumer) IsRunning() bool {
	return c.running.Load()
}

// Start initializes the consumer and starts it. It blocks until the
// consumer is stopped.
func (c *Consumer) Start() {
	c.startOnce.Do(c.start)
}

// Stop stops the consumer.
func (c *Consumer) Stop() {
	c.stopOnce.Do(c.stop)
}

func (c *Consumer) backoff() {
	time.Sleep(time.Second * 5)
}

func (c *Consumer) reject(j *queue.Job, origErr error) {
	c.notifyQueueError(origErr)
	if err := j.Reject(true); err != nil {
		c.notifyQueueError(err)
	}
}

func (c *Consumer) start() {
	c.running.Store(true)
	defer c.running.Store(false)

	for {
		iter, err := c.queue.Consume(c.WorkerPool.Len())
		if err != nil {
			c.notifyQueueError(err)
			c.backoff()
			continue
		}

		if err := c.consume(iter); err == io.EOF {
			break
		} else if err != nil {
			c.notifyQueueError(err)
			c.backoff()
		}

		if err := iter.Close(); err != nil {
			c.notifyQueueError(err)
		}
	}
}

func (c *Consumer) consume(iter queue.JobIter) error {
	for {
		j, err := iter.Next()
		if queue.ErrEmptyJob.Is(err) {
			c.notifyQueueError(err)
			continue
		}

		if queue.ErrAlreadyClosed.Is(err) {
			return io.EOF
		}

		if err != nil {
			return err
		}

		if j == nil {
			return io.EOF
		}

		if !c.running.Load() {
			c.reject(j, ErrAlreadyStopped.New("cannot deliver job"))
			return io.EOF
		}

		job := &Job{}
		if err := j.Decode(job); err != nil {
			c.reject(j, err)
			continue
		}

		c.Do(&WorkerJob{Job: job, qj: j})
	}
}

func (c *Consumer) stop() {
	c.running.Store(false)
	_ = c.WorkerPool.Close()
}

func (c *Consumer) notifyQueueError(err error) {
	if c.Notifiers.QueueError == nil {
		return
	}

	c.Notifiers.QueueError(err)
}
