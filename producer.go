package cabhfuil

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/src-d/go-queue.v1"
)

// Producer takes jobs from an iterator and publishes them to a queue.
type Producer struct {
	Notifiers struct {
		// Done is called after every publish attempt. When the job
		// iterator itself fails, the job is nil and only the error is
		// set; callbacks must not dereference the job unchecked.
		Done func(*Job, error)
	}

	queue     queue.Queue
	iter      JobIter
	running   atomic.Bool
	startOnce *sync.Once
	stopOnce  *sync.Once
	wg        *sync.WaitGroup
}

// NewProducer creates a new producer reading jobs from iter.
func NewProducer(iter JobIter, q queue.Queue) *Producer {
	return &Producer{
		queue:     q,
		iter:      iter,
		startOnce: &sync.Once{},
		stopOnce:  &sync.Once{},
		wg:        &sync.WaitGroup{},
	}
}

// IsRunning returns true if the producer is running.
func (p *Producer) IsRunning() bool {
	return p.running.Load()
}

// Start starts the producer. It blocks until the iterator is exhausted or
// Stop is called.
func (p *Producer) Start() {
	p.startOnce.Do(p.start)
}

// Stop stops the producer.
func (p *Producer) Stop() {
	p.stopOnce.Do(p.stop)
}

func (p *Producer) start() {
	p.running.Store(true)
	p.wg.Add(1)
	defer p.wg.Done()

	for p.running.Load() {
		j, err := p.iter.Next()
		if err == io.EOF {
			break
		}

		if ErrWaitForJobs.Is(err) {
			time.Sleep(time.Second)
			continue
		}

		if err != nil {
			p.notifyDone(nil, err)
			continue
		}

		err = p.add(j)
		p.notifyDone(j, err)
	}

	p.running.Store(false)
}

func (p *Producer) add(j *Job) error {
	qj, err := queue.NewJob()
	if err != nil {
		return err
	}

	if err := qj.Encode(j); err != nil {
		return err
	}

	return p.queue.Publish(qj)
}

func (p *Producer) stop() {
	p.running.Store(false)
	p.wg.Wait()
	_ = p.iter.Close()
}

func (p *Producer) notifyDone(j *Job, err error) {
	if p.Notifiers.Done == nil {
		return
	}

	p.Notifiers.Done(j, err)
}
