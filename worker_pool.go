package cabhfuil

import (
	"strconv"
	"sync"

	"gopkg.in/src-d/go-log.v1"
)

// WorkerPool is a pool of workers that can process jobs. It bounds how many
// repositories are synced in parallel, so the underlying git-access
// collaborator is never overwhelmed.
type WorkerPool struct {
	log        log.Logger
	do         func(log.Logger, *Job) error
	jobChannel chan *WorkerJob
	workers    []*Worker
	wg         *sync.WaitGroup
	m          *sync.Mutex
}

// NewWorkerPool creates a new empty worker pool. It takes a function to be
// used by workers to process jobs. The pool is started with no workers;
// SetWorkerCount must be called to start them.
func NewWorkerPool(l log.Logger, do func(log.Logger, *Job) error) *WorkerPool {
	return &WorkerPool{
		log:        l,
		do:         do,
		jobChannel: make(chan *WorkerJob),
		wg:         &sync.WaitGroup{},
		m:          &sync.Mutex{},
	}
}

// Do executes a job. It blocks until a worker is assigned to process the
// job and then returns, with the worker processing the job asynchronously.
func (wp *WorkerPool) Do(j *WorkerJob) {
	wp.jobChannel <- j
}

// SetWorkerCount changes the number of running workers. Workers are started
// or stopped as necessary to satisfy the new count. It blocks until all
// required workers are started or stopped. Each worker, if busy, finishes
// its current job before stopping.
func (wp *WorkerPool) SetWorkerCount(workers int) {
	wp.m.Lock()
	defer wp.m.Unlock()

	n := workers - len(wp.workers)
	if n > 0 {
		wp.add(n)
	} else if n < 0 {
		wp.del(-n)
	}
}

// Len returns the number of workers currently in the pool.
func (wp *WorkerPool) Len() int {
	wp.m.Lock()
	defer wp.m.Unlock()
	return len(wp.workers)
}

func (wp *WorkerPool) add(n int) {
	for i := 0; i < n; i++ {
		l := wp.log.New(log.Fields{"worker": strconv.Itoa(len(wp.workers))})
		w := NewWorker(l, wp.do, wp.jobChannel)
		wp.wg.Add(1)
		go func() {
			defer wp.wg.Done()
			w.Start()
		}()
		wp.workers = append(wp.workers, w)
	}
}

func (wp *WorkerPool) del(n int) {
	prev := len(wp.workers)
	wg := &sync.WaitGroup{}
	for i := prev - 1; i >= prev-n; i-- {
		wg.Add(1)
		w := wp.workers[i]
		wp.workers = wp.workers[:len(wp.workers)-1]
		go func() {
			w.Stop()
			wg.Done()
		}()
	}

	wg.Wait()
}

// Close stops all the workers in the pool and frees its resources. It
// blocks until it finishes.
func (wp *WorkerPool) Close() error {
	wp.SetWorkerCount(0)
	wp.wg.Wait()
	close(wp.jobChannel)
	return nil
}
