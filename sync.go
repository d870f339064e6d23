package cabhfuil

import (
	"context"
	"sync"
	"time"

	"gopkg.in/src-d/go-log.v1"

	"github.com/SeanMooney/ca-bhfuil-sub001/metrics"
	"github.com/SeanMooney/ca-bhfuil-sub001/storage"
)

// Syncer processes sync jobs: it opens the repository named by the job,
// applies its current ref snapshot to the per-repository engine and
// persists the resulting index. Syncer instances are safe for concurrent
// use; each repository gets exactly one engine, so updates to it serialize
// while different repositories proceed fully in parallel.
type Syncer struct {
	Notifiers struct {
		// Start function, if set, is called whenever a job is started.
		Start func(*Job)
		// Stop function, if set, is called whenever a job stops. If
		// there was an error, it is passed as second parameter,
		// otherwise, it is nil.
		Stop func(*Job, error)
	}

	// Store, if set, receives a snapshot after every successful sync and
	// primes engines for repositories seen for the first time.
	Store storage.Store

	// Open maps a job path to a Source. Defaults to OpenGitSource.
	Open func(path string) (Source, error)

	opts    []Option
	mu      sync.Mutex
	engines map[string]*Engine
}

// NewSyncer creates a Syncer persisting into store. Engine options are
// applied to every engine the syncer creates.
func NewSyncer(store storage.Store, opts ...Option) *Syncer {
	return &Syncer{
		Store:   store,
		Open:    OpenGitSource,
		opts:    opts,
		engines: make(map[string]*Engine),
	}
}

// Engine returns the engine owning the given repository path, creating it
// on first use. New engines are primed from the store when it holds a
// snapshot for the path.
func (s *Syncer) Engine(path string) (*Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.engines[path]; ok {
		return e, nil
	}

	src, err := s.Open(path)
	if err != nil {
		return nil, err
	}

	e := New(src, s.opts...)
	if s.Store != nil {
		snap, err := s.Store.Load(path)
		if err == nil {
			if err := e.Restore(snap); err != nil {
				return nil, err
			}
		} else if !storage.ErrNotFound.Is(err) {
			return nil, err
		}
	}

	s.engines[path] = e
	return e, nil
}

// Do syncs the repository of a job.
func (s *Syncer) Do(ctx context.Context, j *Job) error {
	s.notifyStart(j)
	start := time.Now()
	err := s.do(ctx, j)
	if err != nil {
		metrics.UpdateFailed()
	} else {
		metrics.UpdateProcessed(time.Since(start))
	}

	s.notifyStop(j, err)
	return err
}

func (s *Syncer) do(ctx context.Context, j *Job) error {
	e, err := s.Engine(j.Path)
	if err != nil {
		return err
	}

	before := 0
	if snap := e.snap(); snap != nil {
		before = snap.index.Len()
	}

	if err := e.Apply(ctx); err != nil {
		return err
	}

	after := e.snap().index.Len()
	metrics.CommitsIndexed(after - before)

	if s.Store == nil {
		return nil
	}

	snap, err := e.Snapshot(j.Path)
	if err != nil {
		return err
	}

	return s.Store.Save(snap)
}

func (s *Syncer) notifyStart(j *Job) {
	if s.Notifiers.Start == nil {
		return
	}

	s.Notifiers.Start(j)
}

func (s *Syncer) notifyStop(j *Job, err error) {
	if s.Notifiers.Stop == nil {
		return
	}

	s.Notifiers.Stop(j, err)
}

// NewSyncWorkerPool creates a WorkerPool that uses a Syncer to process
// jobs.
func NewSyncWorkerPool(l log.Logger, s *Syncer) *WorkerPool {
	return NewWorkerPool(l, func(wl log.Logger, j *Job) error {
		wl.With(log.Fields{"repo": j.Path, "job": j.ID.String()}).
			Debugf("sync started")
		return s.Do(context.Background(), j)
	})
}
