package cabhfuil

import (
	"io"

	"github.com/satori/go.uuid"
	"gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrUnknownIdentifier is returned when a query references something
	// the engine has never seen: not a commit, not an equivalence key.
	ErrUnknownIdentifier = errors.NewKind("unknown identifier: %s")

	// ErrNotReady is returned when a query arrives before the first
	// successful Apply published a snapshot.
	ErrNotReady = errors.NewKind("engine has no ready snapshot yet")

	// ErrAlreadyStopped signals that an operation cannot be done because
	// the entity is already stopped.
	ErrAlreadyStopped = errors.NewKind("already stopped: %s")

	// ErrWaitForJobs means there are no more jobs at the moment, but
	// there can be in the future.
	ErrWaitForJobs = errors.NewKind("no more jobs at the moment")
)

// Job is a unit of work for the fleet: sync one repository to its current
// ref snapshot.
type Job struct {
	ID uuid.UUID
	// Path is the location of the repository to sync, as understood by
	// the git-access collaborator.
	Path string
}

// NewJob creates a Job for the given repository path.
func NewJob(path string) *Job {
	return &Job{ID: uuid.Must(uuid.NewV4()), Path: path}
}

// JobIter is an iterator of Job.
type JobIter interface {
	io.Closer
	// Next returns the next job. It returns io.EOF if there are no more
	// jobs. If there are no more jobs at the moment, but there can be
	// in the future, it returns an error of kind ErrWaitForJobs.
	Next() (*Job, error)
}
