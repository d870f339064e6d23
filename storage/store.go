// Package storage persists engine snapshots so an index survives process
// restarts: generation numbers, per-ref reachability bitsets and equivalence
// groups. The engine owns the data; this package only moves it in and out.
package storage

import (
	"time"

	"gopkg.in/src-d/go-errors.v1"

	"github.com/SeanMooney/ca-bhfuil-sub001/graph"
	"github.com/SeanMooney/ca-bhfuil-sub001/match"
)

// ErrNotFound is returned when no snapshot is stored for a repository.
var ErrNotFound = errors.NewKind("no snapshot stored for repository %s")

// SavedRef is a persisted ref pointer.
type SavedRef struct {
	Name   string
	Kind   string
	Target string
}

// IndexSnapshot is the serializable form of one engine snapshot.
type IndexSnapshot struct {
	Repository string
	TakenAt    time.Time
	Refs       []SavedRef
	Commits    []graph.ExportedCommit
	Covers     []graph.ExportedRef
	Groups     []match.ExportedGroup
}

// Store persists and reloads index snapshots, one per repository. A Save
// replaces the previous snapshot of the same repository atomically.
type Store interface {
	Save(s *IndexSnapshot) error
	Load(repository string) (*IndexSnapshot, error)
}
