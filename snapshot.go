package cabhfuil

import (
	"gopkg.in/src-d/go-errors.v1"

	"github.com/SeanMooney/ca-bhfuil-sub001/graph"
	"github.com/SeanMooney/ca-bhfuil-sub001/match"
	"github.com/SeanMooney/ca-bhfuil-sub001/storage"
)

// ErrNotRestorable is returned by Restore on an engine that already holds
// state; restoring is only for priming a fresh engine from a cache.
var ErrNotRestorable = errors.NewKind("cannot restore: engine is %s")

// Snapshot exports the current published state for the persistence
// collaborator: ref pointers, generation numbers, per-ref bitsets and
// equivalence groups.
func (e *Engine) Snapshot(repository string) (*storage.IndexSnapshot, error) {
	s := e.snap()
	if s == nil {
		return nil, ErrNotReady.New()
	}

	refs, err := s.refs.References()
	if err != nil {
		return nil, err
	}

	saved := make([]storage.SavedRef, len(refs))
	for i, r := range refs {
		saved[i] = storage.SavedRef{
			Name:   r.Name,
			Kind:   string(r.Kind),
			Target: r.Target.String(),
		}
	}

	commits, covers := s.index.Export()
	return &storage.IndexSnapshot{
		Repository: repository,
		TakenAt:    s.refs.TakenAt,
		Refs:       saved,
		Commits:    commits,
		Covers:     covers,
		Groups:     s.table.Export(),
	}, nil
}

// Restore primes an Empty engine from a previously persisted snapshot and
// publishes it as Ready. The next Apply then only has to cover what changed
// since the snapshot was taken.
func (e *Engine) Restore(snap *storage.IndexSnapshot) error {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	if st := e.State(); st != Empty {
		return ErrNotRestorable.New(st)
	}

	refs := make([]*Ref, len(snap.Refs))
	for i, r := range snap.Refs {
		refs[i] = &Ref{Name: r.Name, Kind: RefKind(r.Kind), Target: Hash(r.Target)}
	}

	index := graph.FromExport(snap.Commits, snap.Covers)
	index.RebuildThreshold = e.rebuildThreshold

	e.current.Store(&snapshot{
		refs:  NewRefSnapshot(snap.TakenAt, refs),
		index: index,
		table: match.FromExport(snap.Groups),
	})
	e.setState(Ready)
	return nil
}
