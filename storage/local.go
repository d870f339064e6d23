package storage

import "sync"

// LocalStore is a Store that isn't backed by any database. It keeps
// snapshots in memory, useful for tests and one-shot runs.
type LocalStore struct {
	mu    sync.RWMutex
	snaps map[string]*IndexSnapshot
}

// Local creates a new in-memory snapshot store.
func Local() *LocalStore {
	return &LocalStore{snaps: make(map[string]*IndexSnapshot)}
}

// Save honors the Store interface.
func (s *LocalStore) Save(snap *IndexSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snaps[snap.Repository] = copySnapshot(snap)
	return nil
}

// Load honors the Store interface.
func (s *LocalStore) Load(repository string) (*IndexSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[repository]
	if !ok {
		return nil, ErrNotFound.New(repository)
	}

	return copySnapshot(snap), nil
}

// copySnapshot keeps stored state independent from what callers mutate.
func copySnapshot(s *IndexSnapshot) *IndexSnapshot {
	out := &IndexSnapshot{
		Repository: s.Repository,
		TakenAt:    s.TakenAt,
		Refs:       append([]SavedRef(nil), s.Refs...),
	}

	for _, c := range s.Commits {
		c.Parents = append([]string(nil), c.Parents...)
		out.Commits = append(out.Commits, c)
	}

	for _, r := range s.Covers {
		buckets := make(map[int][]byte, len(r.Buckets))
		for i, b := range r.Buckets {
			buckets[i] = append([]byte(nil), b...)
		}

		r.Buckets = buckets
		out.Covers = append(out.Covers, r)
	}

	for _, g := range s.Groups {
		g.Members = append([]string(nil), g.Members...)
		g.Tokens = append([]string(nil), g.Tokens...)
		g.Prints = append([]string(nil), g.Prints...)
		out.Groups = append(out.Groups, g)
	}

	return out
}
