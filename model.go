package cabhfuil

import (
	"sort"
	"time"
)

// Hash is an opaque commit identifier as reported by the git-access
// collaborator. The engine never inspects its format.
type Hash string

// ZeroHash is the empty commit identifier.
const ZeroHash Hash = ""

func (h Hash) String() string { return string(h) }

// IsZero returns true if the hash is the empty identifier.
func (h Hash) IsZero() bool { return h == ZeroHash }

// Commit is an immutable node of the history graph. Commits are created once,
// when first observed from a ref snapshot, and never mutated nor deleted.
type Commit struct {
	Hash     Hash
	Parents  []Hash
	Tree     Hash
	AuthorAt time.Time
	CommitAt time.Time
	Message  string
}

// IsRoot returns true if the commit has no parents.
func (c *Commit) IsRoot() bool { return len(c.Parents) == 0 }

// RefKind discriminates branches from tags.
type RefKind string

const (
	BranchRef RefKind = "branch"
	TagRef    RefKind = "tag"
)

// Ref is a named pointer into the commit graph. Refs are mirrored from the
// git-access collaborator and treated as read-only input per sync cycle.
type Ref struct {
	Name   string
	Kind   RefKind
	Target Hash
}

// RefSnapshot is an immutable view of a repository's refs at a point in
// time. It is the unit of input for Engine.Apply.
type RefSnapshot struct {
	TakenAt time.Time
	refs    []*Ref
	byName  map[string]*Ref
}

// NewRefSnapshot builds a snapshot from a list of refs. Refs are kept in
// deterministic name order. A later ref wins on duplicate names.
func NewRefSnapshot(takenAt time.Time, refs []*Ref) *RefSnapshot {
	byName := make(map[string]*Ref, len(refs))
	for _, r := range refs {
		byName[r.Name] = r
	}

	ordered := make([]*Ref, 0, len(byName))
	for _, r := range byName {
		ordered = append(ordered, r)
	}

	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Name < ordered[j].Name
	})

	return &RefSnapshot{TakenAt: takenAt, refs: ordered, byName: byName}
}

// References implements Referencer.
func (s *RefSnapshot) References() ([]*Ref, error) {
	return s.refs, nil
}

// ByName returns the ref with the given name, or nil.
func (s *RefSnapshot) ByName(name string) *Ref {
	return s.byName[name]
}

// Len returns the number of refs in the snapshot.
func (s *RefSnapshot) Len() int { return len(s.refs) }

// Referencer exposes the refs of some source, a repository or a snapshot.
type Referencer interface {
	// References returns the refs in deterministic order.
	References() ([]*Ref, error)
}

// EmptyRefSnapshot is a snapshot with no refs, used as the previous state of
// a repository that was never synced.
var EmptyRefSnapshot = NewRefSnapshot(time.Time{}, nil)
