package cabhfuil

import (
	"fmt"
	"sync"
	"time"
)

// fakeSource is an in-memory Source for engine tests. Histories are built
// with commit and ref; the ref list can be mutated between Apply calls to
// simulate pushes, force-pushes and deletions.
type fakeSource struct {
	mu      sync.Mutex
	refs    map[string]*Ref
	commits map[Hash]*Commit
	diffs   map[Hash][]byte

	commitCalls int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		refs:    make(map[string]*Ref),
		commits: make(map[Hash]*Commit),
		diffs:   make(map[Hash][]byte),
	}
}

// commit registers a commit with the given diff against its first parent.
func (s *fakeSource) commit(id, message string, diff []byte, parents ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ph := make([]Hash, len(parents))
	for i, p := range parents {
		ph[i] = Hash(p)
	}

	s.commits[Hash(id)] = &Commit{
		Hash:     Hash(id),
		Parents:  ph,
		AuthorAt: time.Now(),
		CommitAt: time.Now(),
		Message:  message,
	}
	s.diffs[Hash(id)] = diff
}

func (s *fakeSource) branch(name, target string) {
	s.setRef("refs/heads/"+name, BranchRef, target)
}

func (s *fakeSource) tag(name, target string) {
	s.setRef("refs/tags/"+name, TagRef, target)
}

func (s *fakeSource) setRef(name string, kind RefKind, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[name] = &Ref{Name: name, Kind: kind, Target: Hash(target)}
}

func (s *fakeSource) removeRef(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, name)
}

func (s *fakeSource) ListRefs() (*RefSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]*Ref, 0, len(s.refs))
	for _, r := range s.refs {
		copied := *r
		refs = append(refs, &copied)
	}

	return NewRefSnapshot(time.Now(), refs), nil
}

func (s *fakeSource) Commits(ids []Hash) ([]*Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commitCalls++
	out := make([]*Commit, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.commits[id]; ok {
			out = append(out, c)
		}
	}

	return out, nil
}

func (s *fakeSource) Diff(id Hash) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.diffs[id]
	if !ok {
		return nil, fmt.Errorf("no diff for %s", id)
	}

	return d, nil
}

// lineDiff builds a minimal unified diff adding one line to a file.
func lineDiff(path, line string) []byte {
	return []byte(fmt.Sprintf("--- a/%s\n+++ b/%s\n@@ -1 +1,2 @@\n+%s\n", path, path, line))
}

// chainSource builds the common fixture: a mainline a<-b<-c with master at c
// and a stable branch plus release tag at a. Every commit carries a distinct
// diff.
func chainSource() *fakeSource {
	src := newFakeSource()
	src.commit("a", "first", lineDiff("f.go", "alpha"))
	src.commit("b", "second", lineDiff("f.go", "beta"), "a")
	src.commit("c", "third", lineDiff("f.go", "gamma"), "b")
	src.branch("master", "c")
	src.branch("stable/1.0", "a")
	src.tag("v1.0.0", "a")
	return src
}

func drain(ch <-chan Notification) []Notification {
	var out []Notification
	for {
		select {
		case n := <-ch:
			out = append(out, n)
		default:
			return out
		}
	}
}
