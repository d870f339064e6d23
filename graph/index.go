// Package graph implements the ancestry index: generation numbers over the
// commit DAG plus per-ref layered bitsets answering "is this commit reachable
// from that ref tip" without walking the graph.
package graph

import (
	"context"
	"sort"

	"gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrDanglingRef means a ref points at a commit that is not part of
	// the supplied commit set. The caller must resupply a consistent
	// snapshot; the index is left untouched.
	ErrDanglingRef = errors.NewKind("ref %s points at missing commit %s")

	// ErrCorruptHistory flags malformed parent data, a cycle or a missing
	// parent. It is reported as a warning; the offending subgraph is
	// excluded and the rest of the index stays usable.
	ErrCorruptHistory = errors.NewKind("corrupt history: %s")

	// ErrBuildCancelled is returned when a build or update walk is
	// cancelled through its context. No partial state is published.
	ErrBuildCancelled = errors.NewKind("build cancelled")

	// ErrUnknownRef is returned by queries against a ref the index does
	// not track.
	ErrUnknownRef = errors.NewKind("unknown ref: %s")
)

// Commit is the minimal node the index needs: an identifier and the ordered
// identifiers of its parents.
type Commit struct {
	ID      string
	Parents []string
}

const (
	// bucketSpan is the number of consecutive generation numbers that
	// share one bitset layer.
	bucketSpan = 1024

	// cancelCheckEvery bounds how often walk loops poll the context.
	cancelCheckEvery = 1024

	// DefaultRebuildThreshold is the fraction of new commits in an update
	// above which all ref covers are rebuilt from scratch instead of
	// extended incrementally.
	DefaultRebuildThreshold = 0.2
)

type entry struct {
	id      string
	parents []string // resolvable parents only
	gen     uint32
	bucket  int
	slot    uint32
}

type refCover struct {
	tip     string
	buckets map[int]*Bitset
}

func (c *refCover) clone() *refCover {
	buckets := make(map[int]*Bitset, len(c.buckets))
	for i, b := range c.buckets {
		buckets[i] = b.Clone()
	}

	return &refCover{tip: c.tip, buckets: buckets}
}

func (c *refCover) covered(e *entry) bool {
	b, ok := c.buckets[e.bucket]
	return ok && b.Test(e.slot)
}

func (c *refCover) mark(e *entry) {
	b, ok := c.buckets[e.bucket]
	if !ok {
		b = NewBitset()
		c.buckets[e.bucket] = b
	}

	b.Set(e.slot)
}

// Index answers containment queries over a commit DAG. It is not safe for
// concurrent mutation; the engine publishes immutable clones instead.
type Index struct {
	entries  map[string]*entry
	slots    map[int]uint32 // next free slot per bucket
	refs     map[string]*refCover
	excluded map[string]struct{}

	// RebuildThreshold is the new-commit fraction that triggers a full
	// cover rebuild on update. Zero means DefaultRebuildThreshold.
	RebuildThreshold float64
}

// New creates an empty index.
func New() *Index {
	return &Index{
		entries:  make(map[string]*entry),
		slots:    make(map[int]uint32),
		refs:     make(map[string]*refCover),
		excluded: make(map[string]struct{}),
	}
}

// Build constructs an index from a full commit set and a name to tip commit
// mapping. It returns non-fatal warnings (corrupt subgraphs, dropped parent
// edges) next to the index. A ref pointing outside the commit set fails the
// whole build with ErrDanglingRef.
func Build(ctx context.Context, commits []*Commit, refs map[string]string) (*Index, []error, error) {
	x := New()
	warns, err := x.ingest(ctx, commits)
	if err != nil {
		return nil, warns, err
	}

	for _, name := range sortedKeys(refs) {
		tip := refs[name]
		if !x.HasCommit(tip) {
			return nil, warns, ErrDanglingRef.New(name, tip)
		}

		cover, err := x.freshCover(ctx, tip)
		if err != nil {
			return nil, warns, err
		}

		x.refs[name] = cover
	}

	return x, warns, nil
}

// Update incrementally extends the index: commits are the newly reachable
// commits, moved maps ref names to their new tips (creations included), and
// removed lists refs that disappeared. Generation numbers of commits already
// indexed are never recomputed.
func (x *Index) Update(ctx context.Context, commits []*Commit, moved map[string]string, removed []string) ([]error, error) {
	before := len(x.entries)
	warns, err := x.ingest(ctx, commits)
	if err != nil {
		return warns, err
	}

	for _, name := range sortedKeys(moved) {
		if !x.HasCommit(moved[name]) {
			return warns, ErrDanglingRef.New(name, moved[name])
		}
	}

	for _, name := range removed {
		delete(x.refs, name)
	}

	added := len(x.entries) - before
	if x.needsFullRebuild(before, added) {
		for name, cover := range x.refs {
			if _, ok := moved[name]; ok {
				continue // rebuilt below with its new tip
			}

			fresh, err := x.freshCover(ctx, cover.tip)
			if err != nil {
				return warns, err
			}

			x.refs[name] = fresh
		}
	}

	for _, name := range sortedKeys(moved) {
		tip := moved[name]
		cover, err := x.moveRef(ctx, name, tip)
		if err != nil {
			return warns, err
		}

		x.refs[name] = cover
	}

	return warns, nil
}

// Contains reports whether commit id is an ancestor of (or equal to) the
// tip of ref. Unknown commits are simply not contained; unknown refs are an
// error of kind ErrUnknownRef.
func (x *Index) Contains(ref, id string) (bool, error) {
	cover, ok := x.refs[ref]
	if !ok {
		return false, ErrUnknownRef.New(ref)
	}

	e, ok := x.entries[id]
	if !ok {
		return false, nil
	}

	if _, skip := x.excluded[id]; skip {
		return false, nil
	}

	// Generation prune: an ancestor always has a strictly smaller
	// generation than any commit it reaches, so anything newer than the
	// tip is out without touching the bitsets.
	tip := x.entries[cover.tip]
	if e.gen > tip.gen {
		return false, nil
	}

	return cover.covered(e), nil
}

// HasCommit reports whether the commit is indexed and not excluded.
func (x *Index) HasCommit(id string) bool {
	if _, skip := x.excluded[id]; skip {
		return false
	}

	_, ok := x.entries[id]
	return ok
}

// HasRef reports whether the ref is tracked.
func (x *Index) HasRef(name string) bool {
	_, ok := x.refs[name]
	return ok
}

// RefTip returns the tip the index holds for a ref.
func (x *Index) RefTip(name string) (string, bool) {
	cover, ok := x.refs[name]
	if !ok {
		return "", false
	}

	return cover.tip, true
}

// Refs returns the tracked ref names in lexicographic order.
func (x *Index) Refs() []string {
	names := make([]string, 0, len(x.refs))
	for name := range x.refs {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// Generation returns the generation number assigned to a commit.
func (x *Index) Generation(id string) (uint32, bool) {
	e, ok := x.entries[id]
	if !ok {
		return 0, false
	}

	return e.gen, true
}

// Len returns the number of indexed commits, excluded ones included.
func (x *Index) Len() int { return len(x.entries) }

// ReachableFrom returns every commit reachable from the tip of ref, ordered
// by ascending generation number, ties broken by identifier.
func (x *Index) ReachableFrom(ref string) ([]string, error) {
	cover, ok := x.refs[ref]
	if !ok {
		return nil, ErrUnknownRef.New(ref)
	}

	var out []string
	seen := make(map[string]struct{})
	stack := []string{cover.tip}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, done := seen[id]; done {
			continue
		}

		seen[id] = struct{}{}
		e, ok := x.entries[id]
		if !ok {
			continue
		}

		out = append(out, id)
		stack = append(stack, e.parents...)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := x.entries[out[i]], x.entries[out[j]]
		if a.gen != b.gen {
			return a.gen < b.gen
		}

		return a.id < b.id
	})

	return out, nil
}

// Clone returns a copy of the index that can be mutated without affecting
// readers of the original. Entries are immutable and shared.
func (x *Index) Clone() *Index {
	entries := make(map[string]*entry, len(x.entries))
	for id, e := range x.entries {
		entries[id] = e
	}

	slots := make(map[int]uint32, len(x.slots))
	for b, s := range x.slots {
		slots[b] = s
	}

	refs := make(map[string]*refCover, len(x.refs))
	for name, cover := range x.refs {
		refs[name] = cover.clone()
	}

	excluded := make(map[string]struct{}, len(x.excluded))
	for id := range x.excluded {
		excluded[id] = struct{}{}
	}

	return &Index{
		entries:          entries,
		slots:            slots,
		refs:             refs,
		excluded:         excluded,
		RebuildThreshold: x.RebuildThreshold,
	}
}

func (x *Index) needsFullRebuild(before, added int) bool {
	if before == 0 || added == 0 {
		return false
	}

	threshold := x.RebuildThreshold
	if threshold == 0 {
		threshold = DefaultRebuildThreshold
	}

	return float64(added)/float64(before+added) > threshold
}

// ingest assigns generation numbers to not-yet-indexed commits, parents
// before children, and detects cycles. Already indexed commits keep their
// numbers untouched.
func (x *Index) ingest(ctx context.Context, commits []*Commit) ([]error, error) {
	var warns []error

	pending := make(map[string]*Commit, len(commits))
	for _, c := range commits {
		if _, ok := x.entries[c.ID]; ok {
			continue
		}

		pending[c.ID] = c
	}

	// Kahn's algorithm over the pending subset. Parents already in the
	// index count as resolved; parents found nowhere are dropped edges.
	blocking := make(map[string]int, len(pending))
	dependants := make(map[string][]string)
	for id, c := range pending {
		for _, p := range c.Parents {
			if _, ok := pending[p]; ok {
				blocking[id]++
				dependants[p] = append(dependants[p], id)
			}
		}
	}

	var ready []string
	for id := range pending {
		if blocking[id] == 0 {
			ready = append(ready, id)
		}
	}

	var processed, sinceCheck int
	for len(ready) > 0 {
		sort.Strings(ready)
		var next []string
		for _, id := range ready {
			if sinceCheck++; sinceCheck >= cancelCheckEvery {
				sinceCheck = 0
				select {
				case <-ctx.Done():
					return warns, ErrBuildCancelled.Wrap(ctx.Err())
				default:
				}
			}

			c := pending[id]
			var gen uint32
			var parents []string
			for _, p := range c.Parents {
				pe, ok := x.entries[p]
				if !ok {
					warns = append(warns, ErrCorruptHistory.New(
						"commit "+id+" references missing parent "+p+"; edge dropped"))
					continue
				}

				parents = append(parents, p)
				if pe.gen >= gen {
					gen = pe.gen
				}
			}

			gen++
			bucket := int(gen / bucketSpan)
			e := &entry{
				id:      id,
				parents: parents,
				gen:     gen,
				bucket:  bucket,
				slot:    x.slots[bucket],
			}
			x.slots[bucket]++
			x.entries[id] = e
			processed++

			for _, child := range dependants[id] {
				blocking[child]--
				if blocking[child] == 0 {
					next = append(next, child)
				}
			}
		}

		ready = next
	}

	if processed < len(pending) {
		// Whatever was never unblocked sits on a cycle. Git history is a
		// DAG, so this is corrupt input: exclude the subgraph, keep the
		// index usable.
		var stuck []string
		for id := range pending {
			if _, ok := x.entries[id]; !ok {
				stuck = append(stuck, id)
				x.excluded[id] = struct{}{}
			}
		}

		sort.Strings(stuck)
		warns = append(warns, ErrCorruptHistory.New(
			"parent data implies a cycle; excluded commits: "+joinMax(stuck, 10)))
	}

	return warns, nil
}

// freshCover walks the graph from tip and records every reachable commit.
func (x *Index) freshCover(ctx context.Context, tip string) (*refCover, error) {
	cover := &refCover{tip: tip, buckets: make(map[int]*Bitset)}
	return cover, x.extend(ctx, cover, tip)
}

// moveRef computes the cover of a ref after its tip moved. A fast-forward
// keeps the previous cover and only walks the newly reachable part; any
// other move (force-push, creation) rebuilds the cover from scratch.
func (x *Index) moveRef(ctx context.Context, name, tip string) (*refCover, error) {
	old, ok := x.refs[name]
	if !ok || old.tip == "" {
		return x.freshCover(ctx, tip)
	}

	ff, err := x.isAncestor(ctx, old.tip, tip)
	if err != nil {
		return nil, err
	}

	if !ff {
		return x.freshCover(ctx, tip)
	}

	cover := old.clone()
	cover.tip = tip
	return cover, x.extend(ctx, cover, tip)
}

// extend marks everything reachable from start, stopping at commits the
// cover already contains.
func (x *Index) extend(ctx context.Context, cover *refCover, start string) error {
	var sinceCheck int
	stack := []string{start}
	for len(stack) > 0 {
		if sinceCheck++; sinceCheck >= cancelCheckEvery {
			sinceCheck = 0
			select {
			case <-ctx.Done():
				return ErrBuildCancelled.Wrap(ctx.Err())
			default:
			}
		}

		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		e, ok := x.entries[id]
		if !ok {
			continue
		}

		if cover.covered(e) {
			continue
		}

		cover.mark(e)
		stack = append(stack, e.parents...)
	}

	return nil
}

// isAncestor reports whether old is an ancestor of (or equal to) tip. The
// walk prunes on generation numbers.
func (x *Index) isAncestor(ctx context.Context, old, tip string) (bool, error) {
	oldEntry, ok := x.entries[old]
	if !ok {
		return false, nil
	}

	var sinceCheck int
	seen := make(map[string]struct{})
	stack := []string{tip}
	for len(stack) > 0 {
		if sinceCheck++; sinceCheck >= cancelCheckEvery {
			sinceCheck = 0
			select {
			case <-ctx.Done():
				return false, ErrBuildCancelled.Wrap(ctx.Err())
			default:
			}
		}

		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == old {
			return true, nil
		}

		if _, done := seen[id]; done {
			continue
		}

		seen[id] = struct{}{}
		e, ok := x.entries[id]
		if !ok || e.gen <= oldEntry.gen {
			continue
		}

		stack = append(stack, e.parents...)
	}

	return false, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	return keys
}

func joinMax(ids []string, max int) string {
	if len(ids) > max {
		ids = ids[:max]
	}

	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}

		out += id
	}

	return out
}
