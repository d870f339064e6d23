package graph

import "sort"

// ExportedCommit is the serializable form of an index entry.
type ExportedCommit struct {
	ID      string
	Parents []string
	Gen     uint32
	Bucket  int
	Slot    uint32
}

// ExportedRef is the serializable form of a ref cover: its tip plus one
// bitset payload per generation bucket it overlaps.
type ExportedRef struct {
	Name    string
	Tip     string
	Buckets map[int][]byte
}

// Export dumps the index in a form a caller-owned cache can persist. The
// output is deterministic: commits ordered by (generation, id), refs by name.
func (x *Index) Export() ([]ExportedCommit, []ExportedRef) {
	commits := make([]ExportedCommit, 0, len(x.entries))
	for _, e := range x.entries {
		parents := make([]string, len(e.parents))
		copy(parents, e.parents)
		commits = append(commits, ExportedCommit{
			ID:      e.id,
			Parents: parents,
			Gen:     e.gen,
			Bucket:  e.bucket,
			Slot:    e.slot,
		})
	}

	sort.Slice(commits, func(i, j int) bool {
		if commits[i].Gen != commits[j].Gen {
			return commits[i].Gen < commits[j].Gen
		}

		return commits[i].ID < commits[j].ID
	})

	refs := make([]ExportedRef, 0, len(x.refs))
	for _, name := range x.Refs() {
		cover := x.refs[name]
		buckets := make(map[int][]byte, len(cover.buckets))
		for i, b := range cover.buckets {
			buckets[i] = b.Bytes()
		}

		refs = append(refs, ExportedRef{Name: name, Tip: cover.tip, Buckets: buckets})
	}

	return commits, refs
}

// FromExport reconstructs an index previously dumped with Export.
func FromExport(commits []ExportedCommit, refs []ExportedRef) *Index {
	x := New()
	for _, c := range commits {
		parents := make([]string, len(c.Parents))
		copy(parents, c.Parents)
		x.entries[c.ID] = &entry{
			id:      c.ID,
			parents: parents,
			gen:     c.Gen,
			bucket:  c.Bucket,
			slot:    c.Slot,
		}

		if c.Slot >= x.slots[c.Bucket] {
			x.slots[c.Bucket] = c.Slot + 1
		}
	}

	for _, r := range refs {
		cover := &refCover{tip: r.Tip, buckets: make(map[int]*Bitset, len(r.Buckets))}
		for i, payload := range r.Buckets {
			cover.buckets[i] = BitsetFromBytes(payload)
		}

		x.refs[r.Name] = cover
	}

	return x
}
