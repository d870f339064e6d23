package match

import "sort"

// GroupID identifies an equivalence group. For diffable commits it is the
// fingerprint of the first registered member; for commits that cannot be
// diffed it is the commit identifier itself, forming a group of one.
type GroupID string

// Table maps commits to equivalence groups. Group membership only grows: a
// new commit may join an existing group, but a member's group never changes
// after assignment, and groups never merge.
type Table struct {
	byCommit map[string]GroupID
	members  map[GroupID][]string
	tokens   map[string]GroupID
	byPrint  map[Fingerprint]GroupID
}

// NewTable creates an empty equivalence table.
func NewTable() *Table {
	return &Table{
		byCommit: make(map[string]GroupID),
		members:  make(map[GroupID][]string),
		tokens:   make(map[string]GroupID),
		byPrint:  make(map[Fingerprint]GroupID),
	}
}

// Register assigns a commit to its equivalence group and returns it, along
// with whether a brand new group was formed. Registration is idempotent.
//
// diff is the raw diff of the commit against its first parent, or nil when
// the commit cannot be diffed; message is the commit message, mined for
// cross-reference tokens. Commits whose diff normalizes to nothing (merge
// commits with no net change, whitespace-only changes) are excluded from
// grouping and get the empty GroupID.
func (t *Table) Register(id string, diff []byte, message string) (GroupID, bool) {
	if g, ok := t.byCommit[id]; ok {
		return g, false
	}

	if diff == nil {
		// Undiffable: a group of one, identified by the commit itself.
		g := GroupID(id)
		t.byCommit[id] = g
		t.members[g] = []string{id}
		return g, true
	}

	normalized := Normalize(diff)
	if len(normalized) == 0 {
		return "", false
	}

	fp := Sum(normalized)
	tokens := Tokens(message)

	g, ok := t.byPrint[fp]
	if !ok {
		// No exact match. A preserved token can still tie this commit to
		// an existing group whose diff context drifted; the fingerprint
		// then becomes an alternate key into that group.
		for _, tok := range tokens {
			if tg, found := t.tokens[tok]; found {
				g, ok = tg, true
				break
			}
		}
	}

	newGroup := false
	if !ok {
		g = GroupID(fp)
		newGroup = true
	}

	t.byPrint[fp] = g
	t.byCommit[id] = g
	t.members[g] = insertSorted(t.members[g], id)
	for _, tok := range tokens {
		if _, taken := t.tokens[tok]; !taken {
			t.tokens[tok] = g
		}
	}

	return g, newGroup
}

// Group resolves a key to an equivalence group. The key may be a commit
// identifier, a cross-reference token or a group identifier.
func (t *Table) Group(key string) (GroupID, bool) {
	if g, ok := t.byCommit[key]; ok {
		return g, true
	}

	if g, ok := t.tokens[key]; ok {
		return g, true
	}

	if _, ok := t.members[GroupID(key)]; ok {
		return GroupID(key), true
	}

	return "", false
}

// Members returns the commits of a group, in identifier order.
func (t *Table) Members(g GroupID) []string {
	members := t.members[g]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// Len returns the number of registered commits.
func (t *Table) Len() int { return len(t.byCommit) }

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	c := NewTable()
	for id, g := range t.byCommit {
		c.byCommit[id] = g
	}

	for g, members := range t.members {
		out := make([]string, len(members))
		copy(out, members)
		c.members[g] = out
	}

	for tok, g := range t.tokens {
		c.tokens[tok] = g
	}

	for fp, g := range t.byPrint {
		c.byPrint[fp] = g
	}

	return c
}

// ExportedGroup is the serializable form of an equivalence group.
type ExportedGroup struct {
	ID      GroupID
	Members []string
	Tokens  []string
	Prints  []string
}

// Export dumps the table for a caller-owned cache, groups ordered by id.
func (t *Table) Export() []ExportedGroup {
	tokensByGroup := make(map[GroupID][]string)
	for tok, g := range t.tokens {
		tokensByGroup[g] = insertSorted(tokensByGroup[g], tok)
	}

	printsByGroup := make(map[GroupID][]string)
	for fp, g := range t.byPrint {
		printsByGroup[g] = insertSorted(printsByGroup[g], string(fp))
	}

	out := make([]ExportedGroup, 0, len(t.members))
	for g := range t.members {
		out = append(out, ExportedGroup{
			ID:      g,
			Members: t.Members(g),
			Tokens:  tokensByGroup[g],
			Prints:  printsByGroup[g],
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FromExport reconstructs a table previously dumped with Export.
func FromExport(groups []ExportedGroup) *Table {
	t := NewTable()
	for _, g := range groups {
		members := make([]string, len(g.Members))
		copy(members, g.Members)
		sort.Strings(members)
		t.members[g.ID] = members
		for _, id := range members {
			t.byCommit[id] = g.ID
		}

		for _, tok := range g.Tokens {
			t.tokens[tok] = g.ID
		}

		for _, fp := range g.Prints {
			t.byPrint[Fingerprint(fp)] = g.ID
		}
	}

	return t
}

func insertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	if i < len(list) && list[i] == s {
		return list
	}

	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}
