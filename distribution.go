package cabhfuil

import (
	"github.com/SeanMooney/ca-bhfuil-sub001/graph"
)

// Distribution is the answer to "which refs contain this change". Refs keep
// the order of the caller-supplied universe: maintainers pass release lines
// in release order and expect it back.
type Distribution struct {
	// Present are the universe refs whose tip reaches a member of the
	// change's equivalence group.
	Present []string
	// Missing are the universe refs that reach no member.
	Missing []string
	// Unresolvable are universe names the engine does not track. Their
	// presence never fails the query; results for the rest still hold.
	Unresolvable []string
}

// MissingReport is the answer to "what does each target ref lack from a
// source ref".
type MissingReport struct {
	Source string
	// PerTarget maps each resolvable target ref to the commits reachable
	// from Source whose equivalence group it does not contain, ordered by
	// ascending generation.
	PerTarget map[string][]Hash
	// Unresolvable are target names the engine does not track.
	Unresolvable []string
}

// Distribution resolves identifier to an equivalence group and splits the
// ref universe into refs containing the change and refs missing it. The
// identifier may be a commit hash, a cross-reference token or an equivalence
// group id; anything the engine has never seen fails with
// ErrUnknownIdentifier, so "no ref contains this" and "this is not a commit"
// stay distinguishable.
func (e *Engine) Distribution(identifier string, universe []string) (*Distribution, error) {
	s := e.snap()
	if s == nil {
		return nil, ErrNotReady.New()
	}

	members, err := resolveMembers(s, identifier)
	if err != nil {
		return nil, err
	}

	d := &Distribution{}
	for _, name := range universe {
		if !s.index.HasRef(name) {
			d.Unresolvable = append(d.Unresolvable, name)
			continue
		}

		if containsAny(s.index, name, members) {
			d.Present = append(d.Present, name)
		} else {
			d.Missing = append(d.Missing, name)
		}
	}

	return d, nil
}

// Equivalents returns every known commit carrying the same logical change
// as the identifier, the resolved commit itself included.
func (e *Engine) Equivalents(identifier string) ([]Hash, error) {
	s := e.snap()
	if s == nil {
		return nil, ErrNotReady.New()
	}

	members, err := resolveMembers(s, identifier)
	if err != nil {
		return nil, err
	}

	out := make([]Hash, len(members))
	for i, m := range members {
		out[i] = Hash(m)
	}

	return out, nil
}

// Contains reports whether the commit is an ancestor of (or equal to) the
// ref tip. Equivalents are not consulted; use Distribution for that.
func (e *Engine) Contains(ref string, id Hash) (bool, error) {
	s := e.snap()
	if s == nil {
		return false, ErrNotReady.New()
	}

	return s.index.Contains(ref, id.String())
}

// References returns every ref in the published snapshot, sorted by name.
func (e *Engine) References() ([]*Ref, error) {
	s := e.snap()
	if s == nil {
		return nil, ErrNotReady.New()
	}

	return s.refs.References()
}

// MissingFrom lists, per target ref, the commits reachable from source that
// the target contains neither directly nor through an equivalent. It is
// sugar over Distribution for "what do these release lines still lack".
func (e *Engine) MissingFrom(targets []string, source string) (*MissingReport, error) {
	s := e.snap()
	if s == nil {
		return nil, ErrNotReady.New()
	}

	reachable, err := s.index.ReachableFrom(source)
	if err != nil {
		if graph.ErrUnknownRef.Is(err) {
			return nil, ErrUnknownIdentifier.New(source)
		}

		return nil, err
	}

	report := &MissingReport{
		Source:    source,
		PerTarget: make(map[string][]Hash),
	}

	var resolvable []string
	for _, name := range targets {
		if !s.index.HasRef(name) {
			report.Unresolvable = append(report.Unresolvable, name)
			continue
		}

		resolvable = append(resolvable, name)
		report.PerTarget[name] = nil
	}

	for _, id := range reachable {
		members := groupMembers(s, id)
		for _, name := range resolvable {
			if !containsAny(s.index, name, members) {
				report.PerTarget[name] = append(report.PerTarget[name], Hash(id))
			}
		}
	}

	return report, nil
}

// resolveMembers turns an opaque query identifier into the member set of
// its equivalence group. A commit that was excluded from grouping (empty
// diff, merge) still resolves to itself.
func resolveMembers(s *snapshot, identifier string) ([]string, error) {
	if g, ok := s.table.Group(identifier); ok {
		return s.table.Members(g), nil
	}

	if s.index.HasCommit(identifier) {
		return []string{identifier}, nil
	}

	return nil, ErrUnknownIdentifier.New(identifier)
}

// groupMembers is resolveMembers for a commit known to be indexed.
func groupMembers(s *snapshot, id string) []string {
	if g, ok := s.table.Group(id); ok {
		return s.table.Members(g)
	}

	return []string{id}
}

func containsAny(x *graph.Index, ref string, members []string) bool {
	for _, m := range members {
		ok, err := x.Contains(ref, m)
		if err != nil {
			return false
		}

		if ok {
			return true
		}
	}

	return false
}
