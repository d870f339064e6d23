package cabhfuil

import (
	"bytes"
	"time"

	"gopkg.in/src-d/go-errors.v1"
	git "gopkg.in/src-d/go-git.v4"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/object"
)

// ErrObjectTypeNotSupported is returned when a ref points, possibly through
// a tag chain, at something that is not a commit.
var ErrObjectTypeNotSupported = errors.NewKind("referenced object type not supported: %s")

// Source is the git-access collaborator: everything the engine consumes
// about a repository. The engine never fetches over the network nor touches
// a working tree; implementations read already-fetched data.
type Source interface {
	// ListRefs returns the current ref snapshot.
	ListRefs() (*RefSnapshot, error)
	// Commits returns the commits for the given identifiers, batched.
	// Identifiers that resolve to nothing are skipped, not an error; the
	// engine detects truly inconsistent snapshots via dangling ref tips.
	Commits(ids []Hash) ([]*Commit, error)
	// Diff returns the raw diff of a commit against its first parent. It
	// returns nil bytes for commits that cannot be diffed.
	Diff(id Hash) ([]byte, error)
}

// NewGitSource returns a Source reading from a go-git repository.
func NewGitSource(r *git.Repository) Source {
	return &gitSource{repo: r}
}

// OpenGitSource opens the repository at path and wraps it in a Source.
func OpenGitSource(path string) (Source, error) {
	r, err := git.PlainOpen(path)
	if err != nil {
		return nil, err
	}

	return NewGitSource(r), nil
}

type gitSource struct {
	repo *git.Repository
}

func (s *gitSource) ListRefs() (*RefSnapshot, error) {
	iter, err := s.repo.References()
	if err != nil {
		return nil, err
	}

	var refs []*Ref
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference || ref.Name().IsRemote() {
			return nil
		}

		var kind RefKind
		switch {
		case ref.Name().IsBranch():
			kind = BranchRef
		case ref.Name().IsTag():
			kind = TagRef
		default:
			return nil
		}

		c, err := resolveCommit(s.repo, ref.Hash())
		if ErrObjectTypeNotSupported.Is(err) {
			return nil
		}

		if err != nil {
			return err
		}

		refs = append(refs, &Ref{
			Name:   ref.Name().String(),
			Kind:   kind,
			Target: Hash(c.Hash.String()),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return NewRefSnapshot(time.Now(), refs), nil
}

func (s *gitSource) Commits(ids []Hash) ([]*Commit, error) {
	commits := make([]*Commit, 0, len(ids))
	for _, id := range ids {
		c, err := s.repo.CommitObject(plumbing.NewHash(id.String()))
		if err == plumbing.ErrObjectNotFound {
			continue
		}

		if err != nil {
			return nil, err
		}

		commits = append(commits, convertCommit(c))
	}

	return commits, nil
}

func (s *gitSource) Diff(id Hash) ([]byte, error) {
	c, err := s.repo.CommitObject(plumbing.NewHash(id.String()))
	if err != nil {
		return nil, err
	}

	var parentTree *object.Tree
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, nil // parent data missing, cannot be diffed
		}

		parentTree, err = parent.Tree()
		if err != nil {
			return nil, nil
		}
	}

	tree, err := c.Tree()
	if err != nil {
		return nil, nil
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, err
	}

	patch, err := changes.Patch()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := patch.Encode(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func convertCommit(c *object.Commit) *Commit {
	parents := make([]Hash, 0, c.NumParents())
	for _, p := range c.ParentHashes {
		parents = append(parents, Hash(p.String()))
	}

	return &Commit{
		Hash:     Hash(c.Hash.String()),
		Parents:  parents,
		Tree:     Hash(c.TreeHash.String()),
		AuthorAt: c.Author.When,
		CommitAt: c.Committer.When,
		Message:  c.Message,
	}
}

// resolveCommit follows tag objects until it finds a commit. Only tags and
// commits are resolvable; anything else is ErrObjectTypeNotSupported.
func resolveCommit(r *git.Repository, h plumbing.Hash) (*object.Commit, error) {
	obj, err := r.Object(plumbing.AnyObject, h)
	if err != nil {
		return nil, err
	}

	switch o := obj.(type) {
	case *object.Commit:
		return o, nil
	case *object.Tag:
		return resolveCommit(r, o.Target)
	default:
		return nil, ErrObjectTypeNotSupported.New(o.Type().String())
	}
}
