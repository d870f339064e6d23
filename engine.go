package cabhfuil

import (
	"context"
	"sync"
	"sync/atomic"

	"gopkg.in/src-d/go-log.v1"

	"github.com/SeanMooney/ca-bhfuil-sub001/graph"
	"github.com/SeanMooney/ca-bhfuil-sub001/match"
)

// State is the lifecycle state of an Engine.
type State string

const (
	// Empty means no snapshot was ever published; queries fail with
	// ErrNotReady.
	Empty State = "empty"
	// Building is the first Apply in progress.
	Building State = "building"
	// Ready means an immutable snapshot is published and query-safe.
	Ready State = "ready"
	// Updating is a subsequent Apply in progress. Queries keep being
	// served from the previous Ready snapshot.
	Updating State = "updating"
)

// NotificationKind is the type of a change notification.
type NotificationKind string

const (
	// RefMoved is emitted when a ref was created or its target changed,
	// force-pushes included. Cached distribution results naming the ref
	// must be invalidated.
	RefMoved NotificationKind = "ref-moved"
	// RefRemoved is emitted when a ref disappeared from the snapshot.
	RefRemoved NotificationKind = "ref-removed"
	// GroupFormed is emitted when a new equivalence group appeared.
	GroupFormed NotificationKind = "group-formed"
)

// Notification is one event of the change stream dependent caches consume
// to invalidate stale derived data.
type Notification struct {
	Kind  NotificationKind
	Ref   string
	Group match.GroupID
}

// snapshot is one immutable published version of the whole engine state.
// Readers that obtained it keep consistent, possibly stale, answers while an
// update builds the next one.
type snapshot struct {
	refs     *RefSnapshot
	index    *graph.Index
	table    *match.Table
	warnings []error
}

const (
	defaultBatchSize          = 512
	defaultNotificationBuffer = 128
)

// Engine owns the ancestry index and the equivalence table of a single
// repository. All queries are lock-free reads against the current published
// snapshot; Apply calls for the same engine are serialized.
type Engine struct {
	source Source
	log    log.Logger

	applyMu sync.Mutex // serializes Building/Updating transitions

	stateMu sync.Mutex
	state   State

	current atomic.Value // *snapshot

	notifications    chan Notification
	batchSize        int
	rebuildThreshold float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithBatchSize sets how many commits are requested from the git-access
// collaborator per batch while discovering newly reachable history.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithRebuildThreshold sets the new-commit fraction above which ref
// reachability is rebuilt from scratch instead of extended incrementally.
func WithRebuildThreshold(f float64) Option {
	return func(e *Engine) { e.rebuildThreshold = f }
}

// New creates an Engine reading from the given source. The engine starts
// Empty; call Apply to build the first snapshot.
func New(source Source, opts ...Option) *Engine {
	e := &Engine{
		source:           source,
		log:              log.New(nil),
		state:            Empty,
		notifications:    make(chan Notification, defaultNotificationBuffer),
		batchSize:        defaultBatchSize,
		rebuildThreshold: graph.DefaultRebuildThreshold,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

// Notifications returns the change stream. Events are dropped, with a
// warning logged, if the consumer falls behind the buffer.
func (e *Engine) Notifications() <-chan Notification {
	return e.notifications
}

func (e *Engine) notify(n Notification) {
	select {
	case e.notifications <- n:
	default:
		e.log.With(log.Fields{"kind": string(n.Kind), "ref": n.Ref}).
			Warningf("notification dropped, consumer too slow")
	}
}

// Apply fetches the current ref snapshot from the source and applies it.
func (e *Engine) Apply(ctx context.Context) error {
	refs, err := e.source.ListRefs()
	if err != nil {
		return err
	}

	return e.ApplySnapshot(ctx, refs)
}

// ApplySnapshot applies an externally obtained ref snapshot: it computes
// the delta against the previous snapshot, fetches only the newly reachable
// commits, extends the index and the equivalence table, and atomically
// publishes a new Ready snapshot. On any error, cancellation included, the
// previous snapshot stays published untouched.
func (e *Engine) ApplySnapshot(ctx context.Context, refs *RefSnapshot) error {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	prev := e.snap()
	if prev == nil {
		e.setState(Building)
	} else {
		e.setState(Updating)
	}

	next, notes, err := e.build(ctx, prev, refs)
	if err != nil {
		if prev == nil {
			e.setState(Empty)
		} else {
			e.setState(Ready)
		}

		return err
	}

	e.current.Store(next)
	e.setState(Ready)
	for _, n := range notes {
		e.notify(n)
	}

	return nil
}

// snap returns the published snapshot, or nil before the first successful
// Apply.
func (e *Engine) snap() *snapshot {
	s, _ := e.current.Load().(*snapshot)
	return s
}

func (e *Engine) build(ctx context.Context, prev *snapshot, refs *RefSnapshot) (*snapshot, []Notification, error) {
	oldRefs := Referencer(EmptyRefSnapshot)
	if prev != nil {
		oldRefs = prev.refs
	}

	changes, err := NewChanges(oldRefs, refs)
	if err != nil {
		return nil, nil, err
	}

	if len(changes) == 0 && prev != nil {
		// Same snapshot applied twice: query-equivalent, nothing to do.
		return prev, nil, nil
	}

	var index *graph.Index
	var table *match.Table
	if prev == nil {
		index = graph.New()
		table = match.NewTable()
	} else {
		index = prev.index.Clone()
		table = prev.table.Clone()
	}

	index.RebuildThreshold = e.rebuildThreshold

	moved := make(map[string]string)
	var removed []string
	var notes []Notification
	for _, cmd := range changes.Moved() {
		moved[cmd.New.Name] = cmd.New.Target.String()
		notes = append(notes, Notification{Kind: RefMoved, Ref: cmd.New.Name})
	}

	for _, cmd := range changes.Removed() {
		removed = append(removed, cmd.Old.Name)
		notes = append(notes, Notification{Kind: RefRemoved, Ref: cmd.Old.Name})
	}

	fresh, err := e.discover(ctx, index, changes)
	if err != nil {
		return nil, nil, err
	}

	graphCommits := make([]*graph.Commit, 0, len(fresh))
	for _, c := range fresh {
		parents := make([]string, len(c.Parents))
		for i, p := range c.Parents {
			parents[i] = p.String()
		}

		graphCommits = append(graphCommits, &graph.Commit{ID: c.Hash.String(), Parents: parents})
	}

	warns, err := index.Update(ctx, graphCommits, moved, removed)
	if err != nil {
		return nil, nil, err
	}

	for _, w := range warns {
		e.log.Warningf("%s", w)
	}

	groupNotes, err := e.register(ctx, table, index, fresh)
	if err != nil {
		return nil, nil, err
	}

	notes = append(notes, groupNotes...)
	next := &snapshot{refs: refs, index: index, table: table, warnings: warns}
	return next, notes, nil
}

// discover walks from the moved ref tips down to already indexed history
// and returns the newly reachable commits. Fetches from the source are
// batched to amortize its I/O; the walk itself never blocks.
func (e *Engine) discover(ctx context.Context, index *graph.Index, changes Changes) ([]*Commit, error) {
	seen := make(map[Hash]struct{})
	var frontier []Hash
	for _, cmd := range changes.Moved() {
		tip := cmd.New.Target
		if _, ok := seen[tip]; ok || index.HasCommit(tip.String()) {
			continue
		}

		seen[tip] = struct{}{}
		frontier = append(frontier, tip)
	}

	var fresh []*Commit
	for len(frontier) > 0 {
		select {
		case <-ctx.Done():
			return nil, graph.ErrBuildCancelled.Wrap(ctx.Err())
		default:
		}

		batch := frontier
		if len(batch) > e.batchSize {
			batch = batch[:e.batchSize]
		}

		frontier = frontier[len(batch):]

		commits, err := e.source.Commits(batch)
		if err != nil {
			return nil, err
		}

		for _, c := range commits {
			fresh = append(fresh, c)
			for _, p := range c.Parents {
				if _, ok := seen[p]; ok || index.HasCommit(p.String()) {
					continue
				}

				seen[p] = struct{}{}
				frontier = append(frontier, p)
			}
		}
	}

	return fresh, nil
}

// register runs the newly discovered commits through the equivalence
// matcher. Merge commits are never fingerprinted: their first-parent diff
// is the whole merged change and would group unrelated merges.
func (e *Engine) register(ctx context.Context, table *match.Table, index *graph.Index, fresh []*Commit) ([]Notification, error) {
	var notes []Notification
	for _, c := range fresh {
		select {
		case <-ctx.Done():
			return nil, graph.ErrBuildCancelled.Wrap(ctx.Err())
		default:
		}

		if len(c.Parents) > 1 {
			continue
		}

		if !index.HasCommit(c.Hash.String()) {
			continue // excluded as corrupt
		}

		diff, err := e.source.Diff(c.Hash)
		if err != nil {
			e.log.With(log.Fields{"commit": c.Hash.String()}).
				Warningf("commit cannot be diffed: %s", err)
			diff = nil
		}

		group, formed := table.Register(c.Hash.String(), diff, c.Message)
		if formed {
			notes = append(notes, Notification{Kind: GroupFormed, Group: group})
		}
	}

	return notes, nil
}

// Warnings returns the non-fatal warnings attached to the current snapshot.
func (e *Engine) Warnings() []error {
	s := e.snap()
	if s == nil {
		return nil
	}

	out := make([]error, len(s.warnings))
	copy(out, s.warnings)
	return out
}
