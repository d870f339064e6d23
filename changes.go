package cabhfuil

import "sort"

// Action is the kind of change a Command applies to a ref.
type Action string

const (
	Create  Action = "create"
	Update  Action = "update"
	Delete  Action = "delete"
	Invalid Action = "invalid"
)

// Command describes a change to a single ref between two snapshots. It can
// be:
// - Create: the ref did not exist before.
// - Update: the ref exists in both snapshots but its target moved. A
//   force-push is still an Update; the engine reflects current reality and
//   does not judge history rewrites.
// - Delete: the ref no longer exists.
type Command struct {
	Old *Ref
	New *Ref
}

// Action returns the action this command represents, depending on its
// content.
func (c *Command) Action() Action {
	if c.Old == nil && c.New == nil {
		return Invalid
	}

	if c.Old == nil {
		return Create
	}

	if c.New == nil {
		return Delete
	}

	return Update
}

// Name returns the name of the ref affected by the command.
func (c *Command) Name() string {
	if c.New != nil {
		return c.New.Name
	}

	if c.Old != nil {
		return c.Old.Name
	}

	return ""
}

// Changes is the delta between two ref snapshots, one Command per affected
// ref, ordered by ref name.
type Changes []*Command

// NewChanges returns the Changes needed to get from the refs of old to the
// refs of new. Refs present in both with the same target produce no command.
// A ref whose kind changed (branch deleted, tag with the same name created)
// is reported as an update: the engine only cares about name and target.
func NewChanges(old, new Referencer) (Changes, error) {
	newRefs, err := new.References()
	if err != nil {
		return nil, err
	}

	oldRefs, err := old.References()
	if err != nil {
		return nil, err
	}

	oldByName := refsByName(oldRefs)

	var changes Changes
	for _, newRef := range newRefs {
		oldRef, ok := oldByName[newRef.Name]
		if !ok {
			changes = append(changes, &Command{New: newRef})
			continue
		}

		delete(oldByName, newRef.Name)
		if oldRef.Target != newRef.Target {
			changes = append(changes, &Command{Old: oldRef, New: newRef})
		}
	}

	for _, oldRef := range oldByName {
		changes = append(changes, &Command{Old: oldRef})
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Name() < changes[j].Name()
	})

	return changes, nil
}

// Moved returns the commands that introduce a new target: creates and
// updates. Those are the refs whose reachable set has to be (re)computed.
func (c Changes) Moved() []*Command {
	var moved []*Command
	for _, cmd := range c {
		if cmd.Action() == Create || cmd.Action() == Update {
			moved = append(moved, cmd)
		}
	}

	return moved
}

// Removed returns the delete commands.
func (c Changes) Removed() []*Command {
	var removed []*Command
	for _, cmd := range c {
		if cmd.Action() == Delete {
			removed = append(removed, cmd)
		}
	}

	return removed
}

func refsByName(refs []*Ref) map[string]*Ref {
	result := make(map[string]*Ref, len(refs))
	for _, r := range refs {
		result[r.Name] = r
	}

	return result
}
