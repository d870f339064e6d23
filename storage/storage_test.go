package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/SeanMooney/ca-bhfuil-sub001/graph"
	"github.com/SeanMooney/ca-bhfuil-sub001/match"
)

// sampleSnapshot builds a real exported index instead of hand-rolled rows, so
// the round trip is checked against what the engine actually persists.
func sampleSnapshot(t *testing.T, repository string) *IndexSnapshot {
	t.Helper()

	commits := []*graph.Commit{
		{ID: "a"},
		{ID: "b", Parents: []string{"a"}},
		{ID: "c", Parents: []string{"b"}},
	}

	index, warns, err := graph.Build(context.Background(), commits, map[string]string{
		"refs/heads/master":     "c",
		"refs/heads/stable/1.0": "a",
	})
	require.NoError(t, err)
	require.Empty(t, warns)

	table := match.NewTable()
	table.Register("b", []byte("--- a/f\n+++ b/f\n@@ -1 +1 @@\n+line\n"),
		"Change-Id: Ideadbeefdeadbeefdeadbeefdeadbeefdeadbeef\n")

	exportedCommits, covers := index.Export()
	return &IndexSnapshot{
		Repository: repository,
		TakenAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Refs: []SavedRef{
			{Name: "refs/heads/master", Kind: "branch", Target: "c"},
			{Name: "refs/heads/stable/1.0", Kind: "branch", Target: "a"},
		},
		Commits: exportedCommits,
		Covers:  covers,
		Groups:  table.Export(),
	}
}

// requireUsable restores an index and a table from the snapshot and checks
// they answer correctly.
func requireUsable(t *testing.T, snap *IndexSnapshot) {
	t.Helper()
	require := require.New(t)

	index := graph.FromExport(snap.Commits, snap.Covers)
	ok, err := index.Contains("refs/heads/master", "a")
	require.NoError(err)
	require.True(ok)

	ok, err = index.Contains("refs/heads/stable/1.0", "b")
	require.NoError(err)
	require.False(ok)

	table := match.FromExport(snap.Groups)
	g, ok := table.Group("b")
	require.True(ok)
	require.Equal([]string{"b"}, table.Members(g))

	_, ok = table.Group("Ideadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	require.True(ok)
}

func testStore(t *testing.T, store Store) {
	require := require.New(t)

	_, err := store.Load("repo")
	require.True(ErrNotFound.Is(err))

	snap := sampleSnapshot(t, "repo")
	require.NoError(store.Save(snap))

	loaded, err := store.Load("repo")
	require.NoError(err)
	require.Equal("repo", loaded.Repository)
	require.True(snap.TakenAt.Equal(loaded.TakenAt))
	require.Equal(snap.Refs, loaded.Refs)
	require.Len(loaded.Commits, len(snap.Commits))
	require.Len(loaded.Groups, 1)
	requireUsable(t, loaded)

	// Saving again replaces the previous snapshot.
	snap.Refs = snap.Refs[:1]
	require.NoError(store.Save(snap))

	loaded, err = store.Load("repo")
	require.NoError(err)
	require.Len(loaded.Refs, 1)

	_, err = store.Load("other")
	require.True(ErrNotFound.Is(err))
}

func TestLocalStore(t *testing.T) {
	testStore(t, Local())
}

func TestLocalStoreIsolation(t *testing.T) {
	require := require.New(t)

	store := Local()
	snap := sampleSnapshot(t, "repo")
	require.NoError(store.Save(snap))

	// Mutating what was saved or loaded must not leak into the store.
	snap.Refs[0].Target = "mutated"

	loaded, err := store.Load("repo")
	require.NoError(err)
	require.Equal("c", loaded.Refs[0].Target)

	loaded.Refs[0].Target = "mutated-too"
	again, err := store.Load("repo")
	require.NoError(err)
	require.Equal("c", again.Refs[0].Target)
}

func TestDatabaseStore(t *testing.T) {
	require := require.New(t)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(err)
	db.SetMaxOpenConns(1)
	defer func() { require.NoError(db.Close()) }()

	store, err := NewDatabase(db)
	require.NoError(err)

	testStore(t, store)
}

func TestDatabaseStoreMultipleRepositories(t *testing.T) {
	require := require.New(t)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(err)
	db.SetMaxOpenConns(1)
	defer func() { require.NoError(db.Close()) }()

	store, err := NewDatabase(db)
	require.NoError(err)

	require.NoError(store.Save(sampleSnapshot(t, "one")))
	require.NoError(store.Save(sampleSnapshot(t, "two")))

	one, err := store.Load("one")
	require.NoError(err)
	requireUsable(t, one)

	two, err := store.Load("two")
	require.NoError(err)
	requireUsable(t, two)
}
