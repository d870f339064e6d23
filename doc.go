// ca-bhfuil answers, for a given change, "where is it?".
//
// Given a commit hash, a cross-reference token or any other key resolving to
// a logical change, the engine reports which branches and tags contain that
// change, directly or through an equivalent commit (a cherry-pick or a clean
// rebase of the same diff), and which refs in a caller-supplied universe are
// missing it.
//
// The engine maintains an ancestry index over the commit graph: every commit
// gets a generation number (strictly greater than all of its parents') and
// every tracked ref keeps a layered bitset of the commits reachable from its
// tip. Generation numbers prune most negative containment queries in O(1);
// the bitsets confirm positive ones without walking the graph.
//
// Updates are incremental. A new ref snapshot is diffed against the previous
// one, only the newly reachable commits are fetched, and a new immutable
// snapshot of the whole index is published atomically. Readers holding an
// older snapshot keep seeing consistent results until they are done with it.
package cabhfuil
