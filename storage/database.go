package storage

import (
	"database/sql"
	"strings"
	"time"

	"github.com/SeanMooney/ca-bhfuil-sub001/graph"
	"github.com/SeanMooney/ca-bhfuil-sub001/match"
)

// DatabaseStore is a Store backed by a SQL database. It is written against
// SQLite, the embedded cache this engine persists into, but sticks to plain
// database/sql.
type DatabaseStore struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		repository TEXT PRIMARY KEY,
		taken_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refs (
		repository TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		target TEXT NOT NULL,
		PRIMARY KEY (repository, name)
	)`,
	`CREATE TABLE IF NOT EXISTS commits (
		repository TEXT NOT NULL,
		id TEXT NOT NULL,
		parents TEXT NOT NULL,
		gen INTEGER NOT NULL,
		bucket INTEGER NOT NULL,
		slot INTEGER NOT NULL,
		PRIMARY KEY (repository, id)
	)`,
	`CREATE TABLE IF NOT EXISTS covers (
		repository TEXT NOT NULL,
		ref TEXT NOT NULL,
		tip TEXT NOT NULL,
		bucket INTEGER NOT NULL,
		bits BLOB NOT NULL,
		PRIMARY KEY (repository, ref, bucket)
	)`,
	`CREATE TABLE IF NOT EXISTS equivalence_groups (
		repository TEXT NOT NULL,
		id TEXT NOT NULL,
		members TEXT NOT NULL,
		tokens TEXT NOT NULL,
		prints TEXT NOT NULL,
		PRIMARY KEY (repository, id)
	)`,
}

// NewDatabase creates a DatabaseStore over an open connection and ensures
// the schema exists.
func NewDatabase(db *sql.DB) (*DatabaseStore, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, err
		}
	}

	return &DatabaseStore{db: db}, nil
}

// Save honors the Store interface. The previous snapshot of the repository
// is replaced in a single transaction.
func (s *DatabaseStore) Save(snap *IndexSnapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if err := save(tx, snap); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func save(tx *sql.Tx, snap *IndexSnapshot) error {
	for _, table := range []string{"snapshots", "refs", "commits", "covers", "equivalence_groups"} {
		if _, err := tx.Exec(
			"DELETE FROM "+table+" WHERE repository = ?", snap.Repository,
		); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO snapshots (repository, taken_at) VALUES (?, ?)",
		snap.Repository, snap.TakenAt.UTC(),
	); err != nil {
		return err
	}

	for _, r := range snap.Refs {
		if _, err := tx.Exec(
			"INSERT INTO refs (repository, name, kind, target) VALUES (?, ?, ?, ?)",
			snap.Repository, r.Name, r.Kind, r.Target,
		); err != nil {
			return err
		}
	}

	for _, c := range snap.Commits {
		if _, err := tx.Exec(
			"INSERT INTO commits (repository, id, parents, gen, bucket, slot) VALUES (?, ?, ?, ?, ?, ?)",
			snap.Repository, c.ID, strings.Join(c.Parents, "\n"), c.Gen, c.Bucket, c.Slot,
		); err != nil {
			return err
		}
	}

	for _, cover := range snap.Covers {
		for bucket, bits := range cover.Buckets {
			if _, err := tx.Exec(
				"INSERT INTO covers (repository, ref, tip, bucket, bits) VALUES (?, ?, ?, ?, ?)",
				snap.Repository, cover.Name, cover.Tip, bucket, bits,
			); err != nil {
				return err
			}
		}
	}

	for _, g := range snap.Groups {
		if _, err := tx.Exec(
			"INSERT INTO equivalence_groups (repository, id, members, tokens, prints) VALUES (?, ?, ?, ?, ?)",
			snap.Repository, string(g.ID),
			strings.Join(g.Members, "\n"),
			strings.Join(g.Tokens, "\n"),
			strings.Join(g.Prints, "\n"),
		); err != nil {
			return err
		}
	}

	return nil
}

// Load honors the Store interface.
func (s *DatabaseStore) Load(repository string) (*IndexSnapshot, error) {
	snap := &IndexSnapshot{Repository: repository}

	var takenAt time.Time
	err := s.db.QueryRow(
		"SELECT taken_at FROM snapshots WHERE repository = ?", repository,
	).Scan(&takenAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound.New(repository)
	}

	if err != nil {
		return nil, err
	}

	snap.TakenAt = takenAt
	if err := s.loadRefs(snap); err != nil {
		return nil, err
	}

	if err := s.loadCommits(snap); err != nil {
		return nil, err
	}

	if err := s.loadCovers(snap); err != nil {
		return nil, err
	}

	return snap, s.loadGroups(snap)
}

func (s *DatabaseStore) loadRefs(snap *IndexSnapshot) error {
	rows, err := s.db.Query(
		"SELECT name, kind, target FROM refs WHERE repository = ? ORDER BY name",
		snap.Repository,
	)
	if err != nil {
		return err
	}

	defer rows.Close()
	for rows.Next() {
		var r SavedRef
		if err := rows.Scan(&r.Name, &r.Kind, &r.Target); err != nil {
			return err
		}

		snap.Refs = append(snap.Refs, r)
	}

	return rows.Err()
}

func (s *DatabaseStore) loadCommits(snap *IndexSnapshot) error {
	rows, err := s.db.Query(
		"SELECT id, parents, gen, bucket, slot FROM commits WHERE repository = ? ORDER BY gen, id",
		snap.Repository,
	)
	if err != nil {
		return err
	}

	defer rows.Close()
	for rows.Next() {
		var c graph.ExportedCommit
		var parents string
		if err := rows.Scan(&c.ID, &parents, &c.Gen, &c.Bucket, &c.Slot); err != nil {
			return err
		}

		c.Parents = splitLines(parents)
		snap.Commits = append(snap.Commits, c)
	}

	return rows.Err()
}

func (s *DatabaseStore) loadCovers(snap *IndexSnapshot) error {
	rows, err := s.db.Query(
		"SELECT ref, tip, bucket, bits FROM covers WHERE repository = ? ORDER BY ref, bucket",
		snap.Repository,
	)
	if err != nil {
		return err
	}

	defer rows.Close()
	byRef := make(map[string]*graph.ExportedRef)
	var order []string
	for rows.Next() {
		var ref, tip string
		var bucket int
		var bits []byte
		if err := rows.Scan(&ref, &tip, &bucket, &bits); err != nil {
			return err
		}

		cover, ok := byRef[ref]
		if !ok {
			cover = &graph.ExportedRef{Name: ref, Tip: tip, Buckets: make(map[int][]byte)}
			byRef[ref] = cover
			order = append(order, ref)
		}

		cover.Buckets[bucket] = bits
	}

	if err := rows.Err(); err != nil {
		return err
	}

	for _, ref := range order {
		snap.Covers = append(snap.Covers, *byRef[ref])
	}

	return nil
}

func (s *DatabaseStore) loadGroups(snap *IndexSnapshot) error {
	rows, err := s.db.Query(
		"SELECT id, members, tokens, prints FROM equivalence_groups WHERE repository = ? ORDER BY id",
		snap.Repository,
	)
	if err != nil {
		return err
	}

	defer rows.Close()
	for rows.Next() {
		var id, members, tokens, prints string
		if err := rows.Scan(&id, &members, &tokens, &prints); err != nil {
			return err
		}

		snap.Groups = append(snap.Groups, match.ExportedGroup{
			ID:      match.GroupID(id),
			Members: splitLines(members),
			Tokens:  splitLines(tokens),
			Prints:  splitLines(prints),
		})
	}

	return rows.Err()
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}

	return strings.Split(s, "\n")
}
