// Package store persists taxonomies in SQLite. Each saved taxonomy is
// a dataset: a UUID-keyed row recording its name, source hashes, and
// import time, with the tree flattened into a nodes table.
//
// Two SQLite drivers are supported. The default build uses the pure Go
// modernc.org/sqlite driver; building with -tags cgo_sqlite switches to
// mattn/go-sqlite3.
//
// Ranks are stored as their canonical names and re-parsed on load, so
// the full vocabulary round-trips; "no rank" loads as Unspecified.
package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/audy/taxonomy/core/errors"
	"github.com/audy/taxonomy/core/rank"
	"github.com/audy/taxonomy/core/tree"
)

const schema = `
CREATE TABLE IF NOT EXISTS datasets (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	source_sha256 TEXT NOT NULL DEFAULT '',
	source_blake3 TEXT NOT NULL DEFAULT '',
	node_count    INTEGER NOT NULL,
	imported_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
	dataset_id TEXT NOT NULL REFERENCES datasets(id),
	tax_id     TEXT NOT NULL,
	name       TEXT NOT NULL,
	rank       TEXT NOT NULL,
	parent_id  TEXT NOT NULL,
	PRIMARY KEY (dataset_id, tax_id)
);

CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(dataset_id, name);
`

// Dataset describes one stored taxonomy.
type Dataset struct {
	ID           uuid.UUID
	Name         string
	SourceSHA256 string
	SourceBLAKE3 string
	NodeCount    int
	ImportedAt   time.Time
}

// Store is a SQLite-backed taxonomy store.
type Store struct {
	db *sql.DB
}

// DriverType identifies the compiled-in SQLite implementation:
// "purego" for modernc.org/sqlite, "cgo" for mattn/go-sqlite3.
func DriverType() string {
	return driverType
}

// Open opens (creating if needed) a store at the given path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists a taxonomy as a new dataset and returns its record.
// The dataset name must be unique; hashes may be empty when the source
// was not a single hashable artifact.
func (s *Store) Save(name string, t *tree.Taxonomy, source *HashResult) (*Dataset, error) {
	if name == "" {
		return nil, errors.NewValidation("name", "dataset name must not be empty")
	}

	ds := &Dataset{
		ID:         uuid.New(),
		Name:       name,
		NodeCount:  t.Len(),
		ImportedAt: time.Now().UTC(),
	}
	if source != nil {
		ds.SourceSHA256 = source.SHA256
		ds.SourceBLAKE3 = source.BLAKE3
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var taken int
	if err := tx.QueryRow("SELECT COUNT(*) FROM datasets WHERE name = ?", name).Scan(&taken); err != nil {
		return nil, errors.Wrap(err, "failed to check dataset name")
	}
	if taken > 0 {
		return nil, errors.Wrapf(errors.ErrAlreadyExists, "dataset %q", name)
	}

	_, err = tx.Exec(
		"INSERT INTO datasets (id, name, source_sha256, source_blake3, node_count, imported_at) VALUES (?, ?, ?, ?, ?, ?)",
		ds.ID.String(), ds.Name, ds.SourceSHA256, ds.SourceBLAKE3, ds.NodeCount, ds.ImportedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert dataset")
	}

	insert, err := tx.Prepare("INSERT INTO nodes (dataset_id, tax_id, name, rank, parent_id) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare node insert")
	}
	defer insert.Close()

	for _, n := range t.Nodes() {
		if _, err := insert.Exec(ds.ID.String(), n.ID, n.Name, n.Rank.String(), n.Parent); err != nil {
			return nil, errors.Wrapf(err, "failed to insert node %s", n.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit dataset")
	}
	return ds, nil
}

// Load reconstructs the taxonomy stored under the dataset name.
func (s *Store) Load(name string) (*tree.Taxonomy, error) {
	ds, err := s.Dataset(name)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query("SELECT tax_id, name, rank, parent_id FROM nodes WHERE dataset_id = ?", ds.ID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query nodes")
	}
	defer rows.Close()

	var nodes []*tree.Node
	for rows.Next() {
		var n tree.Node
		var rawRank string
		if err := rows.Scan(&n.ID, &n.Name, &rawRank, &n.Parent); err != nil {
			return nil, errors.Wrap(err, "failed to scan node")
		}
		r, err := rank.Parse(rawRank)
		if err != nil {
			// Stored ranks are always canonical; anything else means
			// the database was written by a newer vocabulary.
			return nil, errors.Wrapf(err, "stored node %s", n.ID)
		}
		n.Rank = r
		nodes = append(nodes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read nodes")
	}
	return tree.Build(nodes)
}

// Dataset returns the dataset record stored under name.
func (s *Store) Dataset(name string) (*Dataset, error) {
	row := s.db.QueryRow(
		"SELECT id, name, source_sha256, source_blake3, node_count, imported_at FROM datasets WHERE name = ?", name)
	ds, err := scanDataset(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("dataset", name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dataset")
	}
	return ds, nil
}

// Datasets lists all stored datasets, newest first.
func (s *Store) Datasets() ([]*Dataset, error) {
	rows, err := s.db.Query(
		"SELECT id, name, source_sha256, source_blake3, node_count, imported_at FROM datasets ORDER BY imported_at DESC, name")
	if err != nil {
		return nil, errors.Wrap(err, "failed to query datasets")
	}
	defer rows.Close()

	var datasets []*Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan dataset")
		}
		datasets = append(datasets, ds)
	}
	return datasets, rows.Err()
}

// Delete removes a dataset and its nodes. Node rows are deleted in the
// same transaction rather than via a foreign-key cascade, which the
// connection pool cannot be trusted to have enabled.
func (s *Store) Delete(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRow("SELECT id FROM datasets WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return errors.NewNotFound("dataset", name)
	}
	if err != nil {
		return errors.Wrap(err, "failed to read dataset")
	}

	if _, err := tx.Exec("DELETE FROM nodes WHERE dataset_id = ?", id); err != nil {
		return errors.Wrap(err, "failed to delete nodes")
	}
	if _, err := tx.Exec("DELETE FROM datasets WHERE id = ?", id); err != nil {
		return errors.Wrap(err, "failed to delete dataset")
	}
	return tx.Commit()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDataset(row scanner) (*Dataset, error) {
	var ds Dataset
	var id string
	if err := row.Scan(&id, &ds.Name, &ds.SourceSHA256, &ds.SourceBLAKE3, &ds.NodeCount, &ds.ImportedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	ds.ID = parsed
	return &ds, nil
}
