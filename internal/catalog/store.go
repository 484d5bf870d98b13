package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store is the single-node embedded relational catalog, backed by
// SQLite in WAL mode with an FTS5 virtual table for lexical
// search and a sqlite-vec virtual table for k-NN vector search.
type Store struct {
	db     *sql.DB
	path   string
	vecDim int
	log    *zap.Logger
}

// Open creates or opens the catalog database at path, running migrations
// and ensuring the FTS/vector virtual tables exist for vecDim-dimensional
// embeddings.
func Open(path string, vecDim int, log *zap.Logger) (*Store, error) {
	sqlite_vec.Auto()

	if log == nil {
		log = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("catalog: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	// SQLite only tolerates one writer; serialize at the connection level.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, vecDim: vecDim, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for callers (e.g. the ingestion
// pipeline's orphan cleanup, and tests) that need ad-hoc queries outside
// the Store's designed operation set.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS libraries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS folders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			library_id INTEGER NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
			path TEXT NOT NULL,
			last_modified_at INTEGER NOT NULL DEFAULT 0,
			type TEXT NOT NULL DEFAULT '',
			UNIQUE(library_id, path)
		)`,
		`CREATE TABLE IF NOT EXISTS plugins (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			webhook_url TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS library_plugins (
			library_id INTEGER NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
			plugin_id INTEGER NOT NULL REFERENCES plugins(id) ON DELETE CASCADE,
			PRIMARY KEY (library_id, plugin_id)
		)`,
		`CREATE TABLE IF NOT EXISTS entities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			library_id INTEGER NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
			folder_id INTEGER NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
			filepath TEXT NOT NULL UNIQUE,
			filename TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			file_type TEXT NOT NULL DEFAULT '',
			file_type_group TEXT NOT NULL DEFAULT 'other',
			file_created_at INTEGER NOT NULL DEFAULT 0,
			file_last_modified_at INTEGER NOT NULL DEFAULT 0,
			last_scan_at INTEGER,
			fts_indexed_at INTEGER,
			vec_indexed_at INTEGER,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_folder ON entities(folder_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_library ON entities(library_id)`,
		`CREATE TABLE IF NOT EXISTS entity_metadata (
			entity_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			data_type TEXT NOT NULL DEFAULT 'text',
			PRIMARY KEY (entity_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS tags (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS entity_tags (
			entity_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			source TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (entity_id, tag_id)
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
			metadata_text,
			content='',
			contentless_delete=1,
			tokenize='unicode61'
		)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec %q: %w", q, err)
		}
	}

	vecStmt := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS entities_vec USING vec0(
		entity_id INTEGER PRIMARY KEY,
		embedding float[%d] distance_metric=cosine
	)`, s.vecDim)
	if _, err := s.db.Exec(vecStmt); err != nil {
		return fmt.Errorf("create entities_vec: %w", err)
	}

	return nil
}

// withTx runs fn inside a single *sql.Tx, committing on success and
// rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
