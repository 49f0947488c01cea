// # internal/store/store.go
// Package store persists loaded trees in SQLite: a flat object table for
// name lookups across runs, plus the full interchange document so a tree
// can be reopened without re-parsing the sources.
package store

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"pyspect/internal/interchange"
	"pyspect/internal/model"
)

const sqliteDriverName = "sqlite"

// ObjectRecord is one row of the object table.
type ObjectRecord struct {
	Name          string
	QualifiedName string
	ModuleName    string
	Kind          string
	FilePath      string
	Line          int
	Exported      bool
	Docstring     string
}

type SQLiteStore struct {
	db         *sql.DB
	projectKey string
	lookupStmt *sql.Stmt

	cacheMu     sync.RWMutex
	lookupCache map[string][]ObjectRecord
}

func Open(path, projectKey string) (*SQLiteStore, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store %q: %w", cleanPath, err)
	}
	if err := migrateSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	key := strings.TrimSpace(projectKey)
	if key == "" {
		key = "default"
	}

	lookupStmt, err := db.Prepare(`SELECT
  name,
  qualified_name,
  module_name,
  kind,
  file_path,
  line_number,
  is_exported,
  docstring
FROM objects
WHERE project_key = ? AND qualified_name = ?
ORDER BY module_name, file_path, line_number`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare lookup stmt: %w", err)
	}

	return &SQLiteStore{
		db:          db,
		projectKey:  key,
		lookupStmt:  lookupStmt,
		lookupCache: make(map[string][]ObjectRecord),
	}, nil
}

// migrateSchema creates or migrates the store to schema v1.
func migrateSchema(db *sql.DB) error {
	var version int
	_ = db.QueryRow(`PRAGMA user_version`).Scan(&version)

	if version == 0 {
		_, err := db.Exec(`
CREATE TABLE objects (
  project_key TEXT NOT NULL,
  name TEXT NOT NULL,
  qualified_name TEXT NOT NULL,
  module_name TEXT NOT NULL,
  kind TEXT NOT NULL,
  file_path TEXT NOT NULL DEFAULT '',
  line_number INTEGER NOT NULL DEFAULT 0,
  is_exported INTEGER NOT NULL DEFAULT 0,
  docstring TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (project_key, qualified_name, file_path, line_number)
);
CREATE INDEX idx_objects_project_module ON objects(project_key, module_name);

CREATE TABLE trees (
  project_key TEXT NOT NULL,
  load_id TEXT NOT NULL,
  blob BLOB NOT NULL,
  PRIMARY KEY (project_key)
);

PRAGMA user_version = 1;
`)
		if err != nil {
			return fmt.Errorf("create v1 schema: %w", err)
		}
		return nil
	}
	if version > 1 {
		return fmt.Errorf("store schema version %d is newer than this build supports", version)
	}
	return nil
}

// SyncTree replaces the project's rows with the given tree and stores its
// interchange document, all in one transaction.
func (s *SQLiteStore) SyncTree(root *model.TreeRoot) error {
	if s == nil || s.db == nil || root == nil {
		return nil
	}

	var blob bytes.Buffer
	if err := interchange.Encode(&blob, root); err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin sync tx: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM objects WHERE project_key = ?`, s.projectKey); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear objects: %w", err)
	}

	insert, err := tx.Prepare(`INSERT OR REPLACE INTO objects
  (project_key, name, qualified_name, module_name, kind, file_path, line_number, is_exported, docstring)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	index := root.Index()
	for _, qname := range index.Keys() {
		n := index.Get(qname)
		if n == nil {
			continue
		}
		rec := recordFor(n, qname)
		if _, err := insert.Exec(
			s.projectKey, rec.Name, rec.QualifiedName, rec.ModuleName, rec.Kind,
			rec.FilePath, rec.Line, boolInt(rec.Exported), rec.Docstring,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert object %q: %w", qname, err)
		}
	}

	if _, err := tx.Exec(`INSERT OR REPLACE INTO trees (project_key, load_id, blob) VALUES (?, ?, ?)`,
		s.projectKey, root.LoadID, blob.Bytes()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("store tree blob: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sync tx: %w", err)
	}
	s.clearCache()
	return nil
}

func recordFor(n model.Node, qname string) ObjectRecord {
	rec := ObjectRecord{
		Name:          n.Name(),
		QualifiedName: qname,
		Kind:          n.Kind().String(),
		FilePath:      n.Location().Filename,
		Line:          n.Location().Line,
		Exported:      !strings.HasPrefix(n.Name(), "_"),
	}
	if m := n.Module(); m != nil {
		rec.ModuleName = m.QualifiedName()
	}
	switch ob := n.(type) {
	case *model.Variable:
		rec.Exported = ob.Exported || rec.Exported
	case *model.Module:
		rec.Docstring = ob.Docstring
	case *model.Class:
		rec.Docstring = ob.Docstring
	case *model.Function:
		rec.Docstring = ob.Docstring
	}
	return rec
}

// Lookup returns the stored rows for a qualified name.
func (s *SQLiteStore) Lookup(qualifiedName string) ([]ObjectRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}

	s.cacheMu.RLock()
	if cached, ok := s.lookupCache[qualifiedName]; ok {
		s.cacheMu.RUnlock()
		return cached, nil
	}
	s.cacheMu.RUnlock()

	rows, err := s.lookupStmt.Query(s.projectKey, qualifiedName)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", qualifiedName, err)
	}
	defer rows.Close()

	var out []ObjectRecord
	for rows.Next() {
		var rec ObjectRecord
		var exported int
		if err := rows.Scan(&rec.Name, &rec.QualifiedName, &rec.ModuleName, &rec.Kind,
			&rec.FilePath, &rec.Line, &exported, &rec.Docstring); err != nil {
			return nil, fmt.Errorf("scan lookup row: %w", err)
		}
		rec.Exported = exported != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.lookupCache[qualifiedName] = out
	s.cacheMu.Unlock()
	return out, nil
}

// LoadTree rebuilds the last synced tree from its stored document. Returns
// nil without error when the project has no stored tree yet.
func (s *SQLiteStore) LoadTree() (*model.TreeRoot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	var blob []byte
	err := s.db.QueryRow(`SELECT blob FROM trees WHERE project_key = ?`, s.projectKey).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tree blob: %w", err)
	}
	return interchange.Decode(bytes.NewReader(blob))
}

func (s *SQLiteStore) clearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.lookupCache = make(map[string][]ObjectRecord)
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.lookupStmt != nil {
		_ = s.lookupStmt.Close()
	}
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
