/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"villoscreenplay/internal/domain"
	applog "villoscreenplay/internal/log"
	"villoscreenplay/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// IndexPath returns the full path to the index database for project files in dir.
func IndexPath(dir string) string {
	return filepath.Join(StateDir(dir), IndexFileName)
}

// OpenIndex ensures that .villo/index.sqlite exists under dir, opens it in
// WAL mode and brings its schema up to date. Callers close the returned DB.
func OpenIndex(dir string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_open").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("project dir is required")
	}
	if err := os.MkdirAll(StateDir(dir), 0o755); err != nil {
		l.Error("create state dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", StateDirName, err)
	}

	path := IndexPath(dir)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Keep the stored schema so runMigrations can see where to start.
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_autosaves_saved_at ON autosaves(saved_at);`,
				`CREATE INDEX IF NOT EXISTS idx_elements_scene ON elements(scene);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates the autosave and element tables and the FTS index.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS autosaves (
			id        INTEGER PRIMARY KEY,
			saved_at  TEXT    NOT NULL,
			elements  INTEGER NOT NULL,
			payload   BLOB    NOT NULL
		);`,
		// One row per screenplay element, in document order.
		`CREATE TABLE IF NOT EXISTS elements (
			doc_id     INTEGER PRIMARY KEY,
			element_id TEXT    NOT NULL,
			position   INTEGER NOT NULL,
			kind       TEXT    NOT NULL,
			scene      INTEGER NOT NULL DEFAULT 0,
			text       TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_elements_position ON elements(position);`,
		// External-content FTS so snippet() can read the element text back.
		`CREATE VIRTUAL TABLE IF NOT EXISTS elements_fts USING fts5(
			text,
			content='elements',
			content_rowid='doc_id',
			tokenize = 'unicode61'
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS elements_ai AFTER INSERT ON elements BEGIN
			INSERT INTO elements_fts(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS elements_ad AFTER DELETE ON elements BEGIN
			INSERT INTO elements_fts(elements_fts, rowid, text) VALUES ('delete', old.doc_id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS elements_au AFTER UPDATE OF text ON elements BEGIN
			INSERT INTO elements_fts(elements_fts, rowid, text) VALUES ('delete', old.doc_id, old.text);
			INSERT INTO elements_fts(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// IndexProject replaces the element index under dir with the elements of p.
// Scene numbers follow document order; elements before the first scene
// heading carry scene 0.
func IndexProject(ctx context.Context, dir string, p domain.Project) error {
	db, err := OpenIndex(dir)
	if err != nil {
		return err
	}
	defer db.Close()
	return indexElements(ctx, db, p.Screenplay)
}

func indexElements(ctx context.Context, db *sql.DB, elems []domain.Element) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM elements;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear elements: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO elements(element_id, position, kind, scene, text) VALUES(?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	scene := 0
	for i, e := range elems {
		if e.Kind == domain.SceneHeading {
			scene++
		}
		if !e.Kind.Valid() || strings.TrimSpace(e.Text) == "" {
			continue
		}
		if _, err := ins.ExecContext(ctx, e.ID, i, e.Kind.String(), scene, e.Text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert element: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES('indexed_at', ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DetectAndRebuildIndex checks the index under dir for corruption or a
// missing schema. A damaged file is copied to .villo/backups, removed and
// rebuilt from p. It reports whether a rebuild happened. Autosaves held
// in a damaged index are lost; the backup copy keeps the raw bytes.
func DetectAndRebuildIndex(ctx context.Context, dir string, p domain.Project) (bool, error) {
	path := IndexPath(dir)
	db, err := OpenIndex(dir)
	if err == nil {
		healthy := true
		var chk string
		if qerr := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); qerr != nil || !strings.EqualFold(strings.TrimSpace(chk), "ok") {
			healthy = false
		}
		if healthy {
			if _, qerr := db.ExecContext(ctx, `SELECT 1 FROM elements LIMIT 1;`); qerr != nil {
				healthy = false
			}
		}
		_ = db.Close()
		if healthy {
			return false, nil
		}
	}
	applog.WithComponent("storage").Warn("index damaged, rebuilding", slog.String("path", path), slog.Any("err", err))
	backupIndexFile(dir)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	if rerr := IndexProject(ctx, dir, p); rerr != nil {
		return false, fmt.Errorf("rebuild index: %w", rerr)
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup.
func backupIndexFile(dir string) {
	bdir := BackupsDir(dir)
	_ = os.MkdirAll(bdir, 0o755)
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", IndexFileName, time.Now().Format(backupStamp)))
	if err := copyFile(IndexPath(dir), bak); err != nil {
		applog.WithComponent("storage").Warn("index backup failed", slog.Any("err", err))
	}
}
