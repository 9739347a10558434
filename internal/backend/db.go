/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"villoscreenplay/internal/domain"
	applog "villoscreenplay/internal/log"
	"villoscreenplay/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrProjectNotFound is returned when no row matches a project id.
var ErrProjectNotFound = errors.New("project not found")

// Store keeps screenplay projects in Postgres.
type Store struct {
	db *sql.DB
}

// ProjectSummary is the listing projection of a stored project.
type ProjectSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectRecord is a stored project with its payload.
type ProjectRecord struct {
	ProjectSummary
	Project domain.Project `json:"project"`
}

// OpenStore connects to Postgres through the pgx stdlib driver, pings it and
// applies the embedded migrations.
func OpenStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(pctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already migrated connection.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// List returns all projects, most recently updated first.
func (s *Store) List(ctx context.Context) ([]ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, version, updated_at FROM projects ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	list := []ProjectSummary{}
	for rows.Next() {
		var p ProjectSummary
		if err := rows.Scan(&p.ID, &p.Name, &p.Version, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Get loads one project.
func (s *Store) Get(ctx context.Context, id string) (*ProjectRecord, error) {
	var (
		rec     ProjectRecord
		payload []byte
	)
	row := s.db.QueryRowContext(ctx, `SELECT id, name, version, updated_at, payload FROM projects WHERE id = $1`, id)
	switch err := row.Scan(&rec.ID, &rec.Name, &rec.Version, &rec.UpdatedAt, &payload); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrProjectNotFound
	case err != nil:
		return nil, err
	}
	p, err := storage.ReadProject(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("stored project %s: %w", id, err)
	}
	rec.Project = p
	return &rec, nil
}

// Put inserts or replaces a project and bumps its version.
func (s *Store) Put(ctx context.Context, id, name string, p domain.Project) (ProjectSummary, error) {
	if p.Screenplay == nil {
		p.Screenplay = []domain.Element{}
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return ProjectSummary{}, err
	}
	if err := storage.ValidateProjectJSON(payload); err != nil {
		return ProjectSummary{}, err
	}
	if strings.TrimSpace(name) == "" {
		name = p.Title()
	}
	out := ProjectSummary{ID: id, Name: name}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (id, name, payload) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		   SET name = EXCLUDED.name, payload = EXCLUDED.payload,
		       version = projects.version + 1, updated_at = now()
		RETURNING version, updated_at`, id, name, string(payload))
	if err := row.Scan(&out.Version, &out.UpdatedAt); err != nil {
		return ProjectSummary{}, err
	}
	return out, nil
}

// Delete removes a project.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// applyMigrations applies embedded SQL migrations in filename order and
// records each one in schema_migrations.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	l := applog.WithComponent("backend")
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		l.Info("applying migration", slog.String("file", fname))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	prefix, _, ok := strings.Cut(base, "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
