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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"villoscreenplay/internal/domain"
)

const (
	// DefaultAutosaveKeep bounds the autosave history kept by Autosave.
	DefaultAutosaveKeep = 20

	// autosaveStamp is fixed width so saved_at sorts as text.
	autosaveStamp = "2006-01-02T15:04:05.000000000Z07:00"
)

// language=SQL
// dialect=SQLite
const insertAutosaveSQL = `INSERT INTO autosaves(saved_at, elements, payload) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestAutosaveSQL = `SELECT id, saved_at, payload FROM autosaves ORDER BY saved_at DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const selectAutosaveSQL = `SELECT id, saved_at, payload FROM autosaves WHERE id = ?`

// language=SQL
// dialect=SQLite
const listAutosavesSQL = `SELECT id, saved_at, elements FROM autosaves ORDER BY saved_at DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneAutosavesSQL = `DELETE FROM autosaves WHERE id NOT IN (
	SELECT id FROM autosaves ORDER BY saved_at DESC, id DESC LIMIT ?
)`

// AutosaveInfo describes one stored autosave without its payload.
type AutosaveInfo struct {
	ID       int64
	SavedAt  time.Time
	Elements int
}

// Autosave stores p as the newest snapshot in the index under dir and
// trims the history to DefaultAutosaveKeep entries.
func Autosave(ctx context.Context, dir string, p domain.Project) (AutosaveInfo, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return AutosaveInfo{}, fmt.Errorf("marshal autosave: %w", err)
	}
	db, err := OpenIndex(dir)
	if err != nil {
		return AutosaveInfo{}, err
	}
	defer func() { _ = db.Close() }()
	ts := nowFn().UTC()
	res, err := db.ExecContext(ctx, insertAutosaveSQL, ts.Format(autosaveStamp), len(p.Screenplay), payload)
	if err != nil {
		return AutosaveInfo{}, fmt.Errorf("insert autosave: %w", err)
	}
	id, _ := res.LastInsertId()
	if _, err := db.ExecContext(ctx, pruneAutosavesSQL, DefaultAutosaveKeep); err != nil {
		return AutosaveInfo{}, fmt.Errorf("prune autosaves: %w", err)
	}
	return AutosaveInfo{ID: id, SavedAt: ts, Elements: len(p.Screenplay)}, nil
}

// LatestAutosave returns the newest autosave under dir, or nil when there is none.
func LatestAutosave(ctx context.Context, dir string) (*domain.Project, AutosaveInfo, error) {
	db, err := OpenIndex(dir)
	if err != nil {
		return nil, AutosaveInfo{}, err
	}
	defer func() { _ = db.Close() }()
	return scanAutosave(db.QueryRowContext(ctx, selectLatestAutosaveSQL))
}

// LoadAutosave returns the autosave with the given id, or nil when it does not exist.
func LoadAutosave(ctx context.Context, dir string, id int64) (*domain.Project, AutosaveInfo, error) {
	db, err := OpenIndex(dir)
	if err != nil {
		return nil, AutosaveInfo{}, err
	}
	defer func() { _ = db.Close() }()
	return scanAutosave(db.QueryRowContext(ctx, selectAutosaveSQL, id))
}

func scanAutosave(row *sql.Row) (*domain.Project, AutosaveInfo, error) {
	var (
		info  AutosaveInfo
		tsStr string
		blob  []byte
	)
	err := row.Scan(&info.ID, &tsStr, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, AutosaveInfo{}, nil
	}
	if err != nil {
		return nil, AutosaveInfo{}, err
	}
	info.SavedAt, _ = time.Parse(autosaveStamp, tsStr)
	var p domain.Project
	if err := json.Unmarshal(blob, &p); err != nil {
		return nil, info, fmt.Errorf("decode autosave %d: %w", info.ID, err)
	}
	info.Elements = len(p.Screenplay)
	return &p, info, nil
}

// ListAutosaves returns up to limit autosaves, newest first.
func ListAutosaves(ctx context.Context, dir string, limit int) ([]AutosaveInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	db, err := OpenIndex(dir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listAutosavesSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []AutosaveInfo
	for rows.Next() {
		var (
			info  AutosaveInfo
			tsStr string
		)
		if err := rows.Scan(&info.ID, &tsStr, &info.Elements); err != nil {
			return nil, err
		}
		info.SavedAt, _ = time.Parse(autosaveStamp, tsStr)
		out = append(out, info)
	}
	return out, rows.Err()
}

// PruneAutosaves keeps at most keep autosaves and deletes older ones.
// It returns the number of rows removed.
func PruneAutosaves(ctx context.Context, dir string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	db, err := OpenIndex(dir)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneAutosavesSQL, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
