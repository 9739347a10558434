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
	"strings"

	"villoscreenplay/internal/domain"
)

// SearchQuery describes a search over the element index.
// Text is split into terms that must all match; each term is quoted before
// it reaches FTS5, so punctuation such as "INT." is safe.
// An empty Text lists elements in document order with the filters applied.
// Kinds restricts hits to the given element kinds.
// Limit defaults to 100 when zero.
type SearchQuery struct {
	Text  string
	Kinds []domain.Kind
	Scene int
	Limit int
}

// SearchHit is one matching element. Snippet marks matches with [ ] when
// Text was given. Scene is 0 for elements before the first scene heading.
type SearchHit struct {
	ElementID string
	Position  int
	Kind      domain.Kind
	Scene     int
	Text      string
	Snippet   string
}

// Search queries the element index under dir.
func Search(ctx context.Context, dir string, q SearchQuery) ([]SearchHit, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("project dir is required")
	}
	db, err := OpenIndex(dir)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchHit, error) {
	var args []any
	var sb strings.Builder
	match := ftsQuery(q.Text)
	if match != "" {
		sb.WriteString("SELECT e.element_id, e.position, e.kind, e.scene, e.text, snippet(elements_fts, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM elements_fts JOIN elements e ON elements_fts.rowid = e.doc_id\n")
		sb.WriteString("WHERE elements_fts MATCH ?\n")
		args = append(args, match)
	} else {
		sb.WriteString("SELECT e.element_id, e.position, e.kind, e.scene, e.text, ''\n")
		sb.WriteString("FROM elements e\nWHERE 1=1\n")
	}
	if len(q.Kinds) > 0 {
		sb.WriteString(" AND e.kind IN (" + placeholders(len(q.Kinds)) + ")\n")
		for _, k := range q.Kinds {
			args = append(args, k.String())
		}
	}
	if q.Scene > 0 {
		sb.WriteString(" AND e.scene = ?\n")
		args = append(args, q.Scene)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	sb.WriteString("ORDER BY e.position\nLIMIT ?")
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchHit
	for rows.Next() {
		var (
			h    SearchHit
			kind string
			sn   sql.NullString
		)
		if err := rows.Scan(&h.ElementID, &h.Position, &kind, &h.Scene, &h.Text, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		h.Kind, _ = domain.ParseKind(kind)
		h.Snippet = sn.String
		out = append(out, h)
	}
	return out, rows.Err()
}

// ftsQuery quotes every whitespace separated term of text as an FTS5 string.
func ftsQuery(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
