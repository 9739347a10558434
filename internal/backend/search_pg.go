/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"fmt"
	"strings"

	"villoscreenplay/internal/domain"
	"villoscreenplay/internal/storage"
)

// Search runs q over the elements of one stored project using Postgres full
// text search. Hits mirror storage.Search: positions are document order,
// scenes count scene headings up to and including the element, and matches
// in the snippet are wrapped in [ ].
func (s *Store) Search(ctx context.Context, projectID string, q storage.SearchQuery) ([]storage.SearchHit, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	b.WriteString(`WITH els AS (
	SELECT e.ord - 1 AS position,
	       COALESCE(e.el->>'id', '') AS element_id,
	       COALESCE(e.el->>'type', '') AS kind,
	       COALESCE(e.el->>'text', '') AS text,
	       SUM(CASE WHEN e.el->>'type' = 'slugline' THEN 1 ELSE 0 END) OVER (ORDER BY e.ord) AS scene
	  FROM projects p, jsonb_array_elements(p.payload->'screenplay') WITH ORDINALITY AS e(el, ord)
	 WHERE p.id = ` + place(projectID) + `
)
`)
	text := strings.TrimSpace(q.Text)
	if text != "" {
		tsq := "plainto_tsquery('simple', " + place(text) + ")"
		b.WriteString("SELECT element_id, position, kind, scene, text, ")
		b.WriteString("ts_headline('simple', text, " + tsq + ", 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12') ")
		b.WriteString("FROM els WHERE to_tsvector('simple', text) @@ " + tsq + " ")
	} else {
		b.WriteString("SELECT element_id, position, kind, scene, text, '' FROM els WHERE true ")
	}
	b.WriteString("AND btrim(text) <> '' ")
	if len(q.Kinds) > 0 {
		names := make([]string, 0, len(q.Kinds))
		for _, k := range q.Kinds {
			names = append(names, k.String())
		}
		b.WriteString("AND kind = ANY(" + place(names) + ") ")
	}
	if q.Scene > 0 {
		b.WriteString("AND scene = " + place(q.Scene) + " ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	b.WriteString("ORDER BY position LIMIT " + place(limit))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchHit
	for rows.Next() {
		var (
			h    storage.SearchHit
			kind string
		)
		if err := rows.Scan(&h.ElementID, &h.Position, &kind, &h.Scene, &h.Text, &h.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		h.Kind, _ = domain.ParseKind(kind)
		out = append(out, h)
	}
	return out, rows.Err()
}
