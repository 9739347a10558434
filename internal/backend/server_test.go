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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"villoscreenplay/internal/domain"
	"villoscreenplay/internal/paginate"
)

func sampleProject() domain.Project {
	return domain.Project{
		Screenplay: []domain.Element{
			{ID: "e1", Kind: domain.SceneHeading, Text: "INT. KITCHEN - DAY"},
			{ID: "e2", Kind: domain.Action, Text: "Ana pours coffee."},
			{ID: "e3", Kind: domain.Character, Text: "ANA"},
			{ID: "e4", Kind: domain.Dialogue, Text: "Morning."},
			{ID: "e5", Kind: domain.SceneHeading, Text: "EXT. STREET - NIGHT"},
			{ID: "e6", Kind: domain.Transition, Text: "CUT TO:"},
		},
	}
}

func projectJSON(t *testing.T, p domain.Project) []byte {
	t.Helper()
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal project: %v", err)
	}
	return b
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(Config{Secret: "test-secret", TokenTTL: time.Minute}, nil)
}

func do(t *testing.T, h http.Handler, method, path string, body []byte, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthReadyVersion(t *testing.T) {
	h := newTestServer(t).Handler()

	if rr := do(t, h, http.MethodGet, "/healthz", nil, nil); rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
	if rr := do(t, h, http.MethodGet, "/readyz", nil, nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz without db: %d", rr.Code)
	}
	rr := do(t, h, http.MethodGet, "/version", nil, nil)
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Body.String(), "villo ") {
		t.Fatalf("version: %d %q", rr.Code, rr.Body.String())
	}
}

func TestPaginateSummary(t *testing.T) {
	h := newTestServer(t).Handler()
	rr := do(t, h, http.MethodPost, "/api/paginate", projectJSON(t, sampleProject()), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var got Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Summary{
		Sheets:    1,
		BodyPages: 1,
		LastPage:  1,
		Elements:  6,
		Scenes: []paginate.SceneMark{
			{Number: 1, Heading: "INT. KITCHEN - DAY", Page: 1, ElementID: "e1"},
			{Number: 2, Heading: "EXT. STREET - NIGHT", Page: 1, ElementID: "e5"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestPaginateWithCoverAndEmptyBody(t *testing.T) {
	h := newTestServer(t).Handler()
	p := domain.Project{Screenplay: []domain.Element{}, Cover: &domain.Cover{Title: "Pilot", Author: "Ana"}}
	rr := do(t, h, http.MethodPost, "/api/paginate", projectJSON(t, p), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var got Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.HasCover || got.Sheets != 2 || got.BodyPages != 1 || got.LastPage != 0 || len(got.Scenes) != 0 {
		t.Fatalf("unexpected summary %+v", got)
	}
}

func TestPaginateRejectsInvalidDocument(t *testing.T) {
	h := newTestServer(t).Handler()
	for name, body := range map[string]string{
		"malformed":       `{"screenplay": [`,
		"missing array":   `{"coverData": null}`,
		"bad element":     `{"screenplay": [{"type": "action"}]}`,
		"wrong text type": `{"screenplay": [{"type": "action", "text": 3}]}`,
	} {
		rr := do(t, h, http.MethodPost, "/api/paginate", []byte(body), nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400", name, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"error"`) {
			t.Fatalf("%s: no error body: %s", name, rr.Body.String())
		}
	}
}

func TestExportPDF(t *testing.T) {
	h := newTestServer(t).Handler()
	p := sampleProject()
	p.Cover = &domain.Cover{Title: "Coffee & Streets"}
	for _, r := range []string{"", "fpdf", "canvas"} {
		rr := do(t, h, http.MethodPost, "/api/export/pdf?renderer="+r, projectJSON(t, p), nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("renderer %q: status %d: %s", r, rr.Code, rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
			t.Fatalf("renderer %q: content type %q", r, ct)
		}
		if !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")) {
			t.Fatalf("renderer %q: body is not a PDF", r)
		}
		if got := rr.Header().Get("X-Page-Count"); got != "2" {
			t.Fatalf("renderer %q: page count %q", r, got)
		}
		if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "coffee-streets.pdf") {
			t.Fatalf("renderer %q: disposition %q", r, cd)
		}
	}
	if rr := do(t, h, http.MethodPost, "/api/export/pdf?renderer=troff", projectJSON(t, p), nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown renderer: status %d", rr.Code)
	}
}

func TestProjectRoutesWithoutStore(t *testing.T) {
	h := newTestServer(t).Handler()
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/projects"},
		{http.MethodGet, "/api/projects/abc"},
		{http.MethodPut, "/api/projects/abc"},
		{http.MethodDelete, "/api/projects/abc"},
		{http.MethodGet, "/api/projects/abc/search?q=x"},
	} {
		if rr := do(t, h, tc.method, tc.path, nil, nil); rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: status %d, want 503", tc.method, tc.path, rr.Code)
		}
	}
}

func TestFileSlug(t *testing.T) {
	cases := map[string]string{
		"Untitled":          "untitled",
		"Coffee & Streets!": "coffee-streets",
		"  ":                "screenplay",
		"Año 2026":          "a-o-2026",
	}
	for in, want := range cases {
		if got := fileSlug(in); got != want {
			t.Fatalf("fileSlug(%q)=%q want %q", in, got, want)
		}
	}
}
