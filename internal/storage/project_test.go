/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"villoscreenplay/internal/domain"
)

func sampleProject() domain.Project {
	return domain.Project{
		Screenplay: []domain.Element{
			{ID: "e1", Kind: domain.SceneHeading, Text: "INT. OFFICE - DAY"},
			{ID: "e2", Kind: domain.Action, Text: "Rain against the window."},
			{ID: "e3", Kind: domain.Character, Text: "MARA"},
			{ID: "e4", Kind: domain.Dialogue, Text: "We open at dawn."},
			{ID: "e5", Kind: domain.SceneHeading, Text: "EXT. HARBOUR - NIGHT"},
			{ID: "e6", Kind: domain.Action, Text: "Fog rolls over the pier."},
		},
		Cover: &domain.Cover{Title: "Harbour Lights", Author: "J. Doe"},
	}
}

// fakeClock steps one second per call so backups get distinct names.
func fakeClock(t *testing.T) {
	t.Helper()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	nowFn = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	t.Cleanup(func() { nowFn = time.Now })
}

func TestCreateWritesProjectFile(t *testing.T) {
	dir := t.TempDir()
	ph, err := Create(filepath.Join(dir, "harbour"), sampleProject())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if want := filepath.Join(dir, "harbour"+FileSuffix); ph.Path != want {
		t.Fatalf("path: got %q want %q", ph.Path, want)
	}
	b, err := os.ReadFile(ph.Path)
	if err != nil {
		t.Fatalf("read project: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"screenplay", "coverData", "savedDate"} {
		if _, ok := raw[k]; !ok {
			t.Fatalf("missing key %q in %s", k, b)
		}
	}
	if fi, err := os.Stat(BackupsDir(dir)); err != nil || !fi.IsDir() {
		t.Fatalf("expected backups dir: %v", err)
	}
	if _, err := Create(ph.Path, sampleProject()); !errors.Is(err, os.ErrExist) {
		t.Fatalf("second Create: got %v want ErrExist", err)
	}
}

func TestOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ph, err := Create(filepath.Join(dir, "rt"), sampleProject())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	got, err := Open(ph.Path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if diff := cmp.Diff(ph.Project, got.Project); diff != "" {
		t.Fatalf("project mismatch (-want +got):\n%s", diff)
	}
	if got.Project.SavedDate.IsZero() {
		t.Fatalf("SavedDate not stamped")
	}
}

func TestOpenRejectsForeignSuffix(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "notes.json")); !errors.Is(err, ErrNotProjectFile) {
		t.Fatalf("got %v want ErrNotProjectFile", err)
	}
}

func TestSaveKeepsBoundedBackups(t *testing.T) {
	fakeClock(t)
	dir := t.TempDir()
	ph, err := Create(filepath.Join(dir, "bk"), sampleProject())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	for i := 0; i < BackupKeep+5; i++ {
		ph.Project.Screenplay[1].Text = fmt.Sprintf("take %d", i)
		if err := Save(ph); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}
	baks, err := ListBackups(ph.Path)
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(baks) != BackupKeep {
		t.Fatalf("backups: got %d want %d", len(baks), BackupKeep)
	}
	for _, b := range baks {
		if !strings.HasPrefix(filepath.Base(b), "bk"+FileSuffix+".") {
			t.Fatalf("unexpected backup name %s", b)
		}
	}
}

func TestOpenFallsBackToLatestBackupOnCorruption(t *testing.T) {
	fakeClock(t)
	dir := t.TempDir()
	ph, err := Create(filepath.Join(dir, "fb"), sampleProject())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	ph.Project.Screenplay[1].Text = "second draft"
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(ph.Path, []byte("{ this is not json"), 0o644); err != nil {
		t.Fatalf("corrupt project: %v", err)
	}
	opened, err := Open(ph.Path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	// The backup holds the state before the second save.
	if got := opened.Project.Screenplay[1].Text; got != "Rain against the window." {
		t.Fatalf("opened backup text: got %q", got)
	}
}

func TestOpenFallsBackOnSchemaViolation(t *testing.T) {
	fakeClock(t)
	dir := t.TempDir()
	ph, err := Create(filepath.Join(dir, "sv"), sampleProject())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(ph.Path, []byte(`{"screenplay": "nope"}`), 0o644); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	opened, err := Open(ph.Path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if len(opened.Project.Screenplay) != 6 {
		t.Fatalf("expected backup with 6 elements, got %d", len(opened.Project.Screenplay))
	}
}

func TestOpenWithoutBackupFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lost"+FileSuffix)
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatalf("expected error without backups")
	}
}

func TestSaveAsMovesHandle(t *testing.T) {
	dir := t.TempDir()
	ph, err := Create(filepath.Join(dir, "a"), sampleProject())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	other := filepath.Join(dir, "sub", "b")
	if err := SaveAs(ph, other); err != nil {
		t.Fatalf("SaveAs error: %v", err)
	}
	if ph.Path != other+FileSuffix || ph.Dir != filepath.Join(dir, "sub") {
		t.Fatalf("handle not updated: %+v", ph)
	}
	if _, err := os.Stat(ph.Path); err != nil {
		t.Fatalf("new file missing: %v", err)
	}
}

func TestReadProjectNilScreenplaySavesAsArray(t *testing.T) {
	dir := t.TempDir()
	ph, err := Create(filepath.Join(dir, "empty"), domain.Project{})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	f, err := os.Open(ph.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	p, err := ReadProject(f)
	if err != nil {
		t.Fatalf("ReadProject: %v", err)
	}
	if p.Screenplay == nil || len(p.Screenplay) != 0 {
		t.Fatalf("expected empty non-nil screenplay, got %#v", p.Screenplay)
	}
	if p.Cover != nil {
		t.Fatalf("expected no cover")
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	dir := t.TempDir()
	ph, err := Create(filepath.Join(dir, "crashy"), sampleProject())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	ph.Project.Screenplay = append(ph.Project.Screenplay, domain.Element{ID: "e7", Kind: domain.Transition, Text: "CUT TO:"})
	path, err := AutosaveCrashSnapshot(ph)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	if !strings.HasPrefix(path, filepath.Join(StateDir(dir), CrashDirName)) {
		t.Fatalf("snapshot outside crash dir: %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var got domain.Project
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if len(got.Screenplay) != 7 {
		t.Fatalf("snapshot elements: got %d want 7", len(got.Screenplay))
	}
	// The project file itself is untouched.
	disk, err := Open(ph.Path)
	if err != nil {
		t.Fatal(err)
	}
	if len(disk.Project.Screenplay) != 6 {
		t.Fatalf("project file changed by crash snapshot")
	}
}
