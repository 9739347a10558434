/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"villoscreenplay/internal/domain"
	"villoscreenplay/internal/storage"
)

func fixedNow(t *testing.T) {
	t.Helper()
	old := nowFn
	nowFn = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	t.Cleanup(func() { nowFn = old })
}

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	fixedNow(t)
	t.Setenv("TMPDIR", t.TempDir())

	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Base(path) != "crash-20260304-050607.log" {
		t.Fatalf("unexpected report name %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.HasPrefix(s, "Villo Crash Report\n") {
		t.Fatalf("report header missing: %s", s)
	}
	if !strings.Contains(s, "Panic: boom") || !strings.Contains(s, "stacktrace") {
		t.Fatalf("panic content missing: %s", s)
	}
	if strings.Contains(s, "Project:") {
		t.Fatalf("no project expected: %s", s)
	}
}

func TestWriteReportCreatesFileInProjectStateDir(t *testing.T) {
	fixedNow(t)
	dir := t.TempDir()
	ph := &storage.ProjectHandle{Path: filepath.Join(dir, "pilot"+storage.FileSuffix), Dir: dir}

	path, err := writeReport(ph, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	want := filepath.Join(storage.StateDir(dir), storage.CrashDirName)
	if filepath.Dir(path) != want {
		t.Fatalf("expected report under %s, got %s", want, path)
	}
	b, _ := os.ReadFile(path)
	if !bytes.Contains(b, []byte("Project: "+ph.Path)) {
		t.Fatalf("project path missing: %s", b)
	}
}

func TestReportDirFallsBackToPathDir(t *testing.T) {
	dir := t.TempDir()
	ph := &storage.ProjectHandle{Path: filepath.Join(dir, "a"+storage.FileSuffix)}
	if got, want := ReportDir(ph), filepath.Join(dir, storage.StateDirName, storage.CrashDirName); got != want {
		t.Fatalf("ReportDir=%s want %s", got, want)
	}
	if got := ReportDir(nil); got != os.TempDir() {
		t.Fatalf("ReportDir(nil)=%s", got)
	}
}

func TestRecoverWritesReportAndSnapshot(t *testing.T) {
	fixedNow(t)
	var errOut bytes.Buffer
	oldErr := stderr
	stderr = &errOut
	t.Cleanup(func() { stderr = oldErr })

	code := -1
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = oldExit })

	dir := t.TempDir()
	ph := &storage.ProjectHandle{
		Path: filepath.Join(dir, "pilot"+storage.FileSuffix),
		Dir:  dir,
		Project: domain.Project{Screenplay: []domain.Element{
			domain.NewElement(domain.SceneHeading, "int. kitchen - day"),
		}},
	}

	func() {
		defer Recover(ph)
		panic("boom")
	}()

	if code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	crashDir := ReportDir(ph)
	entries, err := os.ReadDir(crashDir)
	if err != nil {
		t.Fatalf("read crash dir: %v", err)
	}
	var report, snapshot string
	for _, e := range entries {
		switch {
		case strings.HasPrefix(e.Name(), "crash-") && strings.HasSuffix(e.Name(), ".log"):
			report = filepath.Join(crashDir, e.Name())
		case strings.HasSuffix(e.Name(), storage.FileSuffix):
			snapshot = filepath.Join(crashDir, e.Name())
		}
	}
	if report == "" || snapshot == "" {
		t.Fatalf("report=%q snapshot=%q in %v", report, snapshot, entries)
	}
	b, _ := os.ReadFile(report)
	if !bytes.Contains(b, []byte("Panic: boom")) {
		t.Fatalf("report does not contain panic: %s", b)
	}
	f, err := os.Open(snapshot)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer f.Close()
	p, err := storage.ReadProject(f)
	if err != nil {
		t.Fatalf("snapshot unreadable: %v", err)
	}
	if len(p.Screenplay) != 1 || p.Screenplay[0].Text != "INT. KITCHEN - DAY" {
		t.Fatalf("snapshot content: %+v", p.Screenplay)
	}
	if !strings.Contains(errOut.String(), report) {
		t.Fatalf("stderr does not name the report: %s", errOut.String())
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	called := false
	oldExit := exitFn
	exitFn = func(int) { called = true }
	t.Cleanup(func() { exitFn = oldExit })

	func() {
		defer Recover(nil)
	}()
	if called {
		t.Fatalf("exit called without panic")
	}
}
