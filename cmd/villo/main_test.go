/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"flag"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zalando/go-keyring"

	"villoscreenplay/internal/backend"
	"villoscreenplay/internal/storage"
)

func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("VSP_CONFIG_DIR", t.TempDir())
	t.Setenv("VSP_TELEMETRY_OPT_IN", "")
	t.Setenv("VSP_BACKEND_TOKEN", "")
	keyring.MockInit()
	return t.TempDir()
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	code, out, errOut := runCLI(t, args...)
	if code != 0 {
		t.Fatalf("villo %s: exit %d\nstdout: %s\nstderr: %s", strings.Join(args, " "), code, out, errOut)
	}
	return out
}

func TestVersionAndUsage(t *testing.T) {
	isolate(t)
	if out := mustRun(t, "version"); !strings.HasPrefix(out, "villo ") {
		t.Fatalf("version output %q", out)
	}
	if out := mustRun(t); !strings.Contains(out, "Usage:") {
		t.Fatalf("usage output %q", out)
	}
	code, _, errOut := runCLI(t, "frobnicate")
	if code != 2 || !strings.Contains(errOut, "unknown command") {
		t.Fatalf("unknown command: exit %d %q", code, errOut)
	}
	if code, _, _ := runCLI(t, "add", "x"); code != 2 {
		t.Fatalf("add without args: exit %d", code)
	}
	if code, _, _ := runCLI(t, "preview", "x"); code != 2 {
		t.Fatalf("preview without dir: exit %d", code)
	}
}

func TestInitAddShowExport(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "pilot")

	mustRun(t, "init", file, "--title", "Pilot", "--author", "Ana")
	if _, err := os.Stat(file + storage.FileSuffix); err != nil {
		t.Fatalf("project file missing: %v", err)
	}
	if code, _, _ := runCLI(t, "init", file); code != 1 {
		t.Fatalf("init over existing file: exit %d", code)
	}

	mustRun(t, "add", file, "slugline", "int. kitchen - day")
	mustRun(t, "add", file, "action", "Ana", "pours", "coffee.")
	mustRun(t, "add", file, "character", "ana")
	mustRun(t, "add", file, "dialogue", "Morning.")
	if code, _, _ := runCLI(t, "add", file, "song", "la la"); code != 2 {
		t.Fatalf("bad kind: exit %d", code)
	}
	if code, _, _ := runCLI(t, "add", file, "action", "   "); code != 1 {
		t.Fatalf("blank text: exit %d", code)
	}

	out := mustRun(t, "show", file)
	for _, want := range []string{
		"Title: Pilot",
		"INT. KITCHEN - DAY",
		"Ana pours coffee.",
		"Sheets: 2  Pages: 1  Scenes: 1",
		"1. INT. KITCHEN - DAY (p. 1)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output lacks %q:\n%s", want, out)
		}
	}

	pdf := filepath.Join(dir, "out", "pilot.pdf")
	layout := filepath.Join(dir, "out", "layout.json")
	mustRun(t, "export", file, pdf, "--renderer", "canvas", "--json", layout, "--lang", "es")
	b, err := os.ReadFile(pdf)
	if err != nil || !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("pdf not written: %v", err)
	}
	lj, err := os.ReadFile(layout)
	if err != nil {
		t.Fatalf("layout json: %v", err)
	}
	if !bytes.Contains(lj, []byte("Escrito por")) {
		t.Fatalf("layout json lacks Spanish cover label")
	}
	if code, _, _ := runCLI(t, "export", file, pdf, "--renderer", "troff"); code != 2 {
		t.Fatalf("bad renderer: exit %d", code)
	}
}

func TestImportSearchAutosave(t *testing.T) {
	dir := isolate(t)
	txt := filepath.Join(dir, "script.txt")
	src := "Title: Night Shift\nAuthor: Ana\n\nINT. DINER - NIGHT\n\nRain on the window.\n\nBOB\n(quietly)\nMore coffee?\n\nCUT TO:\n\nEXT. STREET - NIGHT\n\nBob runs for the bus.\n"
	if err := os.WriteFile(txt, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(dir, "night")
	out := mustRun(t, "import", txt, file)
	if !strings.Contains(out, "Imported 8 elements") {
		t.Fatalf("import output %q", out)
	}

	out = mustRun(t, "search", file, "coffee")
	if !strings.Contains(out, "[coffee]") || !strings.Contains(out, "1 hits") {
		t.Fatalf("search output %q", out)
	}
	out = mustRun(t, "search", file, "--kind", "slugline")
	if !strings.Contains(out, "DINER") || !strings.Contains(out, "STREET") || !strings.Contains(out, "2 hits") {
		t.Fatalf("kind search output %q", out)
	}
	out = mustRun(t, "search", file, "--scene", "2")
	if !strings.Contains(out, "Bob runs") || strings.Contains(out, "Rain") {
		t.Fatalf("scene search output %q", out)
	}

	mustRun(t, "autosave", file)
	mustRun(t, "autosave", file)
	out = mustRun(t, "autosave", file, "--list")
	if got := strings.Count(out, "8 elements"); got != 2 {
		t.Fatalf("expected two autosaves, got %d:\n%s", got, out)
	}
}

func TestPresetAndPreview(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "short")
	mustRun(t, "init", file)
	mustRun(t, "add", file, "action", "Nothing happens.")

	outDir := filepath.Join(dir, "web")
	out := mustRun(t, "preview", file, outDir)
	for _, f := range []string{"svg/page-001.svg", "png/page-001.png"} {
		if _, err := os.Stat(filepath.Join(outDir, f)); err != nil {
			t.Fatalf("%s missing: %v\n%s", f, err, out)
		}
	}
	printDir := filepath.Join(dir, "print")
	mustRun(t, "preset", file, printDir, "print")
	if _, err := os.Stat(filepath.Join(printDir, "short.pdf")); err != nil {
		t.Fatalf("print preset pdf missing: %v", err)
	}
	if code, _, _ := runCLI(t, "preset", file, printDir, "poster"); code != 1 {
		t.Fatalf("unknown preset: exit %d", code)
	}
}

func TestRemoteWithoutStore(t *testing.T) {
	dir := isolate(t)
	srv := httptest.NewServer(backend.NewServer(backend.Config{Secret: "k"}, nil).Handler())
	defer srv.Close()
	t.Setenv("VSP_BACKEND_URL", srv.URL)

	mustRun(t, "remote", "login", "--subject", "ana")
	code, _, errOut := runCLI(t, "remote", "list")
	if code != 1 || !strings.Contains(errOut, "503") {
		t.Fatalf("remote list: exit %d %q", code, errOut)
	}
	file := filepath.Join(dir, "p")
	mustRun(t, "init", file)
	if code, _, _ := runCLI(t, "remote", "push", file); code != 1 {
		t.Fatalf("remote push: exit %d", code)
	}
	if code, _, _ := runCLI(t, "remote", "sync"); code != 2 {
		t.Fatalf("unknown remote command: exit %d", code)
	}
}

func TestParseArgsInterspersed(t *testing.T) {
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	n := fs.Int("n", 0, "")
	v := fs.Bool("v", false, "")
	pos, err := parseArgs(fs, []string{"a", "-n", "3", "b", "-v", "c"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, pos); diff != "" {
		t.Fatalf("positionals (-want +got):\n%s", diff)
	}
	if *n != 3 || !*v {
		t.Fatalf("flags n=%d v=%v", *n, *v)
	}
	if _, err := parseArgs(flag.NewFlagSet("t", flag.ContinueOnError), []string{"-x"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}

func TestCustomLabels(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "fr")
	mustRun(t, "init", file, "--title", "Le Film", "--author", "Ana")
	mustRun(t, "add", file, "dialogue", "Bonjour.")
	mustRun(t, "labels", file, "set", "fr", "--written-by", "Écrit par", "--placeholder", "PERSONNAGE")
	if out := mustRun(t, "labels", file, "list"); strings.TrimSpace(out) != "fr" {
		t.Fatalf("labels list %q", out)
	}

	layout := filepath.Join(dir, "layout.json")
	mustRun(t, "export", file, filepath.Join(dir, "fr.pdf"), "--lang", "fr", "--json", layout)
	b, err := os.ReadFile(layout)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(b, []byte("Écrit par")) {
		t.Fatalf("layout lacks the custom cover credit")
	}

	zipPath := filepath.Join(dir, "labels.zip")
	mustRun(t, "labels", file, "export", zipPath)
	other := filepath.Join(dir, "other", "o")
	mustRun(t, "init", other)
	if out := mustRun(t, "labels", other, "install", zipPath); !strings.Contains(out, "Installed 1") {
		t.Fatalf("install output %q", out)
	}
}
