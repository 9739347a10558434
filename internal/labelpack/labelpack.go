/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package labelpack stores custom label languages for a project and moves
// them between projects as zip archives.
//
// A pack holds one YAML file per language under labels/, for example
// labels/fr.yaml:
//
//	writtenBy: "Écrit par"
//	versionPrefix: "Version : "
//	datePrefix: "Date : "
//	placeholder: "PERSONNAGE"
package labelpack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "villoscreenplay/internal/log"
	"villoscreenplay/internal/paginate"
	"villoscreenplay/internal/storage"
)

const (
	dirName      = "labels"
	manifestName = "labelpack.manifest.txt"
	maxFileBytes = 64 << 10
)

var nowFn = time.Now

// Dir is where a project under projectDir keeps its label files.
func Dir(projectDir string) string { return filepath.Join(storage.StateDir(projectDir), dirName) }

func normLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	return lang
}

// Save writes labels for lang into the project.
func Save(projectDir, lang string, l paginate.Labels) error {
	lang = normLang(lang)
	if lang == "" || strings.ContainsAny(lang, `/\.`) {
		return fmt.Errorf("invalid language %q", lang)
	}
	if err := os.MkdirAll(Dir(projectDir), 0o755); err != nil {
		return fmt.Errorf("ensure labels dir: %w", err)
	}
	b, err := yaml.Marshal(l)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(Dir(projectDir), lang+".yaml"), b, 0o644)
}

// Languages lists the languages the project defines.
func Languages(projectDir string) ([]string, error) {
	entries, err := os.ReadDir(Dir(projectDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".yaml") {
			out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Resolve returns the labels for lang: the project's own file when there is
// one, with missing fields taken from the built-in labels, otherwise the
// built-in labels.
func Resolve(projectDir, lang string) (paginate.Labels, error) {
	base := paginate.LabelsFor(lang)
	name := normLang(lang)
	if name == "" || projectDir == "" {
		return base, nil
	}
	b, err := os.ReadFile(filepath.Join(Dir(projectDir), name+".yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return base, err
	}
	var l paginate.Labels
	if err := yaml.Unmarshal(b, &l); err != nil {
		return base, fmt.Errorf("labels %s: %w", name, err)
	}
	if l.WrittenBy == "" {
		l.WrittenBy = base.WrittenBy
	}
	if l.VersionPrefix == "" {
		l.VersionPrefix = base.VersionPrefix
	}
	if l.DatePrefix == "" {
		l.DatePrefix = base.DatePrefix
	}
	if l.Placeholder == "" {
		l.Placeholder = base.Placeholder
	}
	return l, nil
}

// Export zips the project's label files into destZip, with a short manifest
// at the root.
func Export(projectDir, destZip string) (n int, err error) {
	l := applog.WithOperation(applog.WithComponent("labelpack"), "export").With(slog.String("project", projectDir))
	if strings.TrimSpace(destZip) == "" {
		return 0, errors.New("destination is required")
	}
	langs, err := Languages(projectDir)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(destZip), 0o755); err != nil {
		return 0, fmt.Errorf("ensure zip dir: %w", err)
	}
	zf, err := os.Create(destZip)
	if err != nil {
		return 0, fmt.Errorf("create zip: %w", err)
	}
	defer func() {
		if cerr := zf.Close(); err == nil {
			err = cerr
		}
	}()
	zw := zip.NewWriter(zf)
	defer func() {
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	}()

	w, err := zw.Create(manifestName)
	if err != nil {
		return 0, fmt.Errorf("add manifest: %w", err)
	}
	fmt.Fprintf(w, "Villo Label Pack\nCreated: %s\nLanguages: %s\n", nowFn().Format(time.RFC3339), strings.Join(langs, ", "))

	for _, lang := range langs {
		b, err := os.ReadFile(filepath.Join(Dir(projectDir), lang+".yaml"))
		if err != nil {
			return n, err
		}
		fw, err := zw.Create(path.Join(dirName, lang+".yaml"))
		if err != nil {
			return n, err
		}
		if _, err := fw.Write(b); err != nil {
			return n, err
		}
		n++
	}
	l.Info("label pack exported", slog.Int("languages", n), slog.String("zip", destZip))
	return n, nil
}

// Install extracts the label files of packZip into the project. Languages
// the project already defines are kept; files that do not parse as labels
// are rejected.
func Install(projectDir, packZip string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("labelpack"), "install").With(slog.String("project", projectDir))
	r, err := zip.OpenReader(packZip)
	if err != nil {
		return 0, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()
	if err := os.MkdirAll(Dir(projectDir), 0o755); err != nil {
		return 0, fmt.Errorf("ensure labels dir: %w", err)
	}

	installed := 0
	for _, f := range r.File {
		if f.FileInfo().IsDir() || f.Name == manifestName {
			continue
		}
		// Only flat labels/<lang>.yaml entries are accepted.
		dir, base := path.Split(f.Name)
		if dir != dirName+"/" || !strings.HasSuffix(base, ".yaml") || strings.HasPrefix(base, ".") {
			l.Warn("skip foreign entry", slog.String("entry", f.Name))
			continue
		}
		target := filepath.Join(Dir(projectDir), base)
		if _, err := os.Stat(target); err == nil {
			l.Warn("skip existing language", slog.String("file", base))
			continue
		}
		b, err := readEntry(f)
		if err != nil {
			return installed, err
		}
		var lb paginate.Labels
		if err := yaml.Unmarshal(b, &lb); err != nil {
			return installed, fmt.Errorf("%s: %w", f.Name, err)
		}
		if err := os.WriteFile(target, b, 0o644); err != nil {
			return installed, err
		}
		installed++
	}
	l.Info("label pack installed", slog.Int("languages", installed))
	return installed, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(io.LimitReader(rc, maxFileBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxFileBytes {
		return nil, fmt.Errorf("%s: too large", f.Name)
	}
	return b, nil
}
