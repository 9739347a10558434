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
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"villoscreenplay/internal/domain"
	applog "villoscreenplay/internal/log"
)

const (
	// FileSuffix is appended to project names to form the project file name.
	FileSuffix     = ".villo.json"
	StateDirName   = ".villo"
	BackupsDirName = "backups"
	CrashDirName   = "crash"

	// BackupKeep is how many timestamped backups Save retains per project file.
	BackupKeep = 10

	backupStamp = "20060102-150405"
)

// ErrNotProjectFile is returned for paths that do not end in FileSuffix.
var ErrNotProjectFile = errors.New("not a " + FileSuffix + " file")

// nowFn is replaced in tests.
var nowFn = time.Now

// ProjectHandle keeps track of a project loaded from or saved to disk.
// Path is the project file, Dir its directory (which also hosts .villo).
type ProjectHandle struct {
	Path    string
	Dir     string
	Project domain.Project
}

// StateDir returns the .villo directory for project files in dir.
func StateDir(dir string) string { return filepath.Join(dir, StateDirName) }

// BackupsDir returns the directory holding timestamped project backups.
func BackupsDir(dir string) string { return filepath.Join(StateDir(dir), BackupsDirName) }

// ProjectPath turns a bare name or path into a project file path by
// appending FileSuffix when it is missing.
func ProjectPath(name string) string {
	if strings.HasSuffix(name, FileSuffix) {
		return name
	}
	return name + FileSuffix
}

// NameOf returns the project name encoded in a project file path.
func NameOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), FileSuffix)
}

// Create writes a new project file at path (FileSuffix is appended when
// missing). It fails when the file already exists.
func Create(path string, proj domain.Project) (*ProjectHandle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("project path is required")
	}
	path = ProjectPath(path)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("create %s: %w", path, os.ErrExist)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(BackupsDir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	ph := &ProjectHandle{Path: path, Dir: dir, Project: proj}
	if err := Save(ph); err != nil {
		return nil, err
	}
	return ph, nil
}

// Open loads and validates the project file at path. If the file cannot be
// read, parsed or validated, the latest backup is tried instead.
func Open(path string) (*ProjectHandle, error) {
	if !strings.HasSuffix(path, FileSuffix) {
		return nil, fmt.Errorf("open %s: %w", path, ErrNotProjectFile)
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("path", path))
	dir := filepath.Dir(path)
	p, err := readProjectFile(path)
	if err != nil {
		bp, berr := openFromLatestBackup(dir, filepath.Base(path))
		if berr != nil {
			return nil, fmt.Errorf("open project: %w; backup attempt: %v", err, berr)
		}
		l.Warn("project file unreadable, opened latest backup", slog.Any("err", err))
		p = bp
	}
	return &ProjectHandle{Path: path, Dir: dir, Project: *p}, nil
}

// ReadProject decodes and validates a project document from r.
func ReadProject(r io.Reader) (domain.Project, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return domain.Project{}, fmt.Errorf("read project: %w", err)
	}
	p, err := decodeProject(b)
	if err != nil {
		return domain.Project{}, err
	}
	return *p, nil
}

// Save writes ph.Project to disk with transactional semantics and keeps a
// timestamped backup of the previous file. SavedDate is stamped first.
func Save(ph *ProjectHandle) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if ph.Path == "" {
		return errors.New("invalid ProjectHandle: missing path")
	}
	if ph.Dir == "" {
		ph.Dir = filepath.Dir(ph.Path)
	}
	if ph.Project.Screenplay == nil {
		ph.Project.Screenplay = []domain.Element{}
	}
	ph.Project.SavedDate = nowFn().UTC().Truncate(time.Second)
	data, err := encodeProject(ph.Project)
	if err != nil {
		return err
	}

	bdir := BackupsDir(ph.Dir)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	base := filepath.Base(ph.Path)
	if _, statErr := os.Stat(ph.Path); statErr == nil {
		bname := fmt.Sprintf("%s.%s.bak", base, nowFn().Format(backupStamp))
		if cerr := copyFile(ph.Path, filepath.Join(bdir, bname)); cerr != nil {
			return fmt.Errorf("backup current project: %w", cerr)
		}
		pruneBackups(ph.Path, BackupKeep)
	}

	// Transactional write: temp file in the same directory, then rename over target.
	temp := filepath.Join(ph.Dir, fmt.Sprintf(".%s.tmp-%d-%d", base, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp project: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(ph.Path); err == nil {
		_ = os.Remove(ph.Path)
	}
	if rerr := os.Rename(temp, ph.Path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace project: %w", rerr)
	}
	applog.WithComponent("storage").Debug("project saved",
		slog.String("path", ph.Path), slog.Int("elements", len(ph.Project.Screenplay)))
	return nil
}

// SaveAs writes the project to a new path and updates the handle.
func SaveAs(ph *ProjectHandle, newPath string) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if strings.TrimSpace(newPath) == "" {
		return errors.New("new path is empty")
	}
	newPath = ProjectPath(newPath)
	dir := filepath.Dir(newPath)
	if err := os.MkdirAll(BackupsDir(dir), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	ph.Path = newPath
	ph.Dir = dir
	return Save(ph)
}

// ListBackups returns the backup files of the project at path, oldest first.
func ListBackups(path string) ([]string, error) {
	bdir := BackupsDir(filepath.Dir(path))
	ents, err := os.ReadDir(bdir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

// AutosaveCrashSnapshot writes p to .villo/crash/<name>.<stamp>.villo.json
// without touching the project file or its backups. It returns the path written.
func AutosaveCrashSnapshot(ph *ProjectHandle) (string, error) {
	if ph == nil {
		return "", errors.New("nil ProjectHandle")
	}
	dir := ph.Dir
	if dir == "" {
		dir = filepath.Dir(ph.Path)
	}
	cdir := filepath.Join(StateDir(dir), CrashDirName)
	if err := os.MkdirAll(cdir, 0o755); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	p := ph.Project
	if p.Screenplay == nil {
		p.Screenplay = []domain.Element{}
	}
	data, err := encodeProject(p)
	if err != nil {
		return "", err
	}
	name := NameOf(ph.Path)
	if name == "" || name == "." {
		name = "untitled"
	}
	path := filepath.Join(cdir, fmt.Sprintf("%s.%s%s", name, nowFn().Format(backupStamp), FileSuffix))
	if err := writeFileSync(path, data); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

func encodeProject(p domain.Project) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal project: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeProject(b []byte) (*domain.Project, error) {
	if err := ValidateProjectJSON(b); err != nil {
		return nil, err
	}
	var p domain.Project
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}
	return &p, nil
}

func readProjectFile(path string) (*domain.Project, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	return decodeProject(b)
}

// pruneBackups deletes the oldest backups of path beyond keep.
func pruneBackups(path string, keep int) {
	all, err := ListBackups(path)
	if err != nil || len(all) <= keep {
		return
	}
	for _, p := range all[:len(all)-keep] {
		if err := os.Remove(p); err != nil {
			applog.WithComponent("storage").Warn("remove old backup failed", slog.String("path", p), slog.Any("err", err))
		}
	}
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openFromLatestBackup walks the backups of base from newest to oldest and
// returns the first one that decodes.
func openFromLatestBackup(dir, base string) (*domain.Project, error) {
	candidates, err := ListBackups(filepath.Join(dir, base))
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	var lastErr error
	for i := len(candidates) - 1; i >= 0; i-- {
		p, err := readProjectFile(candidates[i])
		if err == nil {
			return p, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no usable backup: %w", lastErr)
}
