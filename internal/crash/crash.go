/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file, a crash snapshot of the
// open screenplay and, when opted in, an anonymous upload.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "villoscreenplay/internal/log"
	"villoscreenplay/internal/storage"
	"villoscreenplay/internal/telemetry"
	"villoscreenplay/internal/version"
)

var (
	exitFn                  = os.Exit
	stderr        io.Writer = os.Stderr
	nowFn                   = time.Now
	reportStamp             = "20060102-150405"
	reportTimeout           = 2 * time.Second
)

// Recover captures a panic, logs it with its stack, writes a report file,
// saves a crash snapshot of the project (if any) and exits with code 2.
//
// Usage: defer crash.Recover(ph)
func Recover(ph *storage.ProjectHandle) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(ph, r, stack)
	if err != nil {
		l.Error("crash report not written", slog.Any("err", err))
	}
	if ph != nil {
		if path, err := storage.AutosaveCrashSnapshot(ph); err != nil {
			l.Error("crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("crash snapshot written", slog.String("path", path))
		}
	}

	out := stderr
	_, _ = fmt.Fprintf(out, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(out, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

// ReportDir is where crash reports for ph are written: the project's
// .villo/crash directory, or the system temp dir without a project.
func ReportDir(ph *storage.ProjectHandle) string {
	if ph == nil || (ph.Dir == "" && ph.Path == "") {
		return os.TempDir()
	}
	dir := ph.Dir
	if dir == "" {
		dir = filepath.Dir(ph.Path)
	}
	return filepath.Join(storage.StateDir(dir), storage.CrashDirName)
}

func writeReport(ph *storage.ProjectHandle, panicVal any, stack []byte) (string, error) {
	dir := ReportDir(ph)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	now := nowFn()
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format(reportStamp)))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Villo Crash Report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if ph != nil {
		fmt.Fprintf(&buf, "Project: %s\n", ph.Path)
		fmt.Fprintf(&buf, "Elements: %d\n", len(ph.Project.Screenplay))
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return path, err
	}
	_ = f.Sync()
	if err := f.Close(); err != nil {
		return path, err
	}

	// Upload is a no-op unless telemetry is opted in.
	telemetry.UploadCrash(buf.Bytes())
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()
	telemetry.Flush(ctx)
	return path, nil
}
