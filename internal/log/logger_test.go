/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lastJSONLine(t *testing.T, b []byte) map[string]any {
	t.Helper()
	sc := bufio.NewScanner(bytes.NewReader(b))
	var last string
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines found")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log: %v", err)
	}
	return m
}

func TestInitJSONCarriesStaticAndContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Format: "json", Out: &buf})

	l := WithOperation(WithComponent("paginate"), "run")
	ctx := ContextWithProject(context.Background(), "/tmp/pilot.villo.json")
	l.InfoContext(ctx, "layout done", slog.Int("pages", 3))

	m := lastJSONLine(t, buf.Bytes())
	if m["app"] != "villo" {
		t.Fatalf("app attr: %v", m["app"])
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if m["component"] != "paginate" || m["op"] != "run" {
		t.Fatalf("component/op mismatch: %v", m)
	}
	if m["project"] != "/tmp/pilot.villo.json" {
		t.Fatalf("project attr: %v", m["project"])
	}
	if m["pages"] != float64(3) {
		t.Fatalf("pages attr: %v", m["pages"])
	}
}

func TestInitWritesRotatedFile(t *testing.T) {
	fpath := filepath.Join(os.TempDir(), fmt.Sprintf("vsp_log_%d.json", time.Now().UnixNano()))
	var console bytes.Buffer
	Init(Options{Level: "info", Format: "text", File: fpath, Out: &console})
	L().Info("to both sinks")
	L().Debug("filtered")

	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	m := lastJSONLine(t, b)
	if m["msg"] != "to both sinks" {
		t.Fatalf("msg mismatch: %v", m["msg"])
	}
	if !strings.Contains(console.String(), "INF to both sinks") {
		t.Fatalf("console output: %q", console.String())
	}
	if strings.Contains(console.String(), "filtered") {
		t.Fatalf("debug record leaked at info level")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("VSP_LOG_LEVEL", "warn")
	t.Setenv("VSP_LOG_FORMAT", "json")
	t.Setenv("VSP_LOG_SOURCE", "TRUE")
	t.Setenv("VSP_LOG_FILE", "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	if v := getenv("VSP_SOME_UNSET_VAR", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
}

func TestPrettyTextHandler(t *testing.T) {
	var buf bytes.Buffer
	var h slog.Handler = &prettyTextHandler{level: slog.LevelWarn, w: &buf}

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info should not be enabled at warn level")
	}
	h = h.WithAttrs([]slog.Attr{slog.String("k", "v")}).WithGroup("grp")

	r := slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	r.AddAttrs(slog.Int("n", 42), slog.Float64("lh", 0.17), slog.String("text", "INT. OFFICE"))
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("handle: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ERR boom", "k=v", "grp.n=42", "grp.lh=0.17", `grp.text="INT. OFFICE"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, " WARNING ": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
