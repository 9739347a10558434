/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export turns a screenplay project into output files: PDF through
// gofpdf or tdewolff/canvas, SVG and PNG page previews, and a JSON dump of
// the layout instructions. Every path runs the paginator from scratch.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"villoscreenplay/internal/domain"
	applog "villoscreenplay/internal/log"
	"villoscreenplay/internal/paginate"
	"villoscreenplay/internal/textlayout"
)

// Renderer selects the PDF backend.
type Renderer string

const (
	RendererFPDF   Renderer = "fpdf"
	RendererCanvas Renderer = "canvas"
)

var ErrUnknownRenderer = errors.New("export: unknown renderer")

// ParseRenderer accepts "fpdf", "canvas" or "" (fpdf).
func ParseRenderer(s string) (Renderer, error) {
	switch Renderer(strings.ToLower(strings.TrimSpace(s))) {
	case "", RendererFPDF:
		return RendererFPDF, nil
	case RendererCanvas:
		return RendererCanvas, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRenderer, s)
}

// Options controls a PDF export.
type Options struct {
	Renderer Renderer
	Geometry paginate.Geometry // zero means Letter
	Labels   paginate.Labels   // zero fields fall back to English
	Meta     Meta              // Title/Author default to the cover data
	// Recorder, when set, receives a copy of every layout instruction.
	Recorder *paginate.Recorder
}

func (o Options) geometry() paginate.Geometry {
	if o.Geometry == (paginate.Geometry{}) {
		return paginate.Letter()
	}
	return o.Geometry
}

func metaFor(p domain.Project, m Meta) Meta {
	if m.Title == "" {
		m.Title = p.Title()
	}
	if m.Author == "" && p.Cover != nil {
		m.Author = p.Cover.Author
	}
	if m.Created.IsZero() {
		m.Created = p.SavedDate
	}
	return m
}

type documentSink interface {
	paginate.Sink
	io.WriterTo
}

// PDF paginates p and writes the document to w.
func PDF(p domain.Project, w io.Writer, opt Options) (paginate.Result, error) {
	l := applog.WithOperation(applog.WithComponent("export"), "pdf")
	g := opt.geometry()
	meta := metaFor(p, opt.Meta)

	r, err := ParseRenderer(string(opt.Renderer))
	if err != nil {
		return paginate.Result{}, err
	}
	var (
		sink    documentSink
		wrapper paginate.Wrapper
	)
	switch r {
	case RendererCanvas:
		lib, err := textlayout.DefaultLibrary()
		if err != nil {
			return paginate.Result{}, err
		}
		cs, err := NewCanvasSink(g, meta, lib)
		if err != nil {
			return paginate.Result{}, err
		}
		sink, wrapper = cs, lib.Wrapper(textlayout.MonoFamily, g.FontSize)
	default:
		ps := NewPDFSink(g, meta)
		sink, wrapper = ps, ps
	}

	var target paginate.Sink = sink
	if opt.Recorder != nil {
		target = paginate.Tee{sink, opt.Recorder}
	}
	pg := &paginate.Paginator{Wrapper: wrapper, Sink: target, Geometry: g, Labels: opt.Labels, Logger: l}

	start := time.Now()
	res, err := pg.Run(p.Screenplay, p.Cover)
	if err != nil {
		return res, err
	}
	if ps, ok := sink.(*PDFSink); ok {
		if err := ps.Err(); err != nil {
			return res, fmt.Errorf("render pdf: %w", err)
		}
	}
	n, err := sink.WriteTo(w)
	if err != nil {
		return res, err
	}
	l.Info("pdf exported",
		slog.String("renderer", string(r)),
		slog.Int("sheets", res.Sheets),
		slog.Int("scenes", len(res.Scenes)),
		slog.Int64("bytes", n),
		slog.Duration("took", time.Since(start)))
	return res, nil
}

// PDFFile writes the PDF to path through a temporary file in the same
// directory, so a failed export never leaves a truncated document behind.
func PDFFile(p domain.Project, path string, opt Options) (paginate.Result, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return paginate.Result{}, fmt.Errorf("ensure out dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*.pdf")
	if err != nil {
		return paginate.Result{}, fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	res, err := PDF(p, tmp, opt)
	if err != nil {
		_ = tmp.Close()
		return res, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return res, fmt.Errorf("sync pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return res, fmt.Errorf("close pdf: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return res, fmt.Errorf("rename pdf: %w", err)
	}
	return res, nil
}

// Layout paginates p into a Recorder using Courier metrics, without
// producing a document.
func Layout(p domain.Project, g paginate.Geometry, labels paginate.Labels) (*paginate.Recorder, paginate.Result, error) {
	if g == (paginate.Geometry{}) {
		g = paginate.Letter()
	}
	rec := &paginate.Recorder{}
	pg := &paginate.Paginator{Wrapper: textlayout.Monospace{}, Sink: rec, Geometry: g, Labels: labels}
	res, err := pg.Run(p.Screenplay, p.Cover)
	return rec, res, err
}

// Debug is the JSON document written by WriteDebugJSON.
type Debug struct {
	Result   paginate.Result   `json:"result"`
	Geometry paginate.Geometry `json:"geometry"`
	Pages    []paginate.Page   `json:"pages"`
}

// WriteDebugJSON dumps the layout instructions as indented JSON.
func WriteDebugJSON(w io.Writer, res paginate.Result, g paginate.Geometry, rec *paginate.Recorder) error {
	d := Debug{Result: res, Geometry: g}
	if rec != nil {
		d.Pages = rec.Pages
	}
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode debug json: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
