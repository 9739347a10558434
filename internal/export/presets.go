/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"villoscreenplay/internal/domain"
	"villoscreenplay/internal/paginate"
)

// PresetName represents a named export preset.
type PresetName string

const (
	// PresetPrint writes the submission PDF with gofpdf.
	PresetPrint PresetName = "print"
	// PresetDraft writes a PDF with embedded Go Mono through tdewolff/canvas.
	PresetDraft PresetName = "draft"
	// PresetWeb writes SVG and PNG page previews.
	PresetWeb PresetName = "web"
	// PresetAll runs every format.
	PresetAll PresetName = "all"
)

// Presets lists the known preset names.
func Presets() []PresetName { return []PresetName{PresetPrint, PresetDraft, PresetWeb, PresetAll} }

// BatchOptions controls ExportPreset.
//
// Output layout under OutDir:
//
//	<name>.pdf          print
//	<name>-draft.pdf    draft
//	svg/page-NNN.svg    web
//	png/page-NNN.png    web
//	layout.json         every preset
type BatchOptions struct {
	Preset  PresetName
	Formats []string // pdf, canvas, svg, png, json; empty means the preset's
	OutDir  string
	Name    string // base file name, default "screenplay"
	Labels  paginate.Labels
	DPI     int  // raster/vector preview DPI
	Margins bool // draw layout guides on previews
}

// Report lists what a batch export produced.
type Report struct {
	Result paginate.Result
	Files  []string
}

// ExportPreset runs the formats of a preset for p.
func ExportPreset(p domain.Project, opt BatchOptions) (Report, error) {
	var rep Report
	if opt.OutDir == "" {
		return rep, fmt.Errorf("batch export: no output directory")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		var err error
		if formats, err = presetDefaultFormats(opt.Preset); err != nil {
			return rep, err
		}
	}
	name := opt.Name
	if name == "" {
		name = "screenplay"
	}
	if err := os.MkdirAll(opt.OutDir, 0o755); err != nil {
		return rep, fmt.Errorf("ensure out dir: %w", err)
	}

	g := paginate.Letter()
	rec, res, err := Layout(p, g, opt.Labels)
	if err != nil {
		return rep, err
	}
	rep.Result = res

	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "pdf":
			out := filepath.Join(opt.OutDir, name+".pdf")
			if _, err := PDFFile(p, out, Options{Renderer: RendererFPDF, Labels: opt.Labels}); err != nil {
				return rep, fmt.Errorf("pdf: %w", err)
			}
			rep.Files = append(rep.Files, out)
		case "canvas":
			out := filepath.Join(opt.OutDir, name+"-draft.pdf")
			if _, err := PDFFile(p, out, Options{Renderer: RendererCanvas, Labels: opt.Labels}); err != nil {
				return rep, fmt.Errorf("canvas pdf: %w", err)
			}
			rep.Files = append(rep.Files, out)
		case "svg":
			files, err := WriteSVGPages(rec, g, filepath.Join(opt.OutDir, "svg"), SVGOptions{DPI: opt.DPI, Margins: opt.Margins})
			rep.Files = append(rep.Files, files...)
			if err != nil {
				return rep, fmt.Errorf("svg: %w", err)
			}
		case "png":
			files, err := WritePNGPages(rec, g, filepath.Join(opt.OutDir, "png"), PNGOptions{DPI: opt.DPI, Margins: opt.Margins})
			rep.Files = append(rep.Files, files...)
			if err != nil {
				return rep, fmt.Errorf("png: %w", err)
			}
		case "json":
			out := filepath.Join(opt.OutDir, "layout.json")
			f, err := os.Create(out)
			if err != nil {
				return rep, fmt.Errorf("json: %w", err)
			}
			werr := WriteDebugJSON(f, res, g, rec)
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				return rep, fmt.Errorf("json: %w", werr)
			}
			rep.Files = append(rep.Files, out)
		default:
			return rep, fmt.Errorf("unknown format: %s", f)
		}
	}
	return rep, nil
}

func presetDefaultFormats(p PresetName) ([]string, error) {
	switch p {
	case PresetPrint, "":
		return []string{"pdf", "json"}, nil
	case PresetDraft:
		return []string{"canvas", "json"}, nil
	case PresetWeb:
		return []string{"svg", "png", "json"}, nil
	case PresetAll:
		return []string{"pdf", "canvas", "svg", "png", "json"}, nil
	}
	return nil, fmt.Errorf("unknown preset: %s", p)
}
