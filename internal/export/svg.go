/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"villoscreenplay/internal/paginate"
)

// SVGOptions controls SVG page previews.
type SVGOptions struct {
	// DPI sets the width/height attributes; the viewBox stays in inches.
	DPI int
	// Margins draws the bottom content boundary and the column edges as
	// hairlines, useful when checking a layout by eye.
	Margins bool
}

// WriteSVGPage renders one recorded page as SVG.
func WriteSVGPage(w io.Writer, pg paginate.Page, g paginate.Geometry, opt SVGOptions) error {
	dpi := opt.DPI
	if dpi <= 0 {
		dpi = 96
	}
	pxW := int(math.Round(g.PageWidth * float64(dpi)))
	pxH := int(math.Round(g.PageHeight * float64(dpi)))

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"0 0 %g %g\">\n", pxW, pxH, g.PageWidth, g.PageHeight)
	wf("  <rect x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" fill=\"#ffffff\"/>\n", g.PageWidth, g.PageHeight)
	if opt.Margins {
		guide := "stroke=\"#ff0000\" stroke-width=\"0.005\""
		wf("  <line x1=\"0\" y1=\"%g\" x2=\"%g\" y2=\"%g\" %s/>\n", g.Bottom, g.PageWidth, g.Bottom, guide)
		for _, x := range []float64{g.ActionX, g.DialogueX, g.DialogueRight, g.RightEdge} {
			wf("  <line x1=\"%g\" y1=\"0\" x2=\"%g\" y2=\"%g\" %s/>\n", x, x, g.PageHeight, guide)
		}
	}
	for _, p := range pg.Placements {
		size := p.Size
		if size <= 0 {
			size = g.FontSize
		}
		weight := ""
		if p.Weight == paginate.Bold {
			weight = " font-weight=\"bold\""
		}
		wf("  <text x=\"%g\" y=\"%g\" font-family=\"Courier, monospace\" font-size=\"%g\"%s text-anchor=\"%s\" xml:space=\"preserve\" fill=\"#000\">%s</text>\n",
			p.X, p.Y, size/72, weight, svgAnchor(p.Align), escText(p.Content))
	}
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func svgAnchor(a paginate.Align) string {
	switch a {
	case paginate.Center:
		return "middle"
	case paginate.Right:
		return "end"
	default:
		return "start"
	}
}

// WriteSVGPages writes page-NNN.svg files into outDir and returns their paths.
func WriteSVGPages(rec *paginate.Recorder, g paginate.Geometry, outDir string, opt SVGOptions) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	var out []string
	for i, pg := range rec.Pages {
		var buf bytes.Buffer
		if err := WriteSVGPage(&buf, pg, g, opt); err != nil {
			return out, err
		}
		name := filepath.Join(outDir, pageFileName(i, "svg"))
		if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
			return out, fmt.Errorf("write svg: %w", err)
		}
		out = append(out, name)
	}
	return out, nil
}

func pageFileName(i int, ext string) string { return fmt.Sprintf("page-%03d.%s", i+1, ext) }

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		case '"':
			out = append(out, "&quot;"...)
		case '\'':
			out = append(out, "&#39;"...)
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
