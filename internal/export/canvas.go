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
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"villoscreenplay/internal/paginate"
	"villoscreenplay/internal/textlayout"
)

const mmPerInch = 25.4

// CanvasSink renders paginator output through tdewolff/canvas with embedded
// Go Mono faces. Pages are drawn as they arrive and written out by WriteTo.
type CanvasSink struct {
	g      paginate.Geometry
	meta   Meta
	family *canvas.FontFamily
	faces  map[faceKey]*canvas.FontFace
	pages  []*canvas.Canvas
	ctx    *canvas.Context
}

type faceKey struct {
	bold bool
	size float64
}

// NewCanvasSink loads the regular and bold faces from lib.
func NewCanvasSink(g paginate.Geometry, meta Meta, lib *textlayout.FontLibrary) (*CanvasSink, error) {
	family := canvas.NewFontFamily(textlayout.MonoFamily)
	for _, bold := range []bool{false, true} {
		data, ok := lib.Data(textlayout.MonoFamily, bold)
		if !ok {
			return nil, fmt.Errorf("canvas renderer: font %q not loaded", textlayout.MonoFamily)
		}
		style := canvas.FontRegular
		if bold {
			style = canvas.FontBold
		}
		if err := family.LoadFont(data, 0, style); err != nil {
			return nil, fmt.Errorf("canvas renderer: load font: %w", err)
		}
	}
	return &CanvasSink{g: g, meta: meta, family: family, faces: map[faceKey]*canvas.FontFace{}}, nil
}

func (s *CanvasSink) face(w paginate.Weight, size float64) *canvas.FontFace {
	if size <= 0 {
		size = s.g.FontSize
	}
	k := faceKey{bold: w == paginate.Bold, size: size}
	if f, ok := s.faces[k]; ok {
		return f
	}
	style := canvas.FontRegular
	if k.bold {
		style = canvas.FontBold
	}
	f := s.family.Face(size, canvas.Black, style, canvas.FontNormal)
	s.faces[k] = f
	return f
}

func (s *CanvasSink) StartPage() {
	c := canvas.New(s.g.PageWidth*mmPerInch, s.g.PageHeight*mmPerInch)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV)
	s.pages = append(s.pages, c)
	s.ctx = ctx
}

func (s *CanvasSink) PlaceText(p paginate.Placement) {
	if s.ctx == nil {
		s.StartPage()
	}
	align := canvas.Left
	switch p.Align {
	case paginate.Center:
		align = canvas.Center
	case paginate.Right:
		align = canvas.Right
	}
	line := canvas.NewTextLine(s.face(p.Weight, p.Size), p.Content, align)
	s.ctx.DrawText(p.X*mmPerInch, p.Y*mmPerInch, line)
}

// PageCount returns the number of pages started so far.
func (s *CanvasSink) PageCount() int { return len(s.pages) }

// WriteTo renders every page into a single PDF.
func (s *CanvasSink) WriteTo(w io.Writer) (int64, error) {
	if len(s.pages) == 0 {
		return 0, fmt.Errorf("canvas renderer: no pages")
	}
	cw := &countingWriter{w: w}
	wd, ht := s.g.PageWidth*mmPerInch, s.g.PageHeight*mmPerInch
	writer := pdf.New(cw, wd, ht, nil)
	creator := s.meta.Creator
	if creator == "" {
		creator = "villo"
	}
	writer.SetInfo(s.meta.Title, s.meta.Subject, "screenplay", s.meta.Author, creator)
	for i, c := range s.pages {
		if i > 0 {
			writer.NewPage(wd, ht)
		}
		c.RenderTo(writer)
	}
	if err := writer.Close(); err != nil {
		return cw.n, fmt.Errorf("write pdf: %w", err)
	}
	return cw.n, nil
}
