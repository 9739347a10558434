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
	"time"

	"github.com/jung-kurt/gofpdf"

	"villoscreenplay/internal/paginate"
	"villoscreenplay/internal/textlayout"
)

// courier is the core PDF font used for the whole document.
const courier = "Courier"

// Meta is the document information written into PDF files.
type Meta struct {
	Title   string
	Author  string
	Subject string
	Creator string
	// Created fixes the creation date so identical input yields identical
	// bytes. Zero means the Unix epoch.
	Created time.Time
}

// PDFSink renders paginator output with gofpdf using the built-in Courier
// font. It also implements paginate.Wrapper with Courier metrics, so layout
// and rendering agree on line widths.
type PDFSink struct {
	pdf  *gofpdf.Fpdf
	g    paginate.Geometry
	tr   func(string) string
	font fontState
}

type fontState struct {
	style string
	size  float64
}

// NewPDFSink creates a sink for pages of g's size, in inches.
func NewPDFSink(g paginate.Geometry, meta Meta) *PDFSink {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "in",
		Size:    gofpdf.SizeType{Wd: g.PageWidth, Ht: g.PageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetTitle(meta.Title, true)
	pdf.SetAuthor(meta.Author, true)
	pdf.SetSubject(meta.Subject, true)
	creator := meta.Creator
	if creator == "" {
		creator = "villo"
	}
	pdf.SetCreator(creator, true)
	created := meta.Created
	if created.IsZero() {
		created = time.Unix(0, 0).UTC()
	}
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)
	pdf.SetCatalogSort(true)

	s := &PDFSink{pdf: pdf, g: g, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	s.setFont(paginate.Normal, g.FontSize)
	return s
}

func (s *PDFSink) setFont(w paginate.Weight, size float64) {
	style := ""
	if w == paginate.Bold {
		style = "B"
	}
	if size <= 0 {
		size = s.g.FontSize
	}
	if s.font.style == style && s.font.size == size {
		return
	}
	s.pdf.SetFont(courier, style, size)
	s.font = fontState{style: style, size: size}
}

func (s *PDFSink) StartPage() { s.pdf.AddPage() }

func (s *PDFSink) PlaceText(p paginate.Placement) {
	s.setFont(p.Weight, p.Size)
	text := s.tr(p.Content)
	x := p.X
	switch p.Align {
	case paginate.Right:
		x -= s.pdf.GetStringWidth(text)
	case paginate.Center:
		x -= s.pdf.GetStringWidth(text) / 2
	}
	s.pdf.Text(x, p.Y, text)
}

// TextWidth measures s in inches with regular Courier at the body size.
func (s *PDFSink) TextWidth(text string) float64 {
	s.setFont(paginate.Normal, s.g.FontSize)
	return s.pdf.GetStringWidth(s.tr(text))
}

// WrapToWidth wraps text with Courier metrics.
func (s *PDFSink) WrapToWidth(text string, maxWidth float64) []string {
	return textlayout.Wrap(s, text, maxWidth)
}

// Err returns the first error gofpdf recorded, if any.
func (s *PDFSink) Err() error { return s.pdf.Error() }

// WriteTo finalises the document into w.
func (s *PDFSink) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	if err := s.pdf.Output(cw); err != nil {
		return cw.n, fmt.Errorf("write pdf: %w", err)
	}
	return cw.n, nil
}

// PageCount returns the number of pages added so far.
func (s *PDFSink) PageCount() int { return s.pdf.PageCount() }

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
