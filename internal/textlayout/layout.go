/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textlayout measures and word-wraps screenplay text. Widths are in
// inches so the results plug straight into the page geometry used by the
// paginator; implementations range from a fixed-advance Courier model to
// real OpenType faces.
package textlayout

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
)

// PointsPerInch converts typographic points to inches.
const PointsPerInch = 72.0

// CourierAdvance is the advance of every Courier glyph at 12pt, in inches
// (600/1000 em * 12pt / 72).
const CourierAdvance = 0.1

// widthSlack absorbs float noise when a line measures exactly maxWidth.
const widthSlack = 1e-9

// Measurer reports the rendered width of a single line of text in inches.
type Measurer interface {
	TextWidth(s string) float64
}

// MeasureFunc adapts a plain function to Measurer.
type MeasureFunc func(string) float64

func (f MeasureFunc) TextWidth(s string) float64 { return f(s) }

// Wrap breaks text into lines no wider than maxWidth using greedy word
// filling. Explicit newlines always break; runs of whitespace collapse to one
// space; a word wider than the column is split by runes. Empty input yields a
// single empty line so callers still reserve one row for it.
func Wrap(m Measurer, text string, maxWidth float64) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, para := range strings.Split(text, "\n") {
		out = appendParagraph(out, m, para, maxWidth)
	}
	return out
}

func appendParagraph(out []string, m Measurer, para string, maxWidth float64) []string {
	words := strings.Fields(para)
	if len(words) == 0 {
		return append(out, "")
	}
	fits := func(s string) bool { return m.TextWidth(s) <= maxWidth+widthSlack }

	line := ""
	for _, w := range words {
		if !fits(w) {
			if line != "" {
				out = append(out, line)
			}
			chunks := splitWord(m, w, maxWidth)
			out = append(out, chunks[:len(chunks)-1]...)
			line = chunks[len(chunks)-1]
			continue
		}
		if line == "" {
			line = w
			continue
		}
		if cand := line + " " + w; fits(cand) {
			line = cand
		} else {
			out = append(out, line)
			line = w
		}
	}
	return append(out, line)
}

// splitWord cuts an over-long word into pieces that each fit maxWidth. Every
// piece carries at least one rune, so a column narrower than a glyph still
// terminates.
func splitWord(m Measurer, w string, maxWidth float64) []string {
	var chunks []string
	start := 0
	for i := 0; i < len(w); {
		_, size := utf8.DecodeRuneInString(w[i:])
		next := i + size
		if i > start && m.TextWidth(w[start:next]) > maxWidth+widthSlack {
			chunks = append(chunks, w[start:i])
			start = i
		}
		i = next
	}
	return append(chunks, w[start:])
}

// Monospace measures every rune with the same advance. The zero value uses
// the Courier 12pt advance.
type Monospace struct {
	Advance float64
}

func (m Monospace) TextWidth(s string) float64 {
	adv := m.Advance
	if adv <= 0 {
		adv = CourierAdvance
	}
	return float64(utf8.RuneCountInString(s)) * adv
}

// WrapToWidth wraps text for a fixed-pitch font.
func (m Monospace) WrapToWidth(text string, maxWidth float64) []string {
	return Wrap(m, text, maxWidth)
}

// FaceWrapper measures with an x/image font face rendered at 72 DPI, so one
// face unit is one point.
type FaceWrapper struct {
	Face font.Face
}

func (f FaceWrapper) TextWidth(s string) float64 {
	if f.Face == nil {
		return Monospace{}.TextWidth(s)
	}
	adv := font.MeasureString(f.Face, s)
	return float64(adv) / 64 / PointsPerInch
}

// WrapToWidth wraps text using the face's glyph advances.
func (f FaceWrapper) WrapToWidth(text string, maxWidth float64) []string {
	return Wrap(f, text, maxWidth)
}
