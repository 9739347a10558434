/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package paginate

import (
	"fmt"
	"strings"
)

// Weight is the font weight of a placed run.
type Weight int

const (
	Normal Weight = iota
	Bold
)

func (w Weight) String() string {
	if w == Bold {
		return "bold"
	}
	return "normal"
}

func (w Weight) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *Weight) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "bold":
		*w = Bold
	case "normal", "":
		*w = Normal
	default:
		return fmt.Errorf("unknown weight %q", b)
	}
	return nil
}

// Align says which point of the run X refers to.
type Align int

const (
	Left Align = iota
	Center
	Right
)

func (a Align) String() string {
	switch a {
	case Center:
		return "center"
	case Right:
		return "right"
	default:
		return "left"
	}
}

func (a Align) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Align) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "left", "":
		*a = Left
	case "center":
		*a = Center
	case "right":
		*a = Right
	default:
		return fmt.Errorf("unknown align %q", b)
	}
	return nil
}

// Placement is one text run at an absolute position on the current page.
// X and Y are inches from the top-left corner; Y is the baseline. Size is in
// points.
type Placement struct {
	Content string  `json:"content"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Weight  Weight  `json:"weight"`
	Align   Align   `json:"align"`
	Size    float64 `json:"size"`
}

// Sink receives drawing instructions in emission order. The first call of a
// pass is always StartPage. Sinks that can fail record the error and report
// it when the document is finalised.
type Sink interface {
	StartPage()
	PlaceText(Placement)
}

// Wrapper breaks text into lines that fit maxWidth inches in the rendering
// font. It must be deterministic.
type Wrapper interface {
	WrapToWidth(text string, maxWidth float64) []string
}

// WrapFunc adapts a function to Wrapper.
type WrapFunc func(text string, maxWidth float64) []string

func (f WrapFunc) WrapToWidth(text string, maxWidth float64) []string { return f(text, maxWidth) }

// Page is one recorded sheet.
type Page struct {
	Placements []Placement `json:"placements"`
}

// Recorder is a Sink that keeps every instruction in memory. It backs the
// JSON debug output, the previews and the tests.
type Recorder struct {
	Pages []Page `json:"pages"`
}

func (r *Recorder) StartPage() { r.Pages = append(r.Pages, Page{}) }

func (r *Recorder) PlaceText(p Placement) {
	if len(r.Pages) == 0 {
		r.StartPage()
	}
	last := &r.Pages[len(r.Pages)-1]
	last.Placements = append(last.Placements, p)
}

// Replay emits the recorded instructions into another sink.
func (r *Recorder) Replay(s Sink) {
	for _, pg := range r.Pages {
		s.StartPage()
		for _, p := range pg.Placements {
			s.PlaceText(p)
		}
	}
}

// Find returns every placement whose content equals s, with its page index.
func (r *Recorder) Find(s string) []Located {
	var out []Located
	for i, pg := range r.Pages {
		for _, p := range pg.Placements {
			if p.Content == s {
				out = append(out, Located{Page: i, Placement: p})
			}
		}
	}
	return out
}

// Located is a placement together with the zero-based sheet it was placed on.
type Located struct {
	Page int
	Placement
}

// Tee forwards every instruction to all sinks in order.
type Tee []Sink

func (t Tee) StartPage() {
	for _, s := range t {
		s.StartPage()
	}
}

func (t Tee) PlaceText(p Placement) {
	for _, s := range t {
		s.PlaceText(p)
	}
}
