/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package paginate lays screenplay elements out on fixed-size pages.
//
// A Paginator consumes an ordered element sequence plus optional cover data
// and emits StartPage/PlaceText instructions to a Sink. Text is wrapped by an
// injected Wrapper so the layout is independent of any font engine. Every
// Run starts from a fresh layout state; a Paginator holds no state between
// runs.
package paginate

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"villoscreenplay/internal/domain"
	applog "villoscreenplay/internal/log"
)

var (
	ErrNoWrapper = errors.New("paginate: no text wrapper")
	ErrNoSink    = errors.New("paginate: no rendering sink")
	ErrGeometry  = errors.New("paginate: page geometry cannot hold body text")
)

// Paginator holds the collaborators and layout tables for a pass.
type Paginator struct {
	Wrapper  Wrapper
	Sink     Sink
	Geometry Geometry
	Labels   Labels
	Logger   *slog.Logger
}

// New returns a Paginator using the Letter geometry and English labels.
func New(w Wrapper, s Sink) *Paginator {
	return &Paginator{Wrapper: w, Sink: s, Geometry: Letter(), Labels: DefaultLabels()}
}

// SceneMark records where a scene heading landed.
type SceneMark struct {
	Number    int    `json:"number"`
	Heading   string `json:"heading"`
	Page      int    `json:"page"`
	ElementID string `json:"elementId,omitempty"`
}

// Result summarises a finished pass.
type Result struct {
	// Sheets counts every emitted page, the cover included.
	Sheets   int  `json:"sheets"`
	HasCover bool `json:"hasCover"`
	// LastPage is the last printed page number, 0 when the body is empty.
	LastPage int         `json:"lastPage"`
	Scenes   []SceneMark `json:"scenes"`
}

// BodySheets is the number of sheets after the cover.
func (r Result) BodySheets() int {
	if r.HasCover {
		return r.Sheets - 1
	}
	return r.Sheets
}

// Run lays out elements and cover onto the sink. The element slice is read
// only; callers editing the document concurrently must pass a snapshot.
func (p *Paginator) Run(elements []domain.Element, cover *domain.Cover) (Result, error) {
	if p.Wrapper == nil {
		return Result{}, ErrNoWrapper
	}
	if p.Sink == nil {
		return Result{}, ErrNoSink
	}
	g := p.Geometry
	if g == (Geometry{}) {
		g = Letter()
	}
	if !g.valid() {
		return Result{}, fmt.Errorf("%w: %+v", ErrGeometry, g)
	}
	l := p.Logger
	if l == nil {
		l = applog.WithComponent("paginate")
	}

	s := &state{
		g:      g,
		labels: p.Labels.withDefaults(),
		wrap:   p.Wrapper,
		sink:   p.Sink,
		log:    l,
		els:    elements,
		scene:  1,
	}
	s.open(cover)
	for i := range elements {
		s.element(i)
	}
	s.res.LastPage = s.page
	l.Debug("pagination complete",
		slog.Int("elements", len(elements)),
		slog.Int("sheets", s.res.Sheets),
		slog.Int("scenes", len(s.res.Scenes)))
	return s.res, nil
}

// state is the per-run layout cursor and counters.
type state struct {
	g      Geometry
	labels Labels
	wrap   Wrapper
	sink   Sink
	log    *slog.Logger
	els    []domain.Element

	y     float64 // baseline of the next line
	page  int     // printed number of the current page, 0 on the cover
	scene int     // number the next scene heading receives
	res   Result
}

func (s *state) newSheet() {
	s.sink.StartPage()
	s.res.Sheets++
}

// open emits the first sheet, the cover when present, and numbers the first
// body page.
func (s *state) open(cover *domain.Cover) {
	s.newSheet()
	if cover.Renders() {
		s.cover(cover)
		s.res.HasCover = true
		s.newSheet()
	}
	s.y = s.g.Top
	if len(s.els) > 0 {
		s.page = 1
		s.pageNumber()
	}
}

func (s *state) hasSpace(h float64) bool { return s.y+h <= s.g.Bottom }

func (s *state) advance(h float64) { s.y += h }

// gap adds trailing space after a block, never past the bottom boundary.
func (s *state) gap(h float64) { s.y = math.Min(s.y+h, s.g.Bottom) }

// linesThatFit is how many body lines still fit above the bottom boundary.
func (s *state) linesThatFit() int {
	n := int(math.Floor((s.g.Bottom - s.y) / s.g.LineHeight))
	if n < 0 {
		return 0
	}
	return n
}

func (s *state) place(content string, x float64, w Weight, a Align) {
	if content == "" {
		return
	}
	s.sink.PlaceText(Placement{Content: content, X: x, Y: s.y, Weight: w, Align: a, Size: s.g.FontSize})
}

func (s *state) pageNumber() {
	s.sink.PlaceText(Placement{
		Content: fmt.Sprintf("%d.", s.page),
		X:       s.g.RightEdge,
		Y:       s.g.PageNumberY,
		Align:   Right,
		Size:    s.g.FontSize,
	})
}

// breakPage starts the next numbered page. A continuation page opens with
// the CONTINUED: header and a two-line gap.
func (s *state) breakPage(asContinuation bool) {
	s.newSheet()
	s.page++
	s.pageNumber()
	s.y = s.g.Top
	if asContinuation {
		s.place(MarkContinuedHeader, s.g.ActionX, Normal, Left)
		s.advance(2 * s.g.LineHeight)
	}
}

// sceneBreak leaves the page mid-scene: footer marker first, then a
// continuation page.
func (s *state) sceneBreak() {
	s.sink.PlaceText(Placement{
		Content: MarkContinuedFooter,
		X:       s.g.RightEdge,
		Y:       s.g.Bottom + s.g.LineHeight,
		Align:   Right,
		Size:    s.g.FontSize,
	})
	s.breakPage(true)
}

// speechBreak leaves the page mid-speech for the speaker of element i.
func (s *state) speechBreak(i int) {
	s.place(MarkMore, s.g.DialogueRight, Normal, Right)
	s.breakPage(false)
	s.contd(i)
}

// contd prints the "NAME (CONT'D)" cue that reopens a speech.
func (s *state) contd(i int) {
	s.place(s.speakerFor(i)+MarkContd, s.g.CharacterX, Bold, Left)
	s.advance(s.g.LineHeight)
}

// speakerFor returns the cue of the nearest Character element before index i.
func (s *state) speakerFor(i int) string {
	for j := i - 1; j >= 0; j-- {
		if s.els[j].Kind != domain.Character {
			continue
		}
		if name := strings.TrimSpace(s.els[j].Text); name != "" {
			return strings.ToUpper(name)
		}
		break
	}
	return s.labels.Placeholder
}

// lines prints each line at x, one line height apart.
func (s *state) lines(lines []string, x float64, w Weight) {
	for _, ln := range lines {
		s.place(ln, x, w, Left)
		s.advance(s.g.LineHeight)
	}
}

// flow prints lines at x, calling brk each time the page fills before the
// block is exhausted. Blocks longer than a whole page span as many pages as
// they need.
func (s *state) flow(lines []string, x float64, brk func()) {
	for len(lines) > 0 {
		fit := s.linesThatFit()
		if fit == 0 {
			brk()
			if fit = s.linesThatFit(); fit == 0 {
				fit = 1
			}
		}
		if fit > len(lines) {
			fit = len(lines)
		}
		s.lines(lines[:fit], x, Normal)
		lines = lines[fit:]
		if len(lines) > 0 {
			brk()
		}
	}
}

func (s *state) element(i int) {
	e := s.els[i]
	switch e.Kind {
	case domain.SceneHeading:
		s.sceneHeading(e)
	case domain.Action:
		s.action(e)
	case domain.Character:
		s.character(e)
	case domain.Parenthetical:
		s.parenthetical(e)
	case domain.Dialogue:
		s.dialogue(i, e)
	case domain.Transition:
		s.transition(e)
	default:
		s.log.Debug("skipping element of unknown kind", slog.String("id", e.ID), slog.Int("index", i))
	}
}

func (s *state) sceneHeading(e domain.Element) {
	lh := s.g.LineHeight
	before := 0.0
	if s.y > s.g.Top {
		before = 2 * lh
	}
	if !s.hasSpace(before + lh + 2*lh) {
		s.breakPage(false)
	} else {
		s.advance(before)
	}
	heading := strings.ToUpper(strings.TrimSpace(e.Text))
	s.place(fmt.Sprintf("%d. %s", s.scene, heading), s.g.ActionX, Bold, Left)
	s.res.Scenes = append(s.res.Scenes, SceneMark{Number: s.scene, Heading: heading, Page: s.page, ElementID: e.ID})
	s.advance(2 * lh)
	s.scene++
}

func (s *state) action(e domain.Element) {
	lh := s.g.LineHeight
	lines := s.wrap.WrapToWidth(e.Text, s.g.ActionWidth)
	if s.hasSpace(float64(len(lines))*lh + lh) {
		s.lines(lines, s.g.ActionX, Normal)
		s.advance(lh)
		return
	}
	s.flow(lines, s.g.ActionX, s.sceneBreak)
	s.gap(lh)
}

func (s *state) character(e domain.Element) {
	lh := s.g.LineHeight
	if !s.hasSpace(3 * lh) {
		s.sceneBreak()
	}
	s.place(strings.ToUpper(e.Text), s.g.CharacterX, Bold, Left)
	s.advance(lh)
}

func (s *state) parenthetical(e domain.Element) {
	lines := s.wrap.WrapToWidth(e.Text, s.g.ParentheticalWidth)
	if !s.hasSpace(float64(len(lines)) * s.g.LineHeight) {
		s.sceneBreak()
	}
	s.flow(lines, s.g.ParentheticalX, s.sceneBreak)
}

func (s *state) dialogue(i int, e domain.Element) {
	lh := s.g.LineHeight
	lines := s.wrap.WrapToWidth(e.Text, s.g.DialogueWidth)
	if s.hasSpace(float64(len(lines))*lh + lh) {
		s.lines(lines, s.g.DialogueX, Normal)
		s.advance(lh)
		return
	}
	if s.linesThatFit() == 0 {
		// nothing printed yet: no (MORE), and no CONTINUED: header either
		s.breakPage(false)
		s.contd(i)
	}
	s.flow(lines, s.g.DialogueX, func() { s.speechBreak(i) })
	s.gap(lh)
}

func (s *state) transition(e domain.Element) {
	lh := s.g.LineHeight
	if !s.hasSpace(2 * lh) {
		s.sceneBreak()
	}
	s.place(strings.ToUpper(e.Text), s.g.RightEdge, Bold, Right)
	s.advance(2 * lh)
}
