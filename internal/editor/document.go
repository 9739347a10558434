/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor holds an editable screenplay with undo and redo.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"villoscreenplay/internal/domain"
	applog "villoscreenplay/internal/log"
	"villoscreenplay/internal/undo"
)

var (
	ErrNotFound  = errors.New("element not found")
	ErrBadKind   = errors.New("invalid element kind")
	ErrEmptyText = errors.New("element text is empty")
	ErrIndex     = errors.New("index out of range")
)

// Option configures a Document.
type Option func(*Document)

// WithMaxUndo caps the undo history. The default is undo.DefaultMaxDepth.
func WithMaxUndo(n int) Option { return func(d *Document) { d.maxUndo = n } }

// WithClock replaces time.Now for history timestamps and SavedDate.
func WithClock(now func() time.Time) Option { return func(d *Document) { d.now = now } }

// Document is a screenplay being edited. Only the element sequence is
// tracked by undo; cover edits are not undoable.
// A Document is not safe for concurrent use.
type Document struct {
	elements []domain.Element
	cover    *domain.Cover
	saved    domain.Project

	history *undo.Manager[[]domain.Element]
	maxUndo int
	now     func() time.Time
	log     *slog.Logger
}

// New returns a Document holding a copy of p. The loaded state is the base
// of the undo history and counts as saved.
func New(p domain.Project, opts ...Option) *Document {
	d := &Document{now: time.Now, log: applog.WithComponent("editor")}
	for _, o := range opts {
		o(d)
	}
	d.history = undo.NewManager(undo.Config{MaxDepth: d.maxUndo}, func(a, b []domain.Element) bool {
		return slices.Equal(a, b)
	})
	c := p.Clone()
	d.elements = c.Screenplay
	d.cover = c.Cover
	d.saved = p.Clone()
	d.history.Reset(d.snapshot(), d.now())
	return d
}

func (d *Document) snapshot() []domain.Element {
	return append([]domain.Element(nil), d.elements...)
}

func (d *Document) commit(op string) {
	if d.history.Push(d.snapshot(), d.now()) {
		d.log.Debug("edit", slog.String("op", op), slog.Int("elements", len(d.elements)))
	}
}

// Len returns the number of elements.
func (d *Document) Len() int { return len(d.elements) }

// Elements returns a copy of the element sequence.
func (d *Document) Elements() []domain.Element { return d.snapshot() }

// Element returns the element with the given id.
func (d *Document) Element(id string) (domain.Element, bool) {
	i := d.index(id)
	if i < 0 {
		return domain.Element{}, false
	}
	return d.elements[i], true
}

func (d *Document) index(id string) int {
	for i, e := range d.elements {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func newElement(kind domain.Kind, text string) (domain.Element, error) {
	if !kind.Valid() {
		return domain.Element{}, fmt.Errorf("%w: %v", ErrBadKind, kind)
	}
	text, err := Prepare(kind, text)
	if err != nil {
		return domain.Element{}, err
	}
	return domain.NewElement(kind, text), nil
}

// Add appends an element and returns it with its new ID.
func (d *Document) Add(kind domain.Kind, text string) (domain.Element, error) {
	e, err := newElement(kind, text)
	if err != nil {
		return domain.Element{}, err
	}
	d.elements = append(d.elements, e)
	d.commit("add")
	return e, nil
}

// Insert places a new element at index i (0 <= i <= Len()).
func (d *Document) Insert(i int, kind domain.Kind, text string) (domain.Element, error) {
	if i < 0 || i > len(d.elements) {
		return domain.Element{}, fmt.Errorf("insert at %d: %w", i, ErrIndex)
	}
	e, err := newElement(kind, text)
	if err != nil {
		return domain.Element{}, err
	}
	d.elements = slices.Insert(d.elements, i, e)
	d.commit("insert")
	return e, nil
}

// Update replaces the text of an element, applying its case rule.
func (d *Document) Update(id, text string) error {
	i := d.index(id)
	if i < 0 {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	d.elements[i].Text = domain.Normalize(d.elements[i].Kind, text)
	d.commit("update")
	return nil
}

// SetKind changes the kind of an element and reapplies the case rule.
func (d *Document) SetKind(id string, kind domain.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %v", ErrBadKind, kind)
	}
	i := d.index(id)
	if i < 0 {
		return fmt.Errorf("set kind %s: %w", id, ErrNotFound)
	}
	d.elements[i].Kind = kind
	d.elements[i].Text = domain.Normalize(kind, d.elements[i].Text)
	d.commit("set_kind")
	return nil
}

// Remove deletes an element.
func (d *Document) Remove(id string) error {
	i := d.index(id)
	if i < 0 {
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	d.elements = slices.Delete(d.elements, i, i+1)
	d.commit("remove")
	return nil
}

// Move shifts an element by delta positions, clamped to the document bounds.
func (d *Document) Move(id string, delta int) error {
	i := d.index(id)
	if i < 0 {
		return fmt.Errorf("move %s: %w", id, ErrNotFound)
	}
	j := min(max(i+delta, 0), len(d.elements)-1)
	if i == j {
		return nil
	}
	e := d.elements[i]
	d.elements = slices.Delete(d.elements, i, i+1)
	d.elements = slices.Insert(d.elements, j, e)
	d.commit("move")
	return nil
}

// Cover returns a copy of the cover, or nil.
func (d *Document) Cover() *domain.Cover {
	if d.cover == nil {
		return nil
	}
	c := *d.cover
	return &c
}

// SetCover replaces the cover; nil removes it.
func (d *Document) SetCover(c *domain.Cover) {
	if c == nil {
		d.cover = nil
		return
	}
	cc := *c
	d.cover = &cc
}

// Undo restores the previous element sequence.
func (d *Document) Undo() bool {
	s, ok := d.history.Undo()
	if ok {
		d.elements = append([]domain.Element(nil), s...)
	}
	return ok
}

// Redo reapplies the next element sequence.
func (d *Document) Redo() bool {
	s, ok := d.history.Redo()
	if ok {
		d.elements = append([]domain.Element(nil), s...)
	}
	return ok
}

func (d *Document) CanUndo() bool { return d.history.CanUndo() }
func (d *Document) CanRedo() bool { return d.history.CanRedo() }

// Project returns the current document as a project stamped with the
// last saved date.
func (d *Document) Project() domain.Project {
	p := domain.Project{Screenplay: d.snapshot(), Cover: d.Cover(), SavedDate: d.saved.SavedDate}
	if p.Screenplay == nil {
		p.Screenplay = []domain.Element{}
	}
	return p
}

// MarkSaved records p (usually what storage wrote) as the saved state.
func (d *Document) MarkSaved(p domain.Project) { d.saved = p.Clone() }

// Dirty reports whether the document differs from the saved state.
func (d *Document) Dirty() bool { return !d.Project().Equal(d.saved) }
