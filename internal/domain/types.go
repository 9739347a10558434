/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain holds the screenplay document model shared by the editor,
// the paginator, storage and the HTTP backend. It serializes to the project
// JSON format ({"screenplay": [...], "coverData": {...}, "savedDate": ...}).
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of screenplay element types.
type Kind int

const (
	KindUnknown Kind = iota
	SceneHeading
	Action
	Character
	Dialogue
	Parenthetical
	Transition
)

var kindNames = [...]string{
	KindUnknown:   "",
	SceneHeading:  "slugline",
	Action:        "action",
	Character:     "character",
	Dialogue:      "dialogue",
	Parenthetical: "parenthetical",
	Transition:    "transition",
}

// Kinds lists every known kind in display order.
func Kinds() []Kind {
	return []Kind{SceneHeading, Action, Character, Parenthetical, Dialogue, Transition}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	if k == KindUnknown {
		return "unknown"
	}
	return kindNames[k]
}

// Valid reports whether k is one of the six element kinds.
func (k Kind) Valid() bool { return k > KindUnknown && int(k) < len(kindNames) }

// Uppercase reports whether text of this kind is stored and printed in capitals.
func (k Kind) Uppercase() bool {
	return k == SceneHeading || k == Character || k == Transition
}

// ParseKind maps a wire name ("slugline", "action", ...) to a Kind.
// "scene" and "sceneheading" are accepted as aliases for slugline.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "slugline", "scene", "sceneheading", "scene_heading":
		return SceneHeading, nil
	case "action":
		return Action, nil
	case "character":
		return Character, nil
	case "dialogue":
		return Dialogue, nil
	case "parenthetical":
		return Parenthetical, nil
	case "transition":
		return Transition, nil
	}
	return KindUnknown, fmt.Errorf("unknown element kind %q", s)
}

// MarshalText writes the wire name. Unknown kinds marshal as an empty string.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return []byte(""), nil
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText never fails: unrecognised names decode to KindUnknown so
// older or foreign files still open; the paginator skips such elements.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		*k = KindUnknown
		return nil
	}
	*k = parsed
	return nil
}

// Element is one block of the screenplay.
type Element struct {
	ID   string `json:"id"`
	Kind Kind   `json:"type"`
	Text string `json:"text"`
	// SceneNumber is what an editor last displayed; pagination renumbers
	// scenes from document order and ignores it.
	SceneNumber int `json:"sceneNumber,omitempty"`
}

// NewID returns a fresh element identifier.
func NewID() string { return uuid.NewString() }

// NewElement creates an element with a fresh ID, normalising case for
// headings, cues and transitions.
func NewElement(kind Kind, text string) Element {
	return Element{ID: NewID(), Kind: kind, Text: Normalize(kind, text)}
}

// Normalize applies the case rule of kind to text.
func Normalize(kind Kind, text string) string {
	if kind.Uppercase() {
		return strings.ToUpper(text)
	}
	return text
}

// Cover is the optional title page metadata.
type Cover struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Version string `json:"treatmentNumber"`
	Date    string `json:"date"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

// Renders reports whether a title page should be produced.
func (c *Cover) Renders() bool { return c != nil && strings.TrimSpace(c.Title) != "" }

// Project is the persisted document: the element sequence plus cover data.
type Project struct {
	Screenplay []Element `json:"screenplay"`
	Cover      *Cover    `json:"coverData,omitempty"`
	SavedDate  time.Time `json:"savedDate"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (p Project) Clone() Project {
	out := Project{SavedDate: p.SavedDate}
	if p.Screenplay != nil {
		out.Screenplay = append([]Element(nil), p.Screenplay...)
	}
	if p.Cover != nil {
		c := *p.Cover
		out.Cover = &c
	}
	return out
}

// SceneCount returns the number of scene headings in the project.
func (p Project) SceneCount() int {
	n := 0
	for _, e := range p.Screenplay {
		if e.Kind == SceneHeading {
			n++
		}
	}
	return n
}

// Title returns the cover title, or "Untitled" when there is no cover.
func (p Project) Title() string {
	if p.Cover.Renders() {
		return p.Cover.Title
	}
	return "Untitled"
}

// Equal reports whether p and o hold the same elements and cover.
// SavedDate is ignored.
func (p Project) Equal(o Project) bool {
	if len(p.Screenplay) != len(o.Screenplay) {
		return false
	}
	for i := range p.Screenplay {
		if p.Screenplay[i] != o.Screenplay[i] {
			return false
		}
	}
	switch {
	case p.Cover == nil && o.Cover == nil:
		return true
	case p.Cover == nil || o.Cover == nil:
		return false
	}
	return *p.Cover == *o.Cover
}
