/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package paginate

import "strings"

// Geometry holds the page layout table in inches. Y values are text
// baselines measured from the top edge of the sheet.
type Geometry struct {
	PageWidth  float64 `json:"pageWidth" yaml:"pageWidth"`
	PageHeight float64 `json:"pageHeight" yaml:"pageHeight"`
	Top        float64 `json:"top" yaml:"top"`
	Bottom     float64 `json:"bottom" yaml:"bottom"`
	LineHeight float64 `json:"lineHeight" yaml:"lineHeight"`
	FontSize   float64 `json:"fontSize" yaml:"fontSize"`

	ActionX        float64 `json:"actionX" yaml:"actionX"`
	CharacterX     float64 `json:"characterX" yaml:"characterX"`
	ParentheticalX float64 `json:"parentheticalX" yaml:"parentheticalX"`
	DialogueX      float64 `json:"dialogueX" yaml:"dialogueX"`
	DialogueRight  float64 `json:"dialogueRight" yaml:"dialogueRight"`
	RightEdge      float64 `json:"rightEdge" yaml:"rightEdge"`
	PageNumberY    float64 `json:"pageNumberY" yaml:"pageNumberY"`

	ActionWidth        float64 `json:"actionWidth" yaml:"actionWidth"`
	DialogueWidth      float64 `json:"dialogueWidth" yaml:"dialogueWidth"`
	ParentheticalWidth float64 `json:"parentheticalWidth" yaml:"parentheticalWidth"`
}

// Letter is the US Letter screenplay layout with 12pt Courier.
func Letter() Geometry {
	return Geometry{
		PageWidth:  8.5,
		PageHeight: 11.0,
		Top:        1.0,
		Bottom:     10.0,
		LineHeight: 0.17,
		FontSize:   12,

		ActionX:        1.5,
		CharacterX:     3.7,
		ParentheticalX: 3.1,
		DialogueX:      2.5,
		DialogueRight:  6.5,
		RightEdge:      7.5,
		PageNumberY:    0.5,

		ActionWidth:        6.0,
		DialogueWidth:      4.0,
		ParentheticalWidth: 2.0,
	}
}

// CenterX is the horizontal middle of the sheet.
func (g Geometry) CenterX() float64 { return g.PageWidth / 2 }

// valid reports whether the table can hold at least one line of body text.
func (g Geometry) valid() bool {
	return g.LineHeight > 0 && g.Bottom-g.Top >= 3*g.LineHeight && g.PageHeight >= g.Bottom
}

// Labels are the human-language strings the layout prints besides the
// screenplay text itself.
type Labels struct {
	WrittenBy     string `json:"writtenBy" yaml:"writtenBy"`
	VersionPrefix string `json:"versionPrefix" yaml:"versionPrefix"`
	DatePrefix    string `json:"datePrefix" yaml:"datePrefix"`
	Placeholder   string `json:"placeholder" yaml:"placeholder"`
}

// Industry markers. They are part of the screenplay format and stay in
// English regardless of Labels.
const (
	MarkContinuedHeader = "CONTINUED:"
	MarkContinuedFooter = "(CONTINUED)"
	MarkMore            = "(MORE)"
	MarkContd           = " (CONT'D)"
)

// DefaultLabels returns the English labels.
func DefaultLabels() Labels {
	return Labels{
		WrittenBy:     "Written by",
		VersionPrefix: "Version: ",
		DatePrefix:    "Date: ",
		Placeholder:   "CHARACTER",
	}
}

// LabelsFor returns the labels for a language tag ("en", "es", "es-MX", ...).
// Unknown languages get English.
func LabelsFor(lang string) Labels {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	switch lang {
	case "es":
		return Labels{
			WrittenBy:     "Escrito por",
			VersionPrefix: "Tratamiento: ",
			DatePrefix:    "Fecha: ",
			Placeholder:   "PERSONAJE",
		}
	default:
		return DefaultLabels()
	}
}

func (l Labels) withDefaults() Labels {
	d := DefaultLabels()
	if l.WrittenBy == "" {
		l.WrittenBy = d.WrittenBy
	}
	if l.VersionPrefix == "" {
		l.VersionPrefix = d.VersionPrefix
	}
	if l.DatePrefix == "" {
		l.DatePrefix = d.DatePrefix
	}
	if l.Placeholder == "" {
		l.Placeholder = d.Placeholder
	}
	return l
}
