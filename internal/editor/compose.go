/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"fmt"
	"regexp"
	"strings"

	"villoscreenplay/internal/domain"
)

var parenEdges = regexp.MustCompile(`^\s*\(|\)\s*$`)

// Prepare cleans user input for an element of kind: it trims the text,
// rejects empty input and wraps parentheticals in exactly one pair of
// parentheses.
func Prepare(kind domain.Kind, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", kind, ErrEmptyText)
	}
	if kind == domain.Parenthetical {
		inner := strings.TrimSpace(parenEdges.ReplaceAllString(text, ""))
		if inner == "" {
			return "", fmt.Errorf("%s: %w", kind, ErrEmptyText)
		}
		text = "(" + inner + ")"
	}
	return text, nil
}

// Vocabulary is the set of stock phrases offered when composing scene
// headings and transitions.
type Vocabulary struct {
	Places      []string
	TimesOfDay  []string
	Transitions []string
}

var vocabularies = map[string]Vocabulary{
	"en": {
		Places:      []string{"INT.", "EXT.", "INT./EXT."},
		TimesOfDay:  []string{"DAY", "NIGHT", "DAWN", "DUSK", "CONTINUOUS"},
		Transitions: []string{"CUT TO:", "FADE TO BLACK:", "FADE IN FROM BLACK:", "FADE TO WHITE:", "DISSOLVE TO:", "WIPE TO:"},
	},
	"es": {
		Places:      []string{"INT.", "EXT.", "INT./EXT."},
		TimesOfDay:  []string{"DÍA", "NOCHE", "AMANECER", "ATARDECER", "CONTINUO"},
		Transitions: []string{"CORTE A:", "FUNDIDO A NEGRO:", "FUNDIDO DESDE NEGRO:", "FUNDIDO A BLANCO:", "DISOLVENCIA:", "BARRIDO:"},
	},
}

// VocabularyFor returns the stock phrases for lang, falling back to English.
func VocabularyFor(lang string) Vocabulary {
	if v, ok := vocabularies[strings.ToLower(strings.TrimSpace(lang))]; ok {
		return v
	}
	return vocabularies["en"]
}

// Slugline composes a scene heading such as "INT. KITCHEN - NIGHT".
// The location is required; place and time of day may be empty.
func Slugline(place, location, timeOfDay string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("slugline location: %w", ErrEmptyText)
	}
	var b strings.Builder
	if p := strings.TrimSpace(place); p != "" {
		b.WriteString(p)
		b.WriteByte(' ')
	}
	b.WriteString(location)
	if t := strings.TrimSpace(timeOfDay); t != "" {
		b.WriteString(" - ")
		b.WriteString(t)
	}
	return strings.ToUpper(b.String()), nil
}
