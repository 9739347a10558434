/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"

	"villoscreenplay/internal/domain"
)

// Script is a parsed plain-text screenplay: an optional title page and the
// element blocks in document order.
type Script struct {
	Cover  *domain.Cover
	Blocks []Block
}

// Block is one screenplay element together with the 1-based source line
// it starts on.
type Block struct {
	Kind   domain.Kind
	Text   string
	LineNo int
}

// Elements converts the blocks into editor elements with fresh IDs.
func (s Script) Elements() []domain.Element {
	out := make([]domain.Element, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		out = append(out, domain.NewElement(b.Kind, b.Text))
	}
	return out
}

// Project returns the script as a project ready to be saved.
func (s Script) Project() domain.Project {
	return domain.Project{Screenplay: s.Elements(), Cover: s.Cover}
}

// Error represents a parse problem with position context. Parsing continues
// after an Error; the affected block is still imported.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message)
}
