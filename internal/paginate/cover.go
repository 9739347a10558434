/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package paginate

import (
	"strings"

	"villoscreenplay/internal/domain"
)

// Title page positions, in inches.
const (
	coverTitleY    = 3.5
	coverByY       = 5.0
	coverAuthorY   = 5.5
	coverFooterY   = 9.0
	coverFooterGap = 0.2

	coverTitleSize  = 24
	coverAuthorSize = 16
)

// cover draws the title page. It does not touch the body cursor: the page
// is laid out from fixed positions and never checked against the bottom
// boundary.
func (s *state) cover(c *domain.Cover) {
	cx := s.g.CenterX()
	put := func(content string, x, y float64, w Weight, a Align, size float64) {
		if content == "" {
			return
		}
		s.sink.PlaceText(Placement{Content: content, X: x, Y: y, Weight: w, Align: a, Size: size})
	}

	put(strings.ToUpper(strings.TrimSpace(c.Title)), cx, coverTitleY, Bold, Center, coverTitleSize)
	put(s.labels.WrittenBy, cx, coverByY, Normal, Center, s.g.FontSize)
	put(strings.TrimSpace(c.Author), cx, coverAuthorY, Bold, Center, coverAuthorSize)

	y := coverFooterY
	if v := strings.TrimSpace(c.Version); v != "" {
		put(s.labels.VersionPrefix+v, s.g.ActionX, y, Normal, Left, s.g.FontSize)
		y += coverFooterGap
	}
	if d := strings.TrimSpace(c.Date); d != "" {
		put(s.labels.DatePrefix+d, s.g.ActionX, y, Normal, Left, s.g.FontSize)
	}

	y = coverFooterY
	if e := strings.TrimSpace(c.Email); e != "" {
		put(e, s.g.RightEdge, y, Normal, Right, s.g.FontSize)
		y += coverFooterGap
	}
	if p := strings.TrimSpace(c.Phone); p != "" {
		put(p, s.g.RightEdge, y, Normal, Right, s.g.FontSize)
	}
}
