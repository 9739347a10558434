/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"villoscreenplay/internal/domain"
	"villoscreenplay/internal/export"
	"villoscreenplay/internal/paginate"
)

// Summary is the pagination outcome returned by /api/paginate and the
// preview websocket.
type Summary struct {
	Sheets    int                  `json:"sheets"`
	BodyPages int                  `json:"bodyPages"`
	HasCover  bool                 `json:"hasCover"`
	LastPage  int                  `json:"lastPage"`
	Elements  int                  `json:"elements"`
	Scenes    []paginate.SceneMark `json:"scenes"`
}

// Summarize paginates p with Courier metrics and reports page and scene
// numbers without rendering a document.
func Summarize(p domain.Project, labels paginate.Labels) (Summary, error) {
	_, res, err := export.Layout(p, paginate.Geometry{}, labels)
	if err != nil {
		return Summary{}, err
	}
	scenes := res.Scenes
	if scenes == nil {
		scenes = []paginate.SceneMark{}
	}
	return Summary{
		Sheets:    res.Sheets,
		BodyPages: res.BodySheets(),
		HasCover:  res.HasCover,
		LastPage:  res.LastPage,
		Elements:  len(p.Screenplay),
		Scenes:    scenes,
	}, nil
}
