/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"villoscreenplay/internal/domain"
)

func TestParseScreenplay(t *testing.T) {
	input := `Title: Harbour Lights
Author: J. Doe
Draft: 2
Date: 2025-03-01

INT. OFFICE - DAY

Rain against the window.
; pencil note, not part of the script
A phone rings.

MARA (V.O.)
(quietly)
We open at dawn.
Not a minute later.

ext. harbour - night

@McCLANE
Move.

.FLASHBACK

CUT TO:

> FADE OUT.

!ALL CAPS ACTION
`
	s, errs := Parse(input)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	wantCover := &domain.Cover{Title: "Harbour Lights", Author: "J. Doe", Version: "2", Date: "2025-03-01"}
	if diff := cmp.Diff(wantCover, s.Cover); diff != "" {
		t.Fatalf("cover (-want +got):\n%s", diff)
	}
	want := []Block{
		{Kind: domain.SceneHeading, Text: "INT. OFFICE - DAY", LineNo: 6},
		{Kind: domain.Action, Text: "Rain against the window.\nA phone rings.", LineNo: 8},
		{Kind: domain.Character, Text: "MARA (V.O.)", LineNo: 12},
		{Kind: domain.Parenthetical, Text: "(quietly)", LineNo: 13},
		{Kind: domain.Dialogue, Text: "We open at dawn.\nNot a minute later.", LineNo: 14},
		{Kind: domain.SceneHeading, Text: "EXT. HARBOUR - NIGHT", LineNo: 17},
		{Kind: domain.Character, Text: "MCCLANE", LineNo: 19},
		{Kind: domain.Dialogue, Text: "Move.", LineNo: 20},
		{Kind: domain.SceneHeading, Text: "FLASHBACK", LineNo: 22},
		{Kind: domain.Transition, Text: "CUT TO:", LineNo: 24},
		{Kind: domain.Transition, Text: "FADE OUT.", LineNo: 26},
		{Kind: domain.Action, Text: "ALL CAPS ACTION", LineNo: 28},
	}
	if diff := cmp.Diff(want, s.Blocks); diff != "" {
		t.Fatalf("blocks (-want +got):\n%s", diff)
	}
}

func TestUpperCaseLineAloneIsAction(t *testing.T) {
	s, _ := Parse("BANG\n\nThe door gives way.")
	if len(s.Blocks) != 2 || s.Blocks[0].Kind != domain.Action {
		t.Fatalf("lone upper-case line should be action: %+v", s.Blocks)
	}
	if s.Cover != nil {
		t.Fatalf("no title page expected")
	}
}

func TestSceneHeadingInsideBlock(t *testing.T) {
	s, _ := Parse("INT. HALL - NIGHT\nFootsteps echo.")
	want := []domain.Kind{domain.SceneHeading, domain.Action}
	var got []domain.Kind
	for _, b := range s.Blocks {
		got = append(got, b.Kind)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("kinds (-want +got):\n%s", diff)
	}
}

func TestIntervalNotSceneHeading(t *testing.T) {
	s, _ := Parse("Interior design magazines everywhere.\n\nEXTRA stands by.")
	for _, b := range s.Blocks {
		if b.Kind == domain.SceneHeading {
			t.Fatalf("false scene heading: %+v", b)
		}
	}
}

func TestUnclosedParentheticalReportsLine(t *testing.T) {
	s, errs := Parse("\n\nMARA\n(whispering\nGo.")
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %+v", errs)
	}
	if errs[0].Line != 4 || !strings.Contains(errs[0].Error(), "line 4:") {
		t.Fatalf("error position: %+v", errs[0])
	}
	if s.Blocks[1].Text != "(whispering)" {
		t.Fatalf("parenthetical should be closed on import: %q", s.Blocks[1].Text)
	}
}

func TestTitlePageContinuation(t *testing.T) {
	s, errs := Parse("Title:\n    BIG\n    FISH\nContact: 555-0100\nnonsense\n\nFADE IN:")
	if s.Cover == nil || s.Cover.Title != "BIG FISH" || s.Cover.Phone != "555-0100" {
		t.Fatalf("cover: %+v", s.Cover)
	}
	if len(errs) != 1 || errs[0].Line != 5 {
		t.Fatalf("expected error on line 5, got %+v", errs)
	}
}

func TestProjectFromScript(t *testing.T) {
	s, _ := Parse("EXT. ROOF - DAWN\n\nWind.")
	p := s.Project()
	if len(p.Screenplay) != 2 || p.Screenplay[0].ID == "" || p.Screenplay[0].ID == p.Screenplay[1].ID {
		t.Fatalf("elements: %+v", p.Screenplay)
	}
	if p.SceneCount() != 1 {
		t.Fatalf("scene count: %d", p.SceneCount())
	}
}
