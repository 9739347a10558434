/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWrapGreedyMonospace(t *testing.T) {
	m := Monospace{Advance: 1}
	got := m.WrapToWidth("the quick brown fox jumps", 10)
	want := []string{"the quick", "brown fox", "jumps"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("wrap mismatch (-want +got):\n%s", diff)
	}
}

func TestWrapExactFitStaysOnOneLine(t *testing.T) {
	text := strings.Repeat("a", 60)
	got := Monospace{}.WrapToWidth(text, 6.0)
	if len(got) != 1 {
		t.Fatalf("60 Courier glyphs should fill a 6in column exactly, got %d lines", len(got))
	}
	got = Monospace{}.WrapToWidth(text+"b", 6.0)
	if len(got) != 2 {
		t.Fatalf("61 glyphs should wrap, got %d lines", len(got))
	}
}

func TestWrapEmptyAndNewlines(t *testing.T) {
	m := Monospace{Advance: 1}
	if got := m.WrapToWidth("", 10); len(got) != 1 || got[0] != "" {
		t.Fatalf("empty text should give one empty line, got %q", got)
	}
	got := m.WrapToWidth("one\n\ntwo  three", 20)
	want := []string{"one", "", "two three"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("newline handling (-want +got):\n%s", diff)
	}
}

func TestWrapSplitsLongWords(t *testing.T) {
	m := Monospace{Advance: 1}
	got := m.WrapToWidth("ab abcdefghij k", 4)
	want := []string{"ab", "abcd", "efgh", "ij k"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("long word split (-want +got):\n%s", diff)
	}
	// narrower than one glyph still terminates
	if got := m.WrapToWidth("abc", 0.5); len(got) != 3 {
		t.Fatalf("expected one rune per line, got %q", got)
	}
}

func TestWrapDeterministic(t *testing.T) {
	text := "Rain lashes the window. ANA (30s) paces, phone pressed to her ear."
	a := Monospace{}.WrapToWidth(text, 4.0)
	b := Monospace{}.WrapToWidth(text, 4.0)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("non-deterministic wrap:\n%s", diff)
	}
	for _, l := range a {
		if (Monospace{}).TextWidth(l) > 4.0+widthSlack {
			t.Fatalf("line %q exceeds column", l)
		}
	}
}

func TestFaceWrapperUsesGoMono(t *testing.T) {
	fl, err := DefaultLibrary()
	if err != nil {
		t.Fatalf("default library: %v", err)
	}
	w := fl.Wrapper(MonoFamily, 12)
	one := w.TextWidth("M")
	ten := w.TextWidth("MMMMMMMMMM")
	if one <= 0.09 || one >= 0.11 {
		t.Fatalf("Go Mono 12pt advance should be close to 0.1in, got %v", one)
	}
	if ten < one*9.9 || ten > one*10.1 {
		t.Fatalf("monospace widths not additive: one=%v ten=%v", one, ten)
	}
	lines := w.WrapToWidth(strings.Repeat("word ", 30), 2.0)
	if len(lines) < 7 {
		t.Fatalf("expected wrapping at 2in, got %d lines", len(lines))
	}
	if _, ok := fl.Data(MonoFamily, true); !ok {
		t.Fatalf("bold face data missing")
	}
}

func TestFaceFallsBackForUnknownFamily(t *testing.T) {
	fl := NewFontLibrary()
	if f := fl.Face("Nope", false, 12, 72); f == nil {
		t.Fatalf("expected fallback face")
	}
}
