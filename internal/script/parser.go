/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bufio"
	"io"
	"regexp"
	"strings"
	"unicode"

	"villoscreenplay/internal/domain"
)

var (
	reScene      = regexp.MustCompile(`^(?i)(INT\./EXT|INT/EXT|I/E|INT|EXT|EST)[.\s]`)
	reTransition = regexp.MustCompile(`^[\p{Lu}0-9 .'\-]+TO:$`)
	reExtension  = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	reTitleKey   = regexp.MustCompile(`^(?i)(title|author|authors|written by|draft|version|draft date|date|email|contact|phone)\s*:\s*(.*)$`)
)

const maxLine = 1 << 20

// Parse parses a plain-text screenplay.
// Supported syntax:
//   - Blocks are separated by blank lines. Lines starting with ";" are comments.
//   - An optional title page comes first as "Key: value" lines
//     (Title, Author, Draft/Version, Date, Email, Phone/Contact).
//   - Scene headings start with INT., EXT., INT./EXT., I/E or EST., or are
//     forced with a leading ".".
//   - Transitions are upper-case lines ending in "TO:" on their own, or are
//     forced with a leading ">".
//   - A speech is an upper-case cue (optionally with an extension such as
//     "(V.O.)", or forced with "@") followed directly by dialogue lines and
//     "(...)" parentheticals.
//   - Everything else is action; a leading "!" forces action.
func Parse(input string) (Script, []Error) {
	return ParseReader(strings.NewReader(input))
}

// ParseReader is Parse over a stream.
func ParseReader(r io.Reader) (Script, []Error) {
	p := &parser{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	lineNo := 0
	var block []rawLine
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimRight(scanner.Text(), " \t\r")
		trim := strings.TrimSpace(raw)
		if trim == "" {
			p.block(block)
			block = nil
			continue
		}
		if strings.HasPrefix(trim, ";") {
			continue
		}
		block = append(block, rawLine{no: lineNo, raw: raw, text: trim})
	}
	p.block(block)
	if err := scanner.Err(); err != nil {
		p.errs = append(p.errs, Error{Line: lineNo + 1, Column: 1, Message: err.Error()})
	}
	return p.script, p.errs
}

type rawLine struct {
	no   int
	raw  string
	text string
}

type parser struct {
	script Script
	errs   []Error
	seen   bool // any block handled yet
}

func (p *parser) emit(kind domain.Kind, text string, lineNo int) {
	p.script.Blocks = append(p.script.Blocks, Block{Kind: kind, Text: domain.Normalize(kind, text), LineNo: lineNo})
}

func (p *parser) errorf(lineNo, col int, msg string) {
	p.errs = append(p.errs, Error{Line: lineNo, Column: col, Message: msg})
}

func (p *parser) block(lines []rawLine) {
	if len(lines) == 0 {
		return
	}
	first := !p.seen
	p.seen = true
	if first && reTitleKey.MatchString(lines[0].text) {
		p.titlePage(lines)
		return
	}
	for len(lines) > 0 {
		l := lines[0]
		t := l.text
		switch {
		case strings.HasPrefix(t, ".") && !strings.HasPrefix(t, ".."):
			p.emit(domain.SceneHeading, strings.TrimSpace(t[1:]), l.no)
			lines = lines[1:]
		case reScene.MatchString(t):
			p.emit(domain.SceneHeading, t, l.no)
			lines = lines[1:]
		case strings.HasPrefix(t, ">") && !strings.HasSuffix(t, "<"):
			p.emit(domain.Transition, strings.TrimSpace(t[1:]), l.no)
			lines = lines[1:]
		case len(lines) == 1 && reTransition.MatchString(t):
			p.emit(domain.Transition, t, l.no)
			return
		case strings.HasPrefix(t, "@") || (len(lines) > 1 && isCue(t)):
			p.speech(lines)
			return
		default:
			p.action(lines)
			return
		}
	}
}

func (p *parser) action(lines []rawLine) {
	parts := make([]string, 0, len(lines))
	for i, l := range lines {
		t := l.text
		if i == 0 {
			t = strings.TrimPrefix(t, "!")
		}
		// Centred text "> THE END <" keeps its words only.
		if strings.HasPrefix(t, ">") && strings.HasSuffix(t, "<") {
			t = strings.TrimSpace(t[1 : len(t)-1])
		}
		parts = append(parts, t)
	}
	p.emit(domain.Action, strings.Join(parts, "\n"), lines[0].no)
}

func (p *parser) speech(lines []rawLine) {
	cue := lines[0]
	p.emit(domain.Character, strings.TrimSpace(strings.TrimPrefix(cue.text, "@")), cue.no)

	var dialogue []string
	start := 0
	flush := func() {
		if len(dialogue) > 0 {
			p.emit(domain.Dialogue, strings.Join(dialogue, "\n"), start)
			dialogue = nil
		}
	}
	for _, l := range lines[1:] {
		t := l.text
		if strings.HasPrefix(t, "(") {
			flush()
			if !strings.HasSuffix(t, ")") {
				p.errorf(l.no, len([]rune(l.raw))+1, "unclosed parenthetical")
				t += ")"
			}
			p.emit(domain.Parenthetical, t, l.no)
			continue
		}
		if len(dialogue) == 0 {
			start = l.no
		}
		dialogue = append(dialogue, t)
	}
	flush()
}

func (p *parser) titlePage(lines []rawLine) {
	c := &domain.Cover{}
	var field *string
	for _, l := range lines {
		m := reTitleKey.FindStringSubmatch(l.text)
		if m == nil {
			// Indented continuation of the previous key.
			if field != nil && l.raw != l.text {
				*field = strings.TrimSpace(*field + " " + l.text)
				continue
			}
			p.errorf(l.no, 1, "unrecognised title page line")
			continue
		}
		switch strings.ToLower(m[1]) {
		case "title":
			field = &c.Title
		case "author", "authors", "written by":
			field = &c.Author
		case "draft", "version":
			field = &c.Version
		case "draft date", "date":
			field = &c.Date
		case "email":
			field = &c.Email
		case "contact", "phone":
			field = &c.Phone
		}
		*field = strings.TrimSpace(m[2])
	}
	p.script.Cover = c
}

// isCue reports whether t looks like a character cue: at least one letter
// and no lower-case letters outside a trailing extension like "(cont'd)".
func isCue(t string) bool {
	name := reExtension.ReplaceAllString(t, "")
	if strings.HasSuffix(name, "TO:") {
		return false
	}
	hasLetter := false
	for _, r := range name {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
