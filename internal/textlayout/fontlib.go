/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/opentype"
)

// MonoFamily is the family name under which the bundled Go Mono faces are
// registered. It stands in for Courier wherever a real outline font is needed.
const MonoFamily = "Go Mono"

// FontLibrary stores parsed OpenType fonts keyed by family and weight, along
// with their raw bytes for renderers that embed fonts themselves.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[fontKey]entry
}

type fontKey struct {
	family string
	bold   bool
}

type entry struct {
	font *opentype.Font
	data []byte
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[fontKey]entry)} }

// DefaultLibrary returns a library preloaded with Go Mono regular and bold.
func DefaultLibrary() (*FontLibrary, error) {
	fl := NewFontLibrary()
	if err := fl.Add(MonoFamily, false, gomono.TTF); err != nil {
		return nil, err
	}
	if err := fl.Add(MonoFamily, true, gomonobold.TTF); err != nil {
		return nil, err
	}
	return fl, nil
}

// LoadTTF reads a font file and registers it under family/bold.
func (fl *FontLibrary) LoadTTF(family string, bold bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return fl.Add(family, bold, data)
}

// Add parses font data and registers it under family/bold.
func (fl *FontLibrary) Add(family string, bold bool, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", family, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[fontKey]entry)
	}
	fl.fonts[fontKey{family: family, bold: bold}] = entry{font: f, data: data}
	return nil
}

func (fl *FontLibrary) find(family string, bold bool) (entry, bool) {
	if fl == nil {
		return entry{}, false
	}
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	if e, ok := fl.fonts[fontKey{family: family, bold: bold}]; ok {
		return e, true
	}
	// same family, other weight
	e, ok := fl.fonts[fontKey{family: family, bold: !bold}]
	return e, ok
}

// Data returns the raw font bytes for family/bold.
func (fl *FontLibrary) Data(family string, bold bool) ([]byte, bool) {
	e, ok := fl.find(family, bold)
	return e.data, ok
}

// Face returns a face at sizePt and dpi. Missing families fall back to
// basicfont.Face7x13 so previews still render.
func (fl *FontLibrary) Face(family string, bold bool, sizePt, dpi float64) font.Face {
	if sizePt <= 0 {
		sizePt = 12
	}
	if dpi <= 0 {
		dpi = PointsPerInch
	}
	if e, ok := fl.find(family, bold); ok {
		face, err := opentype.NewFace(e.font, &opentype.FaceOptions{Size: sizePt, DPI: dpi, Hinting: font.HintingNone})
		if err == nil {
			return face
		}
	}
	return basicfont.Face7x13
}

// Wrapper returns a FaceWrapper for family at sizePt.
func (fl *FontLibrary) Wrapper(family string, sizePt float64) FaceWrapper {
	return FaceWrapper{Face: fl.Face(family, false, sizePt, PointsPerInch)}
}
