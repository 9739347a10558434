/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"villoscreenplay/internal/paginate"
	"villoscreenplay/internal/textlayout"
)

// PNGOptions controls raster page previews.
type PNGOptions struct {
	DPI     int // default 72
	Margins bool
	Fonts   *textlayout.FontLibrary
}

// RenderPNGPage rasterises one recorded page.
func RenderPNGPage(pg paginate.Page, g paginate.Geometry, opt PNGOptions) (*image.RGBA, error) {
	dpi := opt.DPI
	if dpi <= 0 {
		dpi = 72
	}
	lib := opt.Fonts
	if lib == nil {
		var err error
		if lib, err = textlayout.DefaultLibrary(); err != nil {
			return nil, err
		}
	}
	scale := float64(dpi)
	pixW := int(math.Round(g.PageWidth * scale))
	pixH := int(math.Round(g.PageHeight * scale))
	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	if opt.Margins {
		red := color.RGBA{R: 255, A: 255}
		by := int(math.Round(g.Bottom * scale))
		hline(img, 0, pixW-1, by, red)
		for _, x := range []float64{g.ActionX, g.DialogueX, g.DialogueRight, g.RightEdge} {
			vline(img, int(math.Round(x*scale)), 0, pixH-1, red)
		}
	}

	faces := map[faceKey]font.Face{}
	for _, p := range pg.Placements {
		size := p.Size
		if size <= 0 {
			size = g.FontSize
		}
		k := faceKey{bold: p.Weight == paginate.Bold, size: size}
		face, ok := faces[k]
		if !ok {
			face = lib.Face(textlayout.MonoFamily, k.bold, size, scale)
			faces[k] = face
		}
		d := &font.Drawer{Dst: img, Src: image.Black, Face: face}
		x := fixed.Int26_6(math.Round(p.X * scale * 64))
		switch p.Align {
		case paginate.Right:
			x -= d.MeasureString(p.Content)
		case paginate.Center:
			x -= d.MeasureString(p.Content) / 2
		}
		d.Dot = fixed.Point26_6{X: x, Y: fixed.Int26_6(math.Round(p.Y * scale * 64))}
		d.DrawString(p.Content)
	}
	return img, nil
}

// WritePNGPages writes page-NNN.png files into outDir and returns their paths.
func WritePNGPages(rec *paginate.Recorder, g paginate.Geometry, outDir string, opt PNGOptions) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	if opt.Fonts == nil {
		lib, err := textlayout.DefaultLibrary()
		if err != nil {
			return nil, err
		}
		opt.Fonts = lib
	}
	var out []string
	for i, pg := range rec.Pages {
		img, err := RenderPNGPage(pg, g, opt)
		if err != nil {
			return out, err
		}
		name := filepath.Join(outDir, pageFileName(i, "png"))
		f, err := os.Create(name)
		if err != nil {
			return out, fmt.Errorf("create png: %w", err)
		}
		if err := png.Encode(f, img); err != nil {
			_ = f.Close()
			return out, fmt.Errorf("encode png: %w", err)
		}
		if err := f.Close(); err != nil {
			return out, fmt.Errorf("close png: %w", err)
		}
		out = append(out, name)
	}
	return out, nil
}

func hline(img *image.RGBA, x0, x1, y int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y, col)
	}
}

func vline(img *image.RGBA, x, y0, y1 int, col color.RGBA) {
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x, y, col)
	}
}
