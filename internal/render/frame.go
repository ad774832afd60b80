// Package render turns simulation snapshots into pictures: raster frames,
// an MJPEG video of a run, and the epidemic curve.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"epigrid/internal/sim"
)

const headerHeight = 20

var palette = map[string]color.RGBA{
	"blue":            {R: 0, G: 0, B: 255, A: 255},
	"firebrick":       {R: 178, G: 34, B: 34, A: 255},
	"red":             {R: 255, G: 0, B: 0, A: 255},
	"darkred":         {R: 139, G: 0, B: 0, A: 255},
	"mediumvioletred": {R: 199, G: 21, B: 133, A: 255},
	"black":           {R: 0, G: 0, B: 0, A: 255},
	"green":           {R: 0, G: 128, B: 0, A: 255},
}

var (
	background = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	unknown    = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

// ColorOf resolves a display color name.
func ColorOf(name string) color.RGBA {
	if c, ok := palette[name]; ok {
		return c
	}
	return unknown
}

// Canvas maps grid cells to pixels.
type Canvas struct {
	GridWidth, GridHeight int
	CellSize              int
}

// Bounds is the pixel size of a frame, header included.
func (c Canvas) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.GridWidth*c.cell(), c.GridHeight*c.cell()+headerHeight)
}

func (c Canvas) cell() int {
	if c.CellSize <= 0 {
		return 1
	}
	return c.CellSize
}

// Frame draws one snapshot: every agent as a square of its state color under a
// header line with the step and counts.
func (c Canvas) Frame(snap sim.Snapshot) *image.RGBA {
	img := image.NewRGBA(c.Bounds())
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	size := c.cell()
	for i := range snap.X {
		x0 := snap.X[i] * size
		y0 := headerHeight + snap.Y[i]*size
		rect := image.Rect(x0, y0, x0+size, y0+size)
		draw.Draw(img, rect, &image.Uniform{ColorOf(snap.Colors[i])}, image.Point{}, draw.Src)
	}

	label := fmt.Sprintf("step %d  S %d  E %d  I %d  R %d  D %d",
		snap.Step,
		snap.Counts.Get(sim.Susceptible),
		snap.Counts.Get(sim.Exposed),
		snap.Counts.Get(sim.Infected),
		snap.Counts.Get(sim.Recovered),
		snap.Counts.Get(sim.Dead))
	addLabel(img, 4, 14, label, palette["black"])
	return img
}

func addLabel(img *image.RGBA, x, y int, label string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(label)
}
