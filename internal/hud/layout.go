package hud

import (
	"image"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Vertex is a HUD triangle corner in normalized device coordinates.
type Vertex struct {
	Pos   mgl32.Vec2
	Color mgl32.Vec3
}

const (
	margin      = 8
	lineSpacing = 2
)

var textColor = mgl32.Vec3{1, 1, 1}

var face font.Face = basicfont.Face7x13

// Layout rasterizes lines top-left aligned into a triangle list. Every
// horizontal run of set glyph pixels becomes one quad of size scale. The
// result is truncated to maxVerts, which must be a multiple of six to keep
// whole quads.
func Layout(lines []string, width, height uint32, scale, maxVerts int) []Vertex {
	if width == 0 || height == 0 || scale < 1 {
		return nil
	}
	metrics := face.Metrics()
	lineHeight := (metrics.Height.Ceil() + lineSpacing) * scale

	var verts []Vertex
	for row, text := range lines {
		dot := fixed.P(0, metrics.Ascent.Ceil())
		top := margin + row*lineHeight
		for _, r := range text {
			dr, mask, mp, adv, ok := face.Glyph(dot, r)
			if !ok {
				dr, mask, mp, adv, _ = face.Glyph(dot, '?')
			}
			for _, run := range glyphRuns(dr, mask, mp) {
				x := float32(margin + run.x*scale)
				y := float32(top + run.y*scale)
				verts = append(verts, quad(x, y, float32(run.w*scale), float32(scale), width, height)...)
				if maxVerts > 0 && len(verts) >= maxVerts {
					return verts[:maxVerts]
				}
			}
			dot.X += adv
		}
	}
	return verts
}

type run struct {
	x, y, w int
}

// glyphRuns lists the horizontal runs of opaque mask pixels, in glyph
// destination coordinates.
func glyphRuns(dr image.Rectangle, mask image.Image, mp image.Point) []run {
	if mask == nil {
		return nil
	}
	var runs []run
	for y := 0; y < dr.Dy(); y++ {
		start := -1
		for x := 0; x <= dr.Dx(); x++ {
			on := x < dr.Dx() && opaque(mask, mp.X+x, mp.Y+y)
			switch {
			case on && start < 0:
				start = x
			case !on && start >= 0:
				runs = append(runs, run{x: dr.Min.X + start, y: dr.Min.Y + y, w: x - start})
				start = -1
			}
		}
	}
	return runs
}

func opaque(m image.Image, x, y int) bool {
	_, _, _, a := m.At(x, y).RGBA()
	return a > 0x7fff
}

// quad maps a pixel rectangle to two NDC triangles. Vulkan NDC has y down,
// so pixel rows map without flipping.
func quad(x, y, w, h float32, width, height uint32) []Vertex {
	ndc := func(px, py float32) mgl32.Vec2 {
		return mgl32.Vec2{px/float32(width)*2 - 1, py/float32(height)*2 - 1}
	}
	p0, p1, p2, p3 := ndc(x, y), ndc(x+w, y), ndc(x+w, y+h), ndc(x, y+h)
	return []Vertex{
		{Pos: p0, Color: textColor},
		{Pos: p1, Color: textColor},
		{Pos: p2, Color: textColor},
		{Pos: p2, Color: textColor},
		{Pos: p3, Color: textColor},
		{Pos: p0, Color: textColor},
	}
}
