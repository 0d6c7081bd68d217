// Package raster implements the drawing surface pads paint on, stroking
// captured pointer paths with rasterx.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"signpad-server/core"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/fixed"
)

var _ core.Surface = (*Surface)(nil) // assert interface conformance

// Surface is an in-memory RGBA canvas plus the stroke data drawn on it.
type Surface struct {
	mu      sync.Mutex
	img     *image.RGBA
	strokes []core.Stroke

	scanner *rasterx.ScannerGV
	dasher  *rasterx.Dasher
	filler  *rasterx.Filler
}

// NewSurface returns a transparent surface of the given size.
func NewSurface(width, height int) *Surface {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	return &Surface{
		img:     img,
		scanner: scanner,
		dasher:  rasterx.NewDasher(width, height, scanner),
		filler:  rasterx.NewFiller(width, height, scanner),
	}
}

// NewDefaultSurface returns a surface of the fixed pad dimensions.
func NewDefaultSurface() *Surface {
	return NewSurface(core.SurfaceWidth, core.SurfaceHeight)
}

func (s *Surface) Bounds() image.Rectangle {
	return s.img.Bounds()
}

// Fill replaces every pixel with c.
func (s *Surface) Fill(c color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// DrawImageAt copies img with its top-left corner at (x, y), unscaled. The
// pixels under img are replaced, alpha included; the rest are untouched.
func (s *Surface) DrawImageAt(img image.Image, x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := img.Bounds()
	dst := image.Rect(x, y, x+b.Dx(), y+b.Dy())
	draw.Draw(s.img, dst, img, b.Min, draw.Src)
}

// DrawStroke records stroke and paints it on top of the current pixels.
func (s *Surface) DrawStroke(stroke core.Stroke) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.paint(stroke); err != nil {
		return err
	}
	s.strokes = append(s.strokes, core.CloneStrokes([]core.Stroke{stroke})[0])
	return nil
}

// Clear drops all stroke data and resets the pixels to transparent.
func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strokes = nil
	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// ImportStrokes replaces the stroke data and draws every stroke over the
// current pixels. Nothing is cleared first, so a background fill survives.
func (s *Surface) ImportStrokes(strokes []core.Stroke) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, stroke := range strokes {
		if err := s.paint(stroke); err != nil {
			return fmt.Errorf("stroke %d: %w", i, err)
		}
	}
	s.strokes = core.CloneStrokes(strokes)
	return nil
}

func (s *Surface) ExportStrokes() []core.Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.CloneStrokes(s.strokes)
}

// ExportRaster encodes the surface exactly as displayed as a PNG data URI.
func (s *Surface) ExportRaster() (string, error) {
	s.mu.Lock()
	snapshot := image.NewRGBA(s.img.Bounds())
	copy(snapshot.Pix, s.img.Pix)
	s.mu.Unlock()
	return EncodePNG(snapshot)
}

// Image returns a copy of the current pixels.
func (s *Surface) Image() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}

func (s *Surface) paint(stroke core.Stroke) error {
	if len(stroke.Points) == 0 {
		return fmt.Errorf("%w: no points", core.ErrInvalidStroke)
	}
	width := stroke.Width()
	if !core.ValidWidth(width) {
		return fmt.Errorf("%w: width %v", core.ErrInvalidStroke, width)
	}
	for i, p := range stroke.Points {
		if !core.ValidPoint(p) {
			return fmt.Errorf("%w: point %d (%v, %v) out of range", core.ErrInvalidStroke, i, p.X, p.Y)
		}
	}
	c, err := core.ParseColor(stroke.PenColor)
	if err != nil {
		return err
	}

	// A tap without movement is a dot.
	if isDot(stroke.Points) {
		p := stroke.Points[0]
		s.filler.Clear()
		s.filler.SetColor(c)
		rasterx.AddCircle(p.X, p.Y, width/2, s.filler)
		s.filler.Draw()
		return nil
	}

	s.dasher.Clear()
	s.dasher.SetColor(c)
	s.dasher.SetStroke(toFixed(width), toFixed(4), rasterx.RoundCap, rasterx.RoundCap,
		rasterx.RoundGap, rasterx.Round, nil, 0)
	s.dasher.Start(toFixedPoint(stroke.Points[0]))
	for _, p := range stroke.Points[1:] {
		s.dasher.Line(toFixedPoint(p))
	}
	s.dasher.Stop(false)
	s.dasher.Draw()
	return nil
}

func isDot(points []core.Point) bool {
	first := points[0]
	for _, p := range points[1:] {
		if p.X != first.X || p.Y != first.Y {
			return false
		}
	}
	return true
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}

func toFixedPoint(p core.Point) fixed.Point26_6 {
	return fixed.Point26_6{X: toFixed(p.X), Y: toFixed(p.Y)}
}
