package raster

import (
	"errors"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	"signpad-server/core"
)

var (
	red  = color.NRGBA{255, 0, 0, 255}
	blue = color.NRGBA{0, 0, 255, 255}
)

func nearly(got color.Color, want color.NRGBA) bool {
	g := color.NRGBAModel.Convert(got).(color.NRGBA)
	diff := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	return diff(g.R, want.R) <= 2 && diff(g.G, want.G) <= 2 && diff(g.B, want.B) <= 2 && diff(g.A, want.A) <= 2
}

func horizontalStroke(penColor string, width float64) core.Stroke {
	return core.Stroke{
		PenColor: penColor,
		MinWidth: width,
		MaxWidth: width,
		Points: []core.Point{
			{X: 100, Y: 150, Time: 1},
			{X: 300, Y: 150, Time: 2},
		},
	}
}

func TestNewSurface(t *testing.T) {
	s := NewDefaultSurface()
	if got := s.Bounds(); got != image.Rect(0, 0, 800, 300) {
		t.Fatalf("Bounds() = %v, want 800x300", got)
	}
	if got := s.Image().At(10, 10); !nearly(got, color.NRGBA{}) {
		t.Errorf("new surface pixel = %v, want transparent", got)
	}
}

func TestFill(t *testing.T) {
	s := NewDefaultSurface()
	s.Fill(blue)

	img := s.Image()
	for _, p := range []image.Point{{0, 0}, {799, 299}, {400, 150}} {
		if got := img.At(p.X, p.Y); !nearly(got, blue) {
			t.Errorf("pixel %v = %v, want blue", p, got)
		}
	}
}

func TestDrawStroke_PaintsPenColor(t *testing.T) {
	s := NewDefaultSurface()
	s.Fill(color.White)

	if err := s.DrawStroke(horizontalStroke("#ff0000", 10)); err != nil {
		t.Fatalf("DrawStroke() failed: %v", err)
	}

	img := s.Image()
	if got := img.At(200, 150); !nearly(got, red) {
		t.Errorf("stroke center = %v, want red", got)
	}
	if got := img.At(200, 100); !nearly(got, color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("pixel off the stroke = %v, want white", got)
	}
	if got := len(s.ExportStrokes()); got != 1 {
		t.Errorf("ExportStrokes() len = %d, want 1", got)
	}
}

func TestDrawStroke_UniformWidth(t *testing.T) {
	for _, w := range core.LineWidths {
		s := NewDefaultSurface()
		s.Fill(color.White)
		if err := s.DrawStroke(horizontalStroke("#ff0000", float64(w))); err != nil {
			t.Fatalf("DrawStroke(width %d) failed: %v", w, err)
		}

		img := s.Image()
		for _, x := range []int{150, 200, 250} {
			covered := 0
			for y := 150 - 20; y <= 150+20; y++ {
				if nearly(img.At(x, y), red) {
					covered++
				}
			}
			if covered > w+1 || covered < w-1 {
				t.Errorf("width %d: column %d has %d fully covered pixels", w, x, covered)
			}
		}
	}
}

func TestDrawStroke_Dot(t *testing.T) {
	s := NewDefaultSurface()
	s.Fill(color.White)

	dot := core.Stroke{PenColor: "#ff0000", MinWidth: 10, MaxWidth: 10, Points: []core.Point{{X: 50, Y: 50}}}
	if err := s.DrawStroke(dot); err != nil {
		t.Fatalf("DrawStroke() failed: %v", err)
	}
	if got := s.Image().At(50, 50); !nearly(got, red) {
		t.Errorf("dot center = %v, want red", got)
	}
}

func TestDrawStroke_Invalid(t *testing.T) {
	s := NewDefaultSurface()

	tests := []struct {
		name   string
		stroke core.Stroke
		want   error
	}{
		{"no points", core.Stroke{PenColor: "#000", MaxWidth: 1}, core.ErrInvalidStroke},
		{"no width", core.Stroke{PenColor: "#000", Points: []core.Point{{X: 1, Y: 1}}}, core.ErrInvalidStroke},
		{"bad color", core.Stroke{PenColor: "nope", MaxWidth: 1, Points: []core.Point{{X: 1, Y: 1}}}, core.ErrInvalidColor},
		{"huge coordinates", core.Stroke{PenColor: "#000", MaxWidth: 1, Points: []core.Point{{X: 1e12, Y: -1e12}, {X: -1e12, Y: 1e12}}}, core.ErrInvalidStroke},
		{"infinite coordinate", core.Stroke{PenColor: "#000", MaxWidth: 1, Points: []core.Point{{X: 1, Y: 1}, {X: math.Inf(-1), Y: 1}}}, core.ErrInvalidStroke},
		{"huge width", core.Stroke{PenColor: "#000", MaxWidth: 1e12, Points: []core.Point{{X: 1, Y: 1}, {X: 5, Y: 5}}}, core.ErrInvalidStroke},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.DrawStroke(tt.stroke); !errors.Is(err, tt.want) {
				t.Errorf("DrawStroke() error = %v, want %v", err, tt.want)
			}
		})
	}
	if got := len(s.ExportStrokes()); got != 0 {
		t.Errorf("invalid strokes were recorded: %d", got)
	}
}

func TestClear(t *testing.T) {
	s := NewDefaultSurface()
	s.Fill(blue)
	if err := s.DrawStroke(horizontalStroke("#ff0000", 5)); err != nil {
		t.Fatalf("DrawStroke() failed: %v", err)
	}

	s.Clear()

	if got := len(s.ExportStrokes()); got != 0 {
		t.Errorf("ExportStrokes() after Clear() len = %d, want 0", got)
	}
	if got := s.Image().At(200, 150); !nearly(got, color.NRGBA{}) {
		t.Errorf("pixel after Clear() = %v, want transparent", got)
	}
}

func TestImportStrokes_KeepsBackground(t *testing.T) {
	s := NewDefaultSurface()
	s.Fill(color.White)
	if err := s.DrawStroke(horizontalStroke("#ff0000", 10)); err != nil {
		t.Fatalf("DrawStroke() failed: %v", err)
	}

	strokes := s.ExportStrokes()
	s.Fill(blue)
	if err := s.ImportStrokes(strokes); err != nil {
		t.Fatalf("ImportStrokes() failed: %v", err)
	}

	img := s.Image()
	if got := img.At(200, 150); !nearly(got, red) {
		t.Errorf("replayed stroke = %v, want red", got)
	}
	if got := img.At(200, 50); !nearly(got, blue) {
		t.Errorf("background = %v, want blue", got)
	}
	if got := len(s.ExportStrokes()); got != 1 {
		t.Errorf("ExportStrokes() len = %d, want 1", got)
	}
}

func TestExportStrokes_IsCopy(t *testing.T) {
	s := NewDefaultSurface()
	if err := s.DrawStroke(horizontalStroke("#ff0000", 3)); err != nil {
		t.Fatalf("DrawStroke() failed: %v", err)
	}
	exported := s.ExportStrokes()
	exported[0].Points[0].X = -1

	if s.ExportStrokes()[0].Points[0].X != 100 {
		t.Error("ExportStrokes() exposes internal stroke storage")
	}
}

func TestDrawImageAt(t *testing.T) {
	s := NewDefaultSurface()
	s.Fill(color.White)

	patch := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := 0; i < len(patch.Pix); i += 4 {
		patch.Pix[i], patch.Pix[i+1], patch.Pix[i+2], patch.Pix[i+3] = 0, 0, 255, 255
	}
	s.DrawImageAt(patch, 20, 30)

	img := s.Image()
	if got := img.At(25, 35); !nearly(got, blue) {
		t.Errorf("pixel inside patch = %v, want blue", got)
	}
	if got := img.At(31, 35); !nearly(got, color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("pixel outside patch = %v, want white", got)
	}
}

func TestDrawImageAt_ReplacesAlpha(t *testing.T) {
	s := NewDefaultSurface()
	s.Fill(color.NRGBA{255, 0, 0, 128})

	snapshot := s.Image()
	s.Fill(color.NRGBA{255, 0, 0, 128})
	s.DrawImageAt(snapshot, 0, 0)

	if got := s.Image().At(10, 10); !nearly(got, color.NRGBA{255, 0, 0, 128}) {
		t.Errorf("pixel = %v, want the copied translucent red", got)
	}
}

func TestExportRaster_RoundTrip(t *testing.T) {
	s := NewDefaultSurface()
	s.Fill(blue)
	if err := s.DrawStroke(horizontalStroke("#ff0000", 10)); err != nil {
		t.Fatalf("DrawStroke() failed: %v", err)
	}

	dataURL, err := s.ExportRaster()
	if err != nil {
		t.Fatalf("ExportRaster() failed: %v", err)
	}
	if !strings.HasPrefix(dataURL, "data:image/png;base64,") {
		t.Fatalf("ExportRaster() = %.40q, want png data url", dataURL)
	}

	decoded, err := DecodeImage(dataURL)
	if err != nil {
		t.Fatalf("DecodeImage() failed: %v", err)
	}
	if decoded.Bounds() != s.Bounds() {
		t.Fatalf("decoded bounds = %v, want %v", decoded.Bounds(), s.Bounds())
	}

	original := s.Image()
	for _, p := range []image.Point{{0, 0}, {200, 150}, {799, 299}, {300, 152}} {
		want := color.NRGBAModel.Convert(original.At(p.X, p.Y)).(color.NRGBA)
		if got := decoded.At(p.X, p.Y); !nearly(got, want) {
			t.Errorf("pixel %v = %v, want %v", p, got, want)
		}
	}
}
