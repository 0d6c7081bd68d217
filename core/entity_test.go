package core

import (
	"errors"
	"image/color"
	"math"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#000000", color.NRGBA{0, 0, 0, 255}},
		{"#FF0000", color.NRGBA{255, 0, 0, 255}},
		{"#0000ff", color.NRGBA{0, 0, 255, 255}},
		{"#0f0", color.NRGBA{0, 255, 0, 255}},
		{"#0f08", color.NRGBA{0, 255, 0, 0x88}},
		{"#11223344", color.NRGBA{0x11, 0x22, 0x33, 0x44}},
		{"  #abcdef ", color.NRGBA{0xab, 0xcd, 0xef, 255}},
		{"red", color.NRGBA{255, 0, 0, 255}},
		{"Blue", color.NRGBA{0, 0, 255, 255}},
		{"transparent", color.NRGBA{}},
	}

	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if err != nil {
			t.Errorf("ParseColor(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseColor_Invalid(t *testing.T) {
	for _, in := range []string{"", "#", "#12", "#12345", "#gggggg", "notacolor", "rgb(1,2,3)"} {
		if _, err := ParseColor(in); !errors.Is(err, ErrInvalidColor) {
			t.Errorf("ParseColor(%q) error = %v, want ErrInvalidColor", in, err)
		}
	}
}

func TestFormatColor(t *testing.T) {
	if got := FormatColor(color.NRGBA{255, 0, 0, 255}); got != "#ff0000" {
		t.Errorf("FormatColor() = %q, want #ff0000", got)
	}
	if got := FormatColor(color.NRGBA{1, 2, 3, 4}); got != "#01020304" {
		t.Errorf("FormatColor() = %q, want #01020304", got)
	}
}

func TestValidLineWidth(t *testing.T) {
	for _, w := range []int{1, 3, 5, 10, 15, 20, 30} {
		if !ValidLineWidth(w) {
			t.Errorf("ValidLineWidth(%d) = false, want true", w)
		}
	}
	for _, w := range []int{0, -1, 2, 4, 31, 100} {
		if ValidLineWidth(w) {
			t.Errorf("ValidLineWidth(%d) = true, want false", w)
		}
	}
}

func TestStrokeWidth(t *testing.T) {
	tests := []struct {
		stroke Stroke
		want   float64
	}{
		{Stroke{MinWidth: 5, MaxWidth: 5}, 5},
		{Stroke{MinWidth: 1, MaxWidth: 3}, 2},
		{Stroke{MaxWidth: 4}, 4},
		{Stroke{MinWidth: 7}, 7},
	}
	for _, tt := range tests {
		if got := tt.stroke.Width(); got != tt.want {
			t.Errorf("Width() for %+v = %v, want %v", tt.stroke, got, tt.want)
		}
	}
}

func TestCloneStrokes(t *testing.T) {
	original := []Stroke{{PenColor: "#000000", Points: []Point{{X: 1, Y: 2}}}}
	clone := CloneStrokes(original)
	clone[0].Points[0].X = 99

	if original[0].Points[0].X != 1 {
		t.Error("CloneStrokes() shares point storage with the original")
	}
	if CloneStrokes(nil) != nil {
		t.Error("CloneStrokes(nil) should be nil")
	}
}

func TestValidPoint(t *testing.T) {
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{X: 10, Y: 20}, true},
		{Point{X: -5, Y: SurfaceHeight + 100}, true},
		{Point{X: MaxCoordinate, Y: -MaxCoordinate}, true},
		{Point{X: 1e12, Y: 0}, false},
		{Point{X: 0, Y: -1e12}, false},
		{Point{X: math.NaN(), Y: 0}, false},
		{Point{X: 0, Y: math.Inf(1)}, false},
	}

	for _, tt := range tests {
		if got := ValidPoint(tt.p); got != tt.want {
			t.Errorf("ValidPoint(%+v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestValidWidth(t *testing.T) {
	for _, w := range []float64{0, -1, math.NaN(), math.Inf(1), MaxCoordinate + 1} {
		if ValidWidth(w) {
			t.Errorf("ValidWidth(%v) = true, want false", w)
		}
	}
	if !ValidWidth(2.5) {
		t.Error("ValidWidth(2.5) = false, want true")
	}
}
