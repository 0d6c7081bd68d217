package core

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
)

const (
	SurfaceWidth  = 800
	SurfaceHeight = 300

	SavedSignatureKey   = "savedSignature"
	DownloadFilename    = "signature.png"
	DownloadContentType = "image/png"

	DefaultPenColor        = "#000000"
	DefaultLineWidth       = 1
	DefaultBackgroundColor = "#ffffff"

	// MaxCoordinate bounds point coordinates and stroke widths. Larger
	// values overflow the rasterizer's 26.6 fixed-point math.
	MaxCoordinate = 1 << 16
)

// LineWidths is the set of pen widths offered to the user.
var LineWidths = []int{1, 3, 5, 10, 15, 20, 30}

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidColor     = errors.New("invalid color")
	ErrInvalidLineWidth = errors.New("invalid line width")
	ErrInvalidStroke    = errors.New("invalid stroke")
)

type (
	DrawingConfiguration struct {
		PenColor        string `json:"penColor"`
		LineWidth       int    `json:"lineWidth"`
		BackgroundColor string `json:"backgroundColor"`
	}

	// Point is one sampled pointer position. Time is in unix milliseconds.
	Point struct {
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
		Time int64   `json:"time"`
	}

	// Stroke is one pointer-down to pointer-up path together with the pen
	// settings that were active when it was drawn.
	Stroke struct {
		PenColor string  `json:"penColor"`
		MinWidth float64 `json:"minWidth"`
		MaxWidth float64 `json:"maxWidth"`
		Points   []Point `json:"points"`
	}

	// SignatureStore is the durable key/value slot the widget persists to.
	// Get returns ErrNotFound when nothing was stored under key.
	SignatureStore interface {
		Get(ctx context.Context, key string) (string, error)
		Set(ctx context.Context, key, value string) error
	}

	// Surface is the drawing capability the widget paints on. It owns the
	// captured strokes; the widget only triggers repaints and exports.
	Surface interface {
		Bounds() image.Rectangle
		Fill(c color.Color)
		DrawImageAt(img image.Image, x, y int)
		DrawStroke(stroke Stroke) error
		ExportRaster() (string, error)
		Clear()
		ImportStrokes(strokes []Stroke) error
		ExportStrokes() []Stroke
	}

	// SignatureDeleter is implemented by stores that can drop a single key.
	// Deleting a missing key is not an error.
	SignatureDeleter interface {
		Delete(ctx context.Context, key string) error
	}

	// Downloader hands a finished file to the user.
	Downloader interface {
		Download(ctx context.Context, filename, contentType string, data []byte) error
	}

	Pad struct {
		ID         string `json:"id"`
		LastActive int64  `json:"lastActive"`
	}

	// PadRegistry records which pads exist and when they were last used.
	PadRegistry interface {
		ListPads(ctx context.Context) ([]Pad, error)
		TouchPad(ctx context.Context, padID string) error
		DeletePad(ctx context.Context, padID string) error
	}
)

// DefaultConfiguration is the configuration a fresh pad starts with.
func DefaultConfiguration() DrawingConfiguration {
	return DrawingConfiguration{
		PenColor:        DefaultPenColor,
		LineWidth:       DefaultLineWidth,
		BackgroundColor: DefaultBackgroundColor,
	}
}

func ValidLineWidth(w int) bool {
	for _, lw := range LineWidths {
		if lw == w {
			return true
		}
	}
	return false
}

// Width is the width the stroke is rendered with. Strokes drawn through the
// widget always carry MinWidth == MaxWidth; imported data may not.
func (s Stroke) Width() float64 {
	if s.MinWidth <= 0 {
		return s.MaxWidth
	}
	if s.MaxWidth <= 0 {
		return s.MinWidth
	}
	return (s.MinWidth + s.MaxWidth) / 2
}

// ValidPoint reports whether p is finite and within MaxCoordinate.
func ValidPoint(p Point) bool {
	return inRange(p.X) && inRange(p.Y)
}

// ValidWidth reports whether w is a positive width within MaxCoordinate.
func ValidWidth(w float64) bool {
	return w > 0 && inRange(w)
}

func inRange(v float64) bool {
	return !math.IsNaN(v) && math.Abs(v) <= MaxCoordinate
}

// CloneStrokes deep-copies a stroke list.
func CloneStrokes(strokes []Stroke) []Stroke {
	if strokes == nil {
		return nil
	}
	out := make([]Stroke, len(strokes))
	for i, s := range strokes {
		out[i] = s
		out[i].Points = append([]Point(nil), s.Points...)
	}
	return out
}

// PadKeyPrefix is the key namespace a pad's values are stored under.
func PadKeyPrefix(padID string) string {
	return "pad:" + padID + ":"
}
