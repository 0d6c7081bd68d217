// Package widget holds the signature pad state machine: drawing
// configuration, the surface it paints on, and the clear / save / retrieve
// actions against the persisted signature slot.
package widget

import (
	"fmt"
	"image"
	"sync"

	"signpad-server/core"
	"signpad-server/raster"

	"github.com/sirupsen/logrus"
)

// Decoder turns a persisted snapshot back into an image.
type Decoder func(dataURL string) (image.Image, error)

type Option func(*Widget)

func WithDecoder(d Decoder) Option {
	return func(w *Widget) { w.decode = d }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(w *Widget) { w.log = l }
}

func WithConfiguration(c core.DrawingConfiguration) Option {
	return func(w *Widget) { w.config = c }
}

// Widget is one signature pad. All methods are safe for concurrent use; they
// are serialized so the surface only ever sees one mutation at a time.
type Widget struct {
	mu         sync.Mutex
	config     core.DrawingConfiguration
	surface    core.Surface
	store      core.SignatureStore
	downloader core.Downloader
	decode     Decoder
	log        logrus.FieldLogger

	preview string
	// generation is bumped by every surface mutation; a pending retrieve only
	// lands if it is still current when its decode finishes.
	generation uint64
}

// SaveResult describes what Save did besides the download.
type SaveResult struct {
	Snapshot   string
	PersistErr error
}

// New builds a widget and paints its initial background.
func New(store core.SignatureStore, downloader core.Downloader, opts ...Option) (*Widget, error) {
	w := &Widget{
		config:     core.DefaultConfiguration(),
		store:      store,
		downloader: downloader,
		decode:     raster.DecodeImage,
		log:        logrus.StandardLogger(),
		surface:    raster.NewDefaultSurface(),
	}
	for _, opt := range opts {
		opt(w)
	}
	config, err := normalizeConfiguration(w.config)
	if err != nil {
		return nil, err
	}
	w.config = config

	bg, _ := core.ParseColor(w.config.BackgroundColor)
	w.surface.Fill(bg)
	return w, nil
}

// normalizeConfiguration validates c and rewrites its colors as hex.
func normalizeConfiguration(c core.DrawingConfiguration) (core.DrawingConfiguration, error) {
	pen, err := core.ParseColor(c.PenColor)
	if err != nil {
		return c, fmt.Errorf("pen color: %w", err)
	}
	bg, err := core.ParseColor(c.BackgroundColor)
	if err != nil {
		return c, fmt.Errorf("background color: %w", err)
	}
	if !core.ValidLineWidth(c.LineWidth) {
		return c, fmt.Errorf("%w: %d", core.ErrInvalidLineWidth, c.LineWidth)
	}
	c.PenColor = core.FormatColor(pen)
	c.BackgroundColor = core.FormatColor(bg)
	return c, nil
}

func (w *Widget) Config() core.DrawingConfiguration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.config
}

// Preview returns the data URI of the last saved or retrieved snapshot, or
// "" when there is none.
func (w *Widget) Preview() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.preview
}

// Raster returns the current surface as a PNG data URI.
func (w *Widget) Raster() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.surface.ExportRaster()
}

func (w *Widget) Strokes() []core.Stroke {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.surface.ExportStrokes()
}

// SetPenColor applies to strokes drawn from now on. The color is stored as
// #rrggbb, or #rrggbbaa when translucent.
func (w *Widget) SetPenColor(c string) error {
	pen, err := core.ParseColor(c)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config.PenColor = core.FormatColor(pen)
	return nil
}

// SetLineWidth sets both the minimum and maximum stroke width to width.
func (w *Widget) SetLineWidth(width int) error {
	if !core.ValidLineWidth(width) {
		return fmt.Errorf("%w: %d", core.ErrInvalidLineWidth, width)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config.LineWidth = width
	return nil
}

// SetBackgroundColor repaints the surface with c and replays every captured
// stroke on top of it.
func (w *Widget) SetBackgroundColor(c string) error {
	bg, err := core.ParseColor(c)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config.BackgroundColor = core.FormatColor(bg)
	w.generation++

	w.surface.Fill(bg)
	if err := w.surface.ImportStrokes(w.surface.ExportStrokes()); err != nil {
		return fmt.Errorf("replay strokes: %w", err)
	}
	return nil
}

// ImportStrokes replaces the captured strokes and redraws them over the
// current background.
func (w *Widget) ImportStrokes(strokes []core.Stroke) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	bg, _ := core.ParseColor(w.config.BackgroundColor)
	w.generation++

	previous := w.surface.ExportStrokes()
	w.surface.Fill(bg)
	if err := w.surface.ImportStrokes(strokes); err != nil {
		w.surface.Fill(bg)
		_ = w.surface.ImportStrokes(previous)
		return err
	}
	return nil
}

// AddStroke captures one stroke with the current pen color and width.
// Points must be finite and within core.MaxCoordinate.
func (w *Widget) AddStroke(points []core.Point) (core.Stroke, error) {
	if len(points) == 0 {
		return core.Stroke{}, fmt.Errorf("%w: no points", core.ErrInvalidStroke)
	}
	for i, p := range points {
		if !core.ValidPoint(p) {
			return core.Stroke{}, fmt.Errorf("%w: point %d (%v, %v) out of range", core.ErrInvalidStroke, i, p.X, p.Y)
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	stroke := core.Stroke{
		PenColor: w.config.PenColor,
		MinWidth: float64(w.config.LineWidth),
		MaxWidth: float64(w.config.LineWidth),
		Points:   append([]core.Point(nil), points...),
	}
	if err := w.surface.DrawStroke(stroke); err != nil {
		return core.Stroke{}, err
	}
	w.generation++
	return stroke, nil
}
