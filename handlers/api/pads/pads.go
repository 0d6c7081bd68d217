package pads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"signpad-server/core"
	"signpad-server/raster"
	"signpad-server/widget"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const PersistedHeader = "X-Signature-Persisted"

type (
	Registry interface {
		Create(ctx context.Context) (string, *widget.Widget, error)
		Get(ctx context.Context, id string) (*widget.Widget, error)
		ListPads(ctx context.Context) ([]core.Pad, error)
		TouchPad(ctx context.Context, id string) error
		Delete(ctx context.Context, id string) error
	}

	// ActiveCounter reports connected clients per pad.
	ActiveCounter func() map[string]int

	// Notifier relays changes made through the API to the pad's live clients.
	Notifier interface {
		StateChanged(padID string, wd *widget.Widget)
		StrokeAdded(padID string, stroke core.Stroke)
	}

	PadState struct {
		ID      string                    `json:"id"`
		Config  core.DrawingConfiguration `json:"config"`
		Preview string                    `json:"preview,omitempty"`
		Strokes []core.Stroke             `json:"strokes"`
	}

	PadSummary struct {
		ID         string `json:"id"`
		Users      int    `json:"users"`
		LastActive *int64 `json:"lastActive,omitempty"`
	}

	CreatePadResponse struct {
		ID     string                    `json:"id"`
		Config core.DrawingConfiguration `json:"config"`
	}

	PenColorRequest struct {
		PenColor string `json:"penColor"`
	}

	LineWidthRequest struct {
		LineWidth int `json:"lineWidth"`
	}

	BackgroundColorRequest struct {
		BackgroundColor string `json:"backgroundColor"`
	}

	AddStrokeRequest struct {
		Points []core.Point `json:"points"`
	}

	ImportStrokesRequest struct {
		Strokes []core.Stroke `json:"strokes"`
	}

	RetrieveResponse struct {
		Outcome widget.RetrieveOutcome `json:"outcome"`
		State   PadState               `json:"state"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}
)

type nopNotifier struct{}

func (nopNotifier) StateChanged(string, *widget.Widget) {}
func (nopNotifier) StrokeAdded(string, core.Stroke)     {}

// Routes mounts the pad API on r. A nil notifier keeps changes local to the
// API caller.
func Routes(r chi.Router, registry Registry, active ActiveCounter, notifier Notifier) {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	r.Post("/", HandleCreate(registry))
	r.Get("/", HandleList(registry, active))
	r.Route("/{padId}", func(r chi.Router) {
		r.Get("/", HandleGet(registry))
		r.Delete("/", HandleDelete(registry))
		r.Put("/pen-color", HandleSetPenColor(registry, notifier))
		r.Put("/line-width", HandleSetLineWidth(registry, notifier))
		r.Put("/background-color", HandleSetBackgroundColor(registry, notifier))
		r.Get("/strokes", HandleExportStrokes(registry))
		r.Post("/strokes", HandleAddStroke(registry, notifier))
		r.Put("/strokes", HandleImportStrokes(registry, notifier))
		r.Post("/clear", HandleClear(registry, notifier))
		r.Post("/save", HandleSave(registry))
		r.Post("/retrieve", HandleRetrieve(registry, notifier))
		r.Get("/image.png", HandleImage(registry))
		r.Get("/preview.png", HandlePreview(registry))
	})
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidColor),
		errors.Is(err, core.ErrInvalidLineWidth),
		errors.Is(err, core.ErrInvalidStroke):
		status = http.StatusBadRequest
	}

	log := logrus.WithFields(logrus.Fields{"error": err, "path": r.URL.Path})
	if status == http.StatusInternalServerError {
		log.Error("Pad request failed")
	} else {
		log.Warn("Pad request rejected")
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	logrus.WithField("error", err).Error("Failed to decode request")
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
}

// loadWidget resolves the pad in the URL and records the activity.
func loadWidget(w http.ResponseWriter, r *http.Request, registry Registry) (string, *widget.Widget, bool) {
	padID := chi.URLParam(r, "padId")
	wd, err := registry.Get(r.Context(), padID)
	if err != nil {
		renderError(w, r, err)
		return "", nil, false
	}
	if err := registry.TouchPad(r.Context(), padID); err != nil {
		logrus.WithFields(logrus.Fields{"error": err, "padId": padID}).Warn("Failed to record pad activity")
	}
	return padID, wd, true
}

func stateOf(id string, wd *widget.Widget) PadState {
	strokes := wd.Strokes()
	if strokes == nil {
		strokes = []core.Stroke{}
	}
	return PadState{
		ID:      id,
		Config:  wd.Config(),
		Preview: wd.Preview(),
		Strokes: strokes,
	}
}

// HandleCreate opens a new pad
func HandleCreate(registry Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, wd, err := registry.Create(r.Context())
		if err != nil {
			renderError(w, r, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreatePadResponse{ID: id, Config: wd.Config()})
	}
}

// HandleList lists known pads with their connected client counts, busiest
// first and then most recently active.
func HandleList(registry Registry, active ActiveCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries := make(map[string]*PadSummary)

		if active != nil {
			for id, count := range active() {
				summaries[id] = &PadSummary{ID: id, Users: count}
			}
		}

		known, err := registry.ListPads(r.Context())
		if err != nil {
			logrus.WithError(err).Warn("failed to list pads from registry")
		}
		for _, p := range known {
			entry, exists := summaries[p.ID]
			if !exists {
				entry = &PadSummary{ID: p.ID}
				summaries[p.ID] = entry
			}
			if p.LastActive > 0 {
				lastActive := p.LastActive
				entry.LastActive = &lastActive
			}
		}

		list := make([]PadSummary, 0, len(summaries))
		for _, entry := range summaries {
			list = append(list, *entry)
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Users != list[j].Users {
				return list[i].Users > list[j].Users
			}
			var li, lj int64
			if list[i].LastActive != nil {
				li = *list[i].LastActive
			}
			if list[j].LastActive != nil {
				lj = *list[j].LastActive
			}
			if li == lj {
				return list[i].ID < list[j].ID
			}
			return li > lj
		})

		render.JSON(w, r, list)
	}
}

func HandleGet(registry Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, wd, ok := loadWidget(w, r, registry)
		if !ok {
			return
		}
		render.JSON(w, r, stateOf(id, wd))
	}
}

func HandleDelete(registry Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		padID := chi.URLParam(r, "padId")
		if _, err := registry.Get(r.Context(), padID); err != nil {
			renderError(w, r, err)
			return
		}
		if err := registry.Delete(r.Context(), padID); err != nil {
			renderError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleSetPenColor(registry Registry, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, wd, ok := loadWidget(w, r, registry)
		if !ok {
			return
		}
		var req PenColorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, r, err)
			return
		}
		if err := wd.SetPenColor(req.PenColor); err != nil {
			renderError(w, r, err)
			return
		}
		notifier.StateChanged(id, wd)
		render.JSON(w, r, wd.Config())
	}
}

func HandleSetLineWidth(registry Registry, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, wd, ok := loadWidget(w, r, registry)
		if !ok {
			return
		}
		var req LineWidthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, r, err)
			return
		}
		if err := wd.SetLineWidth(req.LineWidth); err != nil {
			renderError(w, r, err)
			return
		}
		notifier.StateChanged(id, wd)
		render.JSON(w, r, wd.Config())
	}
}

func HandleSetBackgroundColor(registry Registry, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, wd, ok := loadWidget(w, r, registry)
		if !ok {
			return
		}
		var req BackgroundColorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, r, err)
			return
		}
		if err := wd.SetBackgroundColor(req.BackgroundColor); err != nil {
			renderError(w, r, err)
			return
		}
		notifier.StateChanged(id, wd)
		render.JSON(w, r, wd.Config())
	}
}

func HandleExportStrokes(registry Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, wd, ok := loadWidget(w, r, registry)
		if !ok {
			return
		}
		strokes := wd.Strokes()
		if strokes == nil {
			strokes = []core.Stroke{}
		}
		render.JSON(w, r, strokes)
	}
}

// HandleAddStroke draws one stroke with the pad's current pen.
func HandleAddStroke(registry Registry, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, wd, ok := loadWidget(w, r, registry)
		if !ok {
			return
		}
		var req AddStrokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, r, err)
			return
		}
		stroke, err := wd.AddStroke(req.Points)
		if err != nil {
			renderError(w, r, err)
			return
		}
		notifier.StrokeAdded(id, stroke)
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, stroke)
	}
}

// HandleImportStrokes replaces the pad's strokes with previously exported
// ones and redraws them over the current background.
func HandleImportStrokes(registry Registry, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, wd, ok := loadWidget(w, r, registry)
		if !ok {
			return
		}
		var req ImportStrokesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, r, err)
			return
		}
		if err := wd.ImportStrokes(req.Strokes); err != nil {
			renderError(w, r, err)
			return
		}
		notifier.StateChanged(id, wd)
		render.JSON(w, r, stateOf(id, wd))
	}
}

func HandleClear(registry Registry, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, wd, ok := loadWidget(w, r, registry)
		if !ok {
			return
		}
		wd.Clear()
		notifier.StateChanged(id, wd)
		render.JSON(w, r, stateOf(id, wd))
	}
}

// capture holds a download until the response headers are known.
type capture struct {
	filename    string
	contentType string
	data        []byte
}

func (c *capture) Download(ctx context.Context, filename, contentType string, data []byte) error {
	c.filename = filename
	c.contentType = contentType
	c.data = data
	return nil
}

// HandleSave snapshots the pad, persists it and returns it as a file
// download. A failed persist is reported in the X-Signature-Persisted
// header; the download still happens.
func HandleSave(registry Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, wd, ok := loadWidget(w, r, registry)
		if !ok {
			return
		}

		var dl capture
		result, err := wd.SaveTo(r.Context(), &dl)
		if err != nil {
			renderError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", dl.contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(dl.data)))
		w.Header().Set(PersistedHeader, strconv.FormatBool(result.PersistErr == nil))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(dl.data); err != nil {
			logrus.WithField("error", err).Error("Failed to write signature download")
		}
	}
}

// HandleRetrieve waits for the saved signature to be decoded and reports
// whether it was drawn.
func HandleRetrieve(registry Registry, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, wd, ok := loadWidget(w, r, registry)
		if !ok {
			return
		}

		outcome, err := wd.Retrieve(r.Context()).Wait(r.Context())
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "padId": id}).Warn("Client went away during retrieve")
			return
		}

		if outcome == widget.RetrieveApplied {
			notifier.StateChanged(id, wd)
		}
		render.JSON(w, r, RetrieveResponse{Outcome: outcome, State: stateOf(id, wd)})
	}
}

func writeDataURL(w http.ResponseWriter, r *http.Request, dataURL string) {
	mediaType, data, err := raster.DecodeDataURL(dataURL)
	if err != nil {
		renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logrus.WithField("error", err).Error("Failed to write image")
	}
}

// HandleImage returns the surface as currently displayed.
func HandleImage(registry Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, wd, ok := loadWidget(w, r, registry)
		if !ok {
			return
		}
		dataURL, err := wd.Raster()
		if err != nil {
			renderError(w, r, err)
			return
		}
		writeDataURL(w, r, dataURL)
	}
}

// HandlePreview returns the last saved or retrieved snapshot.
func HandlePreview(registry Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, wd, ok := loadWidget(w, r, registry)
		if !ok {
			return
		}
		preview := wd.Preview()
		if preview == "" {
			renderError(w, r, fmt.Errorf("preview: %w", core.ErrNotFound))
			return
		}
		writeDataURL(w, r, preview)
	}
}
