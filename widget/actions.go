package widget

import (
	"context"
	"errors"
	"fmt"

	"signpad-server/core"
	"signpad-server/raster"

	"github.com/sirupsen/logrus"
)

type RetrieveOutcome string

const (
	RetrieveApplied    RetrieveOutcome = "applied"
	RetrieveMissing    RetrieveOutcome = "missing"
	RetrieveCorrupt    RetrieveOutcome = "corrupt"
	RetrieveSuperseded RetrieveOutcome = "superseded"
)

// Retrieval is a pending retrieve. It completes once the stored snapshot has
// been decoded and either drawn or discarded.
type Retrieval struct {
	done    chan struct{}
	outcome RetrieveOutcome
}

func newRetrieval() *Retrieval {
	return &Retrieval{done: make(chan struct{})}
}

func completedRetrieval(outcome RetrieveOutcome) *Retrieval {
	r := newRetrieval()
	r.finish(outcome)
	return r
}

func (r *Retrieval) finish(outcome RetrieveOutcome) {
	r.outcome = outcome
	close(r.done)
}

// Wait blocks until the retrieval completes or ctx is done. Abandoning the
// wait does not cancel the retrieval.
func (r *Retrieval) Wait(ctx context.Context) (RetrieveOutcome, error) {
	select {
	case <-r.done:
		return r.outcome, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Clear erases all strokes, repaints the configured background and drops the
// preview. The persisted signature is left alone.
func (w *Widget) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	bg, _ := core.ParseColor(w.config.BackgroundColor)

	w.generation++
	w.surface.Clear()
	w.surface.Fill(bg)
	w.preview = ""
}

// Save snapshots the surface as displayed, shows it as the preview, persists
// it under the saved signature key and downloads it as signature.png.
// A persistence failure is reported in the result but does not stop the
// download.
func (w *Widget) Save(ctx context.Context) (SaveResult, error) {
	return w.SaveTo(ctx, w.downloader)
}

// SaveTo is Save with the download handed to d instead of the widget's own
// downloader. A nil d skips the download.
func (w *Widget) SaveTo(ctx context.Context, d core.Downloader) (SaveResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	snapshot, err := w.surface.ExportRaster()
	if err != nil {
		return SaveResult{}, fmt.Errorf("export raster: %w", err)
	}
	w.preview = snapshot
	result := SaveResult{Snapshot: snapshot}

	if err := w.store.Set(ctx, core.SavedSignatureKey, snapshot); err != nil {
		w.log.WithFields(logrus.Fields{
			"error": err,
			"key":   core.SavedSignatureKey,
		}).Warn("Failed to persist signature, continuing with download")
		result.PersistErr = err
	}

	_, data, err := raster.DecodeDataURL(snapshot)
	if err != nil {
		return result, fmt.Errorf("decode snapshot: %w", err)
	}
	if d != nil {
		if err := d.Download(ctx, core.DownloadFilename, core.DownloadContentType, data); err != nil {
			return result, fmt.Errorf("download: %w", err)
		}
	}

	w.log.WithField("data_length", len(data)).Info("Signature saved")
	return result, nil
}

// Retrieve loads the persisted signature. With nothing stored (or an
// unreadable store) it completes immediately as RetrieveMissing and changes
// nothing. Otherwise the snapshot is decoded in the background; when the
// decode finishes the surface is filled with the current background, the
// image is copied over it at the origin and the preview is set. If any surface
// mutation happened in between, the result is discarded as
// RetrieveSuperseded.
func (w *Widget) Retrieve(ctx context.Context) *Retrieval {
	saved, err := w.store.Get(ctx, core.SavedSignatureKey)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			w.log.WithField("error", err).Warn("Failed to read saved signature")
		}
		return completedRetrieval(RetrieveMissing)
	}
	if saved == "" {
		return completedRetrieval(RetrieveMissing)
	}

	w.mu.Lock()
	w.generation++
	generation := w.generation
	decode := w.decode
	w.mu.Unlock()

	r := newRetrieval()
	go func() {
		img, err := decode(saved)

		w.mu.Lock()
		defer w.mu.Unlock()

		if err != nil {
			w.log.WithField("error", err).Warn("Saved signature could not be decoded")
			r.finish(RetrieveCorrupt)
			return
		}
		if w.generation != generation {
			w.log.Debug("Retrieve superseded by a later change, discarding")
			r.finish(RetrieveSuperseded)
			return
		}

		bg, _ := core.ParseColor(w.config.BackgroundColor)
		w.surface.Fill(bg)
		w.surface.DrawImageAt(img, 0, 0)
		w.preview = saved
		r.finish(RetrieveApplied)
	}()
	return r
}
