// Package pads keeps the live signature widgets, one per pad, each with its
// own saved signature slot on the shared store.
package pads

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"signpad-server/core"
	"signpad-server/stores"
	"signpad-server/stores/memory"
	"signpad-server/widget"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type Registry struct {
	mu      sync.Mutex
	widgets map[string]*widget.Widget
	store   core.SignatureStore
	index   core.PadRegistry
	opts    []widget.Option
}

// NewRegistry creates a registry over store. Pad bookkeeping goes to index;
// when index is nil an in-memory index is used, so pad listings do not
// survive a restart but saved signatures still do.
func NewRegistry(store core.SignatureStore, index core.PadRegistry, opts ...widget.Option) *Registry {
	if index == nil {
		index = memory.NewSignatureStore()
	}
	return &Registry{
		widgets: make(map[string]*widget.Widget),
		store:   store,
		index:   index,
		opts:    opts,
	}
}

// Create opens a new pad with a fresh ULID.
func (r *Registry) Create(ctx context.Context) (string, *widget.Widget, error) {
	id := ulid.Make().String()
	w, err := r.open(ctx, id)
	if err != nil {
		return "", nil, err
	}
	logrus.WithField("padId", id).Info("Pad created")
	return id, w, nil
}

// Get returns the widget of a pad. A pad that is not live but is known to
// the index, or has a saved signature, is reopened with a fresh surface.
func (r *Registry) Get(ctx context.Context, id string) (*widget.Widget, error) {
	r.mu.Lock()
	w, ok := r.widgets[id]
	r.mu.Unlock()
	if ok {
		return w, nil
	}

	if _, err := ulid.ParseStrict(id); err != nil {
		return nil, fmt.Errorf("pad %s: %w", id, core.ErrNotFound)
	}
	known, err := r.known(ctx, id)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, fmt.Errorf("pad %s: %w", id, core.ErrNotFound)
	}

	logrus.WithField("padId", id).Debug("Reopening pad")
	return r.open(ctx, id)
}

func (r *Registry) known(ctx context.Context, id string) (bool, error) {
	list, err := r.index.ListPads(ctx)
	if err != nil {
		return false, fmt.Errorf("list pads: %w", err)
	}
	for _, p := range list {
		if p.ID == id {
			return true, nil
		}
	}

	_, err = r.store.Get(ctx, core.PadKeyPrefix(id)+core.SavedSignatureKey)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, core.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (r *Registry) open(ctx context.Context, id string) (*widget.Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.widgets[id]; ok {
		return w, nil
	}

	opts := append([]widget.Option{
		widget.WithLogger(logrus.WithField("padId", id)),
	}, r.opts...)
	w, err := widget.New(stores.Scoped(r.store, core.PadKeyPrefix(id)), nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("open pad %s: %w", id, err)
	}
	if err := r.index.TouchPad(ctx, id); err != nil {
		return nil, fmt.Errorf("touch pad %s: %w", id, err)
	}
	r.widgets[id] = w
	return w, nil
}

// TouchPad records activity on a pad.
func (r *Registry) TouchPad(ctx context.Context, id string) error {
	return r.index.TouchPad(ctx, id)
}

// ListPads lists known pads, most recently active first.
func (r *Registry) ListPads(ctx context.Context) ([]core.Pad, error) {
	return r.index.ListPads(ctx)
}

// Delete drops the live widget, the pad's index entry and its saved
// signature, so the pad cannot be reopened afterwards.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.widgets, id)
	r.mu.Unlock()

	if err := r.index.DeletePad(ctx, id); err != nil {
		return fmt.Errorf("delete pad %s: %w", id, err)
	}
	if d, ok := r.store.(core.SignatureDeleter); ok {
		if err := d.Delete(ctx, core.PadKeyPrefix(id)+core.SavedSignatureKey); err != nil {
			return fmt.Errorf("delete pad %s signature: %w", id, err)
		}
	}
	logrus.WithField("padId", id).Info("Pad deleted")
	return nil
}
