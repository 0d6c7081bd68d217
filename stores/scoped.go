package stores

import (
	"context"
	"signpad-server/core"
)

type scopedStore struct {
	inner  core.SignatureStore
	prefix string
}

// Scoped wraps a store so every key is namespaced under prefix. Pads use it
// to get their own saved signature slot on a shared backend.
func Scoped(inner core.SignatureStore, prefix string) core.SignatureStore {
	return &scopedStore{inner: inner, prefix: prefix}
}

func (s *scopedStore) Get(ctx context.Context, key string) (string, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scopedStore) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}
