package memory

import (
	"context"
	"fmt"
	"signpad-server/core"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type signatureStore struct {
	mu     sync.RWMutex
	values map[string]string
	pads   map[string]int64
}

func NewSignatureStore() *signatureStore {
	return &signatureStore{
		values: make(map[string]string),
		pads:   make(map[string]int64),
	}
}

func (s *signatureStore) Get(ctx context.Context, key string) (string, error) {
	log := logrus.WithField("key", key)

	s.mu.RLock()
	value, ok := s.values[key]
	s.mu.RUnlock()

	if ok {
		log.Debug("Signature retrieved successfully")
		return value, nil
	}

	log.Debug("No signature stored under key")
	return "", fmt.Errorf("key %s: %w", key, core.ErrNotFound)
}

func (s *signatureStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"key":         key,
		"data_length": len(value),
	}).Info("Signature stored successfully")

	return nil
}

func (s *signatureStore) TouchPad(ctx context.Context, padID string) error {
	if padID == "" {
		return fmt.Errorf("pad id is required")
	}

	s.mu.Lock()
	s.pads[padID] = time.Now().UnixMilli()
	s.mu.Unlock()

	return nil
}

func (s *signatureStore) ListPads(ctx context.Context) ([]core.Pad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pads := make([]core.Pad, 0, len(s.pads))
	for id, last := range s.pads {
		pads = append(pads, core.Pad{ID: id, LastActive: last})
	}

	sort.Slice(pads, func(i, j int) bool {
		if pads[i].LastActive == pads[j].LastActive {
			return pads[i].ID < pads[j].ID
		}
		return pads[i].LastActive > pads[j].LastActive
	})

	return pads, nil
}

func (s *signatureStore) DeletePad(ctx context.Context, padID string) error {
	if padID == "" {
		return fmt.Errorf("pad id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pads, padID)
	prefix := core.PadKeyPrefix(padID)
	for key := range s.values {
		if strings.HasPrefix(key, prefix) {
			delete(s.values, key)
		}
	}
	return nil
}
