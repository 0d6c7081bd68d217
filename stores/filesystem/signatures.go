package filesystem

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"signpad-server/core"
	"strings"

	"github.com/sirupsen/logrus"
)

type fsStore struct {
	basePath string
}

// NewSignatureStore creates a filesystem-based store keeping one file per key.
func NewSignatureStore(basePath string) (*fsStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		logrus.WithFields(logrus.Fields{"error": err, "base_path": basePath}).Error("Failed to create base directory")
		return nil, fmt.Errorf("create base directory %s: %w", basePath, err)
	}
	return &fsStore{basePath: basePath}, nil
}

// keys may contain separators (scoped pad keys do), so they are escaped into
// a single path element
func (s *fsStore) path(key string) string {
	name := url.PathEscape(key)
	if strings.Trim(name, ".") == "" {
		name = "%00" + strings.ReplaceAll(name, ".", "%2E")
	}
	return filepath.Join(s.basePath, name)
}

func (s *fsStore) Get(ctx context.Context, key string) (string, error) {
	filePath := s.path(key)
	log := logrus.WithFields(logrus.Fields{"key": key, "file_path": filePath})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("No signature stored under key")
			return "", fmt.Errorf("key %s: %w", key, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to read signature")
		return "", err
	}

	log.Debug("Signature retrieved successfully")
	return string(data), nil
}

// Set writes through a temporary file so a reader never sees a partial value.
func (s *fsStore) Set(ctx context.Context, key, value string) error {
	filePath := s.path(key)
	log := logrus.WithFields(logrus.Fields{
		"key":         key,
		"file_path":   filePath,
		"data_length": len(value),
	})

	tmp, err := os.CreateTemp(s.basePath, ".tmp-*")
	if err != nil {
		log.WithError(err).Error("Failed to create temporary file")
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		log.WithError(err).Error("Failed to write signature")
		return err
	}
	if err := tmp.Close(); err != nil {
		log.WithError(err).Error("Failed to write signature")
		return err
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		log.WithError(err).Error("Failed to store signature")
		return err
	}

	log.Info("Signature stored successfully")
	return nil
}

// Delete removes the file behind key. A missing file is not an error.
func (s *fsStore) Delete(ctx context.Context, key string) error {
	filePath := s.path(key)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		logrus.WithFields(logrus.Fields{"key": key, "file_path": filePath}).WithError(err).Error("Failed to delete signature")
		return err
	}
	logrus.WithField("key", key).Debug("Signature deleted")
	return nil
}
