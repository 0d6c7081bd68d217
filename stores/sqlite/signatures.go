package sqlite

import (
	"context"
	"fmt"
	"signpad-server/core"
	"time"

	"database/sql"

	"github.com/sirupsen/logrus"
)

type signatureStore struct {
	db *sql.DB
}

func NewSignatureStore(dataSourceName string) (*signatureStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Create signatures table
	sts := `CREATE TABLE IF NOT EXISTS signatures (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err = db.Exec(sts); err != nil {
		db.Close()
		return nil, fmt.Errorf("create signatures table: %w", err)
	}

	// Create pads table
	padsTable := `CREATE TABLE IF NOT EXISTS pads (
		id TEXT PRIMARY KEY,
		last_active INTEGER NOT NULL
	);`
	if _, err = db.Exec(padsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create pads table: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"driver":         driverName,
		"dataSourceName": dataSourceName,
	}).Debug("SQLite signature store ready")

	return &signatureStore{db}, nil
}

func (s *signatureStore) Close() error {
	return s.db.Close()
}

func (s *signatureStore) Get(ctx context.Context, key string) (string, error) {
	log := logrus.WithField("key", key)
	log.Debug("Retrieving signature by key")

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM signatures WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Debug("No signature stored under key")
			return "", fmt.Errorf("key %s: %w", key, core.ErrNotFound)
		}
		log.WithField("error", err).Error("Failed to retrieve signature")
		return "", err
	}

	log.Debug("Signature retrieved successfully")
	return value, nil
}

func (s *signatureStore) Set(ctx context.Context, key, value string) error {
	log := logrus.WithFields(logrus.Fields{
		"key":         key,
		"data_length": len(value),
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO signatures (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		key, value, time.Now().UnixMilli())
	if err != nil {
		log.WithField("error", err).Error("Failed to store signature")
		return err
	}

	log.Info("Signature stored successfully")
	return nil
}

// TouchPad records activity on a pad
func (s *signatureStore) TouchPad(ctx context.Context, padID string) error {
	if padID == "" {
		return fmt.Errorf("pad id is required")
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO pads (id, last_active) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET last_active = excluded.last_active",
		padID, time.Now().UnixMilli())
	if err != nil {
		logrus.WithFields(logrus.Fields{"pad_id": padID, "error": err}).Error("Failed to touch pad")
		return err
	}
	return nil
}

// ListPads lists known pads, most recently active first
func (s *signatureStore) ListPads(ctx context.Context) ([]core.Pad, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, last_active FROM pads ORDER BY last_active DESC, id ASC")
	if err != nil {
		logrus.WithField("error", err).Error("Failed to list pads")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("Failed to close pad rows")
		}
	}()

	var pads []core.Pad
	for rows.Next() {
		var pad core.Pad
		if err := rows.Scan(&pad.ID, &pad.LastActive); err != nil {
			logrus.WithField("error", err).Error("Failed to scan pad")
			continue
		}
		pads = append(pads, pad)
	}
	return pads, rows.Err()
}

// DeletePad forgets a pad and every value stored under its key prefix
func (s *signatureStore) DeletePad(ctx context.Context, padID string) error {
	if padID == "" {
		return fmt.Errorf("pad id is required")
	}
	log := logrus.WithField("pad_id", padID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM pads WHERE id = ?", padID); err != nil {
		log.WithField("error", err).Error("Failed to delete pad")
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM signatures WHERE substr(key, 1, ?) = ?", len(core.PadKeyPrefix(padID)), core.PadKeyPrefix(padID)); err != nil {
		log.WithField("error", err).Error("Failed to delete pad signatures")
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log.Info("Pad deleted successfully")
	return nil
}
