package redis

import (
	"context"
	"errors"
	"fmt"
	"signpad-server/core"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type redisStore struct {
	client goredis.UniversalClient
}

// NewSignatureStore connects to addr and pings it once.
func NewSignatureStore(ctx context.Context, addr, password string, db int) (*redisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &redisStore{client: client}, nil
}

func NewSignatureStoreWithClient(client goredis.UniversalClient) *redisStore {
	return &redisStore{client: client}
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	log := logrus.WithField("key", key)

	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			log.Debug("No signature stored under key")
			return "", fmt.Errorf("key %s: %w", key, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve signature")
		return "", err
	}

	log.Debug("Signature retrieved successfully")
	return value, nil
}

// Set stores value without expiry.
func (s *redisStore) Set(ctx context.Context, key, value string) error {
	log := logrus.WithFields(logrus.Fields{
		"key":         key,
		"data_length": len(value),
	})

	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		log.WithError(err).Error("Failed to store signature")
		return err
	}

	log.Info("Signature stored successfully")
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		logrus.WithField("key", key).WithError(err).Error("Failed to delete signature")
		return err
	}
	logrus.WithField("key", key).Debug("Signature deleted")
	return nil
}
