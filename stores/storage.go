package stores

import (
	"context"
	"fmt"
	"signpad-server/config"
	"signpad-server/core"
	"signpad-server/stores/filesystem"
	"signpad-server/stores/memory"
	"signpad-server/stores/redis"
	"signpad-server/stores/s3"
	"signpad-server/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// GetStore builds the signature store selected by cfg.Type. Unknown or empty
// types fall back to the in-memory store.
func GetStore(ctx context.Context, cfg config.StorageConfig) (core.SignatureStore, error) {
	var store core.SignatureStore

	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	switch cfg.Type {
	case "filesystem":
		storageField["basePath"] = cfg.LocalPath
		s, err := filesystem.NewSignatureStore(cfg.LocalPath)
		if err != nil {
			return nil, err
		}
		store = s
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		storageField["cgo"] = sqlite.CGOEnabled
		s, err := sqlite.NewSignatureStore(cfg.DataSourceName)
		if err != nil {
			return nil, err
		}
		store = s
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("storage type s3 requires a bucket name")
		}
		storageField["bucket"] = cfg.S3Bucket
		storageField["prefix"] = cfg.S3Prefix
		s, err := s3.NewSignatureStore(ctx, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, err
		}
		store = s
	case "redis":
		storageField["addr"] = cfg.RedisAddr
		storageField["db"] = cfg.RedisDB
		s, err := redis.NewSignatureStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		store = memory.NewSignatureStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}
