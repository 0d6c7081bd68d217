package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"signpad-server/core"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// ObjectAPI is the part of the S3 client the store uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Store struct {
	client ObjectAPI
	bucket string
	prefix string
}

// NewSignatureStore creates an S3-backed store using the default AWS
// credential chain.
func NewSignatureStore(ctx context.Context, bucket, prefix string) (*s3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSignatureStoreWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func NewSignatureStoreWithClient(client ObjectAPI, bucket, prefix string) *s3Store {
	return &s3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *s3Store) objectKey(key string) string {
	return s.prefix + strings.TrimPrefix(key, "/")
}

func (s *s3Store) Get(ctx context.Context, key string) (string, error) {
	objectKey := s.objectKey(key)
	log := logrus.WithFields(logrus.Fields{"key": key, "bucket": s.bucket, "object_key": objectKey})

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Debug("No signature stored under key")
			return "", fmt.Errorf("key %s: %w", key, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to get signature object")
		return "", fmt.Errorf("get signature %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read signature %s: %w", key, err)
	}

	log.Debug("Signature retrieved successfully")
	return string(data), nil
}

func (s *s3Store) Set(ctx context.Context, key, value string) error {
	objectKey := s.objectKey(key)
	log := logrus.WithFields(logrus.Fields{
		"key":         key,
		"bucket":      s.bucket,
		"object_key":  objectKey,
		"data_length": len(value),
	})

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        strings.NewReader(value),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		log.WithError(err).Error("Failed to put signature object")
		return fmt.Errorf("put signature %s: %w", key, err)
	}

	log.Info("Signature stored successfully")
	return nil
}

// Delete removes the object behind key. S3 deletes are idempotent, so a
// missing object is not an error.
func (s *s3Store) Delete(ctx context.Context, key string) error {
	objectKey := s.objectKey(key)
	log := logrus.WithFields(logrus.Fields{"key": key, "bucket": s.bucket, "object_key": objectKey})

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		log.WithError(err).Error("Failed to delete signature object")
		return fmt.Errorf("delete signature %s: %w", key, err)
	}

	log.Debug("Signature deleted")
	return nil
}
