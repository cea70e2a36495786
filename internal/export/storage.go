package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore publishes rendered artifacts.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

// S3StoreConfig configures an S3-compatible object store (AWS S3 or R2).
type S3StoreConfig struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	PublicBaseURL   string
}

// S3Store uploads export artifacts to S3-compatible object storage.
type S3Store struct {
	client        *s3.Client
	bucketName    string
	publicBaseURL string
}

// NewS3Store creates an object store client. Endpoint is required so the
// store works against R2 and other S3-compatible services.
func NewS3Store(cfg S3StoreConfig) (*S3Store, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &S3Store{
		client:        client,
		bucketName:    cfg.BucketName,
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

// Put uploads the artifact and returns its public URL when a base URL is
// configured, otherwise the object key.
func (s *S3Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key, nil
	}
	return key, nil
}

// ObjectKey builds a stable, collision-free key for one export artifact. The
// leading geohash cell groups nearby map areas under one storage prefix; an
// empty cell drops the segment.
func ObjectKey(cell string, mapAreaID int64, variant string, at time.Time) string {
	stamp := at.UTC().Format("20060102T150405")
	if cell == "" {
		return fmt.Sprintf("exports/%d/%s-%s.png", mapAreaID, stamp, variant)
	}
	return fmt.Sprintf("exports/%s/%d/%s-%s.png", cell, mapAreaID, stamp, variant)
}
