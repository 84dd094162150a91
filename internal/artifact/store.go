// Package artifact uploads files produced during task execution to
// S3-compatible object storage. MinIO deployments are covered through the
// custom endpoint and path-style addressing.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// Uploader is the narrow interface consumed by the worker runner.
type Uploader interface {
	// Upload stores a local file and returns the object path it was
	// written to.
	Upload(ctx context.Context, localPath string) (string, error)
}

// Options configures the artifact store connection.
type Options struct {
	// Endpoint is the object storage endpoint, e.g. "http://minio:9000".
	Endpoint string
	// AccessKey and SecretKey authenticate against the endpoint.
	AccessKey string
	SecretKey string
	// Bucket is the bucket artifacts are written to.
	Bucket string
	// Region is passed through to the SDK; object-storage deployments
	// usually accept any value here.
	Region string
	// OwnerID is the worker identity used to namespace object paths.
	OwnerID string
}

// Store uploads artifacts to a single bucket, namespaced by worker identity.
type Store struct {
	client  *s3.Client
	bucket  string
	ownerID string
}

// New creates a Store from the given options.
func New(ctx context.Context, opts Options) (*Store, error) {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load object storage config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		// MinIO and most self-hosted deployments require path-style URLs.
		o.UsePathStyle = true
	})

	return &Store{
		client:  client,
		bucket:  opts.Bucket,
		ownerID: opts.OwnerID,
	}, nil
}

// EnsureBucket creates the artifact bucket if it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload stores a local file under {owner}/artifacts/{uuid}{ext} and returns
// the object path. Missing or empty files are rejected; callers wrap each
// upload individually so one failure never blocks the rest.
func (s *Store) Upload(ctx context.Context, localPath string) (string, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("artifact %s is empty", filepath.Base(localPath))
	}

	objectPath := ObjectPath(s.ownerID, localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectPath),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return "", fmt.Errorf("upload artifact %s: %w", filepath.Base(localPath), err)
	}

	return objectPath, nil
}

// ObjectPath builds the namespaced object path for a local file:
// {normalized_owner}/artifacts/{uuid}{ext}.
func ObjectPath(ownerID, localPath string) string {
	ext := filepath.Ext(localPath)
	if ext == "" {
		// Artifacts are overwhelmingly screenshots.
		ext = ".png"
	}
	return fmt.Sprintf("%s/artifacts/%s%s", NormalizeOwnerID(ownerID), uuid.New().String(), ext)
}

// Verify Store implements Uploader at compile time.
var _ Uploader = (*Store)(nil)
