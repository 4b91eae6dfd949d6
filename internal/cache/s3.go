package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/temirov/ingest/internal/fingerprint"
)

const (
	defaultS3Region  = "us-east-1"
	s3KeyNamespace   = "ingest"
	blobContentType  = "text/plain; charset=utf-8"
	noSuchKeyCode    = "NoSuchKey"
	noSuchBucketCode = "NoSuchBucket"
)

// S3Config describes an S3 compatible object store.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix namespaces keys inside a shared bucket.
	Prefix string
}

// S3Backend stores blobs at [prefix/]ingest/{fingerprint[0:2]}/{fingerprint}.digest.
type S3Backend struct {
	client     *minio.Client
	bucketName string
	region     string
	prefix     string

	bucketMutex sync.Mutex
	bucketReady bool
}

// NewS3Backend validates cfg and creates the client. No request is sent until the
// first Get or Put.
func NewS3Backend(cfg S3Config) (*S3Backend, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultS3Region
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Backend{
		client:     client,
		bucketName: bucket,
		region:     region,
		prefix:     strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

// Name identifies the backend.
func (backend *S3Backend) Name() string { return "s3" }

// ensureBucket creates the bucket on first use. A failed attempt is retried by the next call.
func (backend *S3Backend) ensureBucket(ctx context.Context) error {
	backend.bucketMutex.Lock()
	defer backend.bucketMutex.Unlock()
	if backend.bucketReady {
		return nil
	}
	exists, err := backend.client.BucketExists(ctx, backend.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		if err := backend.client.MakeBucket(ctx, backend.bucketName, minio.MakeBucketOptions{Region: backend.region}); err != nil {
			return err
		}
	}
	backend.bucketReady = true
	return nil
}

// Get downloads the blob for key. A missing object or bucket is a miss.
func (backend *S3Backend) Get(ctx context.Context, key fingerprint.Fingerprint) (*Entry, error) {
	if err := backend.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	object, err := backend.client.GetObject(ctx, backend.bucketName, backend.ObjectKey(key), minio.GetObjectOptions{})
	if err != nil {
		if isMissingObject(err) {
			return nil, nil
		}
		return nil, err
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if isMissingObject(err) {
			return nil, nil
		}
		return nil, err
	}
	return DecodeEntry(key, data)
}

// Put uploads the blob for key.
func (backend *S3Backend) Put(ctx context.Context, key fingerprint.Fingerprint, entry Entry) error {
	if err := backend.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	blob := EncodeEntry(key, entry)
	_, err := backend.client.PutObject(ctx, backend.bucketName, backend.ObjectKey(key), bytes.NewReader(blob), int64(len(blob)), minio.PutObjectOptions{
		ContentType: blobContentType,
	})
	return err
}

// ObjectKey returns the object name of key's blob.
func (backend *S3Backend) ObjectKey(key fingerprint.Fingerprint) string {
	objectName := path.Join(s3KeyNamespace, key.Shard(), key.String()+blobExtension)
	if backend.prefix == "" {
		return objectName
	}
	return backend.prefix + "/" + objectName
}

func isMissingObject(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == noSuchKeyCode || code == noSuchBucketCode
}
