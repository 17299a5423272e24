package infra

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// DefaultImageFolder is the folder imported panels are written to.
const DefaultImageFolder = "panels"

// ErrForeignURL is returned when a URL does not point into the configured bucket.
var ErrForeignURL = errors.New("url does not belong to bucket")

// ObjectStore uploads and deletes panel images in a B2 bucket through its
// S3-compatible API. Public URLs use B2's friendly format:
// https://<host>/file/<bucket>/<folder>/<uuid>.png
type ObjectStore struct {
	client     *s3.Client
	bucket     string
	publicHost string
}

// NewObjectStore builds an S3 client for the configured B2 endpoint.
func NewObjectStore(ctx context.Context, cfg *Config) (*ObjectStore, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.B2KeyID, cfg.B2ApplicationKey, "")),
		config.WithRegion(cfg.B2Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load object store config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.B2Endpoint)
		o.UsePathStyle = true
	})
	return NewObjectStoreWithClient(client, cfg.B2BucketName, cfg.B2PublicHost), nil
}

// NewObjectStoreWithClient wraps an existing S3 client.
func NewObjectStoreWithClient(client *s3.Client, bucket, publicHost string) *ObjectStore {
	return &ObjectStore{client: client, bucket: bucket, publicHost: publicHost}
}

// Upload stores PNG bytes under folder/<uuid>.png and returns the public URL.
func (s *ObjectStore) Upload(ctx context.Context, data []byte, folder string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("upload: empty payload")
	}
	folder = strings.Trim(folder, "/")
	if folder == "" {
		folder = DefaultImageFolder
	}
	key := fmt.Sprintf("%s/%s.png", folder, uuid.New())

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// Delete removes the object behind a public URL.
func (s *ObjectStore) Delete(ctx context.Context, publicURL string) error {
	key, err := s.KeyFromURL(publicURL)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// Exists reports whether the object behind a public URL is still stored.
func (s *ObjectStore) Exists(ctx context.Context, publicURL string) (bool, error) {
	key, err := s.KeyFromURL(publicURL)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("head object %s: %w", key, err)
}

// PublicURL returns the friendly download URL for a key.
func (s *ObjectStore) PublicURL(key string) string {
	return fmt.Sprintf("https://%s/file/%s/%s", s.publicHost, s.bucket, key)
}

// KeyFromURL extracts the object key from a public URL of this bucket. The
// host must be the configured public host.
func (s *ObjectStore) KeyFromURL(publicURL string) (string, error) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if !strings.EqualFold(u.Host, s.publicHost) {
		return "", fmt.Errorf("%w: %s", ErrForeignURL, publicURL)
	}
	prefix := "/file/" + s.bucket + "/"
	if !strings.HasPrefix(u.Path, prefix) || len(u.Path) == len(prefix) {
		return "", fmt.Errorf("%w: %s", ErrForeignURL, publicURL)
	}
	return strings.TrimPrefix(u.Path, prefix), nil
}

// DecodeBase64Image strips an optional "data:...;base64," prefix and decodes the rest.
func DecodeBase64Image(payload string) ([]byte, error) {
	if i := strings.Index(payload, "base64,"); i >= 0 {
		payload = payload[i+len("base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return data, nil
}
