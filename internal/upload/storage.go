package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// Store is the blob storage uploads go to.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
	KeyFromURL(rawURL string) (string, error)
}

type OSSStore struct {
	bucket   *oss.Bucket
	name     string
	endpoint string
}

func NewOSSStore(endpoint, accessKeyID, accessKeySecret, bucketName string) (*OSSStore, error) {
	client, err := oss.New(endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss client: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("oss bucket %s: %w", bucketName, err)
	}

	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return &OSSStore{bucket: bucket, name: bucketName, endpoint: strings.TrimRight(endpoint, "/")}, nil
}

func (s *OSSStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	return s.bucket.PutObject(key, r,
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl("public, max-age=31536000, immutable"),
	)
}

func (s *OSSStore) Delete(ctx context.Context, key string) error {
	err := s.bucket.DeleteObject(key, oss.WithContext(ctx))
	var se oss.ServiceError
	if errors.As(err, &se) && se.StatusCode == 404 {
		return ErrObjectNotFound
	}
	return err
}

func (s *OSSStore) URL(key string) string {
	return fmt.Sprintf("https://%s.%s/%s", s.name, s.endpoint, key)
}

// KeyFromURL accepts URLs of this bucket only.
func (s *OSSStore) KeyFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", ErrInvalidURL
	}
	if u.Host != s.name+"."+s.endpoint {
		return "", ErrInvalidURL
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", ErrInvalidURL
	}
	return key, nil
}
