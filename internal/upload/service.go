package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"swiftfit/internal/api"
	"swiftfit/internal/logger"
	"swiftfit/internal/metrics"

	"github.com/google/uuid"
)

const (
	MaxFileSize   = 5 << 20
	DefaultFolder = "uploads"
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

var (
	ErrFileRequired         = api.Validation("FILE_REQUIRED", "multipart field 'file' is required")
	ErrFileTooLarge         = api.Validation("FILE_TOO_LARGE", "file exceeds the 5MB limit")
	ErrUnsupportedType      = api.Validation("UNSUPPORTED_FILE_TYPE", "only jpeg, png, webp and gif images are accepted")
	ErrKeyRequired          = api.Validation("KEY_REQUIRED", "url or key is required")
	ErrInvalidURL           = api.Validation("INVALID_URL", "url does not point into the upload bucket")
	ErrInvalidFolder        = api.Validation("INVALID_FOLDER", "folder may only contain letters, digits, '-', '_' and '/'")
	ErrObjectNotFound       = api.NotFound("OBJECT_NOT_FOUND", "file not found")
	ErrStorageNotConfigured = api.Upstream("STORAGE_DISABLED", "file storage is not configured")
)

// File is an incoming upload. Size and ContentType are what the client
// declared; both are re-checked against the actual bytes.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Result struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

type Service interface {
	Upload(ctx context.Context, f File, folder string) (*Result, error)
	Delete(ctx context.Context, rawURL, key string) error
}

type service struct {
	store Store
}

// NewService returns an upload service. A nil store makes every call fail
// with ErrStorageNotConfigured.
func NewService(store Store) Service {
	return &service{store: store}
}

func (s *service) Upload(ctx context.Context, f File, folder string) (*Result, error) {
	if s.store == nil {
		return nil, ErrStorageNotConfigured
	}

	data, contentType, err := validate(f)
	if err != nil {
		metrics.RecordUpload("rejected")
		return nil, err
	}

	dir, err := cleanFolder(folder)
	if err != nil {
		metrics.RecordUpload("rejected")
		return nil, err
	}

	key := dir + "/" + uuid.NewString() + extension(f.Name, contentType)
	if err := s.store.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		metrics.RecordUpload("error")
		return nil, fmt.Errorf("store %s: %w", key, err)
	}
	metrics.RecordUpload("success")

	logger.Info("file uploaded", "key", key, "size", len(data), "content_type", contentType)
	return &Result{URL: s.store.URL(key), Key: key, ContentType: contentType, Size: len(data)}, nil
}

// validate reads the body and checks both the declared and the sniffed type.
// It returns the bytes and the content type to store them with.
func validate(f File) ([]byte, string, error) {
	if f.Size > MaxFileSize {
		return nil, "", ErrFileTooLarge
	}
	declared := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if _, ok := allowedTypes[declared]; !ok {
		return nil, "", ErrUnsupportedType
	}

	data, err := io.ReadAll(io.LimitReader(f.Body, MaxFileSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, "", ErrFileTooLarge
	}

	sniffed := http.DetectContentType(data)
	if _, ok := allowedTypes[sniffed]; !ok {
		return nil, "", ErrUnsupportedType
	}
	return data, sniffed, nil
}

func extension(name, contentType string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return ext
	}
	return allowedTypes[contentType]
}

func cleanFolder(folder string) (string, error) {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return DefaultFolder, nil
	}
	for _, r := range folder {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '/'
		if !ok {
			return "", ErrInvalidFolder
		}
	}
	return path.Clean(folder), nil
}

func (s *service) Delete(ctx context.Context, rawURL, key string) error {
	if s.store == nil {
		return ErrStorageNotConfigured
	}

	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" && strings.TrimSpace(rawURL) != "" {
		var err error
		if key, err = s.store.KeyFromURL(strings.TrimSpace(rawURL)); err != nil {
			return err
		}
	}
	if key == "" {
		return ErrKeyRequired
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	logger.Info("file deleted", "key", key)
	return nil
}
