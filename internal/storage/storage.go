package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/therealutkarshpriyadarshi/examprep/internal/config"
	"github.com/therealutkarshpriyadarshi/examprep/internal/logging"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// Storage provides object storage operations
type Storage struct {
	client     *minio.Client
	bucketName string
	urlExpiry  time.Duration
	logger     *logging.Logger
}

// New creates a new storage client
func New(cfg config.StorageConfig, logger *logging.Logger) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	if logger == nil {
		logger = logging.Nop()
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
		urlExpiry:  expiry,
		logger:     logger,
	}, nil
}

// Upload uploads an object to storage
func (s *Storage) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	start := time.Now()
	_, err := s.client.PutObject(ctx, s.bucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	s.logger.LogStorageOperation("upload", s.bucketName, objectName, size, time.Since(start), err)
	if err != nil {
		metrics.RecordStorageOperation("upload", "error", 0)
		return fmt.Errorf("failed to upload object: %w", err)
	}

	metrics.RecordStorageOperation("upload", "success", size)
	return nil
}

// Delete deletes an object from storage
func (s *Storage) Delete(ctx context.Context, objectName string) error {
	start := time.Now()
	err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{})
	s.logger.LogStorageOperation("delete", s.bucketName, objectName, 0, time.Since(start), err)
	if err != nil {
		metrics.RecordStorageOperation("delete", "error", 0)
		return fmt.Errorf("failed to delete object: %w", err)
	}

	metrics.RecordStorageOperation("delete", "success", 0)
	return nil
}

// GetURL returns a presigned URL for an object
func (s *Storage) GetURL(ctx context.Context, objectName string) (string, error) {
	start := time.Now()
	url, err := s.client.PresignedGetObject(ctx, s.bucketName, objectName, s.urlExpiry, nil)
	s.logger.LogStorageOperation("presign", s.bucketName, objectName, 0, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("failed to generate URL: %w", err)
	}

	return url.String(), nil
}

// List lists objects with a prefix
func (s *Storage) List(ctx context.Context, prefix string) ([]minio.ObjectInfo, error) {
	var objects []minio.ObjectInfo

	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		objects = append(objects, object)
	}

	return objects, nil
}

// StoreDocument archives a user's uploaded document and returns its record with a
// presigned download URL
func (s *Storage) StoreDocument(ctx context.Context, userID, filename string, reader io.Reader, size int64) (*models.Document, error) {
	key := DocumentKey(userID, uuid.New().String(), filename)
	contentType := getContentType(filename)

	if err := s.Upload(ctx, key, reader, size, contentType); err != nil {
		return nil, err
	}

	url, err := s.GetURL(ctx, key)
	if err != nil {
		return nil, err
	}

	return &models.Document{
		Key:         key,
		Filename:    filepath.Base(filename),
		Size:        size,
		URL:         url,
		UserID:      userID,
		UploadedAt:  time.Now(),
		ContentType: contentType,
	}, nil
}

// StoreRenderedTest uploads a rendered practice test PDF and returns a presigned URL
func (s *Storage) StoreRenderedTest(ctx context.Context, userID string, pdf []byte) (key, url string, err error) {
	key = RenderedTestKey(userID, uuid.New().String())

	if err := s.Upload(ctx, key, bytes.NewReader(pdf), int64(len(pdf)), "application/pdf"); err != nil {
		return "", "", err
	}

	url, err = s.GetURL(ctx, key)
	if err != nil {
		return "", "", err
	}

	return key, url, nil
}

// ListDocuments returns the documents archived for userID with fresh download URLs
func (s *Storage) ListDocuments(ctx context.Context, userID string) ([]*models.Document, error) {
	objects, err := s.List(ctx, documentPrefix(userID))
	if err != nil {
		return nil, err
	}

	docs := make([]*models.Document, 0, len(objects))
	for _, obj := range objects {
		url, err := s.GetURL(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		docs = append(docs, &models.Document{
			Key:         obj.Key,
			Filename:    path.Base(obj.Key),
			Size:        obj.Size,
			URL:         url,
			UserID:      userID,
			UploadedAt:  obj.LastModified,
			ContentType: getContentType(obj.Key),
		})
	}

	return docs, nil
}

// DeleteDocument removes one of userID's documents. name is the last element of its key.
func (s *Storage) DeleteDocument(ctx context.Context, userID, name string) error {
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: invalid document name %q", models.ErrValidation, name)
	}
	return s.Delete(ctx, path.Join(documentPrefix(userID), name))
}

func documentPrefix(userID string) string {
	return "documents/" + userID + "/"
}

// DocumentKey returns the object name of an uploaded document
func DocumentKey(userID, id, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".pdf"
	}
	return path.Join("documents", userID, id+ext)
}

// RenderedTestKey returns the object name of a rendered practice test
func RenderedTestKey(userID, id string) string {
	return path.Join("tests", userID, id+".pdf")
}

// getContentType returns the content type based on file extension
func getContentType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".txt":
		return "text/plain"
	case ".html":
		return "text/html"
	default:
		return "application/octet-stream"
	}
}
