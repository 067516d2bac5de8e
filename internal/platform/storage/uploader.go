package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
)

var (
	// ErrObjectTooLarge is returned when the payload exceeds the configured limit.
	ErrObjectTooLarge = errors.New("storage: object exceeds maximum size")
	// ErrUploadContentType is returned when the payload content type is not allowed.
	ErrUploadContentType = errors.New("storage: upload content type not allowed")
)

// Uploader streams objects into a Cloud Storage bucket with size and
// content-type enforcement applied server side.
type Uploader struct {
	client              *gcs.Client
	bucket              string
	maxBytes            int64
	allowedContentTypes []string
}

// UploaderConfig configures an Uploader.
type UploaderConfig struct {
	Client              *gcs.Client
	Bucket              string
	MaxBytes            int64
	AllowedContentTypes []string
}

// NewUploader constructs an Uploader bound to a single bucket.
func NewUploader(cfg UploaderConfig) (*Uploader, error) {
	if cfg.Client == nil {
		return nil, errors.New("storage: uploader client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errInvalidBucket
	}
	return &Uploader{
		client:              cfg.Client,
		bucket:              strings.TrimSpace(cfg.Bucket),
		maxBytes:            cfg.MaxBytes,
		allowedContentTypes: cfg.AllowedContentTypes,
	}, nil
}

// UploadResult describes a stored object.
type UploadResult struct {
	Bucket string
	Object string
	Size   int64
}

// Upload writes the reader's contents to the bucket under the given object path.
// The write is aborted when the payload exceeds the configured size limit so
// oversized uploads never become visible in the bucket.
func (u *Uploader) Upload(ctx context.Context, object, contentType string, body io.Reader) (UploadResult, error) {
	if u == nil || u.client == nil {
		return UploadResult{}, errors.New("storage: uploader is not initialised")
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return UploadResult{}, errInvalidObject
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return UploadResult{}, errContentTypeMissing
	}
	if len(u.allowedContentTypes) > 0 && !contentTypeAllowed(contentType, u.allowedContentTypes) {
		return UploadResult{}, ErrUploadContentType
	}

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := u.client.Bucket(u.bucket).Object(object).NewWriter(writeCtx)
	writer.ContentType = contentType

	reader := body
	if u.maxBytes > 0 {
		// Read one extra byte so the limit breach is detectable.
		reader = io.LimitReader(body, u.maxBytes+1)
	}

	written, err := io.Copy(writer, reader)
	if err != nil {
		cancel()
		_ = writer.Close()
		return UploadResult{}, fmt.Errorf("storage: upload %s: %w", object, err)
	}
	if u.maxBytes > 0 && written > u.maxBytes {
		// Cancel before Close so the partial object is never finalised.
		cancel()
		_ = writer.Close()
		return UploadResult{}, ErrObjectTooLarge
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("storage: finalise upload %s: %w", object, err)
	}

	return UploadResult{Bucket: u.bucket, Object: object, Size: written}, nil
}

// Delete removes the object from the bucket. Missing objects are not an error.
func (u *Uploader) Delete(ctx context.Context, object string) error {
	if u == nil || u.client == nil {
		return errors.New("storage: uploader is not initialised")
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return errInvalidObject
	}
	err := u.client.Bucket(u.bucket).Object(object).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}
