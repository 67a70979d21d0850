// Package storage provides the object storage abstraction for photo evidence
// and signature images.
//
// Two implementations exist:
// - LocalStorage: filesystem storage for development
// - S3Storage: any S3-compatible bucket (AWS S3, Cloudflare R2, MinIO)
//
// When an upload fails the submission pipeline does not discard the image:
// the original data is retained inline on the answer and uploaded by a later
// sync pass.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the interface for file storage operations.
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at the specified key with the given options.
	// Returns ErrKeyExists if the key is taken and overwrite is disabled.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the data at the specified key. The caller must close
	// the returned reader. Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the specified key. Idempotent.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for accessing the object: permanent for public
	// objects, presigned for private ones.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists checks if an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType specifies the MIME type. If empty it is detected from
	// the key or content.
	ContentType string

	// MaxSize caps the object size in bytes; 0 means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool

	// Public marks the object publicly accessible where the backend
	// supports ACLs.
	Public bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	BasePath string

	// BaseURL is the public URL prefix for accessing files.
	BaseURL string
}

// S3Config holds configuration for an S3-compatible bucket.
type S3Config struct {
	// Endpoint overrides the service URL for R2 or MinIO deployments.
	// Leave empty for AWS S3.
	Endpoint string

	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string

	// PublicURL is the public URL of the bucket (custom domain). If
	// empty, presigned URLs are used for all access.
	PublicURL string
}

// Provider constants for configuration.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// =============================================================================
// Key Generation Helpers
// =============================================================================

// PhotoKey generates a storage key for a piece of photo evidence.
// Format: inspections/{inspectionID}/photos/{uuid}.{ext}
func PhotoKey(inspectionID uuid.UUID, filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("inspections/%s/photos/%s%s", inspectionID, uuid.New(), ext)
}

// SignatureKey generates a storage key for a captured signature image.
// The role is "driver" or "analyst".
// Format: inspections/{inspectionID}/signatures/{role}-{uuid}.png
func SignatureKey(inspectionID uuid.UUID, role string) string {
	return fmt.Sprintf("inspections/%s/signatures/%s-%s.png", inspectionID, role, uuid.New())
}
