package backend

import (
	"context"
	"time"

	"darky/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the blob store instance and optional cleanup function
type BackendResult struct {
	Store   storage.BlobStore
	Cleanup CleanupFunc
}

// Factory creates blob stores based on configuration
type Factory interface {
	// CreateBackend creates a blob store instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// File specific
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresURL string

	// S3 specific
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	S3Prefix    string

	// Remote specific
	RemoteBaseURL string
	RemoteTimeout time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	FileBackend     BackendType = "file"
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	S3Backend       BackendType = "s3"
	RemoteBackend   BackendType = "remote"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FileBackend, MemoryBackend, SQLiteBackend, PostgresBackend, S3Backend, RemoteBackend:
		return true
	default:
		return false
	}
}
