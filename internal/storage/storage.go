package storage

import (
	"context"
	"errors"

	"golang.org/x/xerrors"
)

// Storage keeps comparison artifacts such as delta images and reports.
type Storage interface {
	// Put stores data with the given key and returns the storage URL
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Get retrieves data from the given storage URL
	Get(ctx context.Context, url string) ([]byte, error)
	// Exists reports whether something is stored at the given storage URL
	Exists(ctx context.Context, url string) (bool, error)
}

var (
	NotFoundError       = errors.New("not found")
	UnknownBackendError = errors.New("unknown storage backend")
)

type Backend string

const (
	FileBackend Backend = "file"
	S3Backend   Backend = "s3"
)

type Config struct {
	Backend Backend
	File    FileConfig
	S3      S3Config
}

func New(ctx context.Context, c Config) (Storage, error) {
	switch c.Backend {
	case FileBackend, "":
		return NewFileStorage(ctx, c.File)
	case S3Backend:
		return NewS3Storage(ctx, c.S3)
	}
	return nil, xerrors.Errorf("%q: %w", c.Backend, UnknownBackendError)
}
