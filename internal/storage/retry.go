package storage

import (
	"context"
	"errors"

	"pixelview/internal/retry"
)

type retryStorage struct {
	base     Storage
	strategy retry.Strategy
}

// NewRetryStorage retries failed operations of base. NotFoundError is never
// retried.
func NewRetryStorage(base Storage, strategy retry.Strategy) Storage {
	return &retryStorage{
		base:     base,
		strategy: strategy,
	}
}

func (r *retryStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	var url string
	err := retry.Do(ctx, r.strategy, func(ctx context.Context) error {
		var err error
		url, err = r.base.Put(ctx, key, data)
		return err
	})
	return url, err
}

func (r *retryStorage) Get(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, r.strategy, func(ctx context.Context) error {
		var err error
		data, err = r.base.Get(ctx, url)
		if errors.Is(err, NotFoundError) {
			return retry.Permanent(err)
		}
		return err
	})
	return data, err
}

func (r *retryStorage) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := retry.Do(ctx, r.strategy, func(ctx context.Context) error {
		var err error
		exists, err = r.base.Exists(ctx, url)
		return err
	})
	return exists, err
}
