package retry

import (
	"context"
	"errors"
	"time"

	"golang.org/x/xerrors"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err so that Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var perr *permanentError
	return errors.As(err, &perr)
}

// Do calls fn until it succeeds, returns a Permanent error, the strategy gives
// up or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, strategy Strategy, fn func(context.Context) error) error {
	if strategy == nil {
		strategy = NewNever()
	}

	for retryCount := uint(0); ; retryCount++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}

		sleep, exceeded := strategy.Sleep(retryCount)
		if exceeded {
			return xerrors.Errorf("gave up after %d retries: %w", retryCount, err)
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return xerrors.Errorf("%v: %w", err, ctx.Err())
		case <-timer.C:
		}
	}
}
