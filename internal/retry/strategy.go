package retry

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// Strategy returns how long to wait before retry number n and whether the
// retry budget is exhausted.
type Strategy interface {
	Sleep(n uint) (time.Duration, bool)
}

type never struct{}

func NewNever() *never {
	return &never{}
}

func (nr *never) Sleep(n uint) (time.Duration, bool) {
	return 0, true
}

type constant struct {
	delay         time.Duration
	maxRetryCount uint
}

func NewConstant(delay time.Duration, maxRetryCount uint) *constant {
	return &constant{
		delay:         delay,
		maxRetryCount: maxRetryCount,
	}
}

func (c *constant) Sleep(retryCount uint) (time.Duration, bool) {
	if retryCount >= c.maxRetryCount {
		return 0, true
	}
	return c.delay, false
}

// Entropy draws a jittered delay in [0, n).
type Entropy func(n int64) int64

type exponentialBackOff struct {
	base          time.Duration
	max           time.Duration
	maxRetryCount uint
	entropy       Entropy
}

// NewExponentialBackOff doubles base on every retry up to max. A nil entropy
// uses full jitter.
func NewExponentialBackOff(base time.Duration, max time.Duration, maxRetryCount uint, entropy Entropy) *exponentialBackOff {
	return &exponentialBackOff{
		base:          base,
		max:           max,
		maxRetryCount: maxRetryCount,
		entropy:       entropy,
	}
}

func (eb *exponentialBackOff) Sleep(retryCount uint) (time.Duration, bool) {
	if retryCount >= eb.maxRetryCount {
		return 0, true
	}

	ceiling := int64(eb.max)
	if retryCount < 63 {
		if delay, err := checkedMulInt64(1<<retryCount, int64(eb.base)); err == nil {
			ceiling = min(delay, ceiling)
		}
	}
	return time.Duration(eb.jitter(ceiling)), false
}

func (eb *exponentialBackOff) jitter(n int64) int64 {
	if eb.entropy != nil {
		return eb.entropy(n)
	}
	if n <= 0 {
		return 0
	}
	return rand.Int63n(n)
}

var OverflowError = errors.New("overflow")

func checkedMulInt64(l int64, r int64) (int64, error) {
	if l == 0 || r == 0 {
		return l * r, nil
	}
	if l > math.MaxInt64/r {
		return 0, OverflowError
	}
	return l * r, nil
}
