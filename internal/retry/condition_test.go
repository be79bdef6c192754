package retry_test

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime"
	"testing"

	"pixelview/internal/retry"

	"github.com/google/go-cmp/cmp"
)

type temporaryError struct {
	s string
}

func (te *temporaryError) Error() string {
	return te.s
}

func (te *temporaryError) Temporary() bool {
	return true
}

func TestConditionRetryStatus(t *testing.T) {
	type in struct {
		first int
	}

	type want struct {
		first bool
	}

	tests := []struct {
		name     string
		receiver string
		in       in
		want     want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"gateway-error",
			in{
				http.StatusBadGateway,
			},
			want{
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"gateway-error",
			in{
				http.StatusInternalServerError,
			},
			want{
				false,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"5xx",
			in{
				http.StatusInternalServerError,
			},
			want{
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"retriable-4xx",
			in{
				http.StatusConflict,
			},
			want{
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"connect-failure, 429",
			in{
				http.StatusTooManyRequests,
			},
			want{
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"5xx,retriable-4xx",
			in{
				http.StatusOK,
			},
			want{
				false,
			},
		},
	}
	for _, tt := range tests {
		name := tt.name
		receiver := tt.receiver
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			condition, err := retry.ParseCondition(receiver)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(want.first, condition.RetryStatus(in.first)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseConditionInvalid(t *testing.T) {
	for _, s := range []string{"4xx", "99", "600"} {
		if _, err := retry.ParseCondition(s); err == nil {
			t.Errorf("%q: expected an error", s)
		}
	}
}

func TestConditionRetryError(t *testing.T) {
	connect, _ := retry.ParseCondition("connect-failure")
	status, _ := retry.ParseCondition("gateway-error")

	for _, err := range []error{
		&temporaryError{"fake"},
		io.EOF,
		&net.OpError{Op: "dial", Err: errors.New("connection refused")},
	} {
		if !connect.RetryError(err) {
			t.Errorf("%v: expected a retry", err)
		}
		if status.RetryError(err) {
			t.Errorf("%v: expected no retry without connect-failure", err)
		}
	}

	if connect.RetryError(errors.New("fake")) {
		t.Errorf("Expected a plain error not to be retried")
	}
	if !retry.NewDefaultCondition().RetryStatus(http.StatusTooManyRequests) {
		t.Errorf("Expected the default condition to retry 429")
	}
}
