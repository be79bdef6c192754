package retry

import (
	"context"
	"io"
	"net/http"

	"golang.org/x/xerrors"
)

// Transport retries requests whose outcome matches Condition. Requests with a
// body are replayed through GetBody, so they must come from http.NewRequest
// with a rewindable reader.
type Transport struct {
	Base      http.RoundTripper
	Strategy  Strategy
	Condition *Condition
}

type statusError struct {
	response *http.Response
}

func (e *statusError) Error() string {
	return e.response.Status
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	if t.Condition == nil {
		return t.base().RoundTrip(request)
	}

	var last *http.Response
	attempt := 0
	err := Do(request.Context(), t.Strategy, func(ctx context.Context) error {
		attempt++
		if last != nil {
			_, _ = io.Copy(io.Discard, last.Body)
			last.Body.Close()
			last = nil
		}

		r := request
		if attempt > 1 && request.Body != nil && request.Body != http.NoBody {
			if request.GetBody == nil {
				return Permanent(xerrors.New("request body cannot be replayed"))
			}
			body, err := request.GetBody()
			if err != nil {
				return Permanent(err)
			}
			r = request.Clone(ctx)
			r.Body = body
		}

		response, err := t.base().RoundTrip(r)
		if err != nil {
			if t.Condition.RetryError(err) {
				return err
			}
			return Permanent(err)
		}
		if t.Condition.RetryStatus(response.StatusCode) {
			last = response
			return &statusError{response: response}
		}
		last = response
		return nil
	})
	if err != nil && request.Context().Err() != nil {
		if last != nil {
			last.Body.Close()
		}
		return nil, err
	}
	if last != nil {
		// The final retryable response is still a response.
		return last, nil
	}
	return nil, err
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
