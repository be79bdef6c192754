package retry

import (
	"errors"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Condition decides which responses and transport errors are worth another
// attempt. It understands the envoy style retry-on list:
// 5xx, gateway-error, connect-failure, retriable-4xx and plain status codes.
type Condition struct {
	serverError    bool
	gatewayError   bool
	connectFailure bool
	retriable4xx   bool
	statusCodes    []int
}

func NewDefaultCondition() *Condition {
	return &Condition{
		gatewayError:   true,
		connectFailure: true,
		retriable4xx:   true,
		statusCodes:    []int{http.StatusTooManyRequests},
	}
}

func ParseCondition(s string) (*Condition, error) {
	c := &Condition{}
	for _, s := range strings.Split(s, ",") {
		switch s = strings.TrimSpace(s); s {
		case "":
		case "5xx":
			c.serverError = true
		case "gateway-error":
			c.gatewayError = true
		case "connect-failure":
			c.connectFailure = true
		case "retriable-4xx":
			c.retriable4xx = true
		default:
			statusCode, err := strconv.Atoi(s)
			if err != nil || statusCode < 100 || statusCode > 599 {
				return nil, xerrors.Errorf("invalid retry condition: %q", s)
			}
			c.statusCodes = append(c.statusCodes, statusCode)
		}
	}
	return c, nil
}

func (c *Condition) RetryStatus(statusCode int) bool {
	if (c.serverError && statusCode >= 500 && statusCode < 600) ||
		(c.gatewayError && statusCode >= 502 && statusCode < 505) ||
		(c.retriable4xx && statusCode == http.StatusConflict) {
		return true
	}
	return slices.Contains(c.statusCodes, statusCode)
}

// RetryError reports whether err looks like a dropped or refused connection.
func (c *Condition) RetryError(err error) bool {
	if !c.connectFailure && !c.serverError {
		return false
	}

	type temporary interface{ Temporary() bool }
	var terr temporary
	if errors.As(err, &terr) && terr.Temporary() {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	var operr *net.OpError
	return errors.As(err, &operr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
