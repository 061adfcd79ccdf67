package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks a failure as safe to retry: rate limits, overload
// shedding, gateway faults. The agents wrap model API errors in it so the
// retry loop and circuit breaker can tell a flaky call from a broken one.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable, recording the HTTP status when one is
// known (429, 500, 529 and friends).
func Transient(err error, statusCode int) error {
	return &TransientError{StatusCode: statusCode, Err: err}
}

// connErrnos are socket-level failures that resolve on reconnect.
var connErrnos = []syscall.Errno{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
}

// retryableFragments catches transient failures that surface only as wrapped
// message text, including the messages API's overload responses.
var retryableFragments = []string{
	"overloaded_error",
	"rate limit",
	"too many requests",
	"connection reset by peer",
	"broken pipe",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
}

// IsTransient reports whether err is worth retrying: an explicit
// TransientError anywhere in the chain, a network timeout, a dropped
// connection, or a known retryable message fragment.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range connErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
