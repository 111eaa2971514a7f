package llmerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ClassifyHTTPStatus maps a non-200 response to a classified error, keeping
// the provider's own error message when one was parsed from the body.
func ClassifyHTTPStatus(status int, providerMsg string) *DispatchError {
	if providerMsg == "" {
		providerMsg = http.StatusText(status)
	}
	msg := fmt.Sprintf("HTTP %d: %s", status, providerMsg)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return New(KindAuth, msg, nil)
	case status == http.StatusTooManyRequests:
		return NewRetryable(KindRateLimit, msg, nil)
	case status == http.StatusPaymentRequired:
		return New(KindQuota, msg, nil)
	case status == http.StatusNotFound:
		return New(KindServer, msg, nil)
	case status >= 500:
		return NewRetryable(KindServer, msg, nil)
	default:
		return New(KindServer, msg, nil)
	}
}

// ClassifyTransport maps transport-level failures (dial errors, resets,
// timeouts) to a classified error. Connection-level failures are transient
// and retryable; context cancellation is not.
func ClassifyTransport(err error) *DispatchError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewRetryable(KindNetwork, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return New(KindNetwork, "request canceled", err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return NewRetryable(KindNetwork, "connection refused", err)
	case errors.Is(err, syscall.ECONNRESET):
		return NewRetryable(KindNetwork, "connection reset", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewRetryable(KindNetwork, "socket timeout", err)
	}

	// url.Error wraps most client failures; treat the rest of them as
	// transient network conditions.
	if strings.Contains(err.Error(), "connection") {
		return NewRetryable(KindNetwork, "connection failure", err)
	}
	return NewRetryable(KindNetwork, "network failure", err)
}
