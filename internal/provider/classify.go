package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/everstacklabs/brandscope/internal/httpclient"
)

// Classify maps a transport or API error onto the status taxonomy. Checks run
// in priority order: connection/timeout, 429, 5xx, 401/403, 404, token/length
// messages, then unknown. An error carrying an HTTP status got a response, so
// it is never a connection failure whatever its body says.
func Classify(err error) Status {
	if err == nil {
		return StatusOK
	}

	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		if isConnectionOrTimeout(err) {
			return StatusTimeout
		}
	} else {
		switch {
		case se.Code == http.StatusTooManyRequests:
			return StatusRateLimited
		case se.Code >= 500:
			return StatusServerError
		case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
			return StatusAuthError
		case se.Code == http.StatusNotFound:
			return StatusProviderNotFound
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "token") || strings.Contains(msg, "length") {
		return StatusTokenLimitExceeded
	}
	return StatusUnknownError
}

func isConnectionOrTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range connectionMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// connectionMarkers catch transport errors that were flattened to strings by
// an SDK before reaching the classifier.
var connectionMarkers = []string{
	"context deadline exceeded",
	"client.timeout exceeded",
	"connection refused",
	"connection reset",
	"i/o timeout",
}
