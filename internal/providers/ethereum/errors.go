package ethereum

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/rpc"
)

// errDial marks a failure to connect to an endpoint; it is always provider-class
var errDial = errors.New("dial endpoint")

// JSON-RPC error codes providers use for throttling and capacity
const (
	rpcCodeLimitExceeded     = -32005
	rpcCodeResourceExhausted = -32029
)

var providerErrorMarkers = []string{
	"429",
	"too many requests",
	"rate limit",
	"rate-limit",
	"ratelimit",
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"timed out",
	"deadline exceeded",
	"502",
	"503",
	"504",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"network",
	"capacity",
	"limit exceeded",
	"exceed maximum",
	"unexpected eof",
}

// ErrorClass returns a short label for metrics
func ErrorClass(err error) string {
	if IsProviderError(err) {
		return "provider"
	}
	return "other"
}

// IsProviderError reports whether err is attributable to the endpoint (rate limits,
// connectivity, timeouts, gateway errors) and is therefore worth retrying or rotating on.
// Anything else, including caller cancellation, propagates immediately.
func IsProviderError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, errDial) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case rpcCodeLimitExceeded, rpcCodeResourceExhausted:
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range providerErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
