package ethereum

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
)

type codedError struct {
	code int
}

func (e codedError) Error() string  { return fmt.Sprintf("rpc error %d", e.code) }
func (e codedError) ErrorCode() int { return e.code }

func TestIsProviderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "caller cancellation", err: fmt.Errorf("call: %w", context.Canceled), want: false},
		{name: "call timeout", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: true},
		{name: "dial failure", err: fmt.Errorf("%w rpc.example: boom", errDial), want: true},
		{name: "http 429", err: rpc.HTTPError{StatusCode: 429, Status: "429 Too Many Requests"}, want: true},
		{name: "http 503", err: fmt.Errorf("wrapped: %w", rpc.HTTPError{StatusCode: 503}), want: true},
		{name: "http 400", err: rpc.HTTPError{StatusCode: 400, Status: "400 Bad Request"}, want: false},
		{name: "limit exceeded code", err: codedError{code: -32005}, want: true},
		{name: "resource exhausted code", err: codedError{code: -32029}, want: true},
		{name: "net error", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: true},
		{name: "connection reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: true},
		{name: "eof", err: io.EOF, want: true},
		{name: "rate limit text", err: errors.New("Your app has exceeded its compute units per second capacity"), want: true},
		{name: "gateway text", err: errors.New("502 Bad Gateway"), want: true},
		{name: "execution reverted", err: errors.New("execution reverted"), want: false},
		{name: "abi error", err: errors.New("abi: cannot unmarshal"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsProviderError(tt.err))
		})
	}
}

func TestErrorClass(t *testing.T) {
	assert.Equal(t, "provider", ErrorClass(errors.New("429 too many requests")))
	assert.Equal(t, "other", ErrorClass(errors.New("execution reverted")))
}
