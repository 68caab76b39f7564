package solana

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
)

func TestSubmitErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "parse error", err: &jsonrpc.RPCError{Code: -32700}, want: ErrMalformedRequest},
		{name: "invalid request", err: &jsonrpc.RPCError{Code: -32600}, want: ErrMalformedRequest},
		{name: "method not found", err: &jsonrpc.RPCError{Code: -32601}, want: ErrMalformedRequest},
		{name: "invalid params", err: &jsonrpc.RPCError{Code: -32602}, want: ErrMalformedRequest},
		{name: "simulation failed", err: &jsonrpc.RPCError{Code: -32002}, want: ErrRejected},
		{name: "wrapped rpc error", err: fmt.Errorf("send: %w", &jsonrpc.RPCError{Code: -32003}), want: ErrRejected},
		{name: "http 400", err: jsonrpc.NewHTTPError(http.StatusBadRequest, nil), want: ErrMalformedRequest},
		{name: "http 401", err: jsonrpc.NewHTTPError(http.StatusUnauthorized, nil), want: ErrRejected},
		{name: "http 408", err: jsonrpc.NewHTTPError(http.StatusRequestTimeout, nil), want: ErrConnectivity},
		{name: "http 503", err: jsonrpc.NewHTTPError(http.StatusServiceUnavailable, nil), want: ErrConnectivity},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrConnectivity},
		{name: "canceled", err: context.Canceled, want: ErrConnectivity},
		{name: "transport", err: errors.New("EOF"), want: ErrConnectivity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, submitErrorKind(tt.err))
		})
	}
}

func TestSubmissionError(t *testing.T) {
	cause := &jsonrpc.RPCError{Code: -32002, Message: "blockhash not found"}
	err := classifySubmitError("send", cause)

	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "rejected", err.KindLabel())
	assert.Contains(t, err.Error(), "send")
	assert.Contains(t, err.Error(), "blockhash not found")
}

func TestBuildError(t *testing.T) {
	err := &BuildError{Kind: ErrInvalidAmount}

	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, "invalid amount", err.Error())
	assert.Equal(t, "invalid_amount", err.KindLabel())
}
