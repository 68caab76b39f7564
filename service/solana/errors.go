package solana

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// Build error kinds.
var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid amount")
)

// Submission error kinds.
var (
	ErrConnectivity     = errors.New("connectivity")
	ErrRejected         = errors.New("rejected by network")
	ErrMalformedRequest = errors.New("malformed request")
)

// ErrInstructionConsumed is returned when an instruction that already went through
// Execute is passed in again.
var ErrInstructionConsumed = errors.New("instruction already executed")

// JSON-RPC 2.0 codes that mean the request itself was bad.
const (
	rpcCodeParseError     = -32700
	rpcCodeInvalidRequest = -32600
	rpcCodeMethodNotFound = -32601
	rpcCodeInvalidParams  = -32602
)

// BuildError reports why an intent could not become a transfer instruction.
type BuildError struct {
	Kind  error // ErrInvalidAddress or ErrInvalidAmount
	Cause error
}

func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.Error()
}

func (e *BuildError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// KindLabel returns the error kind as a metrics/log label.
func (e *BuildError) KindLabel() string {
	switch e.Kind {
	case ErrInvalidAddress:
		return "invalid_address"
	case ErrInvalidAmount:
		return "invalid_amount"
	default:
		return "unknown"
	}
}

// SubmissionError reports why a transfer was not accepted by the network.
// Stage names the step that failed: "prepare", "blockhash", "sign" or "send".
type SubmissionError struct {
	Kind  error // ErrConnectivity, ErrRejected or ErrMalformedRequest
	Stage string
	Cause error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed at %s: %s: %v", e.Stage, e.Kind, e.Cause)
}

func (e *SubmissionError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// KindLabel returns the error kind as a metrics/log label.
func (e *SubmissionError) KindLabel() string {
	switch e.Kind {
	case ErrConnectivity:
		return "connectivity"
	case ErrRejected:
		return "rejected"
	case ErrMalformedRequest:
		return "malformed_request"
	default:
		return "unknown"
	}
}

// classifySubmitError maps an RPC client error onto a submission kind.
func classifySubmitError(stage string, err error) *SubmissionError {
	return &SubmissionError{
		Kind:  submitErrorKind(err),
		Stage: stage,
		Cause: err,
	}
}

func submitErrorKind(err error) error {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case rpcCodeParseError, rpcCodeInvalidRequest, rpcCodeMethodNotFound, rpcCodeInvalidParams:
			return ErrMalformedRequest
		default:
			// Preflight failures, unknown blockhash, bad signatures and the like.
			return ErrRejected
		}
	}

	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Code == http.StatusBadRequest, httpErr.Code == http.StatusRequestEntityTooLarge:
			return ErrMalformedRequest
		case httpErr.Code == http.StatusRequestTimeout,
			httpErr.Code == http.StatusTooManyRequests,
			httpErr.Code >= 500:
			return ErrConnectivity
		default:
			return ErrRejected
		}
	}

	// Context cancellation, dial failures and other transport errors without a usable response.
	return ErrConnectivity
}
