package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/sniper/service/pipeline"
	"github.com/brojonat/sniper/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - posts are short
)

type postRequest struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// eventResponse reports the outcome of one submitted post.
type eventResponse struct {
	EventID     string `json:"event_id"`
	Outcome     string `json:"outcome"`
	Signature   string `json:"signature,omitempty"`
	Destination string `json:"destination,omitempty"`
	Lamports    uint64 `json:"lamports,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Stage       string `json:"stage,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Error       string `json:"error,omitempty"`
}

type previewResponse struct {
	From        string `json:"from"`
	Destination string `json:"destination"`
	Lamports    uint64 `json:"lamports"`
	Priority    string `json:"priority"`
}

// transactionResponse reports a landed transaction looked up by signature.
type transactionResponse struct {
	Signature string     `json:"signature"`
	Found     bool       `json:"found"`
	Slot      uint64     `json:"slot,omitempty"`
	BlockTime *time.Time `json:"block_time,omitempty"`
	Lamports  uint64     `json:"lamports,omitempty"`
	From      *string    `json:"from,omitempty"`
	To        *string    `json:"to,omitempty"`
	Memo      *string    `json:"memo,omitempty"`
	Err       *string    `json:"err,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// handleSubmitEvent returns a handler that runs a post through the pipeline.
// POST /api/v1/events
//
// 200 when the transfer was accepted, 422 when the post holds no valid transfer,
// 502 when the network did not accept it.
func handleSubmitEvent(dispatcher *pipeline.Dispatcher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodePost(w, r, logger)
		if !ok {
			return
		}

		// A client hanging up must not abort a signed transfer mid-submission;
		// the dispatcher's timeout still bounds the run.
		res := dispatcher.Handle(context.WithoutCancel(r.Context()), pipeline.Event{
			ID:         req.ID,
			Source:     pipeline.SourceHTTP,
			Text:       req.Text,
			ReceivedAt: time.Now().UTC(),
		})

		writeJSON(w, resultToResponse(res), statusForOutcome(res.Outcome))
	})
}

// handlePreviewIntent returns a handler that extracts and builds without submitting.
// POST /api/v1/intents/preview
func handlePreviewIntent(p *pipeline.Pipeline, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodePost(w, r, logger)
		if !ok {
			return
		}

		inst, err := p.Preview(req.Text)
		if err != nil {
			logger.Debug("preview rejected post", "error", err)
			writeJSON(w, errorResponse{
				Error:     err.Error(),
				ErrorKind: pipeline.ErrorKind(err),
			}, http.StatusUnprocessableEntity)
			return
		}

		writeJSON(w, previewResponse{
			From:        inst.From.String(),
			Destination: inst.To.String(),
			Lamports:    inst.Lamports,
			Priority:    inst.Priority,
		}, http.StatusOK)
	})
}

// handleGetTransaction returns a handler that looks up a transaction by signature.
// GET /api/v1/transactions/{signature}
//
// 200 with found=false when the node does not know the signature yet.
func handleGetTransaction(lookup TransactionLookup, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig, err := solanago.SignatureFromBase58(r.PathValue("signature"))
		if err != nil {
			writeError(w, "invalid signature: must be base58", http.StatusBadRequest)
			return
		}

		tx, err := lookup.LookupTransaction(r.Context(), sig)
		if err != nil {
			logger.Error("failed to look up transaction", "signature", sig.String(), "error", err)
			writeError(w, "failed to look up transaction", http.StatusBadGateway)
			return
		}

		writeJSON(w, transactionToResponse(tx), http.StatusOK)
	})
}

// transactionToResponse converts a looked up transaction; a zero slot means not found.
func transactionToResponse(tx *solana.Transaction) transactionResponse {
	resp := transactionResponse{
		Signature: tx.Signature,
		Found:     tx.Slot != 0,
		Slot:      tx.Slot,
		Lamports:  tx.Lamports,
		From:      tx.FromAddress,
		To:        tx.ToAddress,
		Memo:      tx.Memo,
		Err:       tx.Err,
	}
	if !tx.BlockTime.IsZero() {
		bt := tx.BlockTime.UTC()
		resp.BlockTime = &bt
	}
	return resp
}

// decodePost reads a post request body. It writes the error response and
// returns false if the body is unusable.
func decodePost(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (postRequest, bool) {
	// Limit request body size to prevent memory exhaustion
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Debug("failed to decode post request", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, "request body too large: maximum size is 1MB", http.StatusRequestEntityTooLarge)
			return req, false
		}
		writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func statusForOutcome(outcome pipeline.Outcome) int {
	switch outcome {
	case pipeline.OutcomeConfirmed:
		return http.StatusOK
	case pipeline.OutcomeInvalid:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// resultToResponse converts a pipeline result to a response format.
func resultToResponse(res *pipeline.Result) eventResponse {
	resp := eventResponse{
		EventID:   res.EventID,
		Outcome:   string(res.Outcome),
		Stage:     res.Stage,
		ErrorKind: res.ErrorKind,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	if res.Intent != nil {
		resp.Destination = res.Intent.DestinationAddress
		resp.Lamports = res.Intent.Amount
	}
	if res.Instruction != nil {
		resp.Priority = res.Instruction.Priority
	}
	if !res.Signature.IsZero() {
		resp.Signature = res.Signature.String()
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
