package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/sniper/service/metrics"
	"github.com/brojonat/sniper/service/wallet"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// EngineConfig controls how transactions are submitted.
type EngineConfig struct {
	Commitment    rpc.CommitmentType // blockhash and preflight commitment
	SkipPreflight bool
}

// Engine signs and submits transfer instructions.
// Each instruction is submitted at most once; failures are returned, never retried.
// An Engine is safe for concurrent use when its RPC client is.
type Engine struct {
	client  *Client
	cfg     EngineConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine creates an Engine that submits through client.
// If metrics is nil, no metrics will be recorded.
func NewEngine(client *Client, cfg EngineConfig, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	return &Engine{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// Execute signs inst with cred and submits it. On acceptance by the node it returns the
// transaction signature; it does not wait for confirmation.
//
// inst moves Built → Signed → Submitted → Confirmed, or to Rejected at the first failure.
// An instruction that is no longer Built is refused with ErrInstructionConsumed, so the
// same value is never signed or sent twice.
func (e *Engine) Execute(ctx context.Context, inst *TransferInstruction, cred *wallet.Credential) (solana.Signature, error) {
	if inst == nil {
		return solana.Signature{}, &SubmissionError{Kind: ErrMalformedRequest, Stage: "prepare", Cause: errors.New("nil instruction")}
	}
	if !inst.advance(StateBuilt, stateClaimed) {
		return solana.Signature{}, fmt.Errorf("%w: instruction is %s", ErrInstructionConsumed, inst.State())
	}

	start := time.Now()
	sig, err := e.submit(ctx, inst, cred)
	duration := time.Since(start).Seconds()

	status := StateConfirmed
	if err != nil {
		status = StateRejected
	}
	inst.state.Store(int32(status))

	if e.metrics != nil {
		e.metrics.RecordSubmission(status.String(), inst.Priority, duration)
		if err == nil {
			e.metrics.RecordLamportsSent(inst.Priority, inst.Lamports)
		}
	}
	return sig, err
}

func (e *Engine) submit(ctx context.Context, inst *TransferInstruction, cred *wallet.Credential) (solana.Signature, error) {
	if cred == nil {
		return solana.Signature{}, &SubmissionError{Kind: ErrMalformedRequest, Stage: "prepare", Cause: errors.New("nil credential")}
	}
	if !inst.From.Equals(cred.PublicKey()) {
		return solana.Signature{}, &SubmissionError{
			Kind:  ErrMalformedRequest,
			Stage: "prepare",
			Cause: fmt.Errorf("instruction funded by %s but credential is %s", inst.From, cred.PublicKey()),
		}
	}

	blockhash, err := e.client.LatestBlockhash(ctx, e.cfg.Commitment)
	if err != nil {
		return solana.Signature{}, classifySubmitError("blockhash", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{inst.SystemInstruction()},
		blockhash,
		solana.TransactionPayer(inst.From),
	)
	if err != nil {
		return solana.Signature{}, &SubmissionError{Kind: ErrMalformedRequest, Stage: "prepare", Cause: err}
	}

	if _, err := tx.Sign(cred.Signer()); err != nil {
		return solana.Signature{}, &SubmissionError{Kind: ErrMalformedRequest, Stage: "sign", Cause: err}
	}
	inst.advance(stateClaimed, StateSigned)

	// The priority hint has no fee semantics yet; it is only carried for observability.
	e.logger.DebugContext(ctx, "submitting transfer",
		"signature", tx.Signatures[0].String(),
		"to", inst.To.String(),
		"lamports", inst.Lamports,
		"priority", inst.Priority,
	)

	inst.advance(StateSigned, StateSubmitted)
	sig, err := e.client.SendTransaction(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       e.cfg.SkipPreflight,
		PreflightCommitment: e.cfg.Commitment,
	})
	if err != nil {
		return solana.Signature{}, classifySubmitError("send", err)
	}
	if sig.IsZero() {
		sig = tx.Signatures[0]
	}
	return sig, nil
}
