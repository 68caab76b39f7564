// Package pipeline runs a post through extraction, building and execution.
package pipeline

import (
	"context"
	"errors"

	"github.com/brojonat/sniper/service/intent"
	"github.com/brojonat/sniper/service/solana"
	"github.com/brojonat/sniper/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// Stages, in the order they run.
const (
	StageExtract = "extract"
	StageBuild   = "build"
	StageExecute = "execute"
)

// Outcome is the final state of one processed post.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed" // accepted by the network
	OutcomeRejected  Outcome = "rejected"  // built but not accepted
	OutcomeInvalid   Outcome = "invalid"   // no valid transfer in the post
)

// Executor submits a built instruction. *solana.Engine implements it.
type Executor interface {
	Execute(ctx context.Context, inst *solana.TransferInstruction, cred *wallet.Credential) (solanago.Signature, error)
}

// Pipeline turns post text into at most one submitted transfer.
// A Pipeline holds no per-event state and is safe for concurrent use.
type Pipeline struct {
	executor Executor
	cred     *wallet.Credential
	priority string
}

// New creates a Pipeline that funds transfers from cred.
func New(executor Executor, cred *wallet.Credential, priority string) *Pipeline {
	return &Pipeline{
		executor: executor,
		cred:     cred,
		priority: priority,
	}
}

// Result describes what happened to one post.
type Result struct {
	EventID     string
	Outcome     Outcome
	Stage       string // stage that failed, empty on success
	ErrorKind   string
	Intent      *intent.TradeIntent
	Instruction *solana.TransferInstruction
	Signature   solanago.Signature
	Err         error
}

// Process extracts an intent from raw, builds the transfer and submits it.
// The first failing stage stops the run; its error is returned and also recorded
// in the Result, which is never nil.
func (p *Pipeline) Process(ctx context.Context, raw string) (*Result, error) {
	res := &Result{EventID: uuid.NewString()}

	in, err := intent.Extract(raw)
	if err != nil {
		return res.fail(OutcomeInvalid, StageExtract, err)
	}
	res.Intent = &in

	inst, err := solana.Build(in, p.cred.PublicKey(), p.priority)
	if err != nil {
		return res.fail(OutcomeInvalid, StageBuild, err)
	}
	res.Instruction = inst

	sig, err := p.executor.Execute(ctx, inst, p.cred)
	if err != nil {
		return res.fail(OutcomeRejected, StageExecute, err)
	}

	res.Outcome = OutcomeConfirmed
	res.Signature = sig
	return res, nil
}

// Preview runs extraction and building only. Nothing is signed or sent.
func (p *Pipeline) Preview(raw string) (*solana.TransferInstruction, error) {
	in, err := intent.Extract(raw)
	if err != nil {
		return nil, err
	}
	return solana.Build(in, p.cred.PublicKey(), p.priority)
}

// From returns the account transfers are funded from.
func (p *Pipeline) From() solanago.PublicKey {
	return p.cred.PublicKey()
}

func (r *Result) fail(outcome Outcome, stage string, err error) (*Result, error) {
	r.Outcome = outcome
	r.Stage = stage
	r.ErrorKind = ErrorKind(err)
	r.Err = err
	return r, err
}

// ErrorKind returns the label for err used in logs, metrics and result events.
func ErrorKind(err error) string {
	var extractErr *intent.ExtractionError
	if errors.As(err, &extractErr) {
		return extractErr.Kind()
	}
	var buildErr *solana.BuildError
	if errors.As(err, &buildErr) {
		return buildErr.KindLabel()
	}
	var submitErr *solana.SubmissionError
	if errors.As(err, &submitErr) {
		return submitErr.KindLabel()
	}
	if errors.Is(err, solana.ErrInstructionConsumed) {
		return "instruction_consumed"
	}
	return "unknown"
}
