package solana

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/brojonat/sniper/service/intent"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// MaxTransferLamports is the largest amount Build accepts.
// Amounts travel through signed 64-bit fields downstream (result events, metrics).
const MaxTransferLamports = uint64(math.MaxInt64)

// State is the lifecycle position of a TransferInstruction.
type State int32

const (
	StateBuilt State = iota
	stateClaimed // Execute owns the instruction and is preparing it
	StateSigned
	StateSubmitted
	StateConfirmed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case stateClaimed:
		return "claimed"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// TransferInstruction is one unsigned native SOL transfer.
// Priority is an opaque hint carried alongside the transfer for the engine.
// Its fields must not be changed after Build; its state only moves forward.
type TransferInstruction struct {
	From     solana.PublicKey
	To       solana.PublicKey
	Lamports uint64
	Priority string

	state atomic.Int32
}

// State returns the current lifecycle state.
func (i *TransferInstruction) State() State {
	return State(i.state.Load())
}

// advance moves the instruction from one state to the next. It reports false if
// the instruction was not in the expected state.
func (i *TransferInstruction) advance(from, to State) bool {
	return i.state.CompareAndSwap(int32(from), int32(to))
}

// SystemInstruction renders the transfer as a system-program instruction.
func (i *TransferInstruction) SystemInstruction() solana.Instruction {
	return system.NewTransferInstruction(i.Lamports, i.From, i.To).Build()
}

// Build validates an intent and turns it into a transfer from the given account.
func Build(in intent.TradeIntent, from solana.PublicKey, priority string) (*TransferInstruction, error) {
	to, err := solana.PublicKeyFromBase58(in.DestinationAddress)
	if err != nil {
		return nil, &BuildError{Kind: ErrInvalidAddress, Cause: fmt.Errorf("%q: %w", in.DestinationAddress, err)}
	}

	if in.Amount == 0 {
		return nil, &BuildError{Kind: ErrInvalidAmount, Cause: fmt.Errorf("amount must be greater than zero")}
	}
	if in.Amount > MaxTransferLamports {
		return nil, &BuildError{Kind: ErrInvalidAmount, Cause: fmt.Errorf("amount %d exceeds maximum %d", in.Amount, MaxTransferLamports)}
	}

	return &TransferInstruction{
		From:     from,
		To:       to,
		Lamports: in.Amount,
		Priority: priority,
	}, nil
}
