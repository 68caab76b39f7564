package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Well-known Solana program IDs
var (
	// SystemProgramID is the native SOL transfer program
	SystemProgramID = solana.SystemProgramID

	// MemoProgramIDSPL is the SPL Memo program (most common)
	MemoProgramIDSPL = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

	// MemoProgramIDLegacy is the legacy memo program (v1)
	MemoProgramIDLegacy = solana.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo")
)

// System Program instruction types
const (
	SystemProgramTransferInstruction = uint32(2)
)

// DecodeTransfers returns every system-program transfer in a transaction message,
// in instruction order.
func DecodeTransfers(tx *solana.Transaction) []Transfer {
	if tx == nil {
		return nil
	}

	accountKeys := tx.Message.AccountKeys
	transfers := make([]Transfer, 0, len(tx.Message.Instructions))
	for _, instruction := range tx.Message.Instructions {
		if int(instruction.ProgramIDIndex) >= len(accountKeys) {
			continue
		}
		if !accountKeys[instruction.ProgramIDIndex].Equals(SystemProgramID) {
			continue
		}
		transfer, err := parseSystemTransfer(instruction, accountKeys)
		if err != nil {
			continue
		}
		transfers = append(transfers, transfer)
	}
	return transfers
}

// parseTransactionFromResult parses a GetTransactionResult into our domain Transaction.
func parseTransactionFromResult(signature solana.Signature, result *rpc.GetTransactionResult) (*Transaction, error) {
	txn := &Transaction{
		Signature: signature.String(),
	}

	// Handle nil result (transaction not available)
	if result == nil {
		return txn, nil
	}

	txn.Slot = result.Slot
	if result.BlockTime != nil {
		txn.BlockTime = result.BlockTime.Time()
	} else {
		txn.BlockTime = time.Time{}
	}

	if result.Meta != nil && result.Meta.Err != nil {
		errMsg := fmt.Sprintf("transaction failed: %v", result.Meta.Err)
		txn.Err = &errMsg
	}

	if result.Transaction == nil {
		return txn, nil
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	if transfers := DecodeTransfers(tx); len(transfers) > 0 {
		first := transfers[0]
		txn.Lamports = first.Lamports
		txn.FromAddress = &first.From
		txn.ToAddress = &first.To
	}

	accountKeys := tx.Message.AccountKeys
	for _, instruction := range tx.Message.Instructions {
		if int(instruction.ProgramIDIndex) >= len(accountKeys) {
			continue
		}
		programID := accountKeys[instruction.ProgramIDIndex]
		if programID.Equals(MemoProgramIDSPL) || programID.Equals(MemoProgramIDLegacy) {
			if memo := parseMemo(instruction.Data); memo != "" {
				txn.Memo = &memo
			}
		}
	}

	return txn, nil
}

// parseSystemTransfer extracts the amount and both accounts from a System Program Transfer instruction.
func parseSystemTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (Transfer, error) {
	// System Transfer instruction format:
	// [0..4]  = instruction type (u32, should be 2 for Transfer)
	// [4..12] = lamports (u64)

	if len(instruction.Data) < 12 {
		return Transfer{}, fmt.Errorf("instruction data too short: %d bytes", len(instruction.Data))
	}

	instructionType := binary.LittleEndian.Uint32(instruction.Data[0:4])
	if instructionType != SystemProgramTransferInstruction {
		return Transfer{}, fmt.Errorf("not a transfer instruction: type %d", instructionType)
	}

	// System Transfer accounts: [from, to]
	if len(instruction.Accounts) < 2 {
		return Transfer{}, fmt.Errorf("transfer instruction missing accounts")
	}
	fromIndex, toIndex := instruction.Accounts[0], instruction.Accounts[1]
	if int(fromIndex) >= len(accountKeys) || int(toIndex) >= len(accountKeys) {
		return Transfer{}, fmt.Errorf("transfer account index out of bounds")
	}

	return Transfer{
		From:     accountKeys[fromIndex].String(),
		To:       accountKeys[toIndex].String(),
		Lamports: binary.LittleEndian.Uint64(instruction.Data[4:12]),
	}, nil
}

// parseMemo extracts the memo text from a Memo Program instruction.
func parseMemo(data []byte) string {
	// Memo program instructions contain the memo as raw UTF-8 bytes
	// Some memos are base64 encoded, others are plain text
	memo := string(data)

	if decoded, err := base64.StdEncoding.DecodeString(memo); err == nil {
		if isPrintableUTF8(decoded) {
			return string(decoded)
		}
	}

	return memo
}

// isPrintableUTF8 rejects invalid UTF-8 and embedded null bytes.
func isPrintableUTF8(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, c := range b {
		if c == 0 {
			return false
		}
	}
	return true
}
