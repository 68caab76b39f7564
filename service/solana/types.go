package solana

import (
	"time"
)

// Transaction represents a landed transfer transaction looked up by signature.
// This is our domain model, independent of the RPC response format.
type Transaction struct {
	Signature   string
	Slot        uint64
	BlockTime   time.Time
	Lamports    uint64
	FromAddress *string // funding account, nil if no system transfer was found
	ToAddress   *string // recipient account, nil if no system transfer was found
	Memo        *string // parsed from transaction instructions
	Err         *string // nil if transaction succeeded, contains error message if failed
}

// Transfer is a system-program transfer decoded from a transaction message.
type Transfer struct {
	From     string
	To       string
	Lamports uint64
}
