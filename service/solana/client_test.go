package solana

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, and it records what was sent.
type mockRPCClient struct {
	mu sync.Mutex

	blockhash    solana.Hash
	blockhashErr error
	sendErr      error
	transactions map[string]*rpc.GetTransactionResult
	getErr       error

	sent []*solana.Transaction
}

func (m *mockRPCClient) GetLatestBlockhash(
	ctx context.Context,
	commitment rpc.CommitmentType,
) (*rpc.GetLatestBlockhashResult, error) {
	if m.blockhashErr != nil {
		return nil, m.blockhashErr
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            m.blockhash,
			LastValidBlockHeight: 1000,
		},
	}, nil
}

func (m *mockRPCClient) SendTransaction(
	ctx context.Context,
	tx *solana.Transaction,
	opts rpc.TransactionOpts,
) (solana.Signature, error) {
	m.mu.Lock()
	m.sent = append(m.sent, tx)
	m.mu.Unlock()

	if m.sendErr != nil {
		return solana.Signature{}, m.sendErr
	}
	return tx.Signatures[0], nil
}

func (m *mockRPCClient) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result, ok := m.transactions[signature.String()]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return result, nil
}

func (m *mockRPCClient) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(mock *mockRPCClient) *Client {
	return NewClient(mock, "test", nil, testLogger())
}

func TestLatestBlockhash(t *testing.T) {
	want := solana.HashFromBytes([]byte("01234567890123456789012345678901"))
	client := newTestClient(&mockRPCClient{blockhash: want})

	got, err := client.LatestBlockhash(context.Background(), rpc.CommitmentConfirmed)

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLatestBlockhash_Error(t *testing.T) {
	rpcErr := errors.New("dial tcp: connection refused")
	client := newTestClient(&mockRPCClient{blockhashErr: rpcErr})

	_, err := client.LatestBlockhash(context.Background(), rpc.CommitmentConfirmed)

	assert.ErrorIs(t, err, rpcErr)
}

func TestLookupTransaction(t *testing.T) {
	fromAddr := solana.MustPublicKeyFromBase58("11111111111111111111111111111112")
	toAddr := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{fromAddr, toAddr, SystemProgramID},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 2, Accounts: []uint16{0, 1}, Data: transferData(2500)},
			},
		},
	}
	envelope, err := makeTransactionEnvelope(tx)
	require.NoError(t, err)

	sig := solana.MustSignatureFromBase58(testSignature)
	client := newTestClient(&mockRPCClient{
		transactions: map[string]*rpc.GetTransactionResult{
			sig.String(): {Slot: 7, Transaction: envelope},
		},
	})

	txn, err := client.LookupTransaction(context.Background(), sig)

	require.NoError(t, err)
	assert.Equal(t, uint64(7), txn.Slot)
	assert.Equal(t, uint64(2500), txn.Lamports)
	require.NotNil(t, txn.ToAddress)
	assert.Equal(t, toAddr.String(), *txn.ToAddress)
}

func TestLookupTransaction_NotFound(t *testing.T) {
	sig := solana.MustSignatureFromBase58(testSignature)
	client := newTestClient(&mockRPCClient{})

	txn, err := client.LookupTransaction(context.Background(), sig)

	require.NoError(t, err)
	assert.Equal(t, sig.String(), txn.Signature)
	assert.Nil(t, txn.FromAddress)
}

func TestLookupTransaction_Error(t *testing.T) {
	client := newTestClient(&mockRPCClient{getErr: errors.New("boom")})

	txn, err := client.LookupTransaction(context.Background(), solana.MustSignatureFromBase58(testSignature))

	assert.Error(t, err)
	assert.Nil(t, txn)
}
