package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brojonat/sniper/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	SendTransaction(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// Client wraps the RPC client with metrics and logging.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet", rpc host)
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet", "devnet", or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// LatestBlockhash fetches a recent blockhash for a new transaction.
func (c *Client) LatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error) {
	start := time.Now()
	result, err := c.rpc.GetLatestBlockhash(ctx, commitment)
	c.recordCall("GetLatestBlockhash", err, start)
	if err != nil {
		return solana.Hash{}, err
	}
	if result == nil || result.Value == nil {
		return solana.Hash{}, fmt.Errorf("empty GetLatestBlockhash response")
	}

	c.logger.DebugContext(ctx, "fetched latest blockhash",
		"blockhash", result.Value.Blockhash.String(),
		"last_valid_block_height", result.Value.LastValidBlockHeight,
	)
	return result.Value.Blockhash, nil
}

// SendTransaction submits a signed transaction once. It never retries.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.SendTransaction(ctx, tx, opts)
	c.recordCall("SendTransaction", err, start)
	return sig, err
}

// LookupTransaction fetches and parses a landed transaction by signature.
// It returns a Transaction with only the signature set if the node does not know it.
func (c *Client) LookupTransaction(ctx context.Context, signature solana.Signature) (*Transaction, error) {
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		MaxSupportedTransactionVersion: &[]uint64{0}[0],
	}
	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, signature, opts)
	c.recordCall("GetTransaction", err, start)

	// Handle parsing errors for legacy transactions
	if err != nil && strings.Contains(err.Error(), "expects '\"' or 'n', but found '{'") {
		c.logger.WarnContext(ctx, "could not parse as versioned tx, retrying as legacy",
			"signature", signature.String(),
		)
		legacyStart := time.Now()
		result, err = c.rpc.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{Encoding: solana.EncodingBase64})
		c.recordCall("GetTransaction", err, legacyStart)
	}

	if errors.Is(err, rpc.ErrNotFound) {
		return &Transaction{Signature: signature.String()}, nil
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get transaction",
			"signature", signature.String(),
			"error", err,
		)
		return nil, err
	}

	return parseTransactionFromResult(signature, result)
}

func (c *Client) recordCall(method string, err error, start time.Time) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())

	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.Code == http.StatusTooManyRequests {
		c.metrics.RecordRateLimitHit(c.endpoint)
	}
}
