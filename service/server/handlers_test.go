package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	natspkg "github.com/brojonat/sniper/service/nats"
	"github.com/brojonat/sniper/service/pipeline"
	"github.com/brojonat/sniper/service/solana"
	"github.com/brojonat/sniper/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken  = "handler-test-token-0123456789"
	testOrigin = "https://app.example.com"
)

// stubRPC implements solana.RPCClient for handler tests.
// Like a real RPC client it fails once its context is done.
type stubRPC struct {
	sendErr  error
	sent     int
	txResult *rpc.GetTransactionResult
	txErr    error
}

func (s *stubRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{Blockhash: solanago.HashFromBytes(make([]byte, 32))},
	}, nil
}

func (s *stubRPC) SendTransaction(ctx context.Context, tx *solanago.Transaction, opts rpc.TransactionOpts) (solanago.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solanago.Signature{}, err
	}
	s.sent++
	if s.sendErr != nil {
		return solanago.Signature{}, s.sendErr
	}
	return tx.Signatures[0], nil
}

func (s *stubRPC) GetTransaction(ctx context.Context, sig solanago.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	if s.txErr != nil {
		return nil, s.txErr
	}
	if s.txResult == nil {
		return nil, rpc.ErrNotFound
	}
	return s.txResult, nil
}

type testServer struct {
	handler   http.Handler
	rpc       *stubRPC
	publisher *natspkg.MockPublisher
	from      solanago.PublicKey
}

func newTestServer(t *testing.T, stub *stubRPC) *testServer {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	cred, err := wallet.NewCredential(key, "https://rpc.example/")
	require.NoError(t, err)

	client := solana.NewClient(stub, "rpc.example", nil, logger)
	engine := solana.NewEngine(client, solana.EngineConfig{}, nil, logger)
	publisher := natspkg.NewMockPublisher()
	dispatcher := pipeline.NewDispatcher(pipeline.New(engine, cred, "high"), publisher, time.Second, nil, logger)

	cfg := Config{Addr: ":0", APIToken: testToken, AllowedOrigins: []string{testOrigin}}
	return &testServer{
		handler:   New(cfg, dispatcher, client, nil, logger).Handler(),
		rpc:       stub,
		publisher: publisher,
		from:      cred.PublicKey(),
	}
}

func (ts *testServer) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return ts.serve(req)
}

func (ts *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.serve(httptest.NewRequest(http.MethodGet, path, nil))
}

// serve sends an authenticated request.
func (ts *testServer) serve(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func postBody(t *testing.T, text string) string {
	t.Helper()
	data, err := json.Marshal(postRequest{Text: text})
	require.NoError(t, err)
	return string(data)
}

func newAddress(t *testing.T) string {
	t.Helper()
	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey().String()
}

func TestSubmitEvent(t *testing.T) {
	ts := newTestServer(t, &stubRPC{})
	to := newAddress(t)

	rec := ts.post(t, "/api/v1/events", postBody(t, fmt.Sprintf("Token Address: %s Amount: 1000", to)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp eventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "confirmed", resp.Outcome)
	assert.NotEmpty(t, resp.Signature)
	assert.Equal(t, to, resp.Destination)
	assert.Equal(t, uint64(1000), resp.Lamports)
	assert.Equal(t, "high", resp.Priority)
	assert.Empty(t, resp.Error)

	assert.Equal(t, 1, ts.rpc.sent)
	assert.Equal(t, 1, ts.publisher.GetPublishedEventCount())
}

func TestSubmitEvent_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		sendErr    error
		text       string
		wantStatus int
		wantKind   string
		wantStage  string
	}{
		{
			name:       "no intent",
			text:       "just vibes",
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "malformed_input",
			wantStage:  pipeline.StageExtract,
		},
		{
			name:       "bad address",
			text:       "Token Address: ABC123 Amount: 10",
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "invalid_address",
			wantStage:  pipeline.StageBuild,
		},
		{
			name:       "rpc unreachable",
			sendErr:    errors.New("connection refused"),
			text:       "Token Address: So11111111111111111111111111111111111111112 Amount: 10",
			wantStatus: http.StatusBadGateway,
			wantKind:   "connectivity",
			wantStage:  pipeline.StageExecute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubRPC{sendErr: tt.sendErr})

			rec := ts.post(t, "/api/v1/events", postBody(t, tt.text))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp eventResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantKind, resp.ErrorKind)
			assert.Equal(t, tt.wantStage, resp.Stage)
			assert.NotEmpty(t, resp.Error)
			assert.Empty(t, resp.Signature)
		})
	}
}

func TestSubmitEvent_PathologicalInput(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "not json",
			body:           "Token Address: x Amount: 1",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "must be valid JSON",
		},
		{
			name:           "empty body",
			body:           "",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "must be valid JSON",
		},
		{
			name:           "body too large",
			body:           `{"text": "` + strings.Repeat("a", maxRequestBodySize) + `"}`,
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedError:  "request body too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubRPC{})

			rec := ts.post(t, "/api/v1/events", tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedError)
			assert.Zero(t, ts.rpc.sent)
			assert.Zero(t, ts.publisher.GetPublishedEventCount())
		})
	}
}

func TestPreviewIntent(t *testing.T) {
	ts := newTestServer(t, &stubRPC{})
	to := newAddress(t)

	rec := ts.post(t, "/api/v1/intents/preview", postBody(t, fmt.Sprintf("Amount: 42\nToken Address: %s", to)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp previewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ts.from.String(), resp.From)
	assert.Equal(t, to, resp.Destination)
	assert.Equal(t, uint64(42), resp.Lamports)
	assert.Equal(t, "high", resp.Priority)
	assert.Zero(t, ts.rpc.sent, "preview must never submit")
	assert.Zero(t, ts.publisher.GetPublishedEventCount())
}

func TestPreviewIntent_Invalid(t *testing.T) {
	ts := newTestServer(t, &stubRPC{})

	rec := ts.post(t, "/api/v1/intents/preview", postBody(t, "Token Address: abc Token Address: def Amount: 1"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "malformed_input", resp.ErrorKind)
	assert.Contains(t, resp.Error, "token_address")
}

func TestSubmitEvent_ClientDisconnect(t *testing.T) {
	ts := newTestServer(t, &stubRPC{})
	to := newAddress(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events",
		strings.NewReader(postBody(t, fmt.Sprintf("Token Address: %s Amount: 7", to)))).WithContext(ctx)

	rec := ts.serve(req)

	// The run outlives the request that started it.
	require.Equal(t, http.StatusOK, rec.Code)
	var resp eventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "confirmed", resp.Outcome)
	assert.Equal(t, 1, ts.rpc.sent)
	assert.Equal(t, 1, ts.publisher.GetPublishedEventCount())
}

func TestAPIRequiresToken(t *testing.T) {
	to := newAddress(t)
	body := postBody(t, fmt.Sprintf("Token Address: %s Amount: 1000", to))

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
	}{
		{name: "events without header", method: http.MethodPost, path: "/api/v1/events"},
		{name: "events wrong token", method: http.MethodPost, path: "/api/v1/events", auth: "Bearer not-the-token"},
		{name: "events token prefix", method: http.MethodPost, path: "/api/v1/events", auth: "Bearer " + testToken[:8]},
		{name: "events basic scheme", method: http.MethodPost, path: "/api/v1/events", auth: "Basic " + testToken},
		{name: "events bare token", method: http.MethodPost, path: "/api/v1/events", auth: testToken},
		{name: "preview", method: http.MethodPost, path: "/api/v1/intents/preview"},
		{name: "transactions", method: http.MethodGet, path: "/api/v1/transactions/" + testSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubRPC{})
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()

			ts.handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			assert.Zero(t, ts.rpc.sent, "unauthenticated request must not submit")
			assert.Zero(t, ts.publisher.GetPublishedEventCount())
		})
	}
}

func TestAPIRejectsAllWithoutConfiguredToken(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	handler := requireToken("", logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached without a configured token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthAndCORS(t *testing.T) {
	ts := newTestServer(t, &stubRPC{})

	// Health stays open and carries no CORS grant for unknown origins.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/events", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "authorization, content-type")
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		return rec
	}

	rec = preflight("https://evil.example")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Headers"))

	rec = preflight(testOrigin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Contains(t, rec.Header().Values("Vary"), "Origin")

	rec = ts.get(t, "/api/v1/events")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, ts.rpc.sent)
}

const testSignature = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"

func TestGetTransaction(t *testing.T) {
	blockTime := solanago.UnixTimeSeconds(1_700_000_000)
	tests := []struct {
		name       string
		stub       *stubRPC
		path       string
		wantStatus int
		check      func(t *testing.T, resp transactionResponse)
	}{
		{
			name:       "not found",
			stub:       &stubRPC{},
			path:       "/api/v1/transactions/" + testSignature,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, resp transactionResponse) {
				assert.Equal(t, testSignature, resp.Signature)
				assert.False(t, resp.Found)
				assert.Nil(t, resp.BlockTime)
			},
		},
		{
			name: "failed on chain",
			stub: &stubRPC{txResult: &rpc.GetTransactionResult{
				Slot:      77,
				BlockTime: &blockTime,
				Meta:      &rpc.TransactionMeta{Err: map[string]any{"InstructionError": []any{0, "Custom"}}},
			}},
			path:       "/api/v1/transactions/" + testSignature,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, resp transactionResponse) {
				assert.True(t, resp.Found)
				assert.Equal(t, uint64(77), resp.Slot)
				require.NotNil(t, resp.BlockTime)
				assert.Equal(t, int64(1_700_000_000), resp.BlockTime.Unix())
				require.NotNil(t, resp.Err)
				assert.Contains(t, *resp.Err, "transaction failed")
			},
		},
		{
			name:       "not base58",
			stub:       &stubRPC{},
			path:       "/api/v1/transactions/not-a-signature",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "rpc failure",
			stub:       &stubRPC{txErr: errors.New("connection refused")},
			path:       "/api/v1/transactions/" + testSignature,
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.stub)

			rec := ts.get(t, tt.path)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.check == nil {
				return
			}
			var resp transactionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			tt.check(t, resp)
		})
	}
}
