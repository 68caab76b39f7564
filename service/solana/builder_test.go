package solana

import (
	"errors"
	"fmt"
	"testing"

	"github.com/brojonat/sniper/service/intent"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func TestBuild(t *testing.T) {
	from := newTestKey(t).PublicKey()
	to := newTestKey(t).PublicKey()

	tests := []struct {
		name   string
		amount uint64
	}{
		{name: "one lamport", amount: 1},
		{name: "one sol", amount: 1_000_000_000},
		{name: "maximum", amount: MaxTransferLamports},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := Build(intent.TradeIntent{DestinationAddress: to.String(), Amount: tt.amount}, from, "high")

			require.NoError(t, err)
			assert.Equal(t, from, inst.From)
			assert.Equal(t, to, inst.To)
			assert.Equal(t, tt.amount, inst.Lamports)
			assert.Equal(t, "high", inst.Priority)
			assert.Equal(t, StateBuilt, inst.State())
		})
	}
}

func TestBuild_Invalid(t *testing.T) {
	from := newTestKey(t).PublicKey()
	to := newTestKey(t).PublicKey().String()

	tests := []struct {
		name     string
		in       intent.TradeIntent
		wantKind error
		label    string
	}{
		{name: "zero amount", in: intent.TradeIntent{DestinationAddress: to, Amount: 0}, wantKind: ErrInvalidAmount, label: "invalid_amount"},
		{name: "amount over maximum", in: intent.TradeIntent{DestinationAddress: to, Amount: MaxTransferLamports + 1}, wantKind: ErrInvalidAmount, label: "invalid_amount"},
		{name: "short address", in: intent.TradeIntent{DestinationAddress: "ABC123", Amount: 10}, wantKind: ErrInvalidAddress, label: "invalid_address"},
		{name: "not base58", in: intent.TradeIntent{DestinationAddress: "0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl", Amount: 10}, wantKind: ErrInvalidAddress, label: "invalid_address"},
		{name: "empty address", in: intent.TradeIntent{DestinationAddress: "", Amount: 10}, wantKind: ErrInvalidAddress, label: "invalid_address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := Build(tt.in, from, "medium")

			require.Error(t, err)
			assert.Nil(t, inst)
			assert.ErrorIs(t, err, tt.wantKind)

			var buildErr *BuildError
			require.True(t, errors.As(err, &buildErr))
			assert.Equal(t, tt.label, buildErr.KindLabel())
		})
	}
}

func TestBuild_FromExtractedIntent(t *testing.T) {
	from := newTestKey(t).PublicKey()
	to := newTestKey(t).PublicKey()

	in, err := intent.Extract(fmt.Sprintf("gm\nToken Address: %s\nAmount: 500 lamports", to))
	require.NoError(t, err)

	inst, err := Build(in, from, "low")

	require.NoError(t, err)
	assert.Equal(t, to, inst.To)
	assert.Equal(t, uint64(500), inst.Lamports)
}

func TestTransferInstruction_SystemInstruction(t *testing.T) {
	from := newTestKey(t).PublicKey()
	to := newTestKey(t).PublicKey()
	inst, err := Build(intent.TradeIntent{DestinationAddress: to.String(), Amount: 42}, from, "medium")
	require.NoError(t, err)

	instruction := inst.SystemInstruction()

	assert.Equal(t, solana.SystemProgramID, instruction.ProgramID())
	accounts := instruction.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, from, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, to, accounts[1].PublicKey)

	data, err := instruction.Data()
	require.NoError(t, err)
	assert.Equal(t, transferData(42), data)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "built", StateBuilt.String())
	assert.Equal(t, "confirmed", StateConfirmed.String())
	assert.Equal(t, "rejected", StateRejected.String())
	assert.Equal(t, "state(99)", State(99).String())
}
