package bridge_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/xchain-orchestrator/pkg/bridge"
	"github.com/chainsafe/xchain-orchestrator/pkg/chain/chaintest"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

func verifiedRecord(asset string) *transfer.Record {
	now := time.Now()
	return &transfer.Record{
		ID:                 uuid.NewString(),
		OwnerID:            "owner",
		SourceChain:        chaintest.ChainA,
		DestinationChain:   chaintest.ChainB,
		Asset:              asset,
		Amount:             big.NewInt(100),
		DestinationAddress: chaintest.Recipient.Hex(),
		Kind:               transfer.KindTransfer,
		Status:             transfer.StatusBridging,
		SourceTxHash:       crypto.Keccak256Hash([]byte("lock")).Hex(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestSelector_PrefersNativePortal(t *testing.T) {
	env := chaintest.New(t)
	sel := bridge.NewSelector(env.Registry)

	adapter, msg, err := sel.Prepare(verifiedRecord(chaintest.AssetP))
	require.NoError(t, err)
	assert.Equal(t, "native_portal", adapter.Name())
	assert.Equal(t, bridge.PayloadPortal, msg.Payload.Kind())

	adapter, msg, err = sel.Prepare(verifiedRecord(chaintest.AssetX))
	require.NoError(t, err)
	assert.Equal(t, "generic_message", adapter.Name())
	assert.Equal(t, bridge.PayloadGeneric, msg.Payload.Kind())
}

func TestSelector_UnknownRouteIsPermanent(t *testing.T) {
	env := chaintest.New(t)
	sel := bridge.NewSelector(env.Registry)

	rec := verifiedRecord(chaintest.AssetY)
	_, _, err := sel.Prepare(rec)
	reason, ok := transfer.PermanentReason(err)
	require.True(t, ok)
	assert.Equal(t, transfer.ReasonUnsupportedRoute, reason)
}

func TestGenericAdapter_SendLookupStatus(t *testing.T) {
	env := chaintest.New(t)
	sel := bridge.NewSelector(env.Registry)
	ctx := context.Background()

	rec := verifiedRecord(chaintest.AssetX)
	adapter, msg, err := sel.Prepare(rec)
	require.NoError(t, err)

	existing, err := adapter.LookupRelay(ctx, msg)
	require.NoError(t, err)
	assert.Nil(t, existing)

	fee, err := adapter.EstimateFee(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), fee.Fee.Int64())

	receipt, err := adapter.SendMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, bridge.CorrelationID(rec.ID).Hex(), receipt.CorrelationID)
	assert.NotEmpty(t, receipt.TxHash)

	state, err := adapter.RelayStatus(ctx, msg.Source, receipt)
	require.NoError(t, err)
	assert.Equal(t, bridge.RelayInFlight, state)

	env.A.Mine(1)
	state, err = adapter.RelayStatus(ctx, msg.Source, receipt)
	require.NoError(t, err)
	assert.Equal(t, bridge.RelayDelivered, state)

	found, err := adapter.LookupRelay(ctx, msg)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, receipt.CorrelationID, found.CorrelationID)
}

func TestPortalAdapter_FailedDelivery(t *testing.T) {
	env := chaintest.New(t)
	sel := bridge.NewSelector(env.Registry)
	ctx := context.Background()

	rec := verifiedRecord(chaintest.AssetP)
	adapter, msg, err := sel.Prepare(rec)
	require.NoError(t, err)

	fee, err := adapter.EstimateFee(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, int64(500), fee.Fee.Int64())

	receipt, err := adapter.SendMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, bridge.PayloadPortal, receipt.PayloadKind)

	env.A.FailDelivery(bridge.CorrelationID(rec.ID))
	state, err := adapter.RelayStatus(ctx, msg.Source, receipt)
	require.NoError(t, err)
	assert.Equal(t, bridge.RelayFailed, state)
}

func TestAdapter_RejectsForeignPayload(t *testing.T) {
	env := chaintest.New(t)
	sel := bridge.NewSelector(env.Registry)

	_, msg, err := sel.Prepare(verifiedRecord(chaintest.AssetP))
	require.NoError(t, err)

	_, err = bridge.NewGenericMessageAdapter().SendMessage(context.Background(), msg)
	_, ok := transfer.PermanentReason(err)
	assert.True(t, ok)
}

func TestAdapter_SendErrorsAreClassified(t *testing.T) {
	env := chaintest.New(t)
	sel := bridge.NewSelector(env.Registry)

	adapter, msg, err := sel.Prepare(verifiedRecord(chaintest.AssetX))
	require.NoError(t, err)

	env.A.FailNext("eth_sendRawTransaction", errors.New("replacement transaction underpriced"))
	_, err = adapter.SendMessage(context.Background(), msg)
	assert.True(t, transfer.IsTransient(err))

	env.A.FailNext("eth_sendRawTransaction", errors.New("insufficient funds for gas * price + value"))
	_, err = adapter.SendMessage(context.Background(), msg)
	reason, ok := transfer.PermanentReason(err)
	require.True(t, ok)
	assert.Equal(t, transfer.ReasonInsufficientFunds, reason)
}

func TestGenericPayload_Encode(t *testing.T) {
	p := &bridge.GenericPayload{
		SourceToken:  chaintest.TokenXA,
		DestToken:    chaintest.TokenXB,
		Recipient:    chaintest.Recipient,
		Amount:       big.NewInt(42),
		SourceTxHash: crypto.Keccak256Hash([]byte("src")),
	}
	body, err := p.Encode()
	require.NoError(t, err)

	decoded, err := bridge.DecodeGenericPayload(body)
	require.NoError(t, err)
	assert.Equal(t, p.Recipient, decoded.Recipient)
	assert.Equal(t, p.DestToken, decoded.DestToken)
	assert.Equal(t, 0, p.Amount.Cmp(decoded.Amount))
	assert.Equal(t, p.SourceTxHash, decoded.SourceTxHash)

	_, err = bridge.DecodeGenericPayload([]byte{0x01})
	assert.Error(t, err)
}
