package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/chainsafe/xchain-orchestrator/pkg/chain"
	"github.com/chainsafe/xchain-orchestrator/pkg/ethereum"
	"github.com/chainsafe/xchain-orchestrator/pkg/ethereum/contracts"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

// NativePortalAdapter relays through the chain's native lock-and-mint
// portal contract.
type NativePortalAdapter struct{}

// NewNativePortalAdapter creates the adapter.
func NewNativePortalAdapter() *NativePortalAdapter {
	return &NativePortalAdapter{}
}

func (a *NativePortalAdapter) Name() string { return "native_portal" }

// Supports requires a portal on the source chain and an asset it handles.
func (a *NativePortalAdapter) Supports(src, _ *chain.Chain, asset chain.Asset) bool {
	return src.HasPortal() && asset.NativePortal
}

func (a *NativePortalAdapter) NewPayload(r Route) Payload {
	return &PortalPayload{
		RelayID:      CorrelationID(r.RecordID),
		DestChainID:  r.Destination.ChainID,
		Token:        r.SourceAsset.Address,
		Recipient:    r.Recipient,
		Amount:       r.Amount,
		SourceTxHash: r.SourceTxHash,
	}
}

func (a *NativePortalAdapter) payload(msg Message) (*PortalPayload, error) {
	p, ok := msg.Payload.(*PortalPayload)
	if !ok {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute,
			fmt.Errorf("%s adapter cannot send %T", a.Name(), msg.Payload))
	}
	return p, nil
}

func (a *NativePortalAdapter) EstimateFee(ctx context.Context, msg Message) (*FeeQuote, error) {
	p, err := a.payload(msg)
	if err != nil {
		return nil, err
	}
	data, err := contracts.PortalABI.Pack("relayFee", p.DestChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to pack relayFee: %w", err)
	}
	out, err := view(ctx, msg.Source, msg.Source.PortalContract, data)
	if err != nil {
		return nil, Classify(err)
	}
	fee, err := contracts.UnpackUint256(contracts.PortalABI, "relayFee", out)
	if err != nil {
		return nil, transfer.Transient("relayFee", err)
	}
	return &FeeQuote{Adapter: a.Name(), Fee: fee}, nil
}

func (a *NativePortalAdapter) SendMessage(ctx context.Context, msg Message) (*transfer.RelayReceipt, error) {
	p, err := a.payload(msg)
	if err != nil {
		return nil, err
	}
	fee, err := a.EstimateFee(ctx, msg)
	if err != nil {
		return nil, err
	}
	data, err := contracts.PortalABI.Pack("relayLock", p.RelayID, p.DestChainID, p.Token, p.Recipient, p.Amount, p.SourceTxHash)
	if err != nil {
		return nil, fmt.Errorf("failed to pack relayLock: %w", err)
	}
	tx, err := msg.Source.Transactor()
	if err != nil {
		return nil, err
	}
	hash, err := tx.Send(ctx, ethereum.Call{
		Operation: "relay_lock",
		To:        msg.Source.PortalContract,
		Data:      data,
		Value:     fee.Fee,
	})
	if err != nil {
		return nil, Classify(err)
	}
	return &transfer.RelayReceipt{
		Adapter:       a.Name(),
		PayloadKind:   p.Kind(),
		CorrelationID: p.RelayID.Hex(),
		TxHash:        hash.Hex(),
		SentAt:        time.Now().UTC(),
	}, nil
}

func (a *NativePortalAdapter) status(ctx context.Context, src *chain.Chain, id [32]byte) (contracts.DeliveryStatus, error) {
	data, err := contracts.PortalABI.Pack("relayStatus", id)
	if err != nil {
		return contracts.DeliveryUnknown, fmt.Errorf("failed to pack relayStatus: %w", err)
	}
	out, err := view(ctx, src, src.PortalContract, data)
	if err != nil {
		return contracts.DeliveryUnknown, Classify(err)
	}
	status, err := contracts.UnpackStatus(contracts.PortalABI, "relayStatus", out)
	if err != nil {
		return contracts.DeliveryUnknown, transfer.Transient("relayStatus", err)
	}
	return status, nil
}

func (a *NativePortalAdapter) LookupRelay(ctx context.Context, msg Message) (*transfer.RelayReceipt, error) {
	p, err := a.payload(msg)
	if err != nil {
		return nil, err
	}
	status, err := a.status(ctx, msg.Source, p.RelayID)
	if err != nil {
		return nil, err
	}
	if status == contracts.DeliveryUnknown {
		return nil, nil
	}
	return &transfer.RelayReceipt{
		Adapter:       a.Name(),
		PayloadKind:   p.Kind(),
		CorrelationID: p.RelayID.Hex(),
		SentAt:        time.Now().UTC(),
	}, nil
}

func (a *NativePortalAdapter) RelayStatus(ctx context.Context, src *chain.Chain, receipt *transfer.RelayReceipt) (RelayState, error) {
	id, err := parseCorrelationID(receipt)
	if err != nil {
		return RelayInFlight, transfer.Permanent(transfer.ReasonRelayFailed, err)
	}
	status, err := a.status(ctx, src, id)
	if err != nil {
		return RelayInFlight, err
	}
	return toRelayState(status), nil
}
