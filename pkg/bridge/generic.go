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

// GenericMessageAdapter packs the transfer into an ABI encoded message
// and submits it to the bridge contract's messaging entrypoint.
type GenericMessageAdapter struct{}

// NewGenericMessageAdapter creates the adapter.
func NewGenericMessageAdapter() *GenericMessageAdapter {
	return &GenericMessageAdapter{}
}

func (a *GenericMessageAdapter) Name() string { return "generic_message" }

// Supports accepts any cross-chain route; every configured chain runs the
// bridge contract.
func (a *GenericMessageAdapter) Supports(src, dst *chain.Chain, _ chain.Asset) bool {
	return src.ID != dst.ID
}

func (a *GenericMessageAdapter) NewPayload(r Route) Payload {
	return &GenericPayload{
		CorrelationID: CorrelationID(r.RecordID),
		DestChainID:   r.Destination.ChainID,
		SourceToken:   r.SourceAsset.Address,
		DestToken:     r.DestAsset.Address,
		Recipient:     r.Recipient,
		Amount:        r.Amount,
		SourceTxHash:  r.SourceTxHash,
	}
}

func (a *GenericMessageAdapter) payload(msg Message) (*GenericPayload, []byte, error) {
	p, ok := msg.Payload.(*GenericPayload)
	if !ok {
		return nil, nil, transfer.Permanent(transfer.ReasonUnsupportedRoute,
			fmt.Errorf("%s adapter cannot send %T", a.Name(), msg.Payload))
	}
	body, err := p.Encode()
	if err != nil {
		return nil, nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, fmt.Errorf("failed to encode payload: %w", err))
	}
	return p, body, nil
}

func (a *GenericMessageAdapter) EstimateFee(ctx context.Context, msg Message) (*FeeQuote, error) {
	p, body, err := a.payload(msg)
	if err != nil {
		return nil, err
	}
	data, err := contracts.BridgeABI.Pack("messageFee", p.DestChainID, body)
	if err != nil {
		return nil, fmt.Errorf("failed to pack messageFee: %w", err)
	}
	out, err := view(ctx, msg.Source, msg.Source.BridgeContract, data)
	if err != nil {
		return nil, Classify(err)
	}
	fee, err := contracts.UnpackUint256(contracts.BridgeABI, "messageFee", out)
	if err != nil {
		return nil, transfer.Transient("messageFee", err)
	}
	return &FeeQuote{Adapter: a.Name(), Fee: fee}, nil
}

func (a *GenericMessageAdapter) SendMessage(ctx context.Context, msg Message) (*transfer.RelayReceipt, error) {
	p, body, err := a.payload(msg)
	if err != nil {
		return nil, err
	}
	fee, err := a.EstimateFee(ctx, msg)
	if err != nil {
		return nil, err
	}
	data, err := contracts.BridgeABI.Pack("sendMessage", p.DestChainID, body, p.CorrelationID)
	if err != nil {
		return nil, fmt.Errorf("failed to pack sendMessage: %w", err)
	}
	tx, err := msg.Source.Transactor()
	if err != nil {
		return nil, err
	}
	hash, err := tx.Send(ctx, ethereum.Call{
		Operation: "send_message",
		To:        msg.Source.BridgeContract,
		Data:      data,
		Value:     fee.Fee,
	})
	if err != nil {
		return nil, Classify(err)
	}
	return &transfer.RelayReceipt{
		Adapter:       a.Name(),
		PayloadKind:   p.Kind(),
		CorrelationID: p.CorrelationID.Hex(),
		TxHash:        hash.Hex(),
		SentAt:        time.Now().UTC(),
	}, nil
}

func (a *GenericMessageAdapter) status(ctx context.Context, src *chain.Chain, id [32]byte) (contracts.DeliveryStatus, error) {
	data, err := contracts.BridgeABI.Pack("messageStatus", id)
	if err != nil {
		return contracts.DeliveryUnknown, fmt.Errorf("failed to pack messageStatus: %w", err)
	}
	out, err := view(ctx, src, src.BridgeContract, data)
	if err != nil {
		return contracts.DeliveryUnknown, Classify(err)
	}
	status, err := contracts.UnpackStatus(contracts.BridgeABI, "messageStatus", out)
	if err != nil {
		return contracts.DeliveryUnknown, transfer.Transient("messageStatus", err)
	}
	return status, nil
}

func (a *GenericMessageAdapter) LookupRelay(ctx context.Context, msg Message) (*transfer.RelayReceipt, error) {
	p, _, err := a.payload(msg)
	if err != nil {
		return nil, err
	}
	status, err := a.status(ctx, msg.Source, p.CorrelationID)
	if err != nil {
		return nil, err
	}
	if status == contracts.DeliveryUnknown {
		return nil, nil
	}
	return &transfer.RelayReceipt{
		Adapter:       a.Name(),
		PayloadKind:   p.Kind(),
		CorrelationID: p.CorrelationID.Hex(),
		SentAt:        time.Now().UTC(),
	}, nil
}

func (a *GenericMessageAdapter) RelayStatus(ctx context.Context, src *chain.Chain, receipt *transfer.RelayReceipt) (RelayState, error) {
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
