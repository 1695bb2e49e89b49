package bridge

import (
	"fmt"

	"github.com/chainsafe/xchain-orchestrator/pkg/chain"
	"github.com/chainsafe/xchain-orchestrator/pkg/ethereum"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

// Selector chooses the adapter for a route. Adapters are tried in order,
// so the native portal is listed first.
type Selector struct {
	registry *chain.Registry
	adapters []Adapter
}

// NewSelector creates a selector over adapters. With none given it uses the
// native portal followed by the generic messenger.
func NewSelector(registry *chain.Registry, adapters ...Adapter) *Selector {
	if len(adapters) == 0 {
		adapters = []Adapter{NewNativePortalAdapter(), NewGenericMessageAdapter()}
	}
	return &Selector{registry: registry, adapters: adapters}
}

// For returns the first adapter supporting the route.
func (s *Selector) For(src, dst *chain.Chain, asset chain.Asset) (Adapter, error) {
	for _, a := range s.adapters {
		if a.Supports(src, dst, asset) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s -> %s (%s)", ErrNoAdapter, src.ID, dst.ID, asset.Symbol)
}

// ByName returns the adapter that produced a persisted receipt.
func (s *Selector) ByName(name string) (Adapter, error) {
	for _, a := range s.adapters {
		if a.Name() == name {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown adapter %q", ErrNoAdapter, name)
}

// Resolve looks up the chains and assets of rec. Registry misses are
// permanent: configuration does not change under a running record.
func (s *Selector) Resolve(rec *transfer.Record) (Route, error) {
	src, err := s.registry.Get(rec.SourceChain)
	if err != nil {
		return Route{}, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	dst, err := s.registry.Get(rec.DestinationChain)
	if err != nil {
		return Route{}, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	srcAsset, err := s.registry.Asset(src.ID, rec.Asset)
	if err != nil {
		return Route{}, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	dstAsset, err := s.registry.Asset(dst.ID, rec.Asset)
	if err != nil {
		return Route{}, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	recipient, err := ethereum.ParseAddress(rec.DestinationAddress)
	if err != nil {
		return Route{}, transfer.Permanent(transfer.ReasonDestinationRejected, err)
	}
	route := Route{
		RecordID:    rec.ID,
		Source:      src,
		Destination: dst,
		SourceAsset: srcAsset,
		DestAsset:   dstAsset,
		Recipient:   recipient,
		Amount:      rec.Amount,
	}
	if rec.SourceTxHash != "" {
		hash, err := ethereum.ParseHash(rec.SourceTxHash)
		if err != nil {
			return Route{}, transfer.Permanent(transfer.ReasonContractRejected, err)
		}
		route.SourceTxHash = hash
	}
	return route, nil
}

// Prepare resolves rec and builds the message for the selected adapter.
func (s *Selector) Prepare(rec *transfer.Record) (Adapter, Message, error) {
	route, err := s.Resolve(rec)
	if err != nil {
		return nil, Message{}, err
	}
	adapter, err := s.For(route.Source, route.Destination, route.SourceAsset)
	if err != nil {
		return nil, Message{}, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	return adapter, Message{
		RecordID:    rec.ID,
		Source:      route.Source,
		Destination: route.Destination,
		Payload:     adapter.NewPayload(route),
	}, nil
}
