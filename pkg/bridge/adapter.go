// Package bridge hands verified transfers to a cross-chain messaging
// protocol. Each protocol is an Adapter with its own payload variant; the
// Selector picks the adapter for a route.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chainsafe/xchain-orchestrator/pkg/chain"
	"github.com/chainsafe/xchain-orchestrator/pkg/ethereum"
	"github.com/chainsafe/xchain-orchestrator/pkg/ethereum/contracts"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

// ErrNoAdapter is returned when no adapter supports a route.
var ErrNoAdapter = errors.New("no bridge adapter supports route")

// RelayState is the protocol-side delivery status of a relay.
type RelayState int

const (
	RelayInFlight RelayState = iota
	RelayDelivered
	RelayFailed
)

func (s RelayState) String() string {
	switch s {
	case RelayDelivered:
		return "delivered"
	case RelayFailed:
		return "failed"
	default:
		return "in_flight"
	}
}

// FeeQuote is the native-token fee the protocol charges for a message.
type FeeQuote struct {
	Adapter string
	Fee     *big.Int
}

// Route is a verified transfer resolved against the registry.
type Route struct {
	RecordID     string
	Source       *chain.Chain
	Destination  *chain.Chain
	SourceAsset  chain.Asset
	DestAsset    chain.Asset
	Recipient    common.Address
	Amount       *big.Int
	SourceTxHash common.Hash
}

// Message is a relay request for one transfer. Payload carries the
// adapter-specific variant.
type Message struct {
	RecordID    string
	Source      *chain.Chain
	Destination *chain.Chain
	Payload     Payload
}

// Adapter is one bridge protocol.
type Adapter interface {
	Name() string
	Supports(src, dst *chain.Chain, asset chain.Asset) bool
	// NewPayload builds this adapter's payload variant for a route.
	NewPayload(route Route) Payload
	SendMessage(ctx context.Context, msg Message) (*transfer.RelayReceipt, error)
	EstimateFee(ctx context.Context, msg Message) (*FeeQuote, error)
	// LookupRelay returns the receipt of a message already accepted by the
	// protocol for msg's correlation id, or nil when none exists.
	LookupRelay(ctx context.Context, msg Message) (*transfer.RelayReceipt, error)
	RelayStatus(ctx context.Context, src *chain.Chain, receipt *transfer.RelayReceipt) (RelayState, error)
}

// CorrelationID derives the protocol message id of a record.
func CorrelationID(recordID string) common.Hash {
	return crypto.Keccak256Hash([]byte(recordID))
}

// Classify maps an adapter failure onto the transfer error taxonomy.
// Errors already classified pass through unchanged.
func Classify(err error) error {
	return ethereum.ClassifyError("relay", err)
}

func toRelayState(status contracts.DeliveryStatus) RelayState {
	switch status {
	case contracts.DeliveryDelivered:
		return RelayDelivered
	case contracts.DeliveryFailed:
		return RelayFailed
	default:
		return RelayInFlight
	}
}

func view(ctx context.Context, c *chain.Chain, to common.Address, data []byte) ([]byte, error) {
	tx, err := c.Transactor()
	if err != nil {
		return nil, err
	}
	return tx.View(ctx, to, data)
}

func parseCorrelationID(receipt *transfer.RelayReceipt) (common.Hash, error) {
	if receipt == nil {
		return common.Hash{}, fmt.Errorf("missing relay receipt")
	}
	return ethereum.ParseHash(receipt.CorrelationID)
}
