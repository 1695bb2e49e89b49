package bridge

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Payload is the tagged union of adapter payloads. Only the variants in
// this package implement it.
type Payload interface {
	Kind() string
	isPayload()
}

const (
	PayloadPortal  = "portal"
	PayloadGeneric = "generic"
)

// PortalPayload is the argument set of a native portal relayLock call.
type PortalPayload struct {
	RelayID      common.Hash
	DestChainID  *big.Int
	Token        common.Address
	Recipient    common.Address
	Amount       *big.Int
	SourceTxHash common.Hash
}

func (*PortalPayload) Kind() string { return PayloadPortal }
func (*PortalPayload) isPayload()   {}

// GenericPayload is the message body carried by the generic messaging
// contract. It is ABI encoded so the destination side can decode it.
type GenericPayload struct {
	CorrelationID common.Hash
	DestChainID   *big.Int
	SourceToken   common.Address
	DestToken     common.Address
	Recipient     common.Address
	Amount        *big.Int
	SourceTxHash  common.Hash
}

func (*GenericPayload) Kind() string { return PayloadGeneric }
func (*GenericPayload) isPayload()   {}

var genericArgs = mustArguments("address", "address", "address", "uint256", "bytes32")

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, name := range types {
		t, err := abi.NewType(name, "", nil)
		if err != nil {
			panic(fmt.Sprintf("invalid abi type %s: %v", name, err))
		}
		args[i] = abi.Argument{Type: t}
	}
	return args
}

// Encode ABI encodes the message body.
func (p *GenericPayload) Encode() ([]byte, error) {
	return genericArgs.Pack(p.SourceToken, p.DestToken, p.Recipient, p.Amount, p.SourceTxHash)
}

// DecodeGenericPayload decodes a body produced by Encode. Correlation id and
// destination chain travel outside the body and are left unset.
func DecodeGenericPayload(data []byte) (*GenericPayload, error) {
	values, err := genericArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode generic payload: %w", err)
	}
	return &GenericPayload{
		SourceToken:  values[0].(common.Address),
		DestToken:    values[1].(common.Address),
		Recipient:    values[2].(common.Address),
		Amount:       values[3].(*big.Int),
		SourceTxHash: values[4].([32]byte),
	}, nil
}
