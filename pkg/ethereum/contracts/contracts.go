// Package contracts holds the ABIs of the on-chain entrypoints the
// orchestrator talks to and typed helpers around packing calls and
// decoding events.
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const bridgeJSON = `[
  {"type":"event","name":"TransferLocked","anonymous":false,"inputs":[
    {"name":"token","type":"address","indexed":true},
    {"name":"sender","type":"address","indexed":true},
    {"name":"recipient","type":"address","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"destChainId","type":"uint256","indexed":false},
    {"name":"nonce","type":"bytes32","indexed":false}]},
  {"type":"event","name":"TransferCompleted","anonymous":false,"inputs":[
    {"name":"transferId","type":"bytes32","indexed":true},
    {"name":"recipient","type":"address","indexed":true},
    {"name":"token","type":"address","indexed":false},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"MessageSent","anonymous":false,"inputs":[
    {"name":"correlationId","type":"bytes32","indexed":true},
    {"name":"destChainId","type":"uint256","indexed":false},
    {"name":"payload","type":"bytes","indexed":false}]},
  {"type":"function","name":"completeTransfer","stateMutability":"nonpayable","inputs":[
    {"name":"recipient","type":"address"},
    {"name":"token","type":"address"},
    {"name":"amount","type":"uint256"},
    {"name":"transferId","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"isCompleted","stateMutability":"view","inputs":[
    {"name":"transferId","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"sendMessage","stateMutability":"payable","inputs":[
    {"name":"destChainId","type":"uint256"},
    {"name":"payload","type":"bytes"},
    {"name":"correlationId","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"messageFee","stateMutability":"view","inputs":[
    {"name":"destChainId","type":"uint256"},
    {"name":"payload","type":"bytes"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"messageStatus","stateMutability":"view","inputs":[
    {"name":"correlationId","type":"bytes32"}],"outputs":[{"name":"","type":"uint8"}]}
]`

const portalJSON = `[
  {"type":"function","name":"relayLock","stateMutability":"payable","inputs":[
    {"name":"relayId","type":"bytes32"},
    {"name":"destChainId","type":"uint256"},
    {"name":"token","type":"address"},
    {"name":"recipient","type":"address"},
    {"name":"amount","type":"uint256"},
    {"name":"sourceTxHash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"relayFee","stateMutability":"view","inputs":[
    {"name":"destChainId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"relayStatus","stateMutability":"view","inputs":[
    {"name":"relayId","type":"bytes32"}],"outputs":[{"name":"","type":"uint8"}]}
]`

const aggregatorJSON = `[
  {"type":"function","name":"swapAndComplete","stateMutability":"nonpayable","inputs":[
    {"name":"transferId","type":"bytes32"},
    {"name":"tokenIn","type":"address"},
    {"name":"tokenOut","type":"address"},
    {"name":"amountIn","type":"uint256"},
    {"name":"amountOutMin","type":"uint256"},
    {"name":"recipient","type":"address"},
    {"name":"route","type":"address[]"}],"outputs":[]}
]`

var (
	BridgeABI     = mustParse(bridgeJSON)
	PortalABI     = mustParse(portalJSON)
	AggregatorABI = mustParse(aggregatorJSON)

	TransferLockedTopic    = BridgeABI.Events["TransferLocked"].ID
	TransferCompletedTopic = BridgeABI.Events["TransferCompleted"].ID
)

// DeliveryStatus is the status code returned by messageStatus and relayStatus.
type DeliveryStatus uint8

const (
	DeliveryUnknown DeliveryStatus = iota
	DeliverySent
	DeliveryDelivered
	DeliveryFailed
)

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid contract ABI: %v", err))
	}
	return parsed
}

// TransferLocked is the source-chain lock event.
type TransferLocked struct {
	Token       common.Address
	Sender      common.Address
	Recipient   common.Address
	Amount      *big.Int
	DestChainID *big.Int
	Nonce       [32]byte

	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// UnpackTransferLocked decodes a TransferLocked log.
func UnpackTransferLocked(log types.Log) (*TransferLocked, error) {
	if len(log.Topics) != 3 || log.Topics[0] != TransferLockedTopic {
		return nil, fmt.Errorf("log is not a TransferLocked event")
	}
	var data struct {
		Recipient   common.Address
		Amount      *big.Int
		DestChainId *big.Int
		Nonce       [32]byte
	}
	if err := BridgeABI.UnpackIntoInterface(&data, "TransferLocked", log.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack TransferLocked: %w", err)
	}
	return &TransferLocked{
		Token:       common.BytesToAddress(log.Topics[1].Bytes()),
		Sender:      common.BytesToAddress(log.Topics[2].Bytes()),
		Recipient:   data.Recipient,
		Amount:      data.Amount,
		DestChainID: data.DestChainId,
		Nonce:       data.Nonce,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
	}, nil
}

// PackTransferLocked encodes the non-indexed part of a TransferLocked event.
func PackTransferLocked(recipient common.Address, amount, destChainID *big.Int, nonce [32]byte) ([]byte, error) {
	return BridgeABI.Events["TransferLocked"].Inputs.NonIndexed().Pack(recipient, amount, destChainID, nonce)
}

// TransferCompleted is the destination-chain completion event.
type TransferCompleted struct {
	TransferID common.Hash
	Recipient  common.Address
	Token      common.Address
	Amount     *big.Int
	TxHash     common.Hash
}

// UnpackTransferCompleted decodes a TransferCompleted log.
func UnpackTransferCompleted(log types.Log) (*TransferCompleted, error) {
	if len(log.Topics) != 3 || log.Topics[0] != TransferCompletedTopic {
		return nil, fmt.Errorf("log is not a TransferCompleted event")
	}
	var data struct {
		Token  common.Address
		Amount *big.Int
	}
	if err := BridgeABI.UnpackIntoInterface(&data, "TransferCompleted", log.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack TransferCompleted: %w", err)
	}
	return &TransferCompleted{
		TransferID: log.Topics[1],
		Recipient:  common.BytesToAddress(log.Topics[2].Bytes()),
		Token:      data.Token,
		Amount:     data.Amount,
		TxHash:     log.TxHash,
	}, nil
}

// PackTransferCompleted encodes the non-indexed part of a TransferCompleted event.
func PackTransferCompleted(token common.Address, amount *big.Int) ([]byte, error) {
	return BridgeABI.Events["TransferCompleted"].Inputs.NonIndexed().Pack(token, amount)
}

// UnpackBool decodes a single bool return value of method on contract.
func UnpackBool(contract abi.ABI, method string, out []byte) (bool, error) {
	values, err := contract.Unpack(method, out)
	if err != nil {
		return false, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	v, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected %s return type %T", method, values[0])
	}
	return v, nil
}

// UnpackUint256 decodes a single uint256 return value.
func UnpackUint256(contract abi.ABI, method string, out []byte) (*big.Int, error) {
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s return type %T", method, values[0])
	}
	return v, nil
}

// UnpackStatus decodes a single uint8 delivery status.
func UnpackStatus(contract abi.ABI, method string, out []byte) (DeliveryStatus, error) {
	values, err := contract.Unpack(method, out)
	if err != nil {
		return DeliveryUnknown, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	v, ok := values[0].(uint8)
	if !ok {
		return DeliveryUnknown, fmt.Errorf("unexpected %s return type %T", method, values[0])
	}
	return DeliveryStatus(v), nil
}
