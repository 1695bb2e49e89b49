package fakechain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainsafe/xchain-orchestrator/pkg/ethereum/contracts"
)

type invocation struct {
	method *abi.Method
	args   []interface{}
}

func decode(contract abi.ABI, data []byte) (*invocation, error) {
	if len(data) < 4 {
		return nil, errors.New("missing selector")
	}
	method, err := contract.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method.Name, err)
	}
	return &invocation{method: method, args: args}, nil
}

func (c *Chain) contractFor(to common.Address) (abi.ABI, bool) {
	switch to {
	case c.contracts.Bridge:
		return contracts.BridgeABI, true
	case c.contracts.Portal:
		return contracts.PortalABI, true
	case c.contracts.Aggregator:
		return contracts.AggregatorABI, true
	}
	return abi.ABI{}, false
}

// callLocked serves view methods and replays state-changing calls so that a
// failed transaction's revert reason can be recovered.
func (c *Chain) callLocked(to common.Address, data []byte) ([]byte, error) {
	contract, ok := c.contractFor(to)
	if !ok {
		return nil, nil
	}
	inv, err := decode(contract, data)
	if err != nil {
		return nil, NewRevertError("unknown selector")
	}

	switch inv.method.Name {
	case "isCompleted":
		id := common.Hash(inv.args[0].([32]byte))
		_, done := c.completed[id]
		return inv.method.Outputs.Pack(done)
	case "messageFee":
		return inv.method.Outputs.Pack(new(big.Int).Set(c.messageFee))
	case "relayFee":
		return inv.method.Outputs.Pack(new(big.Int).Set(c.relayFee))
	case "messageStatus":
		return inv.method.Outputs.Pack(uint8(statusOf(c.messages, inv.args[0].([32]byte))))
	case "relayStatus":
		return inv.method.Outputs.Pack(uint8(statusOf(c.relays, inv.args[0].([32]byte))))
	}

	if _, err := c.dryRunLocked(to, data); err != nil {
		return nil, err
	}
	return nil, nil
}

func statusOf(m map[common.Hash]*delivery, id [32]byte) contracts.DeliveryStatus {
	if d, ok := m[common.Hash(id)]; ok {
		return d.status
	}
	return contracts.DeliveryUnknown
}

// dryRunLocked evaluates a state-changing call without applying it.
func (c *Chain) dryRunLocked(to common.Address, data []byte) (bool, error) {
	contract, ok := c.contractFor(to)
	if !ok {
		return true, nil
	}
	inv, err := decode(contract, data)
	if err != nil {
		return false, NewRevertError("unknown selector")
	}
	if inv.method.Name != "swapAndComplete" {
		return true, nil
	}

	id := common.Hash(inv.args[0].([32]byte))
	if _, done := c.completed[id]; done {
		return true, nil
	}
	amountIn := inv.args[3].(*big.Int)
	amountOutMin := inv.args[4].(*big.Int)
	route := inv.args[6].([]common.Address)
	if len(route) < 2 {
		return false, NewRevertError("INVALID_PATH")
	}
	out := new(big.Int).Set(amountIn)
	if c.swapOutput != nil {
		out = c.swapOutput(amountIn)
	}
	if out.Cmp(amountOutMin) < 0 {
		return false, NewRevertError("INSUFFICIENT_OUTPUT_AMOUNT")
	}
	return true, nil
}

func (c *Chain) applyLocked(tx *types.Transaction) ([]types.Log, error) {
	if tx.To() == nil {
		return nil, nil
	}
	to := *tx.To()
	contract, ok := c.contractFor(to)
	if !ok {
		return nil, nil
	}
	inv, err := decode(contract, tx.Data())
	if err != nil {
		return nil, err
	}

	switch inv.method.Name {
	case "completeTransfer":
		recipient := inv.args[0].(common.Address)
		token := inv.args[1].(common.Address)
		amount := inv.args[2].(*big.Int)
		id := common.Hash(inv.args[3].([32]byte))
		return c.completeLocked(id, recipient, token, amount, tx.Hash())

	case "swapAndComplete":
		if _, err := c.dryRunLocked(to, tx.Data()); err != nil {
			return nil, err
		}
		id := common.Hash(inv.args[0].([32]byte))
		tokenOut := inv.args[2].(common.Address)
		amountIn := inv.args[3].(*big.Int)
		recipient := inv.args[5].(common.Address)
		out := new(big.Int).Set(amountIn)
		if c.swapOutput != nil {
			out = c.swapOutput(amountIn)
		}
		return c.completeLocked(id, recipient, tokenOut, out, tx.Hash())

	case "sendMessage":
		corr := common.Hash(inv.args[2].([32]byte))
		if _, exists := c.messages[corr]; !exists {
			c.messages[corr] = &delivery{status: contracts.DeliverySent, sentBlock: c.head}
		}
		return nil, nil

	case "relayLock":
		id := common.Hash(inv.args[0].([32]byte))
		if _, exists := c.relays[id]; !exists {
			c.relays[id] = &delivery{status: contracts.DeliverySent, sentBlock: c.head}
		}
		return nil, nil
	}
	return nil, nil
}

// completeLocked credits the recipient once per transfer id. Repeats are
// counted but accepted as no-ops without an event.
func (c *Chain) completeLocked(id common.Hash, recipient, token common.Address, amount *big.Int, txHash common.Hash) ([]types.Log, error) {
	if comp, done := c.completed[id]; done {
		comp.calls++
		return nil, nil
	}
	c.completed[id] = &completion{txHash: txHash, calls: 1}

	data, err := contracts.PackTransferCompleted(token, amount)
	if err != nil {
		return nil, err
	}
	return []types.Log{{
		Address: c.contracts.Bridge,
		Topics: []common.Hash{
			contracts.TransferCompletedTopic,
			id,
			common.BytesToHash(recipient.Bytes()),
		},
		Data: data,
	}}, nil
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func matchTopics(filter [][]common.Hash, topics []common.Hash) bool {
	if len(filter) > len(topics) {
		return false
	}
	for i, alternatives := range filter {
		if len(alternatives) == 0 {
			continue
		}
		found := false
		for _, t := range alternatives {
			if t == topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
