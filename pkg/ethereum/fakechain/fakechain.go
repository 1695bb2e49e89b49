// Package fakechain is an in-memory EVM chain that speaks the subset of
// JSON-RPC used by the orchestrator and emulates the bridge, portal and
// aggregator contracts. It backs unit and scenario tests.
package fakechain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chainsafe/xchain-orchestrator/pkg/ethereum"
	"github.com/chainsafe/xchain-orchestrator/pkg/ethereum/contracts"
)

// Contracts are the addresses the fake chain emulates.
type Contracts struct {
	Bridge     common.Address
	Portal     common.Address
	Aggregator common.Address
}

type delivery struct {
	status    contracts.DeliveryStatus
	sentBlock uint64
}

type completion struct {
	txHash common.Hash
	calls  int
}

// RevertError mimics a JSON-RPC execution reverted error carrying an
// Error(string) payload.
type RevertError struct {
	Reason string
	data   string
}

func (e *RevertError) Error() string          { return "execution reverted: " + e.Reason }
func (e *RevertError) ErrorCode() int         { return 3 }
func (e *RevertError) ErrorData() interface{} { return e.data }

// NewRevertError builds a revert error with ABI encoded reason data.
func NewRevertError(reason string) *RevertError {
	stringType, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: stringType}}.Pack(reason)
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return &RevertError{Reason: reason, data: hexutil.Encode(append(selector, packed...))}
}

// Chain is a single simulated chain. All methods are safe for concurrent use.
type Chain struct {
	mu sync.Mutex

	chainID   *big.Int
	contracts Contracts
	head      uint64
	gasPrice  *big.Int

	logs     []types.Log
	pool     []*types.Transaction
	txs      map[common.Hash]*types.Transaction
	receipts map[common.Hash]*types.Receipt
	nonces   map[common.Address]uint64

	completed map[common.Hash]*completion
	messages  map[common.Hash]*delivery
	relays    map[common.Hash]*delivery

	failures      map[string][]error
	holdMining    bool
	dropNext      bool
	deliveryDelay uint64
	swapOutput    func(amountIn *big.Int) *big.Int
	messageFee    *big.Int
	relayFee      *big.Int
	seq           uint64
}

var _ ethereum.ChainClient = (*Chain)(nil)

// New creates a chain at head 100 that auto-mines every accepted transaction.
func New(chainID int64, c Contracts) *Chain {
	return &Chain{
		chainID:       big.NewInt(chainID),
		contracts:     c,
		head:          100,
		gasPrice:      big.NewInt(1_000_000_000),
		txs:           make(map[common.Hash]*types.Transaction),
		receipts:      make(map[common.Hash]*types.Receipt),
		nonces:        make(map[common.Address]uint64),
		completed:     make(map[common.Hash]*completion),
		messages:      make(map[common.Hash]*delivery),
		relays:        make(map[common.Hash]*delivery),
		failures:      make(map[string][]error),
		deliveryDelay: 1,
		messageFee:    big.NewInt(1000),
		relayFee:      big.NewInt(500),
	}
}

// FailNext queues err to be returned by the next call of method.
func (c *Chain) FailNext(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[method] = append(c.failures[method], err)
}

// HoldMining leaves accepted transactions in the pool until Mine is called.
func (c *Chain) HoldMining(hold bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdMining = hold
}

// DropNextSend acknowledges the next transaction but forgets it, as a node
// that evicted it from its pool would.
func (c *Chain) DropNextSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropNext = true
}

// SetDeliveryDelay sets how many blocks after sending a relay is delivered.
func (c *Chain) SetDeliveryDelay(blocks uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveryDelay = blocks
}

// SetSwapOutput overrides the amount an aggregator swap produces.
func (c *Chain) SetSwapOutput(fn func(amountIn *big.Int) *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.swapOutput = fn
}

// FailDelivery marks a relay or message as failed by the protocol.
func (c *Chain) FailDelivery(id common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.messages[id]; ok {
		d.status = contracts.DeliveryFailed
	}
	if d, ok := c.relays[id]; ok {
		d.status = contracts.DeliveryFailed
	}
}

// Head returns the current block number.
func (c *Chain) Head() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head
}

// Mine produces n blocks. Pooled transactions are executed in the first one.
func (c *Chain) Mine(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		c.mineBlockLocked()
	}
}

// Lock emits a TransferLocked event from the bridge contract in a new block.
func (c *Chain) Lock(token, sender, recipient common.Address, amount, destChainID *big.Int) (common.Hash, uint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	txHash := crypto.Keccak256Hash(c.chainID.Bytes(), new(big.Int).SetUint64(c.seq).Bytes(), []byte("lock"))
	data, err := contracts.PackTransferLocked(recipient, amount, destChainID, txHash)
	if err != nil {
		panic(fmt.Sprintf("pack TransferLocked: %v", err))
	}

	c.head++
	index := uint(len(c.logs))
	c.logs = append(c.logs, types.Log{
		Address: c.contracts.Bridge,
		Topics: []common.Hash{
			contracts.TransferLockedTopic,
			common.BytesToHash(token.Bytes()),
			common.BytesToHash(sender.Bytes()),
		},
		Data:        data,
		BlockNumber: c.head,
		TxHash:      txHash,
		Index:       index,
	})
	c.deliverLocked()
	return txHash, index
}

// CompletionCalls returns how many mined transactions invoked completion
// for transferID. Only the first one credited the recipient.
func (c *Chain) CompletionCalls(transferID common.Hash) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if comp, ok := c.completed[transferID]; ok {
		return comp.calls
	}
	return 0
}

// CompletedBy returns the transaction that completed transferID.
func (c *Chain) CompletedBy(transferID common.Hash) (common.Hash, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if comp, ok := c.completed[transferID]; ok {
		return comp.txHash, true
	}
	return common.Hash{}, false
}

// PoolSize returns the number of accepted but unmined transactions.
func (c *Chain) PoolSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pool)
}

func (c *Chain) takeFailure(method string) error {
	queue := c.failures[method]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	c.failures[method] = queue[1:]
	return err
}

// ChainID implements ethereum.ChainClient
func (c *Chain) ChainID(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure("eth_chainId"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.chainID), nil
}

// BlockNumber implements ethereum.ChainClient
func (c *Chain) BlockNumber(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure("eth_blockNumber"); err != nil {
		return 0, err
	}
	return c.head, nil
}

// FilterLogs implements ethereum.ChainClient
func (c *Chain) FilterLogs(_ context.Context, q geth.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure("eth_getLogs"); err != nil {
		return nil, err
	}

	var out []types.Log
	for _, l := range c.logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
			continue
		}
		if !matchTopics(q.Topics, l.Topics) {
			continue
		}
		cp := l
		cp.Topics = append([]common.Hash(nil), l.Topics...)
		cp.Data = append([]byte(nil), l.Data...)
		out = append(out, cp)
	}
	return out, nil
}

// TransactionReceipt implements ethereum.ChainClient
func (c *Chain) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure("eth_getTransactionReceipt"); err != nil {
		return nil, err
	}
	r, ok := c.receipts[txHash]
	if !ok {
		return nil, geth.NotFound
	}
	cp := *r
	return &cp, nil
}

// TransactionByHash implements ethereum.ChainClient
func (c *Chain) TransactionByHash(_ context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure("eth_getTransactionByHash"); err != nil {
		return nil, false, err
	}
	for _, tx := range c.pool {
		if tx.Hash() == txHash {
			return tx, true, nil
		}
	}
	if tx, ok := c.txs[txHash]; ok {
		return tx, false, nil
	}
	return nil, false, geth.NotFound
}

// CallContract implements ethereum.ChainClient
func (c *Chain) CallContract(_ context.Context, msg geth.CallMsg, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure("eth_call"); err != nil {
		return nil, err
	}
	if msg.To == nil {
		return nil, errors.New("missing call target")
	}
	return c.callLocked(*msg.To, msg.Data)
}

// PendingNonceAt implements ethereum.ChainClient
func (c *Chain) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure("eth_getTransactionCount"); err != nil {
		return 0, err
	}
	return c.nonces[account], nil
}

// SuggestGasPrice implements ethereum.ChainClient
func (c *Chain) SuggestGasPrice(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure("eth_gasPrice"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.gasPrice), nil
}

// EstimateGas implements ethereum.ChainClient. Calls that would revert
// return the revert error, as a node does.
func (c *Chain) EstimateGas(_ context.Context, msg geth.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure("eth_estimateGas"); err != nil {
		return 0, err
	}
	if msg.To != nil {
		if _, err := c.dryRunLocked(*msg.To, msg.Data); err != nil {
			return 0, err
		}
	}
	return 150_000, nil
}

// SendTransaction implements ethereum.ChainClient
func (c *Chain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure("eth_sendRawTransaction"); err != nil {
		return err
	}

	from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if tx.Nonce() < c.nonces[from] {
		return errors.New("nonce too low")
	}
	if tx.Nonce() > c.nonces[from] {
		return errors.New("nonce too high")
	}
	if _, known := c.txs[tx.Hash()]; known {
		return errors.New("already known")
	}

	if c.dropNext {
		c.dropNext = false
		return nil
	}

	c.nonces[from]++
	c.pool = append(c.pool, tx)
	if !c.holdMining {
		c.mineBlockLocked()
	}
	return nil
}

func (c *Chain) mineBlockLocked() {
	c.head++
	pool := c.pool
	c.pool = nil
	for i, tx := range pool {
		c.executeLocked(tx, uint(i))
	}
	c.deliverLocked()
}

func (c *Chain) deliverLocked() {
	for _, d := range c.messages {
		if d.status == contracts.DeliverySent && c.head >= d.sentBlock+c.deliveryDelay {
			d.status = contracts.DeliveryDelivered
		}
	}
	for _, d := range c.relays {
		if d.status == contracts.DeliverySent && c.head >= d.sentBlock+c.deliveryDelay {
			d.status = contracts.DeliveryDelivered
		}
	}
}

func (c *Chain) executeLocked(tx *types.Transaction, txIndex uint) {
	receipt := &types.Receipt{
		Status:           types.ReceiptStatusSuccessful,
		TxHash:           tx.Hash(),
		BlockNumber:      new(big.Int).SetUint64(c.head),
		TransactionIndex: txIndex,
		GasUsed:          100_000,
	}

	logs, err := c.applyLocked(tx)
	if err != nil {
		receipt.Status = types.ReceiptStatusFailed
	} else {
		for i := range logs {
			logs[i].BlockNumber = c.head
			logs[i].TxHash = tx.Hash()
			logs[i].TxIndex = txIndex
			logs[i].Index = uint(len(c.logs))
			c.logs = append(c.logs, logs[i])
			receipt.Logs = append(receipt.Logs, &c.logs[len(c.logs)-1])
		}
	}

	c.txs[tx.Hash()] = tx
	c.receipts[tx.Hash()] = receipt
}
