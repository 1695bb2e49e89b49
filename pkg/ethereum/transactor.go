package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/internal/metrics"
	"github.com/chainsafe/xchain-orchestrator/pkg/signer"
)

// Call is a contract invocation to be signed and broadcast.
type Call struct {
	Operation string
	To        common.Address
	Data      []byte
	Value     *big.Int
	// GasLimit overrides estimation when non-zero.
	GasLimit uint64
}

// Transactor builds, signs and broadcasts transactions on one chain.
// Sends are serialised so concurrent workers never race for a nonce.
type Transactor struct {
	chain       string
	chainID     *big.Int
	client      ChainClient
	signer      signer.Signer
	maxGasPrice *big.Int
	logger      *zap.Logger

	mu sync.Mutex
}

// NewTransactor creates a transactor. maxGasPrice may be nil for no cap.
func NewTransactor(chain string, chainID *big.Int, client ChainClient, s signer.Signer, maxGasPrice *big.Int, logger *zap.Logger) *Transactor {
	return &Transactor{
		chain:       chain,
		chainID:     chainID,
		client:      client,
		signer:      s,
		maxGasPrice: maxGasPrice,
		logger:      logger,
	}
}

// From returns the sending account
func (t *Transactor) From() common.Address {
	return t.signer.Address()
}

// View executes a read-only call against the latest block.
func (t *Transactor) View(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := t.client.CallContract(ctx, geth.CallMsg{From: t.From(), To: &to, Data: data}, nil)
	if err != nil {
		return nil, ClassifyError("eth_call", err)
	}
	return out, nil
}

// Send signs and broadcasts call, returning once the provider acknowledged
// the transaction. It does not wait for inclusion.
func (t *Transactor) Send(ctx context.Context, call Call) (common.Hash, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.From()
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	gasLimit := call.GasLimit
	if gasLimit == 0 {
		estimated, err := t.client.EstimateGas(ctx, geth.CallMsg{From: from, To: &call.To, Value: value, Data: call.Data})
		if err != nil {
			return common.Hash{}, ClassifyError(call.Operation+": estimate gas", err)
		}
		gasLimit = estimated * 12 / 10
	}

	gasPrice, err := t.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, ClassifyError(call.Operation+": gas price", err)
	}
	if t.maxGasPrice != nil && gasPrice.Cmp(t.maxGasPrice) > 0 {
		t.logger.Warn("Suggested gas price exceeds maximum",
			zap.String("chain", t.chain),
			zap.String("suggested", gasPrice.String()),
			zap.String("max", t.maxGasPrice.String()))
		gasPrice = new(big.Int).Set(t.maxGasPrice)
	}

	nonce, err := t.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, ClassifyError(call.Operation+": nonce", err)
	}

	tx, err := t.signer.Sign(ctx, t.chain, &signer.TxRequest{
		ChainID:  t.chainID,
		Nonce:    nonce,
		To:       call.To,
		Value:    value,
		Data:     call.Data,
		GasLimit: gasLimit,
		GasPrice: gasPrice,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign %s transaction: %w", call.Operation, err)
	}

	if err := t.client.SendTransaction(ctx, tx); err != nil {
		metrics.TransactionsSent.WithLabelValues(t.chain, call.Operation, "error").Inc()
		return common.Hash{}, ClassifyError(call.Operation+": send", err)
	}
	metrics.TransactionsSent.WithLabelValues(t.chain, call.Operation, "sent").Inc()

	t.logger.Info("Transaction submitted",
		zap.String("chain", t.chain),
		zap.String("operation", call.Operation),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", gasLimit))

	return tx.Hash(), nil
}
