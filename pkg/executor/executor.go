// Package executor performs the destination leg of a transfer: a direct
// completion on the destination bridge, or an aggregator swap that
// completes the transfer with the swapped asset. Both are keyed by a
// deterministic transfer id so a repeated submission has no second effect.
package executor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/pkg/chain"
	"github.com/chainsafe/xchain-orchestrator/pkg/config"
	"github.com/chainsafe/xchain-orchestrator/pkg/ethereum"
	"github.com/chainsafe/xchain-orchestrator/pkg/ethereum/contracts"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

// State is the outcome of polling a destination transaction.
type State int

const (
	StatePending State = iota
	StateConfirmed
	StateReverted
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateConfirmed:
		return "confirmed"
	case StateReverted:
		return "reverted"
	case StateDropped:
		return "dropped"
	default:
		return "pending"
	}
}

// Target is a record resolved against the destination chain.
type Target struct {
	Chain        *chain.Chain
	Recipient    common.Address
	TokenIn      common.Address
	TokenOut     common.Address
	Amount       *big.Int
	SourceTxHash common.Hash
	TransferID   common.Hash
}

// Submission is the result of Complete.
type Submission struct {
	TxHash string
	// AlreadyCompleted is set when the destination had completed the
	// transfer before anything was submitted; TxHash is then the
	// transaction that completed it, if it could be found.
	AlreadyCompleted bool
}

// Confirmation is the result of Confirm.
type Confirmation struct {
	State         State
	TxHash        string
	Confirmations uint64
	// Err classifies the revert reason of a reverted transaction.
	Err error
}

// Config holds executor settings.
type Config struct {
	CompleteGasLimit uint64
	SwapGasLimit     uint64
	MinConfirmations uint64
	// LogLookback bounds the block range searched for completion events.
	LogLookback uint64
}

// NewConfig derives executor settings from the quote and verifier sections.
func NewConfig(q config.QuoteConfig, v config.VerifierConfig) Config {
	return Config{
		CompleteGasLimit: q.CompleteGasLimit,
		SwapGasLimit:     q.SwapGasLimit,
		MinConfirmations: v.MinConfirmations,
		LogLookback:      v.MaxScanRange,
	}
}

// Executor submits and confirms destination transactions.
type Executor struct {
	registry *chain.Registry
	cfg      Config
	logger   *zap.Logger
}

// New creates an executor.
func New(registry *chain.Registry, cfg Config, logger *zap.Logger) *Executor {
	return &Executor{registry: registry, cfg: cfg, logger: logger}
}

// TransferID is keccak256(abi.encodePacked(recipient, token, amount, sourceTxHash)).
func TransferID(recipient, token common.Address, amount *big.Int, sourceTxHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(
		recipient.Bytes(),
		token.Bytes(),
		common.LeftPadBytes(amount.Bytes(), 32),
		sourceTxHash.Bytes(),
	)
}

// Target resolves rec. The amount is rescaled to the destination decimals
// of the bridged asset.
func (e *Executor) Target(rec *transfer.Record) (*Target, error) {
	dst, err := e.registry.Get(rec.DestinationChain)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	srcAsset, err := e.registry.Asset(rec.SourceChain, rec.Asset)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	in, err := e.registry.Asset(dst.ID, rec.Asset)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	out, err := e.registry.Asset(dst.ID, rec.OutputAsset())
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	recipient, err := ethereum.ParseAddress(rec.DestinationAddress)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonDestinationRejected, err)
	}
	srcHash, err := ethereum.ParseHash(rec.SourceTxHash)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonContractRejected, fmt.Errorf("source event not verified: %w", err))
	}

	amount := chain.ConvertAmount(rec.Amount, srcAsset.Decimals, in.Decimals)
	return &Target{
		Chain:        dst,
		Recipient:    recipient,
		TokenIn:      in.Address,
		TokenOut:     out.Address,
		Amount:       amount,
		SourceTxHash: srcHash,
		TransferID:   TransferID(recipient, out.Address, amount, srcHash),
	}, nil
}

// IsCompleted asks the destination bridge whether the transfer was
// completed and, if so, which transaction completed it.
func (e *Executor) IsCompleted(ctx context.Context, t *Target) (string, bool, error) {
	tx, err := t.Chain.Transactor()
	if err != nil {
		return "", false, err
	}
	data, err := contracts.BridgeABI.Pack("isCompleted", t.TransferID)
	if err != nil {
		return "", false, fmt.Errorf("failed to pack isCompleted: %w", err)
	}
	out, err := tx.View(ctx, t.Chain.BridgeContract, data)
	if err != nil {
		return "", false, err
	}
	done, err := contracts.UnpackBool(contracts.BridgeABI, "isCompleted", out)
	if err != nil {
		return "", false, transfer.Transient("isCompleted", err)
	}
	if !done {
		return "", false, nil
	}
	hash, found, err := e.FindCompletion(ctx, t)
	if err != nil || !found {
		return "", true, err
	}
	return hash.Hex(), true, nil
}

// Completion resolves rec and reports whether its transfer is already
// completed on the destination chain.
func (e *Executor) Completion(ctx context.Context, rec *transfer.Record) (string, bool, error) {
	t, err := e.Target(rec)
	if err != nil {
		return "", false, err
	}
	return e.IsCompleted(ctx, t)
}

// FindCompletion searches recent TransferCompleted events for the
// transaction that completed t.
func (e *Executor) FindCompletion(ctx context.Context, t *Target) (common.Hash, bool, error) {
	client := t.Chain.Client()
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return common.Hash{}, false, ethereum.ClassifyError("eth_blockNumber", err)
	}
	var from uint64
	if e.cfg.LogLookback > 0 && head > e.cfg.LogLookback {
		from = head - e.cfg.LogLookback
	}
	logs, err := client.FilterLogs(ctx, geth.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{t.Chain.BridgeContract},
		Topics:    [][]common.Hash{{contracts.TransferCompletedTopic}, {t.TransferID}},
	})
	if err != nil {
		return common.Hash{}, false, ethereum.ClassifyError("eth_getLogs", err)
	}
	for _, l := range logs {
		ev, err := contracts.UnpackTransferCompleted(l)
		if err != nil {
			continue
		}
		if ev.TransferID == t.TransferID {
			return ev.TxHash, true, nil
		}
	}
	return common.Hash{}, false, nil
}

// Complete submits the destination transaction of rec. Swap records need
// a quote whose minimum output is its own slippage bound and that is still
// valid by the clock read right before broadcast; otherwise a
// QuoteExpiredError asks for a fresh quote.
func (e *Executor) Complete(ctx context.Context, rec *transfer.Record, quote *transfer.QuoteSnapshot, now func() time.Time) (*Submission, error) {
	t, err := e.Target(rec)
	if err != nil {
		return nil, err
	}

	hash, done, err := e.IsCompleted(ctx, t)
	if err != nil {
		return nil, err
	}
	if done {
		e.logger.Info("Transfer already completed on destination",
			zap.String("transfer_id", rec.ID),
			zap.String("completion_id", t.TransferID.Hex()),
			zap.String("tx_hash", hash))
		return &Submission{TxHash: hash, AlreadyCompleted: true}, nil
	}

	var call ethereum.Call
	switch rec.Kind {
	case transfer.KindSwap:
		call, err = e.swapCall(t, quote)
	default:
		call, err = e.completeCall(t)
	}
	if err != nil {
		return nil, err
	}

	tx, err := t.Chain.Transactor()
	if err != nil {
		return nil, err
	}
	if quote != nil && !quote.Valid(now()) {
		return nil, &transfer.QuoteExpiredError{ValidUntil: quote.ValidUntil}
	}
	txHash, err := tx.Send(ctx, call)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Destination transaction submitted",
		zap.String("transfer_id", rec.ID),
		zap.String("operation", call.Operation),
		zap.String("completion_id", t.TransferID.Hex()),
		zap.String("tx_hash", txHash.Hex()))
	return &Submission{TxHash: txHash.Hex()}, nil
}

func (e *Executor) completeCall(t *Target) (ethereum.Call, error) {
	data, err := contracts.BridgeABI.Pack("completeTransfer", t.Recipient, t.TokenOut, t.Amount, t.TransferID)
	if err != nil {
		return ethereum.Call{}, fmt.Errorf("failed to pack completeTransfer: %w", err)
	}
	return ethereum.Call{
		Operation: "complete_transfer",
		To:        t.Chain.BridgeContract,
		Data:      data,
		GasLimit:  e.cfg.CompleteGasLimit,
	}, nil
}

func (e *Executor) swapCall(t *Target, quote *transfer.QuoteSnapshot) (ethereum.Call, error) {
	if quote == nil {
		return ethereum.Call{}, &transfer.QuoteExpiredError{}
	}
	if quote.AmountIn == nil || quote.AmountIn.Cmp(t.Amount) != 0 ||
		quote.AmountOutMin == nil ||
		quote.AmountOutMin.Cmp(transfer.AmountOutMin(quote.EstimatedAmountOut, quote.SlippageTolerance)) != 0 {
		return ethereum.Call{}, &transfer.QuoteExpiredError{ValidUntil: quote.ValidUntil}
	}
	if !t.Chain.HasAggregator() {
		return ethereum.Call{}, transfer.Permanent(transfer.ReasonUnsupportedRoute,
			fmt.Errorf("chain %s has no aggregator router", t.Chain.ID))
	}

	route := make([]common.Address, 0, len(quote.Route))
	for _, hop := range quote.Route {
		addr, err := ethereum.ParseAddress(hop)
		if err != nil {
			return ethereum.Call{}, transfer.Permanent(transfer.ReasonMalformedRoute, err)
		}
		route = append(route, addr)
	}

	data, err := contracts.AggregatorABI.Pack("swapAndComplete",
		t.TransferID, t.TokenIn, t.TokenOut, t.Amount, quote.AmountOutMin, t.Recipient, route)
	if err != nil {
		return ethereum.Call{}, fmt.Errorf("failed to pack swapAndComplete: %w", err)
	}
	return ethereum.Call{
		Operation: "swap_and_complete",
		To:        t.Chain.AggregatorRouter,
		Data:      data,
		GasLimit:  e.cfg.SwapGasLimit,
	}, nil
}

// Confirm polls the pending destination transaction of rec. It never
// blocks waiting for inclusion.
func (e *Executor) Confirm(ctx context.Context, rec *transfer.Record) (*Confirmation, error) {
	dst, err := e.registry.Get(rec.DestinationChain)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	hash, err := ethereum.ParseHash(rec.PendingDestTxHash)
	if err != nil {
		return nil, fmt.Errorf("no pending destination transaction: %w", err)
	}
	client := dst.Client()

	receipt, err := client.TransactionReceipt(ctx, hash)
	if err != nil {
		if !ethereum.IsNotFound(err) {
			return nil, ethereum.ClassifyError("eth_getTransactionReceipt", err)
		}
		_, _, err := client.TransactionByHash(ctx, hash)
		switch {
		case err == nil:
			return &Confirmation{State: StatePending, TxHash: hash.Hex()}, nil
		case ethereum.IsNotFound(err):
			return &Confirmation{State: StateDropped, TxHash: hash.Hex()}, nil
		default:
			return nil, ethereum.ClassifyError("eth_getTransactionByHash", err)
		}
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return &Confirmation{
			State:  StateReverted,
			TxHash: hash.Hex(),
			Err:    e.revertReason(ctx, dst, hash, receipt),
		}, nil
	}

	head, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, ethereum.ClassifyError("eth_blockNumber", err)
	}
	confs := ethereum.Confirmations(head, receipt.BlockNumber.Uint64())
	if confs < e.cfg.MinConfirmations {
		return &Confirmation{State: StatePending, TxHash: hash.Hex(), Confirmations: confs}, nil
	}
	return &Confirmation{State: StateConfirmed, TxHash: hash.Hex(), Confirmations: confs}, nil
}

// revertReason replays the reverted transaction as a call to recover and
// classify its reason.
func (e *Executor) revertReason(ctx context.Context, dst *chain.Chain, hash common.Hash, receipt *types.Receipt) error {
	client := dst.Client()
	tx, _, err := client.TransactionByHash(ctx, hash)
	if err != nil || tx.To() == nil {
		return ethereum.ClassifyRevert("destination", "")
	}
	msg := geth.CallMsg{To: tx.To(), Data: tx.Data(), Value: tx.Value(), Gas: tx.Gas()}
	if signer, err := dst.Transactor(); err == nil {
		msg.From = signer.From()
	}
	_, callErr := client.CallContract(ctx, msg, receipt.BlockNumber)
	if callErr == nil {
		return ethereum.ClassifyRevert("destination", "")
	}
	classified := ethereum.ClassifyError("destination", callErr)
	if transfer.IsTransient(classified) {
		// The replay itself failed; the transaction still reverted.
		return ethereum.ClassifyRevert("destination", "")
	}
	return classified
}
