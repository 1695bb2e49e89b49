package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chainsafe/xchain-orchestrator/internal/metrics"
)

// DefaultReadTimeout bounds a single RPC call.
const DefaultReadTimeout = 10 * time.Second

// ChainClient is the subset of JSON-RPC the orchestrator needs from a chain.
// Method signatures follow ethclient so the real client satisfies it directly.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q geth.FilterQuery) ([]types.Log, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error)
	CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg geth.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// ClientConfig configures a rate limited RPC client
type ClientConfig struct {
	Chain             string
	RPCURL            string
	RequestsPerSecond float64
	Burst             int
	ReadTimeout       time.Duration
}

// Client wraps ethclient with a per-chain rate limit and a read timeout.
// It is safe for concurrent use and shared by all workers.
type Client struct {
	chain   string
	client  *ethclient.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

var _ ChainClient = (*Client)(nil)

// NewClient dials the RPC endpoint
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s RPC: %w", cfg.Chain, err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	logger.Info("Connected to chain RPC",
		zap.String("chain", cfg.Chain),
		zap.String("rpc_url", cfg.RPCURL),
		zap.Float64("requests_per_second", cfg.RequestsPerSecond))

	return &Client{
		chain:   cfg.Chain,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Close closes the underlying RPC connection
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// call waits for a rate limit token, applies the read timeout and records the outcome.
func (c *Client) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := fn(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RPCCalls.WithLabelValues(c.chain, method, status).Inc()
	return err
}

// ChainID returns the network chain id
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := c.call(ctx, "eth_chainId", func(ctx context.Context) (err error) {
		id, err = c.client.ChainID(ctx)
		return err
	})
	return id, err
}

// BlockNumber returns the latest block number
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.call(ctx, "eth_blockNumber", func(ctx context.Context) (err error) {
		n, err = c.client.BlockNumber(ctx)
		return err
	})
	return n, err
}

// FilterLogs runs an eth_getLogs query
func (c *Client) FilterLogs(ctx context.Context, q geth.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.call(ctx, "eth_getLogs", func(ctx context.Context) (err error) {
		logs, err = c.client.FilterLogs(ctx, q)
		return err
	})
	return logs, err
}

// TransactionReceipt returns the receipt of a mined transaction, or geth.NotFound
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.call(ctx, "eth_getTransactionReceipt", func(ctx context.Context) (err error) {
		receipt, err = c.client.TransactionReceipt(ctx, txHash)
		return err
	})
	return receipt, err
}

// TransactionByHash looks a transaction up in the node's pool or chain
func (c *Client) TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	var (
		tx      *types.Transaction
		pending bool
	)
	err := c.call(ctx, "eth_getTransactionByHash", func(ctx context.Context) (err error) {
		tx, pending, err = c.client.TransactionByHash(ctx, txHash)
		return err
	})
	return tx, pending, err
}

// CallContract executes a read-only call
func (c *Client) CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := c.call(ctx, "eth_call", func(ctx context.Context) (err error) {
		out, err = c.client.CallContract(ctx, msg, blockNumber)
		return err
	})
	return out, err
}

// PendingNonceAt returns the next nonce for account including pending transactions
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var nonce uint64
	err := c.call(ctx, "eth_getTransactionCount", func(ctx context.Context) (err error) {
		nonce, err = c.client.PendingNonceAt(ctx, account)
		return err
	})
	return nonce, err
}

// SuggestGasPrice returns the node's gas price suggestion
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := c.call(ctx, "eth_gasPrice", func(ctx context.Context) (err error) {
		price, err = c.client.SuggestGasPrice(ctx)
		return err
	})
	return price, err
}

// EstimateGas estimates the gas needed for msg
func (c *Client) EstimateGas(ctx context.Context, msg geth.CallMsg) (uint64, error) {
	var gas uint64
	err := c.call(ctx, "eth_estimateGas", func(ctx context.Context) (err error) {
		gas, err = c.client.EstimateGas(ctx, msg)
		return err
	})
	return gas, err
}

// SendTransaction broadcasts a signed transaction and returns on provider ack
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.call(ctx, "eth_sendRawTransaction", func(ctx context.Context) error {
		return c.client.SendTransaction(ctx, tx)
	})
}
