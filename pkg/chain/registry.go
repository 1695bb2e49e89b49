// Package chain is the static registry of supported chains and the assets
// deployed on them. It owns the shared RPC clients.
package chain

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/pkg/config"
	"github.com/chainsafe/xchain-orchestrator/pkg/ethereum"
	"github.com/chainsafe/xchain-orchestrator/pkg/signer"
)

var (
	ErrUnknownChain = errors.New("unknown chain")
	ErrUnknownAsset = errors.New("asset not supported on chain")
	ErrNoSigner     = errors.New("no signer configured")
)

// Asset is a token deployment on one chain.
type Asset struct {
	Symbol       string
	Address      common.Address
	Decimals     int
	NativePortal bool
	LiquidityUSD float64
}

// Chain is the static description of a supported chain.
type Chain struct {
	ID               string
	ChainID          *big.Int
	RPCURL           string
	BridgeContract   common.Address
	PortalContract   common.Address
	AggregatorRouter common.Address
	NativeDecimals   int
	AddressFormat    string
	BlockTime        time.Duration
	MaxGasPrice      *big.Int

	assets     map[string]Asset
	client     ethereum.ChainClient
	transactor *ethereum.Transactor
}

// HasPortal reports whether a native portal contract is configured.
func (c *Chain) HasPortal() bool {
	return c.PortalContract != (common.Address{})
}

// HasAggregator reports whether swaps can execute on this chain.
func (c *Chain) HasAggregator() bool {
	return c.AggregatorRouter != (common.Address{})
}

// Client returns the shared RPC client of the chain.
func (c *Chain) Client() ethereum.ChainClient {
	return c.client
}

// Transactor returns the chain's signing transactor.
func (c *Chain) Transactor() (*ethereum.Transactor, error) {
	if c.transactor == nil {
		return nil, fmt.Errorf("chain %s: %w", c.ID, ErrNoSigner)
	}
	return c.transactor, nil
}

// Registry maps chain ids to their configuration and clients.
type Registry struct {
	chains map[string]*Chain
	byNum  map[string]*Chain
}

// Option customises registry construction.
type Option func(*options)

type options struct {
	clients map[string]ethereum.ChainClient
	signer  signer.Signer
	logger  *zap.Logger
}

// WithClient injects the RPC client used for chain id instead of dialing.
func WithClient(id string, client ethereum.ChainClient) Option {
	return func(o *options) { o.clients[id] = client }
}

// WithSigner attaches a transactor using s to every chain.
func WithSigner(s signer.Signer) Option {
	return func(o *options) { o.signer = s }
}

// WithLogger sets the logger used by dialed clients.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewRegistry builds a registry from configuration, dialing every chain
// that has no injected client.
func NewRegistry(chains []config.ChainConfig, assets []config.AssetConfig, opts ...Option) (*Registry, error) {
	o := &options{clients: make(map[string]ethereum.ChainClient), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	r := &Registry{
		chains: make(map[string]*Chain, len(chains)),
		byNum:  make(map[string]*Chain, len(chains)),
	}
	for _, cc := range chains {
		c := &Chain{
			ID:             cc.ID,
			ChainID:        big.NewInt(cc.ChainID),
			RPCURL:         cc.RPCURL,
			BridgeContract: common.HexToAddress(cc.BridgeContract),
			NativeDecimals: cc.NativeDecimals,
			AddressFormat:  cc.AddressFormat,
			BlockTime:      cc.BlockTime,
			assets:         make(map[string]Asset),
		}
		if cc.PortalContract != "" {
			c.PortalContract = common.HexToAddress(cc.PortalContract)
		}
		if cc.AggregatorRouter != "" {
			c.AggregatorRouter = common.HexToAddress(cc.AggregatorRouter)
		}
		if cc.MaxGasPrice != "" {
			price, ok := new(big.Int).SetString(cc.MaxGasPrice, 10)
			if !ok {
				return nil, fmt.Errorf("chain %s: invalid max_gas_price %q", cc.ID, cc.MaxGasPrice)
			}
			c.MaxGasPrice = price
		}

		if client, ok := o.clients[cc.ID]; ok {
			c.client = client
		} else {
			client, err := ethereum.NewClient(ethereum.ClientConfig{
				Chain:             cc.ID,
				RPCURL:            cc.RPCURL,
				RequestsPerSecond: cc.RequestsPerSecond,
				Burst:             cc.Burst,
			}, o.logger)
			if err != nil {
				return nil, err
			}
			c.client = client
		}
		if o.signer != nil {
			c.transactor = ethereum.NewTransactor(c.ID, c.ChainID, c.client, o.signer, c.MaxGasPrice, o.logger)
		}

		r.chains[c.ID] = c
		r.byNum[c.ChainID.String()] = c
	}

	for _, ac := range assets {
		symbol := strings.ToUpper(ac.Symbol)
		for _, d := range ac.Deployments {
			c, ok := r.chains[d.Chain]
			if !ok {
				return nil, fmt.Errorf("asset %s: %w %q", symbol, ErrUnknownChain, d.Chain)
			}
			c.assets[symbol] = Asset{
				Symbol:       symbol,
				Address:      common.HexToAddress(d.Address),
				Decimals:     d.Decimals,
				NativePortal: d.NativePortal,
				LiquidityUSD: ac.LiquidityUSD,
			}
		}
	}
	return r, nil
}

// Get returns the chain with the given id.
func (r *Registry) Get(id string) (*Chain, error) {
	c, ok := r.chains[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownChain, id)
	}
	return c, nil
}

// ByChainID resolves a numeric EVM chain id.
func (r *Registry) ByChainID(id *big.Int) (*Chain, error) {
	if id == nil {
		return nil, ErrUnknownChain
	}
	c, ok := r.byNum[id.String()]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownChain, id)
	}
	return c, nil
}

// Asset resolves an asset symbol on a chain.
func (r *Registry) Asset(chainID, symbol string) (Asset, error) {
	c, err := r.Get(chainID)
	if err != nil {
		return Asset{}, err
	}
	a, ok := c.assets[strings.ToUpper(symbol)]
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s on %s", ErrUnknownAsset, symbol, chainID)
	}
	return a, nil
}

// ValidateAddress checks addr against the chain's address format.
func (r *Registry) ValidateAddress(chainID, addr string) error {
	c, err := r.Get(chainID)
	if err != nil {
		return err
	}
	switch c.AddressFormat {
	case "", "evm":
		_, err := ethereum.ParseAddress(addr)
		return err
	}
	return fmt.Errorf("unsupported address format %q", c.AddressFormat)
}

// ConvertAmount rescales amount between token decimals, truncating when
// precision is lost.
func ConvertAmount(amount *big.Int, fromDecimals, toDecimals int) *big.Int {
	out := new(big.Int).Set(amount)
	switch {
	case toDecimals > fromDecimals:
		out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(toDecimals-fromDecimals)), nil))
	case toDecimals < fromDecimals:
		out.Quo(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(fromDecimals-toDecimals)), nil))
	}
	return out
}

// IDs returns the configured chain ids in lexical order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
