// Package chaintest wires two simulated chains into a registry for tests.
package chaintest

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/pkg/chain"
	"github.com/chainsafe/xchain-orchestrator/pkg/config"
	"github.com/chainsafe/xchain-orchestrator/pkg/ethereum/fakechain"
	"github.com/chainsafe/xchain-orchestrator/pkg/signer"
)

// Chain and asset identifiers of the environment.
const (
	ChainA = "chain-a"
	ChainB = "chain-b"

	// AssetX is bridged between both chains.
	AssetX = "X"
	// AssetY only exists on chain B and is the swap output.
	AssetY = "Y"
	// AssetP has a native portal on chain A.
	AssetP = "P"
)

// Contract and token addresses of the environment.
var (
	BridgeA     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	BridgeB     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	PortalA     = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	AggregatorB = common.HexToAddress("0x00000000000000000000000000000000000000b3")

	TokenXA = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	TokenXB = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	TokenYB = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	TokenPA = common.HexToAddress("0x00000000000000000000000000000000000000c4")
	TokenPB = common.HexToAddress("0x00000000000000000000000000000000000000c5")

	Sender    = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	Recipient = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
)

// Env is a registry backed by two fake chains and a keyed signer.
type Env struct {
	A        *fakechain.Chain
	B        *fakechain.Chain
	Registry *chain.Registry
	Signer   *signer.KeyedSigner
}

// Chains returns the chain configuration of the environment.
func Chains() []config.ChainConfig {
	return []config.ChainConfig{
		{ID: ChainA, ChainID: 1, RPCURL: "fake://a", BridgeContract: BridgeA.Hex(), PortalContract: PortalA.Hex(), AddressFormat: "evm", NativeDecimals: 18},
		{ID: ChainB, ChainID: 2, RPCURL: "fake://b", BridgeContract: BridgeB.Hex(), AggregatorRouter: AggregatorB.Hex(), AddressFormat: "evm", NativeDecimals: 18},
	}
}

// Assets returns the asset configuration of the environment.
func Assets() []config.AssetConfig {
	return []config.AssetConfig{
		{
			Symbol:       AssetX,
			LiquidityUSD: 1_000_000,
			Deployments: []config.AssetDeployment{
				{Chain: ChainA, Address: TokenXA.Hex(), Decimals: 6},
				{Chain: ChainB, Address: TokenXB.Hex(), Decimals: 6},
			},
		},
		{
			Symbol:       AssetY,
			LiquidityUSD: 1_000_000,
			Deployments: []config.AssetDeployment{
				{Chain: ChainB, Address: TokenYB.Hex(), Decimals: 6},
			},
		},
		{
			Symbol:       AssetP,
			LiquidityUSD: 500_000,
			Deployments: []config.AssetDeployment{
				{Chain: ChainA, Address: TokenPA.Hex(), Decimals: 18, NativePortal: true},
				{Chain: ChainB, Address: TokenPB.Hex(), Decimals: 18},
			},
		},
	}
}

// New builds the environment.
func New(t testing.TB) *Env {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	s, err := signer.NewKeyedSigner(key)
	if err != nil {
		t.Fatalf("NewKeyedSigner: %v", err)
	}

	a := fakechain.New(1, fakechain.Contracts{Bridge: BridgeA, Portal: PortalA})
	b := fakechain.New(2, fakechain.Contracts{Bridge: BridgeB, Aggregator: AggregatorB})

	registry, err := chain.NewRegistry(Chains(), Assets(),
		chain.WithClient(ChainA, a),
		chain.WithClient(ChainB, b),
		chain.WithSigner(s),
		chain.WithLogger(zap.NewNop()),
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return &Env{A: a, B: b, Registry: registry, Signer: s}
}
