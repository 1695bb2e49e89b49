package orchestrator

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/pkg/bridge"
	"github.com/chainsafe/xchain-orchestrator/pkg/chain/chaintest"
	"github.com/chainsafe/xchain-orchestrator/pkg/config"
	"github.com/chainsafe/xchain-orchestrator/pkg/executor"
	"github.com/chainsafe/xchain-orchestrator/pkg/price"
	"github.com/chainsafe/xchain-orchestrator/pkg/quote"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer/store/memstore"
	"github.com/chainsafe/xchain-orchestrator/pkg/verifier"
)

var (
	testVerifierConfig = config.VerifierConfig{MinConfirmations: 2, MaxScanRange: 5000, MaxWait: 24 * time.Hour}
	testQuoteConfig    = config.QuoteConfig{
		Validity:          30 * time.Second,
		ImpactCap:         0.10,
		ImpactCoefficient: 1.0,
		DefaultSlippage:   0.005,
		MaxSlippage:       0.05,
		CompleteGasLimit:  200_000,
		SwapGasLimit:      400_000,
	}
)

func testConfig() Config {
	return Config{OrchestratorConfig: config.OrchestratorConfig{
		TickInterval:        time.Second,
		LeaseDuration:       2 * time.Minute,
		Workers:             4,
		BatchSize:           100,
		MaxAttempts:         5,
		BackoffBase:         30 * time.Second,
		BackoffMax:          30 * time.Minute,
		StepTimeout:         10 * time.Second,
		ConfirmationTimeout: 10 * time.Minute,
	}}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingEmitter struct {
	mu    sync.Mutex
	snaps []transfer.Snapshot
}

func (e *recordingEmitter) Emit(snap transfer.Snapshot) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snaps = append(e.snaps, snap)
	return true
}

// statuses returns the distinct consecutive statuses emitted for id.
func (e *recordingEmitter) statuses(id string) []transfer.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []transfer.Status
	for _, s := range e.snaps {
		if s.ID != id {
			continue
		}
		if len(out) == 0 || out[len(out)-1] != s.Status {
			out = append(out, s.Status)
		}
	}
	return out
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	env      *chaintest.Env
	store    *memstore.Store
	clock    *clock
	prices   *price.StaticSource
	emitter  *recordingEmitter
	selector *bridge.Selector
	verifier *verifier.Verifier
	quoter   *quote.Engine
	executor *executor.Executor
	orch     *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	env := chaintest.New(t)
	st := memstore.New()
	clk := &clock{now: time.Now().UTC()}
	emitter := &recordingEmitter{}
	prices := price.NewStaticSource(map[string]float64{"X": 1, "Y": 1, "P": 1})

	sel := bridge.NewSelector(env.Registry)
	ver := verifier.New(env.Registry, st, testVerifierConfig, zap.NewNop())
	q := quote.New(env.Registry, sel, prices, testQuoteConfig, zap.NewNop(), quote.WithClock(clk.Now))
	ex := executor.New(env.Registry, executor.NewConfig(testQuoteConfig, testVerifierConfig), zap.NewNop())

	h := &harness{
		t:        t,
		ctx:      context.Background(),
		env:      env,
		store:    st,
		clock:    clk,
		prices:   prices,
		emitter:  emitter,
		selector: sel,
		verifier: ver,
		quoter:   q,
		executor: ex,
	}
	h.orch = h.newOrchestrator("worker-0")
	return h
}

func (h *harness) newOrchestrator(owner string) *Orchestrator {
	return New(testConfig(), h.store, h.verifier, h.selector, h.quoter, h.executor, h.emitter, zap.NewNop(),
		WithClock(h.clock.Now), WithOwner(owner))
}

func sourceToken(asset string) common.Address {
	switch asset {
	case chaintest.AssetP:
		return chaintest.TokenPA
	default:
		return chaintest.TokenXA
	}
}

func (h *harness) create(kind transfer.Kind, asset string, amount int64) *transfer.Record {
	h.t.Helper()
	now := h.clock.Now()
	rec := &transfer.Record{
		ID:                 uuid.NewString(),
		OwnerID:            "owner-1",
		SourceChain:        chaintest.ChainA,
		DestinationChain:   chaintest.ChainB,
		Asset:              asset,
		Amount:             big.NewInt(amount),
		DestinationAddress: chaintest.Recipient.Hex(),
		Kind:               kind,
		Status:             transfer.StatusPending,
		SlippageTolerance:  decimal.NewFromFloat(0.01),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if kind == transfer.KindSwap {
		rec.DestinationAsset = chaintest.AssetY
	}
	require.NoError(h.t, h.store.Create(h.ctx, rec))
	return rec
}

// lock emits the source lock for rec and buries it under one more block.
func (h *harness) lock(rec *transfer.Record) {
	h.env.A.Lock(sourceToken(rec.Asset), chaintest.Sender, chaintest.Recipient, rec.Amount, big.NewInt(2))
	h.env.A.Mine(1)
}

func (h *harness) tick() {
	h.t.Helper()
	require.NoError(h.t, h.orch.Tick(h.ctx))
	h.clock.Advance(time.Second)
}

func (h *harness) get(id string) *transfer.Record {
	h.t.Helper()
	rec, err := h.store.Get(h.ctx, id)
	require.NoError(h.t, err)
	return rec
}

func (h *harness) mine() {
	h.env.A.Mine(1)
	h.env.B.Mine(1)
}

// runUntil ticks, mining a block on both chains between ticks, until the
// record reaches want.
func (h *harness) runUntil(id string, want transfer.Status, maxTicks int) *transfer.Record {
	h.t.Helper()
	for i := 0; i < maxTicks; i++ {
		h.tick()
		rec := h.get(id)
		if rec.Status == want {
			return rec
		}
		h.mine()
	}
	rec := h.get(id)
	h.t.Fatalf("record %s is %s after %d ticks, want %s (last error %q)", id, rec.Status, maxTicks, want, rec.LastError)
	return nil
}

func (h *harness) transferID(rec *transfer.Record) common.Hash {
	h.t.Helper()
	target, err := h.executor.Target(rec)
	require.NoError(h.t, err)
	return target.TransferID
}
