package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/xchain-orchestrator/pkg/app/errors"
	"github.com/chainsafe/xchain-orchestrator/pkg/bridge"
	"github.com/chainsafe/xchain-orchestrator/pkg/chain/chaintest"
	"github.com/chainsafe/xchain-orchestrator/pkg/config"
	"github.com/chainsafe/xchain-orchestrator/pkg/price"
	"github.com/chainsafe/xchain-orchestrator/pkg/quote"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer/service"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer/service/mocks"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer/store/memstore"
)

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

func (e *recordingEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.snaps)
}

var testServiceConfig = service.Config{
	DefaultSlippage:  decimal.NewFromFloat(0.005),
	MaxSlippage:      decimal.NewFromFloat(0.05),
	MinConfirmations: 2,
}

func newTestService(t *testing.T, st service.Store) (service.Service, *recordingEmitter) {
	t.Helper()
	env := chaintest.New(t)
	sel := bridge.NewSelector(env.Registry)
	q := quote.New(env.Registry, sel, price.NewStaticSource(map[string]float64{"X": 1, "Y": 2, "P": 1}), config.QuoteConfig{
		Validity:          30 * time.Second,
		ImpactCap:         0.1,
		ImpactCoefficient: 1,
		DefaultSlippage:   0.005,
		MaxSlippage:       0.05,
		CompleteGasLimit:  200_000,
		SwapGasLimit:      400_000,
	}, zap.NewNop())
	emitter := &recordingEmitter{}
	return service.NewService(st, env.Registry, q, emitter, testServiceConfig, zap.NewNop()), emitter
}

func validRequest() *service.AcceptRequest {
	return &service.AcceptRequest{
		OwnerID:            "owner-1",
		SourceChain:        chaintest.ChainA,
		DestinationChain:   chaintest.ChainB,
		Asset:              "x",
		Amount:             "1000000",
		DestinationAddress: chaintest.Recipient.Hex(),
		Kind:               transfer.KindTransfer,
	}
}

func TestAccept_PersistsPendingRecords(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc, emitter := newTestService(t, st)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		resp, err := svc.Accept(ctx, validRequest())
		require.NoError(t, err)
		assert.Equal(t, transfer.StatusPending, resp.Status)
		assert.False(t, seen[resp.ID], "duplicate id %s", resp.ID)
		seen[resp.ID] = true

		rec, err := st.Get(ctx, resp.ID)
		require.NoError(t, err)
		assert.Equal(t, "X", rec.Asset)
		assert.Equal(t, "1000000", rec.Amount.String())
		assert.True(t, rec.SlippageTolerance.Equal(testServiceConfig.DefaultSlippage))
		assert.Empty(t, rec.SourceTxHash)
		assert.Zero(t, rec.AttemptCount)
	}
	assert.Equal(t, 20, emitter.count())
}

func TestAccept_Swap(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc, _ := newTestService(t, st)

	req := validRequest()
	req.Kind = transfer.KindSwap
	req.DestinationAsset = "y"
	slippage := decimal.NewFromFloat(0.01)
	req.SlippageTolerance = &slippage

	resp, err := svc.Accept(ctx, req)
	require.NoError(t, err)
	rec, err := st.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Y", rec.DestinationAsset)
	assert.True(t, rec.SlippageTolerance.Equal(slippage))
}

func TestAccept_Rejections(t *testing.T) {
	neg := decimal.NewFromFloat(-0.1)
	zero := decimal.Zero
	tooHigh := decimal.NewFromFloat(0.2)

	cases := []struct {
		name   string
		mutate func(*service.AcceptRequest)
	}{
		{"same chain", func(r *service.AcceptRequest) { r.DestinationChain = r.SourceChain }},
		{"unknown chain", func(r *service.AcceptRequest) { r.DestinationChain = "chain-z" }},
		{"zero amount", func(r *service.AcceptRequest) { r.Amount = "0" }},
		{"negative amount", func(r *service.AcceptRequest) { r.Amount = "-5" }},
		{"fractional amount", func(r *service.AcceptRequest) { r.Amount = "1.5" }},
		{"bad address", func(r *service.AcceptRequest) { r.DestinationAddress = "0x1234" }},
		{"asset missing on destination", func(r *service.AcceptRequest) { r.Asset = "Y" }},
		{"unknown kind", func(r *service.AcceptRequest) { r.Kind = "teleport" }},
		{"swap without output", func(r *service.AcceptRequest) { r.Kind = transfer.KindSwap }},
		{"swap to same asset", func(r *service.AcceptRequest) {
			r.Kind = transfer.KindSwap
			r.DestinationAsset = "X"
		}},
		{"transfer changing asset", func(r *service.AcceptRequest) { r.DestinationAsset = "Y" }},
		{"negative slippage", func(r *service.AcceptRequest) { r.SlippageTolerance = &neg }},
		{"zero slippage", func(r *service.AcceptRequest) { r.SlippageTolerance = &zero }},
		{"slippage over max", func(r *service.AcceptRequest) { r.SlippageTolerance = &tooHigh }},
		{"missing owner", func(r *service.AcceptRequest) { r.OwnerID = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := memstore.New()
			svc, emitter := newTestService(t, st)
			req := validRequest()
			tc.mutate(req)

			_, err := svc.Accept(context.Background(), req)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CategoryDataError), "got %v", err)
			var verr *transfer.ValidationError
			assert.ErrorAs(t, err, &verr)

			records, err := st.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, records, "rejected request must not be persisted")
			assert.Zero(t, emitter.count())
		})
	}
}

func TestGet_EstimatesRemainingTime(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc, _ := newTestService(t, st)

	resp, err := svc.Accept(ctx, validRequest())
	require.NoError(t, err)

	got, err := svc.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusPending, got.Status)
	assert.Positive(t, got.EstimatedTimeRemaining)

	_, err = svc.Cancel(ctx, resp.ID)
	require.NoError(t, err)
	got, err = svc.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusFailed, got.Status)
	assert.Equal(t, transfer.ReasonCancelled, got.FailureReason)
	assert.Zero(t, got.EstimatedTimeRemaining)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService(t, memstore.New())
	_, err := svc.Get(context.Background(), "missing")
	assert.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound))
}

func TestList_FiltersByOwner(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memstore.New())

	for _, owner := range []string{"a", "a", "b"} {
		req := validRequest()
		req.OwnerID = owner
		_, err := svc.Accept(ctx, req)
		require.NoError(t, err)
	}

	got, err := svc.List(ctx, &service.ListRequest{OwnerID: "a"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	all, err := svc.List(ctx, &service.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = svc.List(ctx, &service.ListRequest{Status: "lost"})
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))
}

func TestRetry_NotFailedIsConflict(t *testing.T) {
	ctx := context.Background()
	storeMock := mocks.NewStore(t)
	storeMock.EXPECT().ResetForRetry(ctx, "t-1", mock.Anything).Return(nil, transfer.ErrNotFailed).Once()

	svc, emitter := newTestService(t, storeMock)
	_, err := svc.Retry(ctx, "t-1")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataConflict))
	var svcErr *apperrors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "not_failed", svcErr.Message)
	assert.Zero(t, emitter.count())
}

func TestRetry_ResetsAndEmits(t *testing.T) {
	ctx := context.Background()
	storeMock := mocks.NewStore(t)
	storeMock.EXPECT().ResetForRetry(ctx, "t-1", mock.Anything).Return(&transfer.Record{
		ID:     "t-1",
		Status: transfer.StatusPending,
		Kind:   transfer.KindTransfer,
	}, nil).Once()

	svc, emitter := newTestService(t, storeMock)
	resp, err := svc.Retry(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusPending, resp.Status)
	assert.Equal(t, 1, emitter.count())
}

func TestCancel_ErrorMapping(t *testing.T) {
	cases := []struct {
		err     error
		message string
	}{
		{transfer.ErrAlreadyCommitted, "already_committed"},
		{transfer.ErrClaimConflict, "in_progress"},
		{transfer.ErrInvalidTransition, "terminal"},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			ctx := context.Background()
			storeMock := mocks.NewStore(t)
			storeMock.EXPECT().Cancel(ctx, "t-1", mock.Anything).Return(nil, tc.err).Once()

			svc, _ := newTestService(t, storeMock)
			_, err := svc.Cancel(ctx, "t-1")
			var svcErr *apperrors.ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, apperrors.CategoryDataConflict, svcErr.Category)
			assert.Equal(t, tc.message, svcErr.Message)
			assert.True(t, errors.Is(err, tc.err))
		})
	}
}

func TestCancel_StoreErrorIsWrapped(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("db unavailable")
	storeMock := mocks.NewStore(t)
	storeMock.EXPECT().Cancel(ctx, "t-1", mock.Anything).Return(nil, storeErr).Once()

	svc, _ := newTestService(t, storeMock)
	_, err := svc.Cancel(ctx, "t-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.Contains(t, err.Error(), "failed to load transfer")
}

func TestQuote(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memstore.New())

	q, err := svc.Quote(ctx, &service.QuoteRequest{
		SourceChain:      chaintest.ChainA,
		DestinationChain: chaintest.ChainB,
		Asset:            "X",
		DestinationAsset: "Y",
		Amount:           "1000000",
	})
	require.NoError(t, err)
	assert.Equal(t, "Y", q.DestAsset)
	assert.True(t, q.Rate.Equal(decimal.NewFromFloat(0.5)))
	assert.Positive(t, q.AmountOutMin.Sign())

	_, err = svc.Quote(ctx, &service.QuoteRequest{
		SourceChain:      chaintest.ChainA,
		DestinationChain: chaintest.ChainB,
		Asset:            "Y",
		Amount:           "1000000",
	})
	var svcErr *apperrors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, apperrors.CategoryDataError, svcErr.Category)
	assert.Equal(t, string(transfer.ReasonUnsupportedRoute), svcErr.Message)
}
