package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/xchain-orchestrator/pkg/app/errors"
)

func render(t *testing.T, err error) (int, errorResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	HandleError(func(http.ResponseWriter, *http.Request) error { return err })(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, body
}

func TestDefaultErrorHandler(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"bad request", apperrors.BadRequestError(nil, "amount: must be positive"), http.StatusBadRequest, "amount: must be positive"},
		{"unauthorized", apperrors.UnAuthorizedError(nil, "missing credentials"), http.StatusUnauthorized, "missing credentials"},
		{"forbidden", apperrors.ForbiddenError(nil, "operator role required"), http.StatusForbidden, "operator role required"},
		{"not found", apperrors.ResourceNotFoundError(nil, "transfer not found"), http.StatusNotFound, "transfer not found"},
		{"conflict", apperrors.ConflictError(nil, "not_failed"), http.StatusConflict, "not_failed"},
		{"dependency", apperrors.DependencyError(errors.New("rpc down"), "price unavailable"), http.StatusBadGateway, "price unavailable"},
		{"wrapped", errors.Join(errors.New("context"), apperrors.ConflictError(nil, "terminal")), http.StatusConflict, "terminal"},
		{"unknown", errors.New("pq: connection refused"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := render(t, tc.err)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, tc.code, body.Code)
			assert.Equal(t, tc.msg, body.Error)
		})
	}
}

func TestGeneralErrorKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := apperrors.GeneralError(cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, apperrors.Is(err, apperrors.CategoryGeneralError))
	assert.False(t, apperrors.Is(err, apperrors.CategoryDataError))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, ln, zap.NewNop(), time.Second) }()

	resp, err := http.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_ReportsServeFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	err = Serve(context.Background(), &http.Server{}, ln, zap.NewNop(), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server failed")
}
