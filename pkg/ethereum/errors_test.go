package ethereum

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

type revertErr struct {
	msg  string
	data string
}

func (e *revertErr) Error() string          { return e.msg }
func (e *revertErr) ErrorCode() int         { return 3 }
func (e *revertErr) ErrorData() interface{} { return e.data }

func TestClassifyError_Transient(t *testing.T) {
	cases := []error{
		errors.New("nonce too low"),
		errors.New("replacement transaction underpriced"),
		errors.New("dial tcp 127.0.0.1:8545: connect: connection refused"),
		errors.New("429 Too Many Requests"),
		errors.New("503 Service Unavailable"),
		errors.New("i/o timeout"),
		context.DeadlineExceeded,
		errors.New("something nobody has seen before"),
	}
	for _, err := range cases {
		if got := ClassifyError("send", err); !transfer.IsTransient(got) {
			t.Errorf("expected %q to be transient, got %T", err, got)
		}
	}
}

func TestClassifyError_Permanent(t *testing.T) {
	cases := []struct {
		err    error
		reason transfer.Reason
	}{
		{errors.New("insufficient funds for gas * price + value"), transfer.ReasonInsufficientFunds},
		{errors.New("execution reverted"), transfer.ReasonContractRejected},
		{errors.New("execution reverted: INVALID_PATH"), transfer.ReasonMalformedRoute},
		{errors.New("execution reverted: recipient rejected"), transfer.ReasonDestinationRejected},
		{errors.New("execution reverted: insufficient liquidity"), transfer.ReasonInsufficientLiquidity},
	}
	for _, tc := range cases {
		reason, ok := transfer.PermanentReason(ClassifyError("send", tc.err))
		if !ok || reason != tc.reason {
			t.Errorf("expected %q -> %s, got %s (%v)", tc.err, tc.reason, reason, ok)
		}
	}
}

func TestClassifyError_SlippageFromRevertData(t *testing.T) {
	// Error(string) "INSUFFICIENT_OUTPUT_AMOUNT"
	data := "0x08c379a0" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"000000000000000000000000000000000000000000000000000000000000001a" +
		"494e53554646494349454e545f4f55545055545f414d4f554e54000000000000"
	err := ClassifyError("swap", &revertErr{msg: "execution reverted", data: data})

	var slippage *transfer.SlippageExceededError
	if !errors.As(err, &slippage) {
		t.Fatalf("expected SlippageExceededError, got %T: %v", err, err)
	}
}

func TestClassifyError_PassesThroughClassified(t *testing.T) {
	original := transfer.Permanent(transfer.ReasonMalformedRoute, errors.New("bad"))
	wrapped := fmt.Errorf("step: %w", original)
	if got := ClassifyError("send", wrapped); got != wrapped {
		t.Errorf("expected classified error to pass through unchanged")
	}
}

func TestClassifyRevert(t *testing.T) {
	var slippage *transfer.SlippageExceededError
	if err := ClassifyRevert("swap", "INSUFFICIENT_OUTPUT_AMOUNT"); !errors.As(err, &slippage) {
		t.Errorf("expected slippage, got %v", err)
	}
	if reason, _ := transfer.PermanentReason(ClassifyRevert("complete", "")); reason != transfer.ReasonContractRejected {
		t.Errorf("expected contract_rejected for empty reason, got %s", reason)
	}
}

func TestParseAddress(t *testing.T) {
	valid := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		"0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED",
	}
	for _, s := range valid {
		if _, err := ParseAddress(s); err != nil {
			t.Errorf("expected %s valid: %v", s, err)
		}
	}

	invalid := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD",
		"0x1234",
		"not-an-address",
	}
	for _, s := range invalid {
		if _, err := ParseAddress(s); err == nil {
			t.Errorf("expected %s invalid", s)
		}
	}
}

func TestConfirmations(t *testing.T) {
	if got := Confirmations(100, 99); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := Confirmations(100, 100); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := Confirmations(100, 101); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}
