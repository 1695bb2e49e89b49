package ethereum

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

var transientPatterns = []string{
	"timeout",
	"deadline exceeded",
	"nonce too low",
	"nonce too high",
	"replacement transaction underpriced",
	"already known",
	"connection refused",
	"connection reset",
	"broken pipe",
	"eof",
	"429",
	"too many requests",
	"rate limit",
	"502",
	"503",
	"504",
	"bad gateway",
	"service unavailable",
	"temporarily unavailable",
	"txpool is full",
	"congest",
	"header not found",
}

var slippagePatterns = []string{
	"insufficient_output_amount",
	"too little received",
	"slippage",
	"price moved",
}

var routePatterns = []string{
	"invalid_path",
	"invalid path",
	"malformed route",
	"invalid route",
}

// RevertReason extracts the Error(string) reason carried by a JSON-RPC
// revert, if any.
func RevertReason(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if raw, ok := dataErr.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(raw); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason
				}
			}
		}
	}
	return ""
}

// ClassifyError maps a chain interaction failure onto the transfer error
// taxonomy. Errors that are already classified pass through unchanged;
// anything unrecognised is treated as transient.
func ClassifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		transient *transfer.TransientChainError
		permanent *transfer.PermanentChainError
		slippage  *transfer.SlippageExceededError
		expired   *transfer.QuoteExpiredError
	)
	if errors.As(err, &transient) || errors.As(err, &permanent) ||
		errors.As(err, &slippage) || errors.As(err, &expired) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return transfer.Transient(op, err)
	}

	msg := strings.ToLower(err.Error())
	if reason := RevertReason(err); reason != "" {
		msg = msg + ": " + strings.ToLower(reason)
		err = fmt.Errorf("%w (reason: %s)", err, reason)
	}

	return classifyMessage(op, msg, err)
}

// ClassifyRevert classifies the reason of a mined transaction that reverted.
func ClassifyRevert(op, reason string) error {
	if reason == "" {
		reason = "execution reverted"
	}
	return classifyMessage(op, strings.ToLower(reason), errors.New(reason))
}

func classifyMessage(op, msg string, err error) error {
	switch {
	case containsAny(msg, slippagePatterns):
		return &transfer.SlippageExceededError{Err: err}
	case containsAny(msg, routePatterns):
		return transfer.Permanent(transfer.ReasonMalformedRoute, err)
	case strings.Contains(msg, "insufficient liquidity"):
		return transfer.Permanent(transfer.ReasonInsufficientLiquidity, err)
	case strings.Contains(msg, "insufficient funds"):
		return transfer.Permanent(transfer.ReasonInsufficientFunds, err)
	case strings.Contains(msg, "recipient rejected") || strings.Contains(msg, "blacklisted") ||
		strings.Contains(msg, "not whitelisted"):
		return transfer.Permanent(transfer.ReasonDestinationRejected, err)
	case containsAny(msg, transientPatterns):
		return transfer.Transient(op, err)
	case strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert") ||
		strings.Contains(msg, "-32602") || strings.Contains(msg, "-32600"):
		return transfer.Permanent(transfer.ReasonContractRejected, err)
	}
	return transfer.Transient(op, err)
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
