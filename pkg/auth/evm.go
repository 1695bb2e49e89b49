package auth

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignedMessagePrefix starts every message a wallet signs to authenticate.
// The rest of the message is the unix time of signing.
const SignedMessagePrefix = "xchain-orchestrator:"

// VerifyEIP191Signature verifies an EIP-191 personal_sign signature
// Returns the recovered Ethereum address if valid
func VerifyEIP191Signature(message, signature string) (common.Address, error) {
	sigBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature hex: %w", err)
	}

	if len(sigBytes) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: expected 65, got %d", len(sigBytes))
	}

	// v can be 0, 1, 27, or 28 - normalize to 0 or 1
	if sigBytes[64] >= 27 {
		sigBytes[64] -= 27
	}

	prefixedMsg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	msgHash := crypto.Keccak256Hash([]byte(prefixedMsg))

	pubKey, err := crypto.SigToPub(msgHash.Bytes(), sigBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// VerifyWalletLogin checks a signed login message and returns the checksummed
// signer address. The signing time must be within maxAge of now.
func VerifyWalletLogin(message, signature string, now time.Time, maxAge time.Duration) (string, error) {
	raw, ok := strings.CutPrefix(message, SignedMessagePrefix)
	if !ok {
		return "", fmt.Errorf("message must start with %q", SignedMessagePrefix)
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid message timestamp: %w", err)
	}
	signedAt := time.Unix(ts, 0)
	if age := now.Sub(signedAt); age > maxAge || age < -maxAge {
		return "", fmt.Errorf("signed message is stale")
	}

	addr, err := VerifyEIP191Signature(message, signature)
	if err != nil {
		return "", err
	}
	return NormalizeAddress(addr.Hex()), nil
}

// NormalizeAddress returns a checksummed EVM address
func NormalizeAddress(address string) string {
	return common.HexToAddress(address).Hex()
}
