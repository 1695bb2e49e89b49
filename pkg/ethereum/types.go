package ethereum

import (
	"errors"
	"fmt"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Confirmations returns how many blocks include and follow block at head.
func Confirmations(head, block uint64) uint64 {
	if block > head {
		return 0
	}
	return head - block + 1
}

// ParseHash parses a 0x prefixed 32 byte hash.
func ParseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash %q", s)
	}
	return common.BytesToHash(b), nil
}

// ParseAddress parses an EVM address. Mixed-case input must carry a valid
// EIP-55 checksum.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	addr := common.HexToAddress(s)
	body := s
	if len(body) >= 2 && (body[:2] == "0x" || body[:2] == "0X") {
		body = body[2:]
	}
	if hasMixedCase(body) && addr.Hex()[2:] != body {
		return common.Address{}, fmt.Errorf("invalid address checksum %q", s)
	}
	return addr, nil
}

// IsNotFound reports whether err is the RPC not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, geth.NotFound)
}

func hasMixedCase(s string) bool {
	var upper, lower bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'f':
			lower = true
		case r >= 'A' && r <= 'F':
			upper = true
		}
	}
	return upper && lower
}
