// Package signer defines the custody boundary. The orchestrator never holds
// keys itself in production: it hands unsigned transaction requests to a
// Signer and broadcasts what comes back.
package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TxRequest is an unsigned legacy transaction for a specific chain.
type TxRequest struct {
	ChainID  *big.Int
	Nonce    uint64
	To       common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
	GasPrice *big.Int
}

// Signer signs transactions on behalf of the orchestrator.
type Signer interface {
	// Address returns the account transactions are sent from.
	Address() common.Address
	// Sign returns the signed transaction for chain.
	Sign(ctx context.Context, chain string, req *TxRequest) (*ethtypes.Transaction, error)
}

// KeyedSigner signs with an in-process ECDSA key. Intended for local
// development and tests.
type KeyedSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewKeyedSigner creates a signer from a private key.
func NewKeyedSigner(privateKey *ecdsa.PrivateKey) (*KeyedSigner, error) {
	if privateKey == nil {
		return nil, errors.New("private key is required")
	}
	pub, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("cannot assign public key to ECDSA")
	}
	return &KeyedSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*pub),
	}, nil
}

// NewKeyedSignerFromHex parses a hex encoded private key, with or without 0x.
func NewKeyedSignerFromHex(hexKey string) (*KeyedSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}
	return NewKeyedSigner(key)
}

// Address returns the signer's address.
func (s *KeyedSigner) Address() common.Address {
	return s.address
}

// Sign signs req as a legacy transaction with EIP-155 replay protection.
func (s *KeyedSigner) Sign(_ context.Context, _ string, req *TxRequest) (*ethtypes.Transaction, error) {
	if req == nil || req.ChainID == nil {
		return nil, errors.New("chain id is required")
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    req.Nonce,
		To:       &to,
		Value:    value,
		Gas:      req.GasLimit,
		GasPrice: req.GasPrice,
		Data:     req.Data,
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(req.ChainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}
