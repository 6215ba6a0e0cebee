package interact

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is the signing identity consumed by ledger adapters.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Wallet is a Signer backed by an in-memory secp256k1 key.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewWallet wraps a private key.
func NewWallet(key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// LoadWallet reads a hex encoded private key file.
func LoadWallet(path string) (*Wallet, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("load wallet %s: %w", path, err)
	}
	return NewWallet(key), nil
}

// Address returns the address derived from the key.
func (w *Wallet) Address() common.Address {
	return w.address
}

// SignTx signs tx for the given chain.
func (w *Wallet) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
}
