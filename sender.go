package interact

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Sender is the local account context: the sending address and the next
// nonce to hand out. Nonces are assigned locally so a batch can be built
// without a round trip per element.
type Sender struct {
	mu      sync.Mutex
	address common.Address
	nonce   uint64
	balance *big.Int
	synced  bool
}

// NewSender creates an unsynced sender context for addr.
func NewSender(addr common.Address) *Sender {
	return &Sender{address: addr, balance: new(big.Int)}
}

// Address returns the sender address.
func (s *Sender) Address() common.Address {
	return s.address
}

// Refresh reloads the nonce and balance from the ledger.
func (s *Sender) Refresh(ctx context.Context, ledger Ledger) error {
	account, err := ledger.Account(ctx, s.address)
	if err != nil {
		return fmt.Errorf("retrieve account %s: %w", s.address.Hex(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonce = account.Nonce
	if account.Balance != nil {
		s.balance = new(big.Int).Set(account.Balance)
	}
	s.synced = true
	log.Debug("Refreshed sender account", "address", s.address, "nonce", s.nonce, "balance", s.balance)
	return nil
}

// Synced reports whether the context was loaded from the ledger at least once.
func (s *Sender) Synced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

// Invalidate marks the context stale. After a failed submission the local
// nonce may be ahead of the ledger; the next ensure reloads it.
func (s *Sender) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = false
}

// NextNonce returns the next ordering token and advances the counter.
func (s *Sender) NextNonce() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nonce
	s.nonce++
	return n
}

// Balance returns the balance observed at the last refresh.
func (s *Sender) Balance() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.balance)
}
