package interact

//go:generate mockgen -source ledger.go -destination ledger_mock.go -package interact

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Account is the sender context reported by the ledger.
type Account struct {
	Address common.Address
	Nonce   uint64
	Balance *big.Int
}

// PendingTx is a transaction the ledger accepted for inclusion. Its nonce is
// consumed whatever the final outcome.
type PendingTx struct {
	Hash       common.Hash
	Tx         *Transaction
	ReturnData []byte // captured before broadcast, when the ledger can

	signed *types.Transaction
}

// TxResult is the finalized outcome of a successful transaction.
type TxResult struct {
	Hash            common.Hash
	BlockNumber     uint64
	GasUsed         uint64
	ContractAddress common.Address // set for deploys
	ReturnData      []byte
}

// Ledger is the remote node the client talks to. Implementations sign and
// frame transactions as their wire protocol requires.
type Ledger interface {
	// Account returns the current nonce and balance of addr.
	Account(ctx context.Context, addr common.Address) (*Account, error)

	// Broadcast hands tx to the ledger without waiting for finality. When it
	// fails the nonce of tx is left unused.
	Broadcast(ctx context.Context, tx *Transaction) (*PendingTx, error)

	// Await blocks until the ledger reports finality for a broadcast
	// transaction. A transaction the ledger reverts yields a *TxFailedError.
	Await(ctx context.Context, pending *PendingTx) (*TxResult, error)

	// Query executes a read-only call against a contract.
	Query(ctx context.Context, to common.Address, payload []byte) ([]byte, error)
}
