package interact

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxKind classifies a built transaction by its shape.
type TxKind uint8

const (
	// TxDeploy installs new code at a fresh address.
	TxDeploy TxKind = iota

	// TxUpgrade replaces the code of an existing contract.
	TxUpgrade

	// TxCall invokes a state-mutating endpoint.
	TxCall

	// TxTransfer moves value without a payload.
	TxTransfer

	// TxQuery reads contract state without mutating it.
	TxQuery
)

func (k TxKind) String() string {
	switch k {
	case TxDeploy:
		return "deploy"
	case TxUpgrade:
		return "upgrade"
	case TxCall:
		return "call"
	case TxTransfer:
		return "transfer"
	case TxQuery:
		return "query"
	default:
		return fmt.Sprintf("txkind(%d)", uint8(k))
	}
}

// Transaction is a validated pending transaction. It is immutable; accessors
// return copies.
type Transaction struct {
	kind     TxKind
	from     common.Address
	to       *common.Address
	value    *big.Int
	gas      uint64
	nonce    uint64
	code     []byte
	metadata CodeMetadata
	op       *Operation
}

// Kind returns the transaction shape.
func (tx *Transaction) Kind() TxKind { return tx.kind }

// From returns the sender.
func (tx *Transaction) From() common.Address { return tx.from }

// To returns the receiver, or nil for deploys.
func (tx *Transaction) To() *common.Address {
	if tx.to == nil {
		return nil
	}
	to := *tx.to
	return &to
}

// Value returns the value transfer.
func (tx *Transaction) Value() *big.Int { return new(big.Int).Set(tx.value) }

// Gas returns the gas limit. Queries report zero.
func (tx *Transaction) Gas() uint64 { return tx.gas }

// Nonce returns the ordering token assigned by the sender context.
func (tx *Transaction) Nonce() uint64 { return tx.nonce }

// Code returns the code blob for deploys and upgrades.
func (tx *Transaction) Code() []byte { return append([]byte(nil), tx.code...) }

// CodeMetadata returns the metadata attached to the code.
func (tx *Transaction) CodeMetadata() CodeMetadata { return tx.metadata }

// withNonce returns a copy of tx carrying another nonce.
func (tx *Transaction) withNonce(nonce uint64) *Transaction {
	c := *tx
	c.nonce = nonce
	return &c
}

// Operation returns the typed operation, or nil for plain transfers and raw deploys.
func (tx *Transaction) Operation() *Operation { return tx.op }

// Payload returns the encoded operation, empty when there is none.
func (tx *Transaction) Payload() []byte {
	if tx.op == nil {
		return nil
	}
	return tx.op.Payload()
}

// Shape returns the declared result shape of the operation.
func (tx *Transaction) Shape() ResultShape {
	if tx.op == nil {
		return ShapeNone
	}
	return tx.op.Shape()
}

// TxBuilder accumulates optional transaction attributes. A builder builds once.
type TxBuilder struct {
	from     *common.Address
	to       *common.Address
	value    *big.Int
	gas      uint64
	nonce    uint64
	code     []byte
	metadata *CodeMetadata
	op       *Operation
	consumed bool
}

// NewTx creates an empty transaction builder.
func NewTx() *TxBuilder {
	return &TxBuilder{}
}

// From sets the sender.
func (b *TxBuilder) From(addr common.Address) *TxBuilder {
	b.from = &addr
	return b
}

// To sets the receiver.
func (b *TxBuilder) To(addr common.Address) *TxBuilder {
	b.to = &addr
	return b
}

// Value sets the native value transfer.
func (b *TxBuilder) Value(amount *big.Int) *TxBuilder {
	if amount != nil {
		b.value = new(big.Int).Set(amount)
	}
	return b
}

// Gas sets the gas limit.
func (b *TxBuilder) Gas(limit uint64) *TxBuilder {
	b.gas = limit
	return b
}

// Nonce sets the ordering token.
func (b *TxBuilder) Nonce(nonce uint64) *TxBuilder {
	b.nonce = nonce
	return b
}

// Code sets the code blob for a deploy or upgrade.
func (b *TxBuilder) Code(code []byte) *TxBuilder {
	b.code = append([]byte(nil), code...)
	return b
}

// CodeMetadata sets the flags attached to the code.
func (b *TxBuilder) CodeMetadata(metadata CodeMetadata) *TxBuilder {
	b.metadata = &metadata
	return b
}

// Typed sets the encoded operation carried by the transaction.
func (b *TxBuilder) Typed(op *Operation) *TxBuilder {
	b.op = op
	return b
}

// Build validates the accumulated attributes and returns an immutable transaction.
func (b *TxBuilder) Build() (*Transaction, error) {
	if b.consumed {
		return nil, ErrBuilderConsumed
	}
	b.consumed = true

	kind, err := b.classify()
	if err != nil {
		return nil, err
	}

	value := b.value
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return nil, ErrNegativeValue
	}

	tx := &Transaction{
		kind:  kind,
		to:    b.to,
		value: value,
		gas:   b.gas,
		nonce: b.nonce,
		op:    b.op,
	}

	if kind == TxQuery {
		if value.Sign() != 0 {
			return nil, fmt.Errorf("%w: query carries a value transfer", ErrConflictingTransactionShape)
		}
		tx.gas = 0
		if b.from != nil {
			tx.from = *b.from
		}
		return tx, nil
	}

	if b.from == nil {
		return nil, ErrMissingSender
	}
	tx.from = *b.from

	if b.gas == 0 {
		return nil, ErrMissingGasBudget
	}

	if kind == TxDeploy || kind == TxUpgrade {
		tx.code = b.code
		tx.metadata = CodeMetadataDefault
		if b.metadata != nil {
			tx.metadata = *b.metadata
		}
	}

	return tx, nil
}

// classify derives the transaction shape and rejects incompatible attributes.
func (b *TxBuilder) classify() (TxKind, error) {
	hasCode := len(b.code) > 0

	if b.op == nil {
		switch {
		case hasCode && b.to != nil:
			return 0, fmt.Errorf("%w: receiver with deploy code", ErrConflictingTransactionShape)
		case hasCode:
			return TxDeploy, nil
		case b.to == nil:
			return 0, ErrMissingReceiver
		default:
			return TxTransfer, nil
		}
	}

	switch b.op.Kind() {
	case KindInit:
		if b.to != nil {
			return 0, fmt.Errorf("%w: receiver with deploy code", ErrConflictingTransactionShape)
		}
		if !hasCode {
			return 0, ErrMissingCode
		}
		return TxDeploy, nil

	case KindUpgrade:
		if !hasCode {
			return 0, ErrMissingCode
		}
		if b.to == nil {
			return 0, ErrMissingReceiver
		}
		return TxUpgrade, nil

	case KindView:
		if hasCode {
			return 0, fmt.Errorf("%w: code on a query", ErrConflictingTransactionShape)
		}
		if b.to == nil {
			return 0, ErrMissingReceiver
		}
		return TxQuery, nil

	default:
		if hasCode {
			return 0, fmt.Errorf("%w: code on an endpoint call", ErrConflictingTransactionShape)
		}
		if b.to == nil {
			return 0, ErrMissingReceiver
		}
		return TxCall, nil
	}
}
