package interact

import "fmt"

// Batch accumulates a homogeneous set of transactions: every element shares
// the transaction kind, the contract interface and the result shape, so a
// single decode path applies to all results.
type Batch struct {
	kind  TxKind
	iface *Interface
	shape ResultShape
	txs   []*Transaction
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{
		txs: make([]*Transaction, 0, 16),
	}
}

// Add appends a transaction. The first transaction fixes the batch kind,
// interface and shape; later ones must match.
func (b *Batch) Add(tx *Transaction) error {
	var iface *Interface
	if op := tx.Operation(); op != nil {
		iface = op.Interface()
	}

	if len(b.txs) == 0 {
		b.kind = tx.Kind()
		b.iface = iface
		b.shape = tx.Shape()
		b.txs = append(b.txs, tx)
		return nil
	}

	switch {
	case tx.Kind() != b.kind:
		return fmt.Errorf("%w: %s transaction in a %s batch", ErrInhomogeneousBatch, tx.Kind(), b.kind)
	case iface != b.iface:
		return fmt.Errorf("%w: interface differs from the batch interface", ErrInhomogeneousBatch)
	case tx.Shape() != b.shape:
		return fmt.Errorf("%w: %s result in a %s batch", ErrInhomogeneousBatch, tx.Shape(), b.shape)
	}

	b.txs = append(b.txs, tx)
	return nil
}

// Kind returns the shared transaction kind.
func (b *Batch) Kind() TxKind {
	return b.kind
}

// Interface returns the shared interface, nil for untyped transactions.
func (b *Batch) Interface() *Interface {
	return b.iface
}

// Shape returns the shared result shape.
func (b *Batch) Shape() ResultShape {
	return b.shape
}

// Len returns the number of transactions in the batch.
func (b *Batch) Len() int {
	return len(b.txs)
}

// At returns the transaction at the given index.
func (b *Batch) At(i int) *Transaction {
	if i < 0 || i >= len(b.txs) {
		return nil
	}
	return b.txs[i]
}

// ForEach iterates over the batch in submission order.
// The callback receives the index and transaction. Return false to stop iteration.
func (b *Batch) ForEach(fn func(int, *Transaction) bool) {
	for i, tx := range b.txs {
		if !fn(i, tx) {
			return
		}
	}
}

// Decode resolves each successful result through the batch's shared decode
// path: deploys yield the new contract address, typed elements their return
// data decoded under the batch shape, untyped elements nil. Failures pass
// through unchanged.
func (b *Batch) Decode(results []Result[*TxResult]) []Result[any] {
	decoded := make([]Result[any], len(results))
	for i, r := range results {
		res, err := r.Get()
		if err != nil {
			decoded[i] = Err[any](err)
			continue
		}
		v, err := b.decode(res)
		if err != nil {
			decoded[i] = Err[any](fmt.Errorf("element %d: %w", i, err))
			continue
		}
		decoded[i] = Ok[any](v)
	}
	return decoded
}

func (b *Batch) decode(res *TxResult) (any, error) {
	switch {
	case b.kind == TxDeploy:
		return res.ContractAddress, nil
	case b.iface == nil:
		return nil, nil
	default:
		return b.iface.Decode(b.shape, res.ReturnData)
	}
}
