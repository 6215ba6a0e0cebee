package interact

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Dispatcher submits transactions to a Ledger and resolves their outcomes.
type Dispatcher struct {
	ledger           Ledger
	limiter          *rate.Limiter
	metrics          *Metrics
	tracer           *Tracer
	queryRetries     uint64
	queryBackoff     time.Duration
	batchConcurrency int
}

// NewDispatcher creates a dispatcher over ledger.
func NewDispatcher(ledger Ledger, opts ...DispatcherOption) *Dispatcher {
	cfg := defaultDispatcherConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Dispatcher{
		ledger:           ledger,
		limiter:          rate.NewLimiter(cfg.submitRate, cfg.submitBurst),
		metrics:          NewMetrics(cfg.registerer),
		tracer:           cfg.tracer,
		queryRetries:     cfg.queryRetries,
		queryBackoff:     cfg.queryBackoff,
		batchConcurrency: cfg.batchConcurrency,
	}
}

// Submit sends one transaction and blocks until it finalizes. Queries are
// routed through Query and report their raw result as ReturnData.
func (d *Dispatcher) Submit(ctx context.Context, tx *Transaction) (*TxResult, error) {
	if tx.Kind() == TxQuery {
		out, err := d.Query(ctx, tx)
		if err != nil {
			return nil, err
		}
		return &TxResult{ReturnData: out}, nil
	}

	start := time.Now()
	pending, err := d.broadcast(ctx, tx)
	if err != nil {
		return nil, err
	}
	return d.await(ctx, pending, start)
}

// SubmitBatch dispatches every transaction of the batch and waits for all of
// them. Results are index-aligned with the batch; a failed element does not
// affect the others.
//
// Elements are broadcast one at a time in batch order, then awaited
// concurrently. A ledger finalizes a sender's transactions in nonce order, so
// when an element fails before broadcast its nonce is handed to the next
// element of the same sender instead of leaving a gap the later elements
// would wait on forever.
func (d *Dispatcher) SubmitBatch(ctx context.Context, batch *Batch) []Result[*TxResult] {
	results := make([]Result[*TxResult], batch.Len())
	pending := make([]*PendingTx, batch.Len())
	started := make([]time.Time, batch.Len())
	unused := make(map[common.Address]uint64)

	batch.ForEach(func(i int, tx *Transaction) bool {
		if tx.Kind() == TxQuery {
			return true
		}
		if shift := unused[tx.From()]; shift > 0 {
			tx = tx.withNonce(tx.Nonce() - shift)
		}
		started[i] = time.Now()
		p, err := d.broadcast(ctx, tx)
		if err != nil {
			results[i] = Err[*TxResult](err)
			unused[tx.From()]++
			return true
		}
		pending[i] = p
		return true
	})

	var g errgroup.Group
	if d.batchConcurrency > 0 {
		g.SetLimit(d.batchConcurrency)
	}
	batch.ForEach(func(i int, tx *Transaction) bool {
		if tx.Kind() != TxQuery && pending[i] == nil {
			return true
		}
		g.Go(func() error {
			var (
				res *TxResult
				err error
			)
			if tx.Kind() == TxQuery {
				res, err = d.Submit(ctx, tx)
			} else {
				res, err = d.await(ctx, pending[i], started[i])
			}
			if err != nil {
				results[i] = Err[*TxResult](err)
			} else {
				results[i] = Ok(res)
			}
			return nil
		})
		return true
	})

	// Elements never report errors to the group; failures live in their slot.
	_ = g.Wait()
	return results
}

// broadcast paces and hands tx to the ledger. A failure here means the nonce
// of tx was not consumed.
func (d *Dispatcher) broadcast(ctx context.Context, tx *Transaction) (*PendingTx, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	d.metrics.submitted.WithLabelValues(tx.Kind().String()).Inc()

	pending, err := d.ledger.Broadcast(ctx, tx)
	if err != nil {
		d.finish(tx, nil, err)
		return nil, err
	}
	if pending.Tx == nil {
		pending.Tx = tx
	}
	return pending, nil
}

// await waits for a broadcast transaction to finalize.
func (d *Dispatcher) await(ctx context.Context, pending *PendingTx, start time.Time) (*TxResult, error) {
	tx := pending.Tx
	res, err := d.ledger.Await(ctx, pending)
	if err == nil && tx.Kind() == TxDeploy && res.ContractAddress == (common.Address{}) {
		err = ErrNoContractAddress
	}
	d.metrics.finality.Observe(time.Since(start).Seconds())
	d.finish(tx, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// finish records the outcome of a transaction.
func (d *Dispatcher) finish(tx *Transaction, res *TxResult, err error) {
	kind := tx.Kind().String()
	d.tracer.Record(tx, res, err)
	if err != nil {
		d.metrics.failed.WithLabelValues(kind).Inc()
		log.Warn("Transaction failed", "kind", kind, "nonce", tx.Nonce(), "err", err)
		return
	}
	log.Debug("Transaction finalized", "kind", kind, "hash", res.Hash, "gasUsed", res.GasUsed)
}

// Query runs a read-only transaction. Queries have no side effects, so
// transport failures are retried silently with exponential backoff. Failures
// reported by the contract itself are returned immediately.
func (d *Dispatcher) Query(ctx context.Context, tx *Transaction) ([]byte, error) {
	if tx.Kind() != TxQuery {
		return nil, ErrNotQuery
	}
	to := *tx.To()
	payload := tx.Payload()
	d.metrics.queries.Inc()

	var (
		out      []byte
		attempts int
	)
	operation := func() error {
		attempts++
		if attempts > 1 {
			d.metrics.queryRetries.Inc()
		}
		res, err := d.ledger.Query(ctx, to, payload)
		if err != nil {
			if errors.Is(err, ErrTxFailed) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			log.Debug("Query failed, retrying", "to", to, "attempt", attempts, "err", err)
			return err
		}
		out = res
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.queryBackoff
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, d.queryRetries), ctx))
	d.tracer.RecordQuery(tx, out, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}
