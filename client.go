package interact

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Client exposes the domain operations on the counter and caller contracts.
// It is the only component that mutates the address book.
type Client struct {
	ledger     Ledger
	dispatcher *Dispatcher
	sender     *Sender
	book       *AddressBook
	artifacts  Artifacts
	counter    *Interface
	caller     *Interface
	gas        GasSchedule
	feedValue  *big.Int
}

// NewClient creates a client sending from sender and recording deployments in book.
func NewClient(ledger Ledger, sender *Sender, book *AddressBook, artifacts Artifacts, opts ...ClientOption) *Client {
	c := &Client{
		ledger:    ledger,
		sender:    sender,
		book:      book,
		artifacts: artifacts,
		counter:   CounterInterface(),
		caller:    CallerInterface(),
		gas:       DefaultGasSchedule(),
		feedValue: new(big.Int).Set(DefaultFeedValue),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dispatcher == nil {
		c.dispatcher = NewDispatcher(ledger)
	}
	return c
}

// Sender returns the sender context.
func (c *Client) Sender() *Sender {
	return c.sender
}

// AddressBook returns the address book.
func (c *Client) AddressBook() *AddressBook {
	return c.book
}

// Dispatcher returns the dispatcher used for all submissions.
func (c *Client) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// refreshSender reloads the sender account from the ledger.
func (c *Client) refreshSender(ctx context.Context) error {
	log.Info("Using wallet", "address", c.sender.Address())
	return c.sender.Refresh(ctx, c.ledger)
}

// ensureSender loads the sender account unless it was loaded before.
func (c *Client) ensureSender(ctx context.Context) error {
	if c.sender.Synced() {
		return nil
	}
	return c.sender.Refresh(ctx, c.ledger)
}

func (c *Client) deployTx(iface *Interface, code []byte, gas uint64, args ...any) (*Transaction, error) {
	op, err := iface.Encode(InitOperation, args...)
	if err != nil {
		return nil, err
	}
	return NewTx().
		From(c.sender.Address()).
		Gas(gas).
		Typed(op).
		Code(code).
		CodeMetadata(CodeMetadataUpgradeable).
		Nonce(c.sender.NextNonce()).
		Build()
}

// submit dispatches tx. A failure invalidates the sender so the next
// operation resumes from the ledger's nonce rather than a skipped one.
func (c *Client) submit(ctx context.Context, tx *Transaction) (*TxResult, error) {
	res, err := c.dispatcher.Submit(ctx, tx)
	if err != nil {
		c.sender.Invalidate()
		return nil, err
	}
	return res, nil
}

func (c *Client) record(role Role, addr common.Address) error {
	log.Info("Deployed contract", "role", role, "address", addr)
	if err := c.book.Set(role, addr); err != nil {
		return fmt.Errorf("record %s address %s: %w", role, addr.Hex(), err)
	}
	return nil
}

// Deploy deploys a counter starting at zero and records it as the current
// counter. Only the last deployed address is retained.
func (c *Client) Deploy(ctx context.Context) (common.Address, error) {
	if err := c.refreshSender(ctx); err != nil {
		return common.Address{}, err
	}

	tx, err := c.deployTx(c.counter, c.artifacts.Counter, c.gas.Deploy, uint32(0))
	if err != nil {
		return common.Address{}, err
	}
	res, err := c.submit(ctx, tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("deploy counter: %w", err)
	}
	return res.ContractAddress, c.record(RoleCounter, res.ContractAddress)
}

// DeployCaller deploys a caller bound to the current counter.
func (c *Client) DeployCaller(ctx context.Context) (common.Address, error) {
	counter, err := c.book.Require(RoleCounter)
	if err != nil {
		return common.Address{}, err
	}
	if err := c.refreshSender(ctx); err != nil {
		return common.Address{}, err
	}

	tx, err := c.deployTx(c.caller, c.artifacts.Caller, c.gas.Deploy, counter)
	if err != nil {
		return common.Address{}, err
	}
	res, err := c.submit(ctx, tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("deploy caller: %w", err)
	}
	return res.ContractAddress, c.record(RoleCaller, res.ContractAddress)
}

// MultiDeploy deploys count counters as one concurrent batch. Each successful
// deploy overwrites the counter entry in batch order, so the last element's
// address is the one retained. A non-positive count is rejected with a
// message and no dispatch. Failed elements are joined into the returned error.
func (c *Client) MultiDeploy(ctx context.Context, count int) ([]common.Address, error) {
	if count <= 0 {
		log.Warn("count must be greater than 0", "count", count)
		return nil, nil
	}
	if err := c.refreshSender(ctx); err != nil {
		return nil, err
	}
	log.Info("Deploying contracts", "count", count)

	batch := NewBatch()
	for i := 0; i < count; i++ {
		tx, err := c.deployTx(c.counter, c.artifacts.Counter, c.gas.MultiDeploy, uint32(0))
		if err != nil {
			return nil, err
		}
		if err := batch.Add(tx); err != nil {
			return nil, err
		}
	}

	var (
		deployed []common.Address
		errs     []error
	)
	for i, result := range batch.Decode(c.dispatcher.SubmitBatch(ctx, batch)) {
		v, err := result.Get()
		if err != nil {
			errs = append(errs, fmt.Errorf("deploy %d of %d: %w", i+1, count, err))
			continue
		}
		addr := v.(common.Address)
		if err := c.record(RoleCounter, addr); err != nil {
			errs = append(errs, err)
			continue
		}
		deployed = append(deployed, addr)
	}
	if len(errs) > 0 {
		c.sender.Invalidate()
	}
	return deployed, errors.Join(errs...)
}

// Feed transfers the feed value to the current counter.
func (c *Client) Feed(ctx context.Context) error {
	counter, err := c.book.Require(RoleCounter)
	if err != nil {
		return err
	}
	if err := c.ensureSender(ctx); err != nil {
		return err
	}

	tx, err := NewTx().
		From(c.sender.Address()).
		To(counter).
		Value(c.feedValue).
		Gas(c.gas.Feed).
		Nonce(c.sender.NextNonce()).
		Build()
	if err != nil {
		return err
	}
	if _, err := c.submit(ctx, tx); err != nil {
		return fmt.Errorf("feed counter: %w", err)
	}
	log.Info("Fed contract", "address", counter, "value", c.feedValue)
	return nil
}

// call builds and dispatches a state-mutating endpoint call on the contract
// bound to role.
func (c *Client) call(ctx context.Context, role Role, iface *Interface, name string, args ...any) (*TxResult, error) {
	to, err := c.book.Require(role)
	if err != nil {
		return nil, err
	}
	op, err := iface.Encode(name, args...)
	if err != nil {
		return nil, err
	}
	if err := c.ensureSender(ctx); err != nil {
		return nil, err
	}

	tx, err := NewTx().
		From(c.sender.Address()).
		To(to).
		Gas(c.gas.Call).
		Typed(op).
		Nonce(c.sender.NextNonce()).
		Build()
	if err != nil {
		return nil, err
	}
	res, err := c.submit(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", name, role, err)
	}
	return res, nil
}

// Add adds amount to the counter's stored sum.
func (c *Client) Add(ctx context.Context, amount *big.Int) error {
	if _, err := c.call(ctx, RoleCounter, c.counter, "add", amount); err != nil {
		return err
	}
	log.Info("Successfully performed add", "value", amount)
	return nil
}

// CallCaller asks the caller contract to add amount to its counter through
// a nested synchronous call.
func (c *Client) CallCaller(ctx context.Context, amount *big.Int) error {
	if _, err := c.call(ctx, RoleCaller, c.caller, "callAdd", amount); err != nil {
		return err
	}
	log.Info("Successfully performed add through caller", "value", amount)
	return nil
}

// query runs a read-only operation on the contract bound to role.
func (c *Client) query(ctx context.Context, role Role, iface *Interface, name string, args ...any) (*Operation, []byte, error) {
	to, err := c.book.Require(role)
	if err != nil {
		return nil, nil, err
	}
	op, err := iface.Encode(name, args...)
	if err != nil {
		return nil, nil, err
	}
	tx, err := NewTx().To(to).Typed(op).Build()
	if err != nil {
		return nil, nil, err
	}
	out, err := c.dispatcher.Query(ctx, tx)
	if err != nil {
		return nil, nil, fmt.Errorf("%s on %s: %w", name, role, err)
	}
	return op, out, nil
}

// Sum returns the counter's stored sum.
func (c *Client) Sum(ctx context.Context) (*big.Int, error) {
	op, out, err := c.query(ctx, RoleCounter, c.counter, "sum")
	if err != nil {
		return nil, err
	}
	v, err := op.Decode(out)
	if err != nil {
		return nil, err
	}
	return v.(*big.Int), nil
}

// TargetAddress returns the counter address stored in the caller contract.
func (c *Client) TargetAddress(ctx context.Context) (common.Address, error) {
	_, out, err := c.query(ctx, RoleCaller, c.caller, "targetAddress")
	if err != nil {
		return common.Address{}, err
	}
	values, err := c.caller.DecodeOutputs("targetAddress", out)
	if err != nil {
		return common.Address{}, err
	}
	return values[0].(common.Address), nil
}

// Upgrade replaces the counter code in place, reinitializing the sum to
// newValue, and verifies the sum afterwards. A sum differing from newValue
// yields an *UpgradeMismatchError: the contract state did not survive the
// upgrade as required and the run must not continue.
func (c *Client) Upgrade(ctx context.Context, newValue *big.Int) (*big.Int, error) {
	counter, err := c.book.Require(RoleCounter)
	if err != nil {
		return nil, err
	}
	op, err := c.counter.Encode("upgrade", newValue)
	if err != nil {
		return nil, err
	}
	if err := c.ensureSender(ctx); err != nil {
		return nil, err
	}

	tx, err := NewTx().
		From(c.sender.Address()).
		To(counter).
		Gas(c.gas.Upgrade).
		Typed(op).
		Code(c.artifacts.Counter).
		CodeMetadata(CodeMetadataUpgradeable).
		Nonce(c.sender.NextNonce()).
		Build()
	if err != nil {
		return nil, err
	}
	res, err := c.submit(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("upgrade counter: %w", err)
	}
	decoded, err := op.Decode(res.ReturnData)
	if err != nil {
		return nil, err
	}
	response := decoded.(*big.Int)

	sum, err := c.Sum(ctx)
	if err != nil {
		return nil, err
	}
	if sum.Cmp(newValue) != 0 {
		log.Error("Upgrade did not reinitialize the counter", "address", counter, "expected", newValue, "sum", sum)
		return nil, &UpgradeMismatchError{Contract: counter, Expected: new(big.Int).Set(newValue), Got: sum}
	}

	log.Info("Upgraded contract", "address", counter, "response", response)
	return response, nil
}
