package interact

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	testSender    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testArtifacts = Artifacts{
		Counter: []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0x01},
		Caller:  []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0x02},
	}
	errConnectionReset = errors.New("connection reset by peer")
)

// simContract is the state of one deployed contract.
type simContract struct {
	iface   *Interface
	sum     *big.Int
	target  common.Address
	balance *big.Int
}

// simLedger executes counter and caller semantics in memory.
type simLedger struct {
	mu        sync.Mutex
	nonces    map[common.Address]uint64
	contracts map[common.Address]*simContract
	codes     map[string]*Interface

	// brokenUpgrade makes upgrades leave the sum untouched.
	brokenUpgrade bool
	// queryFailures is the number of queries that fail with a transport error.
	queryFailures int
	// delays and failures apply while awaiting finality; a failure there
	// still consumes the nonce.
	delays   map[uint64]time.Duration
	failures map[uint64]error
	// rejections fail the broadcast of a nonce once, leaving it unused.
	rejections map[uint64]error

	broadcasts []*Transaction
	submitted  []*Transaction
	queries    int
}

func newSimLedger() *simLedger {
	return &simLedger{
		nonces:    make(map[common.Address]uint64),
		contracts: make(map[common.Address]*simContract),
		codes: map[string]*Interface{
			string(testArtifacts.Counter): CounterInterface(),
			string(testArtifacts.Caller):  CallerInterface(),
		},
		delays:     make(map[uint64]time.Duration),
		failures:   make(map[uint64]error),
		rejections: make(map[uint64]error),
	}
}

func (l *simLedger) Account(_ context.Context, addr common.Address) (*Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Account{Address: addr, Nonce: l.nonces[addr], Balance: big.NewInt(1_000_000_000)}, nil
}

// Broadcast accepts only the sender's next nonce, like a node that refuses
// to queue behind a gap.
func (l *simLedger) Broadcast(_ context.Context, tx *Transaction) (*PendingTx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rejections[tx.Nonce()]; err != nil {
		delete(l.rejections, tx.Nonce())
		return nil, err
	}
	if want := l.nonces[tx.From()]; tx.Nonce() != want {
		return nil, fmt.Errorf("nonce %d, expected %d", tx.Nonce(), want)
	}
	l.nonces[tx.From()]++
	l.broadcasts = append(l.broadcasts, tx)
	return &PendingTx{Hash: common.BigToHash(big.NewInt(int64(len(l.broadcasts)))), Tx: tx}, nil
}

// Await executes the transaction after its configured delay. The submitted
// log is therefore in completion order.
func (l *simLedger) Await(ctx context.Context, pending *PendingTx) (*TxResult, error) {
	tx := pending.Tx

	l.mu.Lock()
	delay := l.delays[tx.Nonce()]
	l.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.submitted = append(l.submitted, tx)
	if err := l.failures[tx.Nonce()]; err != nil {
		return nil, err
	}

	res := &TxResult{
		Hash:        pending.Hash,
		BlockNumber: uint64(len(l.submitted)),
		GasUsed:     21_000,
	}

	switch tx.Kind() {
	case TxDeploy:
		iface, ok := l.codes[string(tx.Code())]
		if !ok {
			return nil, &TxFailedError{Hash: res.Hash, Reason: "invalid contract code"}
		}
		args, err := iface.DecodeArgs(InitOperation, tx.Payload())
		if err != nil {
			return nil, &TxFailedError{Hash: res.Hash, Reason: err.Error()}
		}
		c := &simContract{iface: iface, sum: new(big.Int), balance: new(big.Int)}
		switch iface.Tag() {
		case TagCounter:
			c.sum.SetUint64(uint64(args[0].(uint32)))
		case TagCaller:
			c.target = args[0].(common.Address)
		}
		addr := crypto.CreateAddress(tx.From(), tx.Nonce())
		l.contracts[addr] = c
		res.ContractAddress = addr

	case TxUpgrade:
		c, ok := l.contracts[*tx.To()]
		if !ok {
			return nil, &TxFailedError{Hash: res.Hash, Reason: "contract not found"}
		}
		args, err := c.iface.DecodeArgs("upgrade", tx.Payload())
		if err != nil {
			return nil, &TxFailedError{Hash: res.Hash, Reason: err.Error()}
		}
		switch c.iface.Tag() {
		case TagCounter:
			value := args[0].(*big.Int)
			if !l.brokenUpgrade {
				c.sum = new(big.Int).Set(value)
			}
			res.ReturnData = common.LeftPadBytes(value.Bytes(), 32)
		case TagCaller:
			c.target = args[0].(common.Address)
		}

	case TxCall:
		c, ok := l.contracts[*tx.To()]
		if !ok {
			return nil, &TxFailedError{Hash: res.Hash, Reason: "contract not found"}
		}
		name, args, err := c.iface.DecodeCall(tx.Payload())
		if err != nil {
			return nil, &TxFailedError{Hash: res.Hash, Reason: err.Error()}
		}
		switch name {
		case "add":
			c.sum.Add(c.sum, args[0].(*big.Int))
		case "callAdd":
			target, ok := l.contracts[c.target]
			if !ok {
				return nil, &TxFailedError{Hash: res.Hash, Reason: "target contract not found"}
			}
			target.sum.Add(target.sum, args[0].(*big.Int))
		}

	case TxTransfer:
		if c, ok := l.contracts[*tx.To()]; ok {
			c.balance.Add(c.balance, tx.Value())
		}
	}
	return res, nil
}

func (l *simLedger) Query(_ context.Context, to common.Address, payload []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.queries++
	if l.queryFailures > 0 {
		l.queryFailures--
		return nil, errConnectionReset
	}

	c, ok := l.contracts[to]
	if !ok {
		return nil, &TxFailedError{Reason: "contract not found"}
	}
	name, _, err := c.iface.DecodeCall(payload)
	if err != nil {
		return nil, &TxFailedError{Reason: err.Error()}
	}
	method := c.iface.ABI().Methods[name]
	switch name {
	case "sum":
		return method.Outputs.Pack(new(big.Int).Set(c.sum))
	case "targetAddress":
		return method.Outputs.Pack(c.target)
	}
	return nil, &TxFailedError{Reason: "not a view: " + name}
}

func (l *simLedger) contract(addr common.Address) *simContract {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.contracts[addr]
}

func (l *simLedger) submissions() []*Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Transaction(nil), l.submitted...)
}

// newTestClient returns a client over a fresh simulated ledger and an
// in-memory address book.
func newTestClient(opts ...ClientOption) (*Client, *simLedger) {
	ledger := newSimLedger()
	book := NewAddressBook("")
	return NewClient(ledger, NewSender(testSender), book, testArtifacts, opts...), ledger
}
