package interact

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Anvil default account 0.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testWallet(t *testing.T) *Wallet {
	t.Helper()
	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)
	return NewWallet(key)
}

// revertError mimics the JSON-RPC error carrying revert data.
type revertError struct {
	data string
}

func (e *revertError) Error() string          { return "execution reverted" }
func (e *revertError) ErrorData() interface{} { return e.data }

func revertData(t *testing.T, reason string) string {
	t.Helper()
	stringTy, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	require.NoError(t, err)
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return hexutil.Encode(append(selector, packed...))
}

// fakeBackend records what EthLedger sends and answers with canned results.
type fakeBackend struct {
	mu         sync.Mutex
	chainID    *big.Int
	nonce      uint64
	balance    *big.Int
	callResult []byte
	callErr    error
	calls      []ethereum.CallMsg
	sent       []*types.Transaction
	mined      map[common.Hash]bool
	next       uint64
	status     uint64
	chainErrs  int
	chainCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID: big.NewInt(31337),
		balance: big.NewInt(1e18),
		mined:   make(map[common.Hash]bool),
		status:  types.ReceiptStatusSuccessful,
	}
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chainCalls++
	if b.chainErrs > 0 {
		b.chainErrs--
		return nil, context.Canceled
	}
	return b.chainID, nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return b.balance, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, msg)
	return b.callResult, b.callErr
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

// TransactionReceipt mines sent transactions strictly in nonce order: a
// missing nonce holds back every later one.
func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for progress := true; progress; {
		progress = false
		for _, tx := range b.sent {
			if tx.Nonce() == b.next && !b.mined[tx.Hash()] {
				b.mined[tx.Hash()] = true
				b.next++
				progress = true
			}
		}
	}

	for _, tx := range b.sent {
		if tx.Hash() != hash || !b.mined[hash] {
			continue
		}
		receipt := &types.Receipt{
			Status:      b.status,
			TxHash:      hash,
			GasUsed:     52_000,
			BlockNumber: big.NewInt(12),
		}
		if tx.To() == nil {
			from, err := types.Sender(types.LatestSignerForChainID(b.chainID), tx)
			if err != nil {
				return nil, err
			}
			receipt.ContractAddress = crypto.CreateAddress(from, tx.Nonce())
		}
		return receipt, nil
	}
	return nil, ethereum.NotFound
}

func (b *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return testArtifacts.Counter, nil
}

// flakySigner fails its first signature.
type flakySigner struct {
	Signer
	failed bool
}

func (s *flakySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if !s.failed {
		s.failed = true
		return nil, errors.New("signer unavailable")
	}
	return s.Signer.SignTx(tx, chainID)
}

func submitEth(ledger *EthLedger, tx *Transaction) (*TxResult, error) {
	ctx := context.Background()
	pending, err := ledger.Broadcast(ctx, tx)
	if err != nil {
		return nil, err
	}
	return ledger.Await(ctx, pending)
}

func TestEthLedgerAccount(t *testing.T) {
	wallet := testWallet(t)
	backend := newFakeBackend()
	backend.nonce = 4
	ledger := NewEthLedger(backend, wallet)

	account, err := ledger.Account(context.Background(), wallet.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), account.Nonce)
	assert.Equal(t, backend.balance, account.Balance)

	sender := NewSender(wallet.Address())
	require.NoError(t, sender.Refresh(context.Background(), ledger))
	assert.True(t, sender.Synced())
	assert.Equal(t, uint64(4), sender.NextNonce())
	assert.Equal(t, uint64(5), sender.NextNonce())
	assert.Equal(t, backend.balance, sender.Balance())
}

func TestEthLedgerSubmitCall(t *testing.T) {
	wallet := testWallet(t)
	backend := newFakeBackend()
	ledger := NewEthLedger(backend, wallet)

	op := CounterInterface().MustEncode("add", 5)
	tx, err := NewTx().From(wallet.Address()).To(testContract).Gas(30_000_000).Typed(op).Build()
	require.NoError(t, err)

	res, err := submitEth(ledger, tx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), res.BlockNumber)
	assert.Equal(t, uint64(52_000), res.GasUsed)
	assert.Equal(t, common.Address{}, res.ContractAddress)

	require.Len(t, backend.sent, 1)
	sent := backend.sent[0]
	assert.Equal(t, res.Hash, sent.Hash())
	assert.Equal(t, op.Payload(), sent.Data())
	assert.Equal(t, testContract, *sent.To())
	assert.Equal(t, uint64(0), sent.Nonce())
	assert.Equal(t, uint64(30_000_000), sent.Gas())

	from, err := types.Sender(types.LatestSignerForChainID(backend.chainID), sent)
	require.NoError(t, err)
	assert.Equal(t, wallet.Address(), from)

	require.Len(t, backend.calls, 1, "every transaction is simulated first")
	assert.Equal(t, wallet.Address(), backend.calls[0].From)
}

func TestEthLedgerSubmitDeploy(t *testing.T) {
	wallet := testWallet(t)
	backend := newFakeBackend()
	backend.callResult = []byte{0xfe, 0xfe}
	ledger := NewEthLedger(backend, wallet)

	op := CounterInterface().MustEncode(InitOperation, 0)
	tx, err := NewTx().From(wallet.Address()).Gas(30_000_000).Typed(op).
		Code(testArtifacts.Counter).CodeMetadata(CodeMetadataUpgradeable).Build()
	require.NoError(t, err)

	res, err := submitEth(ledger, tx)
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(wallet.Address(), 0), res.ContractAddress)
	assert.Nil(t, res.ReturnData, "the simulated runtime code is not a result")

	sent := backend.sent[0]
	assert.Nil(t, sent.To())
	assert.Equal(t, EncodeDeployFrame(testArtifacts.Counter, op.Payload()), sent.Data())
}

func TestEthLedgerSubmitUpgrade(t *testing.T) {
	wallet := testWallet(t)
	backend := newFakeBackend()
	word := common.LeftPadBytes(big.NewInt(3).Bytes(), 32)
	ret, err := upgradeHook.Methods[upgradeHookMethod].Outputs.Pack(word)
	require.NoError(t, err)
	backend.callResult = ret
	ledger := NewEthLedger(backend, wallet)

	op := CounterInterface().MustEncode("upgrade", 3)
	tx, err := NewTx().From(wallet.Address()).To(testContract).Gas(30_000_000).Typed(op).
		Code(testArtifacts.Counter).CodeMetadata(CodeMetadataUpgradeable).Build()
	require.NoError(t, err)

	res, err := submitEth(ledger, tx)
	require.NoError(t, err)
	assert.Equal(t, word, res.ReturnData)

	code, metadata, args, err := DecodeUpgradeFrame(backend.sent[0].Data())
	require.NoError(t, err)
	assert.Equal(t, testArtifacts.Counter, code)
	assert.Equal(t, CodeMetadataUpgradeable, metadata)
	assert.Equal(t, op.Payload(), args)
}

func TestEthLedgerFailures(t *testing.T) {
	wallet := testWallet(t)
	op := CounterInterface().MustEncode("add", 1)
	newCall := func(t *testing.T, from common.Address) *Transaction {
		tx, err := NewTx().From(from).To(testContract).Gas(1).Typed(op).Build()
		require.NoError(t, err)
		return tx
	}

	t.Run("simulation revert carries the reason", func(t *testing.T) {
		backend := newFakeBackend()
		backend.callErr = &revertError{data: revertData(t, "not enough funds")}

		_, err := submitEth(NewEthLedger(backend, wallet), newCall(t, wallet.Address()))
		require.ErrorIs(t, err, ErrTxFailed)

		var failed *TxFailedError
		require.True(t, errors.As(err, &failed))
		assert.Equal(t, "not enough funds", failed.Reason)
		assert.Empty(t, backend.sent, "a reverting transaction is not sent")
	})

	t.Run("failed receipt", func(t *testing.T) {
		backend := newFakeBackend()
		backend.status = types.ReceiptStatusFailed

		_, err := submitEth(NewEthLedger(backend, wallet), newCall(t, wallet.Address()))
		require.ErrorIs(t, err, ErrTxFailed)
	})

	t.Run("foreign sender", func(t *testing.T) {
		backend := newFakeBackend()
		_, err := submitEth(NewEthLedger(backend, wallet), newCall(t, testContract))
		require.Error(t, err)
		assert.Empty(t, backend.sent)
	})

	t.Run("query error", func(t *testing.T) {
		backend := newFakeBackend()
		backend.callErr = errors.New("boom")

		_, err := NewEthLedger(backend, wallet).Query(context.Background(), testContract, op.Payload())
		require.ErrorIs(t, err, ErrTxFailed)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestEthLedgerChainIDFailureIsNotCached(t *testing.T) {
	wallet := testWallet(t)
	backend := newFakeBackend()
	backend.chainErrs = 1
	ledger := NewEthLedger(backend, wallet)

	op := CounterInterface().MustEncode("add", 1)
	newCall := func(nonce uint64) *Transaction {
		tx, err := NewTx().From(wallet.Address()).To(testContract).Gas(1).Nonce(nonce).Typed(op).Build()
		require.NoError(t, err)
		return tx
	}

	_, err := ledger.Broadcast(context.Background(), newCall(0))
	require.ErrorIs(t, err, context.Canceled)

	_, err = submitEth(ledger, newCall(0))
	require.NoError(t, err)
	_, err = submitEth(ledger, newCall(1))
	require.NoError(t, err)
	assert.Equal(t, 2, backend.chainCalls, "a successful chain id is cached")
}

func TestEthLedgerMultiDeployAfterUnsentElement(t *testing.T) {
	wallet := testWallet(t)
	backend := newFakeBackend()
	ledger := NewEthLedger(backend, &flakySigner{Signer: wallet})
	client := NewClient(ledger, NewSender(wallet.Address()), NewAddressBook(""), testArtifacts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	deployed, err := client.MultiDeploy(ctx, 3)
	require.ErrorContains(t, err, "deploy 1 of 3")
	require.ErrorContains(t, err, "signer unavailable")
	assert.NotErrorIs(t, err, context.DeadlineExceeded, "later elements must not wait on the unused nonce")

	require.Len(t, deployed, 2)
	assert.Equal(t, crypto.CreateAddress(wallet.Address(), 0), deployed[0])
	assert.Equal(t, crypto.CreateAddress(wallet.Address(), 1), deployed[1])

	require.Len(t, backend.sent, 2)
	assert.Equal(t, uint64(0), backend.sent[0].Nonce())
	assert.Equal(t, uint64(1), backend.sent[1].Nonce())

	stored, err := client.AddressBook().Require(RoleCounter)
	require.NoError(t, err)
	assert.Equal(t, deployed[1], stored)
	assert.False(t, client.Sender().Synced(), "the sender reloads its nonce after a failure")
}

func TestLoadWallet(t *testing.T) {
	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wallet.key")
	require.NoError(t, crypto.SaveECDSA(path, key))

	wallet, err := LoadWallet(path)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), wallet.Address())
	assert.Equal(t, testSender, wallet.Address())

	_, err = LoadWallet(filepath.Join(t.TempDir(), "absent.key"))
	require.Error(t, err)
}
