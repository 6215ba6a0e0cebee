package interact

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

// EthBackend is the subset of the ethclient API used by EthLedger.
type EthBackend interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// EthLedger is a Ledger speaking Ethereum JSON-RPC.
//
// Deploys carry the code followed by the init arguments. Upgrades are sent to
// the contract's upgradeContract hook with the new code, its metadata and the
// upgrade arguments. Every transaction is simulated first so the return data
// and revert reasons are available; the receipt alone carries neither.
type EthLedger struct {
	backend EthBackend
	signer  Signer

	chainMu sync.Mutex
	chain   *big.Int
}

// NewEthLedger creates a ledger over an existing backend.
func NewEthLedger(backend EthBackend, signer Signer) *EthLedger {
	return &EthLedger{backend: backend, signer: signer}
}

// DialEthLedger connects to the JSON-RPC endpoint at url.
func DialEthLedger(ctx context.Context, url string, signer Signer) (*EthLedger, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewEthLedger(client, signer), client, nil
}

// chainID returns the cached chain id. Failures are not cached, the next
// caller asks again.
func (l *EthLedger) chainID(ctx context.Context) (*big.Int, error) {
	l.chainMu.Lock()
	defer l.chainMu.Unlock()
	if l.chain != nil {
		return l.chain, nil
	}
	chain, err := l.backend.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	l.chain = chain
	return chain, nil
}

// Account implements Ledger.
func (l *EthLedger) Account(ctx context.Context, addr common.Address) (*Account, error) {
	nonce, err := l.backend.PendingNonceAt(ctx, addr)
	if err != nil {
		return nil, err
	}
	balance, err := l.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, err
	}
	return &Account{Address: addr, Nonce: nonce, Balance: balance}, nil
}

// Query implements Ledger.
func (l *EthLedger) Query(ctx context.Context, to common.Address, payload []byte) ([]byte, error) {
	out, err := l.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: payload}, nil)
	if err != nil {
		return nil, &TxFailedError{Reason: revertReason(err)}
	}
	return out, nil
}

// Broadcast implements Ledger. The transaction is simulated, signed and sent;
// any failure up to and including the send leaves the nonce unused.
func (l *EthLedger) Broadcast(ctx context.Context, tx *Transaction) (*PendingTx, error) {
	if tx.From() != l.signer.Address() {
		return nil, fmt.Errorf("sender %s is not the wallet address %s", tx.From().Hex(), l.signer.Address().Hex())
	}

	data, err := frameTransaction(tx)
	if err != nil {
		return nil, err
	}
	chainID, err := l.chainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	gasPrice, err := l.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}

	msg := ethereum.CallMsg{
		From:     tx.From(),
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: gasPrice,
		Value:    tx.Value(),
		Data:     data,
	}
	ret, err := l.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, &TxFailedError{Reason: revertReason(err)}
	}
	switch tx.Kind() {
	case TxDeploy:
		// Simulated deploys return the runtime code.
		ret = nil
	case TxUpgrade:
		if ret, err = decodeUpgradeReturn(ret); err != nil {
			return nil, err
		}
	}

	signed, err := l.signer.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    tx.Nonce(),
		To:       tx.To(),
		Value:    tx.Value(),
		Gas:      tx.Gas(),
		GasPrice: gasPrice,
		Data:     data,
	}), chainID)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	if err := l.backend.SendTransaction(ctx, signed); err != nil {
		return nil, &TxFailedError{Hash: signed.Hash(), Reason: err.Error()}
	}
	log.Debug("Sent transaction", "hash", signed.Hash(), "kind", tx.Kind(), "nonce", tx.Nonce())

	return &PendingTx{Hash: signed.Hash(), Tx: tx, ReturnData: ret, signed: signed}, nil
}

// Await implements Ledger.
func (l *EthLedger) Await(ctx context.Context, pending *PendingTx) (*TxResult, error) {
	if pending.signed == nil {
		return nil, fmt.Errorf("await %s: transaction was not broadcast by this ledger", pending.Hash.Hex())
	}

	receipt, err := bind.WaitMined(ctx, l.backend, pending.signed)
	if err != nil {
		return nil, fmt.Errorf("await %s: %w", pending.Hash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &TxFailedError{Hash: pending.Hash, Reason: "execution reverted"}
	}

	result := &TxResult{
		Hash:       pending.Hash,
		GasUsed:    receipt.GasUsed,
		ReturnData: pending.ReturnData,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if pending.Tx.Kind() == TxDeploy {
		result.ContractAddress = receipt.ContractAddress
	}
	return result, nil
}

// frameTransaction produces the EVM call data for tx.
func frameTransaction(tx *Transaction) ([]byte, error) {
	switch tx.Kind() {
	case TxDeploy:
		return EncodeDeployFrame(tx.Code(), tx.Payload()), nil
	case TxUpgrade:
		return EncodeUpgradeFrame(tx.Code(), tx.CodeMetadata(), tx.Payload())
	default:
		return tx.Payload(), nil
	}
}

// revertReason extracts the Solidity revert message from an RPC error when present.
func revertReason(err error) string {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return err.Error()
	}
	hexData, ok := dataErr.ErrorData().(string)
	if !ok {
		return err.Error()
	}
	data, decodeErr := hexutil.Decode(hexData)
	if decodeErr != nil {
		return err.Error()
	}
	reason, unpackErr := abi.UnpackRevert(data)
	if unpackErr != nil {
		return err.Error()
	}
	return reason
}
