package interact

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors for common failure conditions.
var (
	// ErrUnknownOperation indicates the operation is not declared by the interface.
	ErrUnknownOperation = errors.New("interact: unknown operation")

	// ErrArgumentTypeMismatch indicates an argument does not fit its declared parameter type.
	ErrArgumentTypeMismatch = errors.New("interact: argument type mismatch")

	// ErrResultDecode indicates a raw execution result could not be decoded.
	ErrResultDecode = errors.New("interact: result decode error")

	// ErrMissingGasBudget indicates a state-mutating transaction has no gas limit.
	ErrMissingGasBudget = errors.New("interact: missing gas budget")

	// ErrConflictingTransactionShape indicates incompatible builder attributes.
	ErrConflictingTransactionShape = errors.New("interact: conflicting transaction shape")

	// ErrMissingSender indicates a transaction has no sender.
	ErrMissingSender = errors.New("interact: missing sender")

	// ErrMissingReceiver indicates a call, query or upgrade has no receiver.
	ErrMissingReceiver = errors.New("interact: missing receiver")

	// ErrMissingCode indicates a deploy or upgrade has no code.
	ErrMissingCode = errors.New("interact: missing code")

	// ErrNegativeValue indicates a negative value transfer.
	ErrNegativeValue = errors.New("interact: negative value transfer")

	// ErrBuilderConsumed indicates Build was called twice on the same builder.
	ErrBuilderConsumed = errors.New("interact: builder already consumed")

	// ErrMissingDependency indicates a required address book entry is absent.
	ErrMissingDependency = errors.New("interact: missing dependency")

	// ErrTxFailed indicates the ledger reported a failed transaction.
	ErrTxFailed = errors.New("interact: transaction failed")

	// ErrNotQuery indicates a non-query transaction was passed to Query.
	ErrNotQuery = errors.New("interact: transaction is not a query")

	// ErrInhomogeneousBatch indicates a batch element does not share the batch interface or shape.
	ErrInhomogeneousBatch = errors.New("interact: inhomogeneous batch")

	// ErrNoContractAddress indicates a deploy finalized without an assigned address.
	ErrNoContractAddress = errors.New("interact: deploy returned no contract address")

	// ErrMalformedFrame indicates transaction data that is not a valid frame.
	ErrMalformedFrame = errors.New("interact: malformed transaction frame")

	// ErrUpgradeInvariant indicates the upgraded contract did not reinitialize its state.
	ErrUpgradeInvariant = errors.New("interact: upgrade invariant violated")
)

// UnknownOperationError indicates the interface doesn't declare the requested operation.
type UnknownOperationError struct {
	Interface string
	Operation string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("interact: operation %q not declared by interface %s", e.Operation, e.Interface)
}

func (e *UnknownOperationError) Is(target error) bool {
	return target == ErrUnknownOperation
}

// ArgumentError indicates an issue with an operation argument.
type ArgumentError struct {
	Operation string
	Index     int
	Err       error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("interact: argument %d for operation %q: %v", e.Index, e.Operation, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// TypeMismatchError indicates a value's type doesn't match the expected parameter type.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("interact: type mismatch: expected %s, got %s", e.Expected, e.Got)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrArgumentTypeMismatch
}

// ResultDecodeError wraps failures while decoding a raw result.
type ResultDecodeError struct {
	Shape ResultShape
	Raw   []byte
	Err   error
}

func (e *ResultDecodeError) Error() string {
	return fmt.Sprintf("interact: decoding %d bytes as %s: %v", len(e.Raw), e.Shape, e.Err)
}

func (e *ResultDecodeError) Unwrap() error {
	return e.Err
}

func (e *ResultDecodeError) Is(target error) bool {
	return target == ErrResultDecode
}

// MissingDependencyError indicates the address book has no entry for a role.
type MissingDependencyError struct {
	Role Role
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("interact: no %s address in the address book, deploy it first", e.Role)
}

func (e *MissingDependencyError) Is(target error) bool {
	return target == ErrMissingDependency
}

// TxFailedError carries the reason reported by the ledger for a failed transaction.
type TxFailedError struct {
	Hash   common.Hash
	Reason string
}

func (e *TxFailedError) Error() string {
	if e.Hash == (common.Hash{}) {
		return fmt.Sprintf("interact: transaction failed: %s", e.Reason)
	}
	return fmt.Sprintf("interact: transaction %s failed: %s", e.Hash.Hex(), e.Reason)
}

func (e *TxFailedError) Is(target error) bool {
	return target == ErrTxFailed
}

// UpgradeMismatchError reports a post-upgrade sum that differs from the upgrade value.
type UpgradeMismatchError struct {
	Contract common.Address
	Expected *big.Int
	Got      *big.Int
}

func (e *UpgradeMismatchError) Error() string {
	return fmt.Sprintf("interact: contract %s reports sum %s after upgrade, expected %s",
		e.Contract.Hex(), e.Got, e.Expected)
}

func (e *UpgradeMismatchError) Is(target error) bool {
	return target == ErrUpgradeInvariant
}

// EncodingError indicates the ABI packer rejected converted arguments.
type EncodingError struct {
	Operation string
	Err       error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("interact: encoding operation %q: %v", e.Operation, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

func (e *EncodingError) Is(target error) bool {
	return target == ErrArgumentTypeMismatch
}
