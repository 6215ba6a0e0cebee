package interact

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// numExprSeparators are stripped from numeric literals before parsing.
var numExprSeparators = strings.NewReplacer(",", "", "_", "", " ", "")

// ParseNumExpr parses an unsigned decimal literal that may contain digit
// separators, e.g. "70,000,000" or "0,050000000000000000".
func ParseNumExpr(expr string) (*big.Int, error) {
	digits := numExprSeparators.Replace(expr)
	if digits == "" {
		return nil, fmt.Errorf("interact: empty numeric literal %q", expr)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("interact: invalid numeric literal %q", expr)
		}
	}
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("interact: invalid numeric literal %q", expr)
	}
	return n, nil
}

// MustNumExpr is like ParseNumExpr but panics on error.
// Use only with compile-time constant literals.
func MustNumExpr(expr string) *big.Int {
	n, err := ParseNumExpr(expr)
	if err != nil {
		panic(err)
	}
	return n
}

// NumExprUint64 parses a separator literal that must fit into 64 bits.
func NumExprUint64(expr string) (uint64, error) {
	n, err := ParseNumExpr(expr)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("interact: numeric literal %q overflows 64 bits", expr)
	}
	return n.Uint64(), nil
}

// toBigInt converts the supported Go numeric representations to *big.Int.
func toBigInt(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case int:
		return big.NewInt(int64(n)), true
	case int8:
		return big.NewInt(int64(n)), true
	case int16:
		return big.NewInt(int64(n)), true
	case int32:
		return big.NewInt(int64(n)), true
	case int64:
		return big.NewInt(n), true
	case uint:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case *big.Int:
		if n == nil {
			return nil, false
		}
		return new(big.Int).Set(n), true
	case big.Int:
		return new(big.Int).Set(&n), true
	case *uint256.Int:
		if n == nil {
			return nil, false
		}
		return n.ToBig(), true
	case string:
		parsed, err := ParseNumExpr(n)
		if err != nil {
			return nil, false
		}
		return parsed, true
	default:
		return nil, false
	}
}

// convertArg converts a Go value to the representation go-ethereum's ABI
// packer expects for t, rejecting values that don't fit the declared type.
func convertArg(v any, t abi.Type) (any, error) {
	switch t.T {
	case abi.UintTy:
		n, ok := toBigInt(v)
		if !ok {
			return nil, mismatch(t, v)
		}
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, &TypeMismatchError{Expected: t.String(), Got: fmt.Sprintf("%s (out of range)", n)}
		}
		switch t.Size {
		case 8:
			return uint8(n.Uint64()), nil
		case 16:
			return uint16(n.Uint64()), nil
		case 32:
			return uint32(n.Uint64()), nil
		case 64:
			return n.Uint64(), nil
		default:
			return n, nil
		}

	case abi.IntTy:
		n, ok := toBigInt(v)
		if !ok {
			return nil, mismatch(t, v)
		}
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, &TypeMismatchError{Expected: t.String(), Got: fmt.Sprintf("%s (out of range)", n)}
		}
		switch t.Size {
		case 8:
			return int8(n.Int64()), nil
		case 16:
			return int16(n.Int64()), nil
		case 32:
			return int32(n.Int64()), nil
		case 64:
			return n.Int64(), nil
		default:
			return n, nil
		}

	case abi.AddressTy:
		switch a := v.(type) {
		case common.Address:
			return a, nil
		case *common.Address:
			if a != nil {
				return *a, nil
			}
		case string:
			if common.IsHexAddress(a) {
				return common.HexToAddress(a), nil
			}
		}
		return nil, mismatch(t, v)

	case abi.BoolTy:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, mismatch(t, v)

	case abi.StringTy:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, mismatch(t, v)

	case abi.BytesTy:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
		return nil, mismatch(t, v)

	default:
		// Composite types are validated by the packer itself.
		return v, nil
	}
}

func mismatch(t abi.Type, v any) *TypeMismatchError {
	return &TypeMismatchError{Expected: t.String(), Got: fmt.Sprintf("%T", v)}
}

// convertArgs converts positional arguments against the declared inputs.
func convertArgs(operation string, inputs abi.Arguments, args []any) ([]any, error) {
	if len(args) != len(inputs) {
		return nil, &ArgumentError{
			Operation: operation,
			Index:     len(args),
			Err: &TypeMismatchError{
				Expected: fmt.Sprintf("%d arguments", len(inputs)),
				Got:      fmt.Sprintf("%d arguments", len(args)),
			},
		}
	}

	converted := make([]any, len(args))
	for i, arg := range args {
		val, err := convertArg(arg, inputs[i].Type)
		if err != nil {
			return nil, &ArgumentError{Operation: operation, Index: i, Err: err}
		}
		converted[i] = val
	}
	return converted, nil
}

// decodeNumeric parses raw big-endian bytes as an unsigned integer of at
// most 256 bits. An empty result decodes to zero.
func decodeNumeric(raw []byte) (*big.Int, error) {
	if len(raw) > 32 {
		return nil, &ResultDecodeError{
			Shape: ShapeNumeric,
			Raw:   raw,
			Err:   errors.New("value exceeds 256 bits"),
		}
	}
	return new(uint256.Int).SetBytes(raw).ToBig(), nil
}

// decodeResult turns raw result bytes into a value of the declared shape.
func decodeResult(shape ResultShape, raw []byte) (any, error) {
	switch shape {
	case ShapeNone:
		return struct{}{}, nil
	case ShapeNumeric:
		return decodeNumeric(raw)
	case ShapeRawBytes:
		return raw, nil
	default:
		return nil, &ResultDecodeError{Shape: shape, Raw: raw, Err: fmt.Errorf("unknown result shape %d", shape)}
	}
}
