package interact

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// InitOperation is the operation name bound to the contract constructor.
const InitOperation = "init"

// InterfaceTag identifies a declared contract interface.
type InterfaceTag uint8

const (
	// TagCounter is the primary counter contract.
	TagCounter InterfaceTag = iota

	// TagCaller is the contract forwarding calls to the counter.
	TagCaller
)

func (t InterfaceTag) String() string {
	switch t {
	case TagCounter:
		return "counter"
	case TagCaller:
		return "caller"
	default:
		return fmt.Sprintf("interface(%d)", uint8(t))
	}
}

type operationSpec struct {
	kind    OperationKind
	inputs  abi.Arguments
	outputs abi.Arguments
	id      []byte // selector, nil for init and upgrade
	shape   ResultShape
}

// Interface is a typed proxy over a contract ABI. It encodes named operations
// into transaction payloads and decodes raw results back into Go values.
type Interface struct {
	tag  InterfaceTag
	name string
	abi  abi.ABI
	ops  map[string]operationSpec
}

// InterfaceOption configures an Interface.
type InterfaceOption func(*interfaceConfig)

type interfaceConfig struct {
	upgrade string
}

// WithUpgradeOperation marks the named ABI method as the upgrade constructor.
// Its arguments are encoded without a selector and travel with new code.
func WithUpgradeOperation(name string) InterfaceOption {
	return func(c *interfaceConfig) {
		c.upgrade = name
	}
}

// NewInterface creates a typed proxy for the given ABI. The constructor is
// exposed as the "init" operation; view and pure methods become queries.
func NewInterface(tag InterfaceTag, name string, contractABI abi.ABI, opts ...InterfaceOption) *Interface {
	cfg := &interfaceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	ops := make(map[string]operationSpec, len(contractABI.Methods)+1)
	ops[InitOperation] = operationSpec{
		kind:   KindInit,
		inputs: contractABI.Constructor.Inputs,
		shape:  ShapeNone,
	}

	for methodName, method := range contractABI.Methods {
		spec := operationSpec{
			inputs:  method.Inputs,
			outputs: method.Outputs,
			shape:   shapeOf(method.Outputs),
		}
		switch {
		case methodName == cfg.upgrade:
			spec.kind = KindUpgrade
		case method.IsConstant():
			spec.kind = KindView
			spec.id = method.ID
		default:
			spec.kind = KindEndpoint
			spec.id = method.ID
		}
		ops[methodName] = spec
	}

	return &Interface{
		tag:  tag,
		name: name,
		abi:  contractABI,
		ops:  ops,
	}
}

// shapeOf derives the default result shape from the declared outputs.
func shapeOf(outputs abi.Arguments) ResultShape {
	switch {
	case len(outputs) == 0:
		return ShapeNone
	case len(outputs) == 1 && outputs[0].Type.T == abi.UintTy:
		return ShapeNumeric
	default:
		return ShapeRawBytes
	}
}

// Tag returns the interface tag.
func (i *Interface) Tag() InterfaceTag {
	return i.tag
}

// Name returns the interface name.
func (i *Interface) Name() string {
	return i.name
}

// ABI returns the underlying contract ABI.
func (i *Interface) ABI() abi.ABI {
	return i.abi
}

// Encode creates an Operation for the named operation with the given arguments.
func (i *Interface) Encode(name string, args ...any) (*Operation, error) {
	spec, ok := i.ops[name]
	if !ok {
		return nil, &UnknownOperationError{Interface: i.name, Operation: name}
	}

	converted, err := convertArgs(name, spec.inputs, args)
	if err != nil {
		return nil, err
	}

	packed, err := spec.inputs.Pack(converted...)
	if err != nil {
		return nil, &EncodingError{Operation: name, Err: err}
	}

	payload := packed
	if spec.id != nil {
		payload = append(append(make([]byte, 0, len(spec.id)+len(packed)), spec.id...), packed...)
	}

	return &Operation{
		iface:   i,
		name:    name,
		kind:    spec.kind,
		args:    converted,
		payload: payload,
		shape:   spec.shape,
	}, nil
}

// MustEncode is like Encode but panics on error.
func (i *Interface) MustEncode(name string, args ...any) *Operation {
	op, err := i.Encode(name, args...)
	if err != nil {
		panic(err)
	}
	return op
}

// Decode turns a raw execution result into a value of the given shape:
// struct{}{} for ShapeNone, *big.Int for ShapeNumeric and []byte for ShapeRawBytes.
func (i *Interface) Decode(shape ResultShape, raw []byte) (any, error) {
	return decodeResult(shape, raw)
}

// DecodeOutputs unpacks a raw result against the declared outputs of name.
func (i *Interface) DecodeOutputs(name string, raw []byte) ([]any, error) {
	spec, ok := i.ops[name]
	if !ok {
		return nil, &UnknownOperationError{Interface: i.name, Operation: name}
	}
	values, err := spec.outputs.Unpack(raw)
	if err != nil {
		return nil, &ResultDecodeError{Shape: ShapeRawBytes, Raw: raw, Err: err}
	}
	return values, nil
}

// DecodeArgs unpacks a payload produced by Encode(name, ...).
func (i *Interface) DecodeArgs(name string, payload []byte) ([]any, error) {
	spec, ok := i.ops[name]
	if !ok {
		return nil, &UnknownOperationError{Interface: i.name, Operation: name}
	}
	if spec.id != nil {
		if !bytes.HasPrefix(payload, spec.id) {
			return nil, &EncodingError{Operation: name, Err: fmt.Errorf("selector mismatch")}
		}
		payload = payload[len(spec.id):]
	}
	values, err := spec.inputs.Unpack(payload)
	if err != nil {
		return nil, &EncodingError{Operation: name, Err: err}
	}
	return values, nil
}

// DecodeCall resolves the endpoint or view addressed by a selector-prefixed
// payload and unpacks its arguments.
func (i *Interface) DecodeCall(payload []byte) (string, []any, error) {
	if len(payload) < 4 {
		return "", nil, &UnknownOperationError{Interface: i.name, Operation: hexutil.Encode(payload)}
	}
	method, err := i.abi.MethodById(payload[:4])
	if err != nil {
		return "", nil, &UnknownOperationError{Interface: i.name, Operation: hexutil.Encode(payload[:4])}
	}
	if spec := i.ops[method.Name]; spec.id == nil {
		return "", nil, &UnknownOperationError{Interface: i.name, Operation: method.Name}
	}
	args, err := i.DecodeArgs(method.Name, payload)
	if err != nil {
		return "", nil, err
	}
	return method.Name, args, nil
}

// HasOperation returns true if the interface declares the named operation.
func (i *Interface) HasOperation(name string) bool {
	_, ok := i.ops[name]
	return ok
}

// Kind returns the kind of the named operation.
func (i *Interface) Kind(name string) (OperationKind, bool) {
	spec, ok := i.ops[name]
	return spec.kind, ok
}

// OperationNames returns all declared operation names in sorted order.
func (i *Interface) OperationNames() []string {
	names := make([]string, 0, len(i.ops))
	for name := range i.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseABI parses a JSON ABI string into an abi.ABI.
func ParseABI(abiJSON string) (abi.ABI, error) {
	return abi.JSON(strings.NewReader(abiJSON))
}

// MustParseABI is like ParseABI but panics on error.
func MustParseABI(abiJSON string) abi.ABI {
	parsed, err := ParseABI(abiJSON)
	if err != nil {
		panic(err)
	}
	return parsed
}
