package interact

// OperationKind specifies how an operation is carried by a transaction.
type OperationKind uint8

const (
	// KindInit runs the contract constructor; it travels with deploy code.
	KindInit OperationKind = iota

	// KindUpgrade runs the upgrade constructor; it travels with replacement code.
	KindUpgrade

	// KindEndpoint is a state-mutating call.
	KindEndpoint

	// KindView is a read-only query.
	KindView
)

func (k OperationKind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindUpgrade:
		return "upgrade"
	case KindEndpoint:
		return "endpoint"
	case KindView:
		return "view"
	default:
		return "unknown"
	}
}

// ResultShape declares how a raw result is decoded.
type ResultShape uint8

const (
	// ShapeNone discards the result.
	ShapeNone ResultShape = iota

	// ShapeNumeric decodes the result as an unsigned big integer.
	ShapeNumeric

	// ShapeRawBytes returns the result unchanged.
	ShapeRawBytes
)

func (s ResultShape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeNumeric:
		return "unmanaged numeric"
	case ShapeRawBytes:
		return "raw bytes"
	default:
		return "unknown"
	}
}

// Operation is an encoded, typed contract operation ready to be placed in a
// transaction. Operation is immutable - modifier methods return new instances.
type Operation struct {
	iface   *Interface
	name    string
	kind    OperationKind
	args    []any
	payload []byte
	shape   ResultShape
}

// Interface returns the contract interface that declared this operation.
func (o *Operation) Interface() *Interface {
	return o.iface
}

// Name returns the operation name.
func (o *Operation) Name() string {
	return o.name
}

// Kind returns the operation kind.
func (o *Operation) Kind() OperationKind {
	return o.kind
}

// Args returns the converted arguments.
func (o *Operation) Args() []any {
	args := make([]any, len(o.args))
	copy(args, o.args)
	return args
}

// Payload returns a copy of the encoded payload.
func (o *Operation) Payload() []byte {
	return append([]byte(nil), o.payload...)
}

// Shape returns the declared result shape.
func (o *Operation) Shape() ResultShape {
	return o.shape
}

// IsQuery reports whether the operation is read-only.
func (o *Operation) IsQuery() bool {
	return o.kind == KindView
}

// Decode decodes a raw result using the operation's declared shape.
func (o *Operation) Decode(raw []byte) (any, error) {
	return decodeResult(o.shape, raw)
}

// RawResult keeps the result as raw bytes instead of decoding it.
//
// Returns a new Operation with the raw bytes shape.
func (o *Operation) RawResult() *Operation {
	clone := o.clone()
	clone.shape = ShapeRawBytes
	return clone
}

// clone creates a shallow copy of the Operation.
func (o *Operation) clone() *Operation {
	clone := *o
	clone.args = o.Args()
	clone.payload = o.Payload()
	return &clone
}
