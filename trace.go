package interact

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultTracePath is where the CLI writes its scenario trace.
const DefaultTracePath = "interactor_trace.scen.json"

// Scenario is the serialized form of a trace.
type Scenario struct {
	Name  string      `json:"name"`
	Steps []TraceStep `json:"steps"`
}

// TraceStep is one dispatched transaction or query.
type TraceStep struct {
	Step   string       `json:"step"`
	ID     string       `json:"id"`
	Tx     TraceTx      `json:"tx"`
	Expect *TraceExpect `json:"expect,omitempty"`
}

// TraceTx describes the submitted transaction.
type TraceTx struct {
	From         string   `json:"from,omitempty"`
	To           string   `json:"to,omitempty"`
	Value        string   `json:"value,omitempty"`
	Function     string   `json:"function,omitempty"`
	Arguments    []string `json:"arguments,omitempty"`
	GasLimit     uint64   `json:"gasLimit,omitempty"`
	Nonce        uint64   `json:"nonce,omitempty"`
	CodeHash     string   `json:"codeHash,omitempty"`
	CodeMetadata string   `json:"codeMetadata,omitempty"`
}

// TraceExpect is the observed outcome.
type TraceExpect struct {
	Status     string   `json:"status"`
	Out        []string `json:"out,omitempty"`
	Message    string   `json:"message,omitempty"`
	NewAddress string   `json:"newAddress,omitempty"`
}

// Tracer records dispatched transactions and writes them as a scenario file.
// A nil *Tracer records nothing.
type Tracer struct {
	mu    sync.Mutex
	path  string
	name  string
	steps []TraceStep
}

// NewTracer creates a tracer that flushes to path.
func NewTracer(path string) *Tracer {
	return &Tracer{path: path, name: "interactor trace"}
}

func stepName(kind TxKind) string {
	switch kind {
	case TxDeploy:
		return "scDeploy"
	case TxUpgrade:
		return "scUpgrade"
	case TxCall:
		return "scCall"
	case TxQuery:
		return "scQuery"
	default:
		return "transfer"
	}
}

func traceTx(tx *Transaction) TraceTx {
	out := TraceTx{
		From:     tx.From().Hex(),
		GasLimit: tx.Gas(),
		Nonce:    tx.Nonce(),
	}
	if tx.Kind() == TxQuery {
		out.From = ""
	}
	if to := tx.To(); to != nil {
		out.To = to.Hex()
	}
	if v := tx.Value(); v.Sign() > 0 {
		out.Value = v.String()
	}
	if op := tx.Operation(); op != nil {
		out.Function = op.Name()
		for _, arg := range op.Args() {
			out.Arguments = append(out.Arguments, fmt.Sprint(arg))
		}
	}
	if code := tx.Code(); len(code) > 0 {
		out.CodeHash = crypto.Keccak256Hash(code).Hex()
		out.CodeMetadata = tx.CodeMetadata().String()
	}
	return out
}

func (t *Tracer) append(step TraceStep) {
	t.mu.Lock()
	defer t.mu.Unlock()
	step.ID = fmt.Sprintf("%s-%d", step.Step, len(t.steps)+1)
	t.steps = append(t.steps, step)
}

// Record adds a finalized (or failed) transaction.
func (t *Tracer) Record(tx *Transaction, res *TxResult, err error) {
	if t == nil {
		return
	}
	expect := &TraceExpect{Status: "0"}
	switch {
	case err != nil:
		expect.Status = "failed"
		expect.Message = err.Error()
	case res != nil:
		if len(res.ReturnData) > 0 {
			expect.Out = []string{hexutil.Encode(res.ReturnData)}
		}
		if tx.Kind() == TxDeploy {
			expect.NewAddress = res.ContractAddress.Hex()
		}
	}
	t.append(TraceStep{Step: stepName(tx.Kind()), Tx: traceTx(tx), Expect: expect})
}

// RecordQuery adds a query and its raw result.
func (t *Tracer) RecordQuery(tx *Transaction, out []byte, err error) {
	if t == nil {
		return
	}
	expect := &TraceExpect{Status: "0"}
	if err != nil {
		expect.Status = "failed"
		expect.Message = err.Error()
	} else {
		expect.Out = []string{hexutil.Encode(out)}
	}
	t.append(TraceStep{Step: stepName(TxQuery), Tx: traceTx(tx), Expect: expect})
}

// Steps returns a copy of the recorded steps.
func (t *Tracer) Steps() []TraceStep {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceStep(nil), t.steps...)
}

// Flush writes the scenario file, replacing any previous one.
func (t *Tracer) Flush() error {
	if t == nil || t.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(Scenario{Name: t.name, Steps: t.Steps()}, "", "    ")
	if err != nil {
		return err
	}
	return writeFileAtomic(t.path, append(data, '\n'), 0o644)
}
