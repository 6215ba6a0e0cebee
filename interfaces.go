package interact

import "sync"

// CallerForwardGas is the gas sub-budget the caller contract gives its nested
// synchronous add call on the counter.
const CallerForwardGas = 2_000_000

// CounterABI declares the counter contract: a single stored sum anyone can increment.
const CounterABI = `[
	{
		"type": "constructor",
		"inputs": [
			{"name": "initialValue", "type": "uint32"}
		]
	},
	{
		"name": "upgrade",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "newValue", "type": "uint256"}
		],
		"outputs": [
			{"name": "", "type": "uint256"}
		]
	},
	{
		"name": "add",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "value", "type": "uint256"}
		],
		"outputs": []
	},
	{
		"name": "sum",
		"type": "function",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [
			{"name": "", "type": "uint256"}
		]
	}
]`

// CallerABI declares the caller contract, which forwards callAdd to the
// counter stored at targetAddress.
const CallerABI = `[
	{
		"type": "constructor",
		"inputs": [
			{"name": "target", "type": "address"}
		]
	},
	{
		"name": "upgrade",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "target", "type": "address"}
		],
		"outputs": []
	},
	{
		"name": "callAdd",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "value", "type": "uint256"}
		],
		"outputs": []
	},
	{
		"name": "targetAddress",
		"type": "function",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [
			{"name": "", "type": "address"}
		]
	}
]`

var (
	registryOnce sync.Once
	registry     map[InterfaceTag]*Interface
)

func loadRegistry() {
	registry = map[InterfaceTag]*Interface{
		TagCounter: NewInterface(TagCounter, "CounterProxy", MustParseABI(CounterABI), WithUpgradeOperation("upgrade")),
		TagCaller:  NewInterface(TagCaller, "CallerProxy", MustParseABI(CallerABI), WithUpgradeOperation("upgrade")),
	}
}

// InterfaceFor returns the declared interface for tag, or nil if none exists.
func InterfaceFor(tag InterfaceTag) *Interface {
	registryOnce.Do(loadRegistry)
	return registry[tag]
}

// CounterInterface returns the typed proxy for the counter contract.
func CounterInterface() *Interface {
	return InterfaceFor(TagCounter)
}

// CallerInterface returns the typed proxy for the caller contract.
func CallerInterface() *Interface {
	return InterfaceFor(TagCaller)
}
