package interact

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
)

// CodeMetadata holds the flags attached to deployed or upgraded code.
// Layout (big-endian): [upgradeable|readable flags:1][payable flags:1]
type CodeMetadata uint16

const (
	// CodeMetadataDefault sets no flags.
	CodeMetadataDefault CodeMetadata = 0x0000

	// CodeMetadataUpgradeable permits future upgrades of the code.
	CodeMetadataUpgradeable CodeMetadata = 0x0100

	// CodeMetadataReadable lets other contracts read the contract storage.
	CodeMetadataReadable CodeMetadata = 0x0400

	// CodeMetadataPayable lets the contract receive value transfers.
	CodeMetadataPayable CodeMetadata = 0x0002

	// CodeMetadataPayableBySC lets the contract receive value from other contracts.
	CodeMetadataPayableBySC CodeMetadata = 0x0004
)

// IsUpgradeable returns true if upgrades are permitted.
func (m CodeMetadata) IsUpgradeable() bool {
	return m&CodeMetadataUpgradeable != 0
}

// IsReadable returns true if the storage is readable by other contracts.
func (m CodeMetadata) IsReadable() bool {
	return m&CodeMetadataReadable != 0
}

// IsPayable returns true if the contract accepts value transfers.
func (m CodeMetadata) IsPayable() bool {
	return m&CodeMetadataPayable != 0
}

// IsPayableBySC returns true if the contract accepts value from contracts.
func (m CodeMetadata) IsPayableBySC() bool {
	return m&CodeMetadataPayableBySC != 0
}

// Bytes returns the two-byte wire form.
func (m CodeMetadata) Bytes() [2]byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(m))
	return b
}

// CodeMetadataFromBytes decodes the two-byte wire form.
func CodeMetadataFromBytes(b [2]byte) CodeMetadata {
	return CodeMetadata(binary.BigEndian.Uint16(b[:]))
}

func (m CodeMetadata) String() string {
	var flags []string
	if m.IsUpgradeable() {
		flags = append(flags, "Upgradeable")
	}
	if m.IsReadable() {
		flags = append(flags, "Readable")
	}
	if m.IsPayable() {
		flags = append(flags, "Payable")
	}
	if m.IsPayableBySC() {
		flags = append(flags, "PayableBySC")
	}
	if len(flags) == 0 {
		return "Default"
	}
	return strings.Join(flags, "|")
}

// upgradeHookABI is the in-place upgrade entry point upgradeable contracts
// expose on EVM ledgers. It returns the raw result of the upgrade constructor.
const upgradeHookABI = `[
	{
		"name": "upgradeContract",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "code", "type": "bytes"},
			{"name": "metadata", "type": "uint16"},
			{"name": "arguments", "type": "bytes"}
		],
		"outputs": [
			{"name": "", "type": "bytes"}
		]
	}
]`

const upgradeHookMethod = "upgradeContract"

var upgradeHook = MustParseABI(upgradeHookABI)

// EncodeDeployFrame produces deploy data: the code followed by the encoded
// init arguments.
func EncodeDeployFrame(code, args []byte) []byte {
	frame := make([]byte, 0, len(code)+len(args))
	frame = append(frame, code...)
	return append(frame, args...)
}

// EncodeUpgradeFrame produces the upgradeContract call carrying new code,
// its metadata and the encoded upgrade arguments.
func EncodeUpgradeFrame(code []byte, metadata CodeMetadata, args []byte) ([]byte, error) {
	if len(code) == 0 {
		return nil, ErrMissingCode
	}
	if args == nil {
		args = []byte{}
	}
	return upgradeHook.Pack(upgradeHookMethod, code, uint16(metadata), args)
}

// DecodeUpgradeFrame decodes data produced by EncodeUpgradeFrame.
// Useful for debugging and testing.
func DecodeUpgradeFrame(data []byte) (code []byte, metadata CodeMetadata, args []byte, err error) {
	method := upgradeHook.Methods[upgradeHookMethod]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		err = ErrMalformedFrame
		return
	}

	values, unpackErr := method.Inputs.Unpack(data[4:])
	if unpackErr != nil {
		err = errors.Join(ErrMalformedFrame, unpackErr)
		return
	}

	code = values[0].([]byte)
	metadata = CodeMetadata(values[1].(uint16))
	args = values[2].([]byte)
	return
}

// decodeUpgradeReturn unwraps the bytes returned by upgradeContract.
func decodeUpgradeReturn(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	values, err := upgradeHook.Methods[upgradeHookMethod].Outputs.Unpack(data)
	if err != nil {
		return nil, errors.Join(ErrMalformedFrame, err)
	}
	return values[0].([]byte), nil
}

