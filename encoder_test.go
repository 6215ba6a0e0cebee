package interact

import (
	"bytes"
	"errors"
	"math/big"
	"testing"
)

func TestCodeMetadataFlags(t *testing.T) {
	tests := []struct {
		name     string
		metadata CodeMetadata
		want     string
	}{
		{"default", CodeMetadataDefault, "Default"},
		{"upgradeable", CodeMetadataUpgradeable, "Upgradeable"},
		{"readable payable", CodeMetadataReadable | CodeMetadataPayable, "Readable|Payable"},
		{"all", CodeMetadataUpgradeable | CodeMetadataReadable | CodeMetadataPayable | CodeMetadataPayableBySC,
			"Upgradeable|Readable|Payable|PayableBySC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.metadata.String(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}

	m := CodeMetadataUpgradeable | CodeMetadataPayableBySC
	if !m.IsUpgradeable() || !m.IsPayableBySC() {
		t.Error("Expected upgradeable and payable by SC")
	}
	if m.IsReadable() || m.IsPayable() {
		t.Error("Did not expect readable or payable")
	}
}

func TestCodeMetadataBytes(t *testing.T) {
	tests := []struct {
		metadata CodeMetadata
		want     [2]byte
	}{
		{CodeMetadataDefault, [2]byte{0x00, 0x00}},
		{CodeMetadataUpgradeable, [2]byte{0x01, 0x00}},
		{CodeMetadataReadable, [2]byte{0x04, 0x00}},
		{CodeMetadataPayable, [2]byte{0x00, 0x02}},
		{CodeMetadataUpgradeable | CodeMetadataPayableBySC, [2]byte{0x01, 0x04}},
	}

	for _, tt := range tests {
		t.Run(tt.metadata.String(), func(t *testing.T) {
			got := tt.metadata.Bytes()
			if got != tt.want {
				t.Errorf("Expected %x, got %x", tt.want, got)
			}
			if CodeMetadataFromBytes(got) != tt.metadata {
				t.Errorf("Round trip of %x failed", got)
			}
		})
	}
}

func TestEncodeDeployFrame(t *testing.T) {
	code := []byte{0x60, 0x80}
	args := CounterInterface().MustEncode(InitOperation, 0).Payload()

	frame := EncodeDeployFrame(code, args)
	if !bytes.HasPrefix(frame, code) {
		t.Errorf("Frame should start with the code, got %x", frame)
	}
	if !bytes.Equal(frame[len(code):], args) {
		t.Errorf("Frame should end with the init arguments, got %x", frame[len(code):])
	}

	// Inputs are not aliased.
	code[0] = 0x00
	if frame[0] != 0x60 {
		t.Error("Frame should not alias the code slice")
	}
}

func TestUpgradeFrame(t *testing.T) {
	code := []byte{0x60, 0x80, 0x60, 0x40}
	args := CounterInterface().MustEncode("upgrade", big.NewInt(11)).Payload()

	t.Run("round trip", func(t *testing.T) {
		frame, err := EncodeUpgradeFrame(code, CodeMetadataUpgradeable, args)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		gotCode, gotMeta, gotArgs, err := DecodeUpgradeFrame(frame)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !bytes.Equal(gotCode, code) {
			t.Errorf("Expected code %x, got %x", code, gotCode)
		}
		if gotMeta != CodeMetadataUpgradeable {
			t.Errorf("Expected Upgradeable, got %s", gotMeta)
		}
		if !bytes.Equal(gotArgs, args) {
			t.Errorf("Expected args %x, got %x", args, gotArgs)
		}
	})

	t.Run("no arguments", func(t *testing.T) {
		frame, err := EncodeUpgradeFrame(code, CodeMetadataDefault, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		_, _, gotArgs, err := DecodeUpgradeFrame(frame)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(gotArgs) != 0 {
			t.Errorf("Expected no arguments, got %x", gotArgs)
		}
	})

	t.Run("missing code", func(t *testing.T) {
		if _, err := EncodeUpgradeFrame(nil, CodeMetadataUpgradeable, args); !errors.Is(err, ErrMissingCode) {
			t.Errorf("Expected ErrMissingCode, got %v", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		tests := []struct {
			name string
			data []byte
		}{
			{"empty", nil},
			{"wrong selector", []byte{0xde, 0xad, 0xbe, 0xef, 0x00}},
			{"truncated", upgradeHook.Methods[upgradeHookMethod].ID},
		}
		for _, tt := range tests {
			if _, _, _, err := DecodeUpgradeFrame(tt.data); !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("%s: expected ErrMalformedFrame, got %v", tt.name, err)
			}
		}
	})
}

func TestDecodeUpgradeReturn(t *testing.T) {
	word := make([]byte, 32)
	word[31] = 11

	packed, err := upgradeHook.Methods[upgradeHookMethod].Outputs.Pack(word)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, err := decodeUpgradeReturn(packed)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !bytes.Equal(got, word) {
		t.Errorf("Expected %x, got %x", word, got)
	}

	if got, err := decodeUpgradeReturn(nil); err != nil || got != nil {
		t.Errorf("Expected empty result, got %x, %v", got, err)
	}

	if _, err := decodeUpgradeReturn([]byte{0x01}); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("Expected ErrMalformedFrame, got %v", err)
	}
}
