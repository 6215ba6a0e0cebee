package interact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Artifacts holds the immutable code blobs deployed by the client.
type Artifacts struct {
	Counter []byte
	Caller  []byte
}

// contractArtifact covers the two JSON layouts we read: a top-level "code"
// field and a forge style "bytecode.object".
type contractArtifact struct {
	Code     string `json:"code"`
	Bytecode struct {
		Object string `json:"object"`
	} `json:"bytecode"`
}

// LoadArtifacts reads both contract artifacts.
func LoadArtifacts(counterPath, callerPath string) (Artifacts, error) {
	counter, err := LoadArtifact(counterPath)
	if err != nil {
		return Artifacts{}, err
	}
	caller, err := LoadArtifact(callerPath)
	if err != nil {
		return Artifacts{}, err
	}
	return Artifacts{Counter: counter, Caller: caller}, nil
}

// LoadArtifact reads a code blob from path. The file may be a JSON artifact,
// hex text (with or without 0x) or raw binary.
func LoadArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	code, err := parseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("artifact %s: %w", path, ErrMissingCode)
	}
	return code, nil
}

func parseArtifact(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var artifact contractArtifact
		if err := json.Unmarshal(trimmed, &artifact); err != nil {
			return nil, err
		}
		hexCode := artifact.Code
		if hexCode == "" {
			hexCode = artifact.Bytecode.Object
		}
		return decodeHexCode(hexCode)
	}

	if isHexText(trimmed) {
		return decodeHexCode(string(trimmed))
	}
	return data, nil
}

func decodeHexCode(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

func isHexText(b []byte) bool {
	s := strings.TrimPrefix(strings.TrimPrefix(string(b), "0x"), "0X")
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
